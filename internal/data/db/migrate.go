package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// =========================
		// Networks + genealogy
		// =========================
		&types.Network{},
		&types.NetworkGenealogy{},

		// =========================
		// Artifacts (observations)
		// =========================
		&types.Artifact{},
		&types.ArtifactNetwork{},

		// =========================
		// Jobs / worker
		// =========================
		&types.JobRun{},
	)
}

// EnsureGenealogyIndexes adds the Postgres-only indexes the relation search leans on.
func EnsureGenealogyIndexes(db *gorm.DB) error {
	if db == nil || db.Dialector == nil || db.Dialector.Name() != "postgres" {
		return nil
	}
	// Descending scans for nearest-ancestor pages.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_network_chain_height_desc
		ON network (network_id, height DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_network_chain_height_desc: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_artifact_network_ref_present
		ON artifact_network (network_id)
		WHERE network_ref IS NOT NULL AND block_height IS NOT NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_artifact_network_ref_present: %w", err)
	}
	return nil
}
