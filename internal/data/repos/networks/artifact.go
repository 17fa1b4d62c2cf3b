package networks

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	"github.com/yungbote/netgenealogy-backend/internal/platform/dbctx"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
)

type ArtifactRepo interface {
	// Create inserts the artifact together with its observations.
	Create(dbc dbctx.Context, row *types.Artifact) (*types.Artifact, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Artifact, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Artifact, error)

	// ListObservations returns the observations of networkID, optionally restricted to artifactIDs,
	// ordered by artifact creation.
	ListObservations(dbc dbctx.Context, networkID string, artifactIDs []uuid.UUID) ([]*types.ArtifactNetwork, error)
	// ListUnresolved returns observations that carry a transaction hash but no block yet.
	ListUnresolved(dbc dbctx.Context, networkID string, limit int) ([]*types.ArtifactNetwork, error)
	// ResolveObservation records the block and network row an observation points at.
	ResolveObservation(dbc dbctx.Context, id uuid.UUID, block types.HistoricBlock, networkRef uuid.UUID) error
	// UpsertObservations writes observations keyed by (artifact_id, network_id).
	UpsertObservations(dbc dbctx.Context, rows []*types.ArtifactNetwork) error
}

type artifactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	return &artifactRepo{db: db, log: baseLog.With("repo", "ArtifactRepo")}
}

func (r *artifactRepo) Create(dbc dbctx.Context, row *types.Artifact) (*types.Artifact, error) {
	t := dbc.DB(r.db)
	if row == nil {
		return nil, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	for _, obs := range row.Networks {
		if obs == nil {
			continue
		}
		obs.ArtifactID = row.ID
		obs.NetworkID = strings.TrimSpace(obs.NetworkID)
		if obs.ID == uuid.Nil {
			obs.ID = types.ObservationKey(row.ID, obs.NetworkID)
		}
	}
	if err := t.WithContext(dbc.Context()).Create(row).Error; err != nil {
		return nil, mapWriteError(err)
	}
	return row, nil
}

func (r *artifactRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Artifact, error) {
	t := dbc.DB(r.db)
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Artifact
	err := t.WithContext(dbc.Context()).
		Preload("Networks", func(db *gorm.DB) *gorm.DB { return db.Order("network_id ASC") }).
		Where("id = ?", id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *artifactRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Artifact, error) {
	t := dbc.DB(r.db)
	var out []*types.Artifact
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Context()).
		Preload("Networks").
		Where("id IN ?", ids).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *artifactRepo) ListObservations(dbc dbctx.Context, networkID string, artifactIDs []uuid.UUID) ([]*types.ArtifactNetwork, error) {
	t := dbc.DB(r.db)
	var out []*types.ArtifactNetwork
	networkID = strings.TrimSpace(networkID)
	if networkID == "" {
		return out, nil
	}
	q := t.WithContext(dbc.Context()).
		Model(&types.ArtifactNetwork{}).
		Joins("JOIN artifact ON artifact.id = artifact_network.artifact_id AND artifact.deleted_at IS NULL").
		Where("artifact_network.network_id = ?", networkID)
	if len(artifactIDs) > 0 {
		q = q.Where("artifact_network.artifact_id IN ?", artifactIDs)
	}
	if err := q.
		Order("artifact.created_at ASC, artifact_network.id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *artifactRepo) ListUnresolved(dbc dbctx.Context, networkID string, limit int) ([]*types.ArtifactNetwork, error) {
	t := dbc.DB(r.db)
	var out []*types.ArtifactNetwork
	q := t.WithContext(dbc.Context()).
		Where("transaction_hash <> '' AND (block_height IS NULL OR block_hash IS NULL OR network_ref IS NULL)")
	if networkID = strings.TrimSpace(networkID); networkID != "" {
		q = q.Where("network_id = ?", networkID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *artifactRepo) ResolveObservation(dbc dbctx.Context, id uuid.UUID, block types.HistoricBlock, networkRef uuid.UUID) error {
	t := dbc.DB(r.db)
	if id == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Context()).
		Model(&types.ArtifactNetwork{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"block_height": block.Height,
			"block_hash":   types.NormalizeHash(block.Hash),
			"network_ref":  networkRef,
			"updated_at":   time.Now(),
		}).Error
}

func (r *artifactRepo) UpsertObservations(dbc dbctx.Context, rows []*types.ArtifactNetwork) error {
	t := dbc.DB(r.db)
	clean := make([]*types.ArtifactNetwork, 0, len(rows))
	for _, row := range rows {
		if row == nil || row.ArtifactID == uuid.Nil || strings.TrimSpace(row.NetworkID) == "" {
			continue
		}
		row.NetworkID = strings.TrimSpace(row.NetworkID)
		row.ID = types.ObservationKey(row.ArtifactID, row.NetworkID)
		clean = append(clean, row)
	}
	if len(clean) == 0 {
		return nil
	}
	err := t.WithContext(dbc.Context()).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"address", "transaction_hash", "block_height", "block_hash", "network_ref", "updated_at",
			}),
		}).
		Create(&clean).Error
	return mapWriteError(err)
}
