package networks

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Artifact is a compiled contract artifact; Networks holds one observation per chain network id.
type Artifact struct {
	ID           uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	ContractName string             `gorm:"column:contract_name;not null;index" json:"contract_name"`
	SourcePath   string             `gorm:"column:source_path" json:"source_path,omitempty"`
	Metadata     datatypes.JSON     `gorm:"column:metadata" json:"metadata,omitempty"`
	Networks     []*ArtifactNetwork `gorm:"foreignKey:ArtifactID" json:"networks,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Artifact) TableName() string { return "artifact" }

// ArtifactNetwork is one artifact's sighting of a network. Block and NetworkRef are optional:
// a sighting that lacks either cannot take part in a genealogy.
type ArtifactNetwork struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ArtifactID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_artifact_network,unique,priority:1" json:"artifact_id"`
	NetworkID       string     `gorm:"column:network_id;not null;index:idx_artifact_network,unique,priority:2;index" json:"network_id"`
	Address         string     `gorm:"column:address" json:"address,omitempty"`
	TransactionHash string     `gorm:"column:transaction_hash" json:"transaction_hash,omitempty"`
	BlockHeight     *int64     `gorm:"column:block_height" json:"block_height,omitempty"`
	BlockHash       *string    `gorm:"column:block_hash" json:"block_hash,omitempty"`
	NetworkRef      *uuid.UUID `gorm:"type:uuid;column:network_ref;index" json:"network_ref,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ArtifactNetwork) TableName() string { return "artifact_network" }

// Block returns the observed block, or nil when height or hash is missing.
func (a *ArtifactNetwork) Block() *HistoricBlock {
	if a == nil || a.BlockHeight == nil || a.BlockHash == nil || strings.TrimSpace(*a.BlockHash) == "" {
		return nil
	}
	return &HistoricBlock{Height: *a.BlockHeight, Hash: NormalizeHash(*a.BlockHash)}
}

// SetBlock records the observed block.
func (a *ArtifactNetwork) SetBlock(b HistoricBlock) {
	h := b.Height
	hash := NormalizeHash(b.Hash)
	a.BlockHeight = &h
	a.BlockHash = &hash
}

// ObservationKey is the stable id of an artifact's sighting of a network id.
func ObservationKey(artifactID uuid.UUID, networkID string) uuid.UUID {
	name := make([]byte, 0, 16+len(networkID))
	name = append(name, artifactID[:]...)
	name = append(name, strings.TrimSpace(networkID)...)
	return uuid.NewSHA1(observationNS, name)
}
