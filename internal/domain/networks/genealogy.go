package networks

import (
	"time"

	"github.com/google/uuid"
)

// NetworkGenealogy is a persisted ancestor -> descendant fact between two networks.
type NetworkGenealogy struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AncestorID   uuid.UUID `gorm:"type:uuid;not null;index:idx_network_genealogy_pair,unique,priority:1" json:"ancestor_id"`
	DescendantID uuid.UUID `gorm:"type:uuid;not null;index:idx_network_genealogy_pair,unique,priority:2;index" json:"descendant_id"`
	CreatedAt    time.Time `gorm:"not null;index" json:"created_at"`
}

func (NetworkGenealogy) TableName() string { return "network_genealogy" }

// GenealogyKey is the stable id of an ancestor/descendant pair.
func GenealogyKey(ancestorID, descendantID uuid.UUID) uuid.UUID {
	name := make([]byte, 0, 32)
	name = append(name, ancestorID[:]...)
	name = append(name, descendantID[:]...)
	return uuid.NewSHA1(genealogyNamespace, name)
}

// Direction selects which side of a genealogy a relation search walks.
type Direction string

const (
	DirectionAncestor   Direction = "ancestor"
	DirectionDescendant Direction = "descendant"
)

func (d Direction) Valid() bool {
	return d == DirectionAncestor || d == DirectionDescendant
}
