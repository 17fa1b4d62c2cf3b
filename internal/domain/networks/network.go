package networks

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	networkNamespace   = uuid.MustParse("6f1d3a52-8c0e-4b7e-9d41-2a7f0c5e9b13")
	genealogyNamespace = uuid.MustParse("b8e2c4f6-1a3d-4e5f-8a7b-9c0d1e2f3a4b")
	observationNS      = uuid.MustParse("0d4c9e21-7b6a-4f38-a1e5-3c2b9d8f7e60")
)

// HistoricBlock anchors a network at a block in its chain's history.
type HistoricBlock struct {
	Height int64  `json:"height"`
	Hash   string `json:"hash"`
}

// NormalizeHash lowercases a hex hash and ensures the 0x prefix.
func NormalizeHash(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if h == "" {
		return ""
	}
	if !strings.HasPrefix(h, "0x") {
		h = "0x" + h
	}
	return h
}

// SameBlock reports whether two hashes name the same block after normalization.
func SameBlock(a, b string) bool {
	a, b = NormalizeHash(a), NormalizeHash(b)
	return a != "" && a == b
}

// Network is a chain network observed at a historic block. Rows are immutable once written.
type Network struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name" json:"name,omitempty"`
	NetworkID string    `gorm:"column:network_id;not null;index:idx_network_chain_height,priority:1" json:"network_id"`
	Height    int64     `gorm:"column:height;not null;index:idx_network_chain_height,priority:2" json:"height"`
	BlockHash string    `gorm:"column:block_hash;not null" json:"block_hash"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Network) TableName() string { return "network" }

func (n *Network) HistoricBlock() HistoricBlock {
	if n == nil {
		return HistoricBlock{}
	}
	return HistoricBlock{Height: n.Height, Hash: n.BlockHash}
}

// NetworkKey is the stable id of a network: the same chain id and block always map to the same row.
func NetworkKey(networkID string, block HistoricBlock) uuid.UUID {
	name := strings.TrimSpace(networkID) + ":" + strconv.FormatInt(block.Height, 10) + ":" + NormalizeHash(block.Hash)
	return uuid.NewSHA1(networkNamespace, []byte(name))
}

// NewNetwork builds a network row with its stable id.
func NewNetwork(networkID, name string, block HistoricBlock) *Network {
	return &Network{
		ID:        NetworkKey(networkID, block),
		Name:      strings.TrimSpace(name),
		NetworkID: strings.TrimSpace(networkID),
		Height:    block.Height,
		BlockHash: NormalizeHash(block.Hash),
	}
}
