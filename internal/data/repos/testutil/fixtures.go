package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
)

// SeedNetwork inserts the network observed on chain networkID at (height, hash).
func SeedNetwork(tb testing.TB, ctx context.Context, tx *gorm.DB, networkID string, height int64, hash string) *types.Network {
	tb.Helper()
	n := types.NewNetwork(networkID, "", types.HistoricBlock{Height: height, Hash: hash})
	if err := tx.WithContext(ctx).Create(n).Error; err != nil {
		tb.Fatalf("seed network: %v", err)
	}
	return n
}

// SeedArtifact inserts an artifact with one resolved observation per network.
func SeedArtifact(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, nets ...*types.Network) *types.Artifact {
	tb.Helper()
	a := &types.Artifact{ID: uuid.New(), ContractName: name}
	for _, n := range nets {
		ref := n.ID
		obs := &types.ArtifactNetwork{
			ID:         types.ObservationKey(a.ID, n.NetworkID),
			ArtifactID: a.ID,
			NetworkID:  n.NetworkID,
			NetworkRef: &ref,
		}
		obs.SetBlock(n.HistoricBlock())
		a.Networks = append(a.Networks, obs)
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed artifact: %v", err)
	}
	return a
}
