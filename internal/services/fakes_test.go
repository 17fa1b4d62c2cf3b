package services

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/netgenealogy-backend/internal/data/repos"
	"github.com/yungbote/netgenealogy-backend/internal/data/repos/testutil"
	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	errs "github.com/yungbote/netgenealogy-backend/internal/pkg/errors"
	"github.com/yungbote/netgenealogy-backend/internal/platform/chainrpc"
)

// fakeChain answers every height with hashOf(height) and knows the listed transactions.
type fakeChain struct {
	txs map[string]types.HistoricBlock
}

func hashOf(h int64) string { return fmt.Sprintf("0x%x", h) }

func (c *fakeChain) BlockByHeight(_ context.Context, height int64) (*types.HistoricBlock, error) {
	return &types.HistoricBlock{Height: height, Hash: hashOf(height)}, nil
}

func (c *fakeChain) TransactionBlock(_ context.Context, txHash string) (*types.HistoricBlock, error) {
	b, ok := c.txs[txHash]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

type fakeChains map[string]*fakeChain

func (f fakeChains) Reader(networkID string) (chainrpc.Reader, error) {
	c, ok := f[networkID]
	if !ok {
		return nil, fmt.Errorf("network %s: %w", networkID, errs.ErrNotConfigured)
	}
	return c, nil
}

type testEnv struct {
	db        *gorm.DB
	networks  repos.NetworkRepo
	edges     repos.NetworkGenealogyRepo
	artifacts repos.ArtifactRepo
	jobRuns   repos.JobRunRepo
	jobs      JobService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	env := &testEnv{
		db:        db,
		networks:  repos.NewNetworkRepo(db, log),
		edges:     repos.NewNetworkGenealogyRepo(db, log),
		artifacts: repos.NewArtifactRepo(db, log),
		jobRuns:   repos.NewJobRunRepo(db, log),
	}
	env.jobs = NewJobService(db, log, env.jobRuns, nil, nil, "")
	return env
}

func (e *testEnv) artifactService(t *testing.T, chains ChainReaders) ArtifactService {
	t.Helper()
	return NewArtifactService(e.db, testutil.Logger(t), nil, e.artifacts, e.networks, chains, e.jobs)
}

func (e *testEnv) genealogyService(t *testing.T, chains ChainReaders) GenealogyService {
	t.Helper()
	return NewGenealogyService(GenealogyServiceDeps{
		DB:        e.db,
		Log:       testutil.Logger(t),
		Networks:  e.networks,
		Edges:     e.edges,
		Artifacts: e.artifacts,
		Chains:    chains,
	})
}
