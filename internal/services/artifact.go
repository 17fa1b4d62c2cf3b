package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/netgenealogy-backend/internal/data/aggregates"
	"github.com/yungbote/netgenealogy-backend/internal/data/repos"
	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	errs "github.com/yungbote/netgenealogy-backend/internal/pkg/errors"
	"github.com/yungbote/netgenealogy-backend/internal/platform/apierr"
	"github.com/yungbote/netgenealogy-backend/internal/platform/dbctx"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
)

const (
	JobTypeNetworkGenealogyLoad    = "network_genealogy_load"
	JobTypeArtifactNetworksResolve = "artifact_networks_resolve"

	EntityTypeNetwork = "network"
)

// ArtifactNetworkInput is an artifact's record of one chain network. Block wins over
// TransactionHash when both are set.
type ArtifactNetworkInput struct {
	Name            string               `json:"name,omitempty"`
	Address         string               `json:"address,omitempty"`
	TransactionHash string               `json:"transaction_hash,omitempty"`
	Block           *types.HistoricBlock `json:"block,omitempty"`
}

type ArtifactInput struct {
	ContractName string                          `json:"contract_name"`
	SourcePath   string                          `json:"source_path,omitempty"`
	Metadata     map[string]any                  `json:"metadata,omitempty"`
	Networks     map[string]ArtifactNetworkInput `json:"networks"`
}

type IngestResult struct {
	Artifact *types.Artifact `json:"artifact"`
	// Unresolved lists network ids whose block could not be determined.
	Unresolved []string        `json:"unresolved"`
	Jobs       []*types.JobRun `json:"jobs"`
}

type ArtifactService interface {
	Ingest(dbc dbctx.Context, in ArtifactInput) (*IngestResult, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Artifact, error)
	// ResolvePending looks up the block of observations that only carry a transaction hash.
	// It returns the network ids that gained a resolved observation.
	ResolvePending(dbc dbctx.Context, networkID string, limit int) ([]string, error)
}

type artifactService struct {
	db        *gorm.DB
	log       *logger.Logger
	tx        aggregates.TxRunner
	artifacts repos.ArtifactRepo
	networks  repos.NetworkRepo
	chains    ChainReaders
	jobs      JobService
}

// NewArtifactService wires ingestion. chains and jobs may be nil.
func NewArtifactService(
	db *gorm.DB,
	baseLog *logger.Logger,
	tx aggregates.TxRunner,
	artifacts repos.ArtifactRepo,
	networks repos.NetworkRepo,
	chains ChainReaders,
	jobs JobService,
) ArtifactService {
	if tx == nil {
		tx = aggregates.NewGormTxRunner(db)
	}
	return &artifactService{
		db:        db,
		log:       baseLog.With("service", "ArtifactService"),
		tx:        tx,
		artifacts: artifacts,
		networks:  networks,
		chains:    chains,
		jobs:      jobs,
	}
}

func (s *artifactService) Ingest(dbc dbctx.Context, in ArtifactInput) (*IngestResult, error) {
	name := strings.TrimSpace(in.ContractName)
	if name == "" {
		return nil, apierr.BadRequest("missing_contract_name", fmt.Errorf("missing contract name: %w", errs.ErrInvalidArgument))
	}
	meta := []byte(`{}`)
	if len(in.Metadata) > 0 {
		b, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, apierr.BadRequest("invalid_metadata", err)
		}
		meta = b
	}

	keys := make([]string, 0, len(in.Networks))
	for k := range in.Networks {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	art := &types.Artifact{
		ID:           uuid.New(),
		ContractName: name,
		SourcePath:   strings.TrimSpace(in.SourcePath),
		Metadata:     datatypes.JSON(meta),
	}
	res := &IngestResult{Artifact: art, Unresolved: []string{}, Jobs: []*types.JobRun{}}
	var nets []*types.Network
	var touched []string

	for _, key := range keys {
		entry := in.Networks[key]
		networkID := strings.TrimSpace(key)
		obs := &types.ArtifactNetwork{
			NetworkID:       networkID,
			Address:         strings.TrimSpace(entry.Address),
			TransactionHash: types.NormalizeHash(entry.TransactionHash),
		}
		block := entry.Block
		if block != nil && (block.Height < 0 || strings.TrimSpace(block.Hash) == "") {
			return nil, apierr.BadRequest("invalid_block", fmt.Errorf("network %s: block needs height and hash: %w", networkID, errs.ErrInvalidArgument))
		}
		if block == nil && obs.TransactionHash != "" {
			block = s.resolveTx(dbc, networkID, obs.TransactionHash)
		}
		if block == nil {
			res.Unresolved = append(res.Unresolved, networkID)
			art.Networks = append(art.Networks, obs)
			continue
		}
		n := types.NewNetwork(networkID, entry.Name, *block)
		ref := n.ID
		obs.SetBlock(*block)
		obs.NetworkRef = &ref
		nets = append(nets, n)
		touched = append(touched, networkID)
		art.Networks = append(art.Networks, obs)
	}

	err := s.tx.InTx(dbc.Context(), func(txc dbctx.Context) error {
		if _, err := s.networks.CreateIgnoreDuplicates(txc, nets); err != nil {
			return fmt.Errorf("store networks: %w", err)
		}
		if _, err := s.artifacts.Create(txc, art); err != nil {
			return fmt.Errorf("store artifact: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repos.ErrConflict) {
			return nil, apierr.New(409, "artifact_conflict", err)
		}
		return nil, err
	}

	res.Jobs = s.enqueueLoads(dbc, touched)
	s.log.Info("artifact ingested",
		"artifact_id", art.ID,
		"contract", art.ContractName,
		"networks", len(art.Networks),
		"unresolved", len(res.Unresolved),
		"jobs", len(res.Jobs),
	)
	return res, nil
}

// resolveTx returns nil when the chain cannot place the transaction; the observation stays incomplete.
func (s *artifactService) resolveTx(dbc dbctx.Context, networkID, txHash string) *types.HistoricBlock {
	if s.chains == nil {
		return nil
	}
	rd, err := s.chains.Reader(networkID)
	if err != nil {
		s.log.Debug("no chain reader for transaction lookup", "network_id", networkID, "error", err)
		return nil
	}
	b, err := rd.TransactionBlock(dbc.Context(), txHash)
	if err != nil {
		s.log.Warn("transaction lookup failed", "network_id", networkID, "tx", txHash, "error", err)
		return nil
	}
	return b
}

func (s *artifactService) enqueueLoads(dbc dbctx.Context, networkIDs []string) []*types.JobRun {
	out := []*types.JobRun{}
	if s.jobs == nil {
		return out
	}
	seen := map[string]bool{}
	for _, id := range networkIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		job, created, err := s.jobs.EnqueueIfIdle(dbctx.Context{Ctx: dbc.Ctx}, JobTypeNetworkGenealogyLoad, EntityTypeNetwork, id, map[string]any{
			"network_id": id,
		})
		if err != nil {
			s.log.Warn("enqueue genealogy load failed", "network_id", id, "error", err)
			continue
		}
		if created && job != nil {
			out = append(out, job)
		}
	}
	return out
}

func (s *artifactService) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Artifact, error) {
	if id == uuid.Nil {
		return nil, apierr.BadRequest("missing_id", fmt.Errorf("missing artifact id: %w", errs.ErrInvalidArgument))
	}
	a, err := s.artifacts.GetByID(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apierr.NotFound("artifact_not_found", fmt.Errorf("artifact %s: %w", id, errs.ErrNotFound))
	}
	return a, nil
}

func (s *artifactService) ResolvePending(dbc dbctx.Context, networkID string, limit int) ([]string, error) {
	if s.chains == nil {
		return nil, fmt.Errorf("chain readers: %w", errs.ErrNotConfigured)
	}
	if limit <= 0 {
		limit = 500
	}
	rdbc := dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}
	rows, err := s.artifacts.ListUnresolved(rdbc, networkID, limit)
	if err != nil {
		return nil, err
	}

	var touched []string
	seen := map[string]bool{}
	for _, row := range rows {
		if err := dbc.Context().Err(); err != nil {
			return touched, err
		}
		block := row.Block()
		if block == nil {
			block = s.resolveTx(dbc, row.NetworkID, row.TransactionHash)
		}
		if block == nil {
			continue
		}
		n := types.NewNetwork(row.NetworkID, "", *block)
		err := s.tx.InTx(dbc.Context(), func(txc dbctx.Context) error {
			if _, err := s.networks.CreateIgnoreDuplicates(txc, []*types.Network{n}); err != nil {
				return err
			}
			return s.artifacts.ResolveObservation(txc, row.ID, *block, n.ID)
		})
		if err != nil {
			return touched, fmt.Errorf("resolve observation %s: %w", row.ID, err)
		}
		if !seen[row.NetworkID] {
			seen[row.NetworkID] = true
			touched = append(touched, row.NetworkID)
		}
	}
	return touched, nil
}
