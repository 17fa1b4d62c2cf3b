package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/netgenealogy-backend/internal/data/aggregates"
	"github.com/yungbote/netgenealogy-backend/internal/data/graph"
	"github.com/yungbote/netgenealogy-backend/internal/data/repos"
	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	"github.com/yungbote/netgenealogy-backend/internal/modules/genealogy"
	errs "github.com/yungbote/netgenealogy-backend/internal/pkg/errors"
	"github.com/yungbote/netgenealogy-backend/internal/platform/apierr"
	"github.com/yungbote/netgenealogy-backend/internal/platform/chainrpc"
	"github.com/yungbote/netgenealogy-backend/internal/platform/dbctx"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
	"github.com/yungbote/netgenealogy-backend/internal/platform/neo4jdb"
)

// ChainReaders hands out the chain reader for a network id.
type ChainReaders interface {
	Reader(networkID string) (chainrpc.Reader, error)
}

// NetworkGenealogyView is a stored network with every edge touching it.
type NetworkGenealogyView struct {
	Network     *types.Network            `json:"network"`
	Ancestors   []*types.Network          `json:"ancestors"`
	Descendants []*types.Network          `json:"descendants"`
	Edges       []*types.NetworkGenealogy `json:"edges"`
}

type GenealogyService interface {
	// LoadForNetwork builds and stores the genealogy of networkID from the given artifacts,
	// or from every artifact observing it when artifactIDs is empty.
	LoadForNetwork(dbc dbctx.Context, networkID string, artifactIDs []uuid.UUID) (genealogy.LoadResult, error)
	// PlanForNetwork is LoadForNetwork without persistence.
	PlanForNetwork(dbc dbctx.Context, networkID string, artifactIDs []uuid.UUID) (genealogy.LoadResult, error)
	ListNetworks(dbc dbctx.Context, networkID string, limit int) ([]*types.Network, error)
	GetGenealogy(dbc dbctx.Context, id uuid.UUID) (*NetworkGenealogyView, error)
}

type genealogyService struct {
	db        *gorm.DB
	log       *logger.Logger
	networks  repos.NetworkRepo
	edges     repos.NetworkGenealogyRepo
	artifacts repos.ArtifactRepo
	loader    *genealogy.Loader
}

type GenealogyServiceDeps struct {
	DB        *gorm.DB
	Log       *logger.Logger
	Networks  repos.NetworkRepo
	Edges     repos.NetworkGenealogyRepo
	Artifacts repos.ArtifactRepo
	Tx        aggregates.TxRunner
	Graph     *neo4jdb.Client
	// Chains may be nil; the remote search is then skipped.
	Chains ChainReaders
	Search genealogy.SearchConfig
}

func NewGenealogyService(deps GenealogyServiceDeps) GenealogyService {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("service", "GenealogyService")
	tx := deps.Tx
	if tx == nil {
		tx = aggregates.NewGormTxRunner(deps.DB)
	}

	var blocks genealogy.BlockReaderFor
	if deps.Chains != nil {
		chains := deps.Chains
		blocks = func(networkID string) (genealogy.BlockReader, error) {
			rd, err := chains.Reader(networkID)
			if err != nil {
				return nil, err
			}
			return rd, nil
		}
	}

	loader := genealogy.NewLoader(genealogy.LoaderDeps{
		Relations: &relationSource{networks: deps.Networks},
		Blocks:    blocks,
		Store: &edgeStore{
			tx:       tx,
			networks: deps.Networks,
			edges:    deps.Edges,
			graph:    deps.Graph,
			log:      log,
		},
		Search: deps.Search,
		Log:    log,
	})

	return &genealogyService{
		db:        deps.DB,
		log:       log,
		networks:  deps.Networks,
		edges:     deps.Edges,
		artifacts: deps.Artifacts,
		loader:    loader,
	}
}

func (s *genealogyService) LoadForNetwork(dbc dbctx.Context, networkID string, artifactIDs []uuid.UUID) (genealogy.LoadResult, error) {
	networkID = strings.TrimSpace(networkID)
	if networkID == "" {
		return genealogy.LoadResult{}, apierr.BadRequest("missing_network_id", fmt.Errorf("missing network id: %w", errs.ErrInvalidArgument))
	}
	arts, err := s.collectArtifacts(dbc, networkID, artifactIDs)
	if err != nil {
		return genealogy.LoadResult{NetworkID: networkID}, err
	}
	return s.loader.Load(dbc.Context(), networkID, arts)
}

func (s *genealogyService) PlanForNetwork(dbc dbctx.Context, networkID string, artifactIDs []uuid.UUID) (genealogy.LoadResult, error) {
	networkID = strings.TrimSpace(networkID)
	if networkID == "" {
		return genealogy.LoadResult{}, apierr.BadRequest("missing_network_id", fmt.Errorf("missing network id: %w", errs.ErrInvalidArgument))
	}
	arts, err := s.collectArtifacts(dbc, networkID, artifactIDs)
	if err != nil {
		return genealogy.LoadResult{NetworkID: networkID}, err
	}
	return s.loader.Plan(dbc.Context(), networkID, arts)
}

// collectArtifacts turns stored observations of networkID into the builder's artifact view.
// Observations without a resolved network row keep only their block.
func (s *genealogyService) collectArtifacts(dbc dbctx.Context, networkID string, artifactIDs []uuid.UUID) ([]genealogy.Artifact, error) {
	rdbc := dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}
	rows, err := s.artifacts.ListObservations(rdbc, networkID, artifactIDs)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}

	refs := make([]uuid.UUID, 0, len(rows))
	seenRef := map[uuid.UUID]bool{}
	for _, row := range rows {
		if row == nil || row.NetworkRef == nil || *row.NetworkRef == uuid.Nil || seenRef[*row.NetworkRef] {
			continue
		}
		seenRef[*row.NetworkRef] = true
		refs = append(refs, *row.NetworkRef)
	}
	byID := map[uuid.UUID]*types.Network{}
	if len(refs) > 0 {
		nets, err := s.networks.GetByIDs(rdbc, refs)
		if err != nil {
			return nil, fmt.Errorf("load networks: %w", err)
		}
		for _, n := range nets {
			if n != nil {
				byID[n.ID] = n
			}
		}
	}

	out := make([]genealogy.Artifact, 0, len(rows))
	index := map[uuid.UUID]int{}
	for _, row := range rows {
		if row == nil {
			continue
		}
		ob := genealogy.Observation{Block: row.Block()}
		if row.NetworkRef != nil {
			ob.Network = byID[*row.NetworkRef]
		}
		i, ok := index[row.ArtifactID]
		if !ok {
			i = len(out)
			index[row.ArtifactID] = i
			out = append(out, genealogy.Artifact{ID: row.ArtifactID, Networks: map[string]genealogy.Observation{}})
		}
		out[i].Networks[row.NetworkID] = ob
	}
	return out, nil
}

func (s *genealogyService) ListNetworks(dbc dbctx.Context, networkID string, limit int) ([]*types.Network, error) {
	networkID = strings.TrimSpace(networkID)
	if networkID == "" {
		return nil, apierr.BadRequest("missing_network_id", fmt.Errorf("missing network id: %w", errs.ErrInvalidArgument))
	}
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	return s.networks.ListByNetworkID(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, networkID, limit)
}

func (s *genealogyService) GetGenealogy(dbc dbctx.Context, id uuid.UUID) (*NetworkGenealogyView, error) {
	if id == uuid.Nil {
		return nil, apierr.BadRequest("missing_id", fmt.Errorf("missing network id: %w", errs.ErrInvalidArgument))
	}
	rdbc := dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}
	n, err := s.networks.GetByID(rdbc, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, apierr.NotFound("network_not_found", fmt.Errorf("network %s: %w", id, errs.ErrNotFound))
	}
	edges, err := s.edges.ListTouching(rdbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}

	var ancIDs, descIDs []uuid.UUID
	for _, e := range edges {
		switch {
		case e.DescendantID == id:
			ancIDs = append(ancIDs, e.AncestorID)
		case e.AncestorID == id:
			descIDs = append(descIDs, e.DescendantID)
		}
	}
	view := &NetworkGenealogyView{
		Network:     n,
		Ancestors:   []*types.Network{},
		Descendants: []*types.Network{},
		Edges:       edges,
	}
	if len(ancIDs) > 0 {
		if view.Ancestors, err = s.networks.GetByIDs(rdbc, ancIDs); err != nil {
			return nil, err
		}
	}
	if len(descIDs) > 0 {
		if view.Descendants, err = s.networks.GetByIDs(rdbc, descIDs); err != nil {
			return nil, err
		}
	}
	return view, nil
}

type relationSource struct {
	networks repos.NetworkRepo
}

func (r *relationSource) PossibleRelations(ctx context.Context, q genealogy.RelationQuery) (genealogy.RelationPage, error) {
	cands, exclude, err := r.networks.PossibleRelations(dbctx.Context{Ctx: ctx}, q.NetworkID, q.Direction, q.ExcludeIDs, q.Limit)
	if err != nil {
		return genealogy.RelationPage{}, err
	}
	return genealogy.RelationPage{Candidates: cands, ExcludeIDs: exclude}, nil
}

// edgeStore writes edges in one transaction, then mirrors them into the graph store.
type edgeStore struct {
	tx       aggregates.TxRunner
	networks repos.NetworkRepo
	edges    repos.NetworkGenealogyRepo
	graph    *neo4jdb.Client
	log      *logger.Logger
}

func (s *edgeStore) LoadGenealogyEdges(ctx context.Context, edges []genealogy.Edge) ([]uuid.UUID, error) {
	rows := make([]*types.NetworkGenealogy, 0, len(edges))
	nets := make([]*types.Network, 0, len(edges)*2)
	seen := map[uuid.UUID]bool{}
	addNet := func(n *types.Network) {
		if n != nil && !seen[n.ID] {
			seen[n.ID] = true
			nets = append(nets, n)
		}
	}
	for _, e := range edges {
		if e.Ancestor == nil || e.Descendant == nil {
			continue
		}
		addNet(e.Ancestor)
		addNet(e.Descendant)
		rows = append(rows, &types.NetworkGenealogy{AncestorID: e.Ancestor.ID, DescendantID: e.Descendant.ID})
	}
	if len(rows) == 0 {
		return []uuid.UUID{}, nil
	}

	var ids []uuid.UUID
	err := s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.networks.CreateIgnoreDuplicates(dbc, nets); err != nil {
			return fmt.Errorf("store networks: %w", err)
		}
		out, err := s.edges.LoadGenealogyEdges(dbc, rows)
		if err != nil {
			return fmt.Errorf("store edges: %w", err)
		}
		ids = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.graph.Enabled() {
		if gerr := graph.UpsertNetworkGenealogy(ctx, s.graph, s.log, nets, rows); gerr != nil {
			s.log.Warn("graph mirror failed", "edges", len(rows), "error", gerr)
		}
	}
	return ids, nil
}
