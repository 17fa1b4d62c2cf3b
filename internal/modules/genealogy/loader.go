package genealogy

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	"github.com/yungbote/netgenealogy-backend/internal/observability"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
)

// EdgeStore persists edges and returns their ids; storing an existing edge is not an error.
type EdgeStore interface {
	LoadGenealogyEdges(ctx context.Context, edges []Edge) ([]uuid.UUID, error)
}

// BlockReaderFor returns the chain reader serving a network id.
type BlockReaderFor func(networkID string) (BlockReader, error)

type LoaderDeps struct {
	Relations RelationSource
	Blocks    BlockReaderFor
	Store     EdgeStore
	Search    SearchConfig
	Log       *logger.Logger
}

// Loader builds the genealogy for a network id and stores it.
type Loader struct {
	deps LoaderDeps
	log  *logger.Logger
}

func NewLoader(deps LoaderDeps) *Loader {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{deps: deps, log: log.With("component", "GenealogyLoader")}
}

type LoadResult struct {
	NetworkID        string
	Local            *LocalGenealogy
	Edges            []Edge
	EdgeIDs          []uuid.UUID
	RemoteAncestor   *types.Network
	RemoteDescendant *types.Network
	// RemoteSkipped is set when no chain reader serves the network id.
	RemoteSkipped bool
}

// Plan computes the edges for networkID without persisting them.
func (l *Loader) Plan(ctx context.Context, networkID string, artifacts []Artifact) (LoadResult, error) {
	res := LoadResult{NetworkID: strings.TrimSpace(networkID)}
	res.Local = BuildLocal(ObservationsFor(res.NetworkID, artifacts))
	if res.Local == nil {
		return res, nil
	}

	var reader BlockReader
	if l.deps.Blocks != nil {
		r, err := l.deps.Blocks(res.NetworkID)
		if err != nil {
			l.log.Warn("no chain reader; skipping remote search", "network_id", res.NetworkID, "error", err)
		} else {
			reader = r
		}
	}
	if reader == nil || l.deps.Relations == nil {
		res.RemoteSkipped = true
		res.Edges = append(res.Edges, res.Local.Edges...)
		return res, nil
	}

	finder := NewFinder(l.deps.Relations, reader, l.deps.Search, l.log)

	anc, ancErr := finder.FindRelation(ctx, types.DirectionAncestor, res.Local.Ancestor)
	desc, descErr := finder.FindRelation(ctx, types.DirectionDescendant, res.Local.Descendant)

	edges := make([]Edge, 0, len(res.Local.Edges)+2)
	if anc != nil {
		res.RemoteAncestor = anc
		edges = append(edges, Edge{Ancestor: anc, Descendant: res.Local.Ancestor})
	}
	edges = append(edges, res.Local.Edges...)
	if desc != nil {
		res.RemoteDescendant = desc
		edges = append(edges, Edge{Ancestor: res.Local.Descendant, Descendant: desc})
	}
	res.Edges = edges
	return res, errors.Join(ancErr, descErr)
}

// Load plans the genealogy of networkID and persists every edge found. A chain read failure
// during the remote search is returned after the edges derived so far have been stored.
func (l *Loader) Load(ctx context.Context, networkID string, artifacts []Artifact) (res LoadResult, err error) {
	ctx, span := otel.Tracer("genealogy").Start(ctx, "genealogy.Load")
	span.SetAttributes(
		attribute.String("genealogy.network_id", networkID),
		attribute.Int("genealogy.artifacts", len(artifacts)),
	)
	defer func() {
		span.SetAttributes(attribute.Int("genealogy.edges", len(res.EdgeIDs)))
		observability.Current().ObserveLoad(loadStatus(err), len(res.EdgeIDs))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	res, planErr := l.Plan(ctx, networkID, artifacts)
	if len(res.Edges) > 0 && l.deps.Store != nil {
		ids, storeErr := l.deps.Store.LoadGenealogyEdges(ctx, res.Edges)
		if storeErr != nil {
			return res, errors.Join(planErr, storeErr)
		}
		res.EdgeIDs = ids
	}

	l.log.Info("genealogy loaded",
		"network_id", res.NetworkID,
		"edges", len(res.EdgeIDs),
		"remote_ancestor", res.RemoteAncestor != nil,
		"remote_descendant", res.RemoteDescendant != nil,
		"remote_skipped", res.RemoteSkipped,
	)
	return res, planErr
}

func loadStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrChainRead):
		return "chain_error"
	default:
		return "error"
	}
}
