package genealogy

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
)

func netAt(networkID string, height int64) *types.Network {
	return types.NewNetwork(networkID, "", types.HistoricBlock{Height: height, Hash: fmt.Sprintf("0x%x", height)})
}

func obs(n *types.Network) Observation {
	b := n.HistoricBlock()
	return Observation{Block: &b, Network: n}
}

// scriptedSource returns pages in order and records each query.
type scriptedSource struct {
	pages   []RelationPage
	errs    []error
	queries []RelationQuery
}

func (s *scriptedSource) PossibleRelations(_ context.Context, q RelationQuery) (RelationPage, error) {
	i := len(s.queries)
	s.queries = append(s.queries, q)
	if i < len(s.errs) && s.errs[i] != nil {
		return RelationPage{}, s.errs[i]
	}
	if i >= len(s.pages) {
		return RelationPage{ExcludeIDs: q.ExcludeIDs}, nil
	}
	return s.pages[i], nil
}

// storeSource answers from an in-memory network list the way the database query does.
type storeSource struct {
	networks []*types.Network
	calls    int
}

func (s *storeSource) PossibleRelations(_ context.Context, q RelationQuery) (RelationPage, error) {
	s.calls++
	var target *types.Network
	for _, n := range s.networks {
		if n.ID == q.NetworkID {
			target = n
		}
	}
	if target == nil {
		return RelationPage{}, fmt.Errorf("unknown network %s", q.NetworkID)
	}
	skip := map[uuid.UUID]bool{target.ID: true}
	for _, id := range q.ExcludeIDs {
		skip[id] = true
	}
	var out []*types.Network
	for _, n := range s.networks {
		if skip[n.ID] || n.NetworkID != target.NetworkID {
			continue
		}
		if q.Direction == types.DirectionAncestor && n.Height < target.Height ||
			q.Direction == types.DirectionDescendant && n.Height > target.Height {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.Direction == types.DirectionAncestor {
			return out[i].Height > out[j].Height
		}
		return out[i].Height < out[j].Height
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	next := append(append([]uuid.UUID{}, q.ExcludeIDs...), idsOf(out)...)
	return RelationPage{Candidates: out, ExcludeIDs: next}, nil
}

// fakeChain maps heights to canonical hashes and records every read.
type fakeChain struct {
	hashes map[int64]string
	failAt map[int64]error
	reads  []int64
}

func (c *fakeChain) BlockByHeight(_ context.Context, height int64) (*types.HistoricBlock, error) {
	c.reads = append(c.reads, height)
	if err := c.failAt[height]; err != nil {
		return nil, err
	}
	h, ok := c.hashes[height]
	if !ok {
		return nil, nil
	}
	return &types.HistoricBlock{Height: height, Hash: h}, nil
}

type memStore struct {
	edges []Edge
	err   error
}

func (m *memStore) LoadGenealogyEdges(_ context.Context, edges []Edge) ([]uuid.UUID, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.edges = append(m.edges, edges...)
	ids := make([]uuid.UUID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, types.GenealogyKey(e.Ancestor.ID, e.Descendant.ID))
	}
	return ids, nil
}

func idsOf(ns []*types.Network) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.ID)
	}
	return out
}

func edgeHeights(edges []Edge) [][2]int64 {
	out := make([][2]int64, 0, len(edges))
	for _, e := range edges {
		out = append(out, [2]int64{e.Ancestor.Height, e.Descendant.Height})
	}
	return out
}
