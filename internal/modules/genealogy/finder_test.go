package genealogy

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
)

func TestFindRelation_StopsAtFirstConfirmedCandidate(t *testing.T) {
	target := netAt("1", 100)
	c1, c2, c3 := netAt("1", 90), netAt("1", 80), netAt("1", 70)
	src := &scriptedSource{pages: []RelationPage{{
		Candidates: []*types.Network{c1, c2, c3},
		ExcludeIDs: idsOf([]*types.Network{c1, c2, c3}),
	}}}
	chain := &fakeChain{hashes: map[int64]string{90: "0xdead", 80: c2.BlockHash, 70: c3.BlockHash}}

	got, err := NewFinder(src, chain, SearchConfig{PageSize: 5}, nil).FindRelation(context.Background(), types.DirectionAncestor, target)
	if err != nil {
		t.Fatalf("FindRelation: %v", err)
	}
	if got != c2 {
		t.Fatalf("FindRelation: want=80 got=%v", got)
	}
	if len(chain.reads) != 2 || chain.reads[0] != 90 || chain.reads[1] != 80 {
		t.Fatalf("chain reads: want=[90 80] got=%v", chain.reads)
	}
	if len(src.queries) != 1 {
		t.Fatalf("queries: want=1 got=%d", len(src.queries))
	}
	if q := src.queries[0]; q.NetworkID != target.ID || q.Direction != types.DirectionAncestor || len(q.ExcludeIDs) != 0 || q.Limit != 5 {
		t.Fatalf("first query: got=%+v", q)
	}
}

func TestFindRelation_EmptyCandidatesIsOneRound(t *testing.T) {
	src := &scriptedSource{}
	chain := &fakeChain{}

	got, err := NewFinder(src, chain, SearchConfig{}, nil).FindRelation(context.Background(), types.DirectionDescendant, netAt("1", 1))
	if err != nil || got != nil {
		t.Fatalf("FindRelation: want=(nil,nil) got=(%v,%v)", got, err)
	}
	if len(src.queries) != 1 || len(chain.reads) != 0 {
		t.Fatalf("want 1 query and 0 reads, got %d and %d", len(src.queries), len(chain.reads))
	}
}

func TestFindRelation_TwoRoundsThenExhausted(t *testing.T) {
	c := netAt("1", 5)
	src := &scriptedSource{pages: []RelationPage{
		{Candidates: []*types.Network{c}, ExcludeIDs: []uuid.UUID{c.ID}},
	}}
	chain := &fakeChain{hashes: map[int64]string{5: "0xother"}}

	got, err := NewFinder(src, chain, SearchConfig{}, nil).FindRelation(context.Background(), types.DirectionAncestor, netAt("1", 9))
	if err != nil || got != nil {
		t.Fatalf("FindRelation: want=(nil,nil) got=(%v,%v)", got, err)
	}
	if len(src.queries) != 2 {
		t.Fatalf("queries: want=2 got=%d", len(src.queries))
	}
	if ex := src.queries[1].ExcludeIDs; len(ex) != 1 || ex[0] != c.ID {
		t.Fatalf("second query exclusion: want=[%s] got=%v", c.ID, ex)
	}
}

func TestFindRelation_PagesUntilConfirmed(t *testing.T) {
	target := netAt("1", 100)
	all := []*types.Network{target}
	hashes := map[int64]string{}
	for h := int64(99); h >= 80; h-- {
		n := netAt("1", h)
		all = append(all, n)
		hashes[h] = "0xfork"
	}
	hashes[83] = netAt("1", 83).BlockHash
	src := &storeSource{networks: all}
	chain := &fakeChain{hashes: hashes}

	got, err := NewFinder(src, chain, SearchConfig{PageSize: 5}, nil).FindRelation(context.Background(), types.DirectionAncestor, target)
	if err != nil {
		t.Fatalf("FindRelation: %v", err)
	}
	if got == nil || got.Height != 83 {
		t.Fatalf("FindRelation: want=83 got=%v", got)
	}
	if src.calls != 4 {
		t.Fatalf("rounds: want=4 got=%d", src.calls)
	}
	if len(chain.reads) != 17 {
		t.Fatalf("reads: want=17 got=%d", len(chain.reads))
	}
}

func TestFindRelation_QueryFailureEndsSearch(t *testing.T) {
	c := netAt("1", 5)
	src := &scriptedSource{
		pages: []RelationPage{{Candidates: []*types.Network{c}, ExcludeIDs: []uuid.UUID{c.ID}}},
		errs:  []error{nil, errors.New("db down")},
	}
	chain := &fakeChain{hashes: map[int64]string{5: "0xother"}}

	got, err := NewFinder(src, chain, SearchConfig{}, nil).FindRelation(context.Background(), types.DirectionAncestor, netAt("1", 9))
	if err != nil || got != nil {
		t.Fatalf("FindRelation: want=(nil,nil) got=(%v,%v)", got, err)
	}
	if len(src.queries) != 2 || len(chain.reads) != 1 {
		t.Fatalf("want 2 queries and 1 read, got %d and %d", len(src.queries), len(chain.reads))
	}
}

func TestFindRelation_ChainErrorPropagates(t *testing.T) {
	c := netAt("1", 5)
	src := &scriptedSource{pages: []RelationPage{{Candidates: []*types.Network{c}, ExcludeIDs: []uuid.UUID{c.ID}}}}
	boom := errors.New("connection refused")
	chain := &fakeChain{failAt: map[int64]error{5: boom}}

	got, err := NewFinder(src, chain, SearchConfig{}, nil).FindRelation(context.Background(), types.DirectionAncestor, netAt("1", 9))
	if got != nil {
		t.Fatalf("FindRelation: want nil network got=%v", got)
	}
	if !errors.Is(err, ErrChainRead) || !errors.Is(err, boom) {
		t.Fatalf("FindRelation: want ErrChainRead wrapping %v, got=%v", boom, err)
	}
}

func TestFindRelation_StopsWhenExclusionDoesNotGrow(t *testing.T) {
	c := netAt("1", 5)
	page := RelationPage{Candidates: []*types.Network{c}}
	src := &scriptedSource{pages: []RelationPage{page, page, page}}
	chain := &fakeChain{}

	got, err := NewFinder(src, chain, SearchConfig{}, nil).FindRelation(context.Background(), types.DirectionAncestor, netAt("1", 9))
	if err != nil || got != nil {
		t.Fatalf("FindRelation: want=(nil,nil) got=(%v,%v)", got, err)
	}
	if len(src.queries) != 1 {
		t.Fatalf("queries: want=1 got=%d", len(src.queries))
	}
}

func TestFindRelation_MaxRounds(t *testing.T) {
	target := netAt("1", 100)
	all := []*types.Network{target}
	for h := int64(1); h < 100; h++ {
		all = append(all, netAt("1", h))
	}
	src := &storeSource{networks: all}
	chain := &fakeChain{}

	got, err := NewFinder(src, chain, SearchConfig{PageSize: 2, MaxRounds: 3}, nil).FindRelation(context.Background(), types.DirectionAncestor, target)
	if err != nil || got != nil {
		t.Fatalf("FindRelation: want=(nil,nil) got=(%v,%v)", got, err)
	}
	if src.calls != 3 || len(chain.reads) != 6 {
		t.Fatalf("want 3 rounds and 6 reads, got %d and %d", src.calls, len(chain.reads))
	}
}

func TestFindRelation_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &scriptedSource{}
	_, err := NewFinder(src, &fakeChain{}, SearchConfig{}, nil).FindRelation(ctx, types.DirectionAncestor, netAt("1", 1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("FindRelation: want context.Canceled got=%v", err)
	}
	if len(src.queries) != 0 {
		t.Fatalf("queries: want=0 got=%d", len(src.queries))
	}
}
