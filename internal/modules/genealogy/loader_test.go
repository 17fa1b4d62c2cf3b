package genealogy

import (
	"context"
	"errors"
	"fmt"
	"testing"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	errs "github.com/yungbote/netgenealogy-backend/internal/pkg/errors"
)

func artifactsAt(networkID string, nets ...Observation) []Artifact {
	out := make([]Artifact, 0, len(nets))
	for _, o := range nets {
		out = append(out, Artifact{Networks: map[string]Observation{networkID: o}})
	}
	return out
}

func readerFor(r BlockReader) BlockReaderFor {
	return func(string) (BlockReader, error) { return r, nil }
}

func TestLoader_EndToEnd(t *testing.T) {
	n50, n100, n150, n200, n300 := netAt("1", 50), netAt("1", 100), netAt("1", 150), netAt("1", 200), netAt("1", 300)
	src := &storeSource{networks: []*types.Network{n50, n100, n150, n200, n300}}
	chain := &fakeChain{hashes: map[int64]string{50: n50.BlockHash, 300: n300.BlockHash}}
	store := &memStore{}

	l := NewLoader(LoaderDeps{Relations: src, Blocks: readerFor(chain), Store: store, Search: SearchConfig{PageSize: 5}})
	res, err := l.Load(context.Background(), "1", artifactsAt("1", obs(n100), obs(n200), obs(n150)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := fmt.Sprint(edgeHeights(store.edges))
	if want := "[[50 100] [100 150] [150 200] [200 300]]"; got != want {
		t.Fatalf("stored edges: want=%s got=%s", want, got)
	}
	if len(res.EdgeIDs) != 4 {
		t.Fatalf("edge ids: want=4 got=%d", len(res.EdgeIDs))
	}
	if res.RemoteAncestor != n50 || res.RemoteDescendant != n300 {
		t.Fatalf("remote relations: got ancestor=%v descendant=%v", res.RemoteAncestor, res.RemoteDescendant)
	}
}

func TestLoader_NoObservations(t *testing.T) {
	src := &scriptedSource{}
	store := &memStore{}
	l := NewLoader(LoaderDeps{Relations: src, Blocks: readerFor(&fakeChain{}), Store: store})

	res, err := l.Load(context.Background(), "1", artifactsAt("3", obs(netAt("3", 1))))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Local != nil || len(store.edges) != 0 || len(src.queries) != 0 {
		t.Fatalf("Load: want no work, got local=%v edges=%d queries=%d", res.Local, len(store.edges), len(src.queries))
	}
}

func TestLoader_SingleObservationStillSearches(t *testing.T) {
	n10, n20 := netAt("1", 10), netAt("1", 20)
	src := &storeSource{networks: []*types.Network{n10, n20}}
	chain := &fakeChain{hashes: map[int64]string{10: n10.BlockHash}}
	store := &memStore{}
	l := NewLoader(LoaderDeps{Relations: src, Blocks: readerFor(chain), Store: store})

	res, err := l.Load(context.Background(), "1", artifactsAt("1", obs(n20)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := fmt.Sprint(edgeHeights(store.edges)); got != "[[10 20]]" {
		t.Fatalf("stored edges: want=[[10 20]] got=%s", got)
	}
	if res.RemoteDescendant != nil {
		t.Fatalf("remote descendant: want nil got=%v", res.RemoteDescendant)
	}
}

func TestLoader_ChainErrorPersistsDerivedEdges(t *testing.T) {
	n50, n100, n200, n300 := netAt("1", 50), netAt("1", 100), netAt("1", 200), netAt("1", 300)
	src := &storeSource{networks: []*types.Network{n50, n100, n200, n300}}
	boom := errors.New("node unavailable")
	chain := &fakeChain{
		hashes: map[int64]string{300: n300.BlockHash},
		failAt: map[int64]error{50: boom},
	}
	store := &memStore{}
	l := NewLoader(LoaderDeps{Relations: src, Blocks: readerFor(chain), Store: store})

	res, err := l.Load(context.Background(), "1", artifactsAt("1", obs(n100), obs(n200)))
	if !errors.Is(err, ErrChainRead) || !errors.Is(err, boom) {
		t.Fatalf("Load: want ErrChainRead wrapping %v, got=%v", boom, err)
	}
	if got := fmt.Sprint(edgeHeights(store.edges)); got != "[[100 200] [200 300]]" {
		t.Fatalf("stored edges: want=[[100 200] [200 300]] got=%s", got)
	}
	if res.RemoteAncestor != nil || res.RemoteDescendant != n300 {
		t.Fatalf("remote relations: got ancestor=%v descendant=%v", res.RemoteAncestor, res.RemoteDescendant)
	}
}

func TestLoader_StoreErrorReturned(t *testing.T) {
	n1, n2 := netAt("1", 1), netAt("1", 2)
	storeErr := errors.New("insert failed")
	l := NewLoader(LoaderDeps{
		Relations: &scriptedSource{},
		Blocks:    readerFor(&fakeChain{}),
		Store:     &memStore{err: storeErr},
	})
	_, err := l.Load(context.Background(), "1", artifactsAt("1", obs(n1), obs(n2)))
	if !errors.Is(err, storeErr) {
		t.Fatalf("Load: want=%v got=%v", storeErr, err)
	}
}

func TestLoader_NoChainReaderSkipsRemote(t *testing.T) {
	n1, n2 := netAt("1", 1), netAt("1", 2)
	src := &scriptedSource{}
	store := &memStore{}
	l := NewLoader(LoaderDeps{
		Relations: src,
		Blocks: func(id string) (BlockReader, error) {
			return nil, fmt.Errorf("chain rpc for network %q: %w", id, errs.ErrNotConfigured)
		},
		Store: store,
	})

	res, err := l.Load(context.Background(), "1", artifactsAt("1", obs(n1), obs(n2)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !res.RemoteSkipped || len(src.queries) != 0 {
		t.Fatalf("Load: want remote skipped, got skipped=%v queries=%d", res.RemoteSkipped, len(src.queries))
	}
	if len(store.edges) != 1 {
		t.Fatalf("stored edges: want=1 got=%d", len(store.edges))
	}
}

func TestLoader_PlanDoesNotPersist(t *testing.T) {
	n1, n2 := netAt("1", 1), netAt("1", 2)
	store := &memStore{}
	l := NewLoader(LoaderDeps{Relations: &scriptedSource{}, Blocks: readerFor(&fakeChain{}), Store: store})

	res, err := l.Plan(context.Background(), "1", artifactsAt("1", obs(n2), obs(n1)))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(res.Edges) != 1 || len(store.edges) != 0 {
		t.Fatalf("Plan: want 1 planned and 0 stored, got %d and %d", len(res.Edges), len(store.edges))
	}
}
