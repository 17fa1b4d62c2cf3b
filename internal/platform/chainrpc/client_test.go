package chainrpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	errs "github.com/yungbote/netgenealogy-backend/internal/pkg/errors"
)

type fakeNode struct {
	mu     sync.Mutex
	calls  []string
	blocks map[string]any
	txs    map[string]any
	fail   bool
	stall  time.Duration
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.calls = append(n.calls, req.Method)
	n.mu.Unlock()
	if n.stall > 0 {
		time.Sleep(n.stall)
	}

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if n.fail {
		resp["error"] = map[string]any{"code": -32000, "message": "header not found"}
		_ = json.NewEncoder(w).Encode(resp)
		return
	}
	var key string
	_ = json.Unmarshal(req.Params[0], &key)
	switch req.Method {
	case "eth_getBlockByNumber":
		resp["result"] = n.blocks[key]
	case "eth_getTransactionByHash":
		resp["result"] = n.txs[key]
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *fakeNode) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func newNode(t *testing.T, n *fakeNode) *Client {
	t.Helper()
	srv := httptest.NewServer(n)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, time.Second, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestClient_BlockByHeight(t *testing.T) {
	node := &fakeNode{blocks: map[string]any{
		"0x64": map[string]any{"number": "0x64", "hash": "0xABCDEF"},
		"0x66": map[string]any{"number": "0x67", "hash": "0x67"},
	}}
	c := newNode(t, node)

	b, err := c.BlockByHeight(context.Background(), 100)
	if err != nil {
		t.Fatalf("BlockByHeight: %v", err)
	}
	if b == nil || b.Height != 100 || b.Hash != "0xabcdef" {
		t.Fatalf("BlockByHeight: got=%+v", b)
	}

	missing, err := c.BlockByHeight(context.Background(), 101)
	if err != nil || missing != nil {
		t.Fatalf("BlockByHeight missing: want=(nil,nil) got=(%v,%v)", missing, err)
	}

	wrong, err := c.BlockByHeight(context.Background(), 102)
	if !errors.Is(err, ErrBadResponse) || wrong != nil {
		t.Fatalf("BlockByHeight wrong height: want ErrBadResponse got=(%v,%v)", wrong, err)
	}
}

func TestClient_RPCError(t *testing.T) {
	c := newNode(t, &fakeNode{fail: true})
	_, err := c.BlockByHeight(context.Background(), 1)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32000 {
		t.Fatalf("BlockByHeight: want RPCError got=%v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	node := &fakeNode{stall: 200 * time.Millisecond}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.BlockByHeight(context.Background(), 1); err == nil {
		t.Fatalf("BlockByHeight: want timeout error")
	}
}

func TestClient_TransactionBlock(t *testing.T) {
	node := &fakeNode{txs: map[string]any{
		"0xfeed":    map[string]any{"blockNumber": "0x96", "blockHash": "0x150"},
		"0xpending": map[string]any{"blockNumber": nil, "blockHash": nil},
	}}
	c := newNode(t, node)

	b, err := c.TransactionBlock(context.Background(), "FEED")
	if err != nil {
		t.Fatalf("TransactionBlock: %v", err)
	}
	if b == nil || b.Height != 150 || b.Hash != "0x150" {
		t.Fatalf("TransactionBlock: got=%+v", b)
	}

	pending, err := c.TransactionBlock(context.Background(), "0xpending")
	if err != nil || pending != nil {
		t.Fatalf("TransactionBlock pending: want=(nil,nil) got=(%v,%v)", pending, err)
	}
	unknown, err := c.TransactionBlock(context.Background(), "0xdead")
	if err != nil || unknown != nil {
		t.Fatalf("TransactionBlock unknown: want=(nil,nil) got=(%v,%v)", unknown, err)
	}
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
	sets int
}

func (m *memCache) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]string{}
	}
	m.data[key] = value
	m.sets++
	return nil
}

func TestCachedReader_ReadThrough(t *testing.T) {
	node := &fakeNode{blocks: map[string]any{
		"0xa": map[string]any{"number": "0xa", "hash": "0x0a"},
	}}
	c := newNode(t, node)
	cache := &memCache{}
	r := NewCachedReader(c, cache, "5", time.Minute, nil)

	for i := 0; i < 3; i++ {
		b, err := r.BlockByHeight(context.Background(), 10)
		if err != nil || b == nil || b.Hash != "0x0a" {
			t.Fatalf("BlockByHeight #%d: b=%v err=%v", i, b, err)
		}
	}
	if got := node.callCount(); got != 1 {
		t.Fatalf("node calls: want=1 got=%d", got)
	}

	if _, err := r.BlockByHeight(context.Background(), 11); err != nil {
		t.Fatalf("BlockByHeight missing: %v", err)
	}
	if _, err := r.BlockByHeight(context.Background(), 11); err != nil {
		t.Fatalf("BlockByHeight missing again: %v", err)
	}
	if got := node.callCount(); got != 3 {
		t.Fatalf("misses must not be cached: want=3 calls got=%d", got)
	}
	if cache.sets != 1 {
		t.Fatalf("cache sets: want=1 got=%d", cache.sets)
	}
}

func TestResolver_Reader(t *testing.T) {
	r := NewResolver(ResolverConfig{
		Endpoints: map[string]string{"1": "http://mainnet.invalid"},
		Timeout:   time.Second,
		Cache:     &memCache{},
		CacheTTL:  time.Minute,
	}, nil)

	a, err := r.Reader("1")
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	b, err := r.Reader(" 1 ")
	if err != nil || a != b {
		t.Fatalf("Reader: want cached reader, err=%v", err)
	}
	if _, ok := a.(*CachedReader); !ok {
		t.Fatalf("Reader: want *CachedReader got=%T", a)
	}
	if _, err := r.Reader("5"); !errors.Is(err, errs.ErrNotConfigured) {
		t.Fatalf("Reader unknown: want ErrNotConfigured got=%v", err)
	}

	withFallback := NewResolver(ResolverConfig{Fallback: "http://localhost:8545"}, nil)
	rd, err := withFallback.Reader("5777")
	if err != nil {
		t.Fatalf("Reader fallback: %v", err)
	}
	if _, ok := rd.(*Client); !ok {
		t.Fatalf("Reader fallback: want *Client got=%T", rd)
	}
}

var _ Reader = (*CachedReader)(nil)

type flakyNode struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (n *flakyNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	n.calls++
	fail := n.calls <= n.failures
	n.mu.Unlock()
	if fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	var req struct {
		ID uint64 `json:"id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      req.ID,
		"result":  map[string]any{"number": "0x1", "hash": "0x01"},
	})
}

func (n *flakyNode) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func TestClient_RetriesTransientHTTP(t *testing.T) {
	t.Setenv("CHAIN_RPC_RETRY_BACKOFF_MS", "1")
	node := &flakyNode{failures: 2}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, time.Second, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	b, err := c.BlockByHeight(context.Background(), 1)
	if err != nil || b == nil || b.Hash != "0x01" {
		t.Fatalf("BlockByHeight: got=(%v,%v)", b, err)
	}
	if got := node.count(); got != 3 {
		t.Fatalf("calls: want=3 got=%d", got)
	}

	node = &flakyNode{failures: 10}
	srv2 := httptest.NewServer(node)
	t.Cleanup(srv2.Close)
	c2, _ := NewClient(srv2.URL, time.Second, nil)
	_, err = c2.BlockByHeight(context.Background(), 1)
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("BlockByHeight: want HTTPError 503 got=%v", err)
	}
	if got := node.count(); got != 3 {
		t.Fatalf("calls after exhausting retries: want=3 got=%d", got)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&HTTPError{StatusCode: 429}, true},
		{&HTTPError{StatusCode: 502}, true},
		{&HTTPError{StatusCode: 404}, false},
		{&RPCError{Code: -32000}, false},
		{context.DeadlineExceeded, true},
	}
	for _, tc := range cases {
		if got := retryable(tc.err); got != tc.want {
			t.Fatalf("retryable(%v): want=%v got=%v", tc.err, tc.want, got)
		}
	}
}
