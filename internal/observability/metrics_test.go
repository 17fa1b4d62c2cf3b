package observability

import (
	"strings"
	"testing"
	"time"
)

func TestMetrics_WritePrometheus(t *testing.T) {
	m := New()
	m.ObserveAPI("GET", "/api/jobs/:id", "200", 30*time.Millisecond)
	m.ObserveLoad("ok", 4)
	m.ObserveLoad("chain_error", 1)
	m.ObserveSearch("ancestor", true, 2)
	m.ObserveBlockCache(true)

	if got := m.LoadCount("ok"); got != 1 {
		t.Fatalf("LoadCount: want=1 got=%v", got)
	}

	var b strings.Builder
	if err := m.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := b.String()
	for _, want := range []string{
		`ng_api_requests_total{method="GET",route="/api/jobs/:id",status="200"} 1`,
		`ng_api_request_duration_seconds_bucket{method="GET",route="/api/jobs/:id",le="0.05"} 1`,
		`ng_genealogy_edges_total 5`,
		`ng_relation_search_rounds_count{direction="ancestor",found="true"} 1`,
		`ng_block_cache_total{result="hit"} 1`,
		`# TYPE ng_chain_rpc_duration_seconds histogram`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing line %q in:\n%s", want, out)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/", "200", time.Millisecond)
	m.ObserveLoad("ok", 1)
	m.ObserveRPC("eth_getBlockByNumber", "ok", time.Millisecond)
	if m.LoadCount("ok") != 0 {
		t.Fatalf("nil LoadCount: want=0")
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"a"}, []string{"x\"y"})
	if got != `{a="x\"y"}` {
		t.Fatalf("labelString: got=%s", got)
	}
	if got := withLe("", "1"); got != `{le="1"}` {
		t.Fatalf("withLe: got=%s", got)
	}
}

func TestOtelHeaders(t *testing.T) {
	h := otelHeaders(" a=1, b = 2 ,bad,c=")
	if len(h) != 2 || h["a"] != "1" || h["b"] != "2" {
		t.Fatalf("otelHeaders: got=%v", h)
	}
	if otelHeaders("") != nil {
		t.Fatalf("otelHeaders empty: want nil")
	}
}
