package temporalx

import (
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 250 * time.Millisecond},
		{2, 500 * time.Millisecond},
		{3, time.Second},
		{10, 5 * time.Second},
	}
	for _, tc := range cases {
		if got := Backoff(250*time.Millisecond, 5*time.Second, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: want=%v got=%v", tc.attempt, tc.want, got)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TEMPORAL_ADDRESS", "")
	t.Setenv("TEMPORAL_TASK_QUEUE", "")
	cfg := LoadConfig()
	if cfg.Enabled() {
		t.Fatalf("Enabled: want=false")
	}
	if cfg.TaskQueue != "netgenealogy" {
		t.Fatalf("TaskQueue: want=netgenealogy got=%q", cfg.TaskQueue)
	}

	t.Setenv("TEMPORAL_ADDRESS", "localhost:7233")
	t.Setenv("TEMPORAL_TASK_QUEUE", "genealogy")
	cfg = LoadConfig()
	if !cfg.Enabled() || cfg.TaskQueue != "genealogy" {
		t.Fatalf("LoadConfig: unexpected %+v", cfg)
	}
}
