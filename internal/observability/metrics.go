package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	"github.com/yungbote/netgenealogy-backend/internal/platform/envutil"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests  *CounterVec
	apiLatency   *HistogramVec
	apiInflight  *GaugeVec
	loads        *CounterVec
	loadEdges    *CounterVec
	searchRounds *HistogramVec
	rpcLatency   *HistogramVec
	blockCache   *CounterVec
	jobEvents    *CounterVec
	queueDepth   *GaugeVec
	dbStats      *GaugeVec
	redisUp      *GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool { return envutil.Bool("METRICS_ENABLED", false) }

// Current returns the process metrics, or nil when disabled. Every method is nil-safe.
func Current() *Metrics { return instance }

func scrapeInterval() time.Duration {
	d := envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10)
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// New builds an unregistered metrics set.
func New() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("ng_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec("ng_api_request_duration_seconds", "API request latency in seconds.",
			[]string{"method", "route"}, []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}),
		apiInflight:  NewGaugeVec("ng_api_inflight_requests", "In-flight API requests.", nil),
		loads:        NewCounterVec("ng_genealogy_loads_total", "Genealogy loads by outcome.", []string{"status"}),
		loadEdges:    NewCounterVec("ng_genealogy_edges_total", "Edges stored by genealogy loads.", nil),
		searchRounds: NewHistogramVec("ng_relation_search_rounds", "Candidate pages read per relation search.", []string{"direction", "found"}, []float64{1, 2, 3, 5, 10, 25, 100}),
		rpcLatency: NewHistogramVec("ng_chain_rpc_duration_seconds", "Chain JSON-RPC latency by method/status.",
			[]string{"method", "status"}, []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15}),
		blockCache: NewCounterVec("ng_block_cache_total", "Block cache lookups by result.", []string{"result"}),
		jobEvents:  NewCounterVec("ng_job_events_total", "Job lifecycle events seen on the bus.", []string{"event"}),
		queueDepth: NewGaugeVec("ng_job_queue_depth", "job_run rows by status.", []string{"status"}),
		dbStats:    NewGaugeVec("ng_db_pool", "database/sql pool stats.", []string{"stat"}),
		redisUp:    NewGaugeVec("ng_redis_up", "1 when the last redis ping succeeded.", nil),
	}
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflight(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

// ObserveLoad counts one genealogy load; status is ok, chain_error or error.
func (m *Metrics) ObserveLoad(status string, edges int) {
	if m == nil {
		return
	}
	m.loads.Inc(status)
	m.loadEdges.Add(float64(edges))
}

func (m *Metrics) LoadCount(status string) float64 {
	if m == nil {
		return 0
	}
	return m.loads.Value(status)
}

func (m *Metrics) ObserveSearch(direction string, found bool, rounds int) {
	if m == nil {
		return
	}
	m.searchRounds.Observe(float64(rounds), direction, strconv.FormatBool(found))
}

func (m *Metrics) ObserveRPC(method, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.rpcLatency.Observe(dur.Seconds(), method, status)
}

func (m *Metrics) ObserveBlockCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.blockCache.Inc("hit")
	} else {
		m.blockCache.Inc("miss")
	}
}

func (m *Metrics) ObserveJobEvent(event string) {
	if m == nil {
		return
	}
	m.jobEvents.Inc(event)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.loads, m.loadEdges, m.searchRounds,
		m.rpcLatency, m.blockCache,
		m.jobEvents, m.queueDepth, m.dbStats, m.redisUp,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

// StartServer serves /metrics on addr until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil || strings.TrimSpace(addr) == "" {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", m.WriteHTTP)
	srv := &http.Server{Addr: strings.TrimSpace(addr), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed && log != nil {
			log.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
}

// StartCollectors samples the job queue, the DB pool and redis every scrape interval.
func (m *Metrics) StartCollectors(ctx context.Context, log *logger.Logger, db *gorm.DB, rdb *goredis.Client) {
	if m == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(scrapeInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.collect(ctx, log, db, rdb)
			}
		}
	}()
}

func (m *Metrics) collect(ctx context.Context, log *logger.Logger, db *gorm.DB, rdb *goredis.Client) {
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			st := sqlDB.Stats()
			m.dbStats.Set(float64(st.OpenConnections), "open_connections")
			m.dbStats.Set(float64(st.InUse), "in_use")
			m.dbStats.Set(float64(st.Idle), "idle")
			m.dbStats.Set(float64(st.WaitCount), "wait_count")
		}

		var rows []struct {
			Status string
			Count  int64
		}
		if err := db.WithContext(ctx).Model(&types.JobRun{}).
			Select("status, count(*) as count").
			Group("status").
			Scan(&rows).Error; err != nil {
			if log != nil {
				log.Warn("metrics: job queue depth query failed", "error", err)
			}
		} else {
			for _, s := range []string{types.JobStatusQueued, types.JobStatusRunning, types.JobStatusSucceeded, types.JobStatusFailed, types.JobStatusCanceled} {
				m.queueDepth.Set(0, s)
			}
			for _, row := range rows {
				m.queueDepth.Set(float64(row.Count), row.Status)
			}
		}
	}
	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
		} else {
			m.redisUp.Set(1)
		}
	}
}
