package chainrpc

import (
	"fmt"
	"strings"
	"sync"
	"time"

	errs "github.com/yungbote/netgenealogy-backend/internal/pkg/errors"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
)

// Resolver hands out one Reader per chain network id.
type Resolver struct {
	endpoints map[string]string
	fallback  string
	timeout   time.Duration
	cache     BlockCache
	cacheTTL  time.Duration
	log       *logger.Logger

	mu      sync.Mutex
	readers map[string]Reader
}

type ResolverConfig struct {
	// Endpoints maps a network id to its RPC url.
	Endpoints map[string]string
	// Fallback serves network ids without a dedicated endpoint; empty disables it.
	Fallback string
	Timeout  time.Duration
	Cache    BlockCache
	CacheTTL time.Duration
}

func NewResolver(cfg ResolverConfig, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	eps := make(map[string]string, len(cfg.Endpoints))
	for k, v := range cfg.Endpoints {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			eps[k] = v
		}
	}
	return &Resolver{
		endpoints: eps,
		fallback:  strings.TrimSpace(cfg.Fallback),
		timeout:   cfg.Timeout,
		cache:     cfg.Cache,
		cacheTTL:  cfg.CacheTTL,
		log:       log.With("component", "ChainResolver"),
		readers:   map[string]Reader{},
	}
}

// Reader returns the chain reader for networkID, or an error wrapping errs.ErrNotConfigured.
func (r *Resolver) Reader(networkID string) (Reader, error) {
	networkID = strings.TrimSpace(networkID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if rd, ok := r.readers[networkID]; ok {
		return rd, nil
	}
	url := r.endpoints[networkID]
	if url == "" {
		url = r.fallback
	}
	if url == "" {
		return nil, fmt.Errorf("chain rpc for network %q: %w", networkID, errs.ErrNotConfigured)
	}
	client, err := NewClient(url, r.timeout, r.log)
	if err != nil {
		return nil, err
	}
	var rd Reader = client
	if r.cache != nil && r.cacheTTL > 0 {
		rd = NewCachedReader(client, r.cache, networkID, r.cacheTTL, r.log)
	}
	r.readers[networkID] = rd
	return rd, nil
}
