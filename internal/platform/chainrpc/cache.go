package chainrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	"github.com/yungbote/netgenealogy-backend/internal/observability"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
)

// BlockCache stores raw cached values. Get returns ("", false, nil) on a miss.
type BlockCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type redisBlockCache struct {
	rdb *goredis.Client
}

// NewRedisBlockCache returns nil when rdb is nil.
func NewRedisBlockCache(rdb *goredis.Client) BlockCache {
	if rdb == nil {
		return nil
	}
	return &redisBlockCache{rdb: rdb}
}

func (c *redisBlockCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *redisBlockCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// CachedReader is a read-through cache in front of a Reader. Only found blocks are cached;
// cache failures fall through to the node.
type CachedReader struct {
	next      Reader
	cache     BlockCache
	networkID string
	ttl       time.Duration
	log       *logger.Logger
}

func NewCachedReader(next Reader, cache BlockCache, networkID string, ttl time.Duration, log *logger.Logger) *CachedReader {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedReader{
		next:      next,
		cache:     cache,
		networkID: networkID,
		ttl:       ttl,
		log:       log.With("component", "ChainBlockCache", "network_id", networkID),
	}
}

func (r *CachedReader) key(height int64) string {
	return "chainrpc:block:" + r.networkID + ":" + strconv.FormatInt(height, 10)
}

func (r *CachedReader) BlockByHeight(ctx context.Context, height int64) (*types.HistoricBlock, error) {
	if r.cache == nil || r.ttl <= 0 {
		return r.next.BlockByHeight(ctx, height)
	}
	key := r.key(height)
	if raw, ok, err := r.cache.Get(ctx, key); err != nil {
		r.log.Warn("block cache get failed", "height", height, "error", err)
	} else if ok {
		var b types.HistoricBlock
		if err := json.Unmarshal([]byte(raw), &b); err == nil && b.Hash != "" {
			observability.Current().ObserveBlockCache(true)
			return &b, nil
		}
	}
	observability.Current().ObserveBlockCache(false)

	b, err := r.next.BlockByHeight(ctx, height)
	if err != nil || b == nil {
		return b, err
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode block: %w", err)
	}
	if err := r.cache.Set(ctx, key, string(raw), r.ttl); err != nil {
		r.log.Warn("block cache set failed", "height", height, "error", err)
	}
	return b, nil
}

func (r *CachedReader) TransactionBlock(ctx context.Context, txHash string) (*types.HistoricBlock, error) {
	return r.next.TransactionBlock(ctx, txHash)
}
