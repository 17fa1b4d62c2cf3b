package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/netgenealogy-backend/internal/platform/chainrpc"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
	"github.com/yungbote/netgenealogy-backend/internal/platform/neo4jdb"
	"github.com/yungbote/netgenealogy-backend/internal/platform/redisdb"
	"github.com/yungbote/netgenealogy-backend/internal/realtime/bus"
	"github.com/yungbote/netgenealogy-backend/internal/temporalx"
)

// Clients holds external connections. Redis, Neo4j and Temporal are optional and nil when
// their address env is unset.
type Clients struct {
	Redis    *goredis.Client
	Neo4j    *neo4jdb.Client
	Temporal temporalsdkclient.Client
	Bus      bus.Bus
	Chains   *chainrpc.Resolver
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	rdb, err := redisdb.NewFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}
	out.Redis = rdb

	if rdb != nil {
		b, err := bus.NewRedisBus(rdb, log)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init redis bus: %w", err)
		}
		out.Bus = b
	} else {
		out.Bus = bus.NewLocalBus(log)
	}

	graph, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}
	out.Neo4j = graph

	tc, err := temporalx.NewClient(log)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init temporal: %w", err)
	}
	out.Temporal = tc

	chain := cfg.Genealogy.Chain
	out.Chains = chainrpc.NewResolver(chainrpc.ResolverConfig{
		Endpoints: chain.Endpoints,
		Fallback:  chain.DefaultRPCURL,
		Timeout:   chain.Timeout(),
		Cache:     chainrpc.NewRedisBlockCache(rdb),
		CacheTTL:  chain.BlockCacheTTL(),
	}, log)

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(context.Background())
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
