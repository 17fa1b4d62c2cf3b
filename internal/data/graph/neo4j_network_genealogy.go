package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
	"github.com/yungbote/netgenealogy-backend/internal/platform/neo4jdb"
)

// UpsertNetworkGenealogy mirrors networks and their ancestor->descendant GENEALOGY edges into Neo4j.
// The relational store stays authoritative; this is a read model for graph queries.
func UpsertNetworkGenealogy(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, networks []*types.Network, edges []*types.NetworkGenealogy) error {
	if !client.Enabled() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	nodes := make([]map[string]any, 0, len(networks))
	for _, n := range networks {
		if n == nil || n.ID == uuid.Nil {
			continue
		}
		nodes = append(nodes, map[string]any{
			"id":         n.ID.String(),
			"network_id": n.NetworkID,
			"name":       n.Name,
			"height":     n.Height,
			"block_hash": n.BlockHash,
			"synced_at":  now,
		})
	}

	rels := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		if e == nil || e.AncestorID == uuid.Nil || e.DescendantID == uuid.Nil {
			continue
		}
		rels = append(rels, map[string]any{
			"id":            e.ID.String(),
			"ancestor_id":   e.AncestorID.String(),
			"descendant_id": e.DescendantID.String(),
			"synced_at":     now,
		})
	}
	if len(nodes) == 0 && len(rels) == 0 {
		return nil
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	// Best-effort; restricted users may not create schema.
	if res, err := session.Run(ctx, `CREATE CONSTRAINT network_id_unique IF NOT EXISTS FOR (n:Network) REQUIRE n.id IS UNIQUE`, nil); err != nil {
		if log != nil {
			log.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(nodes) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $nodes AS n
MERGE (x:Network {id: n.id})
SET x += n
`, map[string]any{"nodes": nodes})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		if len(rels) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MERGE (a:Network {id: r.ancestor_id})
MERGE (d:Network {id: r.descendant_id})
MERGE (a)-[e:GENEALOGY]->(d)
SET e.id = r.id,
    e.synced_at = r.synced_at
`, map[string]any{"rels": rels})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j genealogy sync: %w", err)
	}
	return nil
}
