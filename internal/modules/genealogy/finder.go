package genealogy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	"github.com/yungbote/netgenealogy-backend/internal/observability"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
)

// RelationQuery asks for unconfirmed relatives of a network in one direction.
type RelationQuery struct {
	NetworkID  uuid.UUID
	Direction  types.Direction
	ExcludeIDs []uuid.UUID
	Limit      int
}

// RelationPage is one batch of candidates, nearest first. ExcludeIDs is the query's list
// extended with every candidate returned so far.
type RelationPage struct {
	Candidates []*types.Network
	ExcludeIDs []uuid.UUID
}

type RelationSource interface {
	PossibleRelations(ctx context.Context, q RelationQuery) (RelationPage, error)
}

// BlockReader returns the canonical block at a height; (nil, nil) when the chain has none.
type BlockReader interface {
	BlockByHeight(ctx context.Context, height int64) (*types.HistoricBlock, error)
}

// Finder searches stored networks for the nearest relative that the live chain confirms.
type Finder struct {
	source    RelationSource
	blocks    BlockReader
	pageSize  int
	maxRounds int
	log       *logger.Logger
}

func NewFinder(source RelationSource, blocks BlockReader, cfg SearchConfig, log *logger.Logger) *Finder {
	if log == nil {
		log = logger.Nop()
	}
	return &Finder{
		source:    source,
		blocks:    blocks,
		pageSize:  cfg.PageSize,
		maxRounds: cfg.MaxRounds,
		log:       log.With("component", "RelationFinder"),
	}
}

// FindRelation returns the nearest network in direction dir whose recorded block hash matches
// the chain's block at the same height, or nil when none does.
//
// A failed candidate query ends the search with no relation. A failed block read is returned
// wrapped in ErrChainRead.
func (f *Finder) FindRelation(ctx context.Context, dir types.Direction, network *types.Network) (found *types.Network, err error) {
	if network == nil || !dir.Valid() {
		return nil, nil
	}
	ctx, span := otel.Tracer("genealogy").Start(ctx, "genealogy.FindRelation")
	span.SetAttributes(
		attribute.String("genealogy.direction", string(dir)),
		attribute.String("genealogy.network", network.ID.String()),
	)
	rounds := 0
	defer func() {
		span.SetAttributes(attribute.Int("genealogy.rounds", rounds), attribute.Bool("genealogy.found", found != nil))
		observability.Current().ObserveSearch(string(dir), found != nil, rounds)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := f.log.With("direction", string(dir), "network", network.ID, "network_id", network.NetworkID)
	var exclude []uuid.UUID

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.maxRounds > 0 && rounds >= f.maxRounds {
			log.Warn("relation search hit round limit", "max_rounds", f.maxRounds)
			return nil, nil
		}
		rounds++

		page, qErr := f.source.PossibleRelations(ctx, RelationQuery{
			NetworkID:  network.ID,
			Direction:  dir,
			ExcludeIDs: exclude,
			Limit:      f.pageSize,
		})
		if qErr != nil {
			log.Warn("candidate query failed; no relation", "round", rounds, "error", qErr)
			return nil, nil
		}
		if len(page.Candidates) == 0 {
			log.Debug("no more candidates", "round", rounds)
			return nil, nil
		}

		for _, c := range page.Candidates {
			if c == nil {
				continue
			}
			block, bErr := f.blocks.BlockByHeight(ctx, c.Height)
			if bErr != nil {
				return nil, fmt.Errorf("%w: network %s height %d: %w", ErrChainRead, c.ID, c.Height, bErr)
			}
			if block == nil {
				continue
			}
			if types.SameBlock(block.Hash, c.BlockHash) {
				log.Debug("relation confirmed", "round", rounds, "candidate", c.ID, "height", c.Height)
				return c, nil
			}
		}

		if len(page.ExcludeIDs) <= len(exclude) {
			log.Warn("exclusion list did not grow; stopping search", "round", rounds, "excluded", len(exclude))
			return nil, nil
		}
		exclude = page.ExcludeIDs
	}
}
