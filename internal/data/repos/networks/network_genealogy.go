package networks

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	"github.com/yungbote/netgenealogy-backend/internal/platform/dbctx"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
)

type NetworkGenealogyRepo interface {
	// LoadGenealogyEdges persists ancestor->descendant edges, skipping ones already stored
	// and self edges, and returns the edge ids in input order (duplicates collapsed).
	LoadGenealogyEdges(dbc dbctx.Context, edges []*types.NetworkGenealogy) ([]uuid.UUID, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.NetworkGenealogy, error)
	// ListTouching returns every edge with either end in networkIDs.
	ListTouching(dbc dbctx.Context, networkIDs []uuid.UUID) ([]*types.NetworkGenealogy, error)
}

type networkGenealogyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNetworkGenealogyRepo(db *gorm.DB, baseLog *logger.Logger) NetworkGenealogyRepo {
	return &networkGenealogyRepo{db: db, log: baseLog.With("repo", "NetworkGenealogyRepo")}
}

func (r *networkGenealogyRepo) LoadGenealogyEdges(dbc dbctx.Context, edges []*types.NetworkGenealogy) ([]uuid.UUID, error) {
	t := dbc.DB(r.db)
	ids := make([]uuid.UUID, 0, len(edges))
	rows := make([]*types.NetworkGenealogy, 0, len(edges))
	seen := make(map[uuid.UUID]bool, len(edges))
	for _, e := range edges {
		if e == nil || e.AncestorID == uuid.Nil || e.DescendantID == uuid.Nil {
			continue
		}
		if e.AncestorID == e.DescendantID {
			r.log.Warn("skipping self edge", "network_id", e.AncestorID)
			continue
		}
		e.ID = types.GenealogyKey(e.AncestorID, e.DescendantID)
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		ids = append(ids, e.ID)
		rows = append(rows, e)
	}
	if len(rows) == 0 {
		return ids, nil
	}
	if err := t.WithContext(dbc.Context()).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error; err != nil {
		return nil, mapWriteError(err)
	}
	return ids, nil
}

func (r *networkGenealogyRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.NetworkGenealogy, error) {
	t := dbc.DB(r.db)
	var out []*types.NetworkGenealogy
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Context()).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *networkGenealogyRepo) ListTouching(dbc dbctx.Context, networkIDs []uuid.UUID) ([]*types.NetworkGenealogy, error) {
	t := dbc.DB(r.db)
	var out []*types.NetworkGenealogy
	if len(networkIDs) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Context()).
		Where("ancestor_id IN ? OR descendant_id IN ?", networkIDs, networkIDs).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
