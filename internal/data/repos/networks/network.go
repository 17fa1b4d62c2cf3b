package networks

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	errs "github.com/yungbote/netgenealogy-backend/internal/pkg/errors"
	"github.com/yungbote/netgenealogy-backend/internal/platform/dbctx"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
)

type NetworkRepo interface {
	CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.Network) (int, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Network, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Network, error)
	ListByNetworkID(dbc dbctx.Context, networkID string, limit int) ([]*types.Network, error)

	// PossibleRelations pages through the unconfirmed ancestors (lower height) or descendants
	// (higher height) of a network on the same chain, nearest first, skipping excludeIDs.
	// The returned exclusion list is excludeIDs plus every candidate id in the page.
	PossibleRelations(dbc dbctx.Context, id uuid.UUID, dir types.Direction, excludeIDs []uuid.UUID, limit int) ([]*types.Network, []uuid.UUID, error)
}

type networkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNetworkRepo(db *gorm.DB, baseLog *logger.Logger) NetworkRepo {
	return &networkRepo{db: db, log: baseLog.With("repo", "NetworkRepo")}
}

func (r *networkRepo) CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.Network) (int, error) {
	t := dbc.DB(r.db)
	clean := make([]*types.Network, 0, len(rows))
	seen := make(map[uuid.UUID]bool, len(rows))
	for _, row := range rows {
		if row == nil || strings.TrimSpace(row.NetworkID) == "" || strings.TrimSpace(row.BlockHash) == "" {
			continue
		}
		if row.ID == uuid.Nil {
			row.ID = types.NetworkKey(row.NetworkID, row.HistoricBlock())
		}
		if seen[row.ID] {
			continue
		}
		seen[row.ID] = true
		clean = append(clean, row)
	}
	if len(clean) == 0 {
		return 0, nil
	}
	res := t.WithContext(dbc.Context()).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&clean)
	if res.Error != nil {
		return 0, mapWriteError(res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r *networkRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Network, error) {
	t := dbc.DB(r.db)
	var out []*types.Network
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Context()).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *networkRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Network, error) {
	t := dbc.DB(r.db)
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Network
	err := t.WithContext(dbc.Context()).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *networkRepo) ListByNetworkID(dbc dbctx.Context, networkID string, limit int) ([]*types.Network, error) {
	t := dbc.DB(r.db)
	var out []*types.Network
	networkID = strings.TrimSpace(networkID)
	if networkID == "" {
		return out, nil
	}
	q := t.WithContext(dbc.Context()).
		Where("network_id = ?", networkID).
		Order("height ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *networkRepo) PossibleRelations(dbc dbctx.Context, id uuid.UUID, dir types.Direction, excludeIDs []uuid.UUID, limit int) ([]*types.Network, []uuid.UUID, error) {
	if !dir.Valid() {
		return nil, excludeIDs, fmt.Errorf("possible relations: direction %q: %w", dir, errs.ErrInvalidArgument)
	}
	target, err := r.GetByID(dbc, id)
	if err != nil {
		return nil, excludeIDs, err
	}
	if target == nil {
		return nil, excludeIDs, fmt.Errorf("possible relations: network %s: %w", id, errs.ErrNotFound)
	}

	q := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("network_id = ? AND id <> ?", target.NetworkID, target.ID)
	if dir == types.DirectionAncestor {
		q = q.Where("height < ?", target.Height).Order("height DESC, id ASC")
	} else {
		q = q.Where("height > ?", target.Height).Order("height ASC, id ASC")
	}
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []*types.Network
	if err := q.Find(&out).Error; err != nil {
		return nil, excludeIDs, err
	}

	next := make([]uuid.UUID, 0, len(excludeIDs)+len(out))
	next = append(next, excludeIDs...)
	for _, n := range out {
		next = append(next, n.ID)
	}
	return out, next, nil
}
