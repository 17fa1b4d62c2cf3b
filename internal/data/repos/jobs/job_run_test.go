package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/netgenealogy-backend/internal/data/repos/testutil"
	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	"github.com/yungbote/netgenealogy-backend/internal/platform/dbctx"
)

func TestJobRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()

	queued := &types.JobRun{
		ID:         uuid.New(),
		JobType:    "network_genealogy_load",
		EntityType: "network_id",
		EntityKey:  "1",
		Status:     types.JobStatusQueued,
		Stage:      "queued",
		Payload:    datatypes.JSON([]byte("{}")),
		Result:     datatypes.JSON([]byte("{}")),
		CreatedAt:  now.Add(-3 * time.Hour),
		UpdatedAt:  now.Add(-3 * time.Hour),
	}
	failed := &types.JobRun{
		ID:         uuid.New(),
		JobType:    "network_genealogy_load",
		EntityType: "network_id",
		EntityKey:  "3",
		Status:     types.JobStatusFailed,
		Stage:      "failed",
		Payload:    datatypes.JSON([]byte("{}")),
		Result:     datatypes.JSON([]byte("{}")),
		CreatedAt:  now.Add(-2 * time.Hour),
		UpdatedAt:  now.Add(-2 * time.Hour),
	}
	done := &types.JobRun{
		ID:         uuid.New(),
		JobType:    "network_genealogy_load",
		EntityType: "network_id",
		EntityKey:  "1",
		Status:     types.JobStatusSucceeded,
		Stage:      "done",
		Payload:    datatypes.JSON([]byte("{}")),
		Result:     datatypes.JSON([]byte("{}")),
		CreatedAt:  now.Add(-1 * time.Hour),
		UpdatedAt:  now.Add(-1 * time.Hour),
	}

	created, err := repo.Create(dbc, []*types.JobRun{queued, failed, done})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("Create: want=3 got=%d", len(created))
	}

	if rows, err := repo.GetByIDs(dbc, []uuid.UUID{queued.ID, failed.ID, done.ID}); err != nil || len(rows) != 3 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}

	latest, err := repo.GetLatestByEntity(dbc, "network_id", "1", "network_genealogy_load")
	if err != nil {
		t.Fatalf("GetLatestByEntity: %v", err)
	}
	if latest == nil || latest.ID != done.ID {
		t.Fatalf("GetLatestByEntity: want=%v got=%v", done.ID, latest)
	}
	if !latest.Terminal() {
		t.Fatalf("GetLatestByEntity: want terminal job")
	}

	exists, err := repo.ExistsRunnable(dbc, "network_genealogy_load", "network_id", "1")
	if err != nil || !exists {
		t.Fatalf("ExistsRunnable: err=%v exists=%v", err, exists)
	}
	exists, err = repo.ExistsRunnable(dbc, "network_genealogy_load", "network_id", "3")
	if err != nil || exists {
		t.Fatalf("ExistsRunnable (failed only): err=%v exists=%v", err, exists)
	}

	// Claims walk the runnable set oldest first.
	claim1, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #1: %v", err)
	}
	if claim1 == nil || claim1.ID != queued.ID || claim1.Status != types.JobStatusRunning {
		t.Fatalf("ClaimNextRunnable #1: want=%v got=%+v", queued.ID, claim1)
	}

	claim2, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #2: %v", err)
	}
	if claim2 == nil || claim2.ID != failed.ID {
		t.Fatalf("ClaimNextRunnable #2: want=%v got=%+v", failed.ID, claim2)
	}

	claim3, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #3: %v", err)
	}
	if claim3 != nil {
		t.Fatalf("ClaimNextRunnable #3: want=nil got=%+v", claim3)
	}

	if err := repo.Heartbeat(dbc, queued.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	ok, err := repo.UpdateFieldsUnlessStatus(dbc, done.ID, []string{types.JobStatusSucceeded}, map[string]interface{}{"stage": "again"})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if ok {
		t.Fatalf("UpdateFieldsUnlessStatus: terminal job should not be updated")
	}

	if err := repo.UpdateFields(dbc, queued.ID, map[string]interface{}{"status": types.JobStatusCanceled}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	rows, err := repo.GetByIDs(dbc, []uuid.UUID{queued.ID})
	if err != nil || len(rows) != 1 || rows[0].Status != types.JobStatusCanceled {
		t.Fatalf("UpdateFields: err=%v rows=%+v", err, rows)
	}
}
