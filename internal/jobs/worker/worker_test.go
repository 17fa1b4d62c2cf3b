package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/netgenealogy-backend/internal/data/repos"
	"github.com/yungbote/netgenealogy-backend/internal/data/repos/testutil"
	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	"github.com/yungbote/netgenealogy-backend/internal/jobs/runtime"
	"github.com/yungbote/netgenealogy-backend/internal/platform/dbctx"
	"github.com/yungbote/netgenealogy-backend/internal/services"
)

type funcHandler struct {
	jobType string
	run     func(*runtime.Context) error
}

func (h funcHandler) Type() string                { return h.jobType }
func (h funcHandler) Run(c *runtime.Context) error { return h.run(c) }

func TestWorker_RunOnce(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	repo := repos.NewJobRunRepo(db, log)
	jobs := services.NewJobService(db, log, repo, nil, nil, "")

	reg := runtime.NewRegistry()
	var seen string
	if err := reg.Register(funcHandler{jobType: "ok", run: func(c *runtime.Context) error {
		seen = c.PayloadString("network_id")
		c.Succeed("done", map[string]any{"network_id": seen})
		return nil
	}}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(funcHandler{jobType: "boom", run: func(c *runtime.Context) error {
		return errors.New("boom")
	}}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(funcHandler{jobType: "ok"}); err == nil {
		t.Fatalf("Register duplicate: want error")
	}

	w := NewWorker(db, log, repo, reg, nil)
	dbc := dbctx.Context{Ctx: ctx}

	okJob, err := jobs.Enqueue(dbc, "ok", "network", "1", map[string]any{"network_id": "1"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	claimed, err := w.RunOnce(ctx)
	if err != nil || !claimed {
		t.Fatalf("RunOnce: claimed=%v err=%v", claimed, err)
	}
	if seen != "1" {
		t.Fatalf("payload: want=1 got=%q", seen)
	}
	got, err := jobs.GetByID(dbc, okJob.ID)
	if err != nil || got.Status != types.JobStatusSucceeded {
		t.Fatalf("ok job: err=%v status=%s", err, got.Status)
	}

	boomJob, err := jobs.Enqueue(dbc, "boom", "", "", nil)
	if err != nil {
		t.Fatalf("Enqueue boom: %v", err)
	}
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce boom: %v", err)
	}
	got, err = jobs.GetByID(dbc, boomJob.ID)
	if err != nil || got.Status != types.JobStatusFailed || got.Error != "boom" || got.Stage != "run" {
		t.Fatalf("boom job: err=%v status=%s stage=%s error=%s", err, got.Status, got.Stage, got.Error)
	}

	// The failed job waits out the retry delay, so nothing is runnable now.
	claimed, err = w.RunOnce(ctx)
	if err != nil || claimed {
		t.Fatalf("RunOnce idle: claimed=%v err=%v", claimed, err)
	}
}

func TestWorker_MissingHandler(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	repo := repos.NewJobRunRepo(db, log)
	jobs := services.NewJobService(db, log, repo, nil, nil, "")
	w := NewWorker(db, log, repo, runtime.NewRegistry(), nil)

	job, err := jobs.Enqueue(dbctx.Context{Ctx: ctx}, "unknown", "", "", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	got, err := jobs.GetByID(dbctx.Context{Ctx: ctx}, job.ID)
	if err != nil || got.Status != types.JobStatusFailed || got.Stage != "dispatch" {
		t.Fatalf("job: err=%v status=%s stage=%s", err, got.Status, got.Stage)
	}
}
