package jobrun

import (
	"context"
	"errors"
	"testing"

	"go.temporal.io/sdk/testsuite"

	"github.com/yungbote/netgenealogy-backend/internal/data/repos"
	"github.com/yungbote/netgenealogy-backend/internal/data/repos/testutil"
	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	jobrt "github.com/yungbote/netgenealogy-backend/internal/jobs/runtime"
	"github.com/yungbote/netgenealogy-backend/internal/platform/dbctx"
	"github.com/yungbote/netgenealogy-backend/internal/services"
)

type stubHandler struct {
	jobType string
	run     func(*jobrt.Context) error
}

func (h stubHandler) Type() string               { return h.jobType }
func (h stubHandler) Run(c *jobrt.Context) error { return h.run(c) }

func TestActivities_Tick(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewJobRunRepo(db, log)
	jobs := services.NewJobService(db, log, repo, nil, nil, "")
	ctx := context.Background()

	reg := jobrt.NewRegistry()
	_ = reg.Register(stubHandler{jobType: "ok", run: func(c *jobrt.Context) error {
		c.Succeed("done", map[string]any{"n": 1})
		return nil
	}})
	_ = reg.Register(stubHandler{jobType: "silent", run: func(c *jobrt.Context) error { return nil }})
	_ = reg.Register(stubHandler{jobType: "bad", run: func(c *jobrt.Context) error { return errors.New("bad input") }})

	acts := &Activities{Log: log, DB: db, Jobs: repo, Registry: reg}
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivity(acts.Tick)

	tick := func(jobType string) TickResult {
		t.Helper()
		job, err := jobs.Enqueue(dbctx.Context{Ctx: ctx}, jobType, "", "", nil)
		if err != nil {
			t.Fatalf("Enqueue %s: %v", jobType, err)
		}
		val, err := env.ExecuteActivity(acts.Tick, job.ID.String())
		if err != nil {
			t.Fatalf("Tick %s: %v", jobType, err)
		}
		var out TickResult
		if err := val.Get(&out); err != nil {
			t.Fatalf("Tick %s result: %v", jobType, err)
		}
		return out
	}

	if got := tick("ok"); got.Status != types.JobStatusSucceeded {
		t.Fatalf("ok: want=succeeded got=%s", got.Status)
	}
	if got := tick("silent"); got.Status != types.JobStatusSucceeded {
		t.Fatalf("silent: want=succeeded got=%s", got.Status)
	}
	if got := tick("bad"); got.Status != types.JobStatusFailed || got.Error != "bad input" {
		t.Fatalf("bad: want=failed/bad input got=%s/%s", got.Status, got.Error)
	}
	if got := tick("missing"); got.Status != types.JobStatusFailed || got.Stage != "dispatch" {
		t.Fatalf("missing: want=failed/dispatch got=%s/%s", got.Status, got.Stage)
	}

	job, err := jobs.Enqueue(dbctx.Context{Ctx: ctx}, "ok", "", "", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := jobs.Cancel(dbctx.Context{Ctx: ctx}, job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	val, err := env.ExecuteActivity(acts.Tick, job.ID.String())
	if err != nil {
		t.Fatalf("Tick canceled: %v", err)
	}
	var out TickResult
	if err := val.Get(&out); err != nil || out.Status != types.JobStatusCanceled {
		t.Fatalf("canceled: err=%v status=%s", err, out.Status)
	}
}
