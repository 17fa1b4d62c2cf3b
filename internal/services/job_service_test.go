package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	"github.com/yungbote/netgenealogy-backend/internal/platform/apierr"
	"github.com/yungbote/netgenealogy-backend/internal/platform/ctxutil"
	"github.com/yungbote/netgenealogy-backend/internal/platform/dbctx"
)

func TestJobService_EnqueueWithoutTemporal(t *testing.T) {
	env := newTestEnv(t)
	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{TraceID: "t-1", RequestID: "r-1"})
	dbc := dbctx.Context{Ctx: ctx}

	job, err := env.jobs.Enqueue(dbc, JobTypeNetworkGenealogyLoad, EntityTypeNetwork, "1", map[string]any{"network_id": "1"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got, err := env.jobs.GetByID(dbc, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.JobStatusQueued {
		t.Fatalf("status: want=%s got=%s", types.JobStatusQueued, got.Status)
	}
	var payload map[string]any
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["trace_id"] != "t-1" || payload["request_id"] != "r-1" || payload["network_id"] != "1" {
		t.Fatalf("payload: unexpected %v", payload)
	}

	_, created, err := env.jobs.EnqueueIfIdle(dbc, JobTypeNetworkGenealogyLoad, EntityTypeNetwork, "1", nil)
	if err != nil || created {
		t.Fatalf("EnqueueIfIdle busy: err=%v created=%v", err, created)
	}
	_, created, err = env.jobs.EnqueueIfIdle(dbc, JobTypeNetworkGenealogyLoad, EntityTypeNetwork, "2", nil)
	if err != nil || !created {
		t.Fatalf("EnqueueIfIdle idle: err=%v created=%v", err, created)
	}

	latest, err := env.jobs.GetLatestForEntity(dbc, EntityTypeNetwork, "1", JobTypeNetworkGenealogyLoad)
	if err != nil || latest == nil || latest.ID != job.ID {
		t.Fatalf("GetLatestForEntity: err=%v got=%v", err, latest)
	}
}

func TestJobService_CancelRestart(t *testing.T) {
	env := newTestEnv(t)
	dbc := dbctx.Context{Ctx: context.Background()}

	job, err := env.jobs.Enqueue(dbc, JobTypeArtifactNetworksResolve, "", "", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	_, err = env.jobs.Restart(dbc, job.ID)
	if status, code := apierr.StatusOf(err, 500, ""); status != http.StatusConflict || code != "job_not_restartable" {
		t.Fatalf("Restart queued: want=409 got=%d/%s", status, code)
	}

	canceled, err := env.jobs.Cancel(dbc, job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if canceled.Status != types.JobStatusCanceled {
		t.Fatalf("Cancel: want=%s got=%s", types.JobStatusCanceled, canceled.Status)
	}
	again, err := env.jobs.Cancel(dbc, job.ID)
	if err != nil || again.Status != types.JobStatusCanceled {
		t.Fatalf("Cancel again: err=%v status=%s", err, again.Status)
	}

	restarted, err := env.jobs.Restart(dbc, job.ID)
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if restarted.Status != types.JobStatusQueued || restarted.Attempts != 0 {
		t.Fatalf("Restart: unexpected status=%s attempts=%d", restarted.Status, restarted.Attempts)
	}

	_, err = env.jobs.GetByID(dbc, uuid.New())
	if status, _ := apierr.StatusOf(err, 500, ""); status != http.StatusNotFound {
		t.Fatalf("GetByID missing: want=404 got=%d", status)
	}
	_, err = env.jobs.Enqueue(dbc, "", "", "", nil)
	if status, _ := apierr.StatusOf(err, 500, ""); status != http.StatusBadRequest {
		t.Fatalf("Enqueue blank: want=400 got=%d", status)
	}
}
