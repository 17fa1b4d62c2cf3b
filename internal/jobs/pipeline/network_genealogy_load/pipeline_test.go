package network_genealogy_load

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	jobrt "github.com/yungbote/netgenealogy-backend/internal/jobs/runtime"
	"github.com/yungbote/netgenealogy-backend/internal/modules/genealogy"
	"github.com/yungbote/netgenealogy-backend/internal/platform/dbctx"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
	"github.com/yungbote/netgenealogy-backend/internal/services"
)

type fakeGenealogy struct {
	services.GenealogyService
	res         genealogy.LoadResult
	err         error
	networkID   string
	artifactIDs []uuid.UUID
}

func (f *fakeGenealogy) LoadForNetwork(_ dbctx.Context, networkID string, artifactIDs []uuid.UUID) (genealogy.LoadResult, error) {
	f.networkID = networkID
	f.artifactIDs = artifactIDs
	return f.res, f.err
}

func newJob(t *testing.T, payload map[string]any) *types.JobRun {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	return &types.JobRun{ID: uuid.New(), JobType: services.JobTypeNetworkGenealogyLoad, Status: types.JobStatusRunning, Payload: datatypes.JSON(b)}
}

func TestPipeline_Succeeds(t *testing.T) {
	anc := types.NewNetwork("1", "", types.HistoricBlock{Height: 50, Hash: "0x32"})
	edge := uuid.New()
	fake := &fakeGenealogy{res: genealogy.LoadResult{NetworkID: "1", EdgeIDs: []uuid.UUID{edge}, RemoteAncestor: anc}}
	p := New(logger.Nop(), fake)

	art := uuid.New()
	jc := jobrt.NewContext(context.Background(), nil, newJob(t, map[string]any{
		"network_id":   "1",
		"artifact_ids": []string{art.String()},
	}), nil, nil)
	if err := p.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jc.Job.Status != types.JobStatusSucceeded {
		t.Fatalf("status: want=%s got=%s (%s)", types.JobStatusSucceeded, jc.Job.Status, jc.Job.Error)
	}
	if fake.networkID != "1" || len(fake.artifactIDs) != 1 || fake.artifactIDs[0] != art {
		t.Fatalf("load args: network=%s artifacts=%v", fake.networkID, fake.artifactIDs)
	}

	var out struct {
		NetworkID      string      `json:"network_id"`
		EdgeIDs        []uuid.UUID `json:"edge_ids"`
		RemoteAncestor *uuid.UUID  `json:"remote_ancestor"`
	}
	if err := json.Unmarshal(jc.Job.Result, &out); err != nil {
		t.Fatalf("result: %v", err)
	}
	if out.NetworkID != "1" || len(out.EdgeIDs) != 1 || out.EdgeIDs[0] != edge {
		t.Fatalf("result: unexpected %+v", out)
	}
	if out.RemoteAncestor == nil || *out.RemoteAncestor != anc.ID {
		t.Fatalf("remote ancestor: want=%s got=%v", anc.ID, out.RemoteAncestor)
	}
}

func TestPipeline_Fails(t *testing.T) {
	fake := &fakeGenealogy{err: errors.Join(genealogy.ErrChainRead, errors.New("node down"))}
	p := New(logger.Nop(), fake)

	jc := jobrt.NewContext(context.Background(), nil, newJob(t, map[string]any{"network_id": "1"}), nil, nil)
	if err := p.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jc.Job.Status != types.JobStatusFailed || jc.Job.Stage != "load" {
		t.Fatalf("status: want=failed/load got=%s/%s", jc.Job.Status, jc.Job.Stage)
	}

	jc = jobrt.NewContext(context.Background(), nil, newJob(t, map[string]any{}), nil, nil)
	if err := p.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jc.Job.Status != types.JobStatusFailed || jc.Job.Stage != "validate" {
		t.Fatalf("status: want=failed/validate got=%s/%s", jc.Job.Status, jc.Job.Stage)
	}
}
