package services

import (
	"context"
	"time"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
	"github.com/yungbote/netgenealogy-backend/internal/realtime"
	"github.com/yungbote/netgenealogy-backend/internal/realtime/bus"
)

type JobNotifier interface {
	JobCreated(job *types.JobRun)
	JobProgress(job *types.JobRun, stage string, progress int, message string)
	JobFailed(job *types.JobRun, stage string, errorMessage string)
	JobDone(job *types.JobRun)
}

type jobNotifier struct {
	bus bus.Bus
	log *logger.Logger
}

func NewJobNotifier(b bus.Bus, baseLog *logger.Logger) JobNotifier {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &jobNotifier{bus: b, log: baseLog.With("service", "JobNotifier")}
}

func jobChannel(job *types.JobRun) string {
	if job.EntityType == "" {
		return "job:" + job.ID.String()
	}
	return job.EntityType + ":" + job.EntityKey
}

func (n *jobNotifier) publish(job *types.JobRun, event string, data map[string]any) {
	if n == nil || n.bus == nil || job == nil {
		return
	}
	data["job_id"] = job.ID
	data["job_type"] = job.JobType
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.bus.Publish(ctx, realtime.Message{Channel: jobChannel(job), Event: event, Data: data}); err != nil {
		n.log.Warn("job event publish failed", "job_id", job.ID, "event", event, "error", err)
	}
}

func (n *jobNotifier) JobCreated(job *types.JobRun) {
	n.publish(job, realtime.EventJobCreated, map[string]any{"job": job})
}

func (n *jobNotifier) JobProgress(job *types.JobRun, stage string, progress int, message string) {
	n.publish(job, realtime.EventJobProgress, map[string]any{
		"stage":    stage,
		"progress": progress,
		"message":  message,
	})
}

func (n *jobNotifier) JobFailed(job *types.JobRun, stage string, errorMessage string) {
	n.publish(job, realtime.EventJobFailed, map[string]any{
		"stage": stage,
		"error": errorMessage,
	})
}

func (n *jobNotifier) JobDone(job *types.JobRun) {
	n.publish(job, realtime.EventJobDone, map[string]any{"result": job.Result})
}
