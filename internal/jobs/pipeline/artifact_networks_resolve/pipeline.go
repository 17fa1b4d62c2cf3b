package artifact_networks_resolve

import (
	"strconv"

	jobrt "github.com/yungbote/netgenealogy-backend/internal/jobs/runtime"
	"github.com/yungbote/netgenealogy-backend/internal/platform/dbctx"
	"github.com/yungbote/netgenealogy-backend/internal/services"
)

// Run resolves pending transaction-hash observations ({network_id?, limit?}) and queues a
// genealogy load for every network id that gained one.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	networkID := jc.PayloadString("network_id")
	limit, _ := strconv.Atoi(jc.PayloadString("limit"))

	jc.Progress("resolve", 10, "Resolving transaction blocks")
	touched, err := p.artifacts.ResolvePending(dbctx.Context{Ctx: jc.Ctx}, networkID, limit)
	if err != nil {
		jc.Fail("resolve", err)
		return nil
	}

	jc.Progress("enqueue", 80, "Queueing genealogy loads")
	queued := []string{}
	if p.jobs != nil {
		for _, id := range touched {
			job, created, err := p.jobs.EnqueueIfIdle(dbctx.Context{Ctx: jc.Ctx}, services.JobTypeNetworkGenealogyLoad, services.EntityTypeNetwork, id, map[string]any{
				"network_id": id,
			})
			if err != nil {
				p.log.Warn("enqueue genealogy load failed", "network_id", id, "error", err)
				continue
			}
			if created && job != nil {
				queued = append(queued, job.ID.String())
			}
		}
	}

	if touched == nil {
		touched = []string{}
	}
	jc.Succeed("done", map[string]any{
		"resolved_networks": touched,
		"jobs":              queued,
	})
	return nil
}
