package network_genealogy_load

import (
	"fmt"

	"github.com/google/uuid"

	jobrt "github.com/yungbote/netgenealogy-backend/internal/jobs/runtime"
	"github.com/yungbote/netgenealogy-backend/internal/platform/dbctx"
)

// Run expects {network_id, artifact_ids?}; without artifact_ids every artifact observing the
// network id takes part.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	networkID := jc.PayloadString("network_id")
	if networkID == "" {
		networkID = jc.Job.EntityKey
	}
	if networkID == "" {
		jc.Fail("validate", fmt.Errorf("missing network_id"))
		return nil
	}
	artifactIDs, err := jc.PayloadUUIDs("artifact_ids")
	if err != nil {
		jc.Fail("validate", err)
		return nil
	}

	jc.Progress("load", 10, "Building genealogy for network "+networkID)
	res, err := p.genealogy.LoadForNetwork(dbctx.Context{Ctx: jc.Ctx}, networkID, artifactIDs)
	if err != nil {
		p.log.Warn("genealogy load failed", "network_id", networkID, "edges", len(res.EdgeIDs), "error", err)
		jc.Fail("load", err)
		return nil
	}

	edgeIDs := res.EdgeIDs
	if edgeIDs == nil {
		edgeIDs = []uuid.UUID{}
	}
	out := map[string]any{
		"network_id":     networkID,
		"edge_ids":       edgeIDs,
		"remote_skipped": res.RemoteSkipped,
	}
	if res.RemoteAncestor != nil {
		out["remote_ancestor"] = res.RemoteAncestor.ID
	}
	if res.RemoteDescendant != nil {
		out["remote_descendant"] = res.RemoteDescendant.ID
	}
	jc.Succeed("done", out)
	return nil
}
