package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/netgenealogy-backend/internal/http/response"
	"github.com/yungbote/netgenealogy-backend/internal/modules/genealogy"
	"github.com/yungbote/netgenealogy-backend/internal/platform/dbctx"
	"github.com/yungbote/netgenealogy-backend/internal/services"
)

type GenealogyHandler struct {
	genealogy services.GenealogyService
	jobs      services.JobService
}

func NewGenealogyHandler(genealogy services.GenealogyService, jobs services.JobService) *GenealogyHandler {
	return &GenealogyHandler{genealogy: genealogy, jobs: jobs}
}

type loadRequest struct {
	ArtifactIDs []uuid.UUID `json:"artifact_ids"`
}

type loadResponse struct {
	NetworkID        string      `json:"network_id"`
	Edges            int         `json:"edges"`
	EdgeIDs          []uuid.UUID `json:"edge_ids"`
	RemoteAncestor   *uuid.UUID  `json:"remote_ancestor,omitempty"`
	RemoteDescendant *uuid.UUID  `json:"remote_descendant,omitempty"`
	RemoteSkipped    bool        `json:"remote_skipped"`
	Error            string      `json:"error,omitempty"`
}

func toLoadResponse(res genealogy.LoadResult) loadResponse {
	out := loadResponse{
		NetworkID:     res.NetworkID,
		Edges:         len(res.Edges),
		EdgeIDs:       res.EdgeIDs,
		RemoteSkipped: res.RemoteSkipped,
	}
	if out.EdgeIDs == nil {
		out.EdgeIDs = []uuid.UUID{}
	}
	if res.RemoteAncestor != nil {
		out.RemoteAncestor = &res.RemoteAncestor.ID
	}
	if res.RemoteDescendant != nil {
		out.RemoteDescendant = &res.RemoteDescendant.ID
	}
	return out
}

func bindLoadRequest(c *gin.Context) (loadRequest, bool) {
	var req loadRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return req, false
	}
	return req, true
}

// POST /api/genealogies/:network_id/load[?sync=true]
//
// Queues a genealogy load job unless sync is set, in which case the load runs inline.
func (h *GenealogyHandler) Load(c *gin.Context) {
	networkID := c.Param("network_id")
	req, ok := bindLoadRequest(c)
	if !ok {
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}

	if sync, _ := strconv.ParseBool(c.Query("sync")); sync {
		res, err := h.genealogy.LoadForNetwork(dbc, networkID, req.ArtifactIDs)
		if err != nil {
			if errors.Is(err, genealogy.ErrChainRead) {
				out := toLoadResponse(res)
				out.Error = err.Error()
				c.JSON(http.StatusBadGateway, out)
				return
			}
			response.RespondServiceError(c, err, http.StatusInternalServerError, "genealogy_load_failed")
			return
		}
		response.RespondOK(c, toLoadResponse(res))
		return
	}

	payload := map[string]any{"network_id": networkID}
	if len(req.ArtifactIDs) > 0 {
		ids := make([]string, 0, len(req.ArtifactIDs))
		for _, id := range req.ArtifactIDs {
			ids = append(ids, id.String())
		}
		payload["artifact_ids"] = ids
	}
	job, created, err := h.jobs.EnqueueIfIdle(dbc, services.JobTypeNetworkGenealogyLoad, services.EntityTypeNetwork, networkID, payload)
	if err != nil {
		response.RespondServiceError(c, err, http.StatusInternalServerError, "enqueue_failed")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job, "created": created})
}

// POST /api/genealogies/:network_id/plan
func (h *GenealogyHandler) Plan(c *gin.Context) {
	req, ok := bindLoadRequest(c)
	if !ok {
		return
	}
	res, err := h.genealogy.PlanForNetwork(dbctx.Context{Ctx: c.Request.Context()}, c.Param("network_id"), req.ArtifactIDs)
	if err != nil && !errors.Is(err, genealogy.ErrChainRead) {
		response.RespondServiceError(c, err, http.StatusInternalServerError, "genealogy_plan_failed")
		return
	}
	out := toLoadResponse(res)
	if err != nil {
		out.Error = err.Error()
		c.JSON(http.StatusBadGateway, out)
		return
	}
	response.RespondOK(c, out)
}
