package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/netgenealogy-backend/internal/http/response"
	"github.com/yungbote/netgenealogy-backend/internal/platform/dbctx"
	"github.com/yungbote/netgenealogy-backend/internal/services"
)

type ArtifactHandler struct {
	artifacts services.ArtifactService
	jobs      services.JobService
}

func NewArtifactHandler(artifacts services.ArtifactService, jobs services.JobService) *ArtifactHandler {
	return &ArtifactHandler{artifacts: artifacts, jobs: jobs}
}

// POST /api/artifacts
func (h *ArtifactHandler) Ingest(c *gin.Context) {
	var in services.ArtifactInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	res, err := h.artifacts.Ingest(dbctx.Context{Ctx: c.Request.Context()}, in)
	if err != nil {
		response.RespondServiceError(c, err, http.StatusInternalServerError, "ingest_failed")
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /api/artifacts/:id
func (h *ArtifactHandler) GetArtifact(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_artifact_id", err)
		return
	}
	a, err := h.artifacts.GetByID(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondServiceError(c, err, http.StatusInternalServerError, "get_artifact_failed")
		return
	}
	response.RespondOK(c, gin.H{"artifact": a})
}

// POST /api/artifacts/resolve?network_id=
//
// Queues a job resolving observations that only carry a transaction hash.
func (h *ArtifactHandler) ResolvePending(c *gin.Context) {
	networkID := strings.TrimSpace(c.Query("network_id"))
	key := networkID
	if key == "" {
		key = "*"
	}
	payload := map[string]any{}
	if networkID != "" {
		payload["network_id"] = networkID
	}
	job, created, err := h.jobs.EnqueueIfIdle(dbctx.Context{Ctx: c.Request.Context()}, services.JobTypeArtifactNetworksResolve, services.EntityTypeNetwork, key, payload)
	if err != nil {
		response.RespondServiceError(c, err, http.StatusInternalServerError, "enqueue_failed")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job, "created": created})
}
