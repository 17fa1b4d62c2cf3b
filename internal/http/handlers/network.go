package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/netgenealogy-backend/internal/http/response"
	"github.com/yungbote/netgenealogy-backend/internal/platform/dbctx"
	"github.com/yungbote/netgenealogy-backend/internal/services"
)

type NetworkHandler struct {
	genealogy services.GenealogyService
}

func NewNetworkHandler(genealogy services.GenealogyService) *NetworkHandler {
	return &NetworkHandler{genealogy: genealogy}
}

// GET /api/networks?network_id=&limit=
func (h *NetworkHandler) ListNetworks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	nets, err := h.genealogy.ListNetworks(dbctx.Context{Ctx: c.Request.Context()}, c.Query("network_id"), limit)
	if err != nil {
		response.RespondServiceError(c, err, http.StatusInternalServerError, "list_networks_failed")
		return
	}
	response.RespondOK(c, gin.H{"networks": nets})
}

// GET /api/networks/:id/genealogy
func (h *NetworkHandler) GetGenealogy(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_network_id", err)
		return
	}
	view, err := h.genealogy.GetGenealogy(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondServiceError(c, err, http.StatusInternalServerError, "get_genealogy_failed")
		return
	}
	response.RespondOK(c, view)
}
