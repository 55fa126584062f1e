package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/johnwmail/npaste/internal/services"
	"github.com/johnwmail/npaste/models"
)

// SystemHandler handles system endpoints
type SystemHandler struct {
	service *services.PasteService
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(service *services.PasteService) *SystemHandler {
	return &SystemHandler{service: service}
}

type healthResponse struct {
	Status string `json:"status"`
	OK     bool   `json:"ok"`
}

// Health handles GET /healthz by pinging the store
func (h *SystemHandler) Health(c *gin.Context) {
	if err := h.service.Healthy(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, healthResponse{Status: models.StatusFailure, OK: false})
		return
	}
	c.JSON(http.StatusOK, healthResponse{Status: models.StatusSuccess, OK: true})
}
