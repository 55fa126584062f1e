package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/johnwmail/npaste/internal/middleware"
	"github.com/johnwmail/npaste/internal/services"
	"github.com/johnwmail/npaste/models"
	"go.uber.org/zap"
)

func init() {
	// keep numbers as json.Number so 2 and 2.5 stay distinguishable
	binding.EnableDecoderUseNumber = true
}

// PasteHandler handles the paste JSON endpoints
type PasteHandler struct {
	service *services.PasteService
	logger  *zap.Logger
}

// NewPasteHandler creates a new paste handler
func NewPasteHandler(service *services.PasteService, logger *zap.Logger) *PasteHandler {
	return &PasteHandler{
		service: service,
		logger:  logger,
	}
}

// Create handles POST /create-paste
func (h *PasteHandler) Create(c *gin.Context) {
	var req models.CreatePasteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			// empty body: let validation report the missing content
		case middleware.IsBodyTooLarge(err):
			failure(c, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		default:
			failure(c, http.StatusBadRequest, "Invalid JSON body")
			return
		}
	}

	resp, err := h.service.CreatePaste(c.Request.Context(), req, middleware.Now(c))
	if err != nil {
		var verr *services.ValidationError
		switch {
		case errors.As(err, &verr):
			failure(c, http.StatusBadRequest, verr.Message)
		case errors.Is(err, services.ErrResourceExhausted):
			failure(c, http.StatusInternalServerError, "Failed to generate unique paste ID")
		default:
			failure(c, http.StatusInternalServerError, "Error creating paste")
		}
		return
	}

	c.JSON(http.StatusCreated, models.APIResponse{
		Status:  models.StatusSuccess,
		Message: "Paste Created Successfully",
		Data:    resp,
	})
}

// Get handles GET /get-paste/:id. Every successful call counts as a view.
func (h *PasteHandler) Get(c *gin.Context) {
	paste, err := h.service.GetPaste(c.Request.Context(), c.Param("id"), middleware.Now(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnavailable):
			failure(c, http.StatusNotFound, "Paste not found or has expired")
		case errors.Is(err, services.ErrNotFound):
			failure(c, http.StatusNotFound, "Paste not found")
		default:
			failure(c, http.StatusInternalServerError, "Error fetching paste")
		}
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Status:  models.StatusSuccess,
		Message: "Paste Retrieved Successfully",
		Data:    models.NewPasteView(paste),
	})
}

// List handles GET /get-all-pastes
func (h *PasteHandler) List(c *gin.Context) {
	pastes, err := h.service.ListPastes(c.Request.Context())
	if err != nil {
		failure(c, http.StatusInternalServerError, "Error fetching pastes")
		return
	}
	if pastes == nil {
		pastes = []*models.Paste{}
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Status:  models.StatusSuccess,
		Message: "All Pastes Retrieved Successfully",
		Data:    pastes,
	})
}

// Delete handles DELETE /delete-paste/:id
func (h *PasteHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.DeletePaste(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			failure(c, http.StatusNotFound, "Paste not found")
			return
		}
		failure(c, http.StatusInternalServerError, "Error deleting paste")
		return
	}

	h.logger.Info("paste deleted", zap.String("paste_id", id))
	c.JSON(http.StatusOK, models.APIResponse{
		Status:  models.StatusSuccess,
		Message: "Paste Deleted Successfully",
	})
}

func failure(c *gin.Context, code int, message string) {
	c.JSON(code, models.APIResponse{
		Status:  models.StatusFailure,
		Message: message,
	})
}
