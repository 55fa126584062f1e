package handlers

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/johnwmail/npaste/internal/middleware"
	"github.com/johnwmail/npaste/internal/services"
	"github.com/johnwmail/npaste/models"
	"github.com/johnwmail/npaste/utils"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const htmlContentType = "text/html; charset=utf-8"

type pastePage struct {
	ID             string
	Content        template.HTML
	Limited        bool
	RemainingViews int
	ExpiresAt      string
}

type errorPage struct {
	Title   string
	Message string
}

// ViewHandler renders pastes as HTML
type ViewHandler struct {
	service *services.PasteService
	logger  *zap.Logger
}

// NewViewHandler creates a new view handler
func NewViewHandler(service *services.PasteService, logger *zap.Logger) *ViewHandler {
	return &ViewHandler{
		service: service,
		logger:  logger,
	}
}

// View handles GET /view-paste/:id and GET /p/:id
func (h *ViewHandler) View(c *gin.Context) {
	id := c.Param("id")
	paste, err := h.service.GetPaste(c.Request.Context(), id, middleware.Now(c))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			h.render(c, http.StatusNotFound, "error.html", notFoundPage)
			return
		}
		h.render(c, http.StatusInternalServerError, "error.html", serverErrorPage)
		return
	}

	h.render(c, http.StatusOK, "paste.html", newPastePage(paste))
}

var (
	notFoundPage = errorPage{
		Title:   "Paste Not Found",
		Message: "The paste you're looking for doesn't exist or has expired.",
	}
	serverErrorPage = errorPage{
		Title:   "Server Error",
		Message: "Something went wrong while loading this paste.",
	}
)

func newPastePage(p *models.Paste) pastePage {
	page := pastePage{
		ID: p.ID,
		// already escaped; html/template must not escape it twice
		Content: template.HTML(utils.SanitizeContent(p.Content)),
	}
	if remaining := p.RemainingViews(); remaining != nil {
		page.Limited = true
		page.RemainingViews = *remaining
	}
	if expires := p.ExpiresAtISO(); expires != nil {
		page.ExpiresAt = *expires
	}
	return page
}

// render executes into a buffer first so a template failure still produces
// a clean error page
func (h *ViewHandler) render(c *gin.Context, code int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("failed to render page", zap.String("template", name), zap.Error(err))
		c.Data(http.StatusInternalServerError, "text/plain; charset=utf-8", []byte("Server Error"))
		return
	}
	c.Data(code, htmlContentType, buf.Bytes())
}
