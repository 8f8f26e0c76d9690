package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/employdex/base-platform/internal/platform/httpx"
)

// PermActivityView guards access to the activity log.
const PermActivityView = "activity_view"

// Handler exposes the activity log over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes. Authorization is applied by the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listTimeline)
}

func (h *Handler) listTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := TimelineFilters{
		Action: q.Get("action"),
		Entity: q.Get("entity"),
	}
	if actor := q.Get("actor"); actor != "" {
		id, err := strconv.ParseInt(actor, 10, 64)
		if err != nil {
			httpx.RespondError(w, h.logger, httpx.ErrValidation)
			return
		}
		filters.Actor = id
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			httpx.RespondError(w, h.logger, httpx.ErrValidation)
			return
		}
		filters.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			httpx.RespondError(w, h.logger, httpx.ErrValidation)
			return
		}
		filters.To = t
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if result.Rows == nil {
		result.Rows = []TimelineRow{}
	}
	httpx.JSON(w, http.StatusOK, result)
}
