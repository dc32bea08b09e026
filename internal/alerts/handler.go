package alerts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/larder-erp/larder-erp/internal/platform/httpx"
)

// Handler exposes the low-stock alert feed.
type Handler struct {
	logger *slog.Logger
	feed   *Feed
}

// NewHandler constructs alerts handler.
func NewHandler(logger *slog.Logger, feed *Feed) *Handler {
	return &Handler{logger: logger, feed: feed}
}

// MountRoutes registers alert routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/low-stock", h.recent)
}

func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	n := int64(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			n = v
		}
	}
	result, err := h.feed.Recent(r.Context(), n)
	if err != nil {
		h.logger.Error("read alert feed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": result})
}
