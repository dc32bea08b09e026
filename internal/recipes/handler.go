package recipes

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/larder-erp/larder-erp/internal/platform/httpx"
	"github.com/larder-erp/larder-erp/internal/shared"
)

const actorHeader = "X-Actor-Id"

// Handler wires HTTP endpoints for recipe management. Routes are mounted
// under /api/products/{productID}/recipe.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs recipes handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers recipe routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.getRecipe)
	r.Post("/", h.addLine)
	r.Put("/{stockItemID}", h.updateLine)
	r.Delete("/{stockItemID}", h.removeLine)
}

type lineForm struct {
	StockItemID      int64           `json:"stock_item_id" validate:"required"`
	Quantity         decimal.Decimal `json:"quantity" validate:"required"`
	PreferredBrandID *int64          `json:"preferred_brand_id"`
	Notes            string          `json:"notes"`
}

type lineUpdateForm struct {
	Quantity            *decimal.Decimal `json:"quantity"`
	PreferredBrandID    *int64           `json:"preferred_brand_id"`
	ClearPreferredBrand bool             `json:"clear_preferred_brand"`
	Notes               *string          `json:"notes"`
}

func (h *Handler) getRecipe(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productID", "invalid product id")
	if !ok {
		return
	}
	lines, err := h.service.GetRecipe(r.Context(), productID)
	if err != nil {
		h.fail(w, "get recipe", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": lines})
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productID", "invalid product id")
	if !ok {
		return
	}
	var form lineForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	line, err := h.service.AddLine(r.Context(), AddLineInput{
		ProductID:        productID,
		StockItemID:      form.StockItemID,
		Quantity:         form.Quantity,
		PreferredBrandID: form.PreferredBrandID,
		Notes:            form.Notes,
	}, r.Header.Get(actorHeader))
	if err != nil {
		h.fail(w, "add recipe line", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, line)
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productID", "invalid product id")
	if !ok {
		return
	}
	stockItemID, ok := h.pathID(w, r, "stockItemID", "invalid stock item id")
	if !ok {
		return
	}
	var form lineUpdateForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	line, err := h.service.UpdateLine(r.Context(), productID, stockItemID, UpdateLineInput{
		Quantity:            form.Quantity,
		PreferredBrandID:    form.PreferredBrandID,
		ClearPreferredBrand: form.ClearPreferredBrand,
		Notes:               form.Notes,
	}, r.Header.Get(actorHeader))
	if err != nil {
		h.fail(w, "update recipe line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productID", "invalid product id")
	if !ok {
		return
	}
	stockItemID, ok := h.pathID(w, r, "stockItemID", "invalid stock item id")
	if !ok {
		return
	}
	if err := h.service.RemoveLine(r.Context(), productID, stockItemID, r.Header.Get(actorHeader)); err != nil {
		h.fail(w, "remove recipe line", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name, message string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", message)
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrInvalidInput) &&
		!errors.Is(err, shared.ErrConflict) && !errors.Is(err, shared.ErrBusinessRule) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
