package pricing

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

// Handler wires HTTP endpoints for the price catalog. Routes are mounted
// under /api/stock-items/{id}/prices.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs pricing handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers price catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.attach)
	r.Delete("/", h.detachAll)
	r.Put("/{brandID}", h.update)
	r.Delete("/{brandID}", h.detach)
	r.Post("/{brandID}/preferred", h.setPreferred)
}

type attachForm struct {
	BrandID        int64           `json:"brand_id" validate:"required"`
	PriceBeforeTax decimal.Decimal `json:"price_before_tax" validate:"required"`
	PriceAfterTax  decimal.Decimal `json:"price_after_tax" validate:"required"`
	IsPreferred    bool            `json:"is_preferred"`
}

type priceUpdateForm struct {
	PriceBeforeTax *decimal.Decimal `json:"price_before_tax"`
	PriceAfterTax  *decimal.Decimal `json:"price_after_tax"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	itemID, ok := h.pathID(w, r, "id", "invalid stock item id")
	if !ok {
		return
	}
	entries, err := h.service.ListByStockItem(r.Context(), itemID)
	if err != nil {
		h.fail(w, "list prices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

func (h *Handler) attach(w http.ResponseWriter, r *http.Request) {
	itemID, ok := h.pathID(w, r, "id", "invalid stock item id")
	if !ok {
		return
	}
	var form attachForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	entry, err := h.service.Attach(r.Context(), AttachInput{
		StockItemID:    itemID,
		BrandID:        form.BrandID,
		PriceBeforeTax: form.PriceBeforeTax,
		PriceAfterTax:  form.PriceAfterTax,
		IsPreferred:    form.IsPreferred,
	}, r.Header.Get(actorHeader))
	if err != nil {
		h.fail(w, "attach price", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	itemID, ok := h.pathID(w, r, "id", "invalid stock item id")
	if !ok {
		return
	}
	brandID, ok := h.pathID(w, r, "brandID", "invalid brand id")
	if !ok {
		return
	}
	var form priceUpdateForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	entry, err := h.service.Update(r.Context(), itemID, brandID, UpdateInput{
		PriceBeforeTax: form.PriceBeforeTax,
		PriceAfterTax:  form.PriceAfterTax,
	}, r.Header.Get(actorHeader))
	if err != nil {
		h.fail(w, "update price", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) detach(w http.ResponseWriter, r *http.Request) {
	itemID, ok := h.pathID(w, r, "id", "invalid stock item id")
	if !ok {
		return
	}
	brandID, ok := h.pathID(w, r, "brandID", "invalid brand id")
	if !ok {
		return
	}
	if err := h.service.Detach(r.Context(), itemID, brandID, r.Header.Get(actorHeader)); err != nil {
		h.fail(w, "detach price", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) detachAll(w http.ResponseWriter, r *http.Request) {
	itemID, ok := h.pathID(w, r, "id", "invalid stock item id")
	if !ok {
		return
	}
	removed, err := h.service.DetachAllForStockItem(r.Context(), itemID, r.Header.Get(actorHeader))
	if err != nil {
		h.fail(w, "detach all prices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (h *Handler) setPreferred(w http.ResponseWriter, r *http.Request) {
	itemID, ok := h.pathID(w, r, "id", "invalid stock item id")
	if !ok {
		return
	}
	brandID, ok := h.pathID(w, r, "brandID", "invalid brand id")
	if !ok {
		return
	}
	if err := h.service.SetPreferred(r.Context(), itemID, brandID, r.Header.Get(actorHeader)); err != nil {
		h.fail(w, "set preferred price", err)
		return
	}
	entries, err := h.service.ListByStockItem(r.Context(), itemID)
	if err != nil {
		h.fail(w, "list prices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": entries})
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
