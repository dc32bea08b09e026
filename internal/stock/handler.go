package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/larder-erp/larder-erp/internal/platform/httpx"
	"github.com/larder-erp/larder-erp/internal/shared"
)

// ActorHeader carries the caller identity supplied by the auth layer. It is
// recorded for audit attribution only, never validated here.
const ActorHeader = "X-Actor-Id"

// Handler wires HTTP endpoints for the stock module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers stock item routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/import", h.importRows)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.softDelete)
	r.Post("/{id}/restore", h.restore)
	r.Delete("/{id}/force", h.forceDelete)
	r.Post("/{id}/receive", h.receive)
	r.Post("/{id}/adjust", h.adjust)
	r.Get("/{id}/deletion-protection", h.deletionProtection)
}

// MountMovementRoutes registers the audit log routes.
func (h *Handler) MountMovementRoutes(r chi.Router) {
	r.Get("/", h.listMovements)
	r.Get("/{id}", h.showMovement)
}

type itemResponse struct {
	StockItem
	Status ItemStatus `json:"status"`
}

func toItemResponse(item StockItem) itemResponse {
	return itemResponse{StockItem: item, Status: item.Status()}
}

type itemForm struct {
	Name             string           `json:"name" validate:"required,max=255"`
	Description      string           `json:"description"`
	Unit             string           `json:"unit" validate:"required"`
	Quantity         decimal.Decimal  `json:"quantity"`
	ReorderThreshold *decimal.Decimal `json:"reorder_threshold"`
}

type itemUpdateForm struct {
	Name             *string          `json:"name" validate:"omitempty,max=255"`
	Description      *string          `json:"description"`
	Unit             *string          `json:"unit"`
	ReorderThreshold *decimal.Decimal `json:"reorder_threshold"`
	ClearThreshold   bool             `json:"clear_threshold"`
}

type receiveForm struct {
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
	Reason   string          `json:"reason"`
	RefType  string          `json:"ref_type"`
	RefID    string          `json:"ref_id"`
}

type adjustForm struct {
	Delta   decimal.Decimal `json:"delta" validate:"required"`
	Reason  string          `json:"reason" validate:"required"`
	RefType string          `json:"ref_type"`
	RefID   string          `json:"ref_id"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Search:         r.URL.Query().Get("search"),
		Status:         ItemStatus(r.URL.Query().Get("status")),
		IncludeDeleted: r.URL.Query().Get("include_deleted") == "true",
		ListParams:     httpx.ListParamsFromRequest(r),
	}
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list stock items", err)
		return
	}
	views := make([]itemResponse, 0, len(items))
	for _, item := range items {
		views = append(views, toItemResponse(item))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       views,
		"pagination": shared.NewPagination(filter.Page, filter.Limit, total),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form itemForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	item, err := h.service.Create(r.Context(), CreateItemInput{
		Name:             form.Name,
		Description:      form.Description,
		Unit:             form.Unit,
		InitialQuantity:  form.Quantity,
		ReorderThreshold: form.ReorderThreshold,
	})
	if err != nil {
		h.fail(w, "create stock item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *Handler) importRows(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Rows []ImportRow `json:"rows"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	report := h.service.ImportRows(r.Context(), payload.Rows)
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get stock item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	var form itemUpdateForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	item, err := h.service.Update(r.Context(), id, UpdateItemInput{
		Name:             form.Name,
		Description:      form.Description,
		Unit:             form.Unit,
		ReorderThreshold: form.ReorderThreshold,
		ClearThreshold:   form.ClearThreshold,
	})
	if err != nil {
		h.fail(w, "update stock item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	if err := h.service.SoftDelete(r.Context(), id, r.Header.Get(ActorHeader)); err != nil {
		h.fail(w, "soft delete stock item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	item, err := h.service.Restore(r.Context(), id, r.Header.Get(ActorHeader))
	if err != nil {
		h.fail(w, "restore stock item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) forceDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	if err := h.service.ForceDelete(r.Context(), id, r.Header.Get(ActorHeader)); err != nil {
		h.fail(w, "force delete stock item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	var form receiveForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	item, err := h.service.Receive(r.Context(), id, ReceiveInput{
		Quantity: form.Quantity,
		Reason:   form.Reason,
		RefType:  form.RefType,
		RefID:    form.RefID,
		ActorID:  r.Header.Get(ActorHeader),
	})
	if err != nil {
		h.fail(w, "receive stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	var form adjustForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	item, err := h.service.Adjust(r.Context(), id, AdjustInput{
		Delta:   form.Delta,
		Reason:  form.Reason,
		RefType: form.RefType,
		RefID:   form.RefID,
		ActorID: r.Header.Get(ActorHeader),
	})
	if err != nil {
		h.fail(w, "adjust stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) deletionProtection(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	canDelete, usage, err := h.service.CheckDeletionProtection(r.Context(), id)
	if err != nil {
		h.fail(w, "check deletion protection", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"can_delete":  canDelete,
		"usage_count": usage,
	})
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{
		Type:       MovementType(q.Get("type")),
		ActorID:    q.Get("actor_id"),
		ListParams: httpx.ListParamsFromRequest(r),
	}
	if raw := q.Get("stock_item_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid stock_item_id")
			return
		}
		filter.StockItemID = id
	}
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid from date")
			return
		}
		filter.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid to date")
			return
		}
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	records, total, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.fail(w, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       records,
		"pagination": shared.NewPagination(filter.Page, filter.Limit, total),
	})
}

func (h *Handler) showMovement(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid movement id")
		return
	}
	rec, err := h.service.GetMovement(r.Context(), id)
	if err != nil {
		h.fail(w, "get movement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid stock item id")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if isServerError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isServerError(err error) bool {
	for _, kind := range []error{shared.ErrNotFound, shared.ErrInvalidInput, shared.ErrConflict, shared.ErrBusinessRule} {
		if errors.Is(err, kind) {
			return false
		}
	}
	return true
}
