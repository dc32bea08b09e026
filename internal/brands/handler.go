package brands

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/larder-erp/larder-erp/internal/platform/httpx"
	"github.com/larder-erp/larder-erp/internal/shared"
)

const actorHeader = "X-Actor-Id"

// Handler wires HTTP endpoints for the brands module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs brands handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

type brandForm struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

type brandUpdateForm struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Search:         r.URL.Query().Get("search"),
		ActiveOnly:     r.URL.Query().Get("active") == "true",
		IncludeDeleted: r.URL.Query().Get("include_deleted") == "true",
		ListParams:     httpx.ListParamsFromRequest(r),
	}
	result, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list brands", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       result,
		"pagination": shared.NewPagination(filter.Page, filter.Limit, total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.brandID(w, r)
	if !ok {
		return
	}
	brand, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get brand", err)
		return
	}
	httpx.JSON(w, http.StatusOK, brand)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var form brandForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	input := CreateInput{Name: form.Name, Description: form.Description, IsActive: true}
	if form.IsActive != nil {
		input.IsActive = *form.IsActive
	}
	brand, err := h.service.Create(r.Context(), input, r.Header.Get(actorHeader))
	if err != nil {
		h.fail(w, "create brand", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, brand)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.brandID(w, r)
	if !ok {
		return
	}
	var form brandUpdateForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	brand, err := h.service.Update(r.Context(), id, UpdateInput{
		Name:        form.Name,
		Description: form.Description,
		IsActive:    form.IsActive,
	}, r.Header.Get(actorHeader))
	if err != nil {
		h.fail(w, "update brand", err)
		return
	}
	httpx.JSON(w, http.StatusOK, brand)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.brandID(w, r)
	if !ok {
		return
	}
	if err := h.service.SoftDelete(r.Context(), id, r.Header.Get(actorHeader)); err != nil {
		h.fail(w, "soft delete brand", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.brandID(w, r)
	if !ok {
		return
	}
	brand, err := h.service.Restore(r.Context(), id, r.Header.Get(actorHeader))
	if err != nil {
		h.fail(w, "restore brand", err)
		return
	}
	httpx.JSON(w, http.StatusOK, brand)
}

func (h *Handler) ForceDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.brandID(w, r)
	if !ok {
		return
	}
	if err := h.service.ForceDelete(r.Context(), id, r.Header.Get(actorHeader)); err != nil {
		h.fail(w, "force delete brand", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) brandID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid brand id")
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
