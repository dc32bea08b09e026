package httpx

import (
	"net/http"
	"strconv"

	"github.com/larder-erp/larder-erp/internal/shared"
)

// ListParamsFromRequest reads page/limit query parameters, applying defaults
// when they are absent. Out-of-range values are preserved so the core can
// reject them.
func ListParamsFromRequest(r *http.Request) shared.ListParams {
	params := shared.ListParams{Page: 1, Limit: 20}
	if raw := r.URL.Query().Get("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			params.Page = v
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			params.Limit = v
		}
	}
	return params
}
