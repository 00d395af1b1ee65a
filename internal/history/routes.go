package history

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/strefethen/sonos-display-go/internal/api"
	"github.com/strefethen/sonos-display-go/internal/apperrors"
)

// RegisterRoutes wires history routes to the router.
func RegisterRoutes(router chi.Router, service *Service) {
	router.Method(http.MethodGet, "/history", api.Handler(listHistory(service)))
}

func listHistory(service *Service) api.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		query := r.URL.Query()

		limit, err := parseNonNegative(query.Get("limit"), "limit")
		if err != nil {
			return err
		}
		offset, err := parseNonNegative(query.Get("offset"), "offset")
		if err != nil {
			return err
		}

		entries, hasMore, err := service.List(query.Get("room"), limit, offset)
		if err != nil {
			return apperrors.NewInternalError("Failed to load history")
		}
		return api.WriteList(w, "/history", entries, hasMore)
	}
}

func parseNonNegative(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, apperrors.NewValidationError(field+" must be a non-negative integer", map[string]any{"field": field})
	}
	return value, nil
}
