package display

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/strefethen/sonos-display-go/internal/api"
	"github.com/strefethen/sonos-display-go/internal/apperrors"
)

// RegisterRoutes wires the detail-mode routes. protect guards the command.
func RegisterRoutes(router chi.Router, detail *DetailControls, protect func(http.Handler) http.Handler) {
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}

	router.Method(http.MethodGet, "/show-detail", api.Handler(getDetailHandler(detail)))
	router.With(protect).Method(http.MethodPost, "/show-detail", api.Handler(setDetailHandler(detail)))
}

func getDetailHandler(detail *DetailControls) api.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, detail.State())
	}
}

func setDetailHandler(detail *DetailControls) api.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := r.ParseForm(); err != nil {
			return apperrors.NewValidationError("Invalid form body", nil)
		}

		show, err := ParseDetail(r.PostFormValue("detail"))
		if err != nil {
			return apperrors.NewValidationError("detail must be true or false", map[string]any{"field": "detail"})
		}

		var timeout time.Duration
		if raw := strings.TrimSpace(r.PostFormValue("timeout")); raw != "" {
			seconds, err := strconv.Atoi(raw)
			if err != nil || seconds < 0 {
				return apperrors.NewValidationError("timeout must be a non-negative integer", map[string]any{"field": "timeout"})
			}
			timeout = time.Duration(seconds) * time.Second
		}

		detail.SetDetail(show, timeout)
		return api.WriteOK(w)
	}
}
