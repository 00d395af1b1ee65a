package nowplaying

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/strefethen/sonos-display-go/internal/api"
	"github.com/strefethen/sonos-display-go/internal/apperrors"
	"github.com/strefethen/sonos-display-go/internal/sonosapi"
)

const maxWebhookBytes = 1 << 20

// RegisterRoutes wires the webhook, status and room routes. protect guards
// operator commands; pass nil to leave them open.
func RegisterRoutes(router chi.Router, engine *Engine, protect func(http.Handler) http.Handler) {
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}

	router.Method(http.MethodPost, "/", api.Handler(webhookHandler(engine)))
	router.Method(http.MethodGet, "/status", api.Handler(statusHandler(engine)))
	router.With(protect).Method(http.MethodPost, "/set-room", api.Handler(setRoomHandler(engine)))
}

func webhookHandler(engine *Engine) api.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		var event sonosapi.WebhookEvent
		if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBytes)).Decode(&event); err != nil {
			return apperrors.NewAppError(apperrors.ErrorCodeMalformedWebhook, "Malformed webhook body", http.StatusBadRequest, nil)
		}

		if event.Type != sonosapi.WebhookTypeTransportState {
			return api.WriteOK(w)
		}

		var data sonosapi.TransportStateData
		if err := json.Unmarshal(event.Data, &data); err != nil || data.State == nil {
			return apperrors.NewAppError(apperrors.ErrorCodeMalformedWebhook, "Malformed transport-state data", http.StatusBadRequest, nil)
		}

		if data.RoomName != engine.Room() {
			return api.WriteOK(w)
		}

		update := Update{
			Source:  UpdateSourcePush,
			Room:    data.RoomName,
			Payload: data.State,
		}
		if err := engine.Submit(r.Context(), update); err != nil {
			return apperrors.NewAppError(apperrors.ErrorCodeEngineUnavailable, "Update queue unavailable", http.StatusServiceUnavailable, nil)
		}
		return api.WriteOK(w)
	}
}

func statusHandler(engine *Engine) api.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, engine.Status())
	}
}

func setRoomHandler(engine *Engine) api.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := r.ParseForm(); err != nil {
			return apperrors.NewValidationError("Invalid form body", nil)
		}
		room := strings.TrimSpace(r.PostFormValue("room"))
		if room == "" {
			return apperrors.NewValidationError("room is required", map[string]any{"field": "room"})
		}
		engine.SetRoom(room)
		return api.WriteOK(w)
	}
}
