package app

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mbocsi/homelink/services"
)

type healthResponse struct {
	Status string `json:"status"`
	services.DeviceStatus
}

// HealthHandler reports liveness and the device session.
func (a *App) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(healthResponse{Status: "ok", DeviceStatus: a.devices.Status()}); err != nil {
			slog.Warn("Could not write health response", "remote_addr", r.RemoteAddr, "error", err)
		}
	})
}
