// Package api holds the HTTP plumbing shared by every route: authentication,
// request logging, timeouts and the health check.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/course-roster-api/databases"
	"github.com/linesmerrill/course-roster-api/models"
)

// HealthCheckHandler reports the API as alive when the database answers a ping
func HealthCheckHandler(client databases.ClientHelper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := http.StatusOK
		resp := models.HealthCheckResponse{Alive: true}
		if client != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := client.Ping(ctx); err != nil {
				zap.S().Warnw("health check ping failed", "error", err)
				status = http.StatusServiceUnavailable
				resp.Alive = false
			}
		}
		b, _ := json.Marshal(resp)
		w.WriteHeader(status)
		_, _ = w.Write(b)
	}
}
