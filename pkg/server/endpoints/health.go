package endpoints

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/membership-gateway/pkg/metrics"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/respond"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/store"
)

const healthCheckTimeout = 2 * time.Second

// RegisterStatusEndpoints registers /healthz and /metrics. Neither needs a
// session.
func RegisterStatusEndpoints(s *server.Server) {
	s.Router.HandleFunc("/healthz", handleHealth(s.HealthStore, s.Logger)).Methods("GET")
	s.Router.Handle("/metrics", metrics.Handler(s.Gatherer)).Methods("GET")
}

func handleHealth(healthStore store.HealthStore, logger log.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if healthStore == nil {
			respond.Success(w, map[string]string{"database": "unchecked"}, "")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := healthStore.CheckConnectivity(ctx); err != nil {
			logger.WithError(err).Warn("health check failed")
			respond.JSON(w, http.StatusServiceUnavailable, respond.Envelope{
				Status:  respond.StatusError,
				Error:   "Unavailable",
				Message: "database unreachable",
			})
			return
		}
		respond.Success(w, map[string]string{"database": "ok"}, "")
	}
}
