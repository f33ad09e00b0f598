package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/membership-gateway/pkg/config"
	"github.com/doodlesbykumbi/membership-gateway/pkg/invitation"
	"github.com/doodlesbykumbi/membership-gateway/pkg/membership"
	"github.com/doodlesbykumbi/membership-gateway/pkg/metrics"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/middleware"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/store"
)

type Server struct {
	Config  *config.MembershipConfig
	Router  *mux.Router
	Logger  *logrus.Logger
	Metrics *metrics.Metrics
	// Gatherer serves /metrics
	Gatherer prometheus.Gatherer

	SessionMiddleware *middleware.SessionAuthenticator
	Members           *membership.Service
	Invitations       *invitation.Service
	HealthStore       store.HealthStore

	srv       *http.Server
	accessLog io.WriteCloser
}

// Options holds the collaborators of a Server.
type Options struct {
	Logger      *logrus.Logger
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Session     *middleware.SessionAuthenticator
	Members     *membership.Service
	Invitations *invitation.Service
	HealthStore store.HealthStore
}

func NewServer(cfg *config.MembershipConfig, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewUnregistered()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.NewRegistry()
	}

	router := mux.NewRouter()
	router.Use(opts.Metrics.Middleware)

	s := &Server{
		Config:            cfg,
		Router:            router,
		Logger:            opts.Logger,
		Metrics:           opts.Metrics,
		Gatherer:          opts.Gatherer,
		SessionMiddleware: opts.Session,
		Members:           opts.Members,
		Invitations:       opts.Invitations,
		HealthStore:       opts.HealthStore,
	}

	s.accessLog = opts.Logger.WriterLevel(logrus.InfoLevel)
	s.srv = &http.Server{
		Handler:           s.Handler(),
		Addr:              cfg.ListenAddress(),
		WriteTimeout:      15 * time.Second,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler wraps the router with panic recovery and the access log.
func (s *Server) Handler() http.Handler {
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(s.Logger),
		handlers.PrintRecoveryStack(s.Logger.IsLevelEnabled(logrus.DebugLevel)),
	)
	return recovery(handlers.LoggingHandler(s.accessLog, s.Router))
}

func (s *Server) Start() error {
	s.Logger.WithField("address", s.srv.Addr).Info("membership gateway listening")
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	_ = s.accessLog.Close()
	return err
}
