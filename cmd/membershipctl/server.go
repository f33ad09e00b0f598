package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/membership-gateway/pkg/config"
	"github.com/doodlesbykumbi/membership-gateway/pkg/credential"
	"github.com/doodlesbykumbi/membership-gateway/pkg/gateway"
	"github.com/doodlesbykumbi/membership-gateway/pkg/graph"
	"github.com/doodlesbykumbi/membership-gateway/pkg/invitation"
	"github.com/doodlesbykumbi/membership-gateway/pkg/logging"
	"github.com/doodlesbykumbi/membership-gateway/pkg/membership"
	"github.com/doodlesbykumbi/membership-gateway/pkg/metrics"
	"github.com/doodlesbykumbi/membership-gateway/pkg/rbac"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/endpoints"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/middleware"
	gormstore "github.com/doodlesbykumbi/membership-gateway/pkg/server/store/gorm"
)

const shutdownTimeout = 10 * time.Second

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the membership gateway server",
	Long: `Run the membership gateway server

To run the server requires the environment variables MEMBERSHIP_DATA_KEY,
MEMBERSHIP_SESSION_SECRET and DATABASE_URL.

By default, database migrations are run on startup. Use --no-migrate to skip.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServer(cmd); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().IntP("port", "p", 0, "server listen port (overrides configuration)")
	serverCmd.Flags().StringP("bind-address", "b", "", "server bind address (overrides configuration)")
	serverCmd.Flags().Bool("no-migrate", false, "skip running database migrations on start")
}

func runServer(cmd *cobra.Command) error {
	cfg, err := config.Reload()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("bind-address") {
		cfg.BindAddress, _ = cmd.Flags().GetString("bind-address")
	}

	logger := logging.New(cfg)

	// Validate required secrets first (fail fast)
	secret := os.Getenv(sessionSecretEnv)
	if secret == "" {
		return fmt.Errorf("%s environment variable is required", sessionSecretEnv)
	}
	if _, err := dataKeyCipher(); err != nil {
		return err
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		logger.Info("running database migrations")
		if err := runMigrations(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	gdb, cipher, err := openDatabase(logger.IsLevelEnabled(logrus.TraceLevel))
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	broker := credential.NewBroker(gormstore.NewSeedStore(gdb, cipher), cfg.SecretStoreTimeout, logger)
	client := graph.NewClient(cfg.GraphEndpoint, cfg.GraphTimeout)

	gateOpts := gateway.OptionsFromConfig(cfg)
	gateOpts.Metrics = m
	gateOpts.Logger = logger
	gate, err := gateway.New(broker, client, gateOpts)
	if err != nil {
		return err
	}

	docs := graph.NewDocuments(client)
	catalog := rbac.NewCatalog(gormstore.NewCatalogStore(gdb), cfg.PermissionCacheSize, cfg.PermissionCacheTTL)
	evaluator := rbac.NewEvaluator(gormstore.NewRolesStore(gdb), catalog, docs)

	invitations := invitation.NewService(docs, gate, evaluator, invitation.Options{
		TTL:     cfg.InvitationTTL,
		Metrics: m,
		Logger:  logger,
	})
	members := membership.NewService(docs, gate, evaluator, invitations, membership.Options{
		Metrics: m,
		Logger:  logger,
	})

	s := server.NewServer(cfg, server.Options{
		Logger:      logger,
		Metrics:     m,
		Gatherer:    registry,
		Session:     middleware.NewSessionAuthenticator([]byte(secret), cfg.SessionIssuer, logger),
		Members:     members,
		Invitations: invitations,
		HealthStore: gormstore.NewHealthStore(gdb),
	})
	endpoints.RegisterAll(s)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go watchConfiguration(ctx, cfg.ConfigFilePath(), logger, catalog)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// watchConfiguration applies log settings on config file writes and drops
// cached permission ids.
func watchConfiguration(ctx context.Context, path string, logger *logrus.Logger, catalog *rbac.Catalog) {
	if path == "" {
		return
	}
	err := config.Watch(ctx, path,
		func(cfg *config.MembershipConfig) {
			logging.Apply(logger, cfg)
			catalog.Purge()
			logger.WithField("log_level", cfg.LogLevel).Info("configuration reloaded")
		},
		func(err error) {
			logger.WithError(err).Warn("configuration reload failed")
		},
	)
	if err != nil {
		logger.WithError(err).Warn("configuration watch disabled")
	}
}
