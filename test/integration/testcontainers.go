//go:build integration

package integration

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/doodlesbykumbi/membership-gateway/pkg/config"
	"github.com/doodlesbykumbi/membership-gateway/pkg/credential"
	"github.com/doodlesbykumbi/membership-gateway/pkg/db"
	"github.com/doodlesbykumbi/membership-gateway/pkg/gateway"
	"github.com/doodlesbykumbi/membership-gateway/pkg/graph"
	"github.com/doodlesbykumbi/membership-gateway/pkg/graph/graphtest"
	"github.com/doodlesbykumbi/membership-gateway/pkg/invitation"
	"github.com/doodlesbykumbi/membership-gateway/pkg/logging"
	"github.com/doodlesbykumbi/membership-gateway/pkg/membership"
	"github.com/doodlesbykumbi/membership-gateway/pkg/metrics"
	"github.com/doodlesbykumbi/membership-gateway/pkg/rbac"
	"github.com/doodlesbykumbi/membership-gateway/pkg/sealed"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/endpoints"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/middleware"
	gormstore "github.com/doodlesbykumbi/membership-gateway/pkg/server/store/gorm"
)

const sessionSecret = "integration-session-secret"

// TestContext holds all the resources needed for integration tests
type TestContext struct {
	DB            *gorm.DB
	Container     testcontainers.Container
	DatabaseURL   string
	DataKey       []byte
	Cipher        sealed.Cipher
	Seeds         *gormstore.SeedStore
	Graph         *graphtest.Server
	ServerURL     string
	SessionSecret []byte
	HTTPClient    *http.Client

	inline        *httptest.Server
	serverProcess *exec.Cmd
	cancel        context.CancelFunc
}

// NewTestContext starts PostgreSQL in a container, migrates it and starts a
// gateway against it and an in-memory graph store.
// Modes:
//   - Binary mode: Set MEMBERSHIP_BINARY to the path of the membershipctl binary
//   - Inline mode (default): the server runs in-process
func NewTestContext(ctx context.Context) (*TestContext, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}
	migrationsDir := filepath.Join(projectRoot, "db", "migrations")

	binaryPath := os.Getenv("MEMBERSHIP_BINARY")
	if binaryPath != "" {
		if _, err := os.Stat(binaryPath); err != nil {
			return nil, fmt.Errorf("MEMBERSHIP_BINARY path does not exist: %s", binaryPath)
		}
		log.Printf("Using binary: %s", binaryPath)
	} else {
		log.Println("Using inline server mode")
	}

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("membership_test"),
		tcpostgres.WithUsername("membership"),
		tcpostgres.WithPassword("membership"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	if err := runMigrations(migrationsDir, connStr); err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dataKey := make([]byte, sealed.KeySize)
	for i := range dataKey {
		dataKey[i] = byte(i)
	}
	cipher, err := sealed.New(dataKey)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gdb, err := db.Connect(db.Config{URL: connStr, Cipher: cipher})
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, err
	}

	tc := &TestContext{
		DB:            gdb,
		Container:     pgContainer,
		DatabaseURL:   connStr,
		DataKey:       dataKey,
		Cipher:        cipher,
		Seeds:         gormstore.NewSeedStore(gdb, cipher),
		Graph:         graphtest.NewServer(),
		SessionSecret: []byte(sessionSecret),
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
	}

	if binaryPath != "" {
		err = tc.startBinary(binaryPath)
	} else {
		err = tc.startInline()
	}
	if err != nil {
		tc.Close(ctx)
		return nil, err
	}

	if err := waitForServer(tc.ServerURL, 30*time.Second); err != nil {
		tc.Close(ctx)
		return nil, fmt.Errorf("server failed to become ready: %w", err)
	}
	return tc, nil
}

// startInline wires the gateway in-process the same way the server command does.
func (tc *TestContext) startInline() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.GraphEndpoint = tc.Graph.Endpoint()
	cfg.LogLevel = "warn"

	logger := logging.New(cfg)
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	broker := credential.NewBroker(tc.Seeds, cfg.SecretStoreTimeout, logger)
	client := graph.NewClient(cfg.GraphEndpoint, cfg.GraphTimeout)

	gateOpts := gateway.OptionsFromConfig(cfg)
	gateOpts.Metrics = m
	gateOpts.Logger = logger
	gate, err := gateway.New(broker, client, gateOpts)
	if err != nil {
		return err
	}

	docs := graph.NewDocuments(client)
	catalog := rbac.NewCatalog(gormstore.NewCatalogStore(tc.DB), cfg.PermissionCacheSize, cfg.PermissionCacheTTL)
	evaluator := rbac.NewEvaluator(gormstore.NewRolesStore(tc.DB), catalog, docs)
	invitations := invitation.NewService(docs, gate, evaluator, invitation.Options{TTL: cfg.InvitationTTL, Metrics: m, Logger: logger})
	members := membership.NewService(docs, gate, evaluator, invitations, membership.Options{Metrics: m, Logger: logger})

	s := server.NewServer(cfg, server.Options{
		Logger:      logger,
		Metrics:     m,
		Gatherer:    registry,
		Session:     middleware.NewSessionAuthenticator(tc.SessionSecret, cfg.SessionIssuer, logger),
		Members:     members,
		Invitations: invitations,
		HealthStore: gormstore.NewHealthStore(tc.DB),
	})
	endpoints.RegisterAll(s)

	tc.inline = httptest.NewServer(s.Handler())
	tc.ServerURL = tc.inline.URL
	return nil
}

// startBinary runs membershipctl server against the container and graph store.
func (tc *TestContext) startBinary(binaryPath string) error {
	port := "18080"
	ctx, cancel := context.WithCancel(context.Background())

	configDir, err := os.MkdirTemp("", "membership-config")
	if err != nil {
		cancel()
		return err
	}

	// Use --no-migrate since we already ran migrations in the test setup
	cmd := exec.CommandContext(ctx, binaryPath, "server", "--no-migrate", "-b", "127.0.0.1", "-p", port)
	cmd.Env = append(os.Environ(),
		"DATABASE_URL="+tc.DatabaseURL,
		"MEMBERSHIP_DATA_KEY="+base64.StdEncoding.EncodeToString(tc.DataKey),
		"MEMBERSHIP_SESSION_SECRET="+string(tc.SessionSecret),
		"MEMBERSHIP_GRAPH_ENDPOINT="+tc.Graph.Endpoint(),
		"MEMBERSHIP_CONFIG_PATH="+configDir,
		"MEMBERSHIP_AUDIT_ENABLED=false",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start binary: %w", err)
	}

	tc.serverProcess = cmd
	tc.cancel = cancel
	tc.ServerURL = "http://127.0.0.1:" + port
	return nil
}

// waitForServer polls the health endpoint until it responds or times out
func waitForServer(serverURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(serverURL + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("server did not become ready within %v", timeout)
}

// Close cleans up all test resources
func (tc *TestContext) Close(ctx context.Context) {
	if tc.inline != nil {
		tc.inline.Close()
	}
	if tc.cancel != nil {
		tc.cancel()
	}
	if tc.serverProcess != nil && tc.serverProcess.Process != nil {
		_ = tc.serverProcess.Process.Kill()
		_ = tc.serverProcess.Wait()
	}
	if tc.Graph != nil {
		tc.Graph.Close()
	}
	if sqlDB, err := tc.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if tc.Container != nil {
		_ = tc.Container.Terminate(ctx)
	}
}

// findProjectRoot locates the project root directory
func findProjectRoot() (string, error) {
	for _, p := range []string{"../..", "..", "."} {
		if _, err := os.Stat(filepath.Join(p, "go.mod")); err == nil {
			return filepath.Abs(p)
		}
	}
	return "", fmt.Errorf("project root not found (looking for go.mod)")
}

// runMigrations applies the schema with the same migrations the CLI uses.
func runMigrations(migrationsDir, dbURL string) error {
	m, err := migrate.New("file://"+migrationsDir, dbURL)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
