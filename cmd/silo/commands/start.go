package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/modelsilo/silo/internal/logger"
	"github.com/modelsilo/silo/pkg/access"
	"github.com/modelsilo/silo/pkg/api"
	"github.com/modelsilo/silo/pkg/api/handlers"
	"github.com/modelsilo/silo/pkg/auth"
	"github.com/modelsilo/silo/pkg/commitengine"
	"github.com/modelsilo/silo/pkg/config"
	"github.com/modelsilo/silo/pkg/gc"
	"github.com/modelsilo/silo/pkg/metrics"
	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/objectstore"
	"github.com/modelsilo/silo/pkg/objectstore/memory"
	"github.com/modelsilo/silo/pkg/objectstore/s3"
	"github.com/modelsilo/silo/pkg/resolver"
	"github.com/modelsilo/silo/pkg/store"
	"github.com/modelsilo/silo/pkg/transfer"
	badgerstore "github.com/modelsilo/silo/pkg/versioning/badger"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the silo hub server",
	Long: `Start the silo hub server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/silo/config.yaml.

Examples:
  # Start with default config
  silo start

  # Start with custom config file
  silo start --config /etc/silo/config.yaml

  # Start with environment variable overrides
  SILO_LOGGING_LEVEL=DEBUG silo start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := config.ValidateServe(cfg); err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))

	var m *metrics.Metrics
	if cfg.Metrics.IsEnabled() {
		m = metrics.New(nil)
		logger.Info("metrics enabled", "endpoint", "/metrics")
	} else {
		logger.Info("metrics collection disabled")
	}

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = st.Close() }()
	logger.Info("metadata store ready", "type", cfg.Database.Type)

	if err := ensureAdminUser(ctx, st, cfg.Admin); err != nil {
		return err
	}

	vcs, err := badgerstore.New(cfg.Versioning)
	if err != nil {
		return fmt.Errorf("failed to open versioning store: %w", err)
	}
	defer func() { _ = vcs.Close() }()
	logger.Info("versioning store ready", "path", cfg.Versioning.Path)

	objects, err := newObjectStore(ctx, cfg, m)
	if err != nil {
		return fmt.Errorf("failed to open object store: %w", err)
	}
	logger.Info("object store ready", "backend", cfg.Storage.Backend, "bucket", cfg.Storage.S3.Bucket)

	jwtService, err := auth.NewJWTService(cfg.Auth.JWT())
	if err != nil {
		return fmt.Errorf("failed to initialize session signing: %w", err)
	}

	transferCfg := &cfg.Transfer
	authz := access.New(st, cfg.Quota.Defaults())
	baseURL := strings.TrimSuffix(cfg.Server.PublicBaseURL, "/")

	deps := handlers.Deps{
		Store:      st,
		Engine:     vcs,
		Objects:    objects,
		Authn:      auth.NewAuthenticator(st, jwtService),
		Authz:      authz,
		Classifier: transfer.NewClassifier(transferCfg, st, vcs),
		Broker:     transfer.NewBroker(transferCfg, objects, st, baseURL),
		Commits:    commitengine.New(transferCfg, st, vcs, objects, authz),
		Resolver:   resolver.New(transferCfg, vcs, objects),
		JWT:        jwtService,
		Metrics:    m,
		BaseURL:    baseURL,
	}

	server := api.NewServer(cfg.Server, deps)

	sweeper := gc.New(cfg.GC, transferCfg, st, vcs, objects, m)
	go sweeper.Run(ctx)
	logger.Info("gc sweeper scheduled", "interval", cfg.GC.Interval.String(), "staging_ttl", cfg.GC.StagingTTL.String())

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("hub is running", "port", cfg.Server.Port, "base_url", baseURL)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", "error", err)
			return err
		}
		logger.Info("server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		logger.Info("server stopped")
	}

	return nil
}

// newObjectStore builds the configured object store backend.
func newObjectStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (objectstore.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		logger.Warn("using in-memory object store; blobs are lost on restart")
		return memory.New(), nil
	case "s3":
		return s3.New(ctx, cfg.Storage.S3, m)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

// ensureAdminUser creates the bootstrap admin account on first run.
// When no password hash is configured, a random password is generated
// and printed once.
func ensureAdminUser(ctx context.Context, st *store.Store, admin config.AdminConfig) error {
	_, err := st.GetUser(ctx, admin.Username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}

	passwordHash := admin.PasswordHash
	var generated string
	if passwordHash == "" {
		raw := make([]byte, 16)
		if _, err := rand.Read(raw); err != nil {
			return fmt.Errorf("failed to generate admin password: %w", err)
		}
		generated = hex.EncodeToString(raw)
		passwordHash, err = models.HashPassword(generated)
		if err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}
	}

	user := &models.User{
		Username:     admin.Username,
		Email:        admin.Email,
		PasswordHash: passwordHash,
		Enabled:      true,
		SiteAdmin:    true,
	}
	if err := st.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", "username", admin.Username)
	if generated != "" {
		fmt.Printf("\n*** IMPORTANT: Admin user %q created with password: %s ***\n", admin.Username, generated)
		fmt.Println("Please save this password. It will not be shown again.")
		fmt.Println()
	}
	return nil
}

// getConfigSource returns a description of where the config was loaded
// from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
