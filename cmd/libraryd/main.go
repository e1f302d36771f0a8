package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/menaback-dev/Library-reservation-and-catalog-system/internal/httpserver"
	"github.com/menaback-dev/Library-reservation-and-catalog-system/internal/oplog"
	"github.com/menaback-dev/Library-reservation-and-catalog-system/internal/store/gormstore"
	"github.com/menaback-dev/Library-reservation-and-catalog-system/internal/store/pgstore"
	"github.com/menaback-dev/Library-reservation-and-catalog-system/pkg/catalog"
	"github.com/menaback-dev/Library-reservation-and-catalog-system/pkg/reservation"
)

const (
	flagDatabaseURL       = "database-url"
	flagListenAddr        = "listen-addr"
	flagAuthSigningKey    = "auth-signing-key"
	flagAuthIssuer        = "auth-issuer"
	flagAllowedOrigins    = "allowed-origins"
	flagStoreBackend      = "store"
	configKeyDatabaseURL  = "database_url"
	configKeyListenAddr   = "listen_addr"
	configKeySigningKey   = "auth_signing_key"
	configKeyAuthIssuer   = "auth_issuer"
	configKeyOrigins      = "allowed_origins"
	configKeyStore        = "store_backend"
	defaultDatabaseURL    = "sqlite:///tmp/library.db"
	defaultHTTPListenAddr = ":8080"
	storeBackendGorm      = "gorm"
	storeBackendPgx       = "pgx"
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	AuthSigningKey string
	AuthIssuer     string
	AllowedOrigins string
	StoreBackend   string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "libraryd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "libraryd",
		Short:         "Library reservation and catalog HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or SQLite connection string")
	cmd.Flags().String(flagListenAddr, defaultHTTPListenAddr, "HTTP listen address")
	cmd.Flags().String(flagAuthSigningKey, "", "HMAC key validating bearer tokens")
	cmd.Flags().String(flagAuthIssuer, "", "expected bearer token issuer")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated CORS origins")
	cmd.Flags().String(flagStoreBackend, storeBackendGorm, "reservation store backend: gorm or pgx (pgx requires a postgres DSN)")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL: "DATABASE_URL",
		configKeyListenAddr:  "LISTEN_ADDR",
		configKeySigningKey:  "AUTH_SIGNING_KEY",
		configKeyAuthIssuer:  "AUTH_ISSUER",
		configKeyOrigins:     "ALLOWED_ORIGINS",
		configKeyStore:       "STORE_BACKEND",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}
	flags := map[string]string{
		configKeyDatabaseURL: flagDatabaseURL,
		configKeyListenAddr:  flagListenAddr,
		configKeySigningKey:  flagAuthSigningKey,
		configKeyAuthIssuer:  flagAuthIssuer,
		configKeyOrigins:     flagAllowedOrigins,
		configKeyStore:       flagStoreBackend,
	}
	for key, flag := range flags {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultHTTPListenAddr
	}
	cfg.AuthSigningKey = viper.GetString(configKeySigningKey)
	cfg.AuthIssuer = viper.GetString(configKeyAuthIssuer)
	cfg.AllowedOrigins = viper.GetString(configKeyOrigins)
	cfg.StoreBackend = viper.GetString(configKeyStore)
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = storeBackendGorm
	}
	if cfg.AuthSigningKey == "" {
		return fmt.Errorf("auth signing key is required")
	}
	if cfg.StoreBackend != storeBackendGorm && cfg.StoreBackend != storeBackendPgx {
		return fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()

	if err := prepareSchema(gormDB, driver); err != nil {
		return err
	}

	reservationStore, closeStore, err := openReservationStore(ctx, cfg, gormDB)
	if err != nil {
		return err
	}
	defer closeStore()

	clock := func() int64 { return time.Now().UTC().Unix() }
	reservationService, err := reservation.NewService(
		reservationStore,
		clock,
		reservation.WithOperationLogger(oplog.NewZapLogger(logger)),
	)
	if err != nil {
		return fmt.Errorf("reservation service init: %w", err)
	}
	catalogService, err := catalog.NewService(gormstore.NewCatalog(gormDB))
	if err != nil {
		return fmt.Errorf("catalog service init: %w", err)
	}

	return httpserver.Run(ctx, httpserver.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: httpserver.ParseAllowedOrigins(cfg.AllowedOrigins),
		AuthSigningKey: cfg.AuthSigningKey,
		AuthIssuer:     cfg.AuthIssuer,
	}, httpserver.Dependencies{
		Reservations: reservationService,
		Catalog:      catalogService,
		Logger:       logger,
	})
}

// openReservationStore picks the queue store implementation. The pgx
// backend runs the reservation hot path on hand-written SQL while the
// catalog stays on GORM against the same database.
func openReservationStore(ctx context.Context, cfg *runtimeConfig, gormDB *gorm.DB) (reservation.Store, func(), error) {
	if cfg.StoreBackend == storeBackendGorm {
		return gormstore.New(gormDB), func() {}, nil
	}
	if !strings.HasPrefix(cfg.DatabaseURL, "postgres://") && !strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
		return nil, nil, fmt.Errorf("store backend %q requires a postgres database url", cfg.StoreBackend)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("pgx pool init: %w", err)
	}
	return pgstore.New(pool), pool.Close, nil
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	cfg := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), cfg)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "library.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

func prepareSchema(db *gorm.DB, driver string) error {
	if driver != "sqlite" {
		return nil
	}
	if err := db.AutoMigrate(&gormstore.Category{}, &gormstore.Book{}, &gormstore.Reservation{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
