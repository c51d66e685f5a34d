package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/screening/registry/internal/config"
	"github.com/screening/registry/internal/domain/admin"
	"github.com/screening/registry/internal/domain/center"
	"github.com/screening/registry/internal/domain/screening"
	"github.com/screening/registry/internal/platform/auth"
	"github.com/screening/registry/internal/platform/db"
	"github.com/screening/registry/internal/platform/jobs"
	"github.com/screening/registry/internal/platform/middleware"
	"github.com/screening/registry/migrations"
)

const (
	version = "0.1.0"

	// devJWTSecret signs tokens when ENV=development and no secret is set.
	devJWTSecret = "screening-registry-development-secret"

	requestTimeout = 30 * time.Second
	maxBodySize    = "2M"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "screening-server",
		Short: "Disease screening registry API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(binCmd())
	rootCmd.AddCommand(centerCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Prepare the configured store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations (postgres) or create indexes (mongo)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			if st.pool == nil {
				if err := st.initialize(ctx); err != nil {
					return fmt.Errorf("index creation failed: %w", err)
				}
				fmt.Printf("Created indexes for %d collection(s).\n", len(st.initializers))
				return nil
			}

			count, err := db.NewMigrator(st.pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status (postgres only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.DriverPostgres {
				return fmt.Errorf("migrate status needs STORE_DRIVER=%s, got %s", config.DriverPostgres, cfg.StoreDriver)
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(os.Stdout, statuses)
			return nil
		},
	})

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func binCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bin",
		Short: "Manage soft-deleted patient records",
	}

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Permanently remove records that sat in the bin longer than the retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			days, _ := cmd.Flags().GetInt("days")
			if days == 0 {
				days = cfg.BinRetentionDays
			}
			if days <= 0 {
				return fmt.Errorf("--days or BIN_RETENTION_DAYS must be positive")
			}

			ctx := context.Background()
			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			svc := screening.NewService(st.patients, cfg.Location())
			removed, err := svc.PurgeBin(ctx, retention(days))
			for _, c := range screening.Categories {
				if n, ok := removed[c]; ok {
					fmt.Printf("%-16s %d removed\n", c, n)
				}
			}
			return err
		},
	}
	purgeCmd.Flags().Int("days", 0, "Retention in days (defaults to BIN_RETENTION_DAYS)")
	cmd.AddCommand(purgeCmd)

	return cmd
}

func centerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "center",
		Short: "Manage screening centers",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a center and print its generated code",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			c, err := center.NewService(st.centers).Create(ctx, name)
			if err != nil {
				return err
			}
			fmt.Printf("Center %q registered with code %s\n", c.Name, c.Code)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Center name")
	cmd.AddCommand(createCmd)

	return cmd
}

func retention(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

// jwtSecret falls back to a fixed secret in development only; Validate
// rejects an empty secret everywhere else.
func jwtSecret(cfg *config.Config, logger zerolog.Logger) string {
	if cfg.JWTSecret != "" {
		return cfg.JWTSecret
	}
	logger.Warn().Msg("JWT_SECRET not set, signing tokens with the development secret")
	return devJWTSecret
}

// newServer builds the echo instance with every route mounted.
func newServer(cfg *config.Config, logger zerolog.Logger, st *stores, tokens *auth.TokenIssuer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{echo.HeaderContentDisposition},
	}))
	e.Use(middleware.BodyLimit(maxBodySize))
	e.Use(middleware.RequestTimeout(requestTimeout, "/export"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(st.driver, st.pinger))

	// Operator accounts
	adminHandler := admin.NewHandler(admin.NewService(st.users, tokens, cfg.BcryptCost))
	adminHandler.RegisterRoutes(e.Group("/user"), middleware.RateLimit(middleware.LoginRateLimitConfig()))

	// Protected API
	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware(tokens))
	} else {
		apiV1.Use(auth.JWTMiddleware(tokens))
	}

	screening.NewHandler(screening.NewService(st.patients, cfg.Location())).RegisterRoutes(apiV1)
	center.NewHandler(center.NewService(st.centers)).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	// Logger
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Store
	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to connect to store")
	}
	defer st.close()
	if err := st.initialize(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize store")
	}
	logger.Info().Str("driver", st.driver).Msg("connected to store")

	tokens := auth.NewTokenIssuer(jwtSecret(cfg, logger), cfg.TokenTTL)
	e := newServer(cfg, logger, st, tokens)

	// Background jobs
	scheduler := jobs.NewScheduler(cfg.Location(), logger)
	if cfg.BinRetentionDays > 0 {
		purgeSvc := screening.NewService(st.patients, cfg.Location())
		keep := retention(cfg.BinRetentionDays)
		err := scheduler.Daily("bin-purge", cfg.BinPurgeAt, func(ctx context.Context) error {
			removed, err := purgeSvc.PurgeBin(ctx, keep)
			for c, n := range removed {
				if n > 0 {
					logger.Info().Str("category", string(c)).Int64("removed", n).Msg("purged bin")
				}
			}
			return err
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to schedule bin purge")
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
