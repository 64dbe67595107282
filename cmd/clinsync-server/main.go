package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinsync/clinsync/internal/config"
	"github.com/clinsync/clinsync/internal/domain/directory"
	"github.com/clinsync/clinsync/internal/domain/patient"
	"github.com/clinsync/clinsync/internal/domain/referral"
	"github.com/clinsync/clinsync/internal/domain/session"
	syncengine "github.com/clinsync/clinsync/internal/domain/sync"
	"github.com/clinsync/clinsync/internal/platform/db"
	"github.com/clinsync/clinsync/internal/platform/events"
	"github.com/clinsync/clinsync/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinsync-server",
		Short: "Clinical workflow and sync API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(syncCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
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
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			conn, err := db.Open(ctx, cfg.DatabaseDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
			if err != nil {
				return err
			}
			defer conn.Close()

			count, err := db.NewMigrator(conn, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			conn, err := db.Open(ctx, cfg.DatabaseDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
			if err != nil {
				return err
			}
			defer conn.Close()

			statuses, err := db.NewMigrator(conn, cfg.MigrationsDir).Status(ctx)
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied " + s.AppliedAt.Format(time.RFC3339)
				}
				fmt.Printf("%03d %-40s %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

// syncCmd ingests one change-feed page from a JSON file, for backfills and
// operational replays without going through the HTTP surface.
func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <feed-file.json>",
		Short: "Ingest a change-feed page from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			conn, err := db.Open(ctx, cfg.DatabaseDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
			if err != nil {
				return err
			}
			defer conn.Close()

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var page syncengine.FeedPage
			if err := json.Unmarshal(raw, &page); err != nil {
				// A bare document array is accepted too.
				if err := json.Unmarshal(raw, &page.Docs); err != nil {
					return fmt.Errorf("parse feed file: %w", err)
				}
			}

			engine := buildEngine(conn, cfg, events.NopBus{}, logger)
			applied, err := engine.ProcessFeed(ctx, page)
			if err != nil {
				return err
			}
			fmt.Printf("Applied %d of %d document(s).\n", applied, len(page.Docs))
			return nil
		},
	}
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// buildEngine wires the sync engine onto the shared connection. The bus
// carries referral-created events out of auto-referral.
func buildEngine(conn *sql.DB, cfg *config.Config, bus events.Bus, logger zerolog.Logger) *syncengine.Engine {
	patientRepo := patient.NewRepo(conn)
	sessionRepo := session.NewRepo(conn)
	userRepo := directory.NewRepo(conn)

	engine := syncengine.NewEngine(
		conn,
		patientRepo,
		sessionRepo,
		syncengine.NewStore(conn),
		directory.NewResolver(userRepo),
		logger.With().Str("component", "sync").Logger(),
	)
	if cfg.SyncAutoReferral {
		engine.EnableAutoReferral(referral.NewService(referral.NewRepo(conn), bus))
	}
	return engine
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		return err
	}
	defer conn.Close()

	var bus events.Bus = events.NewMemoryBus()
	if cfg.RedisURL != "" {
		redisBus, err := events.NewRedisBus(ctx, cfg.RedisURL, cfg.EventStream)
		if err != nil {
			return fmt.Errorf("connect event stream: %w", err)
		}
		defer redisBus.Close()
		bus = redisBus
		logger.Info().Str("stream", cfg.EventStream).Msg("publishing events to redis")
	}

	// Domain wiring. The referral service doubles as the workflow's
	// referral hook.
	patientRepo := patient.NewRepo(conn)
	patientSvc := patient.NewService(patientRepo)

	referralSvc := referral.NewService(referral.NewRepo(conn), bus)

	sessionRepo := session.NewRepo(conn)
	sessionSvc := session.NewService(conn, sessionRepo, session.DefaultWorkflow(), bus)
	sessionSvc.SetReferrals(referralSvc)

	engine := buildEngine(conn, cfg, bus, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestTimeout(30 * time.Second))

	e.GET("/health", func(c echo.Context) error {
		if err := conn.PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "down"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	apiV1 := e.Group("/api/v1")
	directory.NewHandler(directory.NewRepo(conn)).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	session.NewHandler(sessionSvc).RegisterRoutes(apiV1)
	referral.NewHandler(referralSvc).RegisterRoutes(apiV1)
	syncengine.NewHandler(engine).RegisterRoutes(apiV1)

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
