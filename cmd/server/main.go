package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clinic-scheduler/internal/app"
	"clinic-scheduler/internal/config"
	"clinic-scheduler/internal/logger"
	"clinic-scheduler/internal/migrate"
	"clinic-scheduler/internal/server"
)

func main() {
	root := &cobra.Command{
		Use:           "clinic-scheduler",
		Short:         "Physician appointment scheduling service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.IsProduction())
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log, nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

func serveCmd() *cobra.Command {
	var autoMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var store app.Store
			switch cfg.Store {
			case "memory":
				log.Warn("using in-memory store; data is lost on exit")
				store = app.NewMemoryStore()
			default:
				pool, err := openPool(ctx, cfg)
				if err != nil {
					return err
				}
				defer pool.Close()

				if autoMigrate {
					m, err := migrate.New(pool, log)
					if err != nil {
						return err
					}
					err = m.Up(ctx)
					m.Close()
					if err != nil {
						return err
					}
				}
				store = app.NewPGStore(pool)
			}

			a := app.New(store, log)
			a.Location = cfg.Location()
			a.Calendar = app.GoogleCalendarConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)

			opts := server.Options{
				Addr:            ":" + cfg.Port,
				CORSOrigins:     cfg.CORSOrigins,
				RateLimitRPS:    cfg.RateLimitRPS,
				RateLimitBurst:  cfg.RateLimitBurst,
				ShutdownTimeout: cfg.ShutdownTimeout,
			}
			router := server.NewRouter(log, opts)
			a.Routes(router, app.AuthMiddleware(cfg.JWTSecret, cfg.StaticTokens))

			log.Info("starting clinic scheduler",
				zap.String("env", cfg.Env),
				zap.String("store", cfg.Store),
				zap.String("timezone", cfg.Timezone),
				zap.Bool("calendar", a.Calendar != nil))
			return server.Run(ctx, router, log, opts)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|status]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			if cfg.Store != "postgres" {
				return fmt.Errorf("migrations need STORE=postgres")
			}

			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			m, err := migrate.New(pool, log)
			if err != nil {
				return err
			}
			defer m.Close()

			if len(args) == 1 && args[0] == "status" {
				return m.Status(ctx)
			}
			return m.Up(ctx)
		},
	}
	return cmd
}
