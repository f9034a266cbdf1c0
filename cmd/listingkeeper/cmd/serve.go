package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/listingkeeper/internal/core/api"
	"github.com/solatis/listingkeeper/internal/core/auth"
	"github.com/solatis/listingkeeper/internal/core/config"
	"github.com/solatis/listingkeeper/internal/core/db"
	"github.com/solatis/listingkeeper/internal/core/metrics"
	"github.com/solatis/listingkeeper/internal/core/rulecache"
	"github.com/solatis/listingkeeper/internal/core/server"
	"github.com/solatis/listingkeeper/internal/rules"
)

// Version is the listingkeeper release version.
const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC product rules API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().Int("workers", 4, "parallel product evaluations per batch")
	serveCmd.Flags().String("data-dir", "./data", "directory for audit logs")
	serveCmd.Flags().String("metrics", ":9090", "metrics listen address (empty disables)")
}

// openMigrated opens the database and refuses to continue with pending migrations.
func openMigrated(ctx context.Context) (*sqlx.DB, *db.Queries, error) {
	url, err := databaseURL()
	if err != nil {
		return nil, nil, err
	}
	database, err := db.Open(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	pending, err := db.PendingMigrations(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	if len(pending) > 0 {
		database.Close()
		return nil, nil, fmt.Errorf("migrations not applied (%s) - run 'listingkeeper migrate up' first", strings.Join(pending, ", "))
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return database, queries, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	database, queries, err := openMigrated(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set LK_HMAC_SECRET environment variable)")
	}

	collector := metrics.New()
	ruleStore := db.NewRuleStore(queries)
	cache := rulecache.New(ruleStore, cfg.RulesAPI.RuleCacheTTL)

	engine := rules.NewEngine(cache,
		rules.WithLogger(logger.Named("rules")),
		rules.WithObserver(collector),
		rules.WithWorkers(cfg.RulesAPI.Workers))

	service, err := api.NewService(&cfg.RulesAPI, engine, ruleStore, db.NewLogStore(queries),
		api.WithCache(cache),
		api.WithLogger(logger.Named("api")),
		api.WithLogObserver(collector))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	authenticator := auth.NewAuthenticator(secrets, queries, logger.Named("auth"))

	grpcServer, err := server.NewGRPCServer(&cfg.RulesAPI, service, authenticator, collector, logger.Named("grpc"))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := grpcServer.Listen(); err != nil {
		return err
	}

	var metricsServer *server.MetricsServer
	if cfg.RulesAPI.MetricsAddr != "" {
		metricsServer = server.NewMetricsServer(cfg.RulesAPI.MetricsAddr, collector.Handler(), logger.Named("metrics"))
		if err := metricsServer.Listen(); err != nil {
			return err
		}
	}

	logger.Info("starting listingkeeper rules API",
		zap.String("version", Version),
		zap.String("addr", grpcServer.Addr().String()),
		zap.Int("hmac_secrets", len(secrets)))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		return grpcServer.Start(ctx)
	})
	if metricsServer != nil {
		p.Go(func(ctx context.Context) error {
			return metricsServer.Start()
		})
	}
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		logger.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", zap.Error(err))
			}
		}
		return grpcServer.Shutdown(shutdownCtx)
	})

	return p.Wait()
}
