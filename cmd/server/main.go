package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/rewear/internal/config"
	"github.com/iliyamo/rewear/internal/database"
	"github.com/iliyamo/rewear/internal/handler"
	"github.com/iliyamo/rewear/internal/jobs"
	"github.com/iliyamo/rewear/internal/logger"
	"github.com/iliyamo/rewear/internal/queue"
	"github.com/iliyamo/rewear/internal/repository"
	"github.com/iliyamo/rewear/internal/repository/memstore"
	"github.com/iliyamo/rewear/internal/router"
	"github.com/iliyamo/rewear/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
	log.Info("server exited")
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	var pinger handler.Pinger
	if db != nil {
		defer db.Close()
		pinger = db
	}

	rdb := openRedis(ctx, log)
	if rdb != nil {
		defer rdb.Close()
	}

	qcfg := config.LoadQueueConfig()
	var events service.EventPublisher = service.NopPublisher{}
	if qcfg.Enabled {
		pub := queue.NewPublisher(qcfg.URL, qcfg.SwapQueue, log)
		defer pub.Close()
		events = pub
		log.Info("swap events enabled", zap.String("queue", qcfg.SwapQueue))
	}

	accounts := service.NewAccountService(store, cfg.BcryptCost, cfg.SignupBonus, log)
	catalog := service.NewCatalogService(store, log)
	swaps := service.NewSwapService(store, events, log)
	moderation := service.NewModerationService(store, catalog, log)

	if cfg.AdminEmail != "" {
		if _, err := accounts.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	e := router.New(router.Deps{
		JWTSecret: cfg.JWTSecret,
		Log:       log,
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		DB:        pinger,
		Auth:      handler.NewAuthHandler(cfg, accounts, store.Tokens(), log),
		Items:     handler.NewItemHandler(catalog, log),
		Swaps:     handler.NewSwapHandler(swaps, log),
		Users:     handler.NewUserHandler(accounts, log),
		Admin:     handler.NewAdminHandler(moderation, log),
	})

	var sched *jobs.Scheduler
	if ccfg := config.LoadCronConfig(); ccfg.Enabled {
		if sched, err = jobs.New(ccfg, store.Tokens(), moderation, log); err != nil {
			return fmt.Errorf("cron: %w", err)
		}
		sched.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("db_driver", cfg.DBDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if qcfg.ConsumerEnabled {
		g.Go(func() error {
			err := queue.StartSwapConsumer(gctx, qcfg.URL, qcfg.SwapQueue, queue.ActivityLog{Path: qcfg.ActivityLogPath}, log)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if sched != nil {
			sched.Stop(sctx)
		}
		return e.Shutdown(sctx)
	})
	return g.Wait()
}

// openStore opens the configured storage and applies the schema. db is nil
// for the in-memory store.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repository.Store, *sql.DB, error) {
	var (
		db      *sql.DB
		dialect database.Dialect
		err     error
	)
	switch cfg.DBDriver {
	case config.DriverMemory:
		log.Warn("using in-memory storage; data is lost on restart")
		return memstore.New(), nil, nil
	case config.DriverSQLite:
		db, err = database.OpenSQLite(cfg.DBPath)
		dialect = database.SQLite
	default:
		db, err = database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		dialect = database.MySQL
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	if cfg.DBMigrate {
		mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := database.Migrate(mctx, db, dialect); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return repository.NewSQLStore(db, dialect), db, nil
}

// openRedis connects when caching or rate limiting is enabled. An
// unreachable server disables both instead of failing startup.
func openRedis(ctx context.Context, log *zap.Logger) *redis.Client {
	if !config.LoadCacheConfig().Enabled && !config.LoadRateLimitConfig().Enabled {
		return nil
	}
	rc := config.LoadRedisConfig()
	rdb, err := config.NewRedisClient(ctx, rc)
	if err != nil {
		log.Warn("redis unavailable; cache and rate limit disabled", zap.String("addr", rc.Addr), zap.Error(err))
		return nil
	}
	return rdb
}
