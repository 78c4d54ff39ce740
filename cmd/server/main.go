package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/codeduel-backend/internal/broker"
	"github.com/DoyleJ11/codeduel-backend/internal/catalog"
	"github.com/DoyleJ11/codeduel-backend/internal/config"
	"github.com/DoyleJ11/codeduel-backend/internal/coordinator"
	"github.com/DoyleJ11/codeduel-backend/internal/httpapi"
	"github.com/DoyleJ11/codeduel-backend/internal/hub"
	"github.com/DoyleJ11/codeduel-backend/internal/judge"
	"github.com/DoyleJ11/codeduel-backend/internal/logging"
	"github.com/DoyleJ11/codeduel-backend/internal/session"
	"github.com/DoyleJ11/codeduel-backend/internal/ws"
	"github.com/DoyleJ11/codeduel-backend/pkg/types"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// bus is a cross-process broadcaster with a consume loop.
type bus interface {
	Publish(ctx context.Context, roomID string, env types.Envelope, except string) error
	CloseRoom(ctx context.Context, roomID string) error
	Run(ctx context.Context) error
	Close() error
}

type closer interface{ Close() error }

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	closers = append(closers, store)

	problems, err := openCatalog(ctx, cfg, logger, &closers)
	if err != nil {
		return err
	}

	var judgeClient *judge.Client
	if cfg.JudgeURL != "" {
		judgeClient, err = judge.NewClient(judge.Config{
			BaseURL:      cfg.JudgeURL,
			APIKey:       cfg.JudgeAPIKey,
			Host:         cfg.JudgeHost,
			PollInterval: cfg.JudgePollInterval,
			Timeout:      cfg.JudgeTimeout,
		})
		if err != nil {
			return err
		}
		logger.Info("code judging enabled", zap.String("judge_url", cfg.JudgeURL))
	} else {
		logger.Warn("CODEDUEL_JUDGE_URL not set, submitCode and /api endpoints are disabled")
	}

	// The hub outlives the signal context so late broadcasts during shutdown
	// still reach open sockets.
	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	groups := hub.NewHub(hubCtx)
	defer groups.Shutdown()

	var b bus
	switch cfg.Broker {
	case config.BrokerRabbitMQ:
		rb, err := broker.NewRabbitMQ(cfg.RabbitMQURL, groups, logger)
		if err != nil {
			return err
		}
		b = rb
	default:
		b = broker.NewLocal(groups)
	}
	closers = append(closers, b)

	coordCfg := coordinator.Config{
		Store:          store,
		Catalog:        problems,
		Groups:         groups,
		Bus:            b,
		Logger:         logger.Named("coordinator"),
		RoomCodeLength: cfg.RoomCodeLength,
	}
	conns := &ws.Tracker{}
	deps := httpapi.Deps{
		Conns:          conns,
		Catalog:        problems,
		Logger:         logger.Named("http"),
		CORSOrigins:    cfg.CORSOrigins,
		OriginPatterns: cfg.OriginHosts(),
	}
	if judgeClient != nil {
		coordCfg.Grader = judgeClient
		deps.Judge = judgeClient
	}
	coord := coordinator.New(coordCfg)
	deps.Rooms = coord

	// Sockets are hijacked, so Shutdown alone never ends them. Cancelling
	// their base context makes every read loop return and run Disconnect.
	connCtx, cancelConns := context.WithCancel(context.Background())
	defer cancelConns()
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.SetupRoutes(deps),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return connCtx },
	}
	srv.RegisterOnShutdown(cancelConns)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return b.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		// Stores close after g.Wait, so every Disconnect must land first.
		if werr := conns.Wait(sctx); werr != nil {
			logger.Warn("websocket cleanup did not finish", zap.Error(werr))
		}
		coord.Wait()
		return err
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (session.Store, error) {
	if cfg.SessionBackend != config.BackendPostgres {
		logger.Info("using in-memory session store")
		return session.NewMemoryStore(), nil
	}

	pool, err := session.OpenPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	store := session.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	logger.Info("using postgres session store")
	return store, nil
}

func openCatalog(ctx context.Context, cfg config.Config, logger *zap.Logger, closers *[]closer) (catalog.Catalog, error) {
	if cfg.CatalogBackend != config.BackendPostgres {
		logger.Info("using built-in problem set")
		return catalog.NewStatic(catalog.Builtin()), nil
	}

	store, err := catalog.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, store)
	if err := store.Migrate(ctx, catalog.Builtin()); err != nil {
		return nil, err
	}
	logger.Info("using postgres problem catalog")
	return catalog.NewCached(store), nil
}
