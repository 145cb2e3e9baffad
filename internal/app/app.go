package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/trivia-arena/internal/config"
	"github.com/gokatarajesh/trivia-arena/internal/game"
	"github.com/gokatarajesh/trivia-arena/internal/leaderboard"
	"github.com/gokatarajesh/trivia-arena/internal/logging"
	"github.com/gokatarajesh/trivia-arena/internal/metrics"
	"github.com/gokatarajesh/trivia-arena/internal/question"
	"github.com/gokatarajesh/trivia-arena/internal/round"
	"github.com/gokatarajesh/trivia-arena/internal/server"
	"github.com/gokatarajesh/trivia-arena/internal/session"
)

// Application aggregates the game state and its listeners.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	redis  *redis.Client
	driver *game.Driver
	tcp    *server.TCPServer
	http   *http.Server
}

// New loads the question bank and wires the game, the TCP and HTTP listeners
// and the optional Redis export. A malformed bank returns a
// *question.ConfigurationError.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	bank, err := question.Load(cfg.Game.QuestionBankPath)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("title", bank.Title).
		Int("questions", bank.Len()).
		Dur("time_limit", bank.TimeLimit).
		Msg("question bank loaded")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(reg)

	machine := round.NewMachine(bank, round.Options{RewindOnReset: cfg.Game.ResetRewindsBank}, logger)
	registry := session.NewRegistry(machine, logger)

	var (
		redisClient *redis.Client
		lbSvc       *leaderboard.Service
		sink        game.ResultSink
	)
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// export is best effort; the game runs without it
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable at startup")
		}
		lbSvc = leaderboard.NewService(redisClient, logger, leaderboard.ServiceOptions{
			RedisKeyPrefix: cfg.Redis.KeyPrefix,
			ResultsChannel: cfg.Redis.ResultsChannel,
		})
		sink = lbSvc
	} else {
		logger.Info().Msg("REDIS_ADDR not set; leaderboard export disabled")
	}

	driver := game.NewDriver(machine, registry, game.DriverOptions{
		Timing: game.Timing{
			QuestionWait: cfg.Game.QuestionWait(),
			ResultPause:  cfg.Game.Pause(),
		},
		Sink:     sink,
		Recorder: recorder,
	}, logger)
	registry.OnEmpty(driver.Reset)

	handler := game.NewHandler(machine, registry, driver, game.HandlerOptions{
		AutoStart:   cfg.Game.AutoStart,
		ReadTimeout: cfg.Game.ReadTimeout,
		SendQueue:   cfg.Game.SendQueueSize,
		Recorder:    recorder,
	}, logger)

	lbHTTPHandler := leaderboard.NewHTTPHandler(machine, lbSvc, logger)

	tcpServer := server.NewTCPServer(cfg.ListenAddr, handler, logger)
	httpServer := server.NewHTTPServer(cfg, logger, server.Routes{
		WebSocket:   handler.HandleWebSocket,
		Leaderboard: lbHTTPHandler.HandleGet,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	return &Application{
		cfg:    cfg,
		logger: logger,
		redis:  redisClient,
		driver: driver,
		tcp:    tcpServer,
		http:   httpServer,
	}, nil
}

// Run serves until ctx is cancelled, a termination signal arrives or a
// listener fails, then shuts everything down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.driver.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("round driver: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := a.tcp.ListenAndServe(gctx); err != nil {
			return fmt.Errorf("tcp server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutdown requested")
		return a.shutdown()
	})

	err := g.Wait()

	if a.redis != nil {
		if cerr := a.redis.Close(); cerr != nil {
			a.logger.Error().Err(cerr).Msg("redis shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return err
}

func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.tcp.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("tcp shutdown error")
	}
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
