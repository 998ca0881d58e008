package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/towerdefense/api"
	"github.com/kasuganosora/towerdefense/audit"
	"github.com/kasuganosora/towerdefense/cache"
	"github.com/kasuganosora/towerdefense/game/event"
	"github.com/kasuganosora/towerdefense/game/room"
	"github.com/kasuganosora/towerdefense/game/sim"
	mw "github.com/kasuganosora/towerdefense/middleware"
	"github.com/kasuganosora/towerdefense/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	servePort int
	autostart time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the game room and its HTTP/WebSocket API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
	serveCmd.Flags().DurationVar(&autostart, "autostart", 0, "start the game after this delay (0 = wait for a start intent)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	logger, err := newLogger(cfg.Server.Debug)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Game ----
	simCfg, err := cfg.SimConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctrl, err := sim.NewController(simCfg, event.NewBus(), logger)
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	rm := room.New(ctrl, cfg.RoomConfig(), logger)
	go rm.Run(ctx)
	logger.Info("room started",
		zap.String("room", rm.ID),
		zap.Int("rows", simCfg.Rows),
		zap.Int("cols", simCfg.Cols))

	// ---- Scheduler ----
	limiters := mw.NewLimiters(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	sched := scheduler.New(ctx, logger)
	defer sched.Stop()
	if cfg.Server.StatsInterval > 0 {
		sched.Every("room_stats", cfg.Server.StatsInterval, rm.LogStats)
	}
	if idle := cfg.Server.RateLimitIdle; idle > 0 {
		sched.Every("limiter_prune", idle, func() {
			n := limiters.Prune(time.Now().Add(-idle))
			logger.Debug("rate limiters pruned", zap.Int("remaining", n))
		})
	}
	if autostart > 0 {
		sched.After("autostart", autostart, func() {
			if err := rm.Start(); err != nil {
				logger.Warn("autostart failed", zap.Error(err))
			}
		})
	}

	// ---- Audit ----
	store, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer store.Close()
	trail := audit.New(cfg.Audit, logger,
		audit.LogSink{Logger: logger.Named("audit")},
		audit.StoreSink{Store: store, Key: cfg.Audit.StoreKey, Max: cfg.Audit.StoreMax})
	defer trail.Stop()

	// ---- HTTP ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := api.NewEngine(cfg.Server, rm, limiters, trail, logger)
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			rm.Stop()
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	rm.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	rm.LogStats()
	return nil
}
