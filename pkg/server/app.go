package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "LutherTerminal/internal/domain/repository"
	"LutherTerminal/internal/usecase"
	pkgch "LutherTerminal/pkg/clickhouse"
	"LutherTerminal/pkg/config"
	xhttp "LutherTerminal/pkg/http"
	applogger "LutherTerminal/pkg/logger"
)

type namedCloser struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	chClient    *pkgch.Client
	pub         domrepo.PredictionPublisher
	warm        *usecase.PredictionUseCase
	closers     []namedCloser
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	h xhttp.Handler,
	chClient *pkgch.Client,
	pub domrepo.PredictionPublisher,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:         cfg,
		l:           l,
		httpHandler: h,
		chClient:    chClient,
		pub:         pub,
	}
}

// SetWarmup makes Run train the configured watchlist symbols in the background.
func (a *App) SetWarmup(uc *usecase.PredictionUseCase) { a.warm = uc }

// AddCloser registers an extra resource released on shutdown.
func (a *App) AddCloser(name string, c io.Closer) {
	a.closers = append(a.closers, namedCloser{name: name, c: c})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.httpHandler, a.l,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(a.cfg.Server.SlowThreshold),
		xhttp.WithMetricsPath(metricsPath),
	)

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	if a.warm != nil && len(a.cfg.Watchlist.Symbols) > 0 {
		go a.warmup(ctx)
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

func (a *App) warmup(ctx context.Context) {
	start := time.Now()
	ok := 0
	for _, sym := range a.cfg.Watchlist.Symbols {
		if ctx.Err() != nil {
			return
		}
		_, err := a.warm.Train(ctx, usecase.TrainParams{
			Symbol:  sym,
			Horizon: a.cfg.Predictor.DefaultHorizon,
			N:       a.cfg.Predictor.HistoryBars,
		})
		if err != nil {
			a.l.Warn("warmup training failed", applogger.String("symbol", sym), applogger.Error(err))
			continue
		}
		ok++
	}
	a.l.Info("warmup complete",
		applogger.Int("trained", ok),
		applogger.Int("symbols", len(a.cfg.Watchlist.Symbols)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.l.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			a.l.Warn("publisher close error", applogger.Error(err))
		}
	}
	for _, nc := range a.closers {
		if err := nc.c.Close(); err != nil {
			a.l.Warn("close error", applogger.String("resource", nc.name), applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
