package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/AnalyseDeCircuit/gpu-detect/api/handlers"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/auth"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/backend"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/bridge"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/config"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu/drm"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/middleware"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/prometheus"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/watch"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/websocket"
	"golang.org/x/time/rate"
)

const (
	pushInterval       = 30 * time.Second
	limiterIdleTimeout = 10 * time.Minute
)

// app holds the long-running parts of the server.
type app struct {
	backend string
	bridge  *bridge.Bridge
	hub     *websocket.Hub
	watcher *watch.Fixture
	limiter *middleware.RateLimiter
	router  *handlers.Router
	logger  *slog.Logger
	cfg     *config.Config

	wg sync.WaitGroup
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if name == "" {
		name = backend.Auto
	}

	a := &app{backend: name, logger: logger, cfg: cfg}

	var api gpu.API
	if name == backend.Fixture {
		if cfg.FixturePath == "" {
			return nil, fmt.Errorf("GPU_BACKEND=fixture needs GPU_FIXTURE")
		}
		w, err := watch.NewFixture(cfg.FixturePath, logger.With("component", "watch"))
		if err != nil {
			return nil, err
		}
		a.watcher = w
		api = w
	} else {
		var err error
		api, err = backend.New(backend.Options{
			Name:    name,
			SysRoot: cfg.HostSys,
			PCIIDs:  drm.DefaultPCIIDPaths(config.HostPath),
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.ReportBufferSize < 2 || cfg.ReportBufferSize > bridge.SizeLarge {
		return nil, fmt.Errorf("%w: REPORT_BUFFER_SIZE=%d", bridge.ErrCapacity, cfg.ReportBufferSize)
	}
	b, err := bridge.New(api, cfg.TransportMaxUnits)
	if err != nil {
		return nil, err
	}
	a.bridge = b

	metrics := prometheus.New(version)
	b.Observe = metrics.Observe

	var authenticator *auth.Authenticator
	if cfg.AuthEnabled() {
		authenticator, err = auth.New(cfg.JWTSecret, cfg.APIKeyHash)
		if err != nil {
			return nil, err
		}
	}

	a.hub = websocket.NewHub(func() ([]byte, error) {
		res, err := b.Export(cfg.ReportBufferSize)
		if err != nil {
			return nil, err
		}
		return []byte(res.Text), nil
	}, logger.With("component", "hub"))
	if a.watcher != nil {
		a.watcher.OnReload(a.hub.Refresh)
	}

	a.limiter = middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	a.router = handlers.NewRouter(handlers.Deps{
		Bridge:   b,
		Backend:  name,
		Capacity: cfg.ReportBufferSize,
		Auth:     authenticator,
		Metrics:  metrics,
		Hub:      a.hub,
		WS:       websocket.NewHandler(a.hub, authenticator, cfg.WSAllowedOrigins, logger.With("component", "ws")),
		Limiter:  a.limiter,
		Version:  version,
		Logger:   logger,
	})
	return a, nil
}

// start runs the background goroutines until ctx ends.
func (a *app) start(ctx context.Context) {
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.hub.Run(ctx, pushInterval)
	}()
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(limiterIdleTimeout)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := a.limiter.Cleanup(limiterIdleTimeout); n > 0 {
					a.logger.Debug("rate limiter cleanup", "removed", n)
				}
			}
		}
	}()

	if a.watcher != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.watcher.Run(ctx); err != nil {
				a.logger.Error("fixture watcher stopped", "error", err)
			}
		}()
	}
}

func (a *app) wait() { a.wg.Wait() }
