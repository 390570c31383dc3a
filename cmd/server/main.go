// Package main 提供显卡报告服务器的主入口点
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/config"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/systemd"

	_ "github.com/AnalyseDeCircuit/gpu-detect/docs" // swagger docs
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// @title gpu-detect API
// @version 1.0
// @description 显卡枚举与分类报告服务
// @description
// @description 特性:
// @description - 纯文本报告 (INTEGRATED / DEDICATED)
// @description - JSON/CBOR 信封
// @description - WebSocket推送
// @description - JWT认证 (HttpOnly Cookie)
// @description - Prometheus指标导出

// @contact.name API Support
// @contact.url https://github.com/AnalyseDeCircuit/gpu-detect

// @license.name CC BY-NC 4.0
// @license.url https://creativecommons.org/licenses/by-nc/4.0/

// @host localhost:38080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT令牌 (格式: "Bearer {token}")

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name auth_token
// @description JWT令牌 (HttpOnly Cookie)

// @tag.name Report
// @tag.description 显卡报告接口

// @tag.name Authentication
// @tag.description 令牌相关接口

// @tag.name Monitoring
// @tag.description 健康检查

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	if cfg.LogLevel <= slog.LevelDebug {
		gpu.SetLogger(logger.With("component", "gpu"))
	}
	logger.Info("starting gpu-detect server", "version", version)

	if cfg.HostFS != "" {
		logger.Info("using host filesystem", "host_fs", cfg.HostFS, "host_sys", cfg.HostSys)
		// gopsutil reads host information through these.
		os.Setenv("HOST_PROC", config.HostPath("/proc"))
		os.Setenv("HOST_SYS", cfg.HostSys)
		os.Setenv("HOST_ETC", config.HostPath("/etc"))
	} else {
		logger.Info("running in bare metal mode (no HostFS)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited gracefully")
}

// run serves until ctx ends or the listener fails. Background goroutines
// are stopped and drained before it returns.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	app, err := newApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	server := app.router.Server(":" + cfg.Port)
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	app.start(ctx)

	// 启动服务器（非阻塞）
	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", ln.Addr().String(), "backend", app.backend, "auth", cfg.AuthEnabled())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	notifier := &systemd.Notifier{}
	if app.hub.WaitReady(10 * time.Second) {
		notifier.Status("first report ready")
	}
	notifier.Ready()
	go notifier.Watchdog(ctx)

	// 等待中断信号或服务器错误
	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
	}
	logger.Info("shutting down server")
	notifier.Stopping()
	cancel()

	// 优雅关闭 HTTP 服务器（等待最多 10 秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	app.wait()
	return serveErr
}
