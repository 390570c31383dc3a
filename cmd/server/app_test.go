package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/bridge"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, fixtureBody string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gpus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureBody), 0o600))
	return &config.Config{
		Port:              "0",
		Backend:           "Fixture",
		FixturePath:       path,
		ReportBufferSize:  bridge.SizeSmall,
		TransportMaxUnits: bridge.MaxUnits,
		RateLimitRPS:      100,
		RateLimitBurst:    100,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewAppServesFixture(t *testing.T) {
	cfg := testConfig(t, "adapters:\n  - name: RTX 4090\n")
	a, err := newApp(cfg, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "fixture", a.backend)
	require.NotNil(t, a.watcher)

	ctx, cancel := context.WithCancel(context.Background())
	a.start(ctx)
	defer func() {
		cancel()
		a.wait()
	}()

	require.True(t, a.hub.WaitReady(2*time.Second))
	assert.Equal(t, "DEDICATED : RTX 4090\n", string(a.hub.Latest()))

	rec := httptest.NewRecorder()
	a.router.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DEDICATED : RTX 4090\n", rec.Body.String())
}

func TestNewAppRejectsConfig(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*config.Config)
	}{
		{name: "缺少 fixture 路径", mod: func(c *config.Config) { c.FixturePath = "" }},
		{name: "fixture 不存在", mod: func(c *config.Config) { c.FixturePath = filepath.Join(t.TempDir(), "missing.yaml") }},
		{name: "未知后端", mod: func(c *config.Config) { c.Backend = "vulkan" }},
		{name: "缓冲区过大", mod: func(c *config.Config) { c.ReportBufferSize = bridge.SizeLarge + 1 }},
		{name: "传输上限过小", mod: func(c *config.Config) { c.TransportMaxUnits = 10 }},
		{name: "密钥过短", mod: func(c *config.Config) { c.JWTSecret = "short" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "adapters: []\n")
			tt.mod(cfg)
			_, err := newApp(cfg, quietLogger())
			assert.Error(t, err)
		})
	}
}

func TestAppWaitReturnsAfterCancel(t *testing.T) {
	cfg := testConfig(t, "adapters:\n  - name: RTX 4090\n")
	a, err := newApp(cfg, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	a.start(ctx)
	require.True(t, a.hub.WaitReady(2*time.Second))
	cancel()

	done := make(chan struct{})
	go func() {
		a.wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background goroutines still running after cancel")
	}
}

func TestRun(t *testing.T) {
	t.Run("端口被占用", func(t *testing.T) {
		ln, err := net.Listen("tcp", ":0")
		require.NoError(t, err)
		defer ln.Close()

		cfg := testConfig(t, "adapters:\n  - name: RTX 4090\n")
		cfg.Port = strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)

		errc := make(chan error, 1)
		go func() { errc <- run(context.Background(), cfg, quietLogger()) }()
		select {
		case err := <-errc:
			assert.Error(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("run did not return on listen failure")
		}
	})

	t.Run("取消后正常退出", func(t *testing.T) {
		cfg := testConfig(t, "adapters:\n  - name: RTX 4090\n")
		ctx, cancel := context.WithCancel(context.Background())

		errc := make(chan error, 1)
		go func() { errc <- run(ctx, cfg, quietLogger()) }()
		time.Sleep(100 * time.Millisecond)
		cancel()
		select {
		case err := <-errc:
			assert.NoError(t, err)
		case <-time.After(15 * time.Second):
			t.Fatal("run did not return after cancel")
		}
	})
}
