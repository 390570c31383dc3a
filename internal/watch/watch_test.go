package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func report(t *testing.T, api gpu.API) string {
	t.Helper()
	return string(gpu.Build(make([]byte, 1024), api))
}

func TestReloadKeepsLastGoodVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adapters:\n  - name: RTX 4090\n"), 0o600))

	f, err := NewFixture(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Equal(t, "DEDICATED : RTX 4090\n", report(t, f))

	var calls atomic.Int32
	f.OnReload(func() { calls.Add(1) })

	require.NoError(t, os.WriteFile(path, []byte("adapters:\n  - name: Arc A770\n"), 0o600))
	require.NoError(t, f.Reload())
	assert.Equal(t, "DEDICATED : Arc A770\n", report(t, f))
	assert.EqualValues(t, 1, calls.Load())

	require.NoError(t, os.WriteFile(path, []byte("adapters: [\n"), 0o600))
	assert.Error(t, f.Reload())
	assert.Equal(t, "DEDICATED : Arc A770\n", report(t, f))
	assert.EqualValues(t, 1, calls.Load())
}

func TestNewFixtureFails(t *testing.T) {
	_, err := NewFixture(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestRunReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adapters:\n  - name: RTX 4090\n"), 0o600))

	f, err := NewFixture(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	f.debounce = 10 * time.Millisecond

	reloaded := make(chan struct{}, 1)
	f.OnReload(func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- f.Run(ctx) }()

	// Unrelated files in the directory are ignored.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600)
		_ = os.WriteFile(path, []byte("adapters:\n  - name: Radeon 780M\n    unified: true\n"), 0o600)
		select {
		case <-reloaded:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "INTEGRATED : Radeon 780M\n", report(t, f))
	cancel()
	assert.NoError(t, <-errc)
}
