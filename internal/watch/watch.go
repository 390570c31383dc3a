// Package watch 监视 fixture 文件并在修改后热加载
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu/fixture"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Fixture is a gpu.API serving the latest valid version of a fixture file.
// A file that fails to parse leaves the previous version in place.
type Fixture struct {
	path     string
	current  atomic.Pointer[fixture.API]
	logger   *slog.Logger
	debounce time.Duration

	mu       sync.Mutex
	onReload []func()
}

// NewFixture loads path once; it fails if the initial load does.
func NewFixture(path string, logger *slog.Logger) (*Fixture, error) {
	api, err := fixture.Load(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fixture{path: path, logger: logger, debounce: defaultDebounce}
	f.current.Store(api)
	return f, nil
}

// Open implements gpu.API.
func (f *Fixture) Open() (gpu.Session, error) {
	return f.current.Load().Open()
}

// OnReload registers fn to run after every successful reload.
func (f *Fixture) OnReload(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onReload = append(f.onReload, fn)
}

// Reload re-reads the file now.
func (f *Fixture) Reload() error {
	api, err := fixture.Load(f.path)
	if err != nil {
		return err
	}
	f.current.Store(api)

	f.mu.Lock()
	callbacks := append([]func(){}, f.onReload...)
	f.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// Run watches the fixture's directory, since editors often replace files
// instead of writing them, and reloads after changes settle. It blocks
// until ctx is cancelled.
func (f *Fixture) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	f.logger.Info("watching fixture for changes", "file", f.path)

	target := filepath.Clean(f.path)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			f.logger.Debug("fixture changed", "file", event.Name, "op", event.Op)

			// Debounce: reset timer on each event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(f.debounce, func() {
				if err := f.Reload(); err != nil {
					f.logger.Error("fixture reload failed, keeping previous version", "error", err)
					return
				}
				f.logger.Info("fixture reloaded", "file", f.path)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Error("file watcher error", "error", err)
		}
	}
}
