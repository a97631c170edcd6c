package config

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the configuration file when it changes or on SIGHUP.
// The parent directory is watched so saves that rename a temporary file
// into place are noticed too.
type Watcher struct {
	path     string
	apply    func(*Config) error
	logger   zerolog.Logger
	debounce time.Duration
	fs       *fsnotify.Watcher
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWatcher watches path and passes every valid reloaded config to apply
func NewWatcher(path string, apply func(*Config) error, logger zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		path:     abs,
		apply:    apply,
		logger:   logger,
		debounce: defaultDebounce,
		fs:       fsWatcher,
	}, nil
}

// Start watches in the background until ctx is done or Stop is called
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	go w.run(ctx)

	w.logger.Debug().Str("path", w.path).Msg("Config watcher started")
}

// Stop ends the watch and waits for the loop to exit
func (w *Watcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer w.fs.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	// Bursts of events collapse into one reload
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug().Msg("Config watcher stopped")
			return

		case sig := <-sigChan:
			w.logger.Info().Str("signal", sig.String()).Msg("Received signal, reloading configuration")
			w.reload()

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Config file changed")
			timer.Reset(w.debounce)

		case <-timer.C:
			w.reload()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Config watcher error")
		}
	}
}

// relevant reports whether event wrote or replaced the watched file
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

// reload loads the file and hands a valid config to apply
func (w *Watcher) reload() {
	// Load validates as well
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to load new configuration - keeping current config")
		return
	}

	if err := w.apply(cfg); err != nil {
		w.logger.Error().Err(err).Msg("Failed to apply new configuration - keeping current config")
		return
	}

	w.logger.Info().Str("model", cfg.Analysis.Model).Msg("Configuration reloaded")
}
