package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DynamicConfig represents runtime-changeable configuration, loaded
// from a YAML file and reloaded on change.
type DynamicConfig struct {
	Limits        Limits        `yaml:"limits"`
	Notifications Notifications `yaml:"notifications"`
}

// Limits holds application limits
type Limits struct {
	// MaxWantedSlots caps the wanted set of one swap request.
	MaxWantedSlots int `yaml:"maxWantedSlots"`
	// MaxSemestersPerMap caps a course map's semester list.
	MaxSemestersPerMap int `yaml:"maxSemestersPerMap"`
}

// Notifications toggles outbound match notifications.
type Notifications struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultDynamicConfig returns the limits used when no config file is
// configured.
func DefaultDynamicConfig() *DynamicConfig {
	return &DynamicConfig{
		Limits:        Limits{MaxWantedSlots: 10, MaxSemestersPerMap: 16},
		Notifications: Notifications{Enabled: true},
	}
}

// Watcher watches a YAML configuration file and swaps in new dynamic
// configuration when the file changes.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu       sync.RWMutex
	current  *DynamicConfig
	onChange []func(*DynamicConfig)

	stopCh chan struct{}
}

// NewWatcher loads the file and starts watching it. The directory is
// watched too, so atomic renames are seen.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	current, err := loadDynamicConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		logger.Warn("failed to watch config directory", zap.Error(err))
	}

	w := &Watcher{
		path:    path,
		watcher: fw,
		logger:  logger,
		current: current,
		stopCh:  make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Current returns the latest dynamic configuration.
func (w *Watcher) Current() *DynamicConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback invoked after every successful reload.
func (w *Watcher) OnChange(fn func(*DynamicConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Stop stops watching.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

func (w *Watcher) loop() {
	// Editors fire bursts of events per save; debounce them.
	var pending <-chan time.Time
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(200 * time.Millisecond)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := loadDynamicConfig(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := append(([]func(*DynamicConfig))(nil), w.onChange...)
	w.mu.Unlock()

	w.logger.Info("dynamic config reloaded", zap.String("path", w.path))
	for _, fn := range callbacks {
		fn(cfg)
	}
}

func loadDynamicConfig(path string) (*DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultDynamicConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	if cfg.Limits.MaxWantedSlots <= 0 || cfg.Limits.MaxSemestersPerMap <= 0 {
		return nil, fmt.Errorf("limits must be positive in %s", path)
	}
	return cfg, nil
}
