package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/BajKull/Valks-backend/domain/core/entities"
)

// CategoriesFile is the YAML document listing the Public room categories
//
//	categories:
//	  - Games
//	  - Music
type CategoriesFile struct {
	Categories []string `yaml:"categories"`
}

// LoadCategories reads and normalizes a categories file. Categories that
// collide with an earlier one are returned in dropped.
func LoadCategories(path string) (categories, dropped []string, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read categories file: %w", err)
	}

	var file CategoriesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to parse categories file: %w", err)
	}

	categories, dropped = NormalizeCategories(file.Categories)
	return categories, dropped, nil
}

// NormalizeCategories trims the list and keeps the first spelling of every
// category. Two categories collide when they map to the same Public room
// id, so "Sci Fi" and "sci  fi" are the same category.
func NormalizeCategories(raw []string) (categories, dropped []string) {
	seen := make(map[string]struct{}, len(raw))
	categories = make([]string, 0, len(raw))
	for _, category := range raw {
		category = strings.TrimSpace(category)
		if category == "" {
			continue
		}
		key := entities.PublicRoomID(category)
		if _, dup := seen[key]; dup {
			dropped = append(dropped, category)
			continue
		}
		seen[key] = struct{}{}
		categories = append(categories, category)
	}
	return categories, dropped
}

// LogDropped warns about every category NormalizeCategories dropped
func LogDropped(logger *zap.Logger, dropped []string) {
	for _, category := range dropped {
		logger.Warn("Dropping duplicate category", zap.String("category", category))
	}
}

// CategoryWatcher reloads the categories file when it changes and hands
// the new list to its listeners
type CategoryWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	current  []string
	onChange []func([]string)
	started  bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCategoryWatcher loads path and starts watching its directory, so
// editors that save by rename are noticed too
func NewCategoryWatcher(path string, logger *zap.Logger) (*CategoryWatcher, error) {
	categories, dropped, err := LoadCategories(path)
	if err != nil {
		return nil, err
	}
	LogDropped(logger, dropped)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch categories directory: %w", err)
	}

	return &CategoryWatcher{
		path:     path,
		watcher:  watcher,
		debounce: 100 * time.Millisecond,
		logger:   logger,
		current:  categories,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Current returns the last successfully loaded categories
func (w *CategoryWatcher) Current() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.current...)
}

// OnChange registers a listener. Listeners run on the watcher goroutine.
func (w *CategoryWatcher) OnChange(fn func([]string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start begins watching for changes
func (w *CategoryWatcher) Start() {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.watchLoop()
	w.logger.Info("Categories watcher started", zap.String("path", w.path))
}

// Stop stops watching and waits for the loop to exit
func (w *CategoryWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.mu.RLock()
		started := w.started
		w.mu.RUnlock()
		if started {
			<-w.doneCh
		}
		w.logger.Info("Categories watcher stopped")
	})
}

func (w *CategoryWatcher) watchLoop() {
	defer close(w.doneCh)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *CategoryWatcher) reload() {
	categories, dropped, err := LoadCategories(w.path)
	if err != nil {
		w.logger.Error("Failed to reload categories, keeping current", zap.Error(err))
		return
	}
	LogDropped(w.logger, dropped)

	w.mu.Lock()
	w.current = categories
	listeners := append([]func([]string){}, w.onChange...)
	w.mu.Unlock()

	w.logger.Info("Categories reloaded", zap.Strings("categories", categories))
	for _, fn := range listeners {
		fn(categories)
	}
}
