// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the write/rename event bursts editors and
// config-map updates produce into one reload.
const debounceWindow = 250 * time.Millisecond

// Watcher hot-reloads the Tunables section when the config file
// changes. Structural sections (endpoints, credentials, listener) are
// deliberately not reloaded — those changes take a restart.
//
// Thread Safety: Tunables() is safe for concurrent use.
type Watcher struct {
	path     string
	logger   *slog.Logger
	onChange func(Tunables)

	mu       sync.RWMutex
	tunables Tunables
}

// NewWatcher creates a watcher seeded with the currently loaded
// tunables.
func NewWatcher(path string, initial Tunables, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: path, logger: logger, tunables: initial}
}

// OnChange registers a callback invoked after each successful reload.
// Must be called before Run.
func (w *Watcher) OnChange(fn func(Tunables)) {
	w.onChange = fn
}

// Tunables returns the current tunables snapshot.
func (w *Watcher) Tunables() Tunables {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tunables
}

// Run watches the config file until ctx is done. A reload that fails
// validation keeps the previous tunables.
func (w *Watcher) Run(ctx context.Context) error {
	if w.path == "" {
		<-ctx.Done()
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.path); err != nil {
		return fmt.Errorf("config: watch %s: %w", w.path, err)
	}

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
			// Atomic-replace writes remove the watched inode; re-add so
			// the next change is still seen.
			if event.Op&fsnotify.Rename != 0 {
				_ = fw.Add(w.path)
			}

		case <-reload:
			w.reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected, keeping previous tunables",
			slog.String("error", err.Error()),
		)
		return
	}

	w.mu.Lock()
	w.tunables = cfg.Tunables
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(cfg.Tunables)
	}
	w.logger.Info("tunables reloaded",
		slog.Duration("step_timeout", cfg.Tunables.StepTimeout),
		slog.Duration("market_cache_ttl", cfg.Tunables.MarketCacheTTL),
		slog.Int("retrieval_limit", cfg.Tunables.RetrievalLimit),
	)
}
