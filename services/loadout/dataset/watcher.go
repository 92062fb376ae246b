// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Source when its file changes.
//
// # Description
//
// The parent directory is watched rather than the file itself, so editors
// that save by rename are picked up. Only events naming the dataset file
// trigger a reload. A failed reload is logged and the previous dataset
// stays active.
type Watcher struct {
	source   *Source
	watcher  *fsnotify.Watcher
	onReload func()
	started  atomic.Bool
	done     chan struct{}
}

// NewWatcher creates a watcher for source. onReload, if non-nil, runs after
// every successful reload.
func NewWatcher(source *Source, onReload func()) (*Watcher, error) {
	if source.Path() == "" {
		return nil, fmt.Errorf("dataset source has no file to watch")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create dataset watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(source.Path())); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch dataset directory: %w", err)
	}
	return &Watcher{
		source:   source,
		watcher:  fw,
		onReload: onReload,
		done:     make(chan struct{}),
	}, nil
}

// Start processes events in a goroutine until ctx is cancelled or Close is
// called. Calling Start more than once is a no-op.
func (w *Watcher) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	logger := w.source.logger

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("dataset watcher error", slog.String("error", err.Error()))

		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.source.Path()) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if err := w.source.Reload(); err != nil {
		w.source.logger.Warn("dataset reload failed, keeping previous data",
			slog.String("path", event.Name),
			slog.String("error", err.Error()))
		return
	}
	if w.onReload != nil {
		w.onReload()
	}
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	if w.started.Load() {
		<-w.done
	}
	return err
}
