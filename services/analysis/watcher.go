// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the write bursts editors produce on save.
const watchDebounce = 200 * time.Millisecond

// watcher mirrors a directory tree of source files into the analysis
// host. Files are re-read whole on every write; the host's reparse
// path turns the full text into an incremental update.
type watcher struct {
	service    *Watchable
	root       string
	extensions []string
	fsw        *fsnotify.Watcher
	logger     *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// Watchable is the slice of Service the watcher needs. Split out so
// watcher tests can run against a bare host.
type Watchable struct {
	AddFile    func(path, text string) error
	RemoveFile func(path string) error
}

func newWatcher(svc *Watchable, root string, extensions []string, logger *slog.Logger) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &watcher{
		service:    svc,
		root:       root,
		extensions: extensions,
		fsw:        fsw,
		logger:     logger,
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}, nil
}

// start walks the root, ingests every matching file, registers the
// directories, and begins the event loop.
func (w *watcher) start() error {
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != w.root {
				return filepath.SkipDir
			}
			return w.fsw.Add(path)
		}
		if w.matches(path) {
			w.ingest(path)
		}
		return nil
	})
	if err != nil {
		w.fsw.Close()
		return fmt.Errorf("walk watch root %q: %w", w.root, err)
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

func (w *watcher) stop() {
	close(w.done)
	w.fsw.Close()
	w.wg.Wait()

	w.mu.Lock()
	for _, t := range w.pending {
		t.Stop()
	}
	w.pending = make(map[string]*time.Timer)
	w.mu.Unlock()
}

func (w *watcher) matches(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (w *watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", "error", err)
		}
	}
}

func (w *watcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Op.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.watchTree(ev.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", ev.Name, "error", err)
			}
			return
		}
		if w.matches(ev.Name) {
			w.scheduleIngest(ev.Name)
		}
	case ev.Op.Has(fsnotify.Write):
		if w.matches(ev.Name) {
			w.scheduleIngest(ev.Name)
		}
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		if w.matches(ev.Name) {
			if err := w.service.RemoveFile(ev.Name); err != nil {
				w.logger.Debug("Remove skipped", "path", ev.Name, "error", err)
			}
		}
	}
}

// scheduleIngest debounces per path: only the last write in a burst
// is read.
func (w *watcher) scheduleIngest(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(watchDebounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingest(path)
	})
}

// watchTree registers dir and its subtree. Files written into the
// directory before its watch landed produce no events, so the walk
// picks them up directly.
func (w *watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return w.fsw.Add(path)
		}
		if w.matches(path) {
			w.scheduleIngest(path)
		}
		return nil
	})
}

func (w *watcher) ingest(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("Failed to read watched file", "path", path, "error", err)
		return
	}
	if err := w.service.AddFile(path, string(data)); err != nil {
		w.logger.Warn("Failed to ingest watched file", "path", path, "error", err)
	}
}

// StartWatcher begins mirroring the configured watch root into the
// host. No-op when WatchRoot is unset.
func (s *Service) StartWatcher() error {
	if s.config.WatchRoot == "" {
		return nil
	}
	s.watcherMu.Lock()
	defer s.watcherMu.Unlock()
	if s.watcher != nil {
		return fmt.Errorf("watcher already running")
	}

	wable := &Watchable{
		AddFile: func(path, text string) error {
			_, _, err := s.AddFile(path, text)
			return err
		},
		RemoveFile: func(path string) error {
			id, ok := s.host.FileID(path)
			if !ok {
				return fmt.Errorf("unknown path %q", path)
			}
			_, err := s.host.RemoveFile(id)
			return err
		},
	}
	w, err := newWatcher(wable, s.config.WatchRoot, s.config.WatchExtensions, s.logger)
	if err != nil {
		return err
	}
	if err := w.start(); err != nil {
		return err
	}
	s.watcher = w
	s.logger.Info("Filesystem watcher started", "root", s.config.WatchRoot)
	return nil
}

// StopWatcher stops the filesystem watcher if one is running.
func (s *Service) StopWatcher() {
	s.watcherMu.Lock()
	defer s.watcherMu.Unlock()
	if s.watcher != nil {
		s.watcher.stop()
		s.watcher = nil
	}
}
