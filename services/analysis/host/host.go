// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package host owns the canonical analysis state: file identities,
// file text, and the global revision counter.
//
// The Host is the single mutation path. Edits are validated against
// the current text before anything is touched, then committed as one
// atomic batch producing exactly one new revision. Readers never see
// the host directly; they work through revision-stamped Snapshots.
package host

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/lumen/services/analysis/engine"
	"github.com/AleutianAI/lumen/services/analysis/semantic"
)

// Edit is one byte-range replacement: text[Start:End] becomes Text.
type Edit struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// FileEdits groups the ordered edits for one file within a batch.
type FileEdits struct {
	File  semantic.FileID `json:"file"`
	Edits []Edit          `json:"edits"`
}

// Host is the single-writer owner of the database.
//
// Thread Safety:
//
//	All methods are safe for concurrent use; mutations serialize on an
//	internal mutex so there is exactly one writer at a time.
type Host struct {
	mu        sync.Mutex // serializes mutations and id assignment
	db        *engine.Database
	fileIDs   map[string]semantic.FileID
	filePaths map[semantic.FileID]string
	nextID    semantic.FileID
	logger    *slog.Logger
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(host *Host) {
		if l != nil {
			host.logger = l
		}
	}
}

// WithEngineOptions forwards options to the underlying database
// (logger, metrics).
func WithEngineOptions(opts ...engine.Option) Option {
	return func(host *Host) {
		host.db = engine.New(opts...)
	}
}

// New creates an empty host at revision 0.
func New(opts ...Option) *Host {
	host := &Host{
		db:        engine.New(),
		fileIDs:   make(map[string]semantic.FileID),
		filePaths: make(map[semantic.FileID]string),
		nextID:    1,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(host)
	}
	return host
}

// Revision returns the current committed revision.
func (host *Host) Revision() engine.Revision { return host.db.Revision() }

// FileID returns the id assigned to path, if any.
func (host *Host) FileID(path string) (semantic.FileID, bool) {
	host.mu.Lock()
	defer host.mu.Unlock()
	id, ok := host.fileIDs[path]
	return id, ok
}

// FileCount returns the number of files currently under analysis.
func (host *Host) FileCount() int {
	host.mu.Lock()
	defer host.mu.Unlock()
	return len(host.filePaths)
}

// Path returns the path of a file id, if known.
func (host *Host) Path(id semantic.FileID) (string, bool) {
	host.mu.Lock()
	defer host.mu.Unlock()
	p, ok := host.filePaths[id]
	return p, ok
}

// AddFile installs (or fully replaces) a file's text and returns its
// stable id. Adding is the baseline "edit": project discovery calls
// it for every initial file before interactive analysis begins.
func (host *Host) AddFile(path, text string) (semantic.FileID, engine.Revision) {
	host.mu.Lock()
	defer host.mu.Unlock()

	id, known := host.fileIDs[path]
	if !known {
		id = host.nextID
		host.nextID++
		host.fileIDs[path] = id
		host.filePaths[id] = path
	}
	rev := host.db.Commit(func(w *engine.Writer) {
		engine.Set(w, semantic.FileText, id, text, engine.DurabilityLow)
		if !known {
			engine.Set(w, semantic.FileSet, semantic.FileSetKey(), host.fileSetLocked(), engine.DurabilityHigh)
		}
	})
	host.logger.Info("file added",
		slog.String("path", path),
		slog.Uint64("file_id", uint64(id)),
		slog.Uint64("revision", uint64(rev)))
	return id, rev
}

// RemoveFile drops a file from analysis.
func (host *Host) RemoveFile(id semantic.FileID) (engine.Revision, error) {
	host.mu.Lock()
	defer host.mu.Unlock()

	path, ok := host.filePaths[id]
	if !ok {
		return host.db.Revision(), fmt.Errorf("%w: %d", ErrUnknownFile, id)
	}
	delete(host.filePaths, id)
	delete(host.fileIDs, path)
	rev := host.db.Commit(func(w *engine.Writer) {
		engine.Remove(w, semantic.FileText, id)
		engine.Set(w, semantic.FileSet, semantic.FileSetKey(), host.fileSetLocked(), engine.DurabilityHigh)
	})
	host.logger.Info("file removed", slog.String("path", path), slog.Uint64("revision", uint64(rev)))
	return rev, nil
}

// ApplyEdits applies one atomic batch of byte-range replacements,
// possibly spanning several files, and advances the revision by
// exactly one.
//
// Description:
//
//	Every edit is validated against the evolving text before any
//	state is touched. On validation failure the database stays at the
//	prior revision: readers never observe a partially applied batch.
//	Edits within one file apply in submission order, each against the
//	text produced by the previous one.
//
// Outputs:
//   - engine.Revision: the newly committed revision on success, the
//     unchanged current revision on failure.
//   - error: ErrUnknownFile, ErrOutOfRange, or ErrEmptyBatch.
func (host *Host) ApplyEdits(batch []FileEdits) (engine.Revision, error) {
	host.mu.Lock()
	defer host.mu.Unlock()

	if len(batch) == 0 {
		return host.db.Revision(), ErrEmptyBatch
	}

	// Validate the whole batch first.
	newTexts := make(map[semantic.FileID]string, len(batch))
	for _, fe := range batch {
		text, ok := newTexts[fe.File]
		if !ok {
			text, ok = engine.Peek(host.db, semantic.FileText, fe.File)
			if !ok {
				return host.db.Revision(), fmt.Errorf("%w: %d", ErrUnknownFile, fe.File)
			}
		}
		if len(fe.Edits) == 0 {
			return host.db.Revision(), ErrEmptyBatch
		}
		for _, e := range fe.Edits {
			if e.Start < 0 || e.Start > e.End || e.End > len(text) {
				return host.db.Revision(), fmt.Errorf("%w: [%d, %d) against length %d",
					ErrOutOfRange, e.Start, e.End, len(text))
			}
			var sb strings.Builder
			sb.Grow(len(text) - (e.End - e.Start) + len(e.Text))
			sb.WriteString(text[:e.Start])
			sb.WriteString(e.Text)
			sb.WriteString(text[e.End:])
			text = sb.String()
		}
		newTexts[fe.File] = text
	}

	rev := host.db.Commit(func(w *engine.Writer) {
		for id, text := range newTexts {
			engine.Set(w, semantic.FileText, id, text, engine.DurabilityLow)
		}
	})
	host.logger.Debug("edit batch committed",
		slog.Int("files", len(newTexts)),
		slog.Uint64("revision", uint64(rev)))
	return rev, nil
}

// Snapshot returns a read view bound to the current revision. O(1);
// never blocks on in-flight readers. The caller must Release it.
func (host *Host) Snapshot() *Snapshot {
	return &Snapshot{snap: host.db.Snapshot()}
}

// StatsFor exposes the engine's per-query counters.
func (host *Host) StatsFor(query string) engine.QueryStats {
	return host.db.StatsFor(query)
}

// fileSetLocked returns the sorted current file set. Caller holds mu.
func (host *Host) fileSetLocked() []semantic.FileID {
	ids := make([]semantic.FileID, 0, len(host.filePaths))
	for id := range host.filePaths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
