// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import "sync/atomic"

// Snapshot is an immutable view of the database as of one revision,
// plus the cancellation flag shared by every snapshot of that
// revision epoch.
//
// Description:
//
//	Any number of snapshots may coexist; each is released
//	independently. Repeated reads through one snapshot during its
//	lifetime are consistent with its revision: a commit of the next
//	revision raises the shared flag and then waits for the snapshot to
//	be released, so state visible through it is never mutated.
//
//	Cancellation is advisory and cooperative. Every query Get polls
//	the flag, which bounds the latency to the next query call; a query
//	body that loops without issuing engine reads must poll Cancelled
//	itself. That is a correctness obligation on the query author, not
//	something the engine can enforce.
//
// Thread Safety: safe for concurrent use; Release is idempotent.
type Snapshot struct {
	db       *Database
	revision Revision
	cancel   *atomic.Bool
	released atomic.Bool
}

// Revision returns the revision the snapshot is bound to.
func (s *Snapshot) Revision() Revision { return s.revision }

// Cancelled reports whether a newer revision has begun committing,
// meaning this snapshot's results are no longer wanted.
func (s *Snapshot) Cancelled() bool { return s.cancel.Load() }

// Release returns the snapshot to the database. Idempotent. A
// snapshot that is never released blocks all future commits.
func (s *Snapshot) Release() {
	if s.released.CompareAndSwap(false, true) {
		s.db.mu.RUnlock()
	}
}

// NewContext starts a root computation context against the snapshot.
func (s *Snapshot) NewContext() *Context {
	return &Context{snap: s}
}
