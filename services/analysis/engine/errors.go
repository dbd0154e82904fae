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

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCancelled signals that the snapshot a computation was running
// against has been superseded by a newer revision.
//
// Cancellation is a control signal, not a failure: the caller may
// retry the same query against a fresh snapshot. Cancelled
// computations never write to the memo table.
var ErrCancelled = errors.New("computation cancelled: snapshot superseded")

// ErrUnknownInput is returned when a query reads an input key that
// was never set. It indicates a collaborator bug (e.g. a query issued
// for a file id that was never added).
var ErrUnknownInput = errors.New("unknown input")

// CycleError reports that computing a query re-entered a query
// already on the current computation stack.
//
// Returning a memoized value here would be silently wrong, so the
// engine fails fast and names the participants instead.
type CycleError struct {
	// Keys lists the queries forming the cycle, in call order,
	// starting at the re-entered query.
	Keys []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("query cycle detected: %s", strings.Join(e.Keys, " -> "))
}

// IsCancelled reports whether err is (or wraps) ErrCancelled.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
