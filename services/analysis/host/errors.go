// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package host

import "errors"

// Protocol errors. These indicate a collaborator bug (bad offsets or
// ids from the transport layer) and are surfaced explicitly, never
// silently ignored. A failed batch leaves the database at the prior
// revision untouched.
var (
	// ErrUnknownFile is returned for an edit or lookup against a file
	// id that was never added.
	ErrUnknownFile = errors.New("unknown file id")

	// ErrOutOfRange is returned when an edit's byte range does not fit
	// the file's current text.
	ErrOutOfRange = errors.New("edit range out of bounds")

	// ErrEmptyBatch is returned for an edit batch with no edits.
	ErrEmptyBatch = errors.New("empty edit batch")
)
