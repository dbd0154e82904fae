// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

import "fmt"

// SyntaxError is a positioned deviation from the grammar.
//
// Syntax errors are data, not failures: Parse always returns a
// complete tree and reports each deviation here instead of aborting.
type SyntaxError struct {
	// Offset is the byte offset in the source where the error was
	// detected.
	Offset int `json:"offset"`

	// Message describes what the parser expected.
	Message string `json:"message"`
}

// String formats the error as "offset: message".
func (e SyntaxError) String() string {
	return fmt.Sprintf("%d: %s", e.Offset, e.Message)
}
