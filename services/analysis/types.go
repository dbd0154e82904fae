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
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/lumen/services/analysis/semantic"
)

var validate = validator.New()

// AddFileRequest is the request body for POST /v1/analysis/files.
type AddFileRequest struct {
	// Path identifies the file; ids are assigned per path. Required.
	Path string `json:"path" binding:"required"`

	// Text is the file's full content. May be empty.
	Text string `json:"text"`
}

// AddFileResponse is the response for POST /v1/analysis/files.
type AddFileResponse struct {
	// FileID is the stable id assigned to the path.
	FileID uint32 `json:"file_id"`

	// Revision is the revision the add committed.
	Revision uint64 `json:"revision"`
}

// EditDTO is one byte-range replacement.
type EditDTO struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// FileEditsDTO groups the ordered edits for one file.
type FileEditsDTO struct {
	File  uint32    `json:"file" binding:"required"`
	Edits []EditDTO `json:"edits" binding:"required,min=1"`
}

// ApplyEditsRequest is the request body for POST /v1/analysis/edits.
// The whole batch commits atomically as one revision.
type ApplyEditsRequest struct {
	Batch []FileEditsDTO `json:"batch" binding:"required,min=1,dive"`
}

// ApplyEditsResponse is the response for POST /v1/analysis/edits.
type ApplyEditsResponse struct {
	Revision uint64 `json:"revision"`
}

// RemoveFileResponse is the response for DELETE /v1/analysis/files/:id.
type RemoveFileResponse struct {
	Revision uint64 `json:"revision"`
}

// Query kinds accepted by POST /v1/analysis/query.
const (
	QueryKindHover            = "hover"
	QueryKindCompletion       = "completion"
	QueryKindDiagnostics      = "diagnostics"
	QueryKindDefinitions      = "definitions"
	QueryKindSymbols          = "symbols"
	QueryKindWorkspaceSymbols = "workspace_symbols"
	QueryKindResolve          = "resolve"
)

// QueryRequest is the request body for POST /v1/analysis/query.
type QueryRequest struct {
	// Kind selects the query. Required.
	Kind string `json:"kind" binding:"required" validate:"oneof=hover completion diagnostics definitions symbols workspace_symbols resolve"`

	// File is the target file id. Required except for workspace_symbols.
	File uint32 `json:"file"`

	// Offset is the byte offset for hover and completion.
	Offset int `json:"offset" validate:"min=0"`

	// Name is the name to resolve for resolve queries.
	Name string `json:"name"`
}

// Validate checks cross-field constraints the binding tags cannot
// express.
func (r *QueryRequest) Validate() error {
	return validate.Struct(r)
}

// QueryResponse is the response for POST /v1/analysis/query.
type QueryResponse struct {
	// Kind echoes the request kind.
	Kind string `json:"kind"`

	// Revision is the revision the result is consistent with.
	Revision uint64 `json:"revision"`

	// Result is the kind-specific payload.
	Result any `json:"result"`
}

// StreamEvent is one message pushed on /v1/analysis/stream.
type StreamEvent struct {
	// Type is currently always "diagnostics".
	Type string `json:"type"`

	// Revision is the revision the diagnostics are consistent with.
	Revision uint64 `json:"revision"`

	// File and Path identify the file.
	File uint32 `json:"file"`
	Path string `json:"path"`

	// Diagnostics is the file's full current diagnostic set.
	Diagnostics []semantic.Diagnostic `json:"diagnostics"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the response for GET /v1/analysis/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Revision uint64 `json:"revision"`
	Files    int    `json:"files"`
}
