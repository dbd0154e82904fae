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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/lumen/services/analysis/engine"
	"github.com/AleutianAI/lumen/services/analysis/host"
	"github.com/AleutianAI/lumen/services/analysis/semantic"
)

// Handlers holds the HTTP handlers for the analysis service.
type Handlers struct {
	service *Service
}

// NewHandlers creates handlers backed by svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{service: svc}
}

// getOrCreateRequestID returns the X-Request-ID header or a fresh id.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleAddFile handles POST /v1/analysis/files.
//
// Adds (or fully replaces) one file. This is also the baseline path:
// project discovery posts every initial file here before interactive
// queries begin.
func (h *Handlers) HandleAddFile(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAddFile")

	var req AddFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	id, rev, err := h.service.AddFile(req.Path, req.Text)
	if err != nil {
		logger.Warn("Add file rejected", "path", req.Path, "error", err)
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: err.Error(),
			Code:  "FILE_TOO_LARGE",
		})
		return
	}

	logger.Info("File added", "path", req.Path, "file_id", uint64(id), "revision", uint64(rev))
	c.JSON(http.StatusOK, AddFileResponse{FileID: uint32(id), Revision: uint64(rev)})
}

// HandleRemoveFile handles DELETE /v1/analysis/files/:id.
func (h *Handlers) HandleRemoveFile(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRemoveFile")

	raw := c.Param("id")
	id64, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "File id must be a positive integer",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	rev, err := h.service.RemoveFile(semantic.FileID(id64))
	if err != nil {
		logger.Warn("Remove failed", "file_id", id64, "error", err)
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "UNKNOWN_FILE",
		})
		return
	}
	c.JSON(http.StatusOK, RemoveFileResponse{Revision: uint64(rev)})
}

// HandleApplyEdits handles POST /v1/analysis/edits.
//
// The batch commits atomically: one new revision on success, no state
// change at all on validation failure.
func (h *Handlers) HandleApplyEdits(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleApplyEdits")

	var req ApplyEditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	batch := make([]host.FileEdits, 0, len(req.Batch))
	for _, fe := range req.Batch {
		edits := make([]host.Edit, 0, len(fe.Edits))
		for _, e := range fe.Edits {
			edits = append(edits, host.Edit{Start: e.Start, End: e.End, Text: e.Text})
		}
		batch = append(batch, host.FileEdits{File: semantic.FileID(fe.File), Edits: edits})
	}

	rev, err := h.service.ApplyEdits(batch)
	if err != nil {
		status, code := editErrorStatus(err)
		logger.Warn("Edit batch rejected", "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	logger.Debug("Edit batch committed", "revision", uint64(rev))
	c.JSON(http.StatusOK, ApplyEditsResponse{Revision: uint64(rev)})
}

func editErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, host.ErrUnknownFile):
		return http.StatusNotFound, "UNKNOWN_FILE"
	case errors.Is(err, host.ErrOutOfRange):
		return http.StatusBadRequest, "OUT_OF_RANGE"
	case errors.Is(err, host.ErrEmptyBatch):
		return http.StatusBadRequest, "EMPTY_BATCH"
	}
	return http.StatusInternalServerError, "EDIT_FAILED"
}

// HandleQuery handles POST /v1/analysis/query.
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQuery")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.service.Query(c.Request.Context(), req)
	if err != nil {
		status, code := queryErrorStatus(err)
		if status >= http.StatusInternalServerError {
			logger.Error("Query failed", "kind", req.Kind, "error", err)
		} else {
			logger.Warn("Query rejected", "kind", req.Kind, "error", err)
		}
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func queryErrorStatus(err error) (int, string) {
	var cycle *engine.CycleError
	switch {
	case engine.IsCancelled(err):
		// Not a failure: the caller may retry against the new revision.
		return http.StatusConflict, "CANCELLED"
	case errors.As(err, &cycle):
		return http.StatusInternalServerError, "CYCLE_DETECTED"
	case errors.Is(err, engine.ErrUnknownInput):
		return http.StatusNotFound, "UNKNOWN_FILE"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, "REQUEST_TIMEOUT"
	}
	return http.StatusBadRequest, "INVALID_REQUEST"
}

// HandleStream handles GET /v1/analysis/stream: a websocket pushing
// fresh diagnostics for every file touched by each committed revision.
func (h *Handlers) HandleStream(c *gin.Context) {
	h.service.hub.serve(c)
}

// HandleHealth handles GET /v1/analysis/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Revision: uint64(h.service.Host().Revision()),
		Files:    h.service.FileCount(),
	})
}

// HandleReady handles GET /v1/analysis/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ready": true})
}
