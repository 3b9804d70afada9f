// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package wlkernel

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers contains the HTTP handlers for the kernel API.
//
// Thread Safety: safe for concurrent use.
type Handlers struct {
	service *Service
}

// NewHandlers creates handlers backed by service.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleKernel handles POST /v1/wlkernel/kernel.
//
// Description:
//
//	Computes the WL kernel of two instances of a dataset.
//
// Request Body:
//
//	KernelRequest
//
// Response:
//
//	200 OK: KernelResponse
//	400 Bad Request: Invalid request body
//	404 Not Found: Unknown dataset or instance
//	422 Unprocessable Entity: Graph construction failure
func (h *Handlers) HandleKernel(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleKernel")

	var req KernelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request body",
			Code:    CodeInvalidRequest,
			Details: err.Error(),
		})
		return
	}

	resp, err := h.service.Kernel(c.Request.Context(), &req)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("kernel computed",
		slog.String("dataset", req.Dataset),
		slog.Int("max_depth", resp.MaxDepth),
		slog.Int("iterations", resp.Iterations),
	)
	c.JSON(http.StatusOK, resp)
}

// HandleMatrix handles POST /v1/wlkernel/matrix.
//
// Description:
//
//	Computes the kernel matrix of the requested instances, or of the
//	dataset's default instances when none are given.
//
// Request Body:
//
//	MatrixRequest
//
// Response:
//
//	200 OK: MatrixResponse
//	400 Bad Request: Invalid request body or no instances
//	404 Not Found: Unknown dataset or instance
//	413 Request Entity Too Large: More instances than the server allows
//	422 Unprocessable Entity: Graph construction failure
func (h *Handlers) HandleMatrix(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleMatrix")

	var req MatrixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request body",
			Code:    CodeInvalidRequest,
			Details: err.Error(),
		})
		return
	}

	resp, err := h.service.Matrix(c.Request.Context(), &req)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("matrix computed",
		slog.String("dataset", req.Dataset),
		slog.Int("instances", len(resp.Instances)),
		slog.Int("iterations", resp.Iterations),
		slog.Bool("cached", resp.Cached),
	)
	c.JSON(http.StatusOK, resp)
}

// HandleDatasets handles GET /v1/wlkernel/datasets.
func (h *Handlers) HandleDatasets(c *gin.Context) {
	getOrCreateRequestID(c)
	c.JSON(http.StatusOK, DatasetsResponse{Datasets: h.service.Datasets()})
}

// HandleHealth handles GET /v1/wlkernel/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  h.service.Config().Version,
		Datasets: len(h.service.Datasets()),
	})
}

// writeError maps err to its status and code and writes an ErrorResponse.
// Internal errors are logged at Error level and their text is not returned.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
		c.JSON(status, ErrorResponse{Error: "internal error", Code: code})
		return
	}
	logger.Warn("request rejected", slog.Int("status", status), slog.String("error", err.Error()))
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// getOrCreateRequestID gets the request ID from header or creates a new one.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
