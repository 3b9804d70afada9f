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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
)

// RegisterRoutes registers the kernel endpoints with the router.
//
// Description:
//
//	Registers all /v1/wlkernel/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/wlkernel/kernel - Kernel value of two instances
//	POST /v1/wlkernel/matrix - Kernel matrix of an instance list
//	GET  /v1/wlkernel/datasets - Loaded datasets
//	GET  /v1/wlkernel/health - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	wl := rg.Group("/wlkernel")
	{
		wl.POST("/kernel", handlers.HandleKernel)
		wl.POST("/matrix", handlers.HandleMatrix)
		wl.GET("/datasets", handlers.HandleDatasets)
		wl.GET("/health", handlers.HandleHealth)
	}
}

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// ServiceName is reported by the otelgin middleware.
	ServiceName string

	// RateLimitRPS is the sustained request rate. 0 disables limiting.
	RateLimitRPS float64

	// RateLimitBurst is the token bucket size.
	RateLimitBurst int

	// Metrics serves GET /metrics when non-nil.
	Metrics http.Handler
}

// NewRouter builds the gin engine for the kernel API.
//
// The rate limiter guards /v1 only; /metrics is never limited.
func NewRouter(handlers *Handlers, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	router.Use(RequestMetrics())

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	v1 := router.Group("/v1")
	v1.Use(RateLimit(limiter))
	RegisterRoutes(v1, handlers)
	return router
}
