// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recommend

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all signals routes with the router group.
//
// Description:
//
//	Registers the /v1/signals/* endpoints. The group should already
//	carry any shared middleware (tracing, recovery).
//
// Endpoints:
//
//	POST /v1/signals/recommend - Generate a trading recommendation
//	GET  /v1/signals/tools - List registered analysis tools
//	GET  /v1/signals/health - Health check
//	GET  /v1/signals/ready - Readiness check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	signals := rg.Group("/signals")
	{
		signals.POST("/recommend", handlers.HandleRecommend)
		signals.GET("/tools", handlers.HandleTools)
		signals.GET("/health", handlers.HandleHealth)
		signals.GET("/ready", handlers.HandleReady)
	}
}
