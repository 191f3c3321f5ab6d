/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the
extension runtime, tracking HTTP requests, lifecycle transitions, hook
dispatches, permission denials, and store catalog fetches.

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Expose the scrape endpoint
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

Each collector owns its own Prometheus registry, so multiple instances
can coexist in one process (important for tests).
*/
package monitoring
