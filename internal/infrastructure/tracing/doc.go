/*
Package tracing provides request tracing for debugging the extension
runtime's command surface.

# Overview

This package implements lightweight tracing to correlate requests from
the desktop shell with registry and store operations. It follows
OpenTelemetry concepts but with a minimal implementation tailored to a
single-service deployment.

# Usage

	// Create tracer
	tracer := tracing.New("backend", logger)

	// HTTP middleware
	router.Use(tracing.HTTPMiddleware(tracer))

	// Manual span creation
	span, ctx := tracer.StartSpan(ctx, "operation")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

	span.SetTag("key", "value")

# Trace Format

Traces use standard HTTP headers for propagation:
- X-Trace-ID: Unique identifier for entire request flow
- X-Span-ID: Identifier for current operation

# Performance

Spans are buffered (1000 entries) and processed asynchronously; a full
buffer drops spans rather than blocking request handling.
*/
package tracing
