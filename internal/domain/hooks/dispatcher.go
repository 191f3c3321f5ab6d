// Package hooks fans application and lifecycle events out to extension
// handlers and gathers their per-handler outcomes.
package hooks

import (
	"context"
	"sync"
)

// Handler executes extension-supplied logic for one hook invocation.
// Payloads are JSON-shaped; the core never sees extension internals.
type Handler interface {
	Handle(ctx context.Context, hook string, params map[string]interface{}) (interface{}, error)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, hook string, params map[string]interface{}) (interface{}, error)

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, hook string, params map[string]interface{}) (interface{}, error) {
	return f(ctx, hook, params)
}

// Outcome is one handler's result for a single dispatch
type Outcome struct {
	ExtensionID string      `json:"extension_id"`
	Result      interface{} `json:"result,omitempty"`
	Err         error       `json:"-"`
	Error       string      `json:"error,omitempty"`
}

// EnabledFunc reports whether an extension's handlers should run.
// Checked at dispatch time, so disabling an extension silences it
// immediately without unregistering.
type EnabledFunc func(extensionID string) bool

type registration struct {
	extensionID string
	handler     Handler
}

// Dispatcher routes named hooks to registered handlers in registration order
type Dispatcher struct {
	mu      sync.RWMutex
	hooks   map[string][]registration
	enabled EnabledFunc
}

// NewDispatcher creates a dispatcher. A nil enabled predicate runs
// every registered handler.
func NewDispatcher(enabled EnabledFunc) *Dispatcher {
	if enabled == nil {
		enabled = func(string) bool { return true }
	}
	return &Dispatcher{
		hooks:   make(map[string][]registration),
		enabled: enabled,
	}
}

// Register subscribes an extension's handler to a hook.
// Dispatch order equals registration order and is stable across calls.
func (d *Dispatcher) Register(hook, extensionID string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.hooks[hook] = append(d.hooks[hook], registration{extensionID: extensionID, handler: h})
}

// UnregisterExtension removes every registration for an extension
func (d *Dispatcher) UnregisterExtension(extensionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for hook, regs := range d.hooks {
		kept := regs[:0]
		for _, r := range regs {
			if r.extensionID != extensionID {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(d.hooks, hook)
		} else {
			d.hooks[hook] = kept
		}
	}
}

// Registered returns the extension ids subscribed to a hook, in order
func (d *Dispatcher) Registered(hook string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.hooks[hook]))
	for _, r := range d.hooks[hook] {
		ids = append(ids, r.extensionID)
	}
	return ids
}

// Invoke dispatches a hook to all registered handlers of enabled
// extensions. Handlers run concurrently but outcomes are returned in
// registration order; a handler failure is captured in its own outcome
// and never prevents other handlers from running. Invoke returns only
// after every handler has finished.
func (d *Dispatcher) Invoke(ctx context.Context, hook string, params map[string]interface{}) []Outcome {
	d.mu.RLock()
	active := make([]registration, 0, len(d.hooks[hook]))
	for _, r := range d.hooks[hook] {
		if d.enabled(r.extensionID) {
			active = append(active, r)
		}
	}
	d.mu.RUnlock()

	outcomes := make([]Outcome, len(active))
	var wg sync.WaitGroup
	for i, reg := range active {
		wg.Add(1)
		go func(i int, reg registration) {
			defer wg.Done()

			result, err := reg.handler.Handle(ctx, hook, cloneParams(params))
			outcome := Outcome{ExtensionID: reg.extensionID, Result: result, Err: err}
			if err != nil {
				outcome.Error = err.Error()
			}
			outcomes[i] = outcome
		}(i, reg)
	}
	wg.Wait()

	return outcomes
}

// cloneParams shallow-copies the payload so one handler cannot mutate
// another's view of it
func cloneParams(params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
