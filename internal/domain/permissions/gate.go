// Package permissions tracks granted permissions per extension and
// authorizes capability-requiring calls.
//
// An extension may only be granted permissions it declared in its
// manifest. Revocation takes effect for the next Authorize call;
// in-flight calls are not preempted.
package permissions

import (
	"sort"
	"sync"

	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
)

type permSet map[types.Permission]struct{}

// Gate is the in-memory permission authority. The registry owns
// persistence of grants and replays them into the gate on load.
type Gate struct {
	mu       sync.RWMutex
	declared map[string]permSet
	granted  map[string]permSet
}

// NewGate creates an empty permission gate
func NewGate() *Gate {
	return &Gate{
		declared: make(map[string]permSet),
		granted:  make(map[string]permSet),
	}
}

// Register records an extension's declared permission set.
// Called by the registry on install, on load, and on update.
// Grants outside the new declared set are dropped, keeping grants
// a subset of declarations across manifest changes.
func (g *Gate) Register(extensionID string, declared []types.Permission) {
	g.mu.Lock()
	defer g.mu.Unlock()

	set := make(permSet, len(declared))
	for _, p := range declared {
		set[p] = struct{}{}
	}
	g.declared[extensionID] = set

	granted, ok := g.granted[extensionID]
	if !ok {
		g.granted[extensionID] = make(permSet)
		return
	}
	for p := range granted {
		if _, ok := set[p]; !ok {
			delete(granted, p)
		}
	}
}

// Drop forgets an extension entirely. Called on uninstall.
func (g *Gate) Drop(extensionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.declared, extensionID)
	delete(g.granted, extensionID)
}

// Grant records a grant. Fails for unknown extensions and for
// permissions the manifest did not declare.
func (g *Gate) Grant(extensionID string, p types.Permission) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	declared, ok := g.declared[extensionID]
	if !ok {
		return &types.NotFoundError{Kind: "extension", ID: extensionID}
	}
	if _, ok := declared[p]; !ok {
		return &types.PermissionError{
			ExtensionID: extensionID,
			Permission:  p,
			Reason:      "not declared in manifest",
		}
	}
	g.granted[extensionID][p] = struct{}{}
	return nil
}

// Revoke removes a grant. Effective immediately for subsequent
// Authorize calls; a no-op if the permission was not granted.
func (g *Gate) Revoke(extensionID string, p types.Permission) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.declared[extensionID]; !ok {
		return &types.NotFoundError{Kind: "extension", ID: extensionID}
	}
	delete(g.granted[extensionID], p)
	return nil
}

// IsGranted reports whether the permission is currently granted
func (g *Gate) IsGranted(extensionID string, p types.Permission) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.granted[extensionID][p]
	return ok
}

// Authorize gates a capability-sensitive call. Denial returns an error
// before any part of the privileged action runs.
func (g *Gate) Authorize(extensionID string, p types.Permission) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.declared[extensionID]; !ok {
		return &types.NotFoundError{Kind: "extension", ID: extensionID}
	}
	if _, ok := g.granted[extensionID][p]; !ok {
		return &types.PermissionError{
			ExtensionID: extensionID,
			Permission:  p,
			Reason:      "not granted",
		}
	}
	return nil
}

// Granted returns the sorted grant set for an extension
func (g *Gate) Granted(extensionID string) []types.Permission {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set := g.granted[extensionID]
	out := make([]types.Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
