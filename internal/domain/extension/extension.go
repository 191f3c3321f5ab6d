// Package extension models the host-side handle to installed
// extensions. The three built-in kinds (theme, data source, game
// library) form a closed variant set; extension-authored logic is
// reached only through the narrow Instance interface.
package extension

import (
	"context"

	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
)

// Instance is the opaque capability-invocation surface for one loaded
// extension. Payloads are JSON-shaped in and out; the core never needs
// to know extension internals.
type Instance interface {
	ID() string
	Type() types.ExtensionType
	Manifest() types.Manifest
	HandleHook(ctx context.Context, hook string, params map[string]interface{}) (interface{}, error)
	CallAPI(ctx context.Context, name string, params map[string]interface{}) (interface{}, error)
}

// New builds the variant matching the manifest's type. The manifest
// must already be validated, so an unknown type cannot reach here.
func New(id string, m types.Manifest) Instance {
	base := base{id: id, manifest: m}
	switch m.Type {
	case types.TypeTheme:
		return &theme{base: base}
	case types.TypeDataSource:
		return &dataSource{base: base}
	default:
		return &gameLibrary{base: base}
	}
}

type base struct {
	id       string
	manifest types.Manifest
}

func (b *base) ID() string               { return b.id }
func (b *base) Manifest() types.Manifest { return b.manifest }

func (b *base) CallAPI(ctx context.Context, name string, params map[string]interface{}) (interface{}, error) {
	if b.manifest.APIs == nil || !contains(b.manifest.APIs.Provided, name) {
		return nil, &types.NotFoundError{Kind: "api", ID: name}
	}
	// The entry point is the bridge into extension code; the host
	// acknowledges the call with the routing envelope.
	return map[string]interface{}{
		"extension_id": b.id,
		"api":          name,
		"entry_point":  b.manifest.EntryPoint,
		"params":       params,
	}, nil
}

func (b *base) ack(hook string, extra map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"extension_id": b.id,
		"hook":         hook,
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// theme contributes palettes and styling; its only integration point
// beyond lifecycle hooks is on_theme_apply.
type theme struct {
	base
}

func (t *theme) Type() types.ExtensionType { return types.TypeTheme }

func (t *theme) HandleHook(ctx context.Context, hook string, params map[string]interface{}) (interface{}, error) {
	if hook == "on_theme_apply" {
		return t.ack(hook, map[string]interface{}{
			"stylesheet": t.manifest.EntryPoint,
		}), nil
	}
	return t.ack(hook, nil), nil
}

// dataSource feeds metadata (covers, descriptions, ratings) into the
// host catalog on demand.
type dataSource struct {
	base
}

func (d *dataSource) Type() types.ExtensionType { return types.TypeDataSource }

func (d *dataSource) HandleHook(ctx context.Context, hook string, params map[string]interface{}) (interface{}, error) {
	return d.ack(hook, nil), nil
}

// gameLibrary imports titles from an external launcher; on_game_scan
// is its scan entry point.
type gameLibrary struct {
	base
}

func (g *gameLibrary) Type() types.ExtensionType { return types.TypeGameLibrary }

func (g *gameLibrary) HandleHook(ctx context.Context, hook string, params map[string]interface{}) (interface{}, error) {
	if hook == "on_game_scan" {
		return g.ack(hook, map[string]interface{}{
			"games": []interface{}{},
		}), nil
	}
	return g.ack(hook, nil), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
