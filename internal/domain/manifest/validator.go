// Package manifest parses and validates extension manifests.
//
// Manifests are untrusted install-time input; Validate is a pure
// parse+check with no side effects. An unrecognized permission or type
// fails the whole manifest rather than being silently dropped.
package manifest

import (
	"github.com/bytedance/sonic"

	"github.com/arcadia-launcher/arcadia/backend/internal/domain/version"
	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
)

// Validate parses raw JSON and checks it against the manifest contract.
// Returns the parsed manifest on success, a *types.ManifestError otherwise.
func Validate(raw []byte) (*types.Manifest, error) {
	var m types.Manifest
	if err := sonic.Unmarshal(raw, &m); err != nil {
		return nil, &types.ManifestError{
			Kind:  types.ManifestMalformed,
			Cause: err.Error(),
		}
	}
	if err := Check(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Check validates an already-parsed manifest
func Check(m *types.Manifest) error {
	if m.Name == "" {
		return missing("name")
	}
	if m.Version == "" {
		return missing("version")
	}
	if m.EntryPoint == "" {
		return missing("entry_point")
	}
	if m.Type == "" {
		return missing("type")
	}

	if !m.Type.Valid() {
		return &types.ManifestError{
			Kind:  types.ManifestUnsupportedType,
			Field: "type",
			Cause: string(m.Type),
		}
	}

	if !version.Valid(m.Version) {
		return &types.ManifestError{
			Kind:  types.ManifestMalformed,
			Field: "version",
			Cause: "must be dotted non-negative integers: " + m.Version,
		}
	}

	for _, p := range m.Permissions {
		if !p.Valid() {
			return &types.ManifestError{
				Kind:  types.ManifestUnknownPermission,
				Field: "permissions",
				Cause: string(p),
			}
		}
	}

	for name, rng := range m.Dependencies {
		if name == "" {
			return &types.ManifestError{
				Kind:  types.ManifestMalformed,
				Field: "dependencies",
				Cause: "empty dependency name",
			}
		}
		if !version.ValidRange(rng) {
			return &types.ManifestError{
				Kind:  types.ManifestMalformed,
				Field: "dependencies." + name,
				Cause: "invalid version range: " + rng,
			}
		}
	}

	for _, h := range m.Hooks {
		if h == "" {
			return &types.ManifestError{
				Kind:  types.ManifestMalformed,
				Field: "hooks",
				Cause: "empty hook name",
			}
		}
	}

	return nil
}

func missing(field string) error {
	return &types.ManifestError{
		Kind:  types.ManifestMalformed,
		Field: field,
		Cause: "required field missing",
	}
}
