package manifest

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
)

func validManifest() types.Manifest {
	return types.Manifest{
		Name:        "steam-library",
		Version:     "1.4.0",
		Author:      "arcadia",
		Description: "Imports the local Steam library",
		Type:        types.TypeGameLibrary,
		EntryPoint:  "main.wasm",
		Permissions: []types.Permission{types.PermFilesystem, types.PermNetwork},
		Dependencies: map[string]string{
			"core-scanner": ">=1.2",
		},
		Hooks: []string{"on_startup", "on_game_scan"},
		APIs: &types.APISurface{
			Provided: []string{"library.scan"},
		},
	}
}

func TestValidateRoundTrip(t *testing.T) {
	m := validManifest()
	raw, err := sonic.Marshal(m)
	require.NoError(t, err)

	got, err := Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, m, *got)
}

func TestValidateMalformedJSON(t *testing.T) {
	_, err := Validate([]byte(`{"name": `))

	var merr *types.ManifestError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, types.ManifestMalformed, merr.Kind)
}

func TestValidateMissingFields(t *testing.T) {
	for _, field := range []string{"name", "version", "entry_point", "type"} {
		m := validManifest()
		switch field {
		case "name":
			m.Name = ""
		case "version":
			m.Version = ""
		case "entry_point":
			m.EntryPoint = ""
		case "type":
			m.Type = ""
		}
		raw, err := sonic.Marshal(m)
		require.NoError(t, err)

		_, err = Validate(raw)
		var merr *types.ManifestError
		require.ErrorAs(t, err, &merr, "field %s", field)
		assert.Equal(t, types.ManifestMalformed, merr.Kind)
		assert.Equal(t, field, merr.Field)
	}
}

func TestValidateUnsupportedType(t *testing.T) {
	m := validManifest()
	m.Type = "widget"
	raw, _ := sonic.Marshal(m)

	_, err := Validate(raw)
	var merr *types.ManifestError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, types.ManifestUnsupportedType, merr.Kind)
	assert.Equal(t, "widget", merr.Cause)
}

func TestValidateUnknownPermission(t *testing.T) {
	m := validManifest()
	m.Permissions = append(m.Permissions, "telepathy")
	raw, _ := sonic.Marshal(m)

	_, err := Validate(raw)
	var merr *types.ManifestError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, types.ManifestUnknownPermission, merr.Kind)
	assert.Equal(t, "telepathy", merr.Cause)
}

func TestValidateBadVersion(t *testing.T) {
	m := validManifest()
	m.Version = "1.2-beta"
	raw, _ := sonic.Marshal(m)

	_, err := Validate(raw)
	var merr *types.ManifestError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, types.ManifestMalformed, merr.Kind)
	assert.Equal(t, "version", merr.Field)
}

func TestValidateBadDependencyRange(t *testing.T) {
	m := validManifest()
	m.Dependencies = map[string]string{"other": ">=nope"}
	raw, _ := sonic.Marshal(m)

	_, err := Validate(raw)
	var merr *types.ManifestError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "dependencies.other", merr.Field)
}
