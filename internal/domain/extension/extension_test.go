package extension

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
)

func TestNewVariants(t *testing.T) {
	cases := []types.ExtensionType{types.TypeTheme, types.TypeDataSource, types.TypeGameLibrary}
	for _, extType := range cases {
		inst := New("ext-1", types.Manifest{Name: "x", Type: extType, EntryPoint: "main"})
		assert.Equal(t, extType, inst.Type())
		assert.Equal(t, "ext-1", inst.ID())
	}
}

func TestThemeApplyHook(t *testing.T) {
	inst := New("ext-theme", types.Manifest{
		Name: "nebula", Type: types.TypeTheme, EntryPoint: "nebula.css",
	})

	result, err := inst.HandleHook(context.Background(), "on_theme_apply", map[string]interface{}{"mode": "dark"})
	require.NoError(t, err)
	payload := result.(map[string]interface{})
	assert.Equal(t, "nebula.css", payload["stylesheet"])
	assert.Equal(t, "ext-theme", payload["extension_id"])

	// Unrelated hooks are acknowledged without extras
	result, err = inst.HandleHook(context.Background(), "on_startup", nil)
	require.NoError(t, err)
	assert.NotContains(t, result.(map[string]interface{}), "stylesheet")
}

func TestGameLibraryScanHook(t *testing.T) {
	inst := New("ext-lib", types.Manifest{
		Name: "steam", Type: types.TypeGameLibrary, EntryPoint: "scan.wasm",
	})

	result, err := inst.HandleHook(context.Background(), "on_game_scan", nil)
	require.NoError(t, err)
	assert.Contains(t, result.(map[string]interface{}), "games")
}

func TestCallAPI(t *testing.T) {
	inst := New("ext-ds", types.Manifest{
		Name: "meta", Type: types.TypeDataSource, EntryPoint: "main.wasm",
		APIs: &types.APISurface{Provided: []string{"metadata.lookup"}},
	})

	result, err := inst.CallAPI(context.Background(), "metadata.lookup", map[string]interface{}{"title": "Hades"})
	require.NoError(t, err)
	envelope := result.(map[string]interface{})
	assert.Equal(t, "metadata.lookup", envelope["api"])
	assert.Equal(t, "main.wasm", envelope["entry_point"])

	_, err = inst.CallAPI(context.Background(), "metadata.delete", nil)
	var nferr *types.NotFoundError
	assert.ErrorAs(t, err, &nferr)
}

func TestCallAPIWithoutSurface(t *testing.T) {
	inst := New("ext-theme", types.Manifest{Name: "x", Type: types.TypeTheme, EntryPoint: "x.css"})
	_, err := inst.CallAPI(context.Background(), "anything", nil)
	assert.Error(t, err)
}
