package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
)

func TestGrantDeclaredOnly(t *testing.T) {
	g := NewGate()
	g.Register("ext-1", []types.Permission{types.PermNetwork})

	require.NoError(t, g.Grant("ext-1", types.PermNetwork))

	err := g.Grant("ext-1", types.PermFilesystem)
	var perr *types.PermissionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.PermFilesystem, perr.Permission)
}

func TestGrantUnknownExtension(t *testing.T) {
	g := NewGate()

	err := g.Grant("ghost", types.PermNetwork)
	var nferr *types.NotFoundError
	assert.ErrorAs(t, err, &nferr)
}

func TestAuthorizeRequiresGrant(t *testing.T) {
	g := NewGate()
	g.Register("ext-1", []types.Permission{types.PermDatabase})

	// Declared but not granted
	err := g.Authorize("ext-1", types.PermDatabase)
	var perr *types.PermissionError
	require.ErrorAs(t, err, &perr)

	require.NoError(t, g.Grant("ext-1", types.PermDatabase))
	assert.NoError(t, g.Authorize("ext-1", types.PermDatabase))
}

func TestRevokeImmediate(t *testing.T) {
	g := NewGate()
	g.Register("ext-1", []types.Permission{types.PermNative})
	require.NoError(t, g.Grant("ext-1", types.PermNative))
	require.NoError(t, g.Authorize("ext-1", types.PermNative))

	require.NoError(t, g.Revoke("ext-1", types.PermNative))
	assert.Error(t, g.Authorize("ext-1", types.PermNative))
	assert.False(t, g.IsGranted("ext-1", types.PermNative))
}

func TestDrop(t *testing.T) {
	g := NewGate()
	g.Register("ext-1", []types.Permission{types.PermUI})
	require.NoError(t, g.Grant("ext-1", types.PermUI))

	g.Drop("ext-1")

	var nferr *types.NotFoundError
	assert.ErrorAs(t, g.Authorize("ext-1", types.PermUI), &nferr)
}

func TestReRegisterNarrowsGrants(t *testing.T) {
	g := NewGate()
	g.Register("ext-1", []types.Permission{types.PermFilesystem, types.PermNetwork})
	require.NoError(t, g.Grant("ext-1", types.PermNetwork))
	require.NoError(t, g.Grant("ext-1", types.PermFilesystem))

	// A new manifest that no longer declares network must not leave
	// the old grant authorizable
	g.Register("ext-1", []types.Permission{types.PermFilesystem})

	assert.NoError(t, g.Authorize("ext-1", types.PermFilesystem))
	var perr *types.PermissionError
	require.ErrorAs(t, g.Authorize("ext-1", types.PermNetwork), &perr)
	assert.False(t, g.IsGranted("ext-1", types.PermNetwork))
	assert.Equal(t, []types.Permission{types.PermFilesystem}, g.Granted("ext-1"))
}

func TestGrantedSorted(t *testing.T) {
	g := NewGate()
	g.Register("ext-1", types.AllPermissions())
	for _, p := range types.AllPermissions() {
		require.NoError(t, g.Grant("ext-1", p))
	}

	granted := g.Granted("ext-1")
	require.Len(t, granted, 5)
	for i := 1; i < len(granted); i++ {
		assert.Less(t, string(granted[i-1]), string(granted[i]))
	}
}
