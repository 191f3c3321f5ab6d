package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcadia-launcher/arcadia/backend/internal/domain/registry"
	"github.com/arcadia-launcher/arcadia/backend/internal/domain/store"
	"github.com/arcadia-launcher/arcadia/backend/internal/infrastructure/logging"
	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
	"github.com/arcadia-launcher/arcadia/backend/internal/storage"
)

// stubCatalog serves a fixed listing for every source
type stubCatalog struct {
	entries []types.StoreExtension
}

func (s *stubCatalog) List(_ context.Context, source types.StoreSource) ([]types.StoreExtension, error) {
	out := make([]types.StoreExtension, len(s.entries))
	copy(out, s.entries)
	for i := range out {
		out[i].SourceID = source.ID
	}
	return out, nil
}

func (s *stubCatalog) Details(_ context.Context, source types.StoreSource, extID string) (*types.StoreExtensionDetails, error) {
	for _, e := range s.entries {
		if e.ID == extID {
			copied := e
			copied.SourceID = source.ID
			return &types.StoreExtensionDetails{StoreExtension: copied}, nil
		}
	}
	return nil, &types.NotFoundError{Kind: "store_extension", ID: extID}
}

func (s *stubCatalog) Fetch(_ context.Context, sourceID, url string) ([]byte, error) {
	return nil, &types.NetworkError{SourceID: sourceID, URL: url}
}

type fixture struct {
	router   *gin.Engine
	registry *registry.Manager
	sources  *store.Sources
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := &logging.Logger{Logger: zap.NewNop()}
	backing := storage.NewMemory()
	reg := registry.NewManager(backing, logger)
	sources := store.NewSources(backing, logger)
	agg := store.NewAggregator(sources, &stubCatalog{}, reg, logger, store.Options{
		FetchTimeout: time.Second,
	})

	handlers := NewHandlers(reg, agg, sources, logger)

	router := gin.New()
	router.GET("/health", handlers.Health)
	router.GET("/extensions", handlers.ListExtensions)
	router.POST("/extensions", handlers.InstallExtension)
	router.GET("/extensions/menu", handlers.Menu)
	router.GET("/extensions/:id", handlers.GetExtension)
	router.PUT("/extensions/:id", handlers.UpdateExtension)
	router.DELETE("/extensions/:id", handlers.UninstallExtension)
	router.POST("/extensions/:id/enable", handlers.EnableExtension)
	router.POST("/extensions/:id/disable", handlers.DisableExtension)
	router.POST("/extensions/:id/api/:name", handlers.CallAPI)
	router.GET("/extensions/:id/permissions", handlers.ListPermissions)
	router.POST("/extensions/:id/permissions/:perm/grant", handlers.GrantPermission)
	router.POST("/extensions/:id/permissions/:perm/revoke", handlers.RevokePermission)
	router.GET("/extensions/:id/settings", handlers.ListSettings)
	router.GET("/extensions/:id/settings/:key", handlers.GetSetting)
	router.PUT("/extensions/:id/settings/:key", handlers.PutSetting)
	router.DELETE("/extensions/:id/settings/:key", handlers.DeleteSetting)
	router.POST("/hooks/:name", handlers.InvokeHook)
	router.GET("/store/extensions", handlers.QueryStore)
	router.GET("/store/sources", handlers.ListSources)
	router.POST("/store/sources", handlers.AddSource)
	router.DELETE("/store/sources/:id", handlers.RemoveSource)
	router.POST("/store/sources/:id/enable", handlers.EnableSource)
	router.POST("/store/sources/:id/disable", handlers.DisableSource)
	router.PUT("/store/sources/:id/priority", handlers.SetSourcePriority)

	return &fixture{router: router, registry: reg, sources: sources}
}

func (f *fixture) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func manifestBody(t *testing.T, name string) []byte {
	t.Helper()
	raw, err := sonic.Marshal(types.Manifest{
		Name:        name,
		Version:     "1.0.0",
		Author:      "arcadia",
		Type:        types.TypeTheme,
		EntryPoint:  "theme.css",
		Permissions: []types.Permission{types.PermUI},
		Hooks:       []string{"on_theme_apply"},
	})
	require.NoError(t, err)
	return raw
}

func installOne(t *testing.T, f *fixture, name string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/extensions", manifestBody(t, name))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var info types.ExtensionInfo
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &info))
	return info.ID
}

func TestHealthRoute(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestInstallAndLifecycleRoutes(t *testing.T) {
	f := newFixture(t)
	id := installOne(t, f, "nebula")

	w := f.do(t, http.MethodGet, "/extensions/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/extensions/"+id+"/enable", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"enabled":true`)

	w = f.do(t, http.MethodPost, "/extensions/"+id+"/disable", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/extensions/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/extensions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInstallErrorMapping(t *testing.T) {
	f := newFixture(t)
	installOne(t, f, "nebula")

	// Duplicate identity maps to 409
	w := f.do(t, http.MethodPost, "/extensions", manifestBody(t, "nebula"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already_installed")

	// Malformed manifest maps to 400
	w = f.do(t, http.MethodPost, "/extensions", []byte(`{"name":"x"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "manifest")
}

func TestPermissionRoutes(t *testing.T) {
	f := newFixture(t)
	id := installOne(t, f, "nebula")

	w := f.do(t, http.MethodPost, "/extensions/"+id+"/permissions/ui/grant", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/extensions/"+id+"/permissions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ui")

	// Undeclared permission maps to 403
	w = f.do(t, http.MethodPost, "/extensions/"+id+"/permissions/native/grant", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/extensions/"+id+"/permissions/ui/revoke", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSettingsRoutes(t *testing.T) {
	f := newFixture(t)
	id := installOne(t, f, "nebula")

	w := f.do(t, http.MethodPut, "/extensions/"+id+"/settings/accent", []byte(`{"value":"crimson"}`))
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/extensions/"+id+"/settings/accent", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "crimson")

	w = f.do(t, http.MethodGet, "/extensions/"+id+"/settings", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/extensions/"+id+"/settings/accent", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/extensions/"+id+"/settings/accent", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMalformedBodyMapping(t *testing.T) {
	f := newFixture(t)
	id := installOne(t, f, "nebula")

	// Truncated JSON bodies surface the decode failure, not a 500
	w := f.do(t, http.MethodPut, "/extensions/"+id+"/settings/accent", []byte(`{"value":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"manifest"`)

	w = f.do(t, http.MethodPost, "/extensions/"+id+"/api/lookup", []byte(`{broken`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"manifest"`)

	w = f.do(t, http.MethodPost, "/hooks/on_theme_apply", []byte(`{broken`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"manifest"`)
}

func TestHookRoute(t *testing.T) {
	f := newFixture(t)
	id := installOne(t, f, "nebula")
	f.do(t, http.MethodPost, "/extensions/"+id+"/enable", nil)

	w := f.do(t, http.MethodPost, "/hooks/on_theme_apply", []byte(`{"theme":"dark"}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)
}

func TestStoreQueryRoute(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/store/sources",
		[]byte(`{"name":"Official","type":"official","base_url":"https://official.example.com","priority":0}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/store/extensions?sort=name&page=0&page_size=10", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)

	// Unknown sort option maps to 404
	w = f.do(t, http.MethodGet, "/store/extensions?sort=chaotic", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSourceRoutes(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/store/sources",
		[]byte(`{"name":"Official","type":"official","base_url":"https://official.example.com","priority":5}`))
	require.Equal(t, http.StatusCreated, w.Code)

	var src types.StoreSource
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &src))

	w = f.do(t, http.MethodPut, "/store/sources/"+src.ID+"/priority", []byte(`{"priority":1}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"priority":1`)

	w = f.do(t, http.MethodPost, "/store/sources/"+src.ID+"/disable", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/store/sources/"+src.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/store/sources/"+src.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Bad body maps to 400
	w = f.do(t, http.MethodPost, "/store/sources", []byte(`{"name":""}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallAPIRoute(t *testing.T) {
	f := newFixture(t)

	raw, err := sonic.Marshal(types.Manifest{
		Name:       "provider",
		Version:    "1.0.0",
		Author:     "arcadia",
		Type:       types.TypeDataSource,
		EntryPoint: "main.wasm",
		APIs:       &types.APISurface{Provided: []string{"metadata.lookup"}},
	})
	require.NoError(t, err)
	w := f.do(t, http.MethodPost, "/extensions", raw)
	require.Equal(t, http.StatusCreated, w.Code)

	var info types.ExtensionInfo
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &info))
	f.do(t, http.MethodPost, "/extensions/"+info.ID+"/enable", nil)

	w = f.do(t, http.MethodPost, "/extensions/"+info.ID+"/api/metadata.lookup", []byte(`{"title":"Hades"}`))
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/extensions/"+info.ID+"/api/metadata.burn", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
