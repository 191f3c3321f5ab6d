package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcadia-launcher/arcadia/backend/internal/domain/registry"
	"github.com/arcadia-launcher/arcadia/backend/internal/infrastructure/logging"
	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
	"github.com/arcadia-launcher/arcadia/backend/internal/storage"
)

// fakeCatalog serves canned per-source catalogs without a network
type fakeCatalog struct {
	entries map[string][]types.StoreExtension       // source id -> listing
	details map[string]*types.StoreExtensionDetails // store extension id -> record
	files   map[string][]byte                       // url -> payload
	fail    map[string]error                        // source id -> listing error

	mu     sync.Mutex
	listed int
}

func (f *fakeCatalog) lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listed
}

func (f *fakeCatalog) List(_ context.Context, source types.StoreSource) ([]types.StoreExtension, error) {
	f.mu.Lock()
	f.listed++
	f.mu.Unlock()
	if err := f.fail[source.ID]; err != nil {
		return nil, err
	}
	out := make([]types.StoreExtension, len(f.entries[source.ID]))
	copy(out, f.entries[source.ID])
	for i := range out {
		out[i].SourceID = source.ID
	}
	return out, nil
}

func (f *fakeCatalog) Details(_ context.Context, source types.StoreSource, extID string) (*types.StoreExtensionDetails, error) {
	d, ok := f.details[extID]
	if !ok {
		return nil, &types.NotFoundError{Kind: "store_extension", ID: extID}
	}
	copied := *d
	copied.SourceID = source.ID
	return &copied, nil
}

func (f *fakeCatalog) Fetch(_ context.Context, sourceID, url string) ([]byte, error) {
	data, ok := f.files[url]
	if !ok {
		return nil, &types.NetworkError{SourceID: sourceID, URL: url, Err: errors.New("no such file")}
	}
	return data, nil
}

type aggFixture struct {
	sources  *Sources
	catalog  *fakeCatalog
	registry *registry.Manager
	agg      *Aggregator
}

func newAggFixture(t *testing.T) *aggFixture {
	t.Helper()
	logger := &logging.Logger{Logger: zap.NewNop()}
	backing := storage.NewMemory()

	f := &aggFixture{
		sources: NewSources(backing, logger),
		catalog: &fakeCatalog{
			entries: make(map[string][]types.StoreExtension),
			details: make(map[string]*types.StoreExtensionDetails),
			files:   make(map[string][]byte),
			fail:    make(map[string]error),
		},
		registry: registry.NewManager(backing, logger),
	}
	f.agg = NewAggregator(f.sources, f.catalog, f.registry, logger, Options{
		FetchTimeout: time.Second,
		MaxPageSize:  50,
		CacheTTL:     time.Minute,
	})
	return f
}

func (f *aggFixture) addSource(t *testing.T, name string, priority int) types.StoreSource {
	t.Helper()
	src, err := f.sources.Add(context.Background(), name, types.SourceCommunity,
		"https://"+name+".example.com", priority)
	require.NoError(t, err)
	return src
}

func entry(id, name string, downloads int64) types.StoreExtension {
	return types.StoreExtension{
		ID:        id,
		Name:      name,
		Type:      types.TypeTheme,
		Version:   "1.0.0",
		Downloads: downloads,
	}
}

func TestQueryMergeDedupe(t *testing.T) {
	f := newAggFixture(t)
	official := f.addSource(t, "official", 0)
	community := f.addSource(t, "community", 10)

	f.catalog.entries[official.ID] = []types.StoreExtension{entry("dup", "Dup Official", 5)}
	f.catalog.entries[community.ID] = []types.StoreExtension{
		entry("dup", "Dup Community", 9),
		entry("only", "Community Only", 1),
	}

	page, err := f.agg.Query(context.Background(), types.StoreFilters{}, types.SortName, 0, 50)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	byID := make(map[string]types.StoreExtension)
	for _, item := range page.Items {
		byID[item.ID] = item
	}
	// Overlapping id is kept from the lower-priority-number source
	assert.Equal(t, official.ID, byID["dup"].SourceID)
	assert.Equal(t, "Dup Official", byID["dup"].Name)
	assert.Equal(t, community.ID, byID["only"].SourceID)
}

func TestQueryFailingSourceReported(t *testing.T) {
	f := newAggFixture(t)
	good := f.addSource(t, "good", 0)
	bad := f.addSource(t, "bad", 10)

	f.catalog.entries[good.ID] = []types.StoreExtension{entry("a", "A", 0)}
	f.catalog.fail[bad.ID] = errors.New("connection refused")

	page, err := f.agg.Query(context.Background(), types.StoreFilters{}, types.SortName, 0, 50)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	require.Contains(t, page.SourceErrors, bad.ID)
	assert.Contains(t, page.SourceErrors[bad.ID], "connection refused")
}

func TestQuerySkipsDisabledSources(t *testing.T) {
	f := newAggFixture(t)
	src := f.addSource(t, "official", 0)
	f.catalog.entries[src.ID] = []types.StoreExtension{entry("a", "A", 0)}

	require.NoError(t, f.sources.SetEnabled(context.Background(), src.ID, false))
	page, err := f.agg.Query(context.Background(), types.StoreFilters{}, types.SortName, 0, 50)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Zero(t, f.catalog.lists())
}

func TestQueryFilters(t *testing.T) {
	f := newAggFixture(t)
	src := f.addSource(t, "official", 0)

	dark := entry("dark", "Dark Theme", 0)
	dark.Tags = []string{"dark", "minimal"}
	scanner := entry("scan", "Steam Scanner", 0)
	scanner.Type = types.TypeGameLibrary
	scanner.Description = "Scans your Steam library"
	f.catalog.entries[src.ID] = []types.StoreExtension{dark, scanner}

	ctx := context.Background()

	themeType := types.TypeTheme
	page, err := f.agg.Query(ctx, types.StoreFilters{Type: &themeType}, types.SortName, 0, 50)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "dark", page.Items[0].ID)

	page, err = f.agg.Query(ctx, types.StoreFilters{Tags: []string{"MINIMAL", "other"}}, types.SortName, 0, 50)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "dark", page.Items[0].ID)

	page, err = f.agg.Query(ctx, types.StoreFilters{Search: "steam"}, types.SortName, 0, 50)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "scan", page.Items[0].ID)
}

func TestQuerySortOptions(t *testing.T) {
	f := newAggFixture(t)
	src := f.addSource(t, "official", 0)

	old := entry("old", "Alpha", 100)
	old.Rating = 3.5
	old.PublishedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := entry("new", "Beta", 10)
	fresh.Rating = 4.8
	fresh.PublishedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.catalog.entries[src.ID] = []types.StoreExtension{fresh, old}

	ctx := context.Background()
	cases := []struct {
		sort  types.SortOption
		first string
	}{
		{types.SortName, "old"},      // Alpha before Beta
		{types.SortDownloads, "old"}, // 100 > 10
		{types.SortRating, "new"},    // 4.8 > 3.5
		{types.SortNewest, "new"},
	}
	for _, tc := range cases {
		page, err := f.agg.Query(ctx, types.StoreFilters{}, tc.sort, 0, 50)
		require.NoError(t, err, "sort %s", tc.sort)
		require.Len(t, page.Items, 2)
		assert.Equal(t, tc.first, page.Items[0].ID, "sort %s", tc.sort)
	}

	_, err := f.agg.Query(ctx, types.StoreFilters{}, types.SortOption("chaotic"), 0, 50)
	assert.Error(t, err)
}

func TestQueryPaginationStable(t *testing.T) {
	f := newAggFixture(t)
	src := f.addSource(t, "official", 0)

	var all []types.StoreExtension
	for _, id := range []string{"e", "c", "a", "d", "b"} {
		all = append(all, entry(id, "Ext "+id, 0))
	}
	f.catalog.entries[src.ID] = all

	ctx := context.Background()
	seen := make(map[string]bool)
	for pageNum := 0; pageNum < 3; pageNum++ {
		page, err := f.agg.Query(ctx, types.StoreFilters{}, types.SortName, pageNum, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		for _, item := range page.Items {
			assert.False(t, seen[item.ID], "id %s repeated across pages", item.ID)
			seen[item.ID] = true
		}
	}
	assert.Len(t, seen, 5)

	// Page past the end is empty, not an error
	page, err := f.agg.Query(ctx, types.StoreFilters{}, types.SortName, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestQueryMarksInstalled(t *testing.T) {
	f := newAggFixture(t)
	src := f.addSource(t, "official", 0)
	f.catalog.entries[src.ID] = []types.StoreExtension{
		{ID: "se-1", Name: "Nebula Theme", Author: "Acme", Type: types.TypeTheme, Version: "1.0.0"},
		{ID: "se-2", Name: "plain", Type: types.TypeTheme, Version: "1.0.0"},
	}

	// Installed under different casing; identity matching ignores case
	man, err := sonic.Marshal(types.Manifest{
		Name: "nebula theme", Version: "1.0.0", Author: "acme",
		Type: types.TypeTheme, EntryPoint: "nebula.css",
	})
	require.NoError(t, err)
	_, err = f.registry.Install(context.Background(), man, src.ID)
	require.NoError(t, err)

	page, err := f.agg.Query(context.Background(), types.StoreFilters{}, types.SortName, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	byID := make(map[string]types.StoreExtension, len(page.Items))
	for _, item := range page.Items {
		byID[item.ID] = item
	}
	assert.True(t, byID["se-1"].Installed)
	assert.False(t, byID["se-2"].Installed)
}

func TestGetDetailsCached(t *testing.T) {
	f := newAggFixture(t)
	src := f.addSource(t, "official", 0)
	f.catalog.entries[src.ID] = []types.StoreExtension{entry("ext", "Ext", 0)}
	f.catalog.details["ext"] = &types.StoreExtensionDetails{
		StoreExtension: entry("ext", "Ext", 0),
		ManifestURL:    "https://official.example.com/ext/manifest.json",
		PackageURL:     "https://official.example.com/ext/pkg.zip",
	}

	ctx := context.Background()
	first, err := f.agg.GetDetails(ctx, "ext")
	require.NoError(t, err)
	listsAfterFirst := f.catalog.lists()

	second, err := f.agg.GetDetails(ctx, "ext")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, listsAfterFirst, f.catalog.lists(), "cached read should not re-query sources")

	_, err = f.agg.GetDetails(ctx, "ghost")
	var nferr *types.NotFoundError
	assert.ErrorAs(t, err, &nferr)
}

func TestInstallFromStore(t *testing.T) {
	f := newAggFixture(t)
	src := f.addSource(t, "official", 0)

	manifest, err := sonic.Marshal(types.Manifest{
		Name:       "nebula",
		Version:    "1.2.0",
		Author:     "arcadia",
		Type:       types.TypeTheme,
		EntryPoint: "theme.css",
	})
	require.NoError(t, err)

	pkg := []byte("package-bytes")
	sum := sha256.Sum256(pkg)

	f.catalog.entries[src.ID] = []types.StoreExtension{entry("nebula", "nebula", 0)}
	f.catalog.details["nebula"] = &types.StoreExtensionDetails{
		StoreExtension: entry("nebula", "nebula", 0),
		ManifestURL:    "https://official.example.com/nebula/manifest.json",
		PackageURL:     "https://official.example.com/nebula/pkg.zip",
		Checksum:       hex.EncodeToString(sum[:]),
	}
	f.catalog.files["https://official.example.com/nebula/manifest.json"] = manifest
	f.catalog.files["https://official.example.com/nebula/pkg.zip"] = pkg

	info, err := f.agg.Install(context.Background(), "nebula")
	require.NoError(t, err)
	assert.Equal(t, "nebula", info.Name)
	assert.Equal(t, types.StateInstalled, info.State)

	got, err := f.registry.Get(info.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", got.Version)
}

func TestInstallFromStoreChecksumMismatch(t *testing.T) {
	f := newAggFixture(t)
	src := f.addSource(t, "official", 0)

	f.catalog.entries[src.ID] = []types.StoreExtension{entry("bad", "bad", 0)}
	f.catalog.details["bad"] = &types.StoreExtensionDetails{
		StoreExtension: entry("bad", "bad", 0),
		ManifestURL:    "https://official.example.com/bad/manifest.json",
		PackageURL:     "https://official.example.com/bad/pkg.zip",
		Checksum:       "deadbeef",
	}
	f.catalog.files["https://official.example.com/bad/pkg.zip"] = []byte("tampered")

	_, err := f.agg.Install(context.Background(), "bad")
	var cerr *types.ChecksumError
	require.ErrorAs(t, err, &cerr)
	assert.Empty(t, f.registry.List(), "nothing installed on checksum failure")
}

func TestCheckUpdates(t *testing.T) {
	f := newAggFixture(t)
	src := f.addSource(t, "official", 0)

	manifest, err := sonic.Marshal(types.Manifest{
		Name:       "nebula",
		Version:    "1.0.0",
		Author:     "arcadia",
		Type:       types.TypeTheme,
		EntryPoint: "theme.css",
	})
	require.NoError(t, err)
	info, err := f.registry.Install(context.Background(), manifest, src.ID)
	require.NoError(t, err)

	newer := entry("nebula-store-id", "nebula", 0)
	newer.Author = "arcadia"
	newer.Version = "1.1.0"
	f.catalog.entries[src.ID] = []types.StoreExtension{newer}

	updates, err := f.agg.CheckUpdates(context.Background())
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, info.ID, updates[0].ExtensionID)
	assert.Equal(t, "1.0.0", updates[0].Installed)
	assert.Equal(t, "1.1.0", updates[0].Available)

	// Same version published: nothing to report
	f.catalog.entries[src.ID][0].Version = "1.0.0"
	updates, err = f.agg.CheckUpdates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestCheckUpdatesAllSourcesDown(t *testing.T) {
	f := newAggFixture(t)
	src := f.addSource(t, "official", 0)
	f.catalog.fail[src.ID] = errors.New("timeout")

	_, err := f.agg.CheckUpdates(context.Background())
	var nerr *types.NetworkError
	assert.ErrorAs(t, err, &nerr)
}
