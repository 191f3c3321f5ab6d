package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arcadia-launcher/arcadia/backend/internal/domain/registry"
	"github.com/arcadia-launcher/arcadia/backend/internal/domain/version"
	"github.com/arcadia-launcher/arcadia/backend/internal/infrastructure/logging"
	"github.com/arcadia-launcher/arcadia/backend/internal/infrastructure/monitoring"
	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
)

// Page is one slice of the merged catalog. SourceErrors carries
// per-source failures so a timed-out source is never mistaken for an
// empty one.
type Page struct {
	Items        []types.StoreExtension `json:"items"`
	Page         int                    `json:"page"`
	PageSize     int                    `json:"page_size"`
	Total        int                    `json:"total"`
	SourceErrors map[string]string      `json:"source_errors,omitempty"`
}

type detailsEntry struct {
	details *types.StoreExtensionDetails
	expires time.Time
}

// Aggregator fans catalog queries out to the enabled sources and
// merges the results into one stable, paginated view. Installation
// from the store delegates to the registry's install path after
// checksum verification.
type Aggregator struct {
	sources  *Sources
	catalog  Catalog
	registry *registry.Manager
	logger   *logging.Logger
	metrics  *monitoring.Metrics

	fetchTimeout time.Duration
	maxPageSize  int

	cacheTTL time.Duration
	cacheMu  sync.Mutex
	cache    map[string]detailsEntry
}

// Options tune aggregator behavior
type Options struct {
	FetchTimeout time.Duration // per-source bound for one catalog call
	MaxPageSize  int
	CacheTTL     time.Duration // details cache lifetime
}

// NewAggregator builds an aggregator over the given sources and client
func NewAggregator(sources *Sources, catalog Catalog, reg *registry.Manager, logger *logging.Logger, opts Options) *Aggregator {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &Aggregator{
		sources:      sources,
		catalog:      catalog,
		registry:     reg,
		logger:       logger,
		fetchTimeout: opts.FetchTimeout,
		maxPageSize:  opts.MaxPageSize,
		cacheTTL:     opts.CacheTTL,
		cache:        make(map[string]detailsEntry),
	}
}

// WithMetrics attaches the metrics collector
func (a *Aggregator) WithMetrics(metrics *monitoring.Metrics) *Aggregator {
	a.metrics = metrics
	return a
}

// Query returns one page of the merged catalog. Sources are snapshot
// at query start; a failing source contributes an error, not silence.
func (a *Aggregator) Query(ctx context.Context, filters types.StoreFilters, sortBy types.SortOption, page, pageSize int) (*Page, error) {
	if sortBy == "" {
		sortBy = types.SortName
	}
	if !sortBy.Valid() {
		return nil, &types.NotFoundError{Kind: "sort", ID: string(sortBy)}
	}
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 || pageSize > a.maxPageSize {
		pageSize = a.maxPageSize
	}

	merged, sourceErrors := a.merged(ctx, filters.SourceIDs)
	filtered := applyFilters(merged, filters)
	sortEntries(filtered, sortBy)

	total := len(filtered)
	start := page * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	items := filtered[start:end]
	for i := range items {
		if _, ok := a.registry.FindByIdentity(items[i].Name, items[i].Author); ok {
			items[i].Installed = true
		}
	}

	return &Page{
		Items:        items,
		Page:         page,
		PageSize:     pageSize,
		Total:        total,
		SourceErrors: sourceErrors,
	}, nil
}

// merged fans out to the enabled sources (optionally restricted to
// sourceIDs) and deduplicates by extension id, keeping the entry from
// the lowest-priority-number source.
func (a *Aggregator) merged(ctx context.Context, sourceIDs []string) ([]types.StoreExtension, map[string]string) {
	snapshot := a.sources.Enabled()
	if len(sourceIDs) > 0 {
		wanted := make(map[string]bool, len(sourceIDs))
		for _, id := range sourceIDs {
			wanted[id] = true
		}
		kept := snapshot[:0]
		for _, src := range snapshot {
			if wanted[src.ID] {
				kept = append(kept, src)
			}
		}
		snapshot = kept
	}

	type result struct {
		entries []types.StoreExtension
		err     error
	}
	results := make([]result, len(snapshot))

	var wg sync.WaitGroup
	for i, src := range snapshot {
		wg.Add(1)
		go func(i int, src types.StoreSource) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
			defer cancel()

			start := time.Now()
			entries, err := a.catalog.List(fetchCtx, src)
			if a.metrics != nil {
				status := "ok"
				if err != nil {
					status = "error"
				}
				a.metrics.RecordStoreQuery(src.ID, status, time.Since(start))
			}
			results[i] = result{entries: entries, err: err}
		}(i, src)
	}
	wg.Wait()

	seen := make(map[string]bool)
	var merged []types.StoreExtension
	sourceErrors := make(map[string]string)

	// snapshot is priority-ordered, so first sighting of an id wins
	for i, src := range snapshot {
		if err := results[i].err; err != nil {
			a.logger.Warn("Store source query failed",
				zap.String("source_id", src.ID),
				zap.Error(err))
			sourceErrors[src.ID] = err.Error()
			continue
		}
		for _, entry := range results[i].entries {
			if seen[entry.ID] {
				continue
			}
			seen[entry.ID] = true
			merged = append(merged, entry)
		}
	}

	if len(sourceErrors) == 0 {
		sourceErrors = nil
	}
	return merged, sourceErrors
}

func applyFilters(entries []types.StoreExtension, filters types.StoreFilters) []types.StoreExtension {
	search := strings.ToLower(filters.Search)
	out := make([]types.StoreExtension, 0, len(entries))

	for _, entry := range entries {
		if filters.Type != nil && entry.Type != *filters.Type {
			continue
		}
		if len(filters.Tags) > 0 && !matchesAnyTag(entry.Tags, filters.Tags) {
			continue
		}
		if search != "" {
			haystack := strings.ToLower(entry.Name + " " + entry.Description)
			if !strings.Contains(haystack, search) {
				continue
			}
		}
		out = append(out, entry)
	}
	return out
}

func matchesAnyTag(entryTags, wanted []string) bool {
	for _, tag := range entryTags {
		for _, w := range wanted {
			if strings.EqualFold(tag, w) {
				return true
			}
		}
	}
	return false
}

// sortEntries applies the global sort; ties always break by extension
// id so pagination over an unchanged catalog is stable.
func sortEntries(entries []types.StoreExtension, sortBy types.SortOption) {
	less := func(i, j int) bool { return entries[i].ID < entries[j].ID }
	switch sortBy {
	case types.SortName:
		less = func(i, j int) bool {
			if entries[i].Name != entries[j].Name {
				return entries[i].Name < entries[j].Name
			}
			return entries[i].ID < entries[j].ID
		}
	case types.SortDownloads:
		less = func(i, j int) bool {
			if entries[i].Downloads != entries[j].Downloads {
				return entries[i].Downloads > entries[j].Downloads
			}
			return entries[i].ID < entries[j].ID
		}
	case types.SortRating:
		less = func(i, j int) bool {
			if entries[i].Rating != entries[j].Rating {
				return entries[i].Rating > entries[j].Rating
			}
			return entries[i].ID < entries[j].ID
		}
	case types.SortNewest:
		less = func(i, j int) bool {
			if !entries[i].PublishedAt.Equal(entries[j].PublishedAt) {
				return entries[i].PublishedAt.After(entries[j].PublishedAt)
			}
			return entries[i].ID < entries[j].ID
		}
	}
	sort.Slice(entries, less)
}

// GetDetails resolves the extended record for a catalog entry from its
// owning source, with a short-lived cache.
func (a *Aggregator) GetDetails(ctx context.Context, extID string) (*types.StoreExtensionDetails, error) {
	a.cacheMu.Lock()
	if entry, ok := a.cache[extID]; ok && time.Now().Before(entry.expires) {
		a.cacheMu.Unlock()
		return entry.details, nil
	}
	delete(a.cache, extID)
	a.cacheMu.Unlock()

	source, err := a.owningSource(ctx, extID)
	if err != nil {
		return nil, err
	}

	details, err := a.catalog.Details(ctx, source, extID)
	if err != nil {
		return nil, err
	}

	a.cacheMu.Lock()
	a.cache[extID] = detailsEntry{details: details, expires: time.Now().Add(a.cacheTTL)}
	a.cacheMu.Unlock()
	return details, nil
}

// owningSource locates the source that carries extID under the same
// merge policy as Query.
func (a *Aggregator) owningSource(ctx context.Context, extID string) (types.StoreSource, error) {
	merged, _ := a.merged(ctx, nil)
	for _, entry := range merged {
		if entry.ID == extID {
			return a.sources.Get(entry.SourceID)
		}
	}
	return types.StoreSource{}, &types.NotFoundError{Kind: "store_extension", ID: extID}
}

// Install resolves a catalog entry's package reference, downloads and
// checksum-verifies the package, and hands the manifest to the
// registry's install path.
func (a *Aggregator) Install(ctx context.Context, extID string) (types.ExtensionInfo, error) {
	details, err := a.GetDetails(ctx, extID)
	if err != nil {
		return types.ExtensionInfo{}, err
	}

	pkg, err := a.catalog.Fetch(ctx, details.SourceID, details.PackageURL)
	if err != nil {
		return types.ExtensionInfo{}, err
	}
	if err := VerifyChecksum(pkg, details.Checksum); err != nil {
		a.logger.Warn("Package checksum mismatch",
			zap.String("store_extension_id", extID),
			zap.String("source_id", details.SourceID))
		return types.ExtensionInfo{}, err
	}

	manifest, err := a.catalog.Fetch(ctx, details.SourceID, details.ManifestURL)
	if err != nil {
		return types.ExtensionInfo{}, err
	}

	info, err := a.registry.Install(ctx, manifest, details.SourceID)
	if err != nil {
		return types.ExtensionInfo{}, err
	}

	if a.metrics != nil {
		a.metrics.RecordStoreInstall()
	}
	a.logger.Info("Extension installed from store",
		zap.String("extension_id", info.ID),
		zap.String("store_extension_id", extID),
		zap.String("source_id", details.SourceID))
	return info, nil
}

// CheckUpdates compares installed extensions against the merged
// catalog by manifest identity and reports newer published versions.
func (a *Aggregator) CheckUpdates(ctx context.Context) ([]types.UpdateInfo, error) {
	merged, sourceErrors := a.merged(ctx, nil)
	if len(merged) == 0 && len(sourceErrors) > 0 {
		// Every source failed; an empty answer would be a lie
		for sourceID, msg := range sourceErrors {
			return nil, &types.NetworkError{SourceID: sourceID, Err: errors.New(msg)}
		}
	}

	catalogByIdentity := make(map[string]types.StoreExtension, len(merged))
	for _, entry := range merged {
		catalogByIdentity[identityKey(entry.Name, entry.Author)] = entry
	}

	var updates []types.UpdateInfo
	for _, installed := range a.registry.List() {
		entry, ok := catalogByIdentity[identityKey(installed.Name, installed.Author)]
		if !ok {
			continue
		}
		if version.IsUpdateAvailable(entry.Version, installed.Version) {
			updates = append(updates, types.UpdateInfo{
				ExtensionID: installed.ID,
				Name:        installed.Name,
				Installed:   installed.Version,
				Available:   entry.Version,
				SourceID:    entry.SourceID,
			})
		}
	}

	sort.Slice(updates, func(i, j int) bool { return updates[i].ExtensionID < updates[j].ExtensionID })
	return updates, nil
}

func identityKey(name, author string) string {
	m := types.Manifest{Name: name, Author: author}
	return m.Identity()
}
