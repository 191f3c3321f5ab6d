package store

import (
	"context"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/arcadia-launcher/arcadia/backend/internal/infrastructure/logging"
	"github.com/arcadia-launcher/arcadia/backend/internal/shared/id"
	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
	"github.com/arcadia-launcher/arcadia/backend/internal/storage"
)

// Sources manages the configured catalog sources. Every mutation is
// persisted before it becomes visible to queries.
type Sources struct {
	mu      sync.RWMutex
	sources map[string]*types.StoreSource
	store   storage.Store
	logger  *logging.Logger
}

// NewSources creates a source manager backed by the given store
func NewSources(store storage.Store, logger *logging.Logger) *Sources {
	return &Sources{
		sources: make(map[string]*types.StoreSource),
		store:   store,
		logger:  logger,
	}
}

// Load restores persisted sources
func (s *Sources) Load(ctx context.Context) error {
	rows, err := s.store.List(ctx, storage.BucketSources, "")
	if err != nil {
		return &types.IOError{Op: "list", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, data := range rows {
		var src types.StoreSource
		if err := sonic.Unmarshal(data, &src); err != nil {
			s.logger.Warn("Skipping unreadable source row", zap.String("key", key), zap.Error(err))
			continue
		}
		s.sources[src.ID] = &src
	}

	s.logger.Info("Store sources loaded", zap.Int("count", len(s.sources)))
	return nil
}

// seedFile is the on-disk shape of a sources seed document
type seedFile struct {
	Sources []struct {
		Name     string `yaml:"name"`
		Type     string `yaml:"type"`
		BaseURL  string `yaml:"base_url"`
		Enabled  *bool  `yaml:"enabled"`
		Priority int    `yaml:"priority"`
	} `yaml:"sources"`
}

// Seed populates the source table from a YAML file. It is a no-op when
// sources already exist, so user edits survive restarts.
func (s *Sources) Seed(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	s.mu.RLock()
	existing := len(s.sources)
	s.mu.RUnlock()
	if existing > 0 {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("No source seed file", zap.String("path", path))
			return nil
		}
		return &types.IOError{Op: "read", Err: err}
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return &types.IOError{Op: "parse", Err: err}
	}

	for _, entry := range seed.Sources {
		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}
		src, err := s.Add(ctx, entry.Name, types.SourceType(entry.Type), entry.BaseURL, entry.Priority)
		if err != nil {
			s.logger.Warn("Skipping invalid seed source", zap.String("name", entry.Name), zap.Error(err))
			continue
		}
		if !enabled {
			if err := s.SetEnabled(ctx, src.ID, false); err != nil {
				return err
			}
		}
	}

	s.logger.Info("Store sources seeded", zap.String("path", path), zap.Int("count", len(seed.Sources)))
	return nil
}

// Add registers a new source. New sources start enabled.
func (s *Sources) Add(ctx context.Context, name string, sourceType types.SourceType, baseURL string, priority int) (types.StoreSource, error) {
	if !sourceType.Valid() {
		return types.StoreSource{}, &types.NotFoundError{Kind: "source_type", ID: string(sourceType)}
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return types.StoreSource{}, &types.NetworkError{URL: baseURL, Err: errInvalidBaseURL}
	}

	src := &types.StoreSource{
		ID:       id.NewSourceID().String(),
		Name:     strings.TrimSpace(name),
		Type:     sourceType,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Enabled:  true,
		Priority: priority,
	}

	if err := s.persist(ctx, src); err != nil {
		return types.StoreSource{}, err
	}

	s.mu.Lock()
	s.sources[src.ID] = src
	s.mu.Unlock()

	s.logger.Info("Store source added",
		zap.String("source_id", src.ID),
		zap.String("name", src.Name),
		zap.Int("priority", src.Priority))
	return *src, nil
}

// Remove deletes a source
func (s *Sources) Remove(ctx context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[sourceID]; !ok {
		return &types.NotFoundError{Kind: "source", ID: sourceID}
	}
	if err := s.store.Delete(ctx, storage.BucketSources, sourceID); err != nil {
		return &types.IOError{Op: "delete", Err: err}
	}
	delete(s.sources, sourceID)
	return nil
}

// SetEnabled toggles a source
func (s *Sources) SetEnabled(ctx context.Context, sourceID string, enabled bool) error {
	return s.mutate(ctx, sourceID, func(src *types.StoreSource) {
		src.Enabled = enabled
	})
}

// SetPriority reprioritizes a source. Lower numbers win merges.
func (s *Sources) SetPriority(ctx context.Context, sourceID string, priority int) error {
	return s.mutate(ctx, sourceID, func(src *types.StoreSource) {
		src.Priority = priority
	})
}

// Get returns one source by id
func (s *Sources) Get(sourceID string) (types.StoreSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.sources[sourceID]
	if !ok {
		return types.StoreSource{}, &types.NotFoundError{Kind: "source", ID: sourceID}
	}
	return *src, nil
}

// List returns all sources, priority ascending with ties broken by id
func (s *Sources) List() []types.StoreSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(false)
}

// Enabled returns the enabled sources in merge-priority order. The
// slice is a snapshot; callers can iterate without holding any lock.
func (s *Sources) Enabled() []types.StoreSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(true)
}

func (s *Sources) snapshot(enabledOnly bool) []types.StoreSource {
	out := make([]types.StoreSource, 0, len(s.sources))
	for _, src := range s.sources {
		if enabledOnly && !src.Enabled {
			continue
		}
		out = append(out, *src)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Sources) mutate(ctx context.Context, sourceID string, apply func(*types.StoreSource)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[sourceID]
	if !ok {
		return &types.NotFoundError{Kind: "source", ID: sourceID}
	}

	updated := *src
	apply(&updated)
	if err := s.persist(ctx, &updated); err != nil {
		return err
	}
	s.sources[sourceID] = &updated
	return nil
}

func (s *Sources) persist(ctx context.Context, src *types.StoreSource) error {
	data, err := sonic.Marshal(src)
	if err != nil {
		return &types.IOError{Op: "encode", Err: err}
	}
	if err := s.store.Set(ctx, storage.BucketSources, src.ID, data); err != nil {
		return &types.IOError{Op: "write", Err: err}
	}
	return nil
}
