package types

import "time"

// SourceType classifies a configured store source
type SourceType string

const (
	SourceOfficial   SourceType = "official"
	SourceCommunity  SourceType = "community"
	SourceThirdParty SourceType = "third_party"
)

// Valid reports whether the source type is recognized
func (t SourceType) Valid() bool {
	switch t {
	case SourceOfficial, SourceCommunity, SourceThirdParty:
		return true
	}
	return false
}

// StoreSource is a configured remote catalog provider.
// Lower Priority sorts first; ties break by source id.
type StoreSource struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Type     SourceType `json:"type"`
	BaseURL  string     `json:"base_url"`
	Enabled  bool       `json:"enabled"`
	Priority int        `json:"priority"`
}

// StoreExtension is a remote catalog entry
type StoreExtension struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Author      string        `json:"author,omitempty"`
	Description string        `json:"description,omitempty"`
	Type        ExtensionType `json:"type"`
	Version     string        `json:"version"`
	Tags        []string      `json:"tags,omitempty"`
	Downloads   int64         `json:"downloads"`
	Rating      float64       `json:"rating"`
	PublishedAt time.Time     `json:"published_at"`
	SourceID    string        `json:"source_id,omitempty"`  // set by the aggregator, not the wire
	Installed   bool          `json:"installed,omitempty"`  // set by the aggregator for entries matching an installed extension
}

// StoreExtensionDetails is the extended record fetched lazily on demand
type StoreExtensionDetails struct {
	StoreExtension
	Readme      string   `json:"readme,omitempty"`
	Screenshots []string `json:"screenshots,omitempty"`
	ManifestURL string   `json:"manifest_url"`
	PackageURL  string   `json:"package_url"`
	Checksum    string   `json:"checksum"`
}

// StoreFilters narrows a catalog query
type StoreFilters struct {
	Type      *ExtensionType `json:"type,omitempty"`
	Tags      []string       `json:"tags,omitempty"`      // match-any
	Search    string         `json:"search,omitempty"`    // substring over name+description
	SourceIDs []string       `json:"source_ids,omitempty"`
}

// SortOption orders merged catalog results
type SortOption string

const (
	SortName      SortOption = "name"      // lexicographic ascending
	SortDownloads SortOption = "downloads" // descending
	SortRating    SortOption = "rating"    // descending
	SortNewest    SortOption = "newest"    // descending by publish time
)

// Valid reports whether the sort option is recognized
func (s SortOption) Valid() bool {
	switch s {
	case SortName, SortDownloads, SortRating, SortNewest:
		return true
	}
	return false
}

// UpdateInfo describes an available update for an installed extension
type UpdateInfo struct {
	ExtensionID string `json:"extension_id"`
	Name        string `json:"name"`
	Installed   string `json:"installed_version"`
	Available   string `json:"available_version"`
	SourceID    string `json:"source_id"`
}
