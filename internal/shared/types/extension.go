package types

import (
	"strings"
	"time"
)

// ExtensionType classifies the three built-in extension kinds
type ExtensionType string

const (
	TypeTheme       ExtensionType = "theme"
	TypeDataSource  ExtensionType = "data_source"
	TypeGameLibrary ExtensionType = "game_library"
)

// Valid reports whether the type is one of the closed set
func (t ExtensionType) Valid() bool {
	switch t {
	case TypeTheme, TypeDataSource, TypeGameLibrary:
		return true
	}
	return false
}

// Permission is a coarse-grained capability an extension must declare and be granted
type Permission string

const (
	PermFilesystem Permission = "filesystem"
	PermNetwork    Permission = "network"
	PermDatabase   Permission = "database"
	PermUI         Permission = "ui"
	PermNative     Permission = "native"
)

// Valid reports whether the permission is part of the closed vocabulary
func (p Permission) Valid() bool {
	switch p {
	case PermFilesystem, PermNetwork, PermDatabase, PermUI, PermNative:
		return true
	}
	return false
}

// AllPermissions lists the closed permission vocabulary
func AllPermissions() []Permission {
	return []Permission{PermFilesystem, PermNetwork, PermDatabase, PermUI, PermNative}
}

// MenuItem is a host menu entry contributed by an extension
type MenuItem struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Action string `json:"action"`
}

// APISurface declares the named APIs an extension provides and requires
type APISurface struct {
	Provided []string `json:"provided,omitempty"`
	Required []string `json:"required,omitempty"`
}

// Manifest is the install-time contract surface of an extension.
// It is untrusted input and must pass validation before any side effect.
type Manifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Author       string            `json:"author,omitempty"`
	Description  string            `json:"description,omitempty"`
	Type         ExtensionType     `json:"type"`
	EntryPoint   string            `json:"entry_point"`
	Permissions  []Permission      `json:"permissions,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Hooks        []string          `json:"hooks,omitempty"`
	APIs         *APISurface       `json:"apis,omitempty"`
	MenuItems    []MenuItem        `json:"menu_items,omitempty"`
}

// Identity is the duplicate-detection key for installed extensions.
// Case-insensitive, so "Steam Library" and "steam library" from the
// same author collide.
func (m *Manifest) Identity() string {
	return strings.ToLower(m.Name) + "\x00" + strings.ToLower(m.Author)
}

// LifecycleState represents extension lifecycle states
type LifecycleState string

const (
	StateDiscovered   LifecycleState = "discovered"
	StateInstalling   LifecycleState = "installing"
	StateInstalled    LifecycleState = "installed"
	StateEnabling     LifecycleState = "enabling"
	StateEnabled      LifecycleState = "enabled"
	StateDisabling    LifecycleState = "disabling"
	StateDisabled     LifecycleState = "disabled"
	StateUninstalling LifecycleState = "uninstalling"
	StateRemoved      LifecycleState = "removed"
	StateFailed       LifecycleState = "failed"
)

// Extension is an installed unit, owned exclusively by the registry
type Extension struct {
	ID            string         `json:"id"`
	Manifest      Manifest       `json:"manifest"`
	State         LifecycleState `json:"state"`
	FailureReason string         `json:"failure_reason,omitempty"`
	Granted       []Permission   `json:"granted_permissions"`
	Enabled       bool           `json:"enabled"`
	SourceID      string         `json:"source_id,omitempty"` // store source it was installed from
	InstalledAt   time.Time      `json:"installed_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ExtensionInfo is the read-only projection handed to callers
type ExtensionInfo struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Author      string         `json:"author,omitempty"`
	Description string         `json:"description,omitempty"`
	Type        ExtensionType  `json:"type"`
	State       LifecycleState `json:"state"`
	Enabled     bool           `json:"enabled"`
	InstalledAt time.Time      `json:"installed_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Info returns the read-only projection of an extension
func (e *Extension) Info() ExtensionInfo {
	return ExtensionInfo{
		ID:          e.ID,
		Name:        e.Manifest.Name,
		Version:     e.Manifest.Version,
		Author:      e.Manifest.Author,
		Description: e.Manifest.Description,
		Type:        e.Manifest.Type,
		State:       e.State,
		Enabled:     e.Enabled,
		InstalledAt: e.InstalledAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// ExtensionSetting is a keyed value scoped to one extension id
type ExtensionSetting struct {
	ExtensionID string `json:"extension_id"`
	Key         string `json:"key"`
	Value       string `json:"value"`
}
