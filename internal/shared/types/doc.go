// Package types provides shared data structures for the Arcadia backend.
//
// This package defines core types used across all backend components,
// ensuring type safety and consistent data structures.
//
// Core Types:
//   - Manifest: Install-time extension descriptor
//   - Extension: Installed unit with lifecycle state
//   - ExtensionInfo: Read-only projection for callers
//   - StoreSource: Configured remote catalog provider
//   - StoreExtension, StoreExtensionDetails: Remote catalog entries
//
// Enumerations:
//   - ExtensionType: theme, data_source, game_library
//   - Permission: filesystem, network, database, ui, native
//   - LifecycleState: install/enable/disable/uninstall state machine states
//   - SortOption: catalog sort orders
//
// Errors:
//   - Typed domain errors (ManifestError, DependencyError, PermissionError,
//     NetworkError, ChecksumError, ...) carrying the offending id or field
package types
