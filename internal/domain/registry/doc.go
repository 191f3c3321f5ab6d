// Package registry is the authoritative table of installed extensions.
//
// The Manager owns the lifecycle state machine
// (Installing -> Installed -> Enabling -> Enabled -> Disabling ->
// Disabled -> Uninstalling, with a Failed sink reachable from any
// state), the permission gate, the hook dispatcher, and per-extension
// settings. Every lifecycle operation is serialized per extension id:
// a second operation on the same id is rejected with
// OperationInProgress, except Uninstall which waits for the in-flight
// operation's terminal outcome. Operations on different ids proceed
// independently.
//
// All mutations are persisted through the narrow storage.Store
// interface before a transition is considered committed; a
// persistence failure parks the extension in Failed rather than
// leaving a transient state observable.
package registry
