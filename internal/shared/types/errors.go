package types

import "fmt"

// ManifestErrorKind discriminates manifest validation failures
type ManifestErrorKind string

const (
	ManifestMalformed         ManifestErrorKind = "malformed"
	ManifestUnknownPermission ManifestErrorKind = "unknown_permission"
	ManifestUnsupportedType   ManifestErrorKind = "unsupported_type"
)

// ManifestError reports a rejected manifest with the offending field
type ManifestError struct {
	Kind  ManifestErrorKind
	Field string
	Cause string
}

func (e *ManifestError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("manifest %s: %s (%s)", e.Kind, e.Field, e.Cause)
	}
	return fmt.Sprintf("manifest %s: %s", e.Kind, e.Cause)
}

// NotFoundError reports an unknown extension, source, or setting id
type NotFoundError struct {
	Kind string // "extension", "source", "setting", "api"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// AlreadyInstalledError reports a duplicate live install
type AlreadyInstalledError struct {
	Name   string
	Author string
	ID     string // id of the existing extension
}

func (e *AlreadyInstalledError) Error() string {
	return fmt.Sprintf("extension already installed: %s by %s (id %s)", e.Name, e.Author, e.ID)
}

// OperationInProgressError reports a rejected concurrent lifecycle operation
type OperationInProgressError struct {
	ExtensionID string
}

func (e *OperationInProgressError) Error() string {
	return fmt.Sprintf("operation already in progress for extension %s", e.ExtensionID)
}

// DependencyError reports an unsatisfiable dependency or API requirement
type DependencyError struct {
	Name   string
	Range  string
	Reason string
}

func (e *DependencyError) Error() string {
	if e.Range != "" {
		return fmt.Sprintf("dependency unsatisfied: %s@%s: %s", e.Name, e.Range, e.Reason)
	}
	return fmt.Sprintf("dependency unsatisfied: %s: %s", e.Name, e.Reason)
}

// PermissionError reports a denied or invalid permission operation
type PermissionError struct {
	ExtensionID string
	Permission  Permission
	Reason      string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission %s denied for extension %s: %s", e.Permission, e.ExtensionID, e.Reason)
}

// NetworkError reports a failed or timed-out store fetch
type NetworkError struct {
	SourceID string
	URL      string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure for source %s (%s): %v", e.SourceID, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ChecksumError reports a package integrity failure before install
type ChecksumError struct {
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// IOError reports a persistence-layer failure, fatal to the specific operation
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ExtensionError is an opaque handler-reported failure from hook or API invocation
type ExtensionError struct {
	ExtensionID string
	Hook        string
	Err         error
}

func (e *ExtensionError) Error() string {
	return fmt.Sprintf("extension %s failed handling %s: %v", e.ExtensionID, e.Hook, e.Err)
}

func (e *ExtensionError) Unwrap() error { return e.Err }
