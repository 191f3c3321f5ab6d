// Package ws streams extension lifecycle and hook events to the host
// UI over WebSocket.
package ws
