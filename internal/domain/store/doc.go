// Package store aggregates extension catalogs from configured remote
// sources.
//
// Sources carry a priority; queries fan out to every enabled source
// concurrently, merge per-source results with first-priority-wins
// deduplication, then sort and paginate the merged set. Installation
// from the store downloads and checksum-verifies the package before
// delegating to the extension registry.
package store
