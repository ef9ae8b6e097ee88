// Package store provides SQLite persistence for playlists, tracks,
// songwriter identities, derived contacts, and the enrichment job queue.
package store
