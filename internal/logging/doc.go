// Package logging provides slog construction and shared attribute helpers
// for songscout components.
package logging
