// Package config loads, validates, and normalizes songscout configuration
// from TOML files.
package config
