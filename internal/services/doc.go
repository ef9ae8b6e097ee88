// Package services defines error classification shared by provider adapters
// and pipeline components.
package services
