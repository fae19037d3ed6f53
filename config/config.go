/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package config loads configuration of the cache and its host application
// from YAML/JSON files and environment variables.
//
// Every configuration section implements Config and usually KeyPrefixProvider,
// so its keys are read relative to the section name.
package config

// Config is a configuration section that can be filled by Loader.
type Config interface {
	// SetProviderDefaults registers default values of the section's keys.
	SetProviderDefaults(dp DataProvider)

	// Set reads and validates the section's values.
	Set(dp DataProvider) error
}

// KeyPrefixProvider is implemented by sections that live under a key prefix (e.g. "cache").
type KeyPrefixProvider interface {
	KeyPrefix() string
}
