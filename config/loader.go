/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"io"
)

// Loader fills configuration sections from a DataProvider.
// Defaults of all sections are registered before any section is read.
type Loader struct {
	DataProvider DataProvider
}

// NewDefaultLoader creates a Loader backed by viper that also reads environment variables
// with the given prefix.
func NewDefaultLoader(envVarsPrefix string) *Loader {
	va := NewViperAdapter()
	va.UseEnvVars(envVarsPrefix)
	return NewLoader(va)
}

// NewLoader creates a new Loader.
func NewLoader(dp DataProvider) *Loader {
	return &Loader{dp}
}

// LoadFromFile reads the file and fills the sections.
// An empty path means there is no file, so only defaults and environment variables are used.
func (l *Loader) LoadFromFile(path string, dataType DataType, cfg Config, cfgs ...Config) error {
	if path != "" {
		if err := l.DataProvider.SetFromFile(path, dataType); err != nil {
			return err
		}
	}
	return l.Load(cfg, cfgs...)
}

// LoadFromReader reads the data from reader and fills the sections.
func (l *Loader) LoadFromReader(reader io.Reader, dataType DataType, cfg Config, cfgs ...Config) error {
	if err := l.DataProvider.SetFromReader(reader, dataType); err != nil {
		return err
	}
	return l.Load(cfg, cfgs...)
}

// Load fills the sections from values already known to the data provider.
// The first invalid section stops loading.
func (l *Loader) Load(cfg Config, cfgs ...Config) error {
	sections := append([]Config{cfg}, cfgs...)
	providers := make([]DataProvider, len(sections))
	for i, section := range sections {
		providers[i] = l.sectionProvider(section)
		section.SetProviderDefaults(providers[i])
	}
	for i, section := range sections {
		if err := section.Set(providers[i]); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) sectionProvider(cfg Config) DataProvider {
	if kp, ok := cfg.(KeyPrefixProvider); ok && kp.KeyPrefix() != "" {
		return NewKeyPrefixedDataProvider(l.DataProvider, kp.KeyPrefix())
	}
	return l.DataProvider
}
