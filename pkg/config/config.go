// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"time"

	"github.com/united-manufacturing-hub/statekit/pkg/constants"
	"github.com/united-manufacturing-hub/statekit/pkg/snapshot"
)

// StoreConfig is the per-store configuration surface. A store receives its
// config by value at construction time and keeps a private copy; changing the
// file afterwards does not affect running stores.
type StoreConfig struct {
	// DebounceInterval delays the start of a load so rapid successive
	// requests coalesce into one. Zero disables debouncing.
	DebounceInterval time.Duration `yaml:"debounceInterval"`

	// MaxUndoSteps is the capacity of the undo history ring.
	MaxUndoSteps int `yaml:"maxUndoSteps"`

	// EnableLogging controls whether the store logs its operations.
	EnableLogging bool `yaml:"enableLogging"`

	// PageSize is the page length for collection loads.
	PageSize int `yaml:"pageSize"`
}

// DefaultStoreConfig returns the configuration stores run with when the
// config file has nothing to say.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		DebounceInterval: 0,
		MaxUndoSteps:     10,
		EnableLogging:    true,
		PageSize:         20,
	}
}

// Normalize clamps out-of-range values to something a store can run with.
func (c StoreConfig) Normalize() StoreConfig {
	if c.DebounceInterval < 0 {
		c.DebounceInterval = 0
	}

	if c.MaxUndoSteps < 1 {
		c.MaxUndoSteps = 1
	}

	if c.PageSize < 1 {
		c.PageSize = 1
	}

	return c
}

// ServerConfig holds the listen addresses of the demo binary.
type ServerConfig struct {
	Address        string `yaml:"address"`
	MetricsAddress string `yaml:"metricsAddress"`
}

// FileConfig is the full on-disk configuration: store defaults, optional
// per-store overrides keyed by store name, and the server settings.
type FileConfig struct {
	Stores   map[string]StoreConfig `yaml:"stores,omitempty"`
	Defaults StoreConfig            `yaml:"defaults"`
	Server   ServerConfig           `yaml:"server"`
}

// DefaultFileConfig returns the configuration written when no config file
// exists yet.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		Defaults: DefaultStoreConfig(),
		Server: ServerConfig{
			Address:        constants.DefaultServerAddress,
			MetricsAddress: constants.DefaultMetricsAddress,
		},
	}
}

// StoreConfigFor returns the config for the named store: the per-store entry
// if one exists, the defaults otherwise. The result is normalized.
func (c FileConfig) StoreConfigFor(name string) StoreConfig {
	if storeCfg, ok := c.Stores[name]; ok {
		return storeCfg.Normalize()
	}

	return c.Defaults.Normalize()
}

// Clone creates a deep copy of FileConfig
func (c FileConfig) Clone() FileConfig {
	clone, _ := snapshot.Clone(c)

	return clone
}
