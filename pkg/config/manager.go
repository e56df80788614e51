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
	"context"
	"fmt"
	"path/filepath"
	"reflect"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/united-manufacturing-hub/statekit/pkg/constants"
	"github.com/united-manufacturing-hub/statekit/pkg/ctxutil/ctxmutex"
	"github.com/united-manufacturing-hub/statekit/pkg/ctxutil/ctxrwmutex"
	"github.com/united-manufacturing-hub/statekit/pkg/filesystem"
	"github.com/united-manufacturing-hub/statekit/pkg/logger"
)

// ConfigManager is the interface for config management
type ConfigManager interface {
	// GetConfig returns the current config
	GetConfig(ctx context.Context) (FileConfig, error)
	// GetConfigOrCreateNew returns the current config, writing the default
	// config first if no file exists yet
	GetConfigOrCreateNew(ctx context.Context) (FileConfig, error)
	// AtomicUpdateConfig applies edit to the config atomically
	AtomicUpdateConfig(ctx context.Context, edit func(*FileConfig) error) error
	// AtomicSetStoreDefaults sets the store defaults in the config atomically
	AtomicSetStoreDefaults(ctx context.Context, defaults StoreConfig) error
	// AtomicSetStoreConfig sets the named store's config atomically
	AtomicSetStoreConfig(ctx context.Context, name string, storeCfg StoreConfig) error
	// AtomicSetServer sets the server settings in the config atomically
	AtomicSetServer(ctx context.Context, server ServerConfig) error
}

// FileConfigManager implements the ConfigManager interface by reading from a file
type FileConfigManager struct {
	// fsService handles filesystem operations
	fsService filesystem.Service

	// logger is the logger for the config manager
	logger *zap.SugaredLogger

	// configPath is the path to the config file
	configPath string

	// mutexAtomicUpdate for full cycle read and write access (atomic update) to the config file
	// all writes to the config need to happen under this mutex via an atomic update method -> writeConfig is therefore not exposed
	// the goal is to prevent two read/write cycles ("atomic updates") happening at the same time
	// we use our own implementation of a context aware mutex here to avoid deadlocks
	mutexAtomicUpdate ctxmutex.CtxMutex

	// simple mutex for read access or write access to the config file
	// it will be used by GetConfig and writeConfig
	// this mutex will allow multiple GetConfig calls to happen in parallel
	// it will prevent multiple reads or read/write cycles to happen at the same time
	// we use our own implementation of a context aware mutex here to avoid deadlocks
	mutexReadOrWrite ctxrwmutex.CtxRWMutex
}

// NewFileConfigManager creates a new FileConfigManager reading from the
// default config path.
func NewFileConfigManager() *FileConfigManager {
	return &FileConfigManager{
		configPath:        constants.DefaultConfigPath,
		fsService:         filesystem.NewDefaultService(),
		logger:            logger.For(logger.ComponentConfigManager),
		mutexAtomicUpdate: *ctxmutex.NewCtxMutex(),
		mutexReadOrWrite:  *ctxrwmutex.NewCtxRWMutex(),
	}
}

// WithFileSystemService allows setting a custom filesystem service
// useful for testing or advanced use cases
func (m *FileConfigManager) WithFileSystemService(fsService filesystem.Service) *FileConfigManager {
	m.fsService = fsService
	return m
}

// WithConfigPath allows setting a custom config file path
// useful for testing or advanced use cases
func (m *FileConfigManager) WithConfigPath(configPath string) *FileConfigManager {
	m.configPath = configPath
	return m
}

// GetConfig returns the current config, always reading fresh from disk
func (m *FileConfigManager) GetConfig(ctx context.Context) (FileConfig, error) {
	// we use a read lock here, because we only read the config file
	err := m.mutexReadOrWrite.RLock(ctx)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to lock config file: %w", err)
	}
	defer m.mutexReadOrWrite.RUnlock()

	// Check if context is already cancelled
	if ctx.Err() != nil {
		return FileConfig{}, ctx.Err()
	}

	// Create the directory if it doesn't exist
	dir := filepath.Dir(m.configPath)
	if err := m.fsService.EnsureDirectory(ctx, dir); err != nil {
		return FileConfig{}, fmt.Errorf("failed to create config directory: %w", err)
	}

	// Check if context is already cancelled
	if ctx.Err() != nil {
		return FileConfig{}, ctx.Err()
	}

	exists, err := m.fsService.PathExists(ctx, m.configPath)
	if err != nil {
		return FileConfig{}, err
	}

	if !exists {
		return FileConfig{}, fmt.Errorf("config file does not exist: %s", m.configPath)
	}

	// Check if context is already cancelled
	if ctx.Err() != nil {
		return FileConfig{}, ctx.Err()
	}

	data, err := m.fsService.ReadFile(ctx, m.configPath)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return FileConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	// If the config is empty, return an error
	// Note: sometimes it can happen that due to a filesystem error, the file is empty
	// In this case we want to return an error instead of silently running on zero values
	if reflect.DeepEqual(config, FileConfig{}) {
		return FileConfig{}, fmt.Errorf("config file is empty: %s", m.configPath)
	}

	return config.Clone(), nil
}

// GetConfigOrCreateNew returns the current config, writing the default config
// first if no file exists yet.
func (m *FileConfigManager) GetConfigOrCreateNew(ctx context.Context) (FileConfig, error) {
	// Check if context is already cancelled
	if ctx.Err() != nil {
		return FileConfig{}, ctx.Err()
	}

	exists, err := m.fsService.PathExists(ctx, m.configPath)
	switch {
	case err != nil:
		m.logger.Warnf("failed to check if config file exists in %s: %v", m.configPath, err)
	case exists:
		return m.GetConfig(ctx)
	}

	config := DefaultFileConfig()
	if err := m.writeConfig(ctx, config); err != nil {
		return FileConfig{}, fmt.Errorf("failed to write new config: %w", err)
	}

	return config, nil
}

// writeConfig writes the config to the file
// it should not be exposed or used outside of the config manager, due to potential race conditions
func (m *FileConfigManager) writeConfig(ctx context.Context, config FileConfig) error {
	// we use a write lock here, because we write the config file
	err := m.mutexReadOrWrite.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to lock config file: %w", err)
	}
	defer m.mutexReadOrWrite.Unlock()

	// Check if context is already cancelled
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Create the directory if it doesn't exist
	dir := filepath.Dir(m.configPath)
	if err := m.fsService.EnsureDirectory(ctx, dir); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal the config to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to a temp file and rename it into place, so a concurrent reader
	// never observes a half-written config.
	tmpPath := m.configPath + ".tmp"
	if err := m.fsService.WriteFile(ctx, tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if err := m.fsService.Rename(ctx, tmpPath, m.configPath); err != nil {
		return fmt.Errorf("failed to move config file into place: %w", err)
	}

	m.logger.Infof("Successfully wrote config to %s", m.configPath)

	return nil
}

// AtomicUpdateConfig applies edit to the current config and persists the
// result as a single read-modify-write cycle. If no config file exists yet,
// the edit starts from the default config. An error returned by edit aborts
// the update without writing.
func (m *FileConfigManager) AtomicUpdateConfig(ctx context.Context, edit func(*FileConfig) error) error {
	err := m.mutexAtomicUpdate.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to lock config file: %w", err)
	}
	defer m.mutexAtomicUpdate.Unlock()

	// get the current config
	config, err := m.GetConfigOrCreateNew(ctx)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}

	if err := edit(&config); err != nil {
		return fmt.Errorf("failed to apply config edit: %w", err)
	}

	// write the config
	if err := m.writeConfig(ctx, config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// AtomicSetStoreDefaults sets the store defaults in the config atomically
func (m *FileConfigManager) AtomicSetStoreDefaults(ctx context.Context, defaults StoreConfig) error {
	return m.AtomicUpdateConfig(ctx, func(config *FileConfig) error {
		config.Defaults = defaults.Normalize()

		return nil
	})
}

// AtomicSetStoreConfig sets the named store's config atomically
func (m *FileConfigManager) AtomicSetStoreConfig(ctx context.Context, name string, storeCfg StoreConfig) error {
	return m.AtomicUpdateConfig(ctx, func(config *FileConfig) error {
		if config.Stores == nil {
			config.Stores = make(map[string]StoreConfig)
		}

		config.Stores[name] = storeCfg.Normalize()

		return nil
	})
}

// AtomicSetServer sets the server settings in the config atomically
func (m *FileConfigManager) AtomicSetServer(ctx context.Context, server ServerConfig) error {
	return m.AtomicUpdateConfig(ctx, func(config *FileConfig) error {
		config.Server = server

		return nil
	})
}
