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

package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/statekit/pkg/filesystem"
	"github.com/united-manufacturing-hub/statekit/pkg/logger"
	"github.com/united-manufacturing-hub/statekit/pkg/safejson"
	"github.com/united-manufacturing-hub/statekit/pkg/state"
)

// fileStoreOptions collects the configurable parts of a FileStore.
type fileStoreOptions struct {
	fsService filesystem.Service
	log       *zap.SugaredLogger
	level     zstd.EncoderLevel
}

// FileStoreOption customizes a FileStore at construction time.
type FileStoreOption func(*fileStoreOptions)

// WithCompressionLevel sets the zstd encoder level for saved payloads.
func WithCompressionLevel(level zstd.EncoderLevel) FileStoreOption {
	return func(o *fileStoreOptions) {
		o.level = level
	}
}

// WithFileSystemService allows setting a custom filesystem service
// useful for testing or advanced use cases
func WithFileSystemService(fsService filesystem.Service) FileStoreOption {
	return func(o *fileStoreOptions) {
		o.fsService = fsService
	}
}

// WithLogger overrides the default persistence logger.
func WithLogger(log *zap.SugaredLogger) FileStoreOption {
	return func(o *fileStoreOptions) {
		o.log = log
	}
}

// FileStore is a Saver that writes one zstd-compressed JSON file per key
// under a root directory.
//
// Keys may contain arbitrary characters; the filename is the xxhash64 of the
// key in hex plus a ".json.zst" suffix, so keys never have to be
// filesystem-safe. Writes go to a temp file first and are renamed into
// place, so a reader never observes a half-written payload.
type FileStore[T any] struct {
	fsService filesystem.Service
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	log       *zap.SugaredLogger
	root      string
}

// NewFileStore creates a FileStore rooted at root. The directory is created
// lazily on the first Save.
func NewFileStore[T any](root string, opts ...FileStoreOption) (*FileStore[T], error) {
	options := fileStoreOptions{
		fsService: filesystem.NewDefaultService(),
		log:       logger.For(logger.ComponentPersistence),
		level:     zstd.SpeedDefault,
	}
	for _, opt := range opts {
		opt(&options)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(options.level))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()

		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &FileStore[T]{
		root:      root,
		fsService: options.fsService,
		log:       options.log,
		encoder:   encoder,
		decoder:   decoder,
	}, nil
}

// Close releases the encoder and decoder resources. The FileStore must not
// be used afterwards.
func (s *FileStore[T]) Close() {
	_ = s.encoder.Close()
	s.decoder.Close()
}

// Save stores models under key, replacing any previous value.
func (s *FileStore[T]) Save(ctx context.Context, key string, models []T) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	payload, err := safejson.Marshal(models)
	if err != nil {
		return fmt.Errorf("failed to encode models for key %q: %w", key, err)
	}

	compressed := s.encoder.EncodeAll(payload, make([]byte, 0, len(payload)/2))

	if err := s.fsService.EnsureDirectory(ctx, s.root); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	path := s.pathFor(key)
	tmpPath := path + ".tmp"

	if err := s.fsService.WriteFile(ctx, tmpPath, compressed, 0644); err != nil {
		return fmt.Errorf("failed to write payload for key %q: %w", key, err)
	}

	if err := s.fsService.Rename(ctx, tmpPath, path); err != nil {
		return fmt.Errorf("failed to move payload for key %q into place: %w", key, err)
	}

	s.log.Debugf("Saved %d models under key %q (%d bytes compressed)", len(models), key, len(compressed))

	return nil
}

// Load returns the models stored under key.
// Returns ErrNotFound when no file exists for the key; corrupt payloads
// surface as decode errors.
func (s *FileStore[T]) Load(ctx context.Context, key string) ([]T, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	data, err := s.fsService.ReadFile(ctx, s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to read payload for key %q: %w", key, err)
	}

	payload, err := s.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, state.NewDecodeError(fmt.Errorf("failed to decompress payload for key %q: %w", key, err))
	}

	var models []T
	if err := safejson.Unmarshal(payload, &models); err != nil {
		return nil, state.NewDecodeError(fmt.Errorf("failed to decode models for key %q: %w", key, err))
	}

	return models, nil
}

// Delete removes the models stored under key.
// Returns ErrNotFound when no file exists for the key.
func (s *FileStore[T]) Delete(ctx context.Context, key string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	path := s.pathFor(key)

	exists, err := s.fsService.PathExists(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to check payload for key %q: %w", key, err)
	}

	if !exists {
		return ErrNotFound
	}

	if err := s.fsService.Remove(ctx, path); err != nil {
		return fmt.Errorf("failed to remove payload for key %q: %w", key, err)
	}

	return nil
}

// pathFor maps a key to its file path under the root directory.
func (s *FileStore[T]) pathFor(key string) string {
	return filepath.Join(s.root, fmt.Sprintf("%016x.json.zst", xxhash.Sum64String(key)))
}
