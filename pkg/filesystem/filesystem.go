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

package filesystem

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/united-manufacturing-hub/statekit/pkg/metrics"
)

// DefaultService is the default implementation of Service.
//
// Every operation runs the actual syscall in a goroutine and waits for either
// its completion or the context, so a stalled filesystem cannot hold a caller
// past its deadline. A cancelled operation may still complete in the
// background; callers must treat a context error as "outcome unknown".
type DefaultService struct{}

// NewDefaultService creates a new DefaultService.
func NewDefaultService() *DefaultService {
	return &DefaultService{}
}

// checkContext checks if the context is done before proceeding with an operation.
func (s *DefaultService) checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// EnsureDirectory creates a directory if it doesn't exist.
func (s *DefaultService) EnsureDirectory(ctx context.Context, path string) error {
	start := time.Now()
	if err := s.checkContext(ctx); err != nil {
		return fmt.Errorf("failed to check context: %w", err)
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- os.MkdirAll(path, 0755)
	}()

	select {
	case err := <-errCh:
		metrics.RecordFilesystemOp("EnsureDirectory", time.Since(start), err)
		if err != nil {
			return fmt.Errorf("failed to create directory %s: %w", path, err)
		}

		return nil
	case <-ctx.Done():
		err := ctx.Err()
		metrics.RecordFilesystemOp("EnsureDirectory", time.Since(start), err)

		return err
	}
}

// ReadFile reads a file's contents respecting the context.
func (s *DefaultService) ReadFile(ctx context.Context, path string) ([]byte, error) {
	start := time.Now()
	if err := s.checkContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to check context: %w", err)
	}

	type result struct {
		err  error
		data []byte
	}

	resCh := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(path)
		resCh <- result{err: err, data: data}
	}()

	select {
	case res := <-resCh:
		metrics.RecordFilesystemOp("ReadFile", time.Since(start), res.err)
		if res.err != nil {
			return nil, res.err
		}

		return res.data, nil
	case <-ctx.Done():
		err := ctx.Err()
		metrics.RecordFilesystemOp("ReadFile", time.Since(start), err)

		return nil, err
	}
}

// WriteFile writes data to a file respecting the context.
func (s *DefaultService) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	start := time.Now()
	if err := s.checkContext(ctx); err != nil {
		return fmt.Errorf("failed to check context: %w", err)
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- os.WriteFile(path, data, perm)
	}()

	select {
	case err := <-errCh:
		metrics.RecordFilesystemOp("WriteFile", time.Since(start), err)
		if err != nil {
			return fmt.Errorf("failed to write file %s: %w", path, err)
		}

		return nil
	case <-ctx.Done():
		err := ctx.Err()
		metrics.RecordFilesystemOp("WriteFile", time.Since(start), err)

		return err
	}
}

// PathExists checks if a file or directory exists at the given path.
func (s *DefaultService) PathExists(ctx context.Context, path string) (bool, error) {
	start := time.Now()
	if err := s.checkContext(ctx); err != nil {
		return false, fmt.Errorf("failed to check context: %w", err)
	}

	type result struct {
		err    error
		exists bool
	}

	resCh := make(chan result, 1)

	go func() {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			resCh <- result{exists: true}
		case os.IsNotExist(err):
			resCh <- result{exists: false}
		default:
			resCh <- result{err: err}
		}
	}()

	select {
	case res := <-resCh:
		metrics.RecordFilesystemOp("PathExists", time.Since(start), res.err)
		if res.err != nil {
			return false, fmt.Errorf("failed to check if path exists %s: %w", path, res.err)
		}

		return res.exists, nil
	case <-ctx.Done():
		err := ctx.Err()
		metrics.RecordFilesystemOp("PathExists", time.Since(start), err)

		return false, err
	}
}

// Remove removes a file or directory.
func (s *DefaultService) Remove(ctx context.Context, path string) error {
	start := time.Now()
	if err := s.checkContext(ctx); err != nil {
		return fmt.Errorf("failed to check context: %w", err)
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- os.Remove(path)
	}()

	select {
	case err := <-errCh:
		metrics.RecordFilesystemOp("Remove", time.Since(start), err)
		if err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}

		return nil
	case <-ctx.Done():
		err := ctx.Err()
		metrics.RecordFilesystemOp("Remove", time.Since(start), err)

		return err
	}
}

// Stat returns file info.
func (s *DefaultService) Stat(ctx context.Context, path string) (os.FileInfo, error) {
	start := time.Now()
	if err := s.checkContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to check context: %w", err)
	}

	type result struct {
		err  error
		info os.FileInfo
	}

	resCh := make(chan result, 1)

	go func() {
		info, err := os.Stat(path)
		resCh <- result{err: err, info: info}
	}()

	select {
	case res := <-resCh:
		metrics.RecordFilesystemOp("Stat", time.Since(start), res.err)
		if res.err != nil {
			return nil, res.err
		}

		return res.info, nil
	case <-ctx.Done():
		err := ctx.Err()
		metrics.RecordFilesystemOp("Stat", time.Since(start), err)

		return nil, err
	}
}

// ReadDir reads a directory, returning all its directory entries.
func (s *DefaultService) ReadDir(ctx context.Context, path string) ([]os.DirEntry, error) {
	start := time.Now()
	if err := s.checkContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to check context: %w", err)
	}

	type result struct {
		err     error
		entries []os.DirEntry
	}

	resCh := make(chan result, 1)

	go func() {
		entries, err := os.ReadDir(path)
		resCh <- result{err: err, entries: entries}
	}()

	select {
	case res := <-resCh:
		metrics.RecordFilesystemOp("ReadDir", time.Since(start), res.err)
		if res.err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", path, res.err)
		}

		return res.entries, nil
	case <-ctx.Done():
		err := ctx.Err()
		metrics.RecordFilesystemOp("ReadDir", time.Since(start), err)

		return nil, err
	}
}

// Rename renames (moves) a file or directory from oldPath to newPath.
func (s *DefaultService) Rename(ctx context.Context, oldPath, newPath string) error {
	start := time.Now()
	if err := s.checkContext(ctx); err != nil {
		return fmt.Errorf("failed to check context: %w", err)
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- os.Rename(oldPath, newPath)
	}()

	select {
	case err := <-errCh:
		metrics.RecordFilesystemOp("Rename", time.Since(start), err)
		if err != nil {
			return fmt.Errorf("failed to rename %s to %s: %w", oldPath, newPath, err)
		}

		return nil
	case <-ctx.Done():
		err := ctx.Err()
		metrics.RecordFilesystemOp("Rename", time.Since(start), err)

		return err
	}
}
