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

package filesystem_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/statekit/pkg/filesystem"
)

var _ = Describe("DefaultService", func() {
	var (
		ctx     context.Context
		service *filesystem.DefaultService
		tmpDir  string
	)

	BeforeEach(func() {
		ctx = context.Background()
		service = filesystem.NewDefaultService()
		tmpDir = GinkgoT().TempDir()
	})

	Describe("EnsureDirectory", func() {
		It("creates nested directories", func() {
			path := filepath.Join(tmpDir, "a", "b", "c")

			Expect(service.EnsureDirectory(ctx, path)).To(Succeed())

			info, err := os.Stat(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})

		It("is a no-op for an existing directory", func() {
			Expect(service.EnsureDirectory(ctx, tmpDir)).To(Succeed())
		})
	})

	Describe("WriteFile and ReadFile", func() {
		It("round-trips file contents", func() {
			path := filepath.Join(tmpDir, "data.json")
			content := []byte(`{"key":"value"}`)

			Expect(service.WriteFile(ctx, path, content, 0644)).To(Succeed())

			read, err := service.ReadFile(ctx, path)
			Expect(err).ToNot(HaveOccurred())
			Expect(read).To(Equal(content))
		})

		It("returns an error for a missing file", func() {
			_, err := service.ReadFile(ctx, filepath.Join(tmpDir, "missing"))
			Expect(err).To(HaveOccurred())
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("refuses to run with a cancelled context", func() {
			cancelledCtx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := service.ReadFile(cancelledCtx, filepath.Join(tmpDir, "whatever"))
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Describe("PathExists", func() {
		It("reports true for existing paths and false for missing ones", func() {
			path := filepath.Join(tmpDir, "exists.txt")
			Expect(service.WriteFile(ctx, path, []byte("x"), 0644)).To(Succeed())

			exists, err := service.PathExists(ctx, path)
			Expect(err).ToNot(HaveOccurred())
			Expect(exists).To(BeTrue())

			exists, err = service.PathExists(ctx, filepath.Join(tmpDir, "missing"))
			Expect(err).ToNot(HaveOccurred())
			Expect(exists).To(BeFalse())
		})
	})

	Describe("Remove", func() {
		It("removes a file", func() {
			path := filepath.Join(tmpDir, "doomed.txt")
			Expect(service.WriteFile(ctx, path, []byte("x"), 0644)).To(Succeed())

			Expect(service.Remove(ctx, path)).To(Succeed())

			exists, err := service.PathExists(ctx, path)
			Expect(err).ToNot(HaveOccurred())
			Expect(exists).To(BeFalse())
		})

		It("fails for a missing path", func() {
			Expect(service.Remove(ctx, filepath.Join(tmpDir, "missing"))).ToNot(Succeed())
		})
	})

	Describe("Stat", func() {
		It("returns file info", func() {
			path := filepath.Join(tmpDir, "info.txt")
			Expect(service.WriteFile(ctx, path, []byte("abc"), 0644)).To(Succeed())

			info, err := service.Stat(ctx, path)
			Expect(err).ToNot(HaveOccurred())
			Expect(info.Size()).To(Equal(int64(3)))
		})
	})

	Describe("ReadDir", func() {
		It("lists directory entries", func() {
			Expect(service.WriteFile(ctx, filepath.Join(tmpDir, "one.txt"), []byte("1"), 0644)).To(Succeed())
			Expect(service.WriteFile(ctx, filepath.Join(tmpDir, "two.txt"), []byte("2"), 0644)).To(Succeed())

			entries, err := service.ReadDir(ctx, tmpDir)
			Expect(err).ToNot(HaveOccurred())
			Expect(entries).To(HaveLen(2))
		})
	})

	Describe("Rename", func() {
		It("moves a file atomically within the same directory", func() {
			oldPath := filepath.Join(tmpDir, "config.yaml.tmp")
			newPath := filepath.Join(tmpDir, "config.yaml")
			Expect(service.WriteFile(ctx, oldPath, []byte("version: 1"), 0644)).To(Succeed())

			Expect(service.Rename(ctx, oldPath, newPath)).To(Succeed())

			exists, err := service.PathExists(ctx, oldPath)
			Expect(err).ToNot(HaveOccurred())
			Expect(exists).To(BeFalse())

			content, err := service.ReadFile(ctx, newPath)
			Expect(err).ToNot(HaveOccurred())
			Expect(content).To(Equal([]byte("version: 1")))
		})
	})
})
