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

package ctxrwmutex_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/statekit/pkg/ctxutil/ctxrwmutex"
)

var _ = Describe("CtxRWMutex", func() {
	var mutex *ctxrwmutex.CtxRWMutex

	BeforeEach(func() {
		mutex = ctxrwmutex.NewCtxRWMutex()
	})

	It("should allow multiple concurrent readers", func() {
		ctx := context.Background()

		Expect(mutex.RLock(ctx)).To(Succeed())
		Expect(mutex.RLock(ctx)).To(Succeed())
		Expect(mutex.RLock(ctx)).To(Succeed())

		mutex.RUnlock()
		mutex.RUnlock()
		mutex.RUnlock()
	})

	It("should block writers while a reader holds the lock", func() {
		Expect(mutex.RLock(context.Background())).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := mutex.Lock(ctx)
		Expect(err).To(MatchError(context.DeadlineExceeded))

		mutex.RUnlock()
	})

	It("should block readers while a writer holds the lock", func() {
		Expect(mutex.Lock(context.Background())).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := mutex.RLock(ctx)
		Expect(err).To(MatchError(context.DeadlineExceeded))

		mutex.Unlock()
	})

	It("should admit readers again after a writer releases", func() {
		Expect(mutex.Lock(context.Background())).To(Succeed())
		mutex.Unlock()

		Expect(mutex.RLock(context.Background())).To(Succeed())
		mutex.RUnlock()
	})

	It("should fail to write-lock when the context is already cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := mutex.Lock(ctx)
		Expect(err).To(MatchError(context.Canceled))
	})
})
