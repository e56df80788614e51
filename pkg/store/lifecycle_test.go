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

package store

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"

	"github.com/united-manufacturing-hub/statekit/pkg/metrics"
	"github.com/united-manufacturing-hub/statekit/pkg/state"
)

var _ = Describe("Phase machine", func() {
	var (
		ctx     context.Context
		machine *lifecycle
	)

	BeforeEach(func() {
		ctx = context.Background()
		machine = newLifecycle("lifecycle-test", metrics.ComponentStore, zaptest.NewLogger(GinkgoT()).Sugar())
	})

	It("starts idle", func() {
		Expect(machine.phase()).To(Equal(state.PhaseIdle))
	})

	It("walks the full load cycle", func() {
		Expect(machine.toLoading(ctx)).To(Succeed())
		Expect(machine.phase()).To(Equal(state.PhaseLoading))

		Expect(machine.toSuccess(ctx)).To(Succeed())
		Expect(machine.phase()).To(Equal(state.PhaseSuccess))

		Expect(machine.toLoading(ctx)).To(Succeed())
		Expect(machine.toFailure(ctx)).To(Succeed())
		Expect(machine.phase()).To(Equal(state.PhaseFailure))

		Expect(machine.toLoading(ctx)).To(Succeed())
		Expect(machine.phase()).To(Equal(state.PhaseLoading))
	})

	It("refuses success from idle", func() {
		err := machine.toSuccess(ctx)
		Expect(err).To(HaveOccurred())
		Expect(machine.phase()).To(Equal(state.PhaseIdle))
	})

	It("refuses failure from idle", func() {
		err := machine.toFailure(ctx)
		Expect(err).To(HaveOccurred())
		Expect(machine.phase()).To(Equal(state.PhaseIdle))
	})

	It("refuses success from success", func() {
		Expect(machine.toLoading(ctx)).To(Succeed())
		Expect(machine.toSuccess(ctx)).To(Succeed())

		err := machine.toSuccess(ctx)
		Expect(err).To(HaveOccurred())
		Expect(machine.phase()).To(Equal(state.PhaseSuccess))
	})

	It("treats a load during loading as a no-op", func() {
		Expect(machine.toLoading(ctx)).To(Succeed())
		Expect(machine.toLoading(ctx)).To(Succeed())
		Expect(machine.phase()).To(Equal(state.PhaseLoading))
	})

	It("refuses transitions on a cancelled context", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		Expect(machine.toLoading(cancelled)).To(MatchError(context.Canceled))
		Expect(machine.phase()).To(Equal(state.PhaseIdle))
	})
})
