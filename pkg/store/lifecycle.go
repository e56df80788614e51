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
	"fmt"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/statekit/pkg/metrics"
	"github.com/united-manufacturing-hub/statekit/pkg/sentry"
	"github.com/united-manufacturing-hub/statekit/pkg/state"
)

// Phase machine events.
const (
	eventLoad    = "load"
	eventSucceed = "succeed"
	eventFail    = "fail"
)

// lifecycle gates every phase change of a store through a state machine:
// load is legal from any phase, succeed and fail only from loading. Illegal
// transitions are refused and reported; the machine is the only place phase
// legality is decided.
//
// Methods are not self-synchronizing. The owning store calls them under its
// write lock, which also keeps the machine in step with the published state
// value.
type lifecycle struct {
	machine *fsm.FSM
	log     *zap.SugaredLogger
	name    string
	kind    string
}

// newLifecycle creates a machine starting in idle. name is the store
// instance, kind the metrics component the phase gauge is filed under.
func newLifecycle(name string, kind string, log *zap.SugaredLogger) *lifecycle {
	l := &lifecycle{
		log:  log,
		name: name,
		kind: kind,
	}

	l.machine = fsm.NewFSM(
		string(state.PhaseIdle),
		fsm.Events{
			{Name: eventLoad, Src: []string{
				string(state.PhaseIdle),
				string(state.PhaseLoading),
				string(state.PhaseSuccess),
				string(state.PhaseFailure),
			}, Dst: string(state.PhaseLoading)},
			{Name: eventSucceed, Src: []string{string(state.PhaseLoading)}, Dst: string(state.PhaseSuccess)},
			{Name: eventFail, Src: []string{string(state.PhaseLoading)}, Dst: string(state.PhaseFailure)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				l.log.Debugw("Phase transition", "store", l.name, "event", e.Event, "from", e.Src, "to", e.Dst)
				metrics.SetStorePhase(l.kind, l.name, e.Dst)
			},
		},
	)

	metrics.SetStorePhase(kind, name, string(state.PhaseIdle))

	return l
}

// toLoading fires the load event. A load that supersedes another load keeps
// the phase; looplab/fsm treats self-transitions as NoTransitionError by
// design, so the machine is not fired when already loading.
func (l *lifecycle) toLoading(ctx context.Context) error {
	if l.machine.Current() == string(state.PhaseLoading) {
		return nil
	}

	return l.fire(ctx, eventLoad)
}

// toSuccess fires the succeed event. Legal only while loading.
func (l *lifecycle) toSuccess(ctx context.Context) error {
	return l.fire(ctx, eventSucceed)
}

// toFailure fires the fail event. Legal only while loading.
func (l *lifecycle) toFailure(ctx context.Context) error {
	return l.fire(ctx, eventFail)
}

// phase returns the machine's current phase.
func (l *lifecycle) phase() state.Phase {
	return state.Phase(l.machine.Current())
}

func (l *lifecycle) fire(ctx context.Context, event string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := l.machine.Event(ctx, event); err != nil {
		sentry.ReportStoreErrorf(l.log, l.name, l.kind, "phase_transition", "Refused event %q from phase %q: %v", event, l.machine.Current(), err)

		return fmt.Errorf("refused phase transition %q from %q: %w", event, l.machine.Current(), err)
	}

	return nil
}
