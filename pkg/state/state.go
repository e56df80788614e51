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

// Package state defines the lifecycle value published by the stores: an
// immutable tagged union over idle, loading, success and failure, plus the
// closed error taxonomy those failures carry.
package state

// Phase names one variant of the lifecycle union. The values double as the
// store phase machine's state names and as metric label values.
type Phase string

const (
	// PhaseIdle means no load has been requested yet.
	PhaseIdle Phase = "idle"
	// PhaseLoading means a load is in flight. The previous good value, if
	// any, stays readable.
	PhaseLoading Phase = "loading"
	// PhaseSuccess means the last load produced a value.
	PhaseSuccess Phase = "success"
	// PhaseFailure means the last load failed terminally. The previous good
	// value, if any, stays readable.
	PhaseFailure Phase = "failure"
)

// State is an immutable description of one piece of derived data. Loading
// and failure retain the last known good value so consumers can keep
// rendering stale-but-valid data during reloads and errors.
//
// Values are constructed and transitioned exclusively by the stores; treat
// them as read-only.
type State[T any] struct {
	err      error
	value    T
	phase    Phase
	hasValue bool
}

// Idle returns the initial state: no value, no error.
func Idle[T any]() State[T] {
	return State[T]{phase: PhaseIdle}
}

// Loading returns a loading state that carries forward the last known good
// value of previous, if it has one.
func Loading[T any](previous State[T]) State[T] {
	return State[T]{
		phase:    PhaseLoading,
		value:    previous.value,
		hasValue: previous.hasValue,
	}
}

// Success returns a success state holding value.
func Success[T any](value T) State[T] {
	return State[T]{
		phase:    PhaseSuccess,
		value:    value,
		hasValue: true,
	}
}

// Failure returns a failure state that records err and carries forward the
// last known good value of previous, if it has one.
func Failure[T any](err error, previous State[T]) State[T] {
	return State[T]{
		phase:    PhaseFailure,
		err:      err,
		value:    previous.value,
		hasValue: previous.hasValue,
	}
}

// Phase returns which variant this state is.
func (s State[T]) Phase() Phase {
	return s.phase
}

// Data returns the best available value and whether one exists. It reports
// the carried-forward value during loading and failure; only idle (or a
// lifecycle that never produced a value) has none.
func (s State[T]) Data() (T, bool) {
	return s.value, s.hasValue
}

// Err returns the recorded error. Only failure states carry one.
func (s State[T]) Err() error {
	return s.err
}

// IsIdle reports whether the state is idle.
func (s State[T]) IsIdle() bool {
	return s.phase == PhaseIdle
}

// IsLoading reports whether a load is in flight.
func (s State[T]) IsLoading() bool {
	return s.phase == PhaseLoading
}

// IsSuccess reports whether the last load succeeded.
func (s State[T]) IsSuccess() bool {
	return s.phase == PhaseSuccess
}

// IsFailure reports whether the last load failed.
func (s State[T]) IsFailure() bool {
	return s.phase == PhaseFailure
}

// String returns the phase label.
func (s State[T]) String() string {
	return string(s.phase)
}
