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

// Package supervisor executes at most one operation per logical key.
//
// Starting an operation for a key that already has one in flight cancels the
// older operation first (single-flight with supersession). Each operation gets
// its own task id, so a superseded operation that finishes late cannot disturb
// the bookkeeping of the operation that replaced it.
//
// The supervisor holds its lock only for registry bookkeeping, never while an
// operation runs.
package supervisor

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/statekit/pkg/logger"
	"github.com/united-manufacturing-hub/statekit/pkg/metrics"
)

// Priority describes the caller's urgency. It is diagnostic only: it shows up
// in logs and has no influence on scheduling.
type Priority string

const (
	PriorityBackground    Priority = "background"
	PriorityDefault       Priority = "default"
	PriorityUserInitiated Priority = "user_initiated"
)

type handle struct {
	id       uuid.UUID
	cancel   context.CancelFunc
	priority Priority
}

// Supervisor tracks in-flight operations by key.
type Supervisor struct {
	log   *zap.SugaredLogger
	tasks map[string]handle
	name  string
	mu    sync.Mutex
}

// New creates a supervisor. name is used for logs and metrics. A nil log
// falls back to the package's shared supervisor logger.
func New(name string, log *zap.SugaredLogger) *Supervisor {
	if log == nil {
		log = logger.For(logger.ComponentSupervisor)
	}

	metrics.InitErrorCounter(metrics.ComponentSupervisor, name)

	return &Supervisor{
		log:   log,
		tasks: make(map[string]handle),
		name:  name,
	}
}

// Run executes op under the given key, cancelling any operation already
// running for that key. op runs on the calling goroutine with a context that
// is cancelled when the caller's ctx is cancelled, when the key is cancelled
// explicitly, or when a later Run supersedes this one.
//
// Run returns op's error unchanged. A superseded operation observes its
// context cancellation through ctx and its result is not applied by callers
// that honor that contract.
func (s *Supervisor) Run(ctx context.Context, key string, priority Priority, op func(context.Context) error) error {
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	id := uuid.New()

	s.mu.Lock()
	if old, ok := s.tasks[key]; ok {
		old.cancel()
		delete(s.tasks, key)
		metrics.IncTaskSuperseded(metrics.ComponentSupervisor, s.name)
		s.log.Debugw("Superseding in-flight task", "supervisor", s.name, "key", key, "old_task_id", old.id, "new_task_id", id)
	}

	s.tasks[key] = handle{id: id, cancel: cancel, priority: priority}
	metrics.SetTasksInFlight(metrics.ComponentSupervisor, s.name, len(s.tasks))
	s.mu.Unlock()

	s.log.Debugw("Task started", "supervisor", s.name, "key", key, "task_id", id, "priority", priority)

	err := op(taskCtx)

	s.mu.Lock()
	// Only remove our own registration. If a newer task took over the key,
	// its handle must stay untouched.
	if current, ok := s.tasks[key]; ok && current.id == id {
		delete(s.tasks, key)
	}

	metrics.SetTasksInFlight(metrics.ComponentSupervisor, s.name, len(s.tasks))
	s.mu.Unlock()

	if err != nil {
		s.log.Debugw("Task finished with error", "supervisor", s.name, "key", key, "task_id", id, "error", err)
	} else {
		s.log.Debugw("Task finished", "supervisor", s.name, "key", key, "task_id", id)
	}

	return err
}

// Cancel cancels and removes the operation running under key, if any.
// It reports whether an operation was cancelled.
func (s *Supervisor) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.tasks[key]
	if !ok {
		return false
	}

	old.cancel()
	delete(s.tasks, key)
	metrics.SetTasksInFlight(metrics.ComponentSupervisor, s.name, len(s.tasks))
	s.log.Debugw("Task cancelled", "supervisor", s.name, "key", key, "task_id", old.id)

	return true
}

// CancelAll cancels and removes every in-flight operation.
func (s *Supervisor) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, old := range s.tasks {
		old.cancel()
		delete(s.tasks, key)
		s.log.Debugw("Task cancelled", "supervisor", s.name, "key", key, "task_id", old.id)
	}

	metrics.SetTasksInFlight(metrics.ComponentSupervisor, s.name, len(s.tasks))
}

// InFlight reports whether an operation is currently registered for key.
func (s *Supervisor) InFlight(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.tasks[key]

	return ok
}

// Len returns the number of in-flight operations.
func (s *Supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.tasks)
}
