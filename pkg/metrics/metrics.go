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

package metrics

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/united-manufacturing-hub/statekit/pkg/logger"
	"github.com/united-manufacturing-hub/statekit/pkg/sentry"
	"go.uber.org/zap"
)

const (
	// Component Labels.
	ComponentStore      = "store"
	ComponentCollection = "collection"
	ComponentLifecycle  = "lifecycle"
	ComponentSupervisor = "supervisor"
	ComponentRetry      = "retry"
	// I/O.
	ComponentDataSource  = "data_source"
	ComponentPersistence = "persistence"
	// Configuration.
	ComponentConfigManager = "config_manager"
)

const (
	// Result Labels for loads_total.
	ResultSuccess    = "success"
	ResultFailure    = "failure"
	ResultCancelled  = "cancelled"
	ResultSuperseded = "superseded"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "statekit"
	subsystem = "core"

	// Error counters.
	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors encountered by component",
		},
		[]string{"component", "instance"},
	)

	// Load outcomes.
	loadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "loads_total",
			Help:      "Total number of load operations by outcome",
		},
		[]string{"component", "instance", "result"},
	)

	// Load timing.
	loadTime = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "load_duration_milliseconds",
			Help:      "Time taken to complete a load including retries (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01, // 50th percentile with 1% error
				0.9:  0.01, // 90th percentile with 1% error
				0.95: 0.01, // 95th percentile with 1% error
				0.99: 0.01, // 99th percentile with 1% error
			},
		},
		[]string{"component", "instance"},
	)

	// Retry activity.
	retryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts after a failed first try",
		},
		[]string{"component", "instance"},
	)

	// Supervisor registry.
	tasksInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_in_flight",
			Help:      "Number of tasks currently registered per supervisor",
		},
		[]string{"component", "instance"},
	)

	tasksSuperseded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_superseded_total",
			Help:      "Total number of tasks cancelled because a newer task took their key",
		},
		[]string{"component", "instance"},
	)

	// Optimistic mutation path.
	optimisticUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "optimistic_updates_total",
			Help:      "Total number of optimistic mutation operations by type",
		},
		[]string{"component", "instance", "operation"},
	)

	historyDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "history_depth",
			Help:      "Number of undo snapshots currently retained",
		},
		[]string{"component", "instance"},
	)

	// Store phase.
	storePhase = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_phase",
			Help:      "Current phase of the store (0=Idle, 1=Loading, 2=Success, 3=Failure, -1=Unknown)",
		},
		[]string{"component", "instance"},
	)

	// Filesystem operations.
	filesystemOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "filesystem_ops_total",
			Help:      "Total number of filesystem operations by type and status",
		},
		[]string{"operation", "status"},
	)

	filesystemOpTime = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "filesystem_op_duration_milliseconds",
			Help:      "Time taken to complete a filesystem operation (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01, // 50th percentile with 1% error
				0.9:  0.01, // 90th percentile with 1% error
				0.95: 0.01, // 95th percentile with 1% error
				0.99: 0.01, // 99th percentile with 1% error
			},
		},
		[]string{"operation"},
	)
)

// SetupMetricsEndpoint starts an HTTP server to expose metrics
// This should be called once at application startup.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.ReportIssue(err, sentry.IssueTypeFatal, logger.For("metrics"))
		}
	}()

	return server
}

// printDetailedStackTrace prints a detailed stack trace with more information.
func printDetailedStackTrace() {
	// Get stack trace for all goroutines with a large buffer
	buf := make([]byte, 1024*1024) // Allocate 1MB buffer
	n := runtime.Stack(buf, true)

	// Print the full stack trace
	logger.For("stacktrace").Debugf("=== DETAILED STACK TRACE ===\n%s", string(buf[:n]))
}

// IncErrorCountAndLog increments the error counter for a component and logs a debug message if a logger is provided.
func IncErrorCountAndLog(component, instance string, err error, logger *zap.SugaredLogger) {
	IncErrorCount(component, instance)

	if logger != nil {
		// Display detailed stacktrace
		printDetailedStackTrace()
		logger.Debugf("Component %s instance %s failed: %v", component, instance, err)
	}
}

// IncErrorCount increments the error counter for a component.
func IncErrorCount(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Inc()
}

// InitErrorCounter initializes the error counter for a component.
func InitErrorCounter(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Add(0)
}

// IncLoadResult counts one finished load with the given result label.
func IncLoadResult(component, instance, result string) {
	loadsTotal.WithLabelValues(component, instance, result).Inc()
}

// ObserveLoadTime records the time taken for a load including retries.
func ObserveLoadTime(component, instance string, duration time.Duration) {
	loadTime.WithLabelValues(component, instance).Observe(float64(duration.Milliseconds()))
}

// IncRetryAttempt counts one retry after a failed attempt.
func IncRetryAttempt(component, instance string) {
	retryAttempts.WithLabelValues(component, instance).Inc()
}

// SetTasksInFlight records how many tasks a supervisor currently tracks.
func SetTasksInFlight(component, instance string, count int) {
	tasksInFlight.WithLabelValues(component, instance).Set(float64(count))
}

// IncTaskSuperseded counts a task cancelled by a newer task on its key.
func IncTaskSuperseded(component, instance string) {
	tasksSuperseded.WithLabelValues(component, instance).Inc()
}

// IncOptimisticUpdate counts one optimistic mutation operation
// (update, batch_update, commit, discard).
func IncOptimisticUpdate(component, instance, operation string) {
	optimisticUpdates.WithLabelValues(component, instance, operation).Inc()
}

// SetHistoryDepth records how many undo snapshots a store retains.
func SetHistoryDepth(component, instance string, depth int) {
	historyDepth.WithLabelValues(component, instance).Set(float64(depth))
}

// SetStorePhase records the store phase as a numeric gauge value.
func SetStorePhase(component, instance, phase string) {
	storePhase.WithLabelValues(component, instance).Set(phaseValue(phase))
}

// phaseValue maps a phase label to its gauge encoding.
func phaseValue(phase string) float64 {
	switch phase {
	case "idle":
		return 0
	case "loading":
		return 1
	case "success":
		return 2
	case "failure":
		return 3
	default:
		return -1
	}
}

// RecordFilesystemOp records one filesystem operation with its outcome and duration.
func RecordFilesystemOp(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	filesystemOps.WithLabelValues(operation, status).Inc()
	filesystemOpTime.WithLabelValues(operation).Observe(float64(duration.Milliseconds()))
}
