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
	"time"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/statekit/pkg/env"
	"github.com/united-manufacturing-hub/statekit/pkg/sentry"
)

// LoadConfigWithEnvOverrides loads the config file and applies environment
// variable overrides. It is used during application startup to combine the
// persistent config file with runtime settings passed via docker -e flags.
//
// Order of precedence (highest to lowest):
// 1. Environment variables (STATEKIT_*)
// 2. Existing config file values
// 3. Default values
//
// Recognized variables:
//
//	STATEKIT_PAGE_SIZE        page length for collection loads (integer)
//	STATEKIT_MAX_UNDO_STEPS   undo history capacity (integer)
//	STATEKIT_DEBOUNCE_MS      load debounce interval (integer milliseconds or a duration string)
//	STATEKIT_ENABLE_LOGGING   store operation logging (boolean)
//	STATEKIT_SERVER_ADDRESS   demo server listen address
//	STATEKIT_METRICS_ADDRESS  metrics endpoint listen address
//
// Only variables that are actually set override existing values; a variable
// that is set but malformed is reported and ignored.
//
// Important: This function has side effects! The resulting configuration is
// written back to the config file, so environment variables cause permanent
// changes. On subsequent runs these values become the baseline unless
// overridden again.
func LoadConfigWithEnvOverrides(ctx context.Context, configManager *FileConfigManager, log *zap.SugaredLogger) (FileConfig, error) {
	// Collect environment variables that can override config values
	pageSize, pageSizeSet := intOverride(log, "STATEKIT_PAGE_SIZE")
	maxUndoSteps, maxUndoStepsSet := intOverride(log, "STATEKIT_MAX_UNDO_STEPS")
	debounceInterval, debounceSet := durationOverride(log, "STATEKIT_DEBOUNCE_MS")
	enableLogging, enableLoggingSet := boolOverride(log, "STATEKIT_ENABLE_LOGGING")

	serverAddress, err := env.GetAsString("STATEKIT_SERVER_ADDRESS", false, "")
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Failed to get STATEKIT_SERVER_ADDRESS: %v", err)
	}

	metricsAddress, err := env.GetAsString("STATEKIT_METRICS_ADDRESS", false, "")
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Failed to get STATEKIT_METRICS_ADDRESS: %v", err)
	}

	// Apply the environment overrides to the config, creating the file with
	// defaults first if it does not exist yet.
	var result FileConfig

	err = configManager.AtomicUpdateConfig(ctx, func(config *FileConfig) error {
		if pageSizeSet {
			config.Defaults.PageSize = pageSize
		}

		if maxUndoStepsSet {
			config.Defaults.MaxUndoSteps = maxUndoSteps
		}

		if debounceSet {
			config.Defaults.DebounceInterval = debounceInterval
		}

		if enableLoggingSet {
			config.Defaults.EnableLogging = enableLogging
		}

		if serverAddress != "" {
			config.Server.Address = serverAddress
		}

		if metricsAddress != "" {
			config.Server.MetricsAddress = metricsAddress
		}

		config.Defaults = config.Defaults.Normalize()
		result = config.Clone()

		return nil
	})
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to load config with environment overrides: %w", err)
	}

	return result, nil
}

// intOverride reads an optional integer override. The second return value is
// false when the variable is unset or malformed; malformed values are
// reported.
func intOverride(log *zap.SugaredLogger, key string) (int, bool) {
	raw, err := env.GetAsString(key, false, "")
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Failed to get %s: %v", key, err)

		return 0, false
	}

	if raw == "" {
		return 0, false
	}

	value, err := env.GetAsInt(key, true, 0)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Ignoring %s: %v", key, err)

		return 0, false
	}

	return value, true
}

// durationOverride reads an optional duration override. Plain integers are
// interpreted as milliseconds.
func durationOverride(log *zap.SugaredLogger, key string) (time.Duration, bool) {
	raw, err := env.GetAsString(key, false, "")
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Failed to get %s: %v", key, err)

		return 0, false
	}

	if raw == "" {
		return 0, false
	}

	value, err := env.GetAsDuration(key, true, 0)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Ignoring %s: %v", key, err)

		return 0, false
	}

	return value, true
}

// boolOverride reads an optional boolean override.
func boolOverride(log *zap.SugaredLogger, key string) (bool, bool) {
	raw, err := env.GetAsString(key, false, "")
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Failed to get %s: %v", key, err)

		return false, false
	}

	if raw == "" {
		return false, false
	}

	value, err := env.GetAsBool(key, true, false)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Ignoring %s: %v", key, err)

		return false, false
	}

	return value, true
}
