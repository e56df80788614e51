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

package constants

import "time"

const (
	// AppName is the name used in releases, logs and metric namespaces.
	AppName = "statekit"

	// DefaultAppVersion is the version reported by local builds that were
	// not stamped via ldflags. Sentry reporting stays disabled for it.
	DefaultAppVersion = "0.0.0-dev"

	// DefaultDevelopmentEnvironment marks prerelease builds in issue reports.
	DefaultDevelopmentEnvironment = "development"

	// DefaultProductionEnvironment marks tagged release builds in issue reports.
	DefaultProductionEnvironment = "production"
)

const (
	// AmountConcurrentReaders defines how many readers can hold a context
	// aware RWMutex at the same time. It is more a safety net to prevent a
	// single reader from starving writers; the actual number does not really
	// matter, it should be "high enough".
	AmountConcurrentReaders = 100

	// DefaultConfigAccessTimeout bounds how long config reads may wait for
	// the config lock before giving up.
	DefaultConfigAccessTimeout = 100 * time.Millisecond

	// DefaultDataSourceTimeout bounds a single HTTP fetch. Retries on top of
	// it are the retry executor's job.
	DefaultDataSourceTimeout = 10 * time.Second

	// DefaultCacheTTL is how long a cached fetch result stays valid.
	DefaultCacheTTL = 30 * time.Second

	// DefaultCacheCullInterval is how often expired cache entries are swept.
	DefaultCacheCullInterval = 10 * time.Second
)

const (
	// DefaultConfigPath is where the demo binary looks for its config file.
	DefaultConfigPath = "data/config.yaml"

	// DefaultServerAddress is the demo binary's HTTP listen address.
	DefaultServerAddress = ":8080"

	// DefaultMetricsAddress is the standalone metrics listener address.
	DefaultMetricsAddress = ":9090"
)
