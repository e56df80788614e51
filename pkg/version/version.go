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

// Package version reports the build version of the running binary.
package version

import (
	"github.com/united-manufacturing-hub/statekit/pkg/constants"
	"github.com/united-manufacturing-hub/statekit/pkg/env"
)

// appVersion is stamped by the release pipeline:
//
//	go build -ldflags "-X github.com/united-manufacturing-hub/statekit/pkg/version.appVersion=$(VERSION)"
var appVersion = ""

// GetAppVersion returns the stamped build version, the APP_VERSION
// environment variable when the binary was not stamped, and the development
// default when neither is set. Issue reporting stays disabled for the
// development default.
func GetAppVersion() string {
	if appVersion != "" {
		return appVersion
	}

	fromEnv, err := env.GetAsString("APP_VERSION", false, constants.DefaultAppVersion)
	if err != nil || fromEnv == "" {
		return constants.DefaultAppVersion
	}

	return fromEnv
}
