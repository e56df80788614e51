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

package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/united-manufacturing-hub/statekit/pkg/constants"
	"github.com/united-manufacturing-hub/statekit/pkg/ctxutil"
	"github.com/united-manufacturing-hub/statekit/pkg/logger"
	"github.com/united-manufacturing-hub/statekit/pkg/safejson"
	"github.com/united-manufacturing-hub/statekit/pkg/sentry"
	"github.com/united-manufacturing-hub/statekit/pkg/state"
	"go.uber.org/zap"
)

// minimumRequestTime is the least context budget worth starting a request
// with. Below it the round trip would almost certainly be cut off mid-flight,
// so we fail fast instead of wasting a connection.
const minimumRequestTime = 50 * time.Millisecond

// maxErrorBodyBytes caps how much of an error response body ends up in the
// returned error message.
const maxErrorBodyBytes = 256

// HTTP fetches model slices from a JSON endpoint with GET requests.
//
// The full collection lives at the base URL; pages are requested with
// "page" and "pageSize" query parameters. Every call is exactly one
// request, and every failure comes back classified:
//
//   - 404 maps to state.ErrNotFound
//   - 401 and 403 map to state.ErrUnauthorized
//   - any other non-2xx status and all transport failures map to KindNetwork
//   - undecodable bodies map to KindDecode
//   - context cancellation maps to KindCancelled
type HTTP[T any] struct {
	client  *http.Client
	log     *zap.SugaredLogger
	baseURL string
}

// NewHTTP creates a source for the given base URL. A trailing slash is
// stripped so page URLs compose cleanly.
func NewHTTP[T any](baseURL string) *HTTP[T] {
	return &HTTP[T]{
		client:  &http.Client{Timeout: constants.DefaultDataSourceTimeout},
		log:     logger.For(logger.ComponentDataSource),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// WithClient replaces the HTTP client. Mainly used to inject intercepted
// clients in tests and clients with custom transports in production.
func (h *HTTP[T]) WithClient(client *http.Client) *HTTP[T] {
	h.client = client

	return h
}

// WithLogger replaces the logger.
func (h *HTTP[T]) WithLogger(log *zap.SugaredLogger) *HTTP[T] {
	h.log = log

	return h
}

// Fetch returns the full collection from the base URL.
func (h *HTTP[T]) Fetch(ctx context.Context) ([]T, error) {
	return h.get(ctx, h.baseURL, "fetch")
}

// FetchPage returns one zero-based page via query parameters.
func (h *HTTP[T]) FetchPage(ctx context.Context, page int, pageSize int) ([]T, error) {
	url := fmt.Sprintf("%s?page=%d&pageSize=%d", h.baseURL, page, pageSize)

	return h.get(ctx, url, "fetch_page")
}

// get performs a single GET request against url and decodes the JSON
// response body into a model slice.
func (h *HTTP[T]) get(ctx context.Context, url string, operation string) ([]T, error) {
	remaining, sufficient, err := ctxutil.HasSufficientTime(ctx, minimumRequestTime)
	if err == nil && !sufficient {
		return nil, state.NewCancelledError(fmt.Errorf("%w: %s left for %s", ctxutil.ErrInsufficientTime, remaining, operation))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, state.NewNetworkError(fmt.Errorf("failed to build request for %s: %w", url, err))
	}

	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, state.NewCancelledError(ctx.Err())
		}

		sentry.ReportSourceErrorf(h.log, "http", operation, "request to %s failed: %v", url, err)

		return nil, state.NewNetworkError(fmt.Errorf("request to %s failed: %w", url, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, state.NewCancelledError(ctx.Err())
		}

		sentry.ReportSourceErrorf(h.log, "http", operation, "failed to read response from %s: %v", url, err)

		return nil, state.NewNetworkError(fmt.Errorf("failed to read response from %s: %w", url, err))
	}

	if err := h.classifyStatus(resp.StatusCode, resp.Status, body, url, operation); err != nil {
		return nil, err
	}

	var models []T
	if err := safejson.Unmarshal(body, &models); err != nil {
		sentry.ReportSourceErrorf(h.log, "http", operation, "failed to decode response from %s: %v", url, err)

		return nil, state.NewDecodeError(fmt.Errorf("failed to decode response from %s: %w", url, err))
	}

	h.log.Debugf("Fetched %d models from %s", len(models), url)

	return models, nil
}

// classifyStatus maps a non-2xx response onto the error kind callers switch
// on. Missing and unauthorized resources are expected conditions and are not
// reported as issues.
func (h *HTTP[T]) classifyStatus(code int, status string, body []byte, url string, operation string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return state.ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return state.ErrUnauthorized
	default:
		sentry.ReportSourceErrorf(h.log, "http", operation, "unexpected status %s from %s", status, url)

		return state.NewNetworkError(fmt.Errorf("unexpected status %s from %s: %s", status, url, trimBody(body)))
	}
}

// trimBody shortens an error response body for inclusion in error messages.
func trimBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > maxErrorBodyBytes {
		return trimmed[:maxErrorBodyBytes] + "..."
	}

	return trimmed
}
