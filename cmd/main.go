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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/statekit/pkg/config"
	"github.com/united-manufacturing-hub/statekit/pkg/constants"
	"github.com/united-manufacturing-hub/statekit/pkg/datasource"
	"github.com/united-manufacturing-hub/statekit/pkg/env"
	"github.com/united-manufacturing-hub/statekit/pkg/logger"
	"github.com/united-manufacturing-hub/statekit/pkg/metrics"
	"github.com/united-manufacturing-hub/statekit/pkg/mutation"
	"github.com/united-manufacturing-hub/statekit/pkg/persistence"
	"github.com/united-manufacturing-hub/statekit/pkg/retry"
	"github.com/united-manufacturing-hub/statekit/pkg/safejson"
	"github.com/united-manufacturing-hub/statekit/pkg/sentry"
	"github.com/united-manufacturing-hub/statekit/pkg/state"
	"github.com/united-manufacturing-hub/statekit/pkg/store"
	"github.com/united-manufacturing-hub/statekit/pkg/version"
)

// Item is the demo model served by the HTTP facade. All state semantics
// live in the packages; this binary is glue.
type Item struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
	Stars int      `json:"stars"`
}

const itemsKey = "items"

func main() {
	// Initialize the global logger first thing
	logger.Initialize()

	// Initialize Sentry
	sentry.InitSentry(version.GetAppVersion(), true)

	log := logger.For(logger.ComponentDemo)
	log.Info("Starting statekit demo...")

	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load or create configuration with environment variable overrides
	configManager := config.NewFileConfigManager()

	configData, err := config.LoadConfigWithEnvOverrides(ctx, configManager, log)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to load config: %v", err)
		os.Exit(1)
	}

	// Start the metrics server
	metricsServer := metrics.SetupMetricsEndpoint(configData.Server.MetricsAddress)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			sentry.ReportIssuef(sentry.IssueTypeError, log, "Failed to shutdown metrics server: %v", err)
		}
	}()

	cache := datasource.NewCached[Item](newItemSource(log), constants.DefaultCacheCullInterval, constants.DefaultCacheTTL)

	saver, err := newItemSaver(log)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to open item persistence: %v", err)
		os.Exit(1)
	}

	if saved, loadErr := saver.Load(ctx, itemsKey); loadErr == nil {
		log.Infof("Found %d previously committed items", len(saved))
	} else if !errors.Is(loadErr, persistence.ErrNotFound) {
		log.Warnf("Could not read previously committed items: %v", loadErr)
	}

	col := store.NewCollection[Item](itemsKey, configData.StoreConfigFor(itemsKey), func(it Item) string { return it.ID })
	defer col.Close()

	api := &itemsAPI{
		col:    col,
		cache:  cache,
		op:     datasource.PageOperation[Item](cache),
		saver:  saver,
		policy: retry.DefaultPolicy(),
		log:    log,
	}

	// Warm the collection so the first GET already has data. A failure here
	// is not fatal; /items/refresh can retry it at any time.
	if err := col.LoadPage(ctx, 0, false, api.policy, api.op); err != nil {
		log.Warnf("Initial page load failed: %v", err)
	}

	apiServer := setupItemsServer(configData.Server.Address, api, log)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Failed to shutdown items server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down statekit demo...")
}

// newItemSource serves fixtures unless DEMO_API_URL points at a remote
// items endpoint.
func newItemSource(log *zap.SugaredLogger) datasource.Source[Item] {
	apiURL, err := env.GetAsString("DEMO_API_URL", false, "")
	if err != nil || apiURL == "" {
		log.Info("DEMO_API_URL not set, serving built-in fixture items")

		return datasource.NewStatic(seedItems())
	}

	log.Infof("Fetching items from %s", apiURL)

	return datasource.NewHTTP[Item](apiURL)
}

// newItemSaver persists committed items under DEMO_DATA_DIR, falling back
// to an in-memory saver when no directory is usable.
func newItemSaver(log *zap.SugaredLogger) (persistence.Saver[Item], error) {
	dir, err := env.GetAsString("DEMO_DATA_DIR", false, "data/items")
	if err != nil || dir == "" {
		log.Info("DEMO_DATA_DIR not set, committed items are kept in memory only")

		return persistence.NewMemory[Item](), nil
	}

	return persistence.NewFileStore[Item](dir)
}

func seedItems() []Item {
	titles := []string{"Dosing pump", "CNC mill", "Filling line", "Stamping press", "Conveyor belt"}
	tags := [][]string{{"utilities"}, {"machining"}, {"packaging", "line-2"}, {"forming"}, {"transport"}}

	items := make([]Item, 0, 45)
	for i := range 45 {
		items = append(items, Item{
			ID:    fmt.Sprintf("asset-%03d", i),
			Title: fmt.Sprintf("%s %d", titles[i%len(titles)], i/len(titles)+1),
			Tags:  tags[i%len(tags)],
			Stars: i % 6,
		})
	}

	return items
}

// itemsAPI bundles everything the gin handlers need.
type itemsAPI struct {
	col    *store.Collection[Item]
	cache  *datasource.Cached[Item]
	op     store.PageOperation[Item]
	saver  persistence.Saver[Item]
	log    *zap.SugaredLogger
	policy retry.Policy
}

// itemPatch is the PATCH /items/:id body. Only the fields present in the
// request are applied.
type itemPatch struct {
	Title *string   `json:"title"`
	Stars *int      `json:"stars"`
	Tags  *[]string `json:"tags"`
}

func (a *itemsAPI) handleList(c *gin.Context) {
	c.JSON(http.StatusOK, a.collectionResponse())
}

func (a *itemsAPI) handleGet(c *gin.Context) {
	it, ok := a.col.Model(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such item"})

		return
	}

	c.JSON(http.StatusOK, it)
}

func (a *itemsAPI) handleRefresh(c *gin.Context) {
	// A refresh that serves yesterday's cache is not a refresh.
	a.cache.Invalidate()

	if err := a.col.Refresh(c.Request.Context(), a.policy, a.op); err != nil {
		c.JSON(statusForKind(err), gin.H{"error": err.Error(), "errorKind": state.KindOf(err).String()})

		return
	}

	c.JSON(http.StatusOK, a.collectionResponse())
}

func (a *itemsAPI) handleNext(c *gin.Context) {
	if err := a.col.LoadNextPage(c.Request.Context(), a.policy, a.op); err != nil {
		c.JSON(statusForKind(err), gin.H{"error": err.Error(), "errorKind": state.KindOf(err).String()})

		return
	}

	c.JSON(http.StatusOK, a.collectionResponse())
}

func (a *itemsAPI) handlePatch(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})

		return
	}

	var patch itemPatch
	if err := safejson.Unmarshal(body, &patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})

		return
	}

	b := mutation.NewBuilder[Item]()
	if patch.Title != nil {
		b.Edit(func(it *Item) { it.Title = *patch.Title })
	}

	if patch.Stars != nil {
		b.Edit(func(it *Item) { it.Stars = *patch.Stars })
	}

	if patch.Tags != nil {
		b.Edit(func(it *Item) { it.Tags = *patch.Tags })
	}

	if b.Len() == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty patch"})

		return
	}

	id := c.Param("id")
	if !a.col.BatchUpdate(id, b) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such item"})

		return
	}

	it, _ := a.col.Model(id)
	c.JSON(http.StatusOK, it)
}

func (a *itemsAPI) handleCommit(c *gin.Context) {
	a.col.CommitMutations()

	models := a.col.AllModels()
	if err := a.saver.Save(c.Request.Context(), itemsKey, models); err != nil {
		a.log.Errorf("Failed to persist committed items: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "commit applied but not persisted"})

		return
	}

	c.JSON(http.StatusOK, gin.H{"committed": len(models)})
}

func (a *itemsAPI) handleDiscard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"restored": a.col.DiscardMutations()})
}

func (a *itemsAPI) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "phase": a.col.State().Phase()})
}

func (a *itemsAPI) collectionResponse() gin.H {
	st := a.col.State()

	resp := gin.H{
		"phase":   st.Phase(),
		"items":   a.col.AllModels(),
		"page":    a.col.Page(),
		"hasMore": a.col.HasMore(),
	}

	if err := st.Err(); err != nil {
		resp["error"] = err.Error()
		resp["errorKind"] = state.KindOf(err).String()
	}

	return resp
}

// statusForKind maps a classified load error back onto an HTTP status for
// API clients.
func statusForKind(err error) int {
	switch state.KindOf(err) {
	case state.KindNotFound:
		return http.StatusNotFound
	case state.KindUnauthorized:
		return http.StatusForbidden
	case state.KindCancelled:
		// The request was superseded by a newer one or the server is
		// shutting down.
		return http.StatusConflict
	case state.KindNetwork, state.KindDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// setupItemsServer sets up the items API using Gin.
func setupItemsServer(addr string, api *itemsAPI, log *zap.SugaredLogger) *http.Server {
	debug, _ := env.GetAsBool("DEMO_DEBUG", false, false)
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if debug {
			log.Infof("API %s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
		}
	})

	router.GET("/healthz", api.handleHealthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/items", api.handleList)
	router.GET("/items/:id", api.handleGet)
	router.POST("/items/refresh", api.handleRefresh)
	router.POST("/items/next", api.handleNext)
	router.PATCH("/items/:id", api.handlePatch)
	router.POST("/items/commit", api.handleCommit)
	router.POST("/items/discard", api.handleDiscard)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Starting items API on %s (debug: %v)", addr, debug)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.ReportIssue(err, sentry.IssueTypeFatal, log)
		}
	}()

	return server
}
