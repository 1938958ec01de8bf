package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/downline/pkg/cache"
	derrors "github.com/matzehuels/downline/pkg/errors"
	"github.com/matzehuels/downline/pkg/observability"
	"github.com/matzehuels/downline/pkg/tree"
)

// Runner encapsulates pipeline execution with caching.
// The CLI, the terminal browser and the HTTP server all use it so that
// caching behaves the same everywhere.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// WithKeyer returns a runner sharing r's cache and logger but generating
// keys with keyer. The server uses it to scope keys per owner.
func (r *Runner) WithKeyer(keyer cache.Keyer) *Runner {
	cp := *r
	cp.Keyer = keyer
	return &cp
}

// Execute runs the complete layout → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, t *tree.Tree, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)
	if t == nil {
		return nil, derrors.New(derrors.ErrCodeInvalidInput, "no tree to lay out")
	}

	result := &Result{
		Tree:      t,
		TreeHash:  TreeHash(t),
		Artifacts: make(map[string][]byte),
	}
	result.Stats.MemberCount = t.Len()

	// Stage 1: Layout
	layoutStart := time.Now()
	l, layoutHit, err := r.ComputeLayoutWithCacheInfo(ctx, t, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Layout = l
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.CacheInfo.LayoutHit = layoutHit

	opts.Logger.Info("computed layout",
		"type", l.VizType,
		"members", result.Stats.MemberCount,
		"focus", l.Focus,
		"duration", result.Stats.LayoutTime)

	// Stage 2: Render
	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, l, t, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	opts.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// ComputeLayoutWithCacheInfo computes a layout with caching and returns cache hit info.
func (r *Runner) ComputeLayoutWithCacheInfo(ctx context.Context, t *tree.Tree, opts Options) (l Layout, hit bool, err error) {
	if err := opts.ValidateForLayout(); err != nil {
		return Layout{}, false, err
	}
	r.applyLogger(&opts)
	if t == nil {
		_, err := GenerateLayout(nil, opts)
		return Layout{}, false, err
	}

	cacheKey := r.Keyer.LayoutKey(TreeHash(t), opts.LayoutKeyOpts())

	// Try cache first
	if err := cache.GetJSON(ctx, r.Cache, cacheKey, &l); err == nil {
		observability.Cache().OnCacheHit(ctx, "layout")
		return l, true, nil
	}
	observability.Cache().OnCacheMiss(ctx, "layout")

	hooks := observability.Pipeline()
	hooks.OnLayoutStart(ctx, opts.VizType, t.Len())
	defer func(start time.Time) {
		hooks.OnLayoutComplete(ctx, opts.VizType, time.Since(start), err)
	}(time.Now())

	l, err = GenerateLayout(t, opts)
	if err != nil {
		return Layout{}, false, err
	}

	if data, err := json.Marshal(l); err == nil {
		if r.Cache.Set(ctx, cacheKey, data, cache.TTLLayout) == nil {
			observability.Cache().OnCacheSet(ctx, "layout", len(data))
		}
	}

	return l, false, nil
}

// ComputeLayout is a convenience wrapper that calls ComputeLayoutWithCacheInfo and discards the cache hit info.
func (r *Runner) ComputeLayout(ctx context.Context, t *tree.Tree, opts Options) (Layout, error) {
	l, _, err := r.ComputeLayoutWithCacheInfo(ctx, t, opts)
	return l, err
}

// RenderWithCacheInfo generates artifacts with caching and returns cache hit info.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, l Layout, t *tree.Tree, opts Options) (artifacts map[string][]byte, hit bool, err error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	// Compute cache key from layout data
	layoutData, err := json.Marshal(l)
	if err != nil {
		return nil, false, fmt.Errorf("serialize layout for cache key: %w", err)
	}
	cacheKeyHash := cache.Hash(layoutData)
	// JSON output embeds the snapshot, so it depends on the tree too.
	if t != nil {
		cacheKeyHash = cache.Hash([]byte(cacheKeyHash + TreeHash(t)))
	}

	// Try to get all formats from cache
	artifacts = make(map[string][]byte)
	for _, format := range opts.Formats {
		cacheKey := r.Keyer.ArtifactKey(cacheKeyHash, opts.ArtifactKeyOpts(format))
		data, ok, err := r.Cache.Get(ctx, cacheKey)
		if err != nil || !ok {
			break
		}
		artifacts[format] = data
	}

	if len(artifacts) == len(opts.Formats) {
		observability.Cache().OnCacheHit(ctx, "artifact")
		return artifacts, true, nil // All artifacts from cache
	}
	observability.Cache().OnCacheMiss(ctx, "artifact")

	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, opts.Formats)
	defer func(start time.Time) {
		hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
	}(time.Now())

	// Render all formats
	rendered, err := RenderFromLayout(ctx, l, t, opts)
	if err != nil {
		return nil, false, err
	}

	// Cache each format
	for format, data := range rendered {
		cacheKey := r.Keyer.ArtifactKey(cacheKeyHash, opts.ArtifactKeyOpts(format))
		if r.Cache.Set(ctx, cacheKey, data, cache.TTLArtifact) == nil {
			observability.Cache().OnCacheSet(ctx, "artifact", len(data))
		}
	}

	return rendered, false, nil // Cache miss
}

// Render is a convenience wrapper that calls RenderWithCacheInfo and discards the cache hit info.
func (r *Runner) Render(ctx context.Context, l Layout, t *tree.Tree, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, l, t, opts)
	return artifacts, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// TreeHash returns the content hash of a snapshot. Two snapshots with the
// same members in the same order hash the same.
func TreeHash(t *tree.Tree) string {
	data, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	return cache.Hash(data)
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
