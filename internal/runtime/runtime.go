package runtime

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/TurtleWithGlasses/deckgen/config"
)

// Limits captures the concurrency and dataset guardrails configured for the server.
type Limits struct {
	// Concurrency caps
	MaxConcurrentRenders int
	MaxOpenDatasets      int

	// Row bounds
	PreviewRowLimit int
	PreviewPageRows int

	// Timeouts
	OperationTimeout      time.Duration
	AcquireRequestTimeout time.Duration
}

// NewLimits initializes Limits with sensible fallbacks when values are unset.
func NewLimits(maxConcurrentRenders, maxOpenDatasets int) Limits {
	if maxConcurrentRenders <= 0 {
		maxConcurrentRenders = config.DefaultMaxConcurrentRenders
	}
	if maxOpenDatasets <= 0 {
		maxOpenDatasets = config.DefaultMaxOpenDatasets
	}

	return Limits{
		MaxConcurrentRenders:  maxConcurrentRenders,
		MaxOpenDatasets:       maxOpenDatasets,
		PreviewRowLimit:       config.DefaultPreviewRowLimit,
		PreviewPageRows:       config.DefaultPreviewPageRows,
		OperationTimeout:      config.DefaultOperationTimeout,
		AcquireRequestTimeout: config.DefaultAcquireRequestTimeout,
	}
}

// Controller coordinates runtime semaphores for render and dataset guardrails.
type Controller struct {
	limits           Limits
	renderSemaphore  *semaphore.Weighted
	datasetSemaphore *semaphore.Weighted
}

// NewController constructs a Controller backed by weighted semaphores.
func NewController(limits Limits) *Controller {
	return &Controller{
		limits:           limits,
		renderSemaphore:  semaphore.NewWeighted(int64(limits.MaxConcurrentRenders)),
		datasetSemaphore: semaphore.NewWeighted(int64(limits.MaxOpenDatasets)),
	}
}

// AcquireRender reserves capacity for an incoming tool call.
func (c *Controller) AcquireRender(ctx context.Context) error {
	return c.renderSemaphore.Acquire(ctx, 1)
}

// ReleaseRender frees previously-acquired call capacity.
func (c *Controller) ReleaseRender() {
	c.renderSemaphore.Release(1)
}

// AcquireDataset reserves an open dataset slot.
func (c *Controller) AcquireDataset(ctx context.Context) error {
	return c.datasetSemaphore.Acquire(ctx, 1)
}

// ReleaseDataset frees an open dataset slot.
func (c *Controller) ReleaseDataset() {
	c.datasetSemaphore.Release(1)
}

// LimitsSnapshot exposes the configured guardrails for telemetry and discovery.
func (c *Controller) LimitsSnapshot() Limits {
	return c.limits
}
