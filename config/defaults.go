package config

import "time"

// Default guardrails and tuning knobs for the deck composition engine and
// its MCP server. Values here are conservative defaults; callers override
// them through runtime.Limits, infer.Options, or environment configuration.

const (
	// Concurrency
	DefaultMaxConcurrentRenders = 8
	DefaultMaxOpenDatasets      = 4

	// Dataset handle lifecycle
	DefaultDatasetIdleTTL       = 10 * time.Minute
	DefaultDatasetCleanupPeriod = time.Minute

	// Preview paging
	DefaultPreviewRowLimit = 10
	DefaultPreviewPageRows = 50
)

const (
	// Timeouts
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
)

// Column type inference defaults (see internal/infer).
const (
	// DefaultCurrencyThreshold is the magnitude at or above which an
	// unmarked numeric column is classified as currency.
	DefaultCurrencyThreshold = 1000.0

	// DefaultCategoricalRatio is the distinct/total ratio below which a
	// text column is classified as categorical.
	DefaultCategoricalRatio = 0.5

	// DefaultDateFraction is the fraction of sampled values that must
	// parse as dates for a column to be classified as date.
	DefaultDateFraction = 0.9
)

// Target surface defaults (points, 4:3 deck geometry).
const (
	DefaultSurfaceWidth  = 720.0
	DefaultSurfaceHeight = 540.0
)
