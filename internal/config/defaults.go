// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined
// here. This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// BUDGET AND SPEND
// =============================================================================

// DefaultDailyBudgetUSD is the spend ceiling used when no budget has been
// configured by an administrator.
const DefaultDailyBudgetUSD = 50.0

// DefaultBudgetStaleness bounds how long a locally cached budget value may be
// served before re-reading the config store. Budget changes need not be
// instantaneous; one hour of staleness is acceptable.
const DefaultBudgetStaleness = 1 * time.Hour

// =============================================================================
// CACHE
// =============================================================================

// DefaultDailyTTL is the retention for time-sensitive cache entries,
// measured from set-time (not calendar-aligned).
const DefaultDailyTTL = 24 * time.Hour

// DefaultPersonalTTL is the retention for user-scoped cache entries.
const DefaultPersonalTTL = 7 * 24 * time.Hour

// DefaultMinCacheableLength is the minimum response length (in bytes) for a
// completion to be written to the cache. Guards against caching degenerate
// or empty answers.
const DefaultMinCacheableLength = 40

// =============================================================================
// TOKEN ESTIMATION
// =============================================================================

// TokenEstimateRatio is the approximate number of characters per token.
// Used for rough token counting when exact counts aren't available.
const TokenEstimateRatio = 4

// =============================================================================
// HISTORY AND RETENTION
// =============================================================================

// DefaultHistoryRetentionDays is how long usage aggregates and audit rows
// are kept before the retention sweep removes them.
const DefaultHistoryRetentionDays = 30

// DefaultRetentionSweepInterval is the frequency of the background
// retention sweep over the history database.
const DefaultRetentionSweepInterval = 1 * time.Hour

// =============================================================================
// TIMEOUTS
// =============================================================================

// DefaultStoreTimeout bounds individual cache and ledger store operations.
const DefaultStoreTimeout = 2 * time.Second

// DefaultContextTimeout bounds the context-provider fetch. A slow or down
// context provider degrades to "no context", never to a hung request.
const DefaultContextTimeout = 5 * time.Second

// DefaultCompletionTimeout bounds the completion-provider call.
const DefaultCompletionTimeout = 60 * time.Second

// DefaultServerReadTimeout for the HTTP server.
const DefaultServerReadTimeout = 30 * time.Second

// DefaultServerWriteTimeout for the HTTP server.
const DefaultServerWriteTimeout = 2 * time.Minute

// =============================================================================
// HTTP
// =============================================================================

// DefaultServerPort is the listen port for the governor service.
const DefaultServerPort = 8090

// MaxRequestBodySize is the maximum allowed request body (1MB). Queries are
// chat-sized; anything larger is malformed or abusive.
const MaxRequestBodySize = 1 * 1024 * 1024
