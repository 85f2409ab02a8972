// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters during a single download session. It
// is a leaf package with no internal dependencies. All increment methods
// are nil-receiver safe so callers never need to guard on an optional
// collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of session counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Download loop
	PartsDownloaded int64
	PartsSkipped    int64
	RetryAttempts   int64
	BytesPersisted  int64
	SizeMismatches  int64

	// Catalog
	CatalogRefreshes int64
	EmptyCatalogs    int64

	// Authentication recovery
	HumanPrompts       int64
	PasswordAutofills  int64
	UnknownEscalations int64

	// Dimensions (informational, set at construction)
	SessionID string
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	partsDownloaded int64
	partsSkipped    int64
	retryAttempts   int64
	bytesPersisted  int64
	sizeMismatches  int64

	catalogRefreshes int64
	emptyCatalogs    int64

	humanPrompts       int64
	passwordAutofills  int64
	unknownEscalations int64

	sessionID string
}

// NewCollector creates a collector for the given session.
func NewCollector(sessionID string) *Collector {
	return &Collector{sessionID: sessionID}
}

// IncPartDownloaded records one persisted part.
func (c *Collector) IncPartDownloaded() { c.inc(func() { c.partsDownloaded++ }) }

// IncPartSkipped records one part skipped as already downloaded.
func (c *Collector) IncPartSkipped() { c.inc(func() { c.partsSkipped++ }) }

// IncRetryAttempt records one failed iteration that will be retried.
func (c *Collector) IncRetryAttempt() { c.inc(func() { c.retryAttempts++ }) }

// AddBytesPersisted records bytes written to the destination directory.
func (c *Collector) AddBytesPersisted(n int64) { c.inc(func() { c.bytesPersisted += n }) }

// IncSizeMismatch records a persisted part whose size disagreed with the hint.
func (c *Collector) IncSizeMismatch() { c.inc(func() { c.sizeMismatches++ }) }

// IncCatalogRefresh records one catalog derivation from the live page.
func (c *Collector) IncCatalogRefresh() { c.inc(func() { c.catalogRefreshes++ }) }

// IncEmptyCatalog records a catalog refresh that found no parts.
func (c *Collector) IncEmptyCatalog() { c.inc(func() { c.emptyCatalogs++ }) }

// IncHumanPrompt records one human-blocking recovery prompt.
func (c *Collector) IncHumanPrompt() { c.inc(func() { c.humanPrompts++ }) }

// IncPasswordAutofill records one automated password entry attempt.
func (c *Collector) IncPasswordAutofill() { c.inc(func() { c.passwordAutofills++ }) }

// IncUnknownEscalation records the unknown-retry cap being reached.
func (c *Collector) IncUnknownEscalation() { c.inc(func() { c.unknownEscalations++ }) }

func (c *Collector) inc(fn func()) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// Snapshot returns an immutable view of all counters.
// Safe to call on a nil collector (returns a zero snapshot).
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		PartsDownloaded:    c.partsDownloaded,
		PartsSkipped:       c.partsSkipped,
		RetryAttempts:      c.retryAttempts,
		BytesPersisted:     c.bytesPersisted,
		SizeMismatches:     c.sizeMismatches,
		CatalogRefreshes:   c.catalogRefreshes,
		EmptyCatalogs:      c.emptyCatalogs,
		HumanPrompts:       c.humanPrompts,
		PasswordAutofills:  c.passwordAutofills,
		UnknownEscalations: c.unknownEscalations,
		SessionID:          c.sessionID,
	}
}
