package gatekeeper

import (
	"context"
	"time"
)

// quotaTTLMargin pads the persistence TTL past the window so a record
// survives long enough to be pruned rather than resurrected.
const quotaTTLMargin = 300 * time.Second

// QuotaTracker enforces a sliding-window request quota on top of a
// QuotaStore. The store is shared mutable state: the tracker performs a
// read-prune-append-persist cycle per request, and relies on the store for
// per-key atomicity. Under concurrent writers the window may transiently
// over-admit, never under-admit.
type QuotaTracker struct {
	store   QuotaStore
	logger  Logger
	nowFunc func() time.Time
}

// NewQuotaTracker builds a tracker over the given store.
func NewQuotaTracker(store QuotaStore, logger Logger) *QuotaTracker {
	if logger == nil {
		_, logger = ResolveLogger("gatekeeper.quota", nil, nil)
	}

	return &QuotaTracker{
		store:   store,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// WithClock overrides the time source, used by window tests.
func (t *QuotaTracker) WithClock(now func() time.Time) *QuotaTracker {
	if now != nil {
		t.nowFunc = now
	}
	return t
}

// Check admits or rejects one request for the bucket key. On rejection the
// returned error is a quota error and the request is NOT recorded: rejected
// attempts never consume quota. Store failures fail open with a best-effort
// RateLimitInfo.
//
// Reset time is always oldest_retained_timestamp + window (now + window for
// an empty window). The original system reported now + window on admission
// and oldest + window on rejection; we use the single exact formula for
// both.
func (t *QuotaTracker) Check(ctx context.Context, key string, quota Quota) (RateLimitInfo, error) {
	now := t.nowFunc()
	window := quota.WindowDuration()

	record, err := t.store.Get(ctx, key)
	if err != nil {
		t.logger.Error("quota store lookup failed, failing open", "key", key, "error", err)
		return t.failOpenInfo(now, quota), nil
	}

	if record == nil {
		record = &QuotaWindow{Key: key}
	}

	occupancy := record.Prune(now, window)

	if occupancy >= quota.Limit {
		info := RateLimitInfo{
			RequestsMade:      occupancy,
			RequestsRemaining: 0,
			ResetTime:         record.Oldest().Add(window),
			Limit:             quota.Limit,
			Window:            quota.Window,
		}
		return info, ErrQuotaExceeded
	}

	record.Timestamps = append(record.Timestamps, now)

	if err := t.store.Put(ctx, key, record, window+quotaTTLMargin); err != nil {
		t.logger.Error("quota store persist failed, failing open", "key", key, "error", err)
		return t.failOpenInfo(now, quota), nil
	}

	return RateLimitInfo{
		RequestsMade:      len(record.Timestamps),
		RequestsRemaining: quota.Limit - len(record.Timestamps),
		ResetTime:         record.Oldest().Add(window),
		Limit:             quota.Limit,
		Window:            quota.Window,
	}, nil
}

// Reset clears the window for a bucket, an admin operation.
func (t *QuotaTracker) Reset(ctx context.Context, key string) error {
	return t.store.Delete(ctx, key)
}

// failOpenInfo is the conservative estimate reported when the store is
// unreachable: the request is admitted and we claim one slot was used.
func (t *QuotaTracker) failOpenInfo(now time.Time, quota Quota) RateLimitInfo {
	remaining := quota.Limit - 1
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitInfo{
		RequestsMade:      1,
		RequestsRemaining: remaining,
		ResetTime:         now.Add(quota.WindowDuration()),
		Limit:             quota.Limit,
		Window:            quota.Window,
	}
}
