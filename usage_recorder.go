package gatekeeper

import (
	"context"
	"sync"
	"time"
)

// keyUsage is one successful key authentication waiting to be persisted.
type keyUsage struct {
	keyID  string
	usedAt time.Time
}

// UsageRecorder persists API key usage (last-used timestamp and request
// counter) on a background goroutine. Enqueueing never blocks: when the
// buffer is full the update is dropped and logged, because usage stats are
// advisory and must not delay or fail the authorization decision.
type UsageRecorder struct {
	store   CredentialStore
	logger  Logger
	queue   chan keyUsage
	timeout time.Duration

	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewUsageRecorder starts the background worker. bufferSize <= 0 picks a
// sane default.
func NewUsageRecorder(store CredentialStore, bufferSize int, logger Logger) *UsageRecorder {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if logger == nil {
		_, logger = ResolveLogger("gatekeeper.usage", nil, nil)
	}

	r := &UsageRecorder{
		store:   store,
		logger:  logger,
		queue:   make(chan keyUsage, bufferSize),
		timeout: 5 * time.Second,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go r.run()

	return r
}

// RecordUsage enqueues a usage update without blocking. Safe to call during
// or after Close: the queue channel is never closed, so a late caller drops
// the update instead of panicking.
func (r *UsageRecorder) RecordUsage(keyID string, usedAt time.Time) {
	select {
	case <-r.stop:
		return
	default:
	}

	select {
	case r.queue <- keyUsage{keyID: keyID, usedAt: usedAt}:
	case <-r.stop:
	default:
		r.logger.Warn("usage queue full, dropping update", "key_id", keyID)
	}
}

// Close stops the worker after draining queued updates. Idempotent.
func (r *UsageRecorder) Close() {
	r.closeOnce.Do(func() {
		close(r.stop)
		<-r.done
	})
}

func (r *UsageRecorder) run() {
	defer close(r.done)

	for {
		select {
		case usage := <-r.queue:
			r.persist(usage)
		case <-r.stop:
			for {
				select {
				case usage := <-r.queue:
					r.persist(usage)
				default:
					return
				}
			}
		}
	}
}

func (r *UsageRecorder) persist(usage keyUsage) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.store.RecordAPIKeyUsage(ctx, usage.keyID, usage.usedAt); err != nil {
		r.logger.Warn("failed to persist api key usage",
			"key_id", usage.keyID,
			"error", err,
		)
	}
}

var _ UsageSink = (*UsageRecorder)(nil)
