//
//  Copyright © Manetu Inc. All rights reserved.
//

package persistence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Flusher saves snapshots asynchronously: mutations only mark the state dirty
// and a ticker writes the latest snapshot when needed.
type Flusher struct {
	backend  Backend
	source   func() *Snapshot
	interval time.Duration
	dirty    atomic.Bool
	mu       sync.Mutex
}

// DefaultFlushInterval replaces a non-positive flush interval.
const DefaultFlushInterval = 5 * time.Second

// NewFlusher creates a flusher that saves source() to backend every interval.
// A non-positive interval is replaced by [DefaultFlushInterval].
func NewFlusher(backend Backend, source func() *Snapshot, interval time.Duration) *Flusher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Flusher{backend: backend, source: source, interval: interval}
}

// Interval returns the effective flush interval.
func (f *Flusher) Interval() time.Duration {
	return f.interval
}

// Mark records that the state changed since the last flush.
func (f *Flusher) Mark() {
	f.dirty.Store(true)
}

// Dirty reports whether a flush is pending.
func (f *Flusher) Dirty() bool {
	return f.dirty.Load()
}

// Flush saves a snapshot if the state is dirty.  Flushes never overlap.
func (f *Flusher) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.dirty.Swap(false) {
		return nil
	}
	if err := f.backend.Save(f.source()); err != nil {
		// keep the state dirty so the next tick retries
		f.dirty.Store(true)
		return err
	}
	return nil
}

// Run flushes on every tick until ctx is done, then flushes one last time.
func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := f.Flush(); err != nil {
				logger.SysErrorf("flush failed: %+v", err)
			}
		case <-ctx.Done():
			if err := f.Flush(); err != nil {
				logger.SysErrorf("final flush failed: %+v", err)
			}
			return
		}
	}
}
