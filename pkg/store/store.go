//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package store holds the versioned resources of one kind, partitioned by
// (country code, party id).
//
// A stored version is never mutated: writes deep-copy the incoming value and
// readers receive deep copies, so a version handed out can be inspected
// freely.  Writes to the same resource are serialized by a keyed mutex that
// covers both the concurrency decision and the mutation; reads only take the
// shared side of the partition lock.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/im7mortal/kmutex"
	"github.com/manetu/ocpihub/internal/logging"
	"github.com/manetu/ocpihub/pkg/concurrency"
	"github.com/manetu/ocpihub/pkg/ocpi/model"
	"github.com/mohae/deepcopy"
)

var logger = logging.GetLogger("ocpihub.store")

const agent = "store"

// ErrNotFound is returned when a resource does not exist in its partition.
var ErrNotFound = errors.New("resource not found")

// VersionConflict is returned when a write is not newer than the stored
// version and downgrades are not allowed.
type VersionConflict struct {
	Rejected time.Time
	Stored   time.Time
}

func (e *VersionConflict) Error() string {
	return fmt.Sprintf("%s: incoming last_updated %s is not newer than stored %s",
		concurrency.ReasonDowngrade, e.Rejected.Format(time.RFC3339Nano), e.Stored.Format(time.RFC3339Nano))
}

// Filter selects a page of a partition.  From is inclusive and To exclusive;
// zero values leave that side open.  Limit zero means no limit.
type Filter struct {
	From   time.Time
	To     time.Time
	Offset int
	Limit  int
}

func (f Filter) matches(at time.Time) bool {
	if !f.From.IsZero() && at.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !at.Before(f.To) {
		return false
	}
	return true
}

// Page is one page of a listing.  Total counts every match before pagination.
type Page[T any] struct {
	Items []T
	Total int
}

type partition[T model.Resource] struct {
	order   []string
	entries map[string]T
}

func (p *partition[T]) remove(id string) {
	delete(p.entries, id)
	for i, k := range p.order {
		if k == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}

// Store is a collection of resources of one kind.
type Store[T model.Resource] struct {
	kind       string
	mu         sync.RWMutex
	partitions map[model.Partition]*partition[T]
	order      []model.Partition
	locks      *kmutex.Kmutex
	onChange   func()
}

// New creates an empty store for kind.
func New[T model.Resource](kind string) *Store[T] {
	return &Store[T]{
		kind:       kind,
		partitions: make(map[model.Partition]*partition[T]),
		locks:      kmutex.New(),
	}
}

// Kind returns the resource kind held by the store.
func (s *Store[T]) Kind() string {
	return s.kind
}

// OnChange registers fn to be called after every successful mutation.
func (s *Store[T]) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Store[T]) changed() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (s *Store[T]) key(p model.Partition, id string) string {
	return s.kind + "/" + p.String() + "/" + id
}

func clone[T any](v T) T {
	return deepcopy.Copy(v).(T)
}

// lookup returns the stored version without copying; callers must not leak it.
func (s *Store[T]) lookup(p model.Partition, id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero T
	part, ok := s.partitions[p]
	if !ok {
		return zero, false
	}
	r, ok := part.entries[id]
	return r, ok
}

func (s *Store[T]) insert(r T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := r.GetPartition()
	part, ok := s.partitions[p]
	if !ok {
		part = &partition[T]{entries: make(map[string]T)}
		s.partitions[p] = part
		s.order = append(s.order, p)
	}
	id := r.GetID()
	if _, exists := part.entries[id]; !exists {
		part.order = append(part.order, id)
	}
	part.entries[id] = r
}

// Get returns a copy of the resource id in partition p.
func (s *Store[T]) Get(p model.Partition, id string) (T, error) {
	r, ok := s.lookup(p, id)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s %s/%s", ErrNotFound, s.kind, p, id)
	}
	return clone(r), nil
}

// Exists reports whether id is stored in partition p.
func (s *Store[T]) Exists(p model.Partition, id string) bool {
	_, ok := s.lookup(p, id)
	return ok
}

// Put inserts r or replaces the stored version when [concurrency.DecideWrite]
// accepts it.  It returns the stored copy and whether it was created.
func (s *Store[T]) Put(r T, allowDowngrade bool) (T, bool, error) {
	p := r.GetPartition()
	id := r.GetID()
	key := s.key(p, id)

	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	return s.putLocked(r, allowDowngrade, nil)
}

// PutIf is [Store.Put] guarded by check, which sees the stored version (or
// found=false) inside the same critical section as the write.  An error from
// check aborts the write and is returned unchanged.
func (s *Store[T]) PutIf(r T, allowDowngrade bool, check func(existing T, found bool) error) (T, bool, error) {
	key := s.key(r.GetPartition(), r.GetID())

	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	return s.putLocked(r, allowDowngrade, check)
}

func (s *Store[T]) putLocked(r T, allowDowngrade bool, check func(existing T, found bool) error) (T, bool, error) {
	var zero T
	p := r.GetPartition()
	id := r.GetID()

	existing, found := s.lookup(p, id)
	if check != nil {
		var view T
		if found {
			view = clone(existing)
		}
		if err := check(view, found); err != nil {
			return zero, false, err
		}
	}
	var prior model.Resource
	if found {
		prior = existing
	}

	if d := concurrency.DecideWrite(prior, r, allowDowngrade); !d.Accepted() {
		logger.Debugf(agent, "put", "%s %s/%s rejected: %s", s.kind, p, id, d.Reason)
		return zero, false, &VersionConflict{Rejected: r.GetLastUpdated(), Stored: existing.GetLastUpdated()}
	}

	stored := clone(r)
	s.insert(stored)
	s.changed()

	logger.Debugf(agent, "put", "%s %s/%s stored (created=%t)", s.kind, p, id, !found)
	return clone(stored), !found, nil
}

// Update performs a serialized read-modify-write of an existing resource.  fn
// receives a private copy of the current version and returns the candidate
// next version, which is then subject to the same rule as [Store.Put].  An
// error from fn aborts the update and is returned unchanged.
func (s *Store[T]) Update(p model.Partition, id string, fn func(current T) (T, error), allowDowngrade bool) (T, error) {
	var zero T
	key := s.key(p, id)

	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	current, ok := s.lookup(p, id)
	if !ok {
		return zero, fmt.Errorf("%w: %s %s/%s", ErrNotFound, s.kind, p, id)
	}

	next, err := fn(clone(current))
	if err != nil {
		return zero, err
	}
	if next.GetPartition() != p || next.GetID() != id {
		return zero, fmt.Errorf("update of %s %s/%s changed its identity", s.kind, p, id)
	}

	stored, _, err := s.putLocked(next, allowDowngrade, nil)
	return stored, err
}

// List returns the page of partition p selected by f, in insertion order.
func (s *Store[T]) List(p model.Partition, f Filter) Page[T] {
	s.mu.RLock()
	var matches []T
	if part, ok := s.partitions[p]; ok {
		matches = collect(part, f)
	}
	s.mu.RUnlock()

	return paginate(matches, f)
}

// ListAll is [Store.List] across every partition, partitions in the order they
// were first written.
func (s *Store[T]) ListAll(f Filter) Page[T] {
	s.mu.RLock()
	var matches []T
	for _, p := range s.order {
		if part, ok := s.partitions[p]; ok {
			matches = append(matches, collect(part, f)...)
		}
	}
	s.mu.RUnlock()

	return paginate(matches, f)
}

func collect[T model.Resource](part *partition[T], f Filter) []T {
	var out []T
	for _, id := range part.order {
		r := part.entries[id]
		if f.matches(r.GetLastUpdated()) {
			out = append(out, r)
		}
	}
	return out
}

func paginate[T any](matches []T, f Filter) Page[T] {
	total := len(matches)
	start := f.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}

	items := make([]T, 0, end-start)
	for _, r := range matches[start:end] {
		items = append(items, clone(r))
	}
	return Page[T]{Items: items, Total: total}
}

// Remove deletes id from partition p.
func (s *Store[T]) Remove(p model.Partition, id string) error {
	return s.RemoveIf(p, id, nil)
}

// RemoveIf is [Store.Remove] guarded by check, which sees the stored version
// inside the same critical section as the removal.  An error from check
// aborts the removal and is returned unchanged.
func (s *Store[T]) RemoveIf(p model.Partition, id string, check func(existing T) error) error {
	key := s.key(p, id)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	if check != nil {
		existing, found := s.lookup(p, id)
		if !found {
			return fmt.Errorf("%w: %s %s/%s", ErrNotFound, s.kind, p, id)
		}
		if err := check(clone(existing)); err != nil {
			return err
		}
	}

	s.mu.Lock()
	part, ok := s.partitions[p]
	if ok {
		_, ok = part.entries[id]
	}
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s %s/%s", ErrNotFound, s.kind, p, id)
	}
	part.remove(id)
	s.mu.Unlock()

	s.changed()
	logger.Debugf(agent, "remove", "%s %s/%s removed", s.kind, p, id)
	return nil
}

// RemoveAll deletes every resource of partition p and returns how many there were.
func (s *Store[T]) RemoveAll(p model.Partition) int {
	s.mu.Lock()
	part, ok := s.partitions[p]
	n := 0
	if ok {
		n = len(part.entries)
		delete(s.partitions, p)
		for i, q := range s.order {
			if q == p {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if n > 0 {
		s.changed()
	}
	return n
}

// Len returns the number of stored resources.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, part := range s.partitions {
		n += len(part.entries)
	}
	return n
}

// Snapshot returns every stored resource in listing order.
func (s *Store[T]) Snapshot() []T {
	return s.ListAll(Filter{}).Items
}

// Load replaces the content of the store with items, keeping their order.
// It does not fire the change hook.
func (s *Store[T]) Load(items []T) {
	s.mu.Lock()
	s.partitions = make(map[model.Partition]*partition[T])
	s.order = nil
	s.mu.Unlock()

	for _, r := range items {
		s.insert(clone(r))
	}
}
