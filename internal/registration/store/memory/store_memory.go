// Package memory is an in-process registration store. It validates each
// transaction optimistically at commit time so concurrent writers behave the
// way they do against the networked backends: a loser gets
// sentinel.ErrConflict and is expected to retry.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"eventreg/internal/registration/models"
	"eventreg/internal/registration/ports"
	"eventreg/pkg/platform/sentinel"
)

type counter struct {
	value   int64
	version uint64
}

// InMemoryStore keeps documents in their stored (loosely typed) form so reads
// go through the same tolerant decoding as the networked stores.
type InMemoryStore struct {
	mu       sync.RWMutex
	counters map[string]counter
	docs     map[string]models.Document
	clock    uint64

	newID        func() string
	beforeCommit func() error
}

// Option configures an InMemoryStore.
type Option func(*InMemoryStore)

// WithIDGenerator overrides uuid generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *InMemoryStore) {
		s.newID = fn
	}
}

// WithCommitHook runs fn after the transaction body and before validation.
// A non-nil error aborts the attempt with that error.
func WithCommitHook(fn func() error) Option {
	return func(s *InMemoryStore) {
		s.beforeCommit = fn
	}
}

// New creates an empty store.
func New(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		counters: make(map[string]counter),
		docs:     make(map[string]models.Document),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed writes a raw document, bypassing counters. Used to load fixtures and
// legacy records.
func (s *InMemoryStore) Seed(id string, doc models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id] = doc
}

// CounterValue returns the committed value of a counter, or 0 when absent.
func (s *InMemoryStore) CounterValue(key string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[key].value
}

// Len returns the number of stored documents.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// RunInTx executes fn once against a private write set and commits it if no
// counter it read has changed in the meantime.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(tx ports.Tx) error) error {
	tx := &memTx{
		store:    s,
		reads:    make(map[string]uint64),
		counters: make(map[string]int64),
		inits:    make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if s.beforeCommit != nil {
		if err := s.beforeCommit(); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *InMemoryStore) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, version := range tx.reads {
		if s.counters[key].version != version {
			return fmt.Errorf("counter %q changed: %w", key, sentinel.ErrConflict)
		}
	}
	for key := range tx.inits {
		if _, exists := s.counters[key]; exists {
			return fmt.Errorf("counter %q already initialized: %w", key, sentinel.ErrConflict)
		}
	}
	for _, ins := range tx.inserts {
		if _, exists := s.docs[ins.id]; exists {
			return fmt.Errorf("document %q exists: %w", ins.id, sentinel.ErrConflict)
		}
	}

	for key, value := range tx.counters {
		s.clock++
		s.counters[key] = counter{value: value, version: s.clock}
	}
	for _, ins := range tx.inserts {
		s.docs[ins.id] = ins.doc
	}
	return nil
}

// ListBySequence returns up to limit records in ascending sequence order.
func (s *InMemoryStore) ListBySequence(_ context.Context, limit int) ([]*models.Registration, error) {
	all := s.decodeAll()
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Sequence != all[j].Sequence {
			return all[i].Sequence < all[j].Sequence
		}
		return all[i].ID < all[j].ID
	})
	return truncate(all, limit), nil
}

// FindByNamePrefix returns up to q.Limit matching records ordered by name.
// The birth-date filter is applied before the limit.
func (s *InMemoryStore) FindByNamePrefix(_ context.Context, q models.NameQuery) ([]*models.Registration, error) {
	matches := make([]*models.Registration, 0)
	for _, r := range s.decodeAll() {
		if q.Matches(r) {
			matches = append(matches, r)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].Sequence < matches[j].Sequence
	})
	return truncate(matches, q.Limit), nil
}

// Ping always succeeds.
func (s *InMemoryStore) Ping(context.Context) error {
	return nil
}

func (s *InMemoryStore) decodeAll() []*models.Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Registration, 0, len(s.docs))
	for id, doc := range s.docs {
		out = append(out, models.FromDocument(id, doc))
	}
	return out
}

func truncate(rs []*models.Registration, limit int) []*models.Registration {
	if limit >= 0 && len(rs) > limit {
		return rs[:limit]
	}
	return rs
}

type pendingInsert struct {
	id  string
	doc models.Document
}

type memTx struct {
	store    *InMemoryStore
	reads    map[string]uint64
	counters map[string]int64
	inits    map[string]bool
	inserts  []pendingInsert
}

func (t *memTx) Counter(_ context.Context, key string) (int64, bool, error) {
	if v, ok := t.counters[key]; ok {
		return v, true, nil
	}
	t.store.mu.RLock()
	c, ok := t.store.counters[key]
	t.store.mu.RUnlock()
	t.reads[key] = c.version
	return c.value, ok, nil
}

func (t *memTx) InitCounter(_ context.Context, key string) error {
	t.inits[key] = true
	t.counters[key] = 1
	return nil
}

func (t *memTx) UpdateCounter(_ context.Context, key string, value int64) error {
	t.counters[key] = value
	return nil
}

func (t *memTx) NewID() string {
	return t.store.newID()
}

func (t *memTx) Insert(_ context.Context, r *models.Registration) error {
	if r.ID == "" {
		return fmt.Errorf("insert registration: empty id")
	}
	t.inserts = append(t.inserts, pendingInsert{id: r.ID, doc: r.ToDocument()})
	return nil
}
