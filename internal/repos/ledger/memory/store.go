// Package memory is an in-process ledger.Store with optimistic concurrency.
//
// Every account and property carries a version that is bumped on each
// committed write. A transaction remembers the versions it observed in
// Snapshot and commit fails with ledger.ErrConflict if any of them moved.
// Staged writes are validated in full before any of them is applied, so a
// failed commit leaves no trace.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/fastprodman/propledger/internal/repos/ledger"
)

var _ ledger.Store = (*Store)(nil)

type Store struct {
	mu         sync.Mutex
	accounts   map[string]ledger.Account
	properties map[string]ledger.Property
	sales      map[ledger.SaleKey]ledger.SaleRecord
	versions   map[string]uint64
	now        func() time.Time
}

type Option func(*Store)

// WithClock replaces the commit clock used for sale timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		accounts:   make(map[string]ledger.Account),
		properties: make(map[string]ledger.Property),
		sales:      make(map[ledger.SaleKey]ledger.SaleRecord),
		versions:   make(map[string]uint64),
		now:        func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func accountKey(id string) string  { return "account:" + id }
func propertyKey(id string) string { return "property:" + id }

func cloneAccount(a ledger.Account) ledger.Account {
	a.Properties = slices.Clone(a.Properties)

	return a
}

// PutAccount creates or replaces an account outside any transaction.
func (s *Store) PutAccount(a ledger.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[a.ID] = cloneAccount(a)
	s.versions[accountKey(a.ID)]++
}

// PutProperty creates or replaces a property outside any transaction.
// Asking prices must be positive.
func (s *Store) PutProperty(p ledger.Property) error {
	if p.Price <= 0 {
		return fmt.Errorf("put property %s: %w", p.ID, ledger.ErrInvalidPrice)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.properties[p.ID] = p
	s.versions[propertyKey(p.ID)]++

	return nil
}

func (s *Store) GetAccount(_ context.Context, id string) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}

	return cloneAccount(a), nil
}

func (s *Store) GetProperty(_ context.Context, id string) (ledger.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.properties[id]
	if !ok {
		return ledger.Property{}, ledger.ErrPropertyNotFound
	}

	return p, nil
}

func (s *Store) ListSales(_ context.Context, propertyID string) ([]ledger.SaleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ledger.SaleRecord, 0)
	for k, rec := range s.sales {
		if k.PropertyID == propertyID {
			out = append(out, rec)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SaleNumber < out[j].SaleNumber })

	return out, nil
}

func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	tx := &memTx{store: s, reads: make(map[string]uint64)}

	err := fn(ctx, tx)
	if err != nil {
		return err
	}

	err = ctx.Err()
	if err != nil {
		return fmt.Errorf("abandoned before commit: %w", err)
	}

	return s.commit(tx)
}

//nolint:cyclop
func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, seen := range tx.reads {
		if s.versions[key] != seen {
			return fmt.Errorf("%s changed since snapshot: %w", key, ledger.ErrConflict)
		}
	}

	props := make(map[string]ledger.Property)
	accts := make(map[string]ledger.Account)

	for _, u := range tx.propUpdates {
		p, ok := props[u.ID]
		if !ok {
			p, ok = s.properties[u.ID]
		}

		if !ok {
			return fmt.Errorf("update property %s: %w", u.ID, ledger.ErrPropertyNotFound)
		}

		if p.SaleCount != u.ExpectedSaleCount {
			return fmt.Errorf("property %s sale count moved: %w", u.ID, ledger.ErrConflict)
		}

		if u.Price <= 0 {
			return fmt.Errorf("update property %s: %w", u.ID, ledger.ErrInvalidPrice)
		}

		p.Owner = u.Owner
		p.Value = u.Value
		p.Price = u.Price
		p.SaleCount++
		props[u.ID] = p
	}

	for _, u := range tx.acctUpdates {
		a, ok := accts[u.ID]
		if !ok {
			a, ok = s.accounts[u.ID]
			a = cloneAccount(a)
		}

		if !ok {
			return fmt.Errorf("adjust account %s: %w", u.ID, ledger.ErrAccountNotFound)
		}

		a.Balance += u.Delta
		if a.Balance < 0 {
			return fmt.Errorf("adjust account %s: %w", u.ID, ledger.ErrNegativeBalance)
		}

		if u.Acquire != "" && !a.Owns(u.Acquire) {
			a.Properties = append(a.Properties, u.Acquire)
		}

		if u.Release != "" {
			a.Properties = slices.DeleteFunc(a.Properties, func(id string) bool { return id == u.Release })
		}

		accts[u.ID] = a
	}

	staged := make(map[ledger.SaleKey]ledger.SaleRecord, len(tx.sales))
	ts := s.now()

	for _, rec := range tx.sales {
		key := rec.Key()

		_, exists := s.sales[key]
		_, dup := staged[key]

		if exists || dup {
			return fmt.Errorf("append %s: %w", key, ledger.ErrDuplicateSale)
		}

		rec.Timestamp = ts
		staged[key] = rec
	}

	for id, p := range props {
		s.properties[id] = p
		s.versions[propertyKey(id)]++
	}

	for id, a := range accts {
		s.accounts[id] = a
		s.versions[accountKey(id)]++
	}

	for key, rec := range staged {
		s.sales[key] = rec
	}

	return nil
}

type memTx struct {
	store       *Store
	reads       map[string]uint64
	propUpdates []ledger.PropertyUpdate
	acctUpdates []ledger.AccountUpdate
	sales       []ledger.SaleRecord
}

func (t *memTx) Snapshot(_ context.Context, accountID, propertyID string) (ledger.Snapshot, error) {
	s := t.store

	s.mu.Lock()
	defer s.mu.Unlock()

	var snap ledger.Snapshot

	if a, ok := s.accounts[accountID]; ok {
		a = cloneAccount(a)
		snap.Buyer = &a
	}

	if p, ok := s.properties[propertyID]; ok {
		snap.Property = &p
	}

	t.reads[accountKey(accountID)] = s.versions[accountKey(accountID)]
	t.reads[propertyKey(propertyID)] = s.versions[propertyKey(propertyID)]

	return snap, nil
}

func (t *memTx) UpdateProperty(_ context.Context, u ledger.PropertyUpdate) error {
	t.propUpdates = append(t.propUpdates, u)

	return nil
}

func (t *memTx) AdjustAccount(_ context.Context, u ledger.AccountUpdate) error {
	t.acctUpdates = append(t.acctUpdates, u)

	return nil
}

func (t *memTx) AppendSale(_ context.Context, rec ledger.SaleRecord) error {
	t.sales = append(t.sales, rec)

	return nil
}
