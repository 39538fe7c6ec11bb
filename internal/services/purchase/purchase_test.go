package purchase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/fastprodman/propledger/internal/infra/logging"
	"github.com/fastprodman/propledger/internal/repos/ledger"
	"github.com/fastprodman/propledger/internal/repos/ledger/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// flakyStore fails the first len(errs) RunTx calls with the queued errors,
// then delegates.
type flakyStore struct {
	ledger.Store

	mu    sync.Mutex
	errs  []error
	calls int
}

func (f *flakyStore) RunTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	f.mu.Lock()
	f.calls++

	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	f.mu.Unlock()

	if err != nil {
		return err
	}

	return f.Store.RunTx(ctx, fn)
}

type observation struct {
	outcome  string
	attempts int
}

type fakeRecorder struct {
	mu  sync.Mutex
	obs []observation
}

func (r *fakeRecorder) ObservePurchase(outcome string, attempts int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.obs = append(r.obs, observation{outcome: outcome, attempts: attempts})
}

func (r *fakeRecorder) last(t *testing.T) observation {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	require.NotEmpty(t, r.obs)

	return r.obs[len(r.obs)-1]
}

type mapCache struct {
	mu          sync.Mutex
	items       map[string]ledger.Property
	invalidated []string
	getErr      error
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string]ledger.Property)}
}

func (c *mapCache) Get(_ context.Context, id string) (ledger.Property, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.getErr != nil {
		return ledger.Property{}, false, c.getErr
	}

	p, ok := c.items[id]

	return p, ok, nil
}

func (c *mapCache) Set(_ context.Context, p ledger.Property) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[p.ID] = p

	return nil
}

func (c *mapCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, id)
	c.invalidated = append(c.invalidated, id)

	return nil
}

func newStore(t *testing.T) *memory.Store {
	t.Helper()

	s := memory.New(memory.WithClock(func() time.Time { return fixedNow }))
	s.PutAccount(ledger.Account{ID: "A", Balance: 100})
	s.PutAccount(ledger.Account{ID: "B", Balance: 0, Properties: []string{"P"}})
	require.NoError(t, s.PutProperty(ledger.Property{ID: "P", Owner: "B", Price: 50}))

	return s
}

func newService(t *testing.T, store ledger.Store, opts ...Option) *Service {
	t.Helper()

	opts = append([]Option{WithLogger(logging.Discard())}, opts...)

	svc, err := New(store, DefaultConfig(), opts...)
	require.NoError(t, err)

	svc.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	return svc
}

func TestPurchase_Succeeds(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	rec := &fakeRecorder{}
	cache := newMapCache()
	cache.items["P"] = ledger.Property{ID: "P", Owner: "B", Price: 50}

	svc := newService(t, store, WithRecorder(rec), WithCache(cache))
	ctx := t.Context()

	require.NoError(t, svc.Purchase(ctx, "A", "P"))

	a, err := store.GetAccount(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(50), a.Balance)
	assert.Equal(t, []string{"P"}, a.Properties)

	b, err := store.GetAccount(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(50), b.Balance)
	assert.Empty(t, b.Properties)

	p, err := store.GetProperty(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, ledger.Property{ID: "P", Owner: "A", Value: 50, Price: 58, SaleCount: 1}, p)

	sales, err := store.ListSales(ctx, "P")
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, ledger.SaleRecord{
		PropertyID: "P", SaleNumber: 0, Buyer: "A", Seller: "B", Price: 50, Timestamp: fixedNow,
	}, sales[0])

	assert.Equal(t, observation{outcome: "success", attempts: 1}, rec.last(t))
	assert.Equal(t, []string{"P"}, cache.invalidated)
	assert.NotContains(t, cache.items, "P")
}

func TestPurchase_RejectionsLeaveStateUnchanged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setup    func(s *memory.Store)
		buyer    string
		property string
		wantKind Kind
	}{
		{
			name:     "insufficient_balance",
			setup:    func(s *memory.Store) { s.PutAccount(ledger.Account{ID: "A", Balance: 10}) },
			buyer:    "A",
			property: "P",
			wantKind: KindInsufficientBalance,
		},
		{
			name: "already_in_owned_set",
			setup: func(s *memory.Store) {
				s.PutAccount(ledger.Account{ID: "A", Balance: 100, Properties: []string{"P"}})
			},
			buyer:    "A",
			property: "P",
			wantKind: KindOwnershipConflict,
		},
		{
			name:     "buyer_is_owner",
			buyer:    "B",
			property: "P",
			wantKind: KindInsufficientBalance,
		},
		{
			name:     "buyer_is_owner_with_funds",
			setup:    func(s *memory.Store) { s.PutAccount(ledger.Account{ID: "B", Balance: 500, Properties: []string{"P"}}) },
			buyer:    "B",
			property: "P",
			wantKind: KindOwnershipConflict,
		},
		{
			name: "balance_before_ownership",
			setup: func(s *memory.Store) {
				s.PutAccount(ledger.Account{ID: "A", Balance: 10, Properties: []string{"P"}})
			},
			buyer:    "A",
			property: "P",
			wantKind: KindInsufficientBalance,
		},
		{name: "unknown_buyer", buyer: "ghost", property: "P", wantKind: KindBuyerNotFound},
		{name: "unknown_property", buyer: "A", property: "nowhere", wantKind: KindPropertyNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newStore(t)
			if tt.setup != nil {
				tt.setup(store)
			}

			ctx := t.Context()

			before, err := store.GetProperty(ctx, "P")
			require.NoError(t, err)

			flaky := &flakyStore{Store: store}
			rec := &fakeRecorder{}
			svc := newService(t, flaky, WithRecorder(rec))

			err = svc.Purchase(ctx, tt.buyer, tt.property)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.Equal(t, 1, flaky.calls, "business rejections must not be retried")
			assert.Equal(t, observation{outcome: tt.wantKind.String(), attempts: 1}, rec.last(t))

			after, err := store.GetProperty(ctx, "P")
			require.NoError(t, err)
			assert.Equal(t, before, after)

			sales, err := store.ListSales(ctx, "P")
			require.NoError(t, err)
			assert.Empty(t, sales)
		})
	}
}

func TestPurchase_RetriesConflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		errs []error
	}{
		{name: "conflicts", errs: []error{ledger.ErrConflict, fmt.Errorf("commit: %w", ledger.ErrConflict)}},
		{name: "duplicate_sale_key", errs: []error{ledger.ErrDuplicateSale}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flaky := &flakyStore{Store: newStore(t), errs: tt.errs}
			rec := &fakeRecorder{}
			svc := newService(t, flaky, WithRecorder(rec))

			require.NoError(t, svc.Purchase(t.Context(), "A", "P"))

			wantAttempts := len(tt.errs) + 1
			assert.Equal(t, wantAttempts, flaky.calls)
			assert.Equal(t, observation{outcome: "success", attempts: wantAttempts}, rec.last(t))
		})
	}
}

func TestPurchase_ContentionAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	errs := make([]error, cfg.MaxAttempts)

	for i := range errs {
		errs[i] = ledger.ErrConflict
	}

	store := newStore(t)
	flaky := &flakyStore{Store: store, errs: errs}
	rec := &fakeRecorder{}
	svc := newService(t, flaky, WithRecorder(rec))

	err := svc.Purchase(t.Context(), "A", "P")
	require.Error(t, err)
	assert.Equal(t, KindContention, KindOf(err))
	assert.ErrorIs(t, err, ledger.ErrConflict)
	assert.Equal(t, cfg.MaxAttempts, flaky.calls)
	assert.Equal(t, observation{outcome: "contention", attempts: cfg.MaxAttempts}, rec.last(t))

	p, err := store.GetProperty(t.Context(), "P")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.SaleCount)
}

func TestPurchase_StoreFailureIsInternal(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	flaky := &flakyStore{Store: newStore(t), errs: []error{boom}}
	svc := newService(t, flaky)

	err := svc.Purchase(t.Context(), "A", "P")
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, flaky.calls)
}

func TestPurchase_MissingSellerIsInternal(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	require.NoError(t, store.PutProperty(ledger.Property{ID: "orphan", Owner: "nobody", Price: 10}))

	svc := newService(t, store)

	err := svc.Purchase(t.Context(), "A", "orphan")
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	a, err := store.GetAccount(t.Context(), "A")
	require.NoError(t, err)
	assert.Equal(t, int64(100), a.Balance)
}

func TestPurchase_PriceOverflowIsInternal(t *testing.T) {
	t.Parallel()

	const huge = math.MaxInt64 - 10

	store := newStore(t)
	store.PutAccount(ledger.Account{ID: "A", Balance: math.MaxInt64})
	require.NoError(t, store.PutProperty(ledger.Property{ID: "P", Owner: "B", Price: huge}))

	svc := newService(t, store)

	err := svc.Purchase(t.Context(), "A", "P")
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.ErrorIs(t, err, ErrPriceOverflow)

	p, err := store.GetProperty(t.Context(), "P")
	require.NoError(t, err)
	assert.Equal(t, ledger.Property{ID: "P", Owner: "B", Price: huge}, p)

	sales, err := store.ListSales(t.Context(), "P")
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestPurchase_CancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	flaky := &flakyStore{Store: newStore(t), errs: []error{ledger.ErrConflict}}
	svc := newService(t, flaky)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	svc.sleep = func(context.Context, time.Duration) error {
		cancel()

		return context.Canceled
	}

	err := svc.Purchase(ctx, "A", "P")
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, 1, flaky.calls)
}

// Every buyer purchases the same property once, concurrently. Each commit
// can invalidate at most the other in-flight snapshots, so with one attempt
// per buyer every purchase eventually lands.
func TestPurchase_ConcurrentBuyers(t *testing.T) {
	t.Parallel()

	const buyers = 8

	store := memory.New(memory.WithClock(func() time.Time { return fixedNow }))
	store.PutAccount(ledger.Account{ID: "bank", Properties: []string{"P"}})
	require.NoError(t, store.PutProperty(ledger.Property{ID: "P", Owner: "bank", Price: 100}))

	const startBalance = int64(10_000)
	for i := range buyers {
		store.PutAccount(ledger.Account{ID: fmt.Sprintf("u%d", i), Balance: startBalance})
	}

	cfg := DefaultConfig()
	cfg.MaxAttempts = buyers

	svc, err := New(store, cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)

	svc.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	g, ctx := errgroup.WithContext(t.Context())
	for i := range buyers {
		id := fmt.Sprintf("u%d", i)
		g.Go(func() error { return svc.Purchase(ctx, id, "P") })
	}

	require.NoError(t, g.Wait())

	p, err := store.GetProperty(t.Context(), "P")
	require.NoError(t, err)
	assert.Equal(t, int64(buyers), p.SaleCount)

	wantPrice := int64(100)
	for range buyers {
		wantPrice, err = NextPrice(wantPrice, cfg.GrowthRate)
		require.NoError(t, err)
	}

	assert.Equal(t, wantPrice, p.Price)

	sales, err := store.ListSales(t.Context(), "P")
	require.NoError(t, err)
	require.Len(t, sales, buyers)

	for i, s := range sales {
		assert.Equal(t, int64(i), s.SaleNumber)

		if i > 0 {
			assert.Equal(t, sales[i-1].Buyer, s.Seller, "ownership must chain from sale to sale")
			assert.Greater(t, s.Price, sales[i-1].Price)
		}
	}

	assert.Equal(t, p.Owner, sales[buyers-1].Buyer)

	var total int64

	owners := 0

	for _, id := range append([]string{"bank"}, buyerIDs(buyers)...) {
		a, err := store.GetAccount(t.Context(), id)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, a.Balance, int64(0))

		total += a.Balance

		if a.Owns("P") {
			owners++
		}
	}

	assert.Equal(t, startBalance*buyers, total, "money is conserved")
	assert.Equal(t, 1, owners, "exactly one account holds the property")
}

func buyerIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("u%d", i)
	}

	return ids
}

func TestNew_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := New(nil, DefaultConfig())
	require.Error(t, err)

	cfg := DefaultConfig()
	cfg.MaxAttempts = 0
	_, err = New(newStore(t), cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.GrowthRate = cfg.GrowthRate.Sub(cfg.GrowthRate)
	_, err = New(newStore(t), cfg)
	require.Error(t, err)
}
