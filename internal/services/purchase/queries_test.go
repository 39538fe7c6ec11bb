package purchase

import (
	"errors"
	"testing"

	"github.com/fastprodman/propledger/internal/repos/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProperty_ReadThroughCache(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	cache := newMapCache()
	svc := newService(t, store, WithCache(cache))
	ctx := t.Context()

	p, err := svc.Property(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, int64(50), p.Price)
	assert.Contains(t, cache.items, "P", "miss must populate the cache")

	// a stale cached value is served until invalidated
	require.NoError(t, store.PutProperty(ledger.Property{ID: "P", Owner: "B", Price: 70}))

	p, err = svc.Property(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, int64(50), p.Price)

	require.NoError(t, cache.Invalidate(ctx, "P"))

	p, err = svc.Property(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, int64(70), p.Price)
}

func TestProperty_CacheFailureFallsBackToStore(t *testing.T) {
	t.Parallel()

	cache := newMapCache()
	cache.getErr = errors.New("redis down")

	svc := newService(t, newStore(t), WithCache(cache))

	p, err := svc.Property(t.Context(), "P")
	require.NoError(t, err)
	assert.Equal(t, "B", p.Owner)
}

func TestQueries_NotFound(t *testing.T) {
	t.Parallel()

	svc := newService(t, newStore(t))
	ctx := t.Context()

	_, err := svc.Property(ctx, "nowhere")
	assert.Equal(t, KindPropertyNotFound, KindOf(err))

	_, err = svc.Sales(ctx, "nowhere")
	assert.Equal(t, KindPropertyNotFound, KindOf(err))

	_, err = svc.Account(ctx, "ghost")
	assert.Equal(t, KindBuyerNotFound, KindOf(err))
}

func TestQueries_AfterPurchase(t *testing.T) {
	t.Parallel()

	svc := newService(t, newStore(t))
	ctx := t.Context()

	sales, err := svc.Sales(ctx, "P")
	require.NoError(t, err)
	assert.Empty(t, sales)

	require.NoError(t, svc.Purchase(ctx, "A", "P"))

	sales, err = svc.Sales(ctx, "P")
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "A", sales[0].Buyer)

	a, err := svc.Account(ctx, "A")
	require.NoError(t, err)
	assert.True(t, a.Owns("P"))
	assert.Equal(t, int64(50), a.Balance)
}

func TestKind_StringAndKindOf(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for _, k := range Kinds() {
		name := k.String()
		assert.NotEmpty(t, name)
		assert.False(t, seen[name], "duplicate kind name %q", name)
		seen[name] = true
	}

	assert.Equal(t, "kind(99)", Kind(99).String())
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindAuthFailed, KindOf(Fail(KindAuthFailed, nil)))
	assert.Equal(t, "purchase: auth_failed", Fail(KindAuthFailed, nil).Error())
}
