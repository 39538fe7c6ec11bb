// Package ledger defines the transactional store behind property purchases.
//
// A Store runs read-modify-write units with optimistic concurrency: reads
// taken through a Tx form its snapshot, writes are staged, and the commit
// fails with ErrConflict if anything in the snapshot changed in between.
// Callers retry from the start on ErrConflict.
package ledger

import (
	"context"
	"errors"
)

var (
	ErrConflict         = errors.New("ledger: concurrent modification")
	ErrAccountNotFound  = errors.New("ledger: account not found")
	ErrPropertyNotFound = errors.New("ledger: property not found")
	ErrDuplicateSale    = errors.New("ledger: duplicate sale record")
	ErrNegativeBalance  = errors.New("ledger: balance would become negative")
	ErrInvalidPrice     = errors.New("ledger: price must be positive")
)

// Tx is one read-modify-write unit. It is only valid inside the callback
// passed to Store.RunTx.
type Tx interface {
	// Snapshot reads the buyer account and the property at one point in
	// the store's history. Absent entities come back as nil.
	Snapshot(ctx context.Context, accountID, propertyID string) (Snapshot, error)

	// UpdateProperty stages the post-sale property state. It fails with
	// ErrConflict unless the stored sale count still equals
	// u.ExpectedSaleCount.
	UpdateProperty(ctx context.Context, u PropertyUpdate) error

	// AdjustAccount stages a balance delta and an ownership change.
	AdjustAccount(ctx context.Context, u AccountUpdate) error

	// AppendSale stages a new Transaction Log entry. The timestamp is
	// assigned by the store.
	AppendSale(ctx context.Context, rec SaleRecord) error
}

// Store is the Ledger Store.
type Store interface {
	Reader

	// RunTx runs fn and commits what it staged if fn returns nil. Nothing
	// is committed when fn fails or ctx is done before commit.
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Reader serves non-transactional point reads.
type Reader interface {
	GetAccount(ctx context.Context, id string) (Account, error)
	GetProperty(ctx context.Context, id string) (Property, error)
	ListSales(ctx context.Context, propertyID string) ([]SaleRecord, error)
}
