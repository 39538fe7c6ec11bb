package ledger

import "fmt"

// SaleKey identifies a Transaction Log entry. SaleNumber is the property's
// sale count before the sale, so successive sales of one property never
// share a key.
type SaleKey struct {
	PropertyID string
	SaleNumber int64
}

func (r SaleRecord) Key() SaleKey {
	return SaleKey{PropertyID: r.PropertyID, SaleNumber: r.SaleNumber}
}

func (k SaleKey) String() string {
	return fmt.Sprintf("%s/sales/%d", k.PropertyID, k.SaleNumber)
}
