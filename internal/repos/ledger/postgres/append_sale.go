package ledger

import (
	"context"
	"fmt"

	"github.com/fastprodman/propledger/internal/infra/pgutils"
	"github.com/fastprodman/propledger/internal/repos/ledger"
)

// AppendSale inserts a Transaction Log row; created_at defaults to the
// database clock.
func (t *ledgerTx) AppendSale(ctx context.Context, rec ledger.SaleRecord) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO property_sales (property_id, sale_number, buyer_id, seller_id, price)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.PropertyID, rec.SaleNumber, rec.Buyer, rec.Seller, rec.Price)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return fmt.Errorf("append %s: %w", rec.Key(), ledger.ErrDuplicateSale)
		}

		return fmt.Errorf("insert sale: %w", err)
	}

	return nil
}
