package ledger

import (
	"context"
	"fmt"

	"github.com/fastprodman/propledger/internal/repos/ledger"
)

func (r *ledgerRepo) GetAccount(ctx context.Context, id string) (ledger.Account, error) {
	return getAccount(ctx, r.db, id)
}

func (r *ledgerRepo) GetProperty(ctx context.Context, id string) (ledger.Property, error) {
	return getProperty(ctx, r.db, id)
}

func (r *ledgerRepo) ListSales(ctx context.Context, propertyID string) ([]ledger.SaleRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sale_number, buyer_id, seller_id, price, created_at
		FROM property_sales
		WHERE property_id = $1
		ORDER BY sale_number
	`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	out := make([]ledger.SaleRecord, 0)

	for rows.Next() {
		rec := ledger.SaleRecord{PropertyID: propertyID}

		err = rows.Scan(&rec.SaleNumber, &rec.Buyer, &rec.Seller, &rec.Price, &rec.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}

		out = append(out, rec)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate sales: %w", err)
	}

	return out, nil
}
