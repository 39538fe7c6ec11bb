package ledger

import (
	"context"
	"fmt"

	"github.com/fastprodman/propledger/internal/infra/pgutils"
	"github.com/fastprodman/propledger/internal/repos/ledger"
)

func (t *ledgerTx) UpdateProperty(ctx context.Context, u ledger.PropertyUpdate) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE properties
		SET owner_id = $2,
		    value = $3,
		    price = $4,
		    sale_count = sale_count + 1
		WHERE id = $1
		  AND sale_count = $5
	`, u.ID, u.Owner, u.Value, u.Price, u.ExpectedSaleCount)
	if err != nil {
		if pgutils.IsCheckViolation(err) {
			return fmt.Errorf("update property %s: %w", u.ID, ledger.ErrInvalidPrice)
		}

		return fmt.Errorf("update property: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("property %s sale count moved: %w", u.ID, ledger.ErrConflict)
	}

	return nil
}
