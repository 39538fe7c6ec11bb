package ledger

import (
	"context"
	"fmt"

	"github.com/fastprodman/propledger/internal/infra/pgutils"
	"github.com/fastprodman/propledger/internal/repos/ledger"
)

func (t *ledgerTx) AdjustAccount(ctx context.Context, u ledger.AccountUpdate) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance + $2
		WHERE id = $1
	`, u.ID, u.Delta)
	if err != nil {
		if pgutils.IsCheckViolation(err) {
			return fmt.Errorf("adjust account %s: %w", u.ID, ledger.ErrNegativeBalance)
		}

		return fmt.Errorf("adjust balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("adjust account %s: %w", u.ID, ledger.ErrAccountNotFound)
	}

	if u.Release != "" {
		_, err = t.tx.ExecContext(ctx, `
			DELETE FROM account_properties
			WHERE account_id = $1
			  AND property_id = $2
		`, u.ID, u.Release)
		if err != nil {
			return fmt.Errorf("release property: %w", err)
		}
	}

	if u.Acquire != "" {
		// property_id uniqueness is checked at COMMIT, so the buyer may
		// acquire before the seller's release is staged.
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO account_properties (account_id, property_id)
			VALUES ($1, $2)
			ON CONFLICT (account_id, property_id) DO NOTHING
		`, u.ID, u.Acquire)
		if err != nil {
			return fmt.Errorf("acquire property: %w", err)
		}
	}

	return nil
}
