package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/propledger/internal/infra/pgutils"
	"github.com/fastprodman/propledger/internal/repos/ledger"
)

var _ ledger.Store = (*ledgerRepo)(nil)

type ledgerRepo struct{ db *sql.DB }

func New(db *sql.DB) *ledgerRepo {
	return &ledgerRepo{db: db}
}

// RunTx runs fn in a SERIALIZABLE transaction. Serialization failures and
// deadlocks, whether raised by a statement or by COMMIT, come back wrapped in
// ledger.ErrConflict.
func (r *ledgerRepo) RunTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	err := pgutils.WithTx(ctx, r.db, pgutils.Serializable, func(tx *sql.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
	if err != nil {
		if pgutils.IsSerializationFailure(err) && !errors.Is(err, ledger.ErrConflict) {
			return fmt.Errorf("%w: %w", ledger.ErrConflict, err)
		}

		return err
	}

	return nil
}

type ledgerTx struct{ tx *sql.Tx }
