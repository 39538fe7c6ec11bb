package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/propledger/internal/repos/ledger"
)

func (t *ledgerTx) Snapshot(ctx context.Context, accountID, propertyID string) (ledger.Snapshot, error) {
	var snap ledger.Snapshot

	buyer, err := getAccount(ctx, t.tx, accountID)
	switch {
	case err == nil:
		snap.Buyer = &buyer
	case !errors.Is(err, ledger.ErrAccountNotFound):
		return ledger.Snapshot{}, fmt.Errorf("snapshot buyer: %w", err)
	}

	property, err := getProperty(ctx, t.tx, propertyID)
	switch {
	case err == nil:
		snap.Property = &property
	case !errors.Is(err, ledger.ErrPropertyNotFound):
		return ledger.Snapshot{}, fmt.Errorf("snapshot property: %w", err)
	}

	return snap, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getAccount(ctx context.Context, q querier, id string) (ledger.Account, error) {
	acc := ledger.Account{ID: id, Properties: []string{}}

	err := q.QueryRowContext(ctx, `
		SELECT balance
		FROM accounts
		WHERE id = $1
	`, id).Scan(&acc.Balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Account{}, ledger.ErrAccountNotFound
		}

		return ledger.Account{}, fmt.Errorf("get account: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT property_id
		FROM account_properties
		WHERE account_id = $1
		ORDER BY property_id
	`, id)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("list owned properties: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pid string

		err = rows.Scan(&pid)
		if err != nil {
			return ledger.Account{}, fmt.Errorf("scan owned property: %w", err)
		}

		acc.Properties = append(acc.Properties, pid)
	}

	err = rows.Err()
	if err != nil {
		return ledger.Account{}, fmt.Errorf("iterate owned properties: %w", err)
	}

	return acc, nil
}

func getProperty(ctx context.Context, q querier, id string) (ledger.Property, error) {
	p := ledger.Property{ID: id}

	err := q.QueryRowContext(ctx, `
		SELECT owner_id, value, price, sale_count
		FROM properties
		WHERE id = $1
	`, id).Scan(&p.Owner, &p.Value, &p.Price, &p.SaleCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Property{}, ledger.ErrPropertyNotFound
		}

		return ledger.Property{}, fmt.Errorf("get property: %w", err)
	}

	return p, nil
}
