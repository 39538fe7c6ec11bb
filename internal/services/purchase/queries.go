package purchase

import (
	"context"
	"errors"

	"github.com/fastprodman/propledger/internal/repos/ledger"
)

// Property returns the current state of a property, served from the cache
// when one is configured. Cache failures fall back to the store.
func (s *Service) Property(ctx context.Context, id string) (ledger.Property, error) {
	if s.cache != nil {
		p, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.log.WarnContext(ctx, "property cache read failed", "property_id", id, "error", err)
		} else if ok {
			return p, nil
		}
	}

	p, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return ledger.Property{}, s.classifyRead(ctx, err)
	}

	if s.cache != nil {
		err = s.cache.Set(ctx, p)
		if err != nil {
			s.log.WarnContext(ctx, "property cache write failed", "property_id", id, "error", err)
		}
	}

	return p, nil
}

// Sales returns the property's sale records ordered by sale number.
func (s *Service) Sales(ctx context.Context, propertyID string) ([]ledger.SaleRecord, error) {
	_, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, s.classifyRead(ctx, err)
	}

	sales, err := s.store.ListSales(ctx, propertyID)
	if err != nil {
		return nil, s.classifyRead(ctx, err)
	}

	return sales, nil
}

// Account returns the caller's balance and owned properties.
func (s *Service) Account(ctx context.Context, id string) (ledger.Account, error) {
	a, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return ledger.Account{}, s.classifyRead(ctx, err)
	}

	return a, nil
}

func (s *Service) classifyRead(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ledger.ErrPropertyNotFound):
		return newError(KindPropertyNotFound, err)
	case errors.Is(err, ledger.ErrAccountNotFound):
		return newError(KindBuyerNotFound, err)
	default:
		s.log.ErrorContext(ctx, "ledger read failed", "error", err)

		return newError(KindInternal, err)
	}
}
