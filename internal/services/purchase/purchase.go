// Package purchase coordinates property purchases against a ledger.Store:
// snapshot, validate, stage the four writes, commit, and retry on conflict.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/propledger/internal/repos/ledger"
	"github.com/fastprodman/propledger/pkg/backoff"
)

// Recorder observes finished purchases. Outcome is "success" or a Kind name.
type Recorder interface {
	ObservePurchase(outcome string, attempts int)
}

// PropertyCache is an optional read cache for GetProperty.
type PropertyCache interface {
	Get(ctx context.Context, id string) (ledger.Property, bool, error)
	Set(ctx context.Context, p ledger.Property) error
	Invalidate(ctx context.Context, id string) error
}

const outcomeSuccess = "success"

type Service struct {
	store ledger.Store
	cfg   Config
	log   *slog.Logger
	cache PropertyCache
	rec   Recorder
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithCache(c PropertyCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.rec = r }
}

func New(store ledger.Store, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("purchase: nil store")
	}

	err := cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("purchase: invalid config: %w", err)
	}

	s := &Service{
		store: store,
		cfg:   cfg,
		log:   slog.Default(),
		sleep: backoff.Sleep,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Purchase transfers propertyID to buyerID at its current asking price.
// Every failure is an *Error; business rejections are returned on the
// first attempt, store conflicts are retried up to Config.MaxAttempts.
func (s *Service) Purchase(ctx context.Context, buyerID, propertyID string) error {
	attempts, err := s.purchase(ctx, buyerID, propertyID)

	outcome := outcomeSuccess
	if err != nil {
		outcome = KindOf(err).String()
	}

	if s.rec != nil {
		s.rec.ObservePurchase(outcome, attempts)
	}

	if err != nil {
		return err
	}

	s.invalidate(ctx, propertyID)

	return nil
}

func (s *Service) purchase(ctx context.Context, buyerID, propertyID string) (int, error) {
	log := s.log.With("buyer_id", buyerID, "property_id", propertyID)

	for attempt := 1; ; attempt++ {
		err := s.store.RunTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			return s.stage(ctx, tx, buyerID, propertyID)
		})
		if err == nil {
			return attempt, nil
		}

		var perr *Error
		if errors.As(err, &perr) {
			return attempt, perr
		}

		if !retryable(err) {
			log.ErrorContext(ctx, "purchase failed", "attempt", attempt, "error", err)

			return attempt, newError(KindInternal, err)
		}

		if attempt >= s.cfg.MaxAttempts {
			log.WarnContext(ctx, "purchase retries exhausted", "attempts", attempt, "error", err)

			return attempt, newError(KindContention, err)
		}

		delay := s.cfg.Backoff.Delay(attempt - 1)
		log.DebugContext(ctx, "purchase conflict, retrying", "attempt", attempt, "delay", delay)

		err = s.sleep(ctx, delay)
		if err != nil {
			log.ErrorContext(ctx, "purchase abandoned during backoff", "attempt", attempt, "error", err)

			return attempt, newError(KindInternal, err)
		}
	}
}

// A duplicate sale key means another purchase committed at the same sale
// count after our snapshot, which is a conflict like any other.
func retryable(err error) bool {
	return errors.Is(err, ledger.ErrConflict) || errors.Is(err, ledger.ErrDuplicateSale)
}

func (s *Service) stage(ctx context.Context, tx ledger.Tx, buyerID, propertyID string) error {
	snap, err := tx.Snapshot(ctx, buyerID, propertyID)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	sale, err := Validate(snap)
	if err != nil {
		return err
	}

	prop := sale.Property
	sold := prop.Price

	next, err := NextPrice(sold, s.cfg.GrowthRate)
	if err != nil {
		return fmt.Errorf("price property %s: %w", prop.ID, err)
	}

	err = tx.UpdateProperty(ctx, ledger.PropertyUpdate{
		ID:                prop.ID,
		Owner:             sale.Buyer.ID,
		Value:             sold,
		Price:             next,
		ExpectedSaleCount: prop.SaleCount,
	})
	if err != nil {
		return fmt.Errorf("update property: %w", err)
	}

	err = tx.AdjustAccount(ctx, ledger.AccountUpdate{ID: sale.Buyer.ID, Delta: -sold, Acquire: prop.ID})
	if err != nil {
		return fmt.Errorf("debit buyer: %w", err)
	}

	err = tx.AdjustAccount(ctx, ledger.AccountUpdate{ID: sale.Seller, Delta: sold, Release: prop.ID})
	if err != nil {
		return fmt.Errorf("credit seller: %w", err)
	}

	err = tx.AppendSale(ctx, ledger.SaleRecord{
		PropertyID: prop.ID,
		SaleNumber: prop.SaleCount,
		Buyer:      sale.Buyer.ID,
		Seller:     sale.Seller,
		Price:      sold,
	})
	if err != nil {
		return fmt.Errorf("append sale: %w", err)
	}

	return nil
}

func (s *Service) invalidate(ctx context.Context, propertyID string) {
	if s.cache == nil {
		return
	}

	err := s.cache.Invalidate(context.WithoutCancel(ctx), propertyID)
	if err != nil {
		s.log.WarnContext(ctx, "property cache invalidation failed", "property_id", propertyID, "error", err)
	}
}
