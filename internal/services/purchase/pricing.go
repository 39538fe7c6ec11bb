package purchase

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// DefaultGrowthRate is the reference escalation rate.
var DefaultGrowthRate = decimal.RequireFromString("1.15")

var (
	ErrNonPositivePrice = errors.New("purchase: sold price must be positive")
	ErrPriceOverflow    = errors.New("purchase: next price overflows int64")
)

var maxPrice = decimal.NewFromInt(math.MaxInt64)

// NextPrice returns ceil(sold * rate). For any rate > 1 and sold > 0 the
// result is strictly greater than sold.
func NextPrice(sold int64, rate decimal.Decimal) (int64, error) {
	if sold <= 0 {
		return 0, fmt.Errorf("next price of %d: %w", sold, ErrNonPositivePrice)
	}

	next := decimal.NewFromInt(sold).Mul(rate).Ceil()
	if next.GreaterThan(maxPrice) {
		return 0, fmt.Errorf("next price of %d at rate %s: %w", sold, rate, ErrPriceOverflow)
	}

	return next.IntPart(), nil
}
