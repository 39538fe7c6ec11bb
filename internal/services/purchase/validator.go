package purchase

import (
	"errors"

	"github.com/fastprodman/propledger/internal/repos/ledger"
)

var (
	errBuyerMissing    = errors.New("buyer account does not exist")
	errPropertyMissing = errors.New("property does not exist")
	errFunds           = errors.New("balance below asking price")
	errAlreadyOwner    = errors.New("buyer already owns the property")
)

// Sale is a snapshot that passed validation.
type Sale struct {
	Buyer    ledger.Account
	Property ledger.Property
	Seller   string
}

// Validate checks snap in a fixed order: buyer exists, property exists,
// balance covers the price, buyer does not already own the property.
func Validate(snap ledger.Snapshot) (Sale, error) {
	if snap.Buyer == nil {
		return Sale{}, newError(KindBuyerNotFound, errBuyerMissing)
	}

	if snap.Property == nil {
		return Sale{}, newError(KindPropertyNotFound, errPropertyMissing)
	}

	buyer, prop := *snap.Buyer, *snap.Property

	if buyer.Balance < prop.Price {
		return Sale{}, newError(KindInsufficientBalance, errFunds)
	}

	if buyer.Owns(prop.ID) || buyer.ID == prop.Owner {
		return Sale{}, newError(KindOwnershipConflict, errAlreadyOwner)
	}

	return Sale{Buyer: buyer, Property: prop, Seller: prop.Owner}, nil
}
