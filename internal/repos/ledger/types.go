package ledger

import (
	"slices"
	"time"
)

type Account struct {
	ID         string   `json:"id"`
	Balance    int64    `json:"balance"`
	Properties []string `json:"properties"`
}

// Owns reports whether propertyID is in the account's owned set.
func (a Account) Owns(propertyID string) bool {
	return slices.Contains(a.Properties, propertyID)
}

type Property struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	Value     int64  `json:"value"`
	Price     int64  `json:"price"`
	SaleCount int64  `json:"saleCount"`
}

// Snapshot is a consistent view of a buyer and a property.
type Snapshot struct {
	Buyer    *Account
	Property *Property
}

// PropertyUpdate is the post-sale state of a property. SaleCount is
// incremented by the store.
type PropertyUpdate struct {
	ID                string
	Owner             string
	Value             int64
	Price             int64
	ExpectedSaleCount int64
}

// AccountUpdate adds Delta to the balance, then adds Acquire to and removes
// Release from the owned set. Empty ids are ignored.
type AccountUpdate struct {
	ID      string
	Delta   int64
	Acquire string
	Release string
}

type SaleRecord struct {
	PropertyID string    `json:"propertyId"`
	SaleNumber int64     `json:"saleNumber"`
	Buyer      string    `json:"buyer"`
	Seller     string    `json:"seller"`
	Price      int64     `json:"price"`
	Timestamp  time.Time `json:"timestamp"`
}
