package domain

import "time"

// AssetID identifies a fungible asset on the ledger substrate.
type AssetID string

// AccountID identifies a custodial or user account on the ledger substrate.
type AccountID string

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusOpen     MarketStatus = "open"
	MarketStatusHalted   MarketStatus = "halted"
	MarketStatusResolved MarketStatus = "resolved"
)

// Outcome is the final result of a binary market. It stays Pending until the
// market is resolved.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeYes     Outcome = "yes"
	OutcomeNo      Outcome = "no"
	OutcomeInvalid Outcome = "invalid"
)

// Terminal reports whether o is a valid resolution outcome.
func (o Outcome) Terminal() bool {
	return o == OutcomeYes || o == OutcomeNo || o == OutcomeInvalid
}

// Market is a binary-outcome prediction market. Collateral deposited against
// it backs equal supplies of the yes and no claim assets; the vault holds the
// locked collateral until resolution.
type Market struct {
	ID              string
	Authority       string // principal allowed to resolve
	CollateralAsset AssetID
	YesAsset        AssetID
	NoAsset         AssetID
	Vault           AccountID
	ExpiryTS        int64 // unix seconds
	Status          MarketStatus
	Outcome         Outcome
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}

// Expired reports whether the market's expiry has passed at the given time.
func (m Market) Expired(now time.Time) bool {
	return now.Unix() >= m.ExpiryTS
}
