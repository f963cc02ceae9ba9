// Package ledger defines the value-transfer substrate the exchange core is
// built on: fungible assets, keyed accounts, and atomic transfer/mint/burn
// primitives. The exchange never touches balances directly; every movement
// goes through a Ledger, and multi-leg operations run inside Transact so a
// failed leg leaves no partial effect.
package ledger

import (
	"errors"

	"github.com/gridironmarkets/gridiron/internal/domain"
)

var (
	ErrUnknownAsset      = errors.New("ledger: unknown asset")
	ErrUnknownAccount    = errors.New("ledger: unknown account")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrBadAuthority      = errors.New("ledger: bad authority")
	ErrAmountOverflow    = errors.New("ledger: amount overflow")
)

// Authority is a capability token required to mint or burn an asset and to
// debit custodial accounts owned by it. Only the component that created the
// asset holds the token; it is never exposed to calling clients, so raw
// vault-debit and minting capability cannot leak.
type Authority struct {
	id string
}

// Ledger is the external transactional substrate. Implementations must make
// each method atomic and serialize conflicting operations; Transact groups
// several legs into one all-or-nothing unit of work.
type Ledger interface {
	// NewAuthority mints a fresh capability token. One Authority may own
	// several assets and custodial accounts, mirroring how a market's
	// signing authority controls both claim mints and its vaults.
	NewAuthority() Authority

	// CreateAsset registers a new fungible asset whose mint capability is
	// bound to the given Authority.
	CreateAsset(auth Authority) (domain.AssetID, error)

	// CreateAccount opens an account holding the given asset. If owner is
	// non-nil the account is custodial: debits require the owner Authority.
	CreateAccount(asset domain.AssetID, owner *Authority) (domain.AccountID, error)

	// AssetOf returns the asset an account holds.
	AssetOf(account domain.AccountID) (domain.AssetID, error)

	// Transfer moves amount between two accounts of the same asset. The
	// debit side must not be custodial; callers' own authorization over
	// non-custodial accounts is the substrate's concern, not the ledger's.
	Transfer(from, to domain.AccountID, amount uint64) error

	// TransferAuthorized moves amount out of a custodial account under its
	// owner Authority.
	TransferAuthorized(auth Authority, from, to domain.AccountID, amount uint64) error

	// Mint creates amount units of asset in the target account.
	Mint(auth Authority, asset domain.AssetID, to domain.AccountID, amount uint64) error

	// Burn destroys amount units held by the given account.
	Burn(asset domain.AssetID, from domain.AccountID, amount uint64) error

	// Balance returns an account's current balance.
	Balance(account domain.AccountID) (uint64, error)

	// Supply returns the total outstanding amount of an asset.
	Supply(asset domain.AssetID) (uint64, error)

	// Transact runs fn as one atomic unit of work: if fn returns an error,
	// every leg it executed is rolled back.
	Transact(fn func(Ledger) error) error
}
