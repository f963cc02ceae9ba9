package domain

import "errors"

// Exchange-core errors. Every failure is reported synchronously as one of
// these sentinels (possibly wrapped); callers match with errors.Is.
var (
	// Validation.
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidExpiry            = errors.New("invalid expiry timestamp")
	ErrInvalidResolutionOutcome = errors.New("invalid outcome supplied for resolution")

	// Configuration mismatch: a stated account identity does not match the
	// identity recorded on the market or book.
	ErrCollateralAccountMismatch = errors.New("collateral account mismatch")
	ErrClaimAccountMismatch      = errors.New("claim account mismatch")

	// Capacity.
	ErrOrderBookFull = errors.New("order book is full")

	// Liquidity / price.
	ErrTooExpensive          = errors.New("order price exceeds limit")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity to fill order")

	// Counterpart mismatch during a fill.
	ErrMissingSellerAccounts = errors.New("missing seller payout accounts")
	ErrSellerAccountMismatch = errors.New("seller payout account mismatch")

	// Lifecycle state.
	ErrMarketNotOpen          = errors.New("market is not open")
	ErrMarketAlreadyResolved  = errors.New("market has already been resolved")
	ErrMarketNotExpired       = errors.New("market has not yet reached expiry")
	ErrMarketNotResolved      = errors.New("market is not in a resolved state")
	ErrCannotRedeemForOutcome = errors.New("cannot redeem for current market outcome")
	ErrNothingToRedeem        = errors.New("no winning tokens to redeem")

	// Arithmetic.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// General.
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockHeld      = errors.New("lock already held")
)
