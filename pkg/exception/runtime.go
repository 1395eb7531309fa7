package exception

import "github.com/yanun0323/errors"

// Runtime errors are produced by the enclosing runtime, never by the core.
// The core passes them through untouched.
var (
	ErrRuntimeUnknownProgram     = errors.New("runtime: unknown program")
	ErrRuntimeAccountNotProvided = errors.New("runtime: account not provided")
	ErrRuntimeMissingSignature   = errors.New("runtime: missing required signature")
	ErrRuntimeInvalidSeeds       = errors.New("runtime: invalid signer seeds")
	ErrRuntimeAccountNotFound    = errors.New("runtime: account not found")
	ErrRuntimeAccountInUse       = errors.New("runtime: account already in use")
	ErrRuntimeInvalidAddress     = errors.New("runtime: invalid derived address")
)

// Token program errors.
var (
	ErrTokenInsufficientFunds = errors.New("token: insufficient funds")
	ErrTokenOwnerMismatch     = errors.New("token: owner does not match")
	ErrTokenMintMismatch      = errors.New("token: mint does not match")
	ErrTokenNonZeroBalance    = errors.New("token: non-native account has balance")
	ErrTokenAuthorityNotSet   = errors.New("token: authority type not set")
	ErrTokenInvalidRole       = errors.New("token: authority type does not apply")
	ErrTokenOverflow          = errors.New("token: operation overflowed")
)

// Venue errors.
var (
	ErrVenueOpenOrdersInUse    = errors.New("venue: open orders already initialized")
	ErrVenueOpenOrdersNotFound = errors.New("venue: open orders not found")
	ErrVenueOpenOrdersOwner    = errors.New("venue: open orders owner mismatch")
	ErrVenueOpenOrdersMarket   = errors.New("venue: open orders market mismatch")
	ErrVenueOpenOrdersNotEmpty = errors.New("venue: open orders has live orders or unsettled funds")
	ErrVenueMarketNotFound     = errors.New("venue: market not found")
	ErrVenueVaultMismatch      = errors.New("venue: vault does not match market")
	ErrVenueOrderNotFound      = errors.New("venue: order not found")
	ErrVenueTooManyOrders      = errors.New("venue: too many open orders")
	ErrVenueWouldSelfTrade     = errors.New("venue: would self trade")
	ErrVenueInsufficientPayer  = errors.New("venue: payer has insufficient funds")
	ErrVenueExpired            = errors.New("venue: order expired")
)
