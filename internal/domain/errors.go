package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Every failure a caller can hit is a distinct, matchable error kind.
// Handlers are expected to branch with errors.Is / errors.As, never by
// string comparison.

// State-mismatch errors.
var (
	// ErrAlreadyStarted is returned when Start is called on an auction that left NotStarted.
	ErrAlreadyStarted = errors.New("auction already started")

	// ErrNotStarted is returned when an operation requires an Active auction but it never started.
	ErrNotStarted = errors.New("auction not started")

	// ErrAlreadyEnded is returned when an operation arrives after the auction reached its terminal state.
	ErrAlreadyEnded = errors.New("auction already ended")

	// ErrNotActive is returned by End when the auction is not in the Active state.
	ErrNotActive = errors.New("auction not active")

	// ErrNotCancellable is returned by Cancel when the auction is not in a cancellable state.
	ErrNotCancellable = errors.New("auction not cancellable")
)

// Temporal errors.
var (
	// ErrTimeNotOver is returned by End before the deadline has passed.
	ErrTimeNotOver = errors.New("auction time not over")

	// ErrDeadlinePassed is returned by Bid once the deadline is behind us.
	ErrDeadlinePassed = errors.New("auction deadline passed")
)

// Economic errors.
var (
	// ErrNoBalance is returned by Withdraw when nothing is owed to the caller.
	ErrNoBalance = errors.New("no balance to withdraw")

	// ErrBidExists is returned by Cancel once a bid has been accepted; cancellation
	// after a bid would let a seller dodge a sale.
	ErrBidExists = errors.New("bid already placed")
)

// Authorization errors.
var (
	// ErrNotSeller is returned when a seller-only operation is called by anyone else.
	ErrNotSeller = errors.New("caller is not the seller")

	// ErrNotApproved is returned by Start when the custodian has not approved the
	// auction to move the asset on the seller's behalf.
	ErrNotApproved = errors.New("auction not approved to transfer asset")

	// ErrReentrantCall is returned when a call arrives while an outgoing transfer
	// is still in flight.
	ErrReentrantCall = errors.New("reentrant call")
)

// Registry errors.
var (
	// ErrAuctionExists is returned on duplicate creation, and on removal when no
	// live auction exists for the key.
	ErrAuctionExists = errors.New("live auction state conflict")

	// ErrAuctionNotEnded is returned on removal of an auction that has not reached
	// its terminal state.
	ErrAuctionNotEnded = errors.New("auction not ended")
)

// Custody / payment errors.
var (
	// ErrTransferFailed wraps any outgoing asset or currency movement the backend
	// reported as unsuccessful. Never swallowed.
	ErrTransferFailed = errors.New("transfer failed")
)

// Mint boundary errors.
var (
	// ErrMintClosed is returned while the sale phase does not admit the caller.
	ErrMintClosed = errors.New("minting not open for caller")

	// ErrIncorrectPayment is returned when the attached payment does not match the price.
	ErrIncorrectPayment = errors.New("incorrect payment")

	// ErrSupplyExhausted is returned once the token counter hits the supply cap.
	ErrSupplyExhausted = errors.New("supply exhausted")

	// ErrMintLimit is returned when an allowlisted address exceeds its mint quota.
	ErrMintLimit = errors.New("mint limit reached")
)

// BidTooLowError reports a rejected bid together with the minimum it had to meet.
type BidTooLowError struct {
	Amount decimal.Decimal
	Min    decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low: got %s, need at least %s", e.Amount, e.Min)
}

// ErrBidTooLow is the sentinel matched by errors.Is for any BidTooLowError.
var ErrBidTooLow = errors.New("bid too low")

// Is lets errors.Is(err, ErrBidTooLow) match regardless of amounts.
func (e *BidTooLowError) Is(target error) bool {
	return target == ErrBidTooLow
}

// ConfigError reports an invalid creation parameter. Raised before any state mutation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransferError carries the backend failure behind an ErrTransferFailed.
type TransferError struct {
	Op  string // "asset" or "payment"
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s transfer failed: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrTransferFailed) match any TransferError.
func (e *TransferError) Is(target error) bool {
	return target == ErrTransferFailed
}
