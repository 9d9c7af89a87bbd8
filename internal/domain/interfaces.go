package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// AssetCustodian is the capability the auction consumes to hold and move the
// asset. Implementations are external; the auction never assumes more than
// these three calls.
type AssetCustodian interface {
	// OwnerOf returns the current holder of the token.
	OwnerOf(asset Asset) (common.Address, error)

	// ApprovedFor returns the address approved to move the token, or the zero
	// address when no approval exists.
	ApprovedFor(asset Asset) (common.Address, error)

	// Transfer moves the token from one holder to another. A returned error
	// means no movement happened; there is no partial transfer.
	Transfer(from, to common.Address, asset Asset) error
}

// PaymentSender is the capability used for outgoing currency. A Send must
// never be assumed to succeed, and the callee may run arbitrary code,
// including calling back into the component that initiated the send.
type PaymentSender interface {
	Send(to common.Address, amount decimal.Decimal) error
}

// PaymentCollector is the capability used to take custody of the currency a
// bidder attaches to a bid. Collecting happens before any state mutation, so
// a failed collect aborts the bid with nothing changed.
type PaymentCollector interface {
	Collect(from common.Address, amount decimal.Decimal) error
}

// Clock abstracts the ambient time source so deadline logic is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
