package auction

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"auction_go/internal/domain"
	"auction_go/internal/events"
)

// State is the auction lifecycle position. Transitions only move forward:
// NotStarted -> Active -> Ended.
type State int

const (
	NotStarted State = iota
	Active
	Ended
)

// String implements fmt.Stringer for logs.
func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Active:
		return "active"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// Timing defaults and bounds.
const (
	// DefaultGracePeriod is the window before the deadline in which a bid
	// triggers an extension.
	DefaultGracePeriod = 5 * time.Minute

	// DefaultExtension is how far a qualifying late bid pushes the deadline.
	DefaultExtension = 2 * time.Minute

	// MaxDuration is the hard upper bound on a configured auction duration.
	MaxDuration = 30 * 24 * time.Hour
)

// Config holds the immutable auction parameters fixed at creation.
type Config struct {
	Duration     time.Duration
	MinIncrement decimal.Decimal

	// GracePeriod, Extension and MaxDuration default to the package constants
	// when zero.
	GracePeriod time.Duration
	Extension   time.Duration
	MaxDuration time.Duration
}

// validate rejects configurations before any state exists.
func (c *Config) validate() error {
	if c.MaxDuration == 0 {
		c.MaxDuration = MaxDuration
	}
	if c.Duration <= 0 {
		return &domain.ConfigError{Field: "duration", Reason: "must be positive"}
	}
	if c.Duration > c.MaxDuration {
		return &domain.ConfigError{Field: "duration", Reason: "exceeds maximum"}
	}
	if !c.MinIncrement.IsPositive() {
		return &domain.ConfigError{Field: "min_increment", Reason: "must be positive"}
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.Extension == 0 {
		c.Extension = DefaultExtension
	}
	return nil
}

// Deps are the external capabilities the auction consumes. Custodian, Payments
// and Collector are required; Clock defaults to the system clock and Hub may
// be nil when nobody listens.
//
// Custodian and Collector are invoked while the auction lock is held so that
// a failed move aborts with no state change; their implementations are
// trusted and must not call back into the auction. Only Payments.Send runs
// outside the lock and may face hostile callees.
type Deps struct {
	Custodian domain.AssetCustodian
	Payments  domain.PaymentSender
	Collector domain.PaymentCollector
	Clock     domain.Clock
	Hub       *events.Hub
}

// Auction is a single-asset English auction. One instance per asset; all
// state transitions run under the instance mutex, and outgoing currency sends
// run after the state commit, outside the lock, behind a reentrancy guard.
type Auction struct {
	asset  domain.Asset
	seller common.Address
	escrow common.Address // custody identity of this auction instance
	cfg    Config

	custodian domain.AssetCustodian
	payments  domain.PaymentSender
	collector domain.PaymentCollector
	clock     domain.Clock
	hub       *events.Hub

	mu            sync.RWMutex
	state         State
	endAt         time.Time
	highestBid    decimal.Decimal
	highestBidder common.Address
	ledger        *Ledger
	sending       bool // true while an outgoing send is in flight
}

// New creates an auction bound to (seller, asset) with the given config.
func New(seller common.Address, asset domain.Asset, cfg Config, deps Deps) (*Auction, error) {
	if asset.IsZero() {
		return nil, &domain.ConfigError{Field: "collection", Reason: "zero address"}
	}
	if seller == (common.Address{}) {
		return nil, &domain.ConfigError{Field: "seller", Reason: "zero address"}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if deps.Custodian == nil || deps.Payments == nil || deps.Collector == nil {
		return nil, &domain.ConfigError{Field: "deps", Reason: "custodian, payments and collector are required"}
	}
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}

	return &Auction{
		asset:     asset,
		seller:    seller,
		escrow:    EscrowAddressFor(asset),
		cfg:       cfg,
		custodian: deps.Custodian,
		payments:  deps.Payments,
		collector: deps.Collector,
		clock:     deps.Clock,
		hub:       deps.Hub,
		ledger:    NewLedger(),
	}, nil
}

// EscrowAddressFor derives the custody identity for an auction over the
// asset. Deterministic: approvals can target it before the auction exists.
func EscrowAddressFor(asset domain.Asset) common.Address {
	key := asset.LivenessKey()
	return common.BytesToAddress(crypto.Keccak256([]byte("auction-escrow"), key.Bytes())[12:])
}

// Start opens bidding. Seller only. Moves the asset from the seller into the
// auction's custody and fixes the deadline at now + duration.
func (a *Auction) Start(caller common.Address) error {
	a.mu.Lock()

	if caller != a.seller {
		a.mu.Unlock()
		return domain.ErrNotSeller
	}
	if a.state != NotStarted {
		a.mu.Unlock()
		return domain.ErrAlreadyStarted
	}

	approved, err := a.custodian.ApprovedFor(a.asset)
	if err != nil {
		a.mu.Unlock()
		return &domain.TransferError{Op: "asset", Err: err}
	}
	if approved != a.escrow {
		a.mu.Unlock()
		return domain.ErrNotApproved
	}

	// Asset move precedes the state commit: a failed move leaves NotStarted.
	if err := a.custodian.Transfer(a.seller, a.escrow, a.asset); err != nil {
		a.mu.Unlock()
		return &domain.TransferError{Op: "asset", Err: err}
	}

	now := a.clock.Now()
	a.state = Active
	a.endAt = now.Add(a.cfg.Duration)
	endAt := a.endAt
	a.mu.Unlock()

	a.publish(events.AuctionStarted{Asset: a.asset, StartTime: now, EndTime: endAt})
	slog.Info("auction started",
		slog.String("asset", a.asset.String()),
		slog.Time("end_at", endAt))
	return nil
}

// Bid places a bid of amount by caller. The attached currency is collected
// into escrow before any state changes; the previous highest bid, if any, is
// credited to the outbid party's ledger balance, never sent directly.
func (a *Auction) Bid(caller common.Address, amount decimal.Decimal) error {
	a.mu.Lock()

	switch a.state {
	case NotStarted:
		a.mu.Unlock()
		return domain.ErrNotStarted
	case Ended:
		a.mu.Unlock()
		return domain.ErrAlreadyEnded
	}

	now := a.clock.Now()
	if !now.Before(a.endAt) {
		a.mu.Unlock()
		return domain.ErrDeadlinePassed
	}

	min := a.highestBid.Add(a.cfg.MinIncrement)
	if amount.LessThan(min) {
		a.mu.Unlock()
		return &domain.BidTooLowError{Amount: amount, Min: min}
	}

	// Take custody of the attached value first; a failed collect aborts the
	// bid with nothing changed.
	if err := a.collector.Collect(caller, amount); err != nil {
		a.mu.Unlock()
		return &domain.TransferError{Op: "payment", Err: err}
	}

	if a.highestBidder != (common.Address{}) {
		a.ledger.Credit(a.highestBidder, a.highestBid)
	}
	a.highestBid = amount
	a.highestBidder = caller

	var extended bool
	if a.endAt.Sub(now) <= a.cfg.GracePeriod {
		a.endAt = a.endAt.Add(a.cfg.Extension)
		extended = true
	}
	endAt := a.endAt
	a.mu.Unlock()

	a.publish(events.BidPlaced{Asset: a.asset, Bidder: caller, Amount: amount, Timestamp: now})
	if extended {
		a.publish(events.AuctionExtended{Asset: a.asset, NewEndTime: endAt, ExtendedBy: a.cfg.Extension})
	}
	return nil
}

// Withdraw pays the caller whatever the ledger owes them. The balance is
// zeroed before the send; a reentrant call during the send sees zero. On a
// send failure the amount is credited back and ErrTransferFailed returned, so
// the caller can retry once their payment path works.
func (a *Auction) Withdraw(caller common.Address) error {
	a.mu.Lock()

	if a.sending {
		a.mu.Unlock()
		return domain.ErrReentrantCall
	}

	amount := a.ledger.Debit(caller)
	if amount.IsZero() {
		a.mu.Unlock()
		return domain.ErrNoBalance
	}

	a.sending = true
	a.mu.Unlock()

	err := a.payments.Send(caller, amount)

	a.mu.Lock()
	a.sending = false
	if err != nil {
		a.ledger.Credit(caller, amount)
		a.mu.Unlock()
		return &domain.TransferError{Op: "payment", Err: err}
	}
	a.mu.Unlock()

	a.publish(events.FundsWithdrawn{Asset: a.asset, Bidder: caller, Amount: amount, Timestamp: a.clock.Now()})
	return nil
}

// Cancel terminates a bid-less auction and returns the asset to the seller.
// Seller only. Once any bid has been accepted, cancellation is permanently off
// the table.
func (a *Auction) Cancel(caller common.Address) error {
	a.mu.Lock()

	if caller != a.seller {
		a.mu.Unlock()
		return domain.ErrNotSeller
	}
	if a.state != Active {
		a.mu.Unlock()
		return domain.ErrNotCancellable
	}
	if a.highestBidder != (common.Address{}) {
		a.mu.Unlock()
		return domain.ErrBidExists
	}

	if err := a.custodian.Transfer(a.escrow, a.seller, a.asset); err != nil {
		a.mu.Unlock()
		return &domain.TransferError{Op: "asset", Err: err}
	}

	a.state = Ended
	a.mu.Unlock()

	a.publish(events.AuctionCancelled{Asset: a.asset, Timestamp: a.clock.Now()})
	slog.Info("auction cancelled", slog.String("asset", a.asset.String()))
	return nil
}

// End settles the auction after the deadline. Seller only. The asset goes to
// the winner and the proceeds to the seller; with no bids the asset returns
// to the seller and no currency moves. If the direct payout to the seller
// fails, the proceeds are credited to the seller's ledger balance instead;
// settlement must not be blockable through the payment path.
func (a *Auction) End(caller common.Address) error {
	a.mu.Lock()

	if caller != a.seller {
		a.mu.Unlock()
		return domain.ErrNotSeller
	}
	if a.state != Active {
		a.mu.Unlock()
		return domain.ErrNotActive
	}
	if a.clock.Now().Before(a.endAt) {
		a.mu.Unlock()
		return domain.ErrTimeNotOver
	}
	if a.sending {
		a.mu.Unlock()
		return domain.ErrReentrantCall
	}

	winner := a.highestBidder
	amount := a.highestBid

	recipient := a.seller
	if winner != (common.Address{}) {
		recipient = winner
	}
	// Asset move precedes the state commit: a failed move leaves the auction
	// Active and the call can be retried.
	if err := a.custodian.Transfer(a.escrow, recipient, a.asset); err != nil {
		a.mu.Unlock()
		return &domain.TransferError{Op: "asset", Err: err}
	}

	a.state = Ended

	if winner == (common.Address{}) {
		a.mu.Unlock()
		a.publish(events.AuctionEnded{Asset: a.asset, Winner: common.Address{}, Amount: decimal.Zero, Timestamp: a.clock.Now()})
		slog.Info("auction ended with no bids", slog.String("asset", a.asset.String()))
		return nil
	}

	a.sending = true
	a.mu.Unlock()

	err := a.payments.Send(a.seller, amount)

	a.mu.Lock()
	a.sending = false
	if err != nil {
		// Fall back to the pull path rather than failing settlement.
		a.ledger.Credit(a.seller, amount)
		slog.Warn("seller payout failed, credited to ledger",
			slog.String("asset", a.asset.String()),
			slog.String("amount", amount.String()),
			slog.Any("error", err))
	}
	a.mu.Unlock()

	a.publish(events.AuctionEnded{Asset: a.asset, Winner: winner, Amount: amount, Timestamp: a.clock.Now()})
	slog.Info("auction ended",
		slog.String("asset", a.asset.String()),
		slog.String("winner", winner.Hex()),
		slog.String("amount", amount.String()))
	return nil
}

// ============================ Read-only queries ============================

// IsStarted reports whether the auction has left NotStarted.
func (a *Auction) IsStarted() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state != NotStarted
}

// IsEnded reports whether the auction reached its terminal state.
func (a *Auction) IsEnded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state == Ended
}

// State returns the current lifecycle state.
func (a *Auction) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// EndAt returns the current deadline. Zero before Start.
func (a *Auction) EndAt() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.endAt
}

// HighestBid returns the current highest bid, zero when none.
func (a *Auction) HighestBid() decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.highestBid
}

// HighestBidder returns the current highest bidder, zero address when none.
func (a *Auction) HighestBidder() common.Address {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.highestBidder
}

// BalanceOwed returns the refund currently owed to addr.
func (a *Auction) BalanceOwed(addr common.Address) decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ledger.Owed(addr)
}

// OwedTotal returns the sum of all ledger balances.
func (a *Auction) OwedTotal() decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ledger.Total()
}

// Seller returns the fixed seller identity.
func (a *Auction) Seller() common.Address { return a.seller }

// Asset returns the auctioned asset.
func (a *Auction) Asset() domain.Asset { return a.asset }

// EscrowAddress returns the custody identity this auction holds assets and
// collected bids under. Approvals must target this address before Start.
func (a *Auction) EscrowAddress() common.Address { return a.escrow }

func (a *Auction) publish(ev events.Event) {
	if a.hub != nil {
		a.hub.Publish(ev)
	}
}
