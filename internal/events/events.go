package events

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"auction_go/internal/domain"
)

// Event is implemented by every notification the system emits.
type Event interface {
	// Kind returns a stable machine-readable name, e.g. "auction_started".
	Kind() string
}

// AuctionCreated is emitted by the registry on successful creation.
type AuctionCreated struct {
	AuctionID    common.Hash     `json:"auction_id"` // liveness key of the auctioned asset
	Creator      common.Address  `json:"creator"`
	Asset        domain.Asset    `json:"asset"`
	Duration     time.Duration   `json:"duration"`
	MinIncrement decimal.Decimal `json:"min_increment"`
	Timestamp    time.Time       `json:"timestamp"`
}

// AuctionRemoved is emitted by the registry when a live entry is dropped.
type AuctionRemoved struct {
	Asset     domain.Asset `json:"asset"`
	Timestamp time.Time    `json:"timestamp"`
}

// AuctionStarted is emitted when the seller opens bidding.
type AuctionStarted struct {
	Asset     domain.Asset `json:"asset"`
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
}

// BidPlaced is emitted on every accepted bid.
type BidPlaced struct {
	Asset     domain.Asset    `json:"asset"`
	Bidder    common.Address  `json:"bidder"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// AuctionExtended is emitted when a late bid pushes the deadline forward.
type AuctionExtended struct {
	Asset      domain.Asset  `json:"asset"`
	NewEndTime time.Time     `json:"new_end_time"`
	ExtendedBy time.Duration `json:"extended_by"`
}

// FundsWithdrawn is emitted when an outbid party pulls their refund.
type FundsWithdrawn struct {
	Asset     domain.Asset    `json:"asset"`
	Bidder    common.Address  `json:"bidder"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// AuctionCancelled is emitted when the seller cancels before any bid.
type AuctionCancelled struct {
	Asset     domain.Asset `json:"asset"`
	Timestamp time.Time    `json:"timestamp"`
}

// AuctionEnded is emitted on settlement. Winner is the zero address when no
// bid was ever placed.
type AuctionEnded struct {
	Asset     domain.Asset    `json:"asset"`
	Winner    common.Address  `json:"winner"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

func (AuctionCreated) Kind() string   { return "auction_created" }
func (AuctionRemoved) Kind() string   { return "auction_removed" }
func (AuctionStarted) Kind() string   { return "auction_started" }
func (BidPlaced) Kind() string        { return "bid_placed" }
func (AuctionExtended) Kind() string  { return "auction_extended" }
func (FundsWithdrawn) Kind() string   { return "funds_withdrawn" }
func (AuctionCancelled) Kind() string { return "auction_cancelled" }
func (AuctionEnded) Kind() string     { return "auction_ended" }
