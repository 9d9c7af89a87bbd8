// Package registry creates auctions and enforces that at most one live
// auction exists per asset at any time.
package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"auction_go/internal/auction"
	"auction_go/internal/domain"
	"auction_go/internal/events"
)

// EscrowBackend opens the payment capabilities for one auction's escrow
// address. The in-memory bank implements it; so would any real ledger.
type EscrowBackend interface {
	OpenEscrow(escrow common.Address) (domain.PaymentSender, domain.PaymentCollector)
}

// Deps are the collaborators every created auction is wired to.
type Deps struct {
	Custodian domain.AssetCustodian
	Bank      EscrowBackend
	Clock     domain.Clock
	Hub       *events.Hub

	// GracePeriod, Extension and MaxDuration apply to every auction created
	// through this registry. Zero means the auction package defaults.
	GracePeriod time.Duration
	Extension   time.Duration
	MaxDuration time.Duration
}

// Registry is the auction factory plus liveness index.
//
// auctions is the append-only audit log of every auction ever created; it
// never shrinks. live maps a liveness key to the one live auction for that
// asset; entries are deleted on removal, never overwritten.
type Registry struct {
	deps Deps

	mu       sync.RWMutex
	auctions []*auction.Auction
	live     map[common.Hash]*auction.Auction
}

// New creates an empty registry.
func New(deps Deps) (*Registry, error) {
	if deps.Custodian == nil || deps.Bank == nil {
		return nil, &domain.ConfigError{Field: "deps", Reason: "custodian and bank are required"}
	}
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}
	return &Registry{
		deps: deps,
		live: make(map[common.Hash]*auction.Auction),
	}, nil
}

// CreateAuction instantiates an auction bound to (creator-as-seller, asset,
// duration, minIncrement), appends it to the audit log and records it as the
// live entry for the asset's liveness key.
func (r *Registry) CreateAuction(creator common.Address, asset domain.Asset, duration time.Duration, minIncrement decimal.Decimal) (*auction.Auction, error) {
	cfg := auction.Config{
		Duration:     duration,
		MinIncrement: minIncrement,
		GracePeriod:  r.deps.GracePeriod,
		Extension:    r.deps.Extension,
		MaxDuration:  r.deps.MaxDuration,
	}

	// Construction validates every parameter before any registry state is
	// touched. New has no side effects, so a losing racer leaks nothing.
	escrow := auction.EscrowAddressFor(asset)
	sender, collector := r.deps.Bank.OpenEscrow(escrow)
	a, err := auction.New(creator, asset, cfg, auction.Deps{
		Custodian: r.deps.Custodian,
		Payments:  sender,
		Collector: collector,
		Clock:     r.deps.Clock,
		Hub:       r.deps.Hub,
	})
	if err != nil {
		return nil, err
	}

	key := asset.LivenessKey()

	r.mu.Lock()
	if _, ok := r.live[key]; ok {
		r.mu.Unlock()
		return nil, domain.ErrAuctionExists
	}
	r.auctions = append(r.auctions, a)
	r.live[key] = a
	r.mu.Unlock()

	if r.deps.Hub != nil {
		r.deps.Hub.Publish(events.AuctionCreated{
			AuctionID:    key,
			Creator:      creator,
			Asset:        asset,
			Duration:     duration,
			MinIncrement: minIncrement,
			Timestamp:    r.deps.Clock.Now(),
		})
	}
	slog.Info("auction created",
		slog.String("asset", asset.String()),
		slog.String("seller", creator.Hex()),
		slog.Duration("duration", duration))
	return a, nil
}

// RemoveAuction drops the live entry for the asset so it can be re-auctioned.
// The audit log entry is untouched. Only auctions in their terminal state are
// removable; a missing entry reports the same uniqueness error kind as a
// duplicate creation.
func (r *Registry) RemoveAuction(asset domain.Asset) error {
	key := asset.LivenessKey()

	r.mu.Lock()
	a, ok := r.live[key]
	if !ok {
		r.mu.Unlock()
		return domain.ErrAuctionExists
	}
	if !a.IsEnded() {
		r.mu.Unlock()
		return domain.ErrAuctionNotEnded
	}
	delete(r.live, key)
	r.mu.Unlock()

	if r.deps.Hub != nil {
		r.deps.Hub.Publish(events.AuctionRemoved{Asset: asset, Timestamp: r.deps.Clock.Now()})
	}
	slog.Info("auction removed", slog.String("asset", asset.String()))
	return nil
}

// LiveAuctionFor returns the live auction for the asset, if any.
func (r *Registry) LiveAuctionFor(asset domain.Asset) (*auction.Auction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.live[asset.LivenessKey()]
	return a, ok
}

// AuctionAt returns the i-th auction ever created.
func (r *Registry) AuctionAt(i int) (*auction.Auction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.auctions) {
		return nil, false
	}
	return r.auctions[i], true
}

// AuctionCount returns how many auctions were ever created.
func (r *Registry) AuctionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.auctions)
}

// LiveCount returns how many auctions are currently live.
func (r *Registry) LiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}
