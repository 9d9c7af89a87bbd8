// Package mint implements the payable counter that issues the tokens being
// auctioned, gated by a two-phase access list. It sits outside the auction
// core and talks to the custodian only through its issuing side.
package mint

import (
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"auction_go/internal/domain"
)

// Phase is the sale gate. It only ever advances.
type Phase int

const (
	// Closed admits nobody.
	Closed Phase = iota
	// Allowlist admits listed addresses, each up to its quota.
	Allowlist
	// Public admits everyone.
	Public
)

func (p Phase) String() string {
	switch p {
	case Closed:
		return "closed"
	case Allowlist:
		return "allowlist"
	case Public:
		return "public"
	default:
		return "unknown"
	}
}

// Issuer is the custodian's issuing side.
type Issuer interface {
	Issue(to common.Address, asset domain.Asset) error
}

// Treasury receives mint payments. Send refunds a collected payment when
// issuance fails after the money moved.
type Treasury interface {
	Collect(from common.Address, amount decimal.Decimal) error
	Send(to common.Address, amount decimal.Decimal) error
}

// Config fixes the sale parameters.
type Config struct {
	Collection common.Address
	Price      decimal.Decimal
	Supply     uint64 // total mintable tokens; 0 means unlimited
	QuotaEach  uint64 // per-address mints during the allowlist phase
}

// Minter is the payable counter. Token ids are issued sequentially from 1.
type Minter struct {
	owner    common.Address
	cfg      Config
	issuer   Issuer
	treasury Treasury

	mu      sync.Mutex
	phase   Phase
	listed  map[common.Address]struct{}
	mintedN map[common.Address]uint64
	nextID  uint64
}

// New creates a closed minter owned by owner.
func New(owner common.Address, cfg Config, issuer Issuer, treasury Treasury) (*Minter, error) {
	if owner == (common.Address{}) {
		return nil, &domain.ConfigError{Field: "owner", Reason: "zero address"}
	}
	if cfg.Collection == (common.Address{}) {
		return nil, &domain.ConfigError{Field: "collection", Reason: "zero address"}
	}
	if cfg.Price.IsNegative() {
		return nil, &domain.ConfigError{Field: "price", Reason: "must not be negative"}
	}
	if issuer == nil || treasury == nil {
		return nil, &domain.ConfigError{Field: "deps", Reason: "issuer and treasury are required"}
	}
	if cfg.QuotaEach == 0 {
		cfg.QuotaEach = 1
	}
	return &Minter{
		owner:    owner,
		cfg:      cfg,
		issuer:   issuer,
		treasury: treasury,
		listed:   make(map[common.Address]struct{}),
		mintedN:  make(map[common.Address]uint64),
		nextID:   1,
	}, nil
}

// Phase returns the current sale phase.
func (m *Minter) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// AdvancePhase moves the gate forward one step. Owner only; never backward.
func (m *Minter) AdvancePhase(caller common.Address) error {
	if caller != m.owner {
		return domain.ErrNotSeller
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase < Public {
		m.phase++
		slog.Info("mint phase advanced", slog.String("phase", m.phase.String()))
	}
	return nil
}

// AddToAllowlist lists addrs for the allowlist phase. Owner only.
func (m *Minter) AddToAllowlist(caller common.Address, addrs ...common.Address) error {
	if caller != m.owner {
		return domain.ErrNotSeller
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, addr := range addrs {
		m.listed[addr] = struct{}{}
	}
	return nil
}

// IsListed reports whether addr is on the allowlist.
func (m *Minter) IsListed(addr common.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.listed[addr]
	return ok
}

// Minted returns how many tokens have been issued so far.
func (m *Minter) Minted() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextID - 1
}

// Mint issues the next token to caller against an exact payment. The payment
// is collected before the issue; if the issue then fails, the payment is
// refunded so the call leaves no partial state behind.
func (m *Minter) Mint(caller common.Address, payment decimal.Decimal) (domain.Asset, error) {
	m.mu.Lock()

	switch m.phase {
	case Closed:
		m.mu.Unlock()
		return domain.Asset{}, domain.ErrMintClosed
	case Allowlist:
		if _, ok := m.listed[caller]; !ok {
			m.mu.Unlock()
			return domain.Asset{}, domain.ErrMintClosed
		}
		if m.mintedN[caller] >= m.cfg.QuotaEach {
			m.mu.Unlock()
			return domain.Asset{}, domain.ErrMintLimit
		}
	}

	if m.cfg.Supply > 0 && m.nextID > m.cfg.Supply {
		m.mu.Unlock()
		return domain.Asset{}, domain.ErrSupplyExhausted
	}
	if !payment.Equal(m.cfg.Price) {
		m.mu.Unlock()
		return domain.Asset{}, domain.ErrIncorrectPayment
	}

	if err := m.treasury.Collect(caller, payment); err != nil {
		m.mu.Unlock()
		return domain.Asset{}, &domain.TransferError{Op: "payment", Err: err}
	}

	asset := domain.Asset{Collection: m.cfg.Collection, TokenID: m.nextID}
	if err := m.issuer.Issue(caller, asset); err != nil {
		// Compensate: the treasury is a trusted internal account, so the
		// collected payment goes straight back.
		if rerr := m.treasury.Send(caller, payment); rerr != nil {
			slog.Error("mint refund failed",
				slog.String("to", caller.Hex()),
				slog.String("amount", payment.String()),
				slog.Any("error", rerr))
		}
		m.mu.Unlock()
		return domain.Asset{}, &domain.TransferError{Op: "asset", Err: err}
	}
	m.nextID++
	if m.phase == Allowlist {
		m.mintedN[caller]++
	}
	m.mu.Unlock()

	slog.Info("token minted",
		slog.String("asset", asset.String()),
		slog.String("to", caller.Hex()))
	return asset, nil
}
