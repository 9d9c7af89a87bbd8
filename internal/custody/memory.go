// Package custody provides in-memory reference implementations of the asset
// and currency capabilities the auction consumes. The core never assumes this
// implementation; it is what the service binary and the tests run against.
package custody

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"auction_go/internal/domain"
)

var (
	// ErrUnknownAsset is returned for tokens the custodian never issued.
	ErrUnknownAsset = errors.New("unknown asset")

	// ErrNotOwner is returned when a transfer names a from that does not hold the token.
	ErrNotOwner = errors.New("from is not the owner")

	// ErrAssetExists is returned when issuing a token id that already exists.
	ErrAssetExists = errors.New("asset already exists")

	// ErrInsufficientFunds is returned when an account cannot cover a movement.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnsolicitedTransfer is returned for direct transfers into an escrow
	// account. The only valid entry for escrowed value is Collect.
	ErrUnsolicitedTransfer = errors.New("direct transfer into escrow rejected")
)

// Custodian holds non-fungible tokens: owner and approval maps keyed by
// asset, in the ERC-721 shape.
type Custodian struct {
	mu       sync.RWMutex
	owners   map[domain.Asset]common.Address
	approved map[domain.Asset]common.Address
}

// NewCustodian creates an empty custodian.
func NewCustodian() *Custodian {
	return &Custodian{
		owners:   make(map[domain.Asset]common.Address),
		approved: make(map[domain.Asset]common.Address),
	}
}

// Issue creates a token owned by to. Used by the minting boundary.
func (c *Custodian) Issue(to common.Address, asset domain.Asset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.owners[asset]; ok {
		return ErrAssetExists
	}
	c.owners[asset] = to
	return nil
}

// OwnerOf returns the current holder of the token.
func (c *Custodian) OwnerOf(asset domain.Asset) (common.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	owner, ok := c.owners[asset]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	return owner, nil
}

// Approve grants operator the right to move the token. Only the owner may
// approve; approving the zero address clears the approval.
func (c *Custodian) Approve(owner, operator common.Address, asset domain.Asset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.owners[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	if current != owner {
		return fmt.Errorf("%w: %s", ErrNotOwner, owner.Hex())
	}
	if operator == (common.Address{}) {
		delete(c.approved, asset)
		return nil
	}
	c.approved[asset] = operator
	return nil
}

// ApprovedFor returns the approved operator, zero address when none.
func (c *Custodian) ApprovedFor(asset domain.Asset) (common.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.owners[asset]; !ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	return c.approved[asset], nil
}

// Transfer moves the token from one holder to another and clears any
// approval. Either the whole move happens or nothing does.
func (c *Custodian) Transfer(from, to common.Address, asset domain.Asset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, ok := c.owners[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	if owner != from {
		return fmt.Errorf("%w: %s", ErrNotOwner, from.Hex())
	}
	c.owners[asset] = to
	delete(c.approved, asset)
	return nil
}

// Bank is a decimal currency ledger. Escrow accounts registered with
// RegisterEscrow reject direct transfers: their only funding path is Collect,
// which models value attached to a bid.
type Bank struct {
	mu       sync.RWMutex
	accounts map[common.Address]decimal.Decimal
	escrows  map[common.Address]struct{}
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{
		accounts: make(map[common.Address]decimal.Decimal),
		escrows:  make(map[common.Address]struct{}),
	}
}

// Deposit credits amount to addr out of thin air. Test and bootstrap helper.
func (b *Bank) Deposit(addr common.Address, amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[addr] = b.accounts[addr].Add(amount)
}

// BalanceOf returns addr's balance.
func (b *Bank) BalanceOf(addr common.Address) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.accounts[addr]
}

// RegisterEscrow marks addr as an escrow account.
func (b *Bank) RegisterEscrow(addr common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.escrows[addr] = struct{}{}
}

// Transfer moves amount between user accounts. Transfers into an escrow
// account are rejected outright.
func (b *Bank) Transfer(from, to common.Address, amount decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.escrows[to]; ok {
		return ErrUnsolicitedTransfer
	}
	return b.move(from, to, amount)
}

// EscrowAccount binds the bank to a single escrow address, yielding the
// PaymentSender/PaymentCollector pair an auction consumes.
func (b *Bank) EscrowAccount(escrow common.Address) *EscrowAccount {
	b.RegisterEscrow(escrow)
	return &EscrowAccount{bank: b, escrow: escrow}
}

// TreasuryAccount binds the bank to a plain account without escrow
// restrictions. Used by the mint boundary to receive sale proceeds.
func (b *Bank) TreasuryAccount(addr common.Address) *EscrowAccount {
	return &EscrowAccount{bank: b, escrow: addr}
}

// OpenEscrow satisfies the registry's escrow backend.
func (b *Bank) OpenEscrow(escrow common.Address) (domain.PaymentSender, domain.PaymentCollector) {
	ea := b.EscrowAccount(escrow)
	return ea, ea
}

// move transfers without the escrow check. Callers hold b.mu.
func (b *Bank) move(from, to common.Address, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("negative amount %s", amount)
	}
	have := b.accounts[from]
	if have.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from.Hex(), have, amount)
	}
	b.accounts[from] = have.Sub(amount)
	b.accounts[to] = b.accounts[to].Add(amount)
	return nil
}

// EscrowAccount is the bank seen from one escrow address. Send pays out of
// escrow, Collect pulls attached bid value into it.
type EscrowAccount struct {
	bank   *Bank
	escrow common.Address
}

// Send pays amount from escrow to a recipient.
func (e *EscrowAccount) Send(to common.Address, amount decimal.Decimal) error {
	e.bank.mu.Lock()
	defer e.bank.mu.Unlock()
	return e.bank.move(e.escrow, to, amount)
}

// Collect pulls amount from a bidder into escrow.
func (e *EscrowAccount) Collect(from common.Address, amount decimal.Decimal) error {
	e.bank.mu.Lock()
	defer e.bank.mu.Unlock()
	return e.bank.move(from, e.escrow, amount)
}

var (
	_ domain.AssetCustodian   = (*Custodian)(nil)
	_ domain.PaymentSender    = (*EscrowAccount)(nil)
	_ domain.PaymentCollector = (*EscrowAccount)(nil)
)
