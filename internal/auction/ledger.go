package auction

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Ledger tracks currency owed to outbid parties. Refunds are never pushed;
// they accumulate here until the owner pulls them with Withdraw.
//
// The ledger is not safe for concurrent use on its own. Every access goes
// through the owning Auction's mutex.
type Ledger struct {
	owed  map[common.Address]decimal.Decimal
	total decimal.Decimal // sum of owed, maintained incrementally
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{owed: make(map[common.Address]decimal.Decimal)}
}

// Credit adds amount to what the ledger owes addr. Panics on a negative
// amount: callers only ever credit prior bids, which are positive.
func (l *Ledger) Credit(addr common.Address, amount decimal.Decimal) {
	if amount.IsNegative() {
		panic(fmt.Sprintf("LEDGER_NEGATIVE_CREDIT: %s %s", addr.Hex(), amount))
	}
	l.owed[addr] = l.owed[addr].Add(amount)
	l.total = l.total.Add(amount)
}

// Debit zeroes addr's balance and returns what was owed. Returns zero when
// nothing was owed.
func (l *Ledger) Debit(addr common.Address) decimal.Decimal {
	amount, ok := l.owed[addr]
	if !ok || amount.IsZero() {
		return decimal.Zero
	}
	delete(l.owed, addr)
	l.total = l.total.Sub(amount)
	return amount
}

// Owed returns the balance currently owed to addr.
func (l *Ledger) Owed(addr common.Address) decimal.Decimal {
	return l.owed[addr]
}

// Total returns the sum of all owed balances.
func (l *Ledger) Total() decimal.Decimal {
	return l.total
}

// VerifyInvariant checks that no balance is negative and the running total
// matches the map. Call after any mutation during tests.
func (l *Ledger) VerifyInvariant() {
	sum := decimal.Zero
	for addr, amount := range l.owed {
		if amount.IsNegative() {
			panic(fmt.Sprintf("LEDGER_INVARIANT_NEGATIVE: %s = %s", addr.Hex(), amount))
		}
		sum = sum.Add(amount)
	}
	if !sum.Equal(l.total) {
		panic(fmt.Sprintf("LEDGER_INVARIANT_TOTAL_MISMATCH: sum=%s total=%s", sum, l.total))
	}
}

// Snapshot returns a copy of all owed balances.
func (l *Ledger) Snapshot() map[common.Address]decimal.Decimal {
	out := make(map[common.Address]decimal.Decimal, len(l.owed))
	for k, v := range l.owed {
		out[k] = v
	}
	return out
}
