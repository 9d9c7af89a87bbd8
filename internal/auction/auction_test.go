package auction

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"auction_go/internal/custody"
	"auction_go/internal/domain"
)

var (
	seller  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	bidderA = common.HexToAddress("0x2000000000000000000000000000000000000002")
	bidderB = common.HexToAddress("0x3000000000000000000000000000000000000003")
	outcast = common.HexToAddress("0x4000000000000000000000000000000000000004")
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakySender wraps the escrow account and fails on demand.
type flakySender struct {
	inner domain.PaymentSender
	fail  bool
}

func (f *flakySender) Send(to common.Address, amount decimal.Decimal) error {
	if f.fail {
		return errors.New("payment backend down")
	}
	return f.inner.Send(to, amount)
}

// reentrantSender calls back into the auction during the send, like a hostile
// recipient would.
type reentrantSender struct {
	inner    domain.PaymentSender
	auction  *Auction
	caller   common.Address
	innerErr error
	fired    bool
}

func (r *reentrantSender) Send(to common.Address, amount decimal.Decimal) error {
	if !r.fired {
		r.fired = true
		r.innerErr = r.auction.Withdraw(r.caller)
	}
	return r.inner.Send(to, amount)
}

type fixture struct {
	auction   *Auction
	custodian *custody.Custodian
	bank      *custody.Bank
	escrow    *custody.EscrowAccount
	clock     *fakeClock
	asset     domain.Asset
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// newFixture builds an auction over a freshly issued token with the seller's
// approval already in place and both bidders funded with 100 units.
func newFixture(t *testing.T, cfg Config, payments domain.PaymentSender) *fixture {
	t.Helper()

	asset := domain.Asset{
		Collection: common.HexToAddress("0xC00000000000000000000000000000000000000C"),
		TokenID:    7,
	}
	custodian := custody.NewCustodian()
	bank := custody.NewBank()
	clock := newFakeClock()

	if err := custodian.Issue(seller, asset); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := custodian.Approve(seller, EscrowAddressFor(asset), asset); err != nil {
		t.Fatalf("approve: %v", err)
	}
	bank.Deposit(bidderA, dec("100"))
	bank.Deposit(bidderB, dec("100"))

	escrow := bank.EscrowAccount(EscrowAddressFor(asset))
	if payments == nil {
		payments = escrow
	}

	a, err := New(seller, asset, cfg, Deps{
		Custodian: custodian,
		Payments:  payments,
		Collector: escrow,
		Clock:     clock,
	})
	if err != nil {
		t.Fatalf("new auction: %v", err)
	}
	return &fixture{auction: a, custodian: custodian, bank: bank, escrow: escrow, clock: clock, asset: asset}
}

func defaultConfig() Config {
	return Config{Duration: 24 * time.Hour, MinIncrement: dec("0.1")}
}

func mustStart(t *testing.T, f *fixture) {
	t.Helper()
	if err := f.auction.Start(seller); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	f := newFixture(t, defaultConfig(), nil)

	cases := []struct {
		name   string
		seller common.Address
		asset  domain.Asset
		cfg    Config
	}{
		{"zero duration", seller, f.asset, Config{Duration: 0, MinIncrement: dec("0.1")}},
		{"negative duration", seller, f.asset, Config{Duration: -time.Hour, MinIncrement: dec("0.1")}},
		{"excessive duration", seller, f.asset, Config{Duration: MaxDuration + time.Second, MinIncrement: dec("0.1")}},
		{"duration over configured bound", seller, f.asset, Config{Duration: 2 * time.Hour, MinIncrement: dec("0.1"), MaxDuration: time.Hour}},
		{"zero increment", seller, f.asset, Config{Duration: time.Hour, MinIncrement: decimal.Zero}},
		{"negative increment", seller, f.asset, Config{Duration: time.Hour, MinIncrement: dec("-1")}},
		{"zero collection", seller, domain.Asset{TokenID: 1}, Config{Duration: time.Hour, MinIncrement: dec("0.1")}},
		{"zero seller", common.Address{}, f.asset, Config{Duration: time.Hour, MinIncrement: dec("0.1")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.seller, tc.asset, tc.cfg, Deps{
				Custodian: f.custodian,
				Payments:  f.escrow,
				Collector: f.escrow,
			})
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestStart(t *testing.T) {
	t.Run("seller only", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil)
		if err := f.auction.Start(bidderA); !errors.Is(err, domain.ErrNotSeller) {
			t.Fatalf("expected ErrNotSeller, got %v", err)
		}
	})

	t.Run("requires approval", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil)
		if err := f.custodian.Approve(seller, common.Address{}, f.asset); err != nil {
			t.Fatalf("clear approval: %v", err)
		}
		if err := f.auction.Start(seller); !errors.Is(err, domain.ErrNotApproved) {
			t.Fatalf("expected ErrNotApproved, got %v", err)
		}
		if f.auction.IsStarted() {
			t.Fatal("failed start must not change state")
		}
	})

	t.Run("moves asset into escrow and fixes deadline", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil)
		mustStart(t, f)

		owner, err := f.custodian.OwnerOf(f.asset)
		if err != nil {
			t.Fatalf("owner: %v", err)
		}
		if owner != f.auction.EscrowAddress() {
			t.Fatalf("asset should be in escrow, owner=%s", owner.Hex())
		}
		want := f.clock.Now().Add(24 * time.Hour)
		if !f.auction.EndAt().Equal(want) {
			t.Fatalf("endAt = %v, want %v", f.auction.EndAt(), want)
		}
		if !f.auction.IsStarted() || f.auction.IsEnded() {
			t.Fatal("state should be active")
		}
	})

	t.Run("no double start", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil)
		mustStart(t, f)
		if err := f.auction.Start(seller); !errors.Is(err, domain.ErrAlreadyStarted) {
			t.Fatalf("expected ErrAlreadyStarted, got %v", err)
		}
	})
}

func TestBid(t *testing.T) {
	t.Run("rejected before start", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil)
		if err := f.auction.Bid(bidderA, dec("1")); !errors.Is(err, domain.ErrNotStarted) {
			t.Fatalf("expected ErrNotStarted, got %v", err)
		}
	})

	t.Run("strictly increasing by the increment", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil)
		mustStart(t, f)

		// First bid must clear the bare increment
		if err := f.auction.Bid(bidderA, dec("0.05")); !errors.Is(err, domain.ErrBidTooLow) {
			t.Fatalf("expected ErrBidTooLow, got %v", err)
		}
		if err := f.auction.Bid(bidderA, dec("1")); err != nil {
			t.Fatalf("bid: %v", err)
		}
		// 1.05 < 1 + 0.1
		err := f.auction.Bid(bidderB, dec("1.05"))
		var tooLow *domain.BidTooLowError
		if !errors.As(err, &tooLow) {
			t.Fatalf("expected BidTooLowError, got %v", err)
		}
		if !tooLow.Min.Equal(dec("1.1")) {
			t.Fatalf("min = %s, want 1.1", tooLow.Min)
		}
		if err := f.auction.Bid(bidderB, dec("1.1")); err != nil {
			t.Fatalf("bid: %v", err)
		}
		if !f.auction.HighestBid().Equal(dec("1.1")) || f.auction.HighestBidder() != bidderB {
			t.Fatalf("highest = %s by %s", f.auction.HighestBid(), f.auction.HighestBidder().Hex())
		}
	})

	t.Run("outbid refund accumulates in ledger, never pushed", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil)
		mustStart(t, f)

		if err := f.auction.Bid(bidderA, dec("1")); err != nil {
			t.Fatalf("bid: %v", err)
		}
		balBefore := f.bank.BalanceOf(bidderA)
		if err := f.auction.Bid(bidderB, dec("2")); err != nil {
			t.Fatalf("bid: %v", err)
		}
		if !f.auction.BalanceOwed(bidderA).Equal(dec("1")) {
			t.Fatalf("owed = %s, want 1", f.auction.BalanceOwed(bidderA))
		}
		if !f.bank.BalanceOf(bidderA).Equal(balBefore) {
			t.Fatal("refund must not be pushed to the bank account")
		}
	})

	t.Run("insufficient funds abort with nothing changed", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil)
		mustStart(t, f)
		if err := f.auction.Bid(outcast, dec("5")); !errors.Is(err, domain.ErrTransferFailed) {
			t.Fatalf("expected ErrTransferFailed, got %v", err)
		}
		if !f.auction.HighestBid().IsZero() {
			t.Fatal("failed collect must not change the highest bid")
		}
	})

	t.Run("rejected after deadline", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil)
		mustStart(t, f)
		f.clock.Advance(24*time.Hour + time.Second)
		if err := f.auction.Bid(bidderA, dec("1")); !errors.Is(err, domain.ErrDeadlinePassed) {
			t.Fatalf("expected ErrDeadlinePassed, got %v", err)
		}
	})
}

// Conservation: escrowed funds always equal highest bid plus ledger total.
func TestConservation(t *testing.T) {
	f := newFixture(t, defaultConfig(), nil)
	mustStart(t, f)

	check := func() {
		t.Helper()
		escrowed := f.bank.BalanceOf(f.auction.EscrowAddress())
		want := f.auction.HighestBid().Add(f.auction.OwedTotal())
		if !escrowed.Equal(want) {
			t.Fatalf("conservation broken: escrowed=%s, highest+owed=%s", escrowed, want)
		}
	}

	bids := []struct {
		who    common.Address
		amount string
	}{
		{bidderA, "1"}, {bidderB, "1.5"}, {bidderA, "2"}, {bidderB, "3.25"},
	}
	for _, b := range bids {
		if err := f.auction.Bid(b.who, dec(b.amount)); err != nil {
			t.Fatalf("bid %s: %v", b.amount, err)
		}
		check()
	}

	if err := f.auction.Withdraw(bidderA); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	check()
}

func TestAntiSniping(t *testing.T) {
	cfg := defaultConfig()
	f := newFixture(t, cfg, nil)
	mustStart(t, f)
	deadline := f.auction.EndAt()

	t.Run("early bid leaves deadline alone", func(t *testing.T) {
		if err := f.auction.Bid(bidderA, dec("1")); err != nil {
			t.Fatalf("bid: %v", err)
		}
		if !f.auction.EndAt().Equal(deadline) {
			t.Fatalf("endAt moved on an early bid: %v", f.auction.EndAt())
		}
	})

	t.Run("late bid extends by exactly the extension", func(t *testing.T) {
		f.clock.Advance(24*time.Hour - 4*time.Minute) // inside the 5m grace window
		if err := f.auction.Bid(bidderB, dec("2")); err != nil {
			t.Fatalf("bid: %v", err)
		}
		want := deadline.Add(DefaultExtension)
		if !f.auction.EndAt().Equal(want) {
			t.Fatalf("endAt = %v, want %v", f.auction.EndAt(), want)
		}
	})

	t.Run("extension repeats on every qualifying bid", func(t *testing.T) {
		f.clock.Advance(2 * time.Minute) // back inside the grace window
		before := f.auction.EndAt()
		if err := f.auction.Bid(bidderA, dec("3")); err != nil {
			t.Fatalf("bid: %v", err)
		}
		if !f.auction.EndAt().Equal(before.Add(DefaultExtension)) {
			t.Fatalf("second late bid should slide the deadline again")
		}
	})
}

func TestWithdraw(t *testing.T) {
	t.Run("pays exactly once", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil)
		mustStart(t, f)
		if err := f.auction.Bid(bidderA, dec("1")); err != nil {
			t.Fatalf("bid: %v", err)
		}
		if err := f.auction.Bid(bidderB, dec("2")); err != nil {
			t.Fatalf("bid: %v", err)
		}

		before := f.bank.BalanceOf(bidderA)
		if err := f.auction.Withdraw(bidderA); err != nil {
			t.Fatalf("withdraw: %v", err)
		}
		if got := f.bank.BalanceOf(bidderA).Sub(before); !got.Equal(dec("1")) {
			t.Fatalf("withdrew %s, want 1", got)
		}
		if err := f.auction.Withdraw(bidderA); !errors.Is(err, domain.ErrNoBalance) {
			t.Fatalf("second withdraw should fail with ErrNoBalance, got %v", err)
		}
	})

	t.Run("nothing owed", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil)
		if err := f.auction.Withdraw(outcast); !errors.Is(err, domain.ErrNoBalance) {
			t.Fatalf("expected ErrNoBalance, got %v", err)
		}
	})

	t.Run("failed send re-credits and is retryable", func(t *testing.T) {
		flaky := &flakySender{}
		f := newFixture(t, defaultConfig(), flaky)
		flaky.inner = f.escrow
		mustStart(t, f)
		if err := f.auction.Bid(bidderA, dec("1")); err != nil {
			t.Fatalf("bid: %v", err)
		}
		if err := f.auction.Bid(bidderB, dec("2")); err != nil {
			t.Fatalf("bid: %v", err)
		}

		flaky.fail = true
		if err := f.auction.Withdraw(bidderA); !errors.Is(err, domain.ErrTransferFailed) {
			t.Fatalf("expected ErrTransferFailed, got %v", err)
		}
		if !f.auction.BalanceOwed(bidderA).Equal(dec("1")) {
			t.Fatal("failed send must re-credit the balance")
		}

		flaky.fail = false
		if err := f.auction.Withdraw(bidderA); err != nil {
			t.Fatalf("retry: %v", err)
		}
	})

	t.Run("reentrant call during send is rejected", func(t *testing.T) {
		hostile := &reentrantSender{caller: bidderA}
		f := newFixture(t, defaultConfig(), hostile)
		hostile.inner = f.escrow
		hostile.auction = f.auction
		mustStart(t, f)
		if err := f.auction.Bid(bidderA, dec("1")); err != nil {
			t.Fatalf("bid: %v", err)
		}
		if err := f.auction.Bid(bidderB, dec("2")); err != nil {
			t.Fatalf("bid: %v", err)
		}

		before := f.bank.BalanceOf(bidderA)
		if err := f.auction.Withdraw(bidderA); err != nil {
			t.Fatalf("withdraw: %v", err)
		}
		if !errors.Is(hostile.innerErr, domain.ErrReentrantCall) {
			t.Fatalf("reentrant withdraw should fail, got %v", hostile.innerErr)
		}
		if got := f.bank.BalanceOf(bidderA).Sub(before); !got.Equal(dec("1")) {
			t.Fatalf("paid %s, want exactly 1", got)
		}
	})
}

func TestCancel(t *testing.T) {
	t.Run("only while active", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil)
		if err := f.auction.Cancel(seller); !errors.Is(err, domain.ErrNotCancellable) {
			t.Fatalf("expected ErrNotCancellable, got %v", err)
		}
	})

	t.Run("seller only", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil)
		mustStart(t, f)
		if err := f.auction.Cancel(bidderA); !errors.Is(err, domain.ErrNotSeller) {
			t.Fatalf("expected ErrNotSeller, got %v", err)
		}
	})

	t.Run("returns asset and terminates", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil)
		mustStart(t, f)
		if err := f.auction.Cancel(seller); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		owner, _ := f.custodian.OwnerOf(f.asset)
		if owner != seller {
			t.Fatalf("asset should be back with the seller, owner=%s", owner.Hex())
		}
		if !f.auction.IsEnded() {
			t.Fatal("cancel must reach the terminal state")
		}
		if err := f.auction.Bid(bidderA, dec("1")); !errors.Is(err, domain.ErrAlreadyEnded) {
			t.Fatalf("bid after cancel should fail, got %v", err)
		}
	})

	t.Run("never after a bid", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil)
		mustStart(t, f)
		if err := f.auction.Bid(bidderA, dec("1")); err != nil {
			t.Fatalf("bid: %v", err)
		}
		if err := f.auction.Cancel(seller); !errors.Is(err, domain.ErrBidExists) {
			t.Fatalf("expected ErrBidExists, got %v", err)
		}
	})
}

func TestEnd(t *testing.T) {
	t.Run("full sale settles asset and proceeds", func(t *testing.T) {
		f := newFixture(t, Config{Duration: 86400 * time.Second, MinIncrement: dec("0.1")}, nil)
		mustStart(t, f)

		if err := f.auction.Bid(bidderA, dec("1.0")); err != nil {
			t.Fatalf("bid A: %v", err)
		}
		if err := f.auction.Bid(bidderB, dec("1.05")); !errors.Is(err, domain.ErrBidTooLow) {
			t.Fatalf("1.05 should be too low, got %v", err)
		}
		if err := f.auction.Bid(bidderB, dec("1.1")); err != nil {
			t.Fatalf("bid B: %v", err)
		}

		if err := f.auction.End(seller); !errors.Is(err, domain.ErrTimeNotOver) {
			t.Fatalf("early end should fail, got %v", err)
		}
		f.clock.Advance(86401 * time.Second)
		if err := f.auction.End(bidderB); !errors.Is(err, domain.ErrNotSeller) {
			t.Fatalf("non-seller end should fail, got %v", err)
		}

		sellerBefore := f.bank.BalanceOf(seller)
		if err := f.auction.End(seller); err != nil {
			t.Fatalf("end: %v", err)
		}

		owner, _ := f.custodian.OwnerOf(f.asset)
		if owner != bidderB {
			t.Fatalf("asset should belong to the winner, owner=%s", owner.Hex())
		}
		if got := f.bank.BalanceOf(seller).Sub(sellerBefore); !got.Equal(dec("1.1")) {
			t.Fatalf("seller received %s, want 1.1", got)
		}

		aBefore := f.bank.BalanceOf(bidderA)
		if err := f.auction.Withdraw(bidderA); err != nil {
			t.Fatalf("withdraw: %v", err)
		}
		if got := f.bank.BalanceOf(bidderA).Sub(aBefore); !got.Equal(dec("1.0")) {
			t.Fatalf("A withdrew %s, want exactly 1.0", got)
		}

		if err := f.auction.End(seller); !errors.Is(err, domain.ErrNotActive) {
			t.Fatalf("second end should fail, got %v", err)
		}
	})

	t.Run("no bids returns asset without payment", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil)
		mustStart(t, f)
		f.clock.Advance(25 * time.Hour)

		sellerBefore := f.bank.BalanceOf(seller)
		if err := f.auction.End(seller); err != nil {
			t.Fatalf("end: %v", err)
		}
		owner, _ := f.custodian.OwnerOf(f.asset)
		if owner != seller {
			t.Fatalf("asset should return to seller, owner=%s", owner.Hex())
		}
		if !f.bank.BalanceOf(seller).Equal(sellerBefore) {
			t.Fatal("no currency may move on a bid-less end")
		}
		if !f.auction.IsEnded() {
			t.Fatal("end must reach the terminal state")
		}
	})

	t.Run("seller payout failure falls back to the ledger", func(t *testing.T) {
		flaky := &flakySender{}
		f := newFixture(t, defaultConfig(), flaky)
		flaky.inner = f.escrow
		mustStart(t, f)
		if err := f.auction.Bid(bidderA, dec("2")); err != nil {
			t.Fatalf("bid: %v", err)
		}
		f.clock.Advance(25 * time.Hour)

		flaky.fail = true
		if err := f.auction.End(seller); err != nil {
			t.Fatalf("end must settle despite the payout failure: %v", err)
		}
		if !f.auction.IsEnded() {
			t.Fatal("auction must be ended")
		}
		owner, _ := f.custodian.OwnerOf(f.asset)
		if owner != bidderA {
			t.Fatal("winner must still receive the asset")
		}
		if !f.auction.BalanceOwed(seller).Equal(dec("2")) {
			t.Fatalf("proceeds should be owed to the seller, owed=%s", f.auction.BalanceOwed(seller))
		}

		flaky.fail = false
		if err := f.auction.Withdraw(seller); err != nil {
			t.Fatalf("seller withdraw: %v", err)
		}
	})
}
