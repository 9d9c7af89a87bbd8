package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"auction_go/internal/domain"
	"auction_go/internal/events"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return j
}

func testAsset(id uint64) domain.Asset {
	return domain.Asset{
		Collection: common.HexToAddress("0xC00000000000000000000000000000000000000C"),
		TokenID:    id,
	}
}

func created(asset domain.Asset) events.AuctionCreated {
	return events.AuctionCreated{
		AuctionID:    asset.LivenessKey(),
		Creator:      common.HexToAddress("0x1000000000000000000000000000000000000001"),
		Asset:        asset,
		Duration:     time.Hour,
		MinIncrement: decimal.RequireFromString("0.1"),
		Timestamp:    time.Now(),
	}
}

func TestJournalAuditTrail(t *testing.T) {
	j := openTestJournal(t)
	asset := testAsset(1)

	if err := j.Record(created(asset)); err != nil {
		t.Fatalf("record created: %v", err)
	}

	recs, err := j.Auctions()
	if err != nil {
		t.Fatalf("auctions: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("rows = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Key != asset.LivenessKey().Hex() || rec.TokenID != 1 || rec.DurationSec != 3600 {
		t.Fatalf("unexpected row %+v", rec)
	}
	if rec.RemovedAt != nil {
		t.Fatal("fresh row must not be stamped removed")
	}

	if err := j.Record(events.AuctionRemoved{Asset: asset, Timestamp: time.Now()}); err != nil {
		t.Fatalf("record removed: %v", err)
	}
	got, err := j.AuctionByKey(asset.LivenessKey().Hex())
	if err != nil {
		t.Fatalf("by key: %v", err)
	}
	if got == nil || got.RemovedAt == nil {
		t.Fatal("removal must stamp the audit row")
	}
}

func TestJournalRecreation(t *testing.T) {
	j := openTestJournal(t)
	asset := testAsset(2)

	// Two generations of the same asset: remove stamps only the newest open row.
	if err := j.Record(created(asset)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Record(events.AuctionRemoved{Asset: asset, Timestamp: time.Now()}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Record(created(asset)); err != nil {
		t.Fatalf("record: %v", err)
	}

	recs, err := j.Auctions()
	if err != nil {
		t.Fatalf("auctions: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("rows = %d, want 2", len(recs))
	}
	if recs[0].RemovedAt == nil {
		t.Fatal("first generation should be stamped")
	}
	if recs[1].RemovedAt != nil {
		t.Fatal("second generation should be open")
	}

	newest, err := j.AuctionByKey(asset.LivenessKey().Hex())
	if err != nil {
		t.Fatalf("by key: %v", err)
	}
	if newest == nil || newest.ID != recs[1].ID {
		t.Fatal("AuctionByKey must return the newest generation")
	}
}

func TestJournalLookupMiss(t *testing.T) {
	j := openTestJournal(t)
	got, err := j.AuctionByKey(testAsset(9).LivenessKey().Hex())
	if err != nil {
		t.Fatalf("by key: %v", err)
	}
	if got != nil {
		t.Fatal("unknown key should yield nil, not an error")
	}
}

func TestJournalEvents(t *testing.T) {
	j := openTestJournal(t)
	asset := testAsset(3)

	for i := 0; i < 3; i++ {
		if err := j.Record(events.BidPlaced{
			Asset:     asset,
			Bidder:    common.HexToAddress("0x2000000000000000000000000000000000000002"),
			Amount:    decimal.NewFromInt(int64(i + 1)),
			Timestamp: time.Now(),
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	recs, err := j.Events(2)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("rows = %d, want 2", len(recs))
	}
	// Newest first.
	if recs[0].ID <= recs[1].ID {
		t.Fatal("events must come back newest first")
	}
	if recs[0].Kind != "bid_placed" {
		t.Fatalf("kind = %s", recs[0].Kind)
	}
}
