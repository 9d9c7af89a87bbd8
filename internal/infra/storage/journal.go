// Package storage persists the registry's audit trail and the notification
// stream. The live auction state never lives here; the journal is a
// write-behind record for discovery and post-mortem.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"auction_go/internal/events"
)

// AuctionRecord is one row per auction ever created. Rows are never deleted;
// removal of the liveness entry only stamps RemovedAt.
type AuctionRecord struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Key          string `gorm:"index" json:"key"` // liveness key, hex
	Collection   string `gorm:"index" json:"collection"`
	TokenID      uint64 `json:"token_id"`
	Seller       string `json:"seller"`
	DurationSec  int64  `json:"duration_sec"`
	MinIncrement string `json:"min_increment"`
	CreatedAt    time.Time
	RemovedAt    *time.Time `json:"removed_at"`
}

// EventRecord is one row per emitted notification, payload as JSON.
type EventRecord struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Kind      string `gorm:"index" json:"kind"`
	Payload   string `json:"payload"`
	CreatedAt time.Time
}

// Journal is the SQLite-backed store.
type Journal struct {
	db *gorm.DB
}

// Open creates or opens the journal at path.
func Open(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	if err := db.AutoMigrate(&AuctionRecord{}, &EventRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record persists one notification: a generic event row always, plus audit
// bookkeeping for creations and removals.
func (j *Journal) Record(ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := j.db.Create(&EventRecord{Kind: ev.Kind(), Payload: string(payload)}).Error; err != nil {
		return err
	}

	switch e := ev.(type) {
	case events.AuctionCreated:
		rec := &AuctionRecord{
			Key:          e.AuctionID.Hex(),
			Collection:   e.Asset.Collection.Hex(),
			TokenID:      e.Asset.TokenID,
			Seller:       e.Creator.Hex(),
			DurationSec:  int64(e.Duration / time.Second),
			MinIncrement: e.MinIncrement.String(),
		}
		return j.db.Create(rec).Error
	case events.AuctionRemoved:
		now := time.Now()
		// Stamp the newest un-removed row for the key; earlier rows belong to
		// earlier auctions of the same asset.
		return j.db.Model(&AuctionRecord{}).
			Where("key = ? AND removed_at IS NULL", e.Asset.LivenessKey().Hex()).
			Order("id DESC").Limit(1).
			Update("removed_at", &now).Error
	}
	return nil
}

// Auctions returns the full audit log, oldest first.
func (j *Journal) Auctions() ([]AuctionRecord, error) {
	var recs []AuctionRecord
	err := j.db.Order("id ASC").Find(&recs).Error
	return recs, err
}

// AuctionByKey returns the newest audit row for a liveness key, nil when the
// key has never been auctioned.
func (j *Journal) AuctionByKey(key string) (*AuctionRecord, error) {
	var rec AuctionRecord
	err := j.db.Where("key = ?", key).Order("id DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // not found is not an error
	}
	return &rec, err
}

// Events returns the newest limit notification rows.
func (j *Journal) Events(limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var recs []EventRecord
	err := j.db.Order("id DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

// Pump drains a hub subscription into the journal until ctx is done.
// Journal failures are logged, not propagated: persistence must never stall
// an auction operation.
func (j *Journal) Pump(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := j.Record(ev); err != nil {
				slog.Error("failed to journal event",
					slog.String("kind", ev.Kind()),
					slog.Any("error", err))
			}
		}
	}
}
