package app

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"auction_go/internal/custody"
	"auction_go/internal/domain"
	"auction_go/internal/events"
	"auction_go/internal/infra"
	"auction_go/internal/infra/storage"
	"auction_go/internal/mint"
	"auction_go/internal/registry"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Journal   *storage.Journal
	Media     *infra.MediaFetcher
	Hub       *events.Hub
	Custodian *custody.Custodian
	Bank      *custody.Bank
	Registry  *registry.Registry
	Minter    *mint.Minter

	journalCancel func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping Auction Go...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Notification hub, wired into the drop counter
	b.Hub = events.NewHub()
	b.Hub.SetDropHandler(func(events.Event) { infra.GlobalMetrics.RecordEventDropped() })

	// 4. Journal (audit log + notification persistence)
	journal, err := storage.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	b.Journal = journal
	slog.Info("✅ Journal initialized", slog.String("path", cfg.Journal.Path))

	// 5. Media fetcher (optional)
	if cfg.Media.URLTemplate != "" {
		media, err := infra.NewMediaFetcher(cfg.Media.CacheDir, cfg.Media.URLTemplate, cfg.Media.ThumbSize)
		if err != nil {
			return err
		}
		b.Media = media
		slog.Info("✅ Media fetcher ready")
	}

	// 6. Custody backends (in-memory reference implementations)
	b.Custodian = custody.NewCustodian()
	b.Bank = custody.NewBank()

	// 7. Registry
	reg, err := registry.New(registry.Deps{
		Custodian:   b.Custodian,
		Bank:        b.Bank,
		Clock:       domain.SystemClock{},
		Hub:         b.Hub,
		GracePeriod: cfg.GracePeriod(),
		Extension:   cfg.Extension(),
		MaxDuration: cfg.MaxDuration(),
	})
	if err != nil {
		return err
	}
	b.Registry = reg
	slog.Info("✅ Registry ready")

	// 8. Minting boundary (optional)
	if common.IsHexAddress(cfg.Mint.Owner) && common.IsHexAddress(cfg.Mint.Collection) {
		owner := common.HexToAddress(cfg.Mint.Owner)
		minter, err := mint.New(owner, mint.Config{
			Collection: common.HexToAddress(cfg.Mint.Collection),
			Price:      cfg.Mint.Price,
			Supply:     cfg.Mint.Supply,
			QuotaEach:  cfg.Mint.QuotaEach,
		}, b.Custodian, b.Bank.TreasuryAccount(owner))
		if err != nil {
			return err
		}
		b.Minter = minter
		slog.Info("✅ Minter ready", slog.String("collection", cfg.Mint.Collection))
	}

	return nil
}

// StartJournalPump begins persisting notifications in the background.
func (b *Bootstrap) StartJournalPump(ctx context.Context) {
	ch, cancel := b.Hub.Subscribe(1024)
	b.journalCancel = cancel
	go b.Journal.Pump(ctx, ch)
}

// Close releases background resources.
func (b *Bootstrap) Close() {
	if b.journalCancel != nil {
		b.journalCancel()
	}
}
