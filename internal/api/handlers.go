package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"auction_go/internal/auction"
	"auction_go/internal/domain"
)

// errorKind maps a domain error onto its wire name and HTTP status.
func errorKind(err error) (string, int) {
	switch {
	case errors.Is(err, domain.ErrAlreadyStarted):
		return "already_started", http.StatusConflict
	case errors.Is(err, domain.ErrNotStarted):
		return "not_started", http.StatusConflict
	case errors.Is(err, domain.ErrAlreadyEnded):
		return "already_ended", http.StatusConflict
	case errors.Is(err, domain.ErrNotActive):
		return "not_active", http.StatusConflict
	case errors.Is(err, domain.ErrNotCancellable):
		return "not_cancellable", http.StatusConflict
	case errors.Is(err, domain.ErrTimeNotOver):
		return "time_not_over", http.StatusConflict
	case errors.Is(err, domain.ErrDeadlinePassed):
		return "deadline_passed", http.StatusConflict
	case errors.Is(err, domain.ErrBidTooLow):
		return "bid_too_low", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoBalance):
		return "no_balance", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrBidExists):
		return "bid_exists", http.StatusConflict
	case errors.Is(err, domain.ErrNotSeller):
		return "not_seller", http.StatusForbidden
	case errors.Is(err, domain.ErrNotApproved):
		return "not_approved", http.StatusForbidden
	case errors.Is(err, domain.ErrReentrantCall):
		return "reentrant_call", http.StatusConflict
	case errors.Is(err, domain.ErrAuctionExists):
		return "auction_exists", http.StatusConflict
	case errors.Is(err, domain.ErrAuctionNotEnded):
		return "auction_not_ended", http.StatusConflict
	case errors.Is(err, domain.ErrTransferFailed):
		return "transfer_failed", http.StatusBadGateway
	}
	var cfgErr *domain.ConfigError
	if errors.As(err, &cfgErr) {
		return "invalid_config", http.StatusBadRequest
	}
	return "internal", http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	kind, status := errorKind(err)
	c.JSON(status, gin.H{"error": kind, "message": err.Error()})
}

// caller extracts the caller identity from the X-Caller header.
func caller(c *gin.Context) (common.Address, bool) {
	raw := c.GetHeader("X-Caller")
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_caller", "message": "X-Caller must be a hex address"})
		return common.Address{}, false
	}
	addr := common.HexToAddress(raw)
	if addr == (common.Address{}) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_caller", "message": "X-Caller must not be the zero address"})
		return common.Address{}, false
	}
	return addr, true
}

// pathAsset parses the :collection/:tokenID path segments.
func pathAsset(c *gin.Context) (domain.Asset, bool) {
	raw := c.Param("collection")
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_collection", "message": "collection must be a hex address"})
		return domain.Asset{}, false
	}
	id, err := strconv.ParseUint(c.Param("tokenID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_token_id", "message": "token id must be an unsigned integer"})
		return domain.Asset{}, false
	}
	return domain.Asset{Collection: common.HexToAddress(raw), TokenID: id}, true
}

// liveAuction resolves the live auction for the path asset.
func (s *Server) liveAuction(c *gin.Context) (*auction.Auction, bool) {
	asset, ok := pathAsset(c)
	if !ok {
		return nil, false
	}
	a, ok := s.registry.LiveAuctionFor(asset)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no_live_auction", "message": "no live auction for asset"})
		return nil, false
	}
	return a, true
}

type createRequest struct {
	Collection   string          `json:"collection" binding:"required"`
	TokenID      uint64          `json:"token_id"`
	DurationSec  int64           `json:"duration_sec" binding:"required"`
	MinIncrement decimal.Decimal `json:"min_increment" binding:"required"`
}

func (s *Server) handleCreate(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}
	if !common.IsHexAddress(req.Collection) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_collection", "message": "collection must be a hex address"})
		return
	}
	asset := domain.Asset{Collection: common.HexToAddress(req.Collection), TokenID: req.TokenID}

	a, err := s.registry.CreateAuction(who, asset, time.Duration(req.DurationSec)*time.Second, req.MinIncrement)
	if err != nil {
		fail(c, err)
		return
	}
	s.metrics.RecordAuctionCreated()
	c.JSON(http.StatusCreated, auctionView(a))
}

func (s *Server) handleList(c *gin.Context) {
	out := gin.H{
		"count": s.registry.AuctionCount(),
		"live":  s.registry.LiveCount(),
	}
	if s.journal != nil {
		recs, err := s.journal.Auctions()
		if err != nil {
			slog.Error("failed to read audit log", slog.Any("error", err))
		} else {
			out["auctions"] = recs
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGet(c *gin.Context) {
	a, ok := s.liveAuction(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, auctionView(a))
}

func (s *Server) handleRemove(c *gin.Context) {
	asset, ok := pathAsset(c)
	if !ok {
		return
	}
	if err := s.registry.RemoveAuction(asset); err != nil {
		fail(c, err)
		return
	}
	s.metrics.RecordAuctionRemoved()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStart(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	a, ok := s.liveAuction(c)
	if !ok {
		return
	}
	if err := a.Start(who); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, auctionView(a))
}

type bidRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

func (s *Server) handleBid(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	a, ok := s.liveAuction(c)
	if !ok {
		return
	}
	var req bidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}
	if err := a.Bid(who, req.Amount); err != nil {
		s.metrics.RecordBidRejected()
		fail(c, err)
		return
	}
	s.metrics.RecordBidAccepted()
	c.JSON(http.StatusOK, auctionView(a))
}

func (s *Server) handleWithdraw(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	a, ok := s.liveAuction(c)
	if !ok {
		return
	}
	if err := a.Withdraw(who); err != nil {
		if errors.Is(err, domain.ErrTransferFailed) {
			s.metrics.RecordSendFailure()
		}
		fail(c, err)
		return
	}
	s.metrics.RecordWithdrawal()
	c.Status(http.StatusOK)
}

func (s *Server) handleCancel(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	a, ok := s.liveAuction(c)
	if !ok {
		return
	}
	if err := a.Cancel(who); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, auctionView(a))
}

func (s *Server) handleEnd(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	a, ok := s.liveAuction(c)
	if !ok {
		return
	}
	if err := a.End(who); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, auctionView(a))
}

// handleMedia serves the cached thumbnail for an asset, fetching it on first
// request.
func (s *Server) handleMedia(c *gin.Context) {
	if s.media == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no_media", "message": "media fetcher not configured"})
		return
	}
	asset, ok := pathAsset(c)
	if !ok {
		return
	}
	path, err := s.media.Fetch(asset)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "media_unavailable", "message": err.Error()})
		return
	}
	c.File(path)
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleEventLog(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no_journal", "message": "event journal not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	recs, err := s.journal.Events(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": recs})
}

// auctionView renders the queryable surface of one auction.
func auctionView(a *auction.Auction) gin.H {
	view := gin.H{
		"asset":          a.Asset(),
		"seller":         a.Seller().Hex(),
		"escrow":         a.EscrowAddress().Hex(),
		"state":          a.State().String(),
		"highest_bid":    a.HighestBid(),
		"highest_bidder": a.HighestBidder().Hex(),
	}
	if a.IsStarted() {
		view["end_at"] = a.EndAt()
	}
	return view
}
