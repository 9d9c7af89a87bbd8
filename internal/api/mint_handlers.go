package api

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"auction_go/internal/domain"
)

// mintErrorKind extends errorKind with the mint boundary taxonomy.
func mintErrorKind(err error) (string, int) {
	switch {
	case errors.Is(err, domain.ErrMintClosed):
		return "mint_closed", http.StatusForbidden
	case errors.Is(err, domain.ErrIncorrectPayment):
		return "incorrect_payment", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSupplyExhausted):
		return "supply_exhausted", http.StatusConflict
	case errors.Is(err, domain.ErrMintLimit):
		return "mint_limit", http.StatusConflict
	}
	return errorKind(err)
}

func mintFail(c *gin.Context, err error) {
	kind, status := mintErrorKind(err)
	c.JSON(status, gin.H{"error": kind, "message": err.Error()})
}

func (s *Server) handleMintInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"phase":  s.minter.Phase().String(),
		"minted": s.minter.Minted(),
	})
}

type mintRequest struct {
	Payment decimal.Decimal `json:"payment" binding:"required"`
}

func (s *Server) handleMint(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}
	asset, err := s.minter.Mint(who, req.Payment)
	if err != nil {
		mintFail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"asset": asset})
}

type allowlistRequest struct {
	Addresses []string `json:"addresses" binding:"required"`
}

func (s *Server) handleMintAllowlist(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var req allowlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}
	addrs := make([]common.Address, 0, len(req.Addresses))
	for _, raw := range req.Addresses {
		if !common.IsHexAddress(raw) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_address", "message": "addresses must be hex addresses"})
			return
		}
		addrs = append(addrs, common.HexToAddress(raw))
	}
	if err := s.minter.AddToAllowlist(who, addrs...); err != nil {
		mintFail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMintAdvance(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	if err := s.minter.AdvancePhase(who); err != nil {
		mintFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"phase": s.minter.Phase().String()})
}
