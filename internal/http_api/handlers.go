package http_api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"github.com/tutela-wallet/tutela/internal/delegation"
	"github.com/tutela-wallet/tutela/internal/models"
	"github.com/tutela-wallet/tutela/pkg/validation"
)

// ExecuteDelegatedRequest represents the JSON body for a delegated call.
// Payload carries the raw command bytes exactly as the principal signed them.
type ExecuteDelegatedRequest struct {
	Caller    string          `json:"caller" binding:"required"`
	Principal string          `json:"principal" binding:"required"`
	Wallet    string          `json:"wallet" binding:"required"`
	Payload   json.RawMessage `json:"payload" binding:"required"`
	Nonce     uint64          `json:"nonce"`
	Deadline  int64           `json:"deadline" binding:"required"`
	Signature string          `json:"signature"`
}

// CommandRequest represents the JSON body for direct owner-context execution.
type CommandRequest struct {
	Caller  string               `json:"caller" binding:"required"`
	Command models.WalletCommand `json:"command" binding:"required"`
}

// CreateWalletRequest represents the JSON body for the wallet factory.
type CreateWalletRequest struct {
	Owner string `json:"owner" binding:"required"`
}

// SpendRequest represents the JSON body for a sub-wallet spend.
type SpendRequest struct {
	Caller string `json:"caller" binding:"required"`
	To     string `json:"to" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
}

// SponsorRequest represents the JSON body for the underwriting call.
type SponsorRequest struct {
	Relayer   string `json:"relayer" binding:"required"`
	Principal string `json:"principal" binding:"required"`
	Units     int64  `json:"units" binding:"required"`
}

// DepositRequest represents the JSON body for a sponsorship deposit.
type DepositRequest struct {
	From   string `json:"from" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
}

// executeDelegated is a handler for the /delegation/execute endpoint.
func (s *HTTPServer) executeDelegated(c *gin.Context) {
	var req ExecuteDelegatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debugw("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	var signature []byte
	if req.Signature != "" {
		var err error
		signature, err = hexutil.Decode(req.Signature)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid signature encoding: " + err.Error(),
			})
			return
		}
	}

	err := s.app.Delegation.ExecuteOnWallet(&delegation.ExecuteRequest{
		Caller:    req.Caller,
		Principal: req.Principal,
		Wallet:    req.Wallet,
		Payload:   req.Payload,
		Nonce:     req.Nonce,
		Deadline:  req.Deadline,
		Signature: signature,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"nonce":   req.Nonce + 1,
	})
}

// getNonce is a handler for the /delegation/nonce endpoint.
func (s *HTTPServer) getNonce(c *gin.Context) {
	principal := c.Query("principal")
	if principal == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "principal is required"})
		return
	}
	if err := validation.ValidateAddress(principal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid principal format: " + err.Error()})
		return
	}

	nonce, err := s.app.Delegation.GetNonce(principal)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"principal": validation.NormalizeAddress(principal), "nonce": nonce})
}

// createWallet is a handler for the wallet factory endpoint. Idempotent: an
// existing wallet for the owner is returned as-is.
func (s *HTTPServer) createWallet(c *gin.Context) {
	var req CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debugw("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	wallet, err := s.app.Wallet.CreateWallet(req.Owner)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"wallet":  wallet,
	})
}

// getWallet is a handler for reading a wallet and its authorization objects.
// The path segment may be the wallet address or the owner account.
func (s *HTTPServer) getWallet(c *gin.Context) {
	key := c.Param("address")
	wallet, subs, subWallets, err := s.app.DescribeWallet(key)
	if errors.Is(err, models.ErrWalletNotFound) {
		if owned, lookupErr := s.app.Wallet.GetWallet(key); lookupErr == nil {
			wallet, subs, subWallets, err = s.app.DescribeWallet(owned.Address)
		}
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"wallet":        wallet,
		"subscriptions": subs,
		"sub_wallets":   subWallets,
	})
}

// executeCommand is a handler for direct owner-context execution against a
// wallet, without going through the delegation authority.
func (s *HTTPServer) executeCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debugw("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	if err := s.app.Wallet.Execute(req.Caller, c.Param("address"), &req.Command); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// paySubscription is a handler for collecting one subscription interval.
func (s *HTTPServer) paySubscription(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
		return
	}

	if err := s.app.Wallet.ExecuteSubscriptionPayment(c.Param("address"), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// spendSubWallet is a handler for a child spend from a sub-wallet.
func (s *HTTPServer) spendSubWallet(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sub-wallet id"})
		return
	}

	var req SpendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debugw("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	if err := s.app.Wallet.ExecuteSubWalletTransaction(req.Caller, c.Param("address"), id, req.To, req.Amount); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// preApprove is a handler for the read-only sponsorship check.
func (s *HTTPServer) preApprove(c *gin.Context) {
	principal := c.Query("principal")
	if principal == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "principal is required"})
		return
	}
	units, err := strconv.ParseInt(c.DefaultQuery("units", "0"), 10, 64)
	if err != nil || units < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid units"})
		return
	}

	approved, reason, err := s.app.Sponsorship.PreApprove(principal, units)
	if err != nil {
		fail(c, err)
		return
	}
	resp := gin.H{"approved": approved}
	if !approved {
		resp["reason"] = reason
	}
	c.JSON(http.StatusOK, resp)
}

// sponsorTransaction is a handler for the underwriting call.
func (s *HTTPServer) sponsorTransaction(c *gin.Context) {
	var req SponsorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debugw("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	if err := s.app.Sponsorship.SponsorTransaction(req.Relayer, req.Principal, req.Units); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// depositSponsorship is a handler for topping up the gate balance.
func (s *HTTPServer) depositSponsorship(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debugw("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	if err := s.app.Sponsorship.Deposit(req.From, req.Amount); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// sponsorshipBalance is a handler for reading the gate balance.
func (s *HTTPServer) sponsorshipBalance(c *gin.Context) {
	balance, err := s.app.Sponsorship.GetBalance()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// ledgerBalance is a handler for reading a ledger account balance.
func (s *HTTPServer) ledgerBalance(c *gin.Context) {
	balance, err := s.app.Balance(c.Param("address"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}
