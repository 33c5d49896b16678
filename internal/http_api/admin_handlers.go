package http_api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Admin endpoints carry the acting principal in the body (or the caller
// query parameter for DELETE); the engines check it against the owner.

// PaymasterRequest represents the JSON body for paymaster management.
type PaymasterRequest struct {
	Caller  string `json:"caller" binding:"required"`
	Address string `json:"address" binding:"required"`
}

// WhitelistRequest represents the JSON body for whitelist management.
type WhitelistRequest struct {
	Caller      string   `json:"caller" binding:"required"`
	Addresses   []string `json:"addresses" binding:"required,min=1"`
	Whitelisted bool     `json:"whitelisted"`
}

// RelayerRequest represents the JSON body for relayer management.
type RelayerRequest struct {
	Caller  string `json:"caller" binding:"required"`
	Address string `json:"address" binding:"required"`
}

// RateLimitsRequest represents the JSON body for rate-limit updates.
type RateLimitsRequest struct {
	Caller            string `json:"caller" binding:"required"`
	MaxUnitsPerWindow int64  `json:"max_units_per_window" binding:"required"`
	MinTimeBetweenOps int64  `json:"min_time_between_ops"`
}

// CallerRequest represents a JSON body carrying only the acting principal.
type CallerRequest struct {
	Caller string `json:"caller" binding:"required"`
}

// WithdrawRequest represents the JSON body for a sponsorship withdrawal.
type WithdrawRequest struct {
	Caller string `json:"caller" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
	To     string `json:"to" binding:"required"`
}

// EndpointRequest represents the JSON body for setting the webhook endpoint.
type EndpointRequest struct {
	Caller string `json:"caller" binding:"required"`
	URL    string `json:"url" binding:"required,url"`
}

// FundRequest represents the JSON body for crediting a ledger account.
type FundRequest struct {
	Caller  string `json:"caller" binding:"required"`
	Address string `json:"address" binding:"required"`
	Amount  int64  `json:"amount" binding:"required,gt=0"`
}

func bindJSON(c *gin.Context, s *HTTPServer, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.logger.Debugw("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return false
	}
	return true
}

// addPaymaster is a handler for authorizing a paymaster.
func (s *HTTPServer) addPaymaster(c *gin.Context) {
	var req PaymasterRequest
	if !bindJSON(c, s, &req) {
		return
	}
	if err := s.app.Delegation.AddAuthorizedPaymaster(req.Caller, req.Address); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// removePaymaster is a handler for deauthorizing a paymaster.
func (s *HTTPServer) removePaymaster(c *gin.Context) {
	caller := c.Query("caller")
	if caller == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "caller is required"})
		return
	}
	if err := s.app.Delegation.RemoveAuthorizedPaymaster(caller, c.Param("address")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// setWhitelist is a handler for whitelisting or delisting principals. The
// whole list applies atomically.
func (s *HTTPServer) setWhitelist(c *gin.Context) {
	var req WhitelistRequest
	if !bindJSON(c, s, &req) {
		return
	}
	if err := s.app.Sponsorship.BatchSetWhitelisted(req.Caller, req.Addresses, req.Whitelisted); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(req.Addresses)})
}

// addRelayer is a handler for authorizing a relayer.
func (s *HTTPServer) addRelayer(c *gin.Context) {
	var req RelayerRequest
	if !bindJSON(c, s, &req) {
		return
	}
	if err := s.app.Sponsorship.AddRelayer(req.Caller, req.Address); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// removeRelayer is a handler for deauthorizing a relayer.
func (s *HTTPServer) removeRelayer(c *gin.Context) {
	caller := c.Query("caller")
	if caller == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "caller is required"})
		return
	}
	if err := s.app.Sponsorship.RemoveRelayer(caller, c.Param("address")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// updateRateLimits is a handler for replacing the rate-limit parameters.
func (s *HTTPServer) updateRateLimits(c *gin.Context) {
	var req RateLimitsRequest
	if !bindJSON(c, s, &req) {
		return
	}
	if err := s.app.Sponsorship.UpdateRateLimits(req.Caller, req.MaxUnitsPerWindow, req.MinTimeBetweenOps); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// pauseSponsorship is a handler for the sponsorship kill switch.
func (s *HTTPServer) pauseSponsorship(c *gin.Context) {
	var req CallerRequest
	if !bindJSON(c, s, &req) {
		return
	}
	if err := s.app.Sponsorship.Pause(req.Caller); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// unpauseSponsorship is a handler for resuming sponsorship.
func (s *HTTPServer) unpauseSponsorship(c *gin.Context) {
	var req CallerRequest
	if !bindJSON(c, s, &req) {
		return
	}
	if err := s.app.Sponsorship.Unpause(req.Caller); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// withdrawSponsorship is a handler for an owner withdrawal above the stake.
func (s *HTTPServer) withdrawSponsorship(c *gin.Context) {
	var req WithdrawRequest
	if !bindJSON(c, s, &req) {
		return
	}
	if err := s.app.Sponsorship.Withdraw(req.Caller, req.Amount, req.To); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// emergencyWithdraw is a handler for draining everything above the stake.
func (s *HTTPServer) emergencyWithdraw(c *gin.Context) {
	var req CallerRequest
	if !bindJSON(c, s, &req) {
		return
	}
	if err := s.app.Sponsorship.EmergencyWithdraw(req.Caller); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// setEndpoint is a handler for storing the webhook endpoint URL.
func (s *HTTPServer) setEndpoint(c *gin.Context) {
	var req EndpointRequest
	if !bindJSON(c, s, &req) {
		return
	}
	if err := s.app.Sponsorship.SetSponsorshipEndpoint(req.Caller, req.URL); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// fundLedger is a handler for the operational ledger credit. Owner-only.
func (s *HTTPServer) fundLedger(c *gin.Context) {
	var req FundRequest
	if !bindJSON(c, s, &req) {
		return
	}
	if err := s.app.FundAs(req.Caller, req.Address, req.Amount); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
