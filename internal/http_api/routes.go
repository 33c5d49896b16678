package http_api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	v1 := s.router.Group("/api/v1")

	v1.POST("/delegation/execute", s.executeDelegated)
	v1.GET("/delegation/nonce", s.getNonce)

	v1.POST("/wallets", s.createWallet)
	v1.GET("/wallets/:address", s.getWallet)
	v1.POST("/wallets/:address/execute", s.executeCommand)
	v1.POST("/wallets/:address/subscriptions/:id/pay", s.paySubscription)
	v1.POST("/wallets/:address/subwallets/:id/spend", s.spendSubWallet)

	v1.GET("/sponsorship/preapprove", s.preApprove)
	v1.POST("/sponsorship/sponsor", s.sponsorTransaction)
	v1.POST("/sponsorship/deposit", s.depositSponsorship)
	v1.GET("/sponsorship/balance", s.sponsorshipBalance)

	v1.GET("/ledger/:address/balance", s.ledgerBalance)

	admin := v1.Group("/admin")
	admin.POST("/paymasters", s.addPaymaster)
	admin.DELETE("/paymasters/:address", s.removePaymaster)
	admin.POST("/whitelist", s.setWhitelist)
	admin.POST("/relayers", s.addRelayer)
	admin.DELETE("/relayers/:address", s.removeRelayer)
	admin.PUT("/rate_limits", s.updateRateLimits)
	admin.POST("/pause", s.pauseSponsorship)
	admin.POST("/unpause", s.unpauseSponsorship)
	admin.POST("/withdraw", s.withdrawSponsorship)
	admin.POST("/emergency_withdraw", s.emergencyWithdraw)
	admin.PUT("/endpoint", s.setEndpoint)
	admin.POST("/ledger/fund", s.fundLedger)

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
