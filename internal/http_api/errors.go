package http_api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tutela-wallet/tutela/internal/models"
)

// statusByError maps domain failures to HTTP statuses. Reasons reach the
// client verbatim so a relay can surface them to the signer.
var statusByError = map[error]int{
	models.ErrInvalidSignature: http.StatusUnauthorized,

	models.ErrNotWalletOwner: http.StatusForbidden,
	models.ErrOnlyChildEOA:   http.StatusForbidden,
	models.ErrNotOwner:       http.StatusForbidden,
	models.ErrNotRelayer:     http.StatusForbidden,
	models.ErrNotWhitelisted: http.StatusForbidden,

	models.ErrWalletNotFound:       http.StatusNotFound,
	models.ErrSubscriptionNotFound: http.StatusNotFound,
	models.ErrSubWalletNotFound:    http.StatusNotFound,

	models.ErrInvalidNonce: http.StatusConflict,

	models.ErrRateLimitTooSoon:    http.StatusTooManyRequests,
	models.ErrRateLimitWindowUsed: http.StatusTooManyRequests,

	models.ErrExpiredDeadline:       http.StatusUnprocessableEntity,
	models.ErrPaymentIntervalNotMet: http.StatusUnprocessableEntity,
	models.ErrExceedsSpendingLimit:  http.StatusUnprocessableEntity,
	models.ErrSubWalletInactive:     http.StatusUnprocessableEntity,
	models.ErrSubWalletRevoked:      http.StatusUnprocessableEntity,
	models.ErrSponsorshipPaused:     http.StatusUnprocessableEntity,
	models.ErrInsufficientFunds:     http.StatusUnprocessableEntity,
	models.ErrStakeLocked:           http.StatusUnprocessableEntity,
}

// fail writes the error response for a domain failure. Unmapped errors are
// treated as bad input; engines validate before touching storage.
func fail(c *gin.Context, err error) {
	status := http.StatusBadRequest
	for sentinel, s := range statusByError {
		if errors.Is(err, sentinel) {
			status = s
			break
		}
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}
