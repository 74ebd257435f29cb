package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	holdingsdomain "github.com/wqellis/brickvest/internal/holdings/domain"
	inventorydomain "github.com/wqellis/brickvest/internal/inventory/domain"
	journaldomain "github.com/wqellis/brickvest/internal/journal/domain"
	orderdomain "github.com/wqellis/brickvest/internal/order/domain"
)

// writeError maps domain errors to HTTP statuses.
func writeError(c *gin.Context, err error) {
	var pe *orderdomain.PaymentError

	switch {
	case errors.Is(err, orderdomain.ErrValidation),
		errors.Is(err, inventorydomain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, inventorydomain.ErrListingNotFound),
		errors.Is(err, holdingsdomain.ErrHoldingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, orderdomain.ErrNotOrderOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, inventorydomain.ErrInsufficientInventory),
		errors.Is(err, holdingsdomain.ErrInsufficientHoldings),
		errors.Is(err, inventorydomain.ErrReservationExpired),
		errors.Is(err, orderdomain.ErrInvalidStateTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, inventorydomain.ErrListingNotActive):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &pe):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":     pe.Error(),
			"code":      pe.Code,
			"retryable": pe.Retryable,
		})
	case errors.Is(err, journaldomain.ErrJournalHalted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
