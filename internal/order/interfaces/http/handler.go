// Package http serves the engine's operations over gin. The authenticated
// user arrives in the X-User-ID header from the upstream identity service;
// the engine trusts it and performs no authentication of its own.
package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	holdingsapp "github.com/wqellis/brickvest/internal/holdings/application"
	inventoryapp "github.com/wqellis/brickvest/internal/inventory/application"
	inventorydomain "github.com/wqellis/brickvest/internal/inventory/domain"
	journalapp "github.com/wqellis/brickvest/internal/journal/application"
	orderapp "github.com/wqellis/brickvest/internal/order/application"
	orderdomain "github.com/wqellis/brickvest/internal/order/domain"
	"github.com/wqellis/brickvest/pkg/logger"
)

const userIDHeader = "X-User-ID"

// Handler exposes orders, holdings, journal and listing administration.
type Handler struct {
	orders    *orderapp.OrderService
	holdings  *holdingsapp.HoldingsService
	journal   *journalapp.JournalService
	inventory *inventoryapp.InventoryService
}

// NewHandler creates the HTTP handler.
func NewHandler(
	orders *orderapp.OrderService,
	holdings *holdingsapp.HoldingsService,
	journal *journalapp.JournalService,
	inventory *inventoryapp.InventoryService,
) *Handler {
	return &Handler{orders: orders, holdings: holdings, journal: journal, inventory: inventory}
}

// RegisterRoutes mounts all endpoints under the given group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	v1 := api.Group("/v1")
	{
		v1.POST("/orders", h.SubmitOrder)
		v1.GET("/orders/:id", h.GetOrder)
		v1.POST("/orders/:id/cancel", h.CancelOrder)
		v1.POST("/orders/:id/retry", h.RetryOrder)
		v1.GET("/users/:id/orders", h.ListUserOrders)

		v1.GET("/holdings/:userID/:listingID", h.GetHolding)
		v1.GET("/users/:id/holdings", h.ListUserHoldings)

		v1.GET("/journal/verify", h.VerifyJournal)
		v1.GET("/journal/entries", h.ListJournalEntries)
		v1.GET("/orders/:id/journal", h.ListOrderJournal)

		v1.POST("/listings", h.CreateListing)
		v1.GET("/listings", h.ListListings)
		v1.GET("/listings/:id", h.GetListing)
		v1.POST("/listings/:id/activate", h.ActivateListing)
		v1.POST("/listings/:id/close", h.CloseListing)
	}
}

// SubmitOrderRequest is the order submission body.
type SubmitOrderRequest struct {
	ListingID string `json:"listing_id" binding:"required"`
	Side      string `json:"side" binding:"required"`
	Shares    int64  `json:"shares" binding:"required"`
}

// SubmitOrder handles POST /orders.
func (h *Handler) SubmitOrder(c *gin.Context) {
	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	var req SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.SubmitOrder(c.Request.Context(), userID, req.ListingID, orderdomain.Side(req.Side), req.Shares)
	if err != nil {
		if order != nil {
			// Payment failed: the order exists in FAILED state. Surface
			// both the order and the failure.
			c.JSON(http.StatusPaymentRequired, gin.H{"order": order, "error": err.Error()})
			return
		}
		logger.Error(c.Request.Context(), "order submission failed", "error", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// GetOrder handles GET /orders/:id.
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CancelOrder handles POST /orders/:id/cancel.
func (h *Handler) CancelOrder(c *gin.Context) {
	order, err := h.orders.CancelOrder(c.Request.Context(), c.Param("id"), c.GetHeader(userIDHeader))
	if err != nil {
		logger.Error(c.Request.Context(), "order cancellation failed",
			"order_id", c.Param("id"), "error", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// RetryOrder handles POST /orders/:id/retry.
func (h *Handler) RetryOrder(c *gin.Context) {
	order, err := h.orders.RetryOrder(c.Request.Context(), c.Param("id"), c.GetHeader(userIDHeader))
	if err != nil {
		if order != nil {
			c.JSON(http.StatusPaymentRequired, gin.H{"order": order, "error": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListUserOrders handles GET /users/:id/orders.
func (h *Handler) ListUserOrders(c *gin.Context) {
	limit, offset := pagination(c)
	orders, total, err := h.orders.ListUserOrders(
		c.Request.Context(),
		c.Param("id"),
		orderdomain.Status(c.Query("status")),
		limit, offset,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": total})
}

// GetHolding handles GET /holdings/:userID/:listingID.
func (h *Handler) GetHolding(c *gin.Context) {
	holding, err := h.holdings.GetHolding(c.Request.Context(), c.Param("userID"), c.Param("listingID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, holding)
}

// ListUserHoldings handles GET /users/:id/holdings.
func (h *Handler) ListUserHoldings(c *gin.Context) {
	limit, offset := pagination(c)
	holdings, total, err := h.holdings.ListByUser(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"holdings": holdings, "total": total})
}

// VerifyJournal handles GET /journal/verify?from=&to=.
func (h *Handler) VerifyJournal(c *gin.Context) {
	from, _ := strconv.ParseUint(c.DefaultQuery("from", "1"), 10, 64)
	to, _ := strconv.ParseUint(c.DefaultQuery("to", "0"), 10, 64)

	result, err := h.journal.Verify(c.Request.Context(), from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	if !result.OK {
		logger.Error(c.Request.Context(), "journal verification failed",
			"error", result.Err(),
			"first_mismatch_seq", result.FirstMismatchSeq)
	}
	c.JSON(http.StatusOK, result)
}

// ListJournalEntries handles GET /journal/entries.
func (h *Handler) ListJournalEntries(c *gin.Context) {
	limit, offset := pagination(c)
	entries, total, err := h.journal.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": total})
}

// ListOrderJournal handles GET /orders/:id/journal.
func (h *Handler) ListOrderJournal(c *gin.Context) {
	entries, err := h.journal.ListByOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// CreateListingRequest is the listing creation body.
type CreateListingRequest struct {
	Name          string `json:"name" binding:"required"`
	TotalShares   int64  `json:"total_shares" binding:"required"`
	PricePerShare string `json:"price_per_share" binding:"required"`
}

// CreateListing handles POST /listings.
func (h *Handler) CreateListing(c *gin.Context) {
	var req CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	price, err := decimal.NewFromString(req.PricePerShare)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price_per_share"})
		return
	}

	listing, err := h.inventory.CreateListing(c.Request.Context(), req.Name, req.TotalShares, price)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

// ListListings handles GET /listings.
func (h *Handler) ListListings(c *gin.Context) {
	limit, offset := pagination(c)
	listings, total, err := h.inventory.ListListings(
		c.Request.Context(),
		inventorydomain.ListingStatus(c.Query("status")),
		limit, offset,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": listings, "total": total})
}

// GetListing handles GET /listings/:id.
func (h *Handler) GetListing(c *gin.Context) {
	listing, err := h.inventory.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// ActivateListing handles POST /listings/:id/activate.
func (h *Handler) ActivateListing(c *gin.Context) {
	listing, err := h.inventory.ActivateListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// CloseListing handles POST /listings/:id/close.
func (h *Handler) CloseListing(c *gin.Context) {
	listing, err := h.inventory.CloseListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}
