// Package application implements the order state machine: it drives a
// single order through its lifecycle, composing inventory, journal and
// holdings inside well-defined transaction boundaries, with the external
// payment call kept outside any database transaction.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	holdingsdomain "github.com/wqellis/brickvest/internal/holdings/domain"
	inventorydomain "github.com/wqellis/brickvest/internal/inventory/domain"
	journalapp "github.com/wqellis/brickvest/internal/journal/application"
	journaldomain "github.com/wqellis/brickvest/internal/journal/domain"
	"github.com/wqellis/brickvest/internal/order/domain"
	"github.com/wqellis/brickvest/pkg/idgen"
	"github.com/wqellis/brickvest/pkg/logger"
	"github.com/wqellis/brickvest/pkg/metrics"
)

// OrderService is the order state machine.
//
// Each submission splits into (a) a short transaction reserving inventory
// and recording the PENDING order, (b) the out-of-transaction payment call,
// and (c) a second short transaction committing or rolling back every local
// effect based on the payment result. No database lock is ever held across
// the payment call.
type OrderService struct {
	orders    domain.OrderRepository
	inventory InventoryLedger
	journal   TransactionJournal
	holdings  HoldingsAggregator
	gateway   domain.PaymentGateway
	publisher domain.EventPublisher
	tx        TxRunner
	metrics   *metrics.Metrics
}

// NewOrderService creates the state machine. metrics may be nil.
func NewOrderService(
	orders domain.OrderRepository,
	inventory InventoryLedger,
	journal TransactionJournal,
	holdings HoldingsAggregator,
	gateway domain.PaymentGateway,
	publisher domain.EventPublisher,
	tx TxRunner,
	m *metrics.Metrics,
) *OrderService {
	return &OrderService{
		orders:    orders,
		inventory: inventory,
		journal:   journal,
		holdings:  holdings,
		gateway:   gateway,
		publisher: publisher,
		tx:        tx,
		metrics:   m,
	}
}

// SubmitOrder validates the request, opens the order and runs it to a
// terminal state. For buys the returned error carries the payment failure
// when the order ends FAILED; the order itself is always returned once it
// exists.
func (s *OrderService) SubmitOrder(ctx context.Context, userID, listingID string, side domain.Side, shares int64) (*domain.Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if listingID == "" {
		return nil, fmt.Errorf("%w: listing id is required", domain.ErrValidation)
	}
	if side != domain.SideBuy && side != domain.SideSell {
		return nil, fmt.Errorf("%w: side must be BUY or SELL", domain.ErrValidation)
	}
	if shares <= 0 {
		return nil, fmt.Errorf("%w: shares must be positive", domain.ErrValidation)
	}

	listing, err := s.inventory.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.IsActive() {
		return nil, inventorydomain.ErrListingNotActive
	}

	order := domain.NewOrder(
		idgen.GenPrefixedID("ORD"),
		userID, listingID, side, shares,
		listing.PricePerShare,
		uuid.NewString(),
	)

	// Transaction (a): take the hold and record PENDING. On
	// ErrInsufficientInventory nothing is created at all.
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if side == domain.SideBuy {
			reservation, err := s.inventory.Reserve(ctx, listingID, shares)
			if err != nil {
				return err
			}
			order.ReservationID = reservation.ReservationID
		} else {
			holding, err := s.holdings.GetHolding(ctx, userID, listingID)
			if err != nil {
				if errors.Is(err, holdingsdomain.ErrHoldingNotFound) {
					return holdingsdomain.ErrInsufficientHoldings
				}
				return err
			}
			if holding.ShareQuantity < shares {
				return holdingsdomain.ErrInsufficientHoldings
			}
		}
		return s.orders.Save(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order submitted",
		"order_id", order.OrderID,
		"user_id", userID,
		"listing_id", listingID,
		"side", side,
		"shares", shares,
		"amount", order.Amount,
	)

	if side == domain.SideBuy {
		return s.settleBuy(ctx, order)
	}
	return s.settleSell(ctx, order)
}

// settleBuy charges the gateway and finalizes the order in a second short
// transaction. A timeout is treated identically to a failure: the hold is
// released and the order marked FAILED; the idempotency key makes a later
// retry safe against double charges.
func (s *OrderService) settleBuy(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	paymentRef, chargeErr := s.gateway.Charge(ctx, order.UserID, order.Amount, order.IdempotencyKey)
	if chargeErr != nil {
		s.countPayment("failure")
		failed, err := s.failOrder(ctx, order.OrderID, chargeErr.Error())
		if err != nil {
			return nil, err
		}
		return failed, chargeErr
	}
	s.countPayment("success")

	var settled *domain.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.orders.GetWithLock(ctx, order.OrderID)
		if err != nil {
			return err
		}
		if err := current.Transition(domain.StatusCompleted); err != nil {
			return err
		}
		if err := s.inventory.Commit(ctx, current.ReservationID); err != nil {
			return err
		}
		if _, err := s.journal.Append(ctx, []journalapp.NewEntry{
			{
				OrderID:   current.OrderID,
				Account:   journaldomain.UserAccount(current.UserID),
				Direction: journaldomain.DirectionDebit,
				Kind:      journaldomain.KindPurchase,
				Amount:    current.Amount,
			},
			{
				OrderID:   current.OrderID,
				Account:   journaldomain.ListingAccount(current.ListingID),
				Direction: journaldomain.DirectionCredit,
				Kind:      journaldomain.KindPurchase,
				Amount:    current.Amount,
			},
		}); err != nil {
			return err
		}
		if err := s.holdings.ApplyBuy(ctx, current.UserID, current.ListingID, current.Shares, current.PricePerShare); err != nil {
			return err
		}
		current.PaymentRef = paymentRef
		if err := s.orders.Save(ctx, current); err != nil {
			return err
		}
		settled = current
		return nil
	})
	if err != nil {
		// The charge landed but the local commit did not (e.g. the order
		// was cancelled while the payment was in flight). Compensate with
		// a refund; the reservation resolves through its own path.
		logger.Error(ctx, "buy settlement failed after charge, refunding",
			"order_id", order.OrderID, "payment_ref", paymentRef, "error", err)
		if refundErr := s.gateway.Refund(ctx, paymentRef, order.Amount); refundErr != nil {
			logger.Error(ctx, "compensating refund failed, manual intervention required",
				"order_id", order.OrderID, "payment_ref", paymentRef, "error", refundErr)
		}
		if errors.Is(err, inventorydomain.ErrReservationExpired) {
			// The hold lapsed while the charge was in flight. The money is
			// back with the buyer; park the order in FAILED so it can be
			// retried against a fresh reservation.
			failed, failErr := s.failOrder(ctx, order.OrderID, "reservation expired before settlement")
			if failErr != nil {
				return nil, failErr
			}
			return failed, err
		}
		return nil, err
	}

	s.countOrder("completed")
	s.publish(ctx, settled, domain.EventOrderCompleted)
	logger.Info(ctx, "order completed", "order_id", settled.OrderID, "payment_ref", paymentRef)
	return settled, nil
}

// settleSell moves the sold shares back to the pool in one transaction.
// Sale proceeds are paid out by the treasury workflow downstream; no
// gateway charge is involved, so there is no out-of-transaction step.
func (s *OrderService) settleSell(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	var settled *domain.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.orders.GetWithLock(ctx, order.OrderID)
		if err != nil {
			return err
		}
		if err := current.Transition(domain.StatusCompleted); err != nil {
			return err
		}
		if err := s.holdings.ApplySell(ctx, current.UserID, current.ListingID, current.Shares); err != nil {
			return err
		}
		if err := s.inventory.Restock(ctx, current.ListingID, current.Shares); err != nil {
			return err
		}
		if _, err := s.journal.Append(ctx, []journalapp.NewEntry{
			{
				OrderID:   current.OrderID,
				Account:   journaldomain.ListingAccount(current.ListingID),
				Direction: journaldomain.DirectionDebit,
				Kind:      journaldomain.KindSale,
				Amount:    current.Amount,
			},
			{
				OrderID:   current.OrderID,
				Account:   journaldomain.UserAccount(current.UserID),
				Direction: journaldomain.DirectionCredit,
				Kind:      journaldomain.KindSale,
				Amount:    current.Amount,
			},
		}); err != nil {
			return err
		}
		if err := s.orders.Save(ctx, current); err != nil {
			return err
		}
		settled = current
		return nil
	})
	if err != nil {
		if errors.Is(err, holdingsdomain.ErrInsufficientHoldings) {
			failed, failErr := s.failOrder(ctx, order.OrderID, err.Error())
			if failErr != nil {
				return nil, failErr
			}
			return failed, err
		}
		return nil, err
	}

	s.countOrder("completed")
	s.publish(ctx, settled, domain.EventOrderCompleted)
	logger.Info(ctx, "order completed", "order_id", settled.OrderID)
	return settled, nil
}

// failOrder releases the order's hold, records the failed attempt in the
// journal and marks the order FAILED, all in one transaction.
func (s *OrderService) failOrder(ctx context.Context, orderID, reason string) (*domain.Order, error) {
	var failed *domain.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.orders.GetWithLock(ctx, orderID)
		if err != nil {
			return err
		}
		if err := current.Transition(domain.StatusFailed); err != nil {
			return err
		}
		if current.ReservationID != "" {
			if err := s.releaseTolerant(ctx, current.ReservationID); err != nil {
				return err
			}
		}
		if _, err := s.journal.Append(ctx, []journalapp.NewEntry{{
			OrderID:   current.OrderID,
			Account:   journaldomain.UserAccount(current.UserID),
			Direction: journaldomain.DirectionDebit,
			Kind:      journaldomain.KindPaymentFailed,
			Amount:    current.Amount,
		}}); err != nil {
			return err
		}
		current.FailureReason = reason
		if err := s.orders.Save(ctx, current); err != nil {
			return err
		}
		failed = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.countOrder("failed")
	s.publish(ctx, failed, domain.EventOrderFailed)
	logger.Warn(ctx, "order failed", "order_id", orderID, "reason", reason)
	return failed, nil
}

// CancelOrder runs the compensating path. Cancelling an already-CANCELLED
// order is a no-op returning the same terminal state; no compensation runs
// twice. Cancellation takes the same per-order row lock as every other
// transition on the order.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, actorID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actorID != "" && actorID != order.UserID {
		return nil, domain.ErrNotOrderOwner
	}

	switch order.Status {
	case domain.StatusCancelled:
		return order, nil
	case domain.StatusPending:
		cancelled, err := s.cancelOpen(ctx, orderID)
		if errors.Is(err, errCancelOutpaced) {
			// The order settled between the status read and the row lock.
			// Re-read and dispatch again; this time it takes the reversal
			// path for the now-COMPLETED order.
			return s.CancelOrder(ctx, orderID, actorID)
		}
		return cancelled, err
	case domain.StatusCompleted:
		if order.Side == domain.SideBuy {
			return s.reverseCompletedBuy(ctx, order)
		}
		return s.reverseCompletedSell(ctx, orderID)
	default:
		return nil, domain.ErrInvalidStateTransition
	}
}

// errCancelOutpaced signals that an order observed as PENDING settled
// before cancelOpen acquired its row lock; the caller must re-dispatch.
var errCancelOutpaced = errors.New("order settled before cancellation locked it")

// cancelOpen cancels a PENDING order: release the hold; no journal movement
// happened yet, so none is reversed. The status is re-verified under the
// lock: if a settlement won the race, bailing out here keeps the
// compensation (refund, restock, reversing entries) with the reversal path.
func (s *OrderService) cancelOpen(ctx context.Context, orderID string) (*domain.Order, error) {
	var cancelled *domain.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.orders.GetWithLock(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status == domain.StatusCancelled {
			cancelled = current
			return nil
		}
		if current.Status != domain.StatusPending {
			return errCancelOutpaced
		}
		if err := current.Transition(domain.StatusCancelled); err != nil {
			return err
		}
		if current.ReservationID != "" {
			if err := s.releaseTolerant(ctx, current.ReservationID); err != nil {
				return err
			}
		}
		if err := s.orders.Save(ctx, current); err != nil {
			return err
		}
		cancelled = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.countOrder("cancelled")
	s.publish(ctx, cancelled, domain.EventOrderCancelled)
	logger.Info(ctx, "order cancelled", "order_id", orderID)
	return cancelled, nil
}

// reverseCompletedBuy refunds the charge, restocks the shares and reverses
// the holding. The holdings guard runs before the refund so an
// already-resold position fails fast with ErrInsufficientHoldings and no
// money moves. The refund itself happens outside any database transaction;
// the processor deduplicates refunds by payment reference.
func (s *OrderService) reverseCompletedBuy(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	holding, err := s.holdings.GetHolding(ctx, order.UserID, order.ListingID)
	if err != nil {
		if errors.Is(err, holdingsdomain.ErrHoldingNotFound) {
			return nil, holdingsdomain.ErrInsufficientHoldings
		}
		return nil, err
	}
	if holding.ShareQuantity < order.Shares {
		return nil, holdingsdomain.ErrInsufficientHoldings
	}

	if err := s.gateway.Refund(ctx, order.PaymentRef, order.Amount); err != nil {
		s.countPayment("refund_failure")
		return nil, err
	}
	s.countPayment("refund_success")

	var cancelled *domain.Order
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.orders.GetWithLock(ctx, order.OrderID)
		if err != nil {
			return err
		}
		if current.Status == domain.StatusCancelled {
			// A racing cancel finished first; the refund was deduplicated
			// by the processor.
			cancelled = current
			return nil
		}
		if err := current.Transition(domain.StatusCancelled); err != nil {
			return err
		}
		if err := s.holdings.ReverseBuy(ctx, current.UserID, current.ListingID, current.Shares); err != nil {
			return err
		}
		if err := s.inventory.Restock(ctx, current.ListingID, current.Shares); err != nil {
			return err
		}
		if _, err := s.journal.Append(ctx, []journalapp.NewEntry{
			{
				OrderID:   current.OrderID,
				Account:   journaldomain.ListingAccount(current.ListingID),
				Direction: journaldomain.DirectionDebit,
				Kind:      journaldomain.KindReversal,
				Amount:    current.Amount,
			},
			{
				OrderID:   current.OrderID,
				Account:   journaldomain.UserAccount(current.UserID),
				Direction: journaldomain.DirectionCredit,
				Kind:      journaldomain.KindReversal,
				Amount:    current.Amount,
			},
		}); err != nil {
			return err
		}
		if err := s.orders.Save(ctx, current); err != nil {
			return err
		}
		cancelled = current
		return nil
	})
	if err != nil {
		logger.Error(ctx, "cancellation failed after refund, manual intervention required",
			"order_id", order.OrderID, "payment_ref", order.PaymentRef, "error", err)
		return nil, err
	}

	s.countOrder("cancelled")
	s.publish(ctx, cancelled, domain.EventOrderCancelled)
	logger.Info(ctx, "completed buy reversed", "order_id", order.OrderID)
	return cancelled, nil
}

// reverseCompletedSell pulls the sold shares back out of the pool and
// restores the seller's position at the order price.
func (s *OrderService) reverseCompletedSell(ctx context.Context, orderID string) (*domain.Order, error) {
	var cancelled *domain.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.orders.GetWithLock(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status == domain.StatusCancelled {
			cancelled = current
			return nil
		}
		if err := current.Transition(domain.StatusCancelled); err != nil {
			return err
		}
		if err := s.inventory.Reclaim(ctx, current.ListingID, current.Shares); err != nil {
			return err
		}
		if err := s.holdings.ApplyBuy(ctx, current.UserID, current.ListingID, current.Shares, current.PricePerShare); err != nil {
			return err
		}
		if _, err := s.journal.Append(ctx, []journalapp.NewEntry{
			{
				OrderID:   current.OrderID,
				Account:   journaldomain.UserAccount(current.UserID),
				Direction: journaldomain.DirectionDebit,
				Kind:      journaldomain.KindReversal,
				Amount:    current.Amount,
			},
			{
				OrderID:   current.OrderID,
				Account:   journaldomain.ListingAccount(current.ListingID),
				Direction: journaldomain.DirectionCredit,
				Kind:      journaldomain.KindReversal,
				Amount:    current.Amount,
			},
		}); err != nil {
			return err
		}
		if err := s.orders.Save(ctx, current); err != nil {
			return err
		}
		cancelled = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.countOrder("cancelled")
	s.publish(ctx, cancelled, domain.EventOrderCancelled)
	logger.Info(ctx, "completed sell reversed", "order_id", orderID)
	return cancelled, nil
}

// RetryOrder re-runs a FAILED order. The retry reuses the order's original
// idempotency key, so a charge that actually landed on a previous attempt
// is deduplicated by the gateway instead of charged again.
func (s *OrderService) RetryOrder(ctx context.Context, orderID, actorID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}

	var order *domain.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.orders.GetWithLock(ctx, orderID)
		if err != nil {
			return err
		}
		if actorID != "" && actorID != current.UserID {
			return domain.ErrNotOrderOwner
		}
		if err := current.Transition(domain.StatusPending); err != nil {
			return err
		}
		if current.Side == domain.SideBuy {
			reservation, err := s.inventory.Reserve(ctx, current.ListingID, current.Shares)
			if err != nil {
				return err
			}
			current.ReservationID = reservation.ReservationID
		}
		if err := s.orders.Save(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order retry started", "order_id", orderID)
	if order.Side == domain.SideBuy {
		return s.settleBuy(ctx, order)
	}
	return s.settleSell(ctx, order)
}

// GetOrder loads an order.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orders.Get(ctx, orderID)
}

// ListUserOrders pages through a user's orders.
func (s *OrderService) ListUserOrders(ctx context.Context, userID string, status domain.Status, limit, offset int) ([]*domain.Order, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.orders.ListByUser(ctx, userID, status, limit, offset)
}

// releaseTolerant releases a reservation, tolerating one the expiry sweep
// or a racing path already resolved.
func (s *OrderService) releaseTolerant(ctx context.Context, reservationID string) error {
	err := s.inventory.Release(ctx, reservationID)
	if err != nil && !errors.Is(err, inventorydomain.ErrReservationNotHeld) {
		return err
	}
	return nil
}

func (s *OrderService) publish(ctx context.Context, order *domain.Order, eventType string) {
	if s.publisher == nil || order == nil {
		return
	}
	event := domain.OrderEvent{
		Type:       eventType,
		OrderID:    order.OrderID,
		UserID:     order.UserID,
		ListingID:  order.ListingID,
		Side:       order.Side,
		Shares:     order.Shares,
		Amount:     order.Amount.StringFixed(2),
		Status:     order.Status,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		// Fan-out is best effort; the committed transition stands.
		logger.Warn(ctx, "failed to publish order event",
			"order_id", order.OrderID, "type", eventType, "error", err)
	}
}

func (s *OrderService) countOrder(outcome string) {
	if s.metrics != nil {
		s.metrics.OrdersTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *OrderService) countPayment(result string) {
	if s.metrics != nil {
		s.metrics.PaymentCallsTotal.WithLabelValues(result).Inc()
	}
}
