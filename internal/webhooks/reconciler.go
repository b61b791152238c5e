package webhooks

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"jobboard/internal/external"
	"jobboard/internal/types"
)

// PaymentStore is the payment mirror mutated by reconciliation.
type PaymentStore interface {
	GetByGatewayID(ctx context.Context, gatewayID string) (*types.Payment, error)
	UpdateStatus(ctx context.Context, paymentID string, status types.PaymentStatus, gatewayStatus, gatewayDetail string, snapshot json.RawMessage) (bool, error)
	RecordTransition(ctx context.Context, tr types.StatusTransition) error
}

// OrderStore is the one-off purchase aggregate touched on payment
// transitions.
type OrderStore interface {
	GetByID(ctx context.Context, orderID string) (*types.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status types.PaymentStatus, paymentID string) (bool, error)
}

// SubscriptionStore is the recurring-plan aggregate touched on
// preapproval transitions.
type SubscriptionStore interface {
	GetByGatewayID(ctx context.Context, gatewayID string) (*types.Subscription, error)
	UpdateStatus(ctx context.Context, subscriptionID string, status types.SubscriptionStatus, paymentID string) (bool, error)
}

// MapPaymentStatus maps the gateway's payment status vocabulary onto the
// internal enum. The mapping is total: any status the gateway invents
// later lands in PAYMENT_REVIEW for manual triage instead of failing.
func MapPaymentStatus(gatewayStatus string) types.PaymentStatus {
	switch gatewayStatus {
	case "approved":
		return types.PaymentStatusPaid
	case "pending":
		return types.PaymentStatusPending
	case "in_process":
		return types.PaymentStatusProcessing
	case "rejected":
		return types.PaymentStatusFailed
	case "refunded":
		return types.PaymentStatusRefunded
	case "cancelled":
		return types.PaymentStatusCancelled
	default:
		return types.PaymentStatusReview
	}
}

// MapSubscriptionStatus maps the gateway's preapproval status vocabulary
// onto the internal enum, with the same total-mapping rule.
func MapSubscriptionStatus(gatewayStatus string) types.SubscriptionStatus {
	switch gatewayStatus {
	case "authorized":
		return types.SubStatusActive
	case "pending":
		return types.SubStatusPending
	case "paused":
		return types.SubStatusPaused
	case "cancelled":
		return types.SubStatusCancelled
	default:
		return types.SubStatusReview
	}
}

// PaymentOutcome describes what a payment reconciliation did, so the
// caller can decide which side effects fire.
type PaymentOutcome struct {
	Payment *types.Payment
	Order   *types.Order
	From    types.PaymentStatus
	To      types.PaymentStatus
	Applied bool
}

// SubscriptionOutcome describes what a subscription reconciliation did.
type SubscriptionOutcome struct {
	Subscription *types.Subscription
	From         types.SubscriptionStatus
	To           types.SubscriptionStatus
	Applied      bool
}

// Reconciler maps authoritative gateway state onto the owned aggregates.
// Writes are monotonic for terminal statuses and skipped when redundant;
// every applied payment transition leaves an audit entry.
type Reconciler struct {
	payments      PaymentStore
	orders        OrderStore
	subscriptions SubscriptionStore
	logger        *slog.Logger
}

// NewReconciler creates a Reconciler over the given stores.
func NewReconciler(payments PaymentStore, orders OrderStore, subscriptions SubscriptionStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		payments:      payments,
		orders:        orders,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// ReconcilePayment applies the gateway's authoritative payment state to
// the local payment row and its owning order. eventID identifies the
// webhook delivery for the audit trail.
func (r *Reconciler) ReconcilePayment(ctx context.Context, eventID string, gp *external.GatewayPayment) (*PaymentOutcome, error) {
	gatewayID := strconv.FormatInt(gp.ID, 10)
	payment, err := r.payments.GetByGatewayID(ctx, gatewayID)
	if err != nil {
		return nil, err
	}

	target := MapPaymentStatus(gp.Status)
	outcome := &PaymentOutcome{Payment: payment, From: payment.Status, To: target}

	if payment.Status == target {
		r.logger.Debug("payment status already current",
			slog.String("payment_id", payment.ID),
			slog.String("status", string(target)),
		)
		return outcome, nil
	}

	if payment.Status.IsTerminal() {
		r.logger.Warn("dropping status regression on terminal payment",
			slog.String("payment_id", payment.ID),
			slog.String("stored", string(payment.Status)),
			slog.String("claimed", string(target)),
			slog.String("event_id", eventID),
		)
		return outcome, nil
	}

	applied, err := r.payments.UpdateStatus(ctx, payment.ID, target, gp.Status, gp.StatusDetail, gp.Raw)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost a race against another writer; the guarded UPDATE already
		// protected the terminal invariant, so treat it as redundant.
		r.logger.Warn("payment status write skipped by guard",
			slog.String("payment_id", payment.ID),
			slog.String("claimed", string(target)),
		)
		return outcome, nil
	}
	outcome.Applied = true

	if err := r.payments.RecordTransition(ctx, types.StatusTransition{
		EventID:    eventID,
		PaymentID:  payment.ID,
		FromStatus: string(payment.Status),
		ToStatus:   string(target),
	}); err != nil {
		// The status write is already durable; losing one audit row is
		// preferable to failing the whole reconciliation.
		r.logger.Error("failed to record status transition",
			slog.String("payment_id", payment.ID),
			slog.Any("error", err),
		)
	}

	orderID := payment.OrderID
	if orderID == "" {
		orderID = gp.ExternalReference
	}
	if orderID != "" {
		order, err := r.reconcileOrder(ctx, orderID, target, payment.ID)
		if err != nil {
			return nil, err
		}
		outcome.Order = order
	}

	return outcome, nil
}

func (r *Reconciler) reconcileOrder(ctx context.Context, orderID string, status types.PaymentStatus, paymentID string) (*types.Order, error) {
	order, err := r.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == status {
		return order, nil
	}
	if order.Status.IsTerminal() {
		r.logger.Warn("dropping status regression on terminal order",
			slog.String("order_id", order.ID),
			slog.String("stored", string(order.Status)),
			slog.String("claimed", string(status)),
		)
		return order, nil
	}

	if _, err := r.orders.UpdateStatus(ctx, order.ID, status, paymentID); err != nil {
		return nil, err
	}
	order.Status = status
	order.LastPaymentID = paymentID
	return order, nil
}

// ReconcileSubscription applies the gateway's authoritative preapproval
// state to the local subscription row. paymentID may be empty when the
// event is a pure status change rather than a recurring charge.
func (r *Reconciler) ReconcileSubscription(ctx context.Context, eventID string, pre *external.GatewayPreapproval, paymentID string) (*SubscriptionOutcome, error) {
	sub, err := r.subscriptions.GetByGatewayID(ctx, pre.ID)
	if err != nil {
		return nil, err
	}

	target := MapSubscriptionStatus(pre.Status)
	outcome := &SubscriptionOutcome{Subscription: sub, From: sub.Status, To: target}

	if sub.Status == target {
		return outcome, nil
	}
	if sub.Status.IsTerminal() {
		r.logger.Warn("dropping status regression on terminal subscription",
			slog.String("subscription_id", sub.ID),
			slog.String("stored", string(sub.Status)),
			slog.String("claimed", string(target)),
			slog.String("event_id", eventID),
		)
		return outcome, nil
	}

	applied, err := r.subscriptions.UpdateStatus(ctx, sub.ID, target, paymentID)
	if err != nil {
		return nil, err
	}
	outcome.Applied = applied
	return outcome, nil
}
