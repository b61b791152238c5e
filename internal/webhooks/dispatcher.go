package webhooks

import (
	"context"
	"log/slog"

	"jobboard/internal/types"
)

// Notifier enqueues a notification message for the out-of-process
// notification worker.
type Notifier interface {
	Enqueue(ctx context.Context, msg types.NotificationMessage) error
}

// StockAdjuster decrements product stock for confirmed purchases.
type StockAdjuster interface {
	DecrementStock(ctx context.Context, productID string, quantity int) error
}

// Dispatcher fires the side effects owed to an applied status
// transition. Implementations must be idempotent per notification: the
// caller runs them inside the single-acquisition idempotency lock, so a
// given delivery dispatches at most once, but replays of failed rows can
// invoke them again.
type Dispatcher interface {
	PaymentConfirmed(ctx context.Context, order *types.Order, paymentID string)
	PaymentRefunded(ctx context.Context, orderID, paymentID string)
}

// SideEffects is the production Dispatcher: purchase confirmations and
// refund notices go to the notification queue, confirmed purchases
// decrement stock per line item. Every failure here is logged and
// swallowed; the status update that triggered the dispatch is already
// durable and must not be rolled back for a lost notification.
type SideEffects struct {
	notifier Notifier
	stock    StockAdjuster
	logger   *slog.Logger
}

var _ Dispatcher = (*SideEffects)(nil)

// NewSideEffects creates the production dispatcher.
func NewSideEffects(notifier Notifier, stock StockAdjuster, logger *slog.Logger) *SideEffects {
	if logger == nil {
		logger = slog.Default()
	}
	return &SideEffects{notifier: notifier, stock: stock, logger: logger}
}

// PaymentConfirmed enqueues a purchase confirmation and decrements stock
// for each line item of the order. order may be nil when the payment has
// no resolvable order; only the notification fires then.
func (d *SideEffects) PaymentConfirmed(ctx context.Context, order *types.Order, paymentID string) {
	msg := types.NotificationMessage{
		Kind:      "purchase_confirmation",
		PaymentID: paymentID,
	}
	if order != nil {
		msg.OrderID = order.ID
	}
	if err := d.notifier.Enqueue(ctx, msg); err != nil {
		d.logger.Error("failed to enqueue purchase confirmation",
			slog.String("payment_id", paymentID),
			slog.Any("error", err),
		)
	}

	if order == nil {
		return
	}
	for _, item := range order.Items {
		if err := d.stock.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			d.logger.Error("failed to decrement stock",
				slog.String("order_id", order.ID),
				slog.String("product_id", item.ProductID),
				slog.Any("error", err),
			)
		}
	}
}

// PaymentRefunded enqueues a refund notice.
func (d *SideEffects) PaymentRefunded(ctx context.Context, orderID, paymentID string) {
	if err := d.notifier.Enqueue(ctx, types.NotificationMessage{
		Kind:      "refund",
		OrderID:   orderID,
		PaymentID: paymentID,
	}); err != nil {
		d.logger.Error("failed to enqueue refund notice",
			slog.String("payment_id", paymentID),
			slog.Any("error", err),
		)
	}
}
