package db

import (
	"context"
	"log/slog"

	"jobboard/internal/types"
)

// OrderRepo manages the one-off purchase aggregate. The checkout flow
// creates orders; this backend only moves their status through
// reconciliation and adjusts product stock on confirmed purchases.
type OrderRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewOrderRepo creates an OrderRepo backed by the given connection.
func NewOrderRepo(db DBTX, logger *slog.Logger) *OrderRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderRepo{db: db, logger: logger}
}

// GetByID loads an order and its line items.
func (r *OrderRepo) GetByID(ctx context.Context, orderID string) (*types.Order, error) {
	var o types.Order
	err := r.db.QueryRow(ctx,
		`SELECT id, status, COALESCE(last_payment_id, ''), updated_at
		 FROM orders WHERE id = $1`,
		orderID,
	).Scan(&o.ID, &o.Status, &o.LastPaymentID, &o.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundOrder, "order not found: "+orderID, err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load order", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT product_id, quantity FROM order_items WHERE order_id = $1`,
		orderID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item types.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan order item", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate order items", err)
	}

	return &o, nil
}

// UpdateStatus applies a reconciled status to the order, recording which
// payment drove the transition. The guarded UPDATE enforces the same
// redundancy and terminal-monotonicity rules as PaymentRepo.UpdateStatus.
// Returns true when a row actually changed.
func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID string, status types.PaymentStatus, paymentID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders
		 SET status = $1,
		     last_payment_id = $2,
		     updated_at = NOW()
		 WHERE id = $3
		   AND status <> $1
		   AND status NOT IN ('REFUNDED', 'CANCELLED')`,
		status, paymentID, orderID,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to update order status", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DecrementStock reduces a product's stock by the purchased quantity. The
// guard refuses to drive stock negative; callers run inside the
// notification's idempotency lock, so a confirmed purchase decrements at
// most once.
func (r *OrderRepo) DecrementStock(ctx context.Context, productID string, quantity int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE products
		 SET stock = stock - $1, updated_at = NOW()
		 WHERE id = $2 AND stock >= $1`,
		quantity, productID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to decrement stock", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn("stock decrement skipped",
			slog.String("product_id", productID),
			slog.Int("quantity", quantity),
		)
	}
	return nil
}
