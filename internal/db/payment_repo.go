package db

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"jobboard/internal/types"
)

// PaymentRepo manages the payment mirror rows created by the checkout flow
// and mutated exclusively by the webhook reconciler.
//
// Key invariants:
//   - UpdateStatus is a no-op when the computed status equals the stored one
//     (no redundant writes).
//   - Terminal statuses (REFUNDED, CANCELLED) are monotonic: the guarded
//     UPDATE refuses to move a terminal row anywhere else, even under
//     concurrent deliveries racing past the reconciler's read.
type PaymentRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewPaymentRepo creates a PaymentRepo backed by the given connection.
func NewPaymentRepo(db DBTX, logger *slog.Logger) *PaymentRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentRepo{db: db, logger: logger}
}

// GetByGatewayID loads the payment mirrored from the given gateway payment id.
func (r *PaymentRepo) GetByGatewayID(ctx context.Context, gatewayID string) (*types.Payment, error) {
	var p types.Payment
	var raw []byte
	err := r.db.QueryRow(ctx,
		`SELECT id, gateway_id, status, COALESCE(gateway_status, ''),
		        COALESCE(gateway_status_detail, ''), COALESCE(payment_method, ''),
		        COALESCE(payment_type, ''), COALESCE(order_id, ''),
		        COALESCE(subscription_id, ''), COALESCE(external_reference, ''),
		        gateway_response, created_at, updated_at
		 FROM payments WHERE gateway_id = $1`,
		gatewayID,
	).Scan(&p.ID, &p.GatewayID, &p.Status, &p.GatewayStatus, &p.GatewayDetail,
		&p.Method, &p.MethodType, &p.OrderID, &p.SubscriptionID,
		&p.ExternalReference, &raw, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPayment, "payment not found for gateway id "+gatewayID, err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load payment", err)
	}
	p.GatewayResponse = raw
	return &p, nil
}

// UpdateStatus applies a reconciled status together with the gateway's raw
// status strings and response snapshot. Returns true when a row actually
// changed; false means the write was redundant or blocked by the terminal
// guard.
func (r *PaymentRepo) UpdateStatus(
	ctx context.Context,
	paymentID string,
	status types.PaymentStatus,
	gatewayStatus string,
	gatewayDetail string,
	snapshot json.RawMessage,
) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE payments
		 SET status = $1,
		     gateway_status = $2,
		     gateway_status_detail = $3,
		     gateway_response = $4,
		     updated_at = NOW()
		 WHERE id = $5
		   AND status <> $1
		   AND status NOT IN ('REFUNDED', 'CANCELLED')`,
		status, gatewayStatus, gatewayDetail, []byte(snapshot), paymentID,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to update payment status", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RecordTransition appends an audit entry for an applied status change.
func (r *PaymentRepo) RecordTransition(ctx context.Context, tr types.StatusTransition) error {
	if tr.ID == "" {
		tr.ID = uuid.New().String()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO payment_status_transitions
		   (id, event_id, payment_id, from_status, to_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		tr.ID, tr.EventID, tr.PaymentID, tr.FromStatus, tr.ToStatus, tr.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record status transition", err)
	}
	return nil
}
