package db

import (
	"context"
	"log/slog"

	"jobboard/internal/types"
)

// SubscriptionRepo is the single canonical repository for recurring
// subscriptions. Rows from the pre-migration subscription tables were
// folded into the subscriptions table in a one-time data migration, so
// there is exactly one lookup path per gateway id.
type SubscriptionRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewSubscriptionRepo creates a SubscriptionRepo backed by the given
// connection.
func NewSubscriptionRepo(db DBTX, logger *slog.Logger) *SubscriptionRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionRepo{db: db, logger: logger}
}

// GetByGatewayID loads the subscription mirrored from the given gateway
// preapproval id.
func (r *SubscriptionRepo) GetByGatewayID(ctx context.Context, gatewayID string) (*types.Subscription, error) {
	var s types.Subscription
	err := r.db.QueryRow(ctx,
		`SELECT id, gateway_id, COALESCE(plan_id, ''), status,
		        COALESCE(last_payment_id, ''), updated_at
		 FROM subscriptions WHERE gateway_id = $1`,
		gatewayID,
	).Scan(&s.ID, &s.GatewayID, &s.PlanID, &s.Status, &s.LastPaymentID, &s.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found for gateway id "+gatewayID, err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load subscription", err)
	}
	return &s, nil
}

// UpdateStatus applies a reconciled subscription status. CANCELLED is
// terminal and monotonic. An empty paymentID means a pure status change;
// the stored last-processed-payment reference is kept in that case.
// Returns true when a row actually changed.
func (r *SubscriptionRepo) UpdateStatus(ctx context.Context, subscriptionID string, status types.SubscriptionStatus, paymentID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $1,
		     last_payment_id = COALESCE(NULLIF($2, ''), last_payment_id),
		     updated_at = NOW()
		 WHERE id = $3
		   AND status <> $1
		   AND status <> 'CANCELLED'`,
		status, paymentID, subscriptionID,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to update subscription status", err)
	}
	return tag.RowsAffected() > 0, nil
}
