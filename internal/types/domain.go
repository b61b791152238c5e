package types

import (
	"encoding/json"
	"time"
)

// WebhookNotification is the immutable record of an inbound gateway event.
// A row is inserted with ProcessStatus "received" before any processing
// happens, and mutated exactly once afterwards to a terminal status. Rows
// are never deleted; the table is the audit trail and the manual-replay
// work queue.
type WebhookNotification struct {
	ID          string          `json:"id"`
	Source      WebhookSource   `json:"source"`
	EventType   EventType       `json:"event_type"`
	EventID     string          `json:"event_id"`
	LiveMode    bool            `json:"live_mode"`
	Payload     json.RawMessage `json:"-"`
	Status      ProcessStatus   `json:"status"`
	ErrorDetail string          `json:"error_detail,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// IdempotencyKey returns the stable identifier used to deduplicate
// repeated deliveries of the same gateway event.
func (n *WebhookNotification) IdempotencyKey() string {
	return string(n.Source) + ":" + n.EventID
}

// Payment mirrors one gateway payment. Created by the checkout flow when a
// preference is issued; mutated exclusively by the reconciler afterwards.
type Payment struct {
	ID                string          `json:"id"`
	GatewayID         string          `json:"gateway_id"`
	Status            PaymentStatus   `json:"status"`
	GatewayStatus     string          `json:"gateway_status"`
	GatewayDetail     string          `json:"gateway_status_detail"`
	Method            string          `json:"payment_method,omitempty"`
	MethodType        string          `json:"payment_type,omitempty"`
	OrderID           string          `json:"order_id,omitempty"`
	SubscriptionID    string          `json:"subscription_id,omitempty"`
	ExternalReference string          `json:"external_reference,omitempty"`
	GatewayResponse   json.RawMessage `json:"-"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Order is the one-off purchase aggregate owned by the checkout flow and
// mutated here only through reconciliation.
type Order struct {
	ID            string        `json:"id"`
	Status        PaymentStatus `json:"status"`
	LastPaymentID string        `json:"last_payment_id,omitempty"`
	Items         []OrderItem   `json:"items,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// OrderItem is a purchasable line item with its stock-tracked product.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Subscription is the recurring-plan aggregate.
type Subscription struct {
	ID            string             `json:"id"`
	GatewayID     string             `json:"gateway_id"`
	PlanID        string             `json:"plan_id,omitempty"`
	Status        SubscriptionStatus `json:"status"`
	LastPaymentID string             `json:"last_payment_id,omitempty"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// StatusTransition is the audit entry recorded for every applied status
// change, capturing enough to reconstruct the reconciliation history.
type StatusTransition struct {
	ID         string    `json:"id"`
	EventID    string    `json:"event_id"`
	PaymentID  string    `json:"payment_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	CreatedAt  time.Time `json:"created_at"`
}

// WebhookFilter selects history rows for the query endpoint. Zero values
// mean "no constraint".
type WebhookFilter struct {
	Source    WebhookSource
	EventType EventType
	Status    ProcessStatus
	StartDate time.Time
	EndDate   time.Time
	Page      int
	Limit     int
}

// NotificationMessage is the payload enqueued for the out-of-process
// notification worker. Delivery transport (email/SMS) is not this
// service's concern; it only guarantees the enqueue happens at most once
// per terminal transition.
type NotificationMessage struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"` // purchase_confirmation | refund
	OrderID   string    `json:"order_id,omitempty"`
	PaymentID string    `json:"payment_id"`
	CreatedAt time.Time `json:"created_at"`
}
