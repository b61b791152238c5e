package types

// PaymentStatus is the internal status vocabulary for payments. Gateway
// status strings are mapped onto this closed set by the reconciler; values
// the gateway invents later fall through to PaymentStatusReview.
type PaymentStatus string

const (
	PaymentStatusPaid       PaymentStatus = "PAID"
	PaymentStatusPending    PaymentStatus = "PENDING_PAYMENT"
	PaymentStatusProcessing PaymentStatus = "PROCESSING_PAYMENT"
	PaymentStatusFailed     PaymentStatus = "PAYMENT_FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
	PaymentStatusReview     PaymentStatus = "PAYMENT_REVIEW"
)

// IsTerminal reports whether the status admits no further legitimate
// transitions. Terminal statuses are monotonic: once stored, later events
// claiming a non-terminal status are dropped.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusRefunded || s == PaymentStatusCancelled
}

// SubscriptionStatus is the internal status vocabulary for recurring
// subscriptions (gateway "preapproval" resources).
type SubscriptionStatus string

const (
	SubStatusActive    SubscriptionStatus = "ACTIVE"
	SubStatusPending   SubscriptionStatus = "PENDING"
	SubStatusPaused    SubscriptionStatus = "PAUSED"
	SubStatusCancelled SubscriptionStatus = "CANCELLED"
	SubStatusReview    SubscriptionStatus = "REVIEW"
)

// IsTerminal reports whether the subscription status is final.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubStatusCancelled
}

// ProcessStatus tracks the lifecycle of a received webhook notification.
type ProcessStatus string

const (
	ProcessStatusReceived   ProcessStatus = "received"
	ProcessStatusProcessing ProcessStatus = "processing"
	ProcessStatusCompleted  ProcessStatus = "completed"
	ProcessStatusFailed     ProcessStatus = "failed"
)

// WebhookSource identifies the integration family that owns an event:
// one-off checkout payments or recurring subscriptions.
type WebhookSource string

const (
	SourceCheckout     WebhookSource = "checkout"
	SourceSubscription WebhookSource = "subscription"
)

// EventType is the closed internal taxonomy for gateway event types.
// Free-text gateway type/action strings are normalized onto this set by
// the classifier.
type EventType string

const (
	EventTypePayment       EventType = "payment"
	EventTypeSubscription  EventType = "subscription"
	EventTypePlan          EventType = "plan"
	EventTypeInvoice       EventType = "invoice"
	EventTypeMerchantOrder EventType = "merchant_order"
	EventTypeUnknown       EventType = "unknown"
)

// Source returns the integration family that owns the event type.
// Merchant-order and plain payment events belong to one-off checkout;
// preapproval, plan and invoice events belong to recurring subscriptions.
func (t EventType) Source() WebhookSource {
	switch t {
	case EventTypeSubscription, EventTypePlan, EventTypeInvoice:
		return SourceSubscription
	default:
		return SourceCheckout
	}
}
