package webhooks

import (
	"encoding/json"
	"strings"

	"jobboard/internal/types"
)

// Classification is the normalized form of a gateway notification: its
// internal event type, the referenced resource id, and the live flag.
type Classification struct {
	EventType types.EventType
	EventID   string
	LiveMode  bool
}

// Source returns the integration family owning the classified event.
func (c Classification) Source() types.WebhookSource {
	return c.EventType.Source()
}

// notificationPayload is the gateway's webhook body shape. Only the id
// and routing fields are trusted; resource status always comes from a
// follow-up read against the gateway API.
type notificationPayload struct {
	Type     string `json:"type"`
	Topic    string `json:"topic"`
	Action   string `json:"action"`
	ID       string `json:"id"`
	LiveMode *bool  `json:"live_mode"`
	Data     struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Classify normalizes the gateway's free-text type/action vocabulary onto
// the closed internal taxonomy and extracts the resource id. A payload
// with an unrecognized type classifies as EventTypeUnknown rather than
// erroring; the caller acknowledges those without reconciling.
func Classify(body []byte) (Classification, error) {
	var p notificationPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Classification{}, types.NewAppError(types.ErrCodeValidationInvalidJSON, "webhook body is not valid JSON", err)
	}

	eventID := p.Data.ID
	if eventID == "" {
		eventID = p.ID
	}
	if eventID == "" {
		return Classification{}, types.NewAppError(types.ErrCodeValidationMissingField, "webhook payload carries no resource id", nil)
	}

	cls := Classification{
		EventType: classifyType(p),
		EventID:   eventID,
		// Absent live_mode means live; the gateway only sets it explicitly
		// for sandbox traffic.
		LiveMode: p.LiveMode == nil || *p.LiveMode,
	}
	return cls, nil
}

// classifyType resolves the event type from the type/topic field, falling
// back to the action prefix for older notification formats that omit it.
func classifyType(p notificationPayload) types.EventType {
	raw := p.Type
	if raw == "" {
		raw = p.Topic
	}

	switch strings.ToLower(raw) {
	case "payment":
		return types.EventTypePayment
	case "subscription_preapproval", "preapproval":
		return types.EventTypeSubscription
	case "subscription_preapproval_plan", "plan":
		return types.EventTypePlan
	case "subscription_authorized_payment", "authorized_payment", "invoice":
		return types.EventTypeInvoice
	case "merchant_order", "topic_merchant_order_wh":
		return types.EventTypeMerchantOrder
	}

	action := strings.ToLower(p.Action)
	switch {
	case strings.HasPrefix(action, "payment."):
		return types.EventTypePayment
	case strings.HasPrefix(action, "subscription_preapproval."):
		return types.EventTypeSubscription
	}

	return types.EventTypeUnknown
}
