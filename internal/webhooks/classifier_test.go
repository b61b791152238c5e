package webhooks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard/internal/types"
)

func TestClassify_TypeMapping(t *testing.T) {
	cases := []struct {
		name string
		body string
		want types.EventType
	}{
		{"payment", `{"type":"payment","data":{"id":"123"}}`, types.EventTypePayment},
		{"preapproval", `{"type":"subscription_preapproval","data":{"id":"pre-1"}}`, types.EventTypeSubscription},
		{"preapproval short form", `{"type":"preapproval","data":{"id":"pre-1"}}`, types.EventTypeSubscription},
		{"plan", `{"type":"subscription_preapproval_plan","data":{"id":"plan-1"}}`, types.EventTypePlan},
		{"authorized payment", `{"type":"subscription_authorized_payment","data":{"id":"123"}}`, types.EventTypeInvoice},
		{"merchant order", `{"type":"merchant_order","data":{"id":"mo-1"}}`, types.EventTypeMerchantOrder},
		{"topic fallback", `{"topic":"merchant_order","id":"mo-1"}`, types.EventTypeMerchantOrder},
		{"action fallback payment", `{"action":"payment.updated","data":{"id":"123"}}`, types.EventTypePayment},
		{"action fallback preapproval", `{"action":"subscription_preapproval.updated","data":{"id":"pre-1"}}`, types.EventTypeSubscription},
		{"mixed case type", `{"type":"Payment","data":{"id":"123"}}`, types.EventTypePayment},
		{"unknown type", `{"type":"chargeback","data":{"id":"123"}}`, types.EventTypeUnknown},
		{"no type at all", `{"data":{"id":"123"}}`, types.EventTypeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cls, err := Classify([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, cls.EventType)
		})
	}
}

func TestClassify_SourceDerivation(t *testing.T) {
	cls, err := Classify([]byte(`{"type":"subscription_preapproval","data":{"id":"pre-1"}}`))
	require.NoError(t, err)
	assert.Equal(t, types.SourceSubscription, cls.Source())

	cls, err = Classify([]byte(`{"type":"payment","data":{"id":"123"}}`))
	require.NoError(t, err)
	assert.Equal(t, types.SourceCheckout, cls.Source())
}

func TestClassify_EventIDResolution(t *testing.T) {
	// data.id wins over the top-level id.
	cls, err := Classify([]byte(`{"type":"payment","id":"notif-1","data":{"id":"123"}}`))
	require.NoError(t, err)
	assert.Equal(t, "123", cls.EventID)

	// Top-level id is the fallback for topic-style notifications.
	cls, err = Classify([]byte(`{"topic":"payment","id":"123"}`))
	require.NoError(t, err)
	assert.Equal(t, "123", cls.EventID)
}

func TestClassify_MissingResourceID(t *testing.T) {
	_, err := Classify([]byte(`{"type":"payment"}`))
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
}

func TestClassify_InvalidJSON(t *testing.T) {
	_, err := Classify([]byte(`{nope`))
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationInvalidJSON, appErr.Code)
}

func TestClassify_LiveModeDefaultsTrue(t *testing.T) {
	cls, err := Classify([]byte(`{"type":"payment","data":{"id":"123"}}`))
	require.NoError(t, err)
	assert.True(t, cls.LiveMode)

	cls, err = Classify([]byte(`{"type":"payment","live_mode":false,"data":{"id":"123"}}`))
	require.NoError(t, err)
	assert.False(t, cls.LiveMode)
}
