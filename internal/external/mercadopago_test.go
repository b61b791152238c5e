package external

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jobboard/internal/types"
)

func newTestGatewayClient(t *testing.T, serverURL string) *GatewayClient {
	t.Helper()
	base := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-gateway",
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		"PaymentHooks-Test/1.0",
		WithSleepFunc(noopSleep),
	)
	return NewGatewayClient(base, serverURL, types.SecretString("test-token"), 5*time.Second)
}

func TestGetPayment_Success(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": 123456789,
			"status": "approved",
			"status_detail": "accredited",
			"payment_method_id": "visa",
			"payment_type_id": "credit_card",
			"external_reference": "ord-1",
			"transaction_amount": 150.5,
			"live_mode": true,
			"payer": {"id": "payer-1", "email": "buyer@example.com"}
		}`))
	}))
	defer server.Close()

	client := newTestGatewayClient(t, server.URL)

	payment, err := client.GetPayment(context.Background(), "123456789")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if gotPath != "/v1/payments/123456789" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("expected bearer auth, got: %s", gotAuth)
	}
	if payment.ID != 123456789 {
		t.Errorf("expected id 123456789, got %d", payment.ID)
	}
	if payment.Status != "approved" || payment.StatusDetail != "accredited" {
		t.Errorf("unexpected status: %s/%s", payment.Status, payment.StatusDetail)
	}
	if payment.ExternalReference != "ord-1" {
		t.Errorf("unexpected external reference: %s", payment.ExternalReference)
	}
	if !payment.LiveMode {
		t.Error("expected live_mode true")
	}
	if len(payment.Raw) == 0 {
		t.Error("expected raw response snapshot to be retained")
	}
}

func TestGetPayment_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Payment not found"}`))
	}))
	defer server.Close()

	client := newTestGatewayClient(t, server.URL)

	_, err := client.GetPayment(context.Background(), "999")
	if err == nil {
		t.Fatal("expected error for 404, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeNotFoundPayment {
		t.Errorf("expected %s, got %s", types.ErrCodeNotFoundPayment, appErr.Code)
	}
	if appErr.Code.IsTransient() {
		t.Error("a gateway 404 is permanent, not transient")
	}
}

func TestGetPayment_ServerErrorMapsToGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestGatewayClient(t, server.URL)

	_, err := client.GetPayment(context.Background(), "123")
	if err == nil {
		t.Fatal("expected error for 500, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeUpstreamGateway {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamGateway, appErr.Code)
	}
}

func TestGetPreapproval_Success(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "preapproval-1",
			"status": "authorized",
			"preapproval_plan_id": "plan-1",
			"payer_id": 42,
			"external_reference": "sub-1"
		}`))
	}))
	defer server.Close()

	client := newTestGatewayClient(t, server.URL)

	pre, err := client.GetPreapproval(context.Background(), "preapproval-1")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if gotPath != "/preapproval/preapproval-1" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if pre.Status != "authorized" {
		t.Errorf("unexpected status: %s", pre.Status)
	}
	if pre.PreapprovalPlanID != "plan-1" {
		t.Errorf("unexpected plan id: %s", pre.PreapprovalPlanID)
	}
}

func TestGetPreapproval_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestGatewayClient(t, server.URL)

	_, err := client.GetPreapproval(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for 404, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeNotFoundSubscription {
		t.Errorf("expected %s, got %s", types.ErrCodeNotFoundSubscription, appErr.Code)
	}
}

func TestGetPayment_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := newTestGatewayClient(t, server.URL)

	_, err := client.GetPayment(context.Background(), "123")
	if err == nil {
		t.Fatal("expected decode error, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeUpstreamGateway {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamGateway, appErr.Code)
	}
}
