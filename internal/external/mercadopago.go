package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"jobboard/internal/types"
)

// PaymentFetcher retrieves the authoritative state of a payment from the
// gateway. Webhook payloads only carry the resource id; reconciliation
// always re-reads the resource before touching local state.
type PaymentFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
}

// SubscriptionFetcher retrieves the authoritative state of a recurring
// preapproval from the gateway.
type SubscriptionFetcher interface {
	GetPreapproval(ctx context.Context, preapprovalID string) (*GatewayPreapproval, error)
}

// GatewayPayment is the subset of the gateway's payment resource the
// reconciler consumes. Raw holds the full response body for the audit
// snapshot stored alongside the local payment row.
type GatewayPayment struct {
	ID                int64        `json:"id"`
	Status            string       `json:"status"`
	StatusDetail      string       `json:"status_detail"`
	PaymentMethodID   string       `json:"payment_method_id"`
	PaymentTypeID     string       `json:"payment_type_id"`
	ExternalReference string       `json:"external_reference"`
	TransactionAmount float64      `json:"transaction_amount"`
	DateCreated       time.Time    `json:"date_created"`
	LiveMode          bool         `json:"live_mode"`
	Payer             GatewayPayer `json:"payer"`

	Raw json.RawMessage `json:"-"`
}

// GatewayPayer identifies who paid. Only used for sandbox detection and
// notification enrichment, never persisted.
type GatewayPayer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// GatewayPreapproval is the subset of the gateway's preapproval resource
// the reconciler consumes.
type GatewayPreapproval struct {
	ID                string          `json:"id"`
	Status            string          `json:"status"`
	PreapprovalPlanID string          `json:"preapproval_plan_id"`
	PayerID           int64           `json:"payer_id"`
	ExternalReference string          `json:"external_reference"`
	DateCreated       time.Time       `json:"date_created"`
	Raw               json.RawMessage `json:"-"`
}

// GatewayClient talks to the payment gateway's REST API. It embeds the
// BaseClient resilience stack and adds bearer auth plus a per-request
// timeout so a slow gateway cannot pin a webhook worker past the
// idempotency lock TTL.
type GatewayClient struct {
	*BaseClient
	baseURL     string
	accessToken types.SecretString
	timeout     time.Duration
}

var _ PaymentFetcher = (*GatewayClient)(nil)
var _ SubscriptionFetcher = (*GatewayClient)(nil)

// NewGatewayClient creates a GatewayClient for the given API root.
func NewGatewayClient(base *BaseClient, baseURL string, accessToken types.SecretString, timeout time.Duration) *GatewayClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GatewayClient{
		BaseClient:  base,
		baseURL:     baseURL,
		accessToken: accessToken,
		timeout:     timeout,
	}
}

// GetPayment fetches GET /v1/payments/{id}.
func (c *GatewayClient) GetPayment(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	body, err := c.get(ctx, "/v1/payments/"+paymentID, types.ErrCodeNotFoundPayment, "payment "+paymentID)
	if err != nil {
		return nil, err
	}

	var p GatewayPayment
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamGateway, "failed to decode gateway payment response", err)
	}
	p.Raw = body
	return &p, nil
}

// GetPreapproval fetches GET /preapproval/{id}.
func (c *GatewayClient) GetPreapproval(ctx context.Context, preapprovalID string) (*GatewayPreapproval, error) {
	body, err := c.get(ctx, "/preapproval/"+preapprovalID, types.ErrCodeNotFoundSubscription, "preapproval "+preapprovalID)
	if err != nil {
		return nil, err
	}

	var p GatewayPreapproval
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamGateway, "failed to decode gateway preapproval response", err)
	}
	p.Raw = body
	return &p, nil
}

func (c *GatewayClient) get(ctx context.Context, path string, notFoundCode types.ErrorCode, what string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build gateway request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken.Unmask())
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamGateway, "failed to read gateway response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, types.NewAppError(notFoundCode, what+" not found at gateway", nil)
	default:
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamGateway,
			fmt.Sprintf("gateway returned unexpected status %d", resp.StatusCode),
			nil,
			map[string]any{"status": resp.StatusCode},
		)
	}
}
