package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"jobboard/internal/external"
	"jobboard/internal/types"
)

// Hand-written fakes for the injected collaborators. They implement the
// real guard semantics (redundant-write skip, terminal monotonicity) so
// service-level tests exercise the same invariants as the SQL repos.

// --- PaymentStore ---

type fakePayments struct {
	mu          sync.Mutex
	byGatewayID map[string]*types.Payment
	updates     int
	transitions []types.StatusTransition
	updateErr   error
}

func newFakePayments(payments ...*types.Payment) *fakePayments {
	f := &fakePayments{byGatewayID: make(map[string]*types.Payment)}
	for _, p := range payments {
		f.byGatewayID[p.GatewayID] = p
	}
	return f
}

func (f *fakePayments) GetByGatewayID(_ context.Context, gatewayID string) (*types.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byGatewayID[gatewayID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundPayment, "payment not found for gateway id "+gatewayID, nil)
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayments) UpdateStatus(_ context.Context, paymentID string, status types.PaymentStatus, gatewayStatus, gatewayDetail string, snapshot json.RawMessage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return false, f.updateErr
	}
	for _, p := range f.byGatewayID {
		if p.ID != paymentID {
			continue
		}
		if p.Status == status || p.Status.IsTerminal() {
			return false, nil
		}
		p.Status = status
		p.GatewayStatus = gatewayStatus
		p.GatewayDetail = gatewayDetail
		p.GatewayResponse = snapshot
		f.updates++
		return true, nil
	}
	return false, nil
}

func (f *fakePayments) RecordTransition(_ context.Context, tr types.StatusTransition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, tr)
	return nil
}

// --- OrderStore ---

type fakeOrders struct {
	mu      sync.Mutex
	byID    map[string]*types.Order
	updates int
}

func newFakeOrders(orders ...*types.Order) *fakeOrders {
	f := &fakeOrders{byID: make(map[string]*types.Order)}
	for _, o := range orders {
		f.byID[o.ID] = o
	}
	return f
}

func (f *fakeOrders) GetByID(_ context.Context, orderID string) (*types.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[orderID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundOrder, "order not found: "+orderID, nil)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, orderID string, status types.PaymentStatus, paymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[orderID]
	if !ok {
		return false, nil
	}
	if o.Status == status || o.Status.IsTerminal() {
		return false, nil
	}
	o.Status = status
	o.LastPaymentID = paymentID
	f.updates++
	return true, nil
}

// --- SubscriptionStore ---

type fakeSubscriptions struct {
	mu          sync.Mutex
	byGatewayID map[string]*types.Subscription
	updates     int
}

func newFakeSubscriptions(subs ...*types.Subscription) *fakeSubscriptions {
	f := &fakeSubscriptions{byGatewayID: make(map[string]*types.Subscription)}
	for _, s := range subs {
		f.byGatewayID[s.GatewayID] = s
	}
	return f
}

func (f *fakeSubscriptions) GetByGatewayID(_ context.Context, gatewayID string) (*types.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byGatewayID[gatewayID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found for gateway id "+gatewayID, nil)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubscriptions) UpdateStatus(_ context.Context, subscriptionID string, status types.SubscriptionStatus, paymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byGatewayID {
		if s.ID != subscriptionID {
			continue
		}
		if s.Status == status || s.Status.IsTerminal() {
			return false, nil
		}
		s.Status = status
		if paymentID != "" {
			s.LastPaymentID = paymentID
		}
		f.updates++
		return true, nil
	}
	return false, nil
}

// --- HistoryStore ---

type fakeHistory struct {
	mu   sync.Mutex
	rows map[string]*types.WebhookNotification
	seq  int
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{rows: make(map[string]*types.WebhookNotification)}
}

func (f *fakeHistory) Insert(_ context.Context, n *types.WebhookNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	n.ID = fmt.Sprintf("wh-%d", f.seq)
	n.Status = types.ProcessStatusReceived
	cp := *n
	f.rows[n.ID] = &cp
	return nil
}

func (f *fakeHistory) MarkProcessing(_ context.Context, id string) error {
	return f.setStatus(id, types.ProcessStatusProcessing, "")
}

func (f *fakeHistory) MarkCompleted(_ context.Context, id string) error {
	return f.setStatus(id, types.ProcessStatusCompleted, "")
}

func (f *fakeHistory) MarkFailed(_ context.Context, id string, errDetail string) error {
	return f.setStatus(id, types.ProcessStatusFailed, errDetail)
}

func (f *fakeHistory) setStatus(id string, status types.ProcessStatus, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return types.NewAppError(types.ErrCodeNotFoundWebhook, "webhook notification not found", nil)
	}
	row.Status = status
	row.ErrorDetail = detail
	return nil
}

func (f *fakeHistory) GetByID(_ context.Context, id string) (*types.WebhookNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundWebhook, "webhook notification not found", nil)
	}
	cp := *row
	return &cp, nil
}

func (f *fakeHistory) List(_ context.Context, filter types.WebhookFilter) ([]types.WebhookNotification, types.PageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	filter.Normalize()
	var items []types.WebhookNotification
	for _, row := range f.rows {
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		cp := *row
		cp.Payload = nil
		items = append(items, cp)
	}
	return items, types.PageInfo{Page: filter.Page, Limit: filter.Limit, TotalItems: len(items)}, nil
}

// statuses returns a snapshot of row id -> process status.
func (f *fakeHistory) statuses() map[string]types.ProcessStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]types.ProcessStatus, len(f.rows))
	for id, row := range f.rows {
		out[id] = row.Status
	}
	return out
}

// --- Gateway fetchers ---

type fakePaymentFetcher struct {
	mu      sync.Mutex
	payment *external.GatewayPayment
	err     error
	calls   int
}

func (f *fakePaymentFetcher) GetPayment(_ context.Context, paymentID string) (*external.GatewayPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.payment
	return &cp, nil
}

type fakePreapprovalFetcher struct {
	mu          sync.Mutex
	preapproval *external.GatewayPreapproval
	err         error
	calls       int
}

func (f *fakePreapprovalFetcher) GetPreapproval(_ context.Context, preapprovalID string) (*external.GatewayPreapproval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.preapproval
	return &cp, nil
}

// --- Side-effect collaborators ---

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []types.NotificationMessage
	err  error
}

func (f *fakeNotifier) Enqueue(_ context.Context, msg types.NotificationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeNotifier) messages() []types.NotificationMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.NotificationMessage(nil), f.msgs...)
}

type fakeStock struct {
	mu         sync.Mutex
	decrements map[string]int
	err        error
}

func newFakeStock() *fakeStock {
	return &fakeStock{decrements: make(map[string]int)}
}

func (f *fakeStock) DecrementStock(_ context.Context, productID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.decrements[productID] += quantity
	return nil
}

func (f *fakeStock) decremented(productID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decrements[productID]
}
