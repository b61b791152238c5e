package webhooks

import (
	"context"
	"encoding/json"
	"log/slog"

	"jobboard/internal/external"
	"jobboard/internal/lock"
	"jobboard/internal/types"
)

// HistoryStore is the durable webhook history record.
type HistoryStore interface {
	Insert(ctx context.Context, n *types.WebhookNotification) error
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errDetail string) error
	GetByID(ctx context.Context, id string) (*types.WebhookNotification, error)
	List(ctx context.Context, filter types.WebhookFilter) ([]types.WebhookNotification, types.PageInfo, error)
}

// Service orchestrates webhook processing: verify, record, lock,
// classify, fetch, reconcile, dispatch, finalize. All dependencies are
// injected; the service holds no hidden shared state.
type Service struct {
	verifier     *Verifier
	locks        lock.Locker
	history      HistoryStore
	payments     external.PaymentFetcher
	preapprovals external.SubscriptionFetcher
	reconciler   *Reconciler
	dispatcher   Dispatcher
	logger       *slog.Logger
}

// NewService wires the webhook processing pipeline.
func NewService(
	verifier *Verifier,
	locks lock.Locker,
	history HistoryStore,
	payments external.PaymentFetcher,
	preapprovals external.SubscriptionFetcher,
	reconciler *Reconciler,
	dispatcher Dispatcher,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		verifier:     verifier,
		locks:        locks,
		history:      history,
		payments:     payments,
		preapprovals: preapprovals,
		reconciler:   reconciler,
		dispatcher:   dispatcher,
		logger:       logger,
	}
}

// HandleNotification runs the full pipeline for one inbound delivery.
// A nil return means the delivery is fully acknowledged: either it was
// reconciled, it was a duplicate, or it carried an event type with
// nothing to reconcile. Errors carry types.AppError codes; the handler
// decides the acknowledgment shape from them.
func (s *Service) HandleNotification(ctx context.Context, body []byte, signature string) error {
	cls, err := Classify(body)
	if err != nil {
		s.logger.Warn("rejecting unclassifiable webhook", slog.Any("error", err))
		return err
	}

	if err := s.verifier.Verify(body, signature); err != nil {
		s.logger.Warn("webhook signature rejected",
			slog.String("event_id", cls.EventID),
			slog.String("event_type", string(cls.EventType)),
		)
		return err
	}

	n := &types.WebhookNotification{
		Source:    cls.Source(),
		EventType: cls.EventType,
		EventID:   cls.EventID,
		LiveMode:  cls.LiveMode,
		Payload:   json.RawMessage(body),
	}
	if err := s.history.Insert(ctx, n); err != nil {
		return err
	}

	return s.process(ctx, n)
}

// Replay re-runs reconciliation for a failed history row. This is the
// recovery path for transient fetch/storage failures; the gateway itself
// is never asked to redeliver.
func (s *Service) Replay(ctx context.Context, webhookID string) error {
	n, err := s.history.GetByID(ctx, webhookID)
	if err != nil {
		return err
	}
	if n.Status != types.ProcessStatusFailed {
		return types.NewAppError(types.ErrCodeConflictTerminalStatus,
			"only failed webhooks can be replayed", nil)
	}
	return s.process(ctx, n)
}

// History returns a page of notification records.
func (s *Service) History(ctx context.Context, filter types.WebhookFilter) ([]types.WebhookNotification, types.PageInfo, error) {
	return s.history.List(ctx, filter)
}

// process runs the locked portion of the pipeline for a recorded
// notification.
func (s *Service) process(ctx context.Context, n *types.WebhookNotification) error {
	key := n.IdempotencyKey()
	token, acquired, err := s.locks.Acquire(ctx, key)
	if err != nil {
		return s.fail(ctx, n, types.NewAppError(types.ErrCodeInternalDB, "failed to acquire idempotency lock", err))
	}
	if !acquired {
		// Another delivery of the same event is being processed right now.
		// Acknowledge without touching any aggregate; the lock holder owns
		// the reconciliation.
		s.logger.Info("duplicate delivery while lock held",
			slog.String("code", string(types.ErrCodeLockNotAcquired)),
			slog.String("idempotency_key", key),
			slog.String("webhook_id", n.ID),
		)
		if err := s.history.MarkCompleted(ctx, n.ID); err != nil {
			s.logger.Error("failed to finalize duplicate delivery", slog.Any("error", err))
		}
		return nil
	}
	defer func() {
		if err := s.locks.Release(ctx, key, token); err != nil {
			// TTL expiry reclaims a leaked lock.
			s.logger.Warn("failed to release idempotency lock",
				slog.String("idempotency_key", key),
				slog.Any("error", err),
			)
		}
	}()

	if err := s.history.MarkProcessing(ctx, n.ID); err != nil {
		s.logger.Error("failed to mark webhook processing", slog.Any("error", err))
	}

	switch n.EventType {
	case types.EventTypePayment, types.EventTypeInvoice:
		if err := s.reconcilePayment(ctx, n); err != nil {
			return s.fail(ctx, n, err)
		}
	case types.EventTypeSubscription:
		if err := s.reconcileSubscription(ctx, n); err != nil {
			return s.fail(ctx, n, err)
		}
	case types.EventTypePlan, types.EventTypeMerchantOrder:
		// Nothing to reconcile locally; acknowledged for the audit trail.
		s.logger.Info("acknowledging event with no local aggregate",
			slog.String("event_type", string(n.EventType)),
			slog.String("event_id", n.EventID),
		)
	default:
		s.logger.Warn("acknowledging unsupported event type",
			slog.String("code", string(types.ErrCodeUnsupportedEventType)),
			slog.String("event_type", string(n.EventType)),
			slog.String("event_id", n.EventID),
		)
	}

	if err := s.history.MarkCompleted(ctx, n.ID); err != nil {
		s.logger.Error("failed to finalize webhook", slog.Any("error", err))
	}
	return nil
}

func (s *Service) reconcilePayment(ctx context.Context, n *types.WebhookNotification) error {
	gp, err := s.payments.GetPayment(ctx, n.EventID)
	if err != nil {
		return err
	}

	outcome, err := s.reconciler.ReconcilePayment(ctx, n.EventID, gp)
	if err != nil {
		return err
	}
	if !outcome.Applied {
		return nil
	}

	switch outcome.To {
	case types.PaymentStatusPaid:
		s.dispatcher.PaymentConfirmed(ctx, outcome.Order, outcome.Payment.ID)
	case types.PaymentStatusRefunded:
		orderID := outcome.Payment.OrderID
		if outcome.Order != nil {
			orderID = outcome.Order.ID
		}
		s.dispatcher.PaymentRefunded(ctx, orderID, outcome.Payment.ID)
	}
	return nil
}

func (s *Service) reconcileSubscription(ctx context.Context, n *types.WebhookNotification) error {
	pre, err := s.preapprovals.GetPreapproval(ctx, n.EventID)
	if err != nil {
		return err
	}
	_, err = s.reconciler.ReconcileSubscription(ctx, n.EventID, pre, "")
	return err
}

// fail finalizes the history row with the error detail and propagates
// the error for acknowledgment shaping.
func (s *Service) fail(ctx context.Context, n *types.WebhookNotification, procErr error) error {
	s.logger.Error("webhook processing failed",
		slog.String("webhook_id", n.ID),
		slog.String("event_id", n.EventID),
		slog.Any("error", procErr),
	)
	if err := s.history.MarkFailed(ctx, n.ID, procErr.Error()); err != nil {
		s.logger.Error("failed to mark webhook failed", slog.Any("error", err))
	}
	return procErr
}
