package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"jobboard/internal/types"
)

// WebhookRepo is the durable history store for inbound gateway
// notifications. Every delivery is recorded before processing starts and
// updated exactly once with its outcome; rows are never deleted.
type WebhookRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewWebhookRepo creates a WebhookRepo backed by the given database
// connection (pool or transaction).
func NewWebhookRepo(db DBTX, logger *slog.Logger) *WebhookRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookRepo{db: db, logger: logger}
}

// Insert records a freshly received notification with status "received".
// It assigns the row id and creation timestamp.
func (r *WebhookRepo) Insert(ctx context.Context, n *types.WebhookNotification) error {
	n.ID = uuid.New().String()
	n.Status = types.ProcessStatusReceived
	n.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO webhook_notifications
		   (id, source, event_type, event_id, live_mode, payload, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.Source, n.EventType, n.EventID, n.LiveMode, []byte(n.Payload), n.Status, n.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record webhook notification", err)
	}
	return nil
}

// MarkProcessing flips a row to "processing" once its idempotency lock has
// been acquired.
func (r *WebhookRepo) MarkProcessing(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE webhook_notifications SET status = $1 WHERE id = $2`,
		types.ProcessStatusProcessing, id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark webhook processing", err)
	}
	return nil
}

// MarkCompleted records a fully reconciled notification.
func (r *WebhookRepo) MarkCompleted(ctx context.Context, id string) error {
	return r.finish(ctx, id, types.ProcessStatusCompleted, "")
}

// MarkFailed records a notification whose reconciliation did not complete.
// The error detail is retained for operators; failed rows are the manual
// replay queue.
func (r *WebhookRepo) MarkFailed(ctx context.Context, id string, errDetail string) error {
	return r.finish(ctx, id, types.ProcessStatusFailed, errDetail)
}

func (r *WebhookRepo) finish(ctx context.Context, id string, status types.ProcessStatus, errDetail string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE webhook_notifications
		 SET status = $1, error_detail = $2, processed_at = NOW()
		 WHERE id = $3`,
		status, errDetail, id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finalize webhook notification", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundWebhook, "webhook notification not found", nil)
	}
	return nil
}

// GetByID fetches a single notification including its raw payload. Used by
// the manual replay path.
func (r *WebhookRepo) GetByID(ctx context.Context, id string) (*types.WebhookNotification, error) {
	var n types.WebhookNotification
	var payload []byte
	err := r.db.QueryRow(ctx,
		`SELECT id, source, event_type, event_id, live_mode, payload, status,
		        COALESCE(error_detail, ''), processed_at, created_at
		 FROM webhook_notifications WHERE id = $1`,
		id,
	).Scan(&n.ID, &n.Source, &n.EventType, &n.EventID, &n.LiveMode, &payload,
		&n.Status, &n.ErrorDetail, &n.ProcessedAt, &n.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundWebhook, "webhook notification not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load webhook notification", err)
	}
	n.Payload = payload
	return &n, nil
}

// List returns a page of notification records matching the filter, newest
// first, excluding the raw payload. The filter is normalized before use.
func (r *WebhookRepo) List(ctx context.Context, filter types.WebhookFilter) ([]types.WebhookNotification, types.PageInfo, error) {
	filter.Normalize()

	where, args := buildWebhookWhere(filter)

	var total int
	countSQL := `SELECT COUNT(*) FROM webhook_notifications` + where
	if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to count webhook history", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	listSQL := `SELECT id, source, event_type, event_id, live_mode, status,
	                   COALESCE(error_detail, ''), processed_at, created_at
	            FROM webhook_notifications` + where +
		` ORDER BY created_at DESC LIMIT ` + placeholder(len(args)+1) +
		` OFFSET ` + placeholder(len(args)+2)
	args = append(args, filter.Limit, offset)

	rows, err := r.db.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to query webhook history", err)
	}
	defer rows.Close()

	var items []types.WebhookNotification
	for rows.Next() {
		var n types.WebhookNotification
		if err := rows.Scan(&n.ID, &n.Source, &n.EventType, &n.EventID, &n.LiveMode,
			&n.Status, &n.ErrorDetail, &n.ProcessedAt, &n.CreatedAt); err != nil {
			return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to scan webhook history row", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate webhook history", err)
	}

	page := types.PageInfo{
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalItems: total,
		HasMore:    offset+len(items) < total,
	}
	return items, page, nil
}

// buildWebhookWhere assembles the WHERE clause for history queries from the
// non-zero filter fields.
func buildWebhookWhere(filter types.WebhookFilter) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, clause+placeholder(len(args)))
	}

	if filter.Source != "" {
		add("source = ", filter.Source)
	}
	if filter.EventType != "" {
		add("event_type = ", filter.EventType)
	}
	if filter.Status != "" {
		add("status = ", filter.Status)
	}
	if !filter.StartDate.IsZero() {
		add("created_at >= ", filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		add("created_at <= ", filter.EndDate)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}
