package webhooks

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"jobboard/internal/core"
	"jobboard/internal/types"
)

// maxBodyBytes caps inbound webhook bodies. Gateway notifications are a
// few hundred bytes; anything near this limit is hostile.
const maxBodyBytes = 1 << 20

// Handler exposes the webhook HTTP surface: the ingestion endpoints the
// gateway calls, and the operator-facing history and replay endpoints.
type Handler struct {
	service    *Service
	production bool
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewHandler creates the webhook handler.
func NewHandler(service *Service, production bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:    service,
		production: production,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Routes mounts the webhook endpoints on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/webhooks", h.Ingest)
	r.Post("/webhooks/checkout", h.Ingest)
	r.Post("/webhooks/subscription", h.Ingest)
	r.Get("/webhooks/history", h.History)
	r.Post("/webhooks/{webhookID}/replay", h.Replay)
}

// Ingest receives a gateway notification. The response contract follows
// what the gateway expects of a webhook consumer:
//   - 200 {"status":"success","data":{"received":true}} on full success
//     (including duplicates and event types with nothing to reconcile);
//   - 202 {"status":"partial_processing"|"error","message":...} when the
//     delivery was recorded but not fully reconciled, so the gateway
//     stops retrying while operators see the imperfect outcome;
//   - 401 only in production when signature verification fails.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		core.PartialAck(w, r, "error", "failed to read request body")
		return
	}

	signature := r.Header.Get("x-signature")

	if err := h.service.HandleNotification(r.Context(), body, signature); err != nil {
		h.acknowledge(w, r, err)
		return
	}

	core.Success(w, r, map[string]bool{"received": true})
}

// acknowledge shapes a processing error into the gateway-facing response.
// Nothing except a production signature failure surfaces as an HTTP
// error; everything else is a 2xx acknowledgment so the gateway does not
// retry uncontrollably.
func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		core.PartialAck(w, r, "error", "internal error during webhook processing")
		return
	}

	if h.production && isAuthError(appErr.Code) {
		core.Error(w, r, appErr)
		return
	}

	if appErr.Code.IsTransient() {
		core.PartialAck(w, r, "partial_processing", appErr.Message)
		return
	}
	core.PartialAck(w, r, "error", appErr.Message)
}

func isAuthError(code types.ErrorCode) bool {
	return strings.HasPrefix(string(code), "auth_")
}

// historyQuery carries the validated GET /webhooks/history parameters.
type historyQuery struct {
	Source    string `validate:"omitempty,oneof=checkout subscription"`
	EventType string `validate:"omitempty,oneof=payment subscription plan invoice merchant_order unknown"`
	Status    string `validate:"omitempty,oneof=received processing completed failed"`
}

// History returns a page of notification records, newest first,
// excluding raw payloads.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := historyQuery{
		Source:    q.Get("source"),
		EventType: q.Get("eventType"),
		Status:    q.Get("status"),
	}
	if err := h.validate.Struct(query); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidQuery,
			"invalid history filter", err))
		return
	}

	filter := types.WebhookFilter{
		Source:    types.WebhookSource(query.Source),
		EventType: types.EventType(query.EventType),
		Status:    types.ProcessStatus(query.Status),
	}

	var err error
	if filter.StartDate, err = parseDateParam(q.Get("startDate")); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidQuery,
			"startDate must be RFC 3339 or YYYY-MM-DD", err))
		return
	}
	if filter.EndDate, err = parseDateParam(q.Get("endDate")); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidQuery,
			"endDate must be RFC 3339 or YYYY-MM-DD", err))
		return
	}
	filter.Page = parseIntParam(q.Get("page"))
	filter.Limit = parseIntParam(q.Get("limit"))

	items, page, err := h.service.History(r.Context(), filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if items == nil {
		items = []types.WebhookNotification{}
	}

	core.Success(w, r, types.ListResponse[types.WebhookNotification]{
		Data:     items,
		PageInfo: page,
	})
}

// Replay re-runs reconciliation for a failed history row. Operator API:
// unlike ingestion, real HTTP error codes apply here.
func (h *Handler) Replay(w http.ResponseWriter, r *http.Request) {
	webhookID := chi.URLParam(r, "webhookID")

	if err := h.service.Replay(r.Context(), webhookID); err != nil {
		core.Error(w, r, err)
		return
	}

	core.Success(w, r, map[string]bool{"replayed": true})
}

func parseDateParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func parseIntParam(raw string) int {
	n, _ := strconv.Atoi(raw)
	return n
}
