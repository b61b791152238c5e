package db

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"jobboard/internal/types"
)

func TestPaymentRepo_GetByGatewayID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentRepo(db, nil)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetByGatewayID(context.Background(), "123456789")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundPayment, appErr.Code)
	assert.Equal(t, 404, appErr.HTTPStatus())
}

func TestPaymentRepo_GetByGatewayID_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentRepo(db, nil)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("broken pipe")})

	_, err := repo.GetByGatewayID(context.Background(), "123456789")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	assert.True(t, appErr.Code.IsTransient())
}

func TestPaymentRepo_UpdateStatus_Applied(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentRepo(db, nil)

	db.On("Exec", mock.Anything,
		mock.MatchedBy(func(sql string) bool {
			// The guard must block both redundant writes and moves out of
			// terminal states inside a single statement.
			return strings.Contains(sql, "status <> $1") &&
				strings.Contains(sql, "NOT IN ('REFUNDED', 'CANCELLED')")
		}),
		mock.MatchedBy(func(args []any) bool {
			return args[0] == types.PaymentStatusPaid && args[4] == "pay-1"
		}),
	).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	applied, err := repo.UpdateStatus(context.Background(), "pay-1",
		types.PaymentStatusPaid, "approved", "accredited", json.RawMessage(`{"status":"approved"}`))
	require.NoError(t, err)
	assert.True(t, applied)
	db.AssertExpectations(t)
}

func TestPaymentRepo_UpdateStatus_BlockedByGuard(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentRepo(db, nil)

	// Zero rows means the status was already current or the row sits in a
	// terminal state. Either way the write is silently skipped.
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	applied, err := repo.UpdateStatus(context.Background(), "pay-1",
		types.PaymentStatusPaid, "approved", "accredited", nil)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestPaymentRepo_UpdateStatus_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentRepo(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("deadlock detected"))

	_, err := repo.UpdateStatus(context.Background(), "pay-1",
		types.PaymentStatusPaid, "approved", "", nil)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestPaymentRepo_RecordTransition_FillsDefaults(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentRepo(db, nil)

	var captured []any
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).([]any)
		}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.RecordTransition(context.Background(), types.StatusTransition{
		EventID:    "evt-1",
		PaymentID:  "pay-1",
		FromStatus: string(types.PaymentStatusPending),
		ToStatus:   string(types.PaymentStatusPaid),
	})
	require.NoError(t, err)

	require.Len(t, captured, 6)
	assert.NotEmpty(t, captured[0], "transition id must be generated")
	assert.Equal(t, "evt-1", captured[1])
	assert.Equal(t, "PENDING_PAYMENT", captured[3])
	assert.Equal(t, "PAID", captured[4])
}
