package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"uk-requests/internal/model"
	"uk-requests/internal/workflow"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

func requestColumns() []string {
	return []string{"id", "user_id", "category", "title", "description", "status", "price", "payment_status", "created_at", "updated_at"}
}

func TestFindForUpdateLocksRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT \* FROM "requests" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(requestColumns()).
			AddRow(id.String(), uuid.New().String(), "plumbing", "Leak", "", "accepted", "0", "", now, now))

	req, err := repo.FindForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, req.ID)
	assert.Equal(t, model.StatusAccepted, req.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDMapsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "requests" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(requestColumns()))

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusIsCompareAndSet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)
	id := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	update := regexp.QuoteMeta(`UPDATE "requests" SET "status"=$1,"updated_at"=$2 WHERE id = $3 AND status = $4`)
	mock.ExpectExec(update).
		WithArgs("in_progress", at, id, "accepted").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).
		WithArgs("on_hold", at, id, "accepted").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateStatus(context.Background(), id, model.StatusAccepted, model.StatusInProgress, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateStatus(context.Background(), id, model.StatusAccepted, model.StatusOnHold, at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteGuardsOnStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)
	id := uuid.New()

	del := regexp.QuoteMeta(`DELETE FROM "requests" WHERE id = $1 AND status = $2`)
	mock.ExpectExec(del).WithArgs(id, "new").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(del).WithArgs(id, "new").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), id, model.StatusNew))

	err := repo.Delete(context.Background(), id, model.StatusNew)
	assert.ErrorIs(t, err, workflow.ErrPersistenceConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDetailsGuardsOnStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)
	req := &model.Request{ID: uuid.New(), Title: "Broken tap", Description: "kitchen"}

	update := regexp.QuoteMeta(`UPDATE "requests" SET "description"=$1,"title"=$2,"updated_at"=$3 WHERE id = $4 AND status = $5`)
	mock.ExpectExec(update).
		WithArgs("kitchen", "Broken tap", sqlmock.AnyArg(), req.ID, "new").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).
		WithArgs("kitchen", "Broken tap", sqlmock.AnyArg(), req.ID, "new").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateDetails(context.Background(), req, model.StatusNew))

	err := repo.UpdateDetails(context.Background(), req, model.StatusNew)
	assert.ErrorIs(t, err, workflow.ErrPersistenceConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryAppendReturnsID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHistoryRepository(db)
	entryID := uuid.New()

	mock.ExpectQuery(`INSERT INTO "request_history"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seq"}).AddRow(entryID.String(), 7))

	old := model.StatusNew
	entry := &model.RequestHistory{
		RequestID: uuid.New(),
		OldStatus: &old,
		NewStatus: model.StatusAccepted,
		CreatedAt: time.Now().UTC(),
	}
	id, err := repo.Append(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, entryID, id)
	assert.Equal(t, int64(7), entry.Seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryListForOrdersByTimeThenInsertion(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHistoryRepository(db)
	requestID := uuid.New()
	at := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "request_history" WHERE request_id = $1 ORDER BY created_at ASC, seq ASC`)).
		WithArgs(requestID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seq", "request_id", "old_status", "new_status", "comment", "changed_by", "created_at"}).
			AddRow(uuid.New().String(), 1, requestID.String(), nil, "new", "Request created", nil, at).
			AddRow(uuid.New().String(), 2, requestID.String(), "new", "accepted", "", nil, at))

	entries, err := repo.ListFor(context.Background(), requestID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[0].OldStatus)
	assert.Equal(t, model.StatusNew, *entries[1].OldStatus)
	assert.Equal(t, model.StatusAccepted, entries[1].NewStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxCommitsThroughContext(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db)
	repo := NewRequestRepository(db)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "requests" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tm.RunInTx(context.Background(), func(txCtx context.Context) error {
		_, err := repo.UpdateStatus(txCtx, id, model.StatusNew, model.StatusAccepted, time.Now())
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxClassifiesSerializationFailure(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tm.RunInTx(context.Background(), func(context.Context) error {
		return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	})
	assert.ErrorIs(t, err, workflow.ErrPersistenceConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxPassesOtherErrorsThrough(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tm.RunInTx(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, workflow.ErrPersistenceConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}
