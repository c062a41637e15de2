package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

var transactionColumnNames = []string{"id", "student_id", "event_id", "category_id", "points_allocated", "status", "approved_by", "approval_date", "rejection_reason", "auto_approved", "verification_code", "created_at", "updated_at"}

func TestCreateTransactionSkipsExistingPair(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAICTERepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, event_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, event_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx := &models.AICTETransaction{StudentID: "s1", EventID: "e1", CategoryID: "c1", PointsAllocated: 20, Status: models.TransactionPending}
	created, err := repo.CreateTransaction(context.Background(), nil, tx)
	require.NoError(t, err)
	assert.True(t, created)

	again := &models.AICTETransaction{StudentID: "s1", EventID: "e1", CategoryID: "c1", PointsAllocated: 20, Status: models.TransactionPending}
	created, err = repo.CreateTransaction(context.Background(), nil, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionCodeExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAICTERepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM aicte_point_transactions WHERE verification_code = $1)")).
		WithArgs("AB12CD34").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repo.TransactionCodeExists(context.Background(), nil, "AB12CD34")
	require.NoError(t, err)
	assert.True(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideRequiresPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAICTERepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'PENDING'")).
		WithArgs("t1", "APPROVED", "m1", sqlmock.AnyArg(), nil, false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mentor := "m1"
	err := repo.Decide(context.Background(), nil, "t1", models.TransactionApproved, &mentor, nil, false, time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDuplicateTransactionGroups(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAICTERepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY student_id, event_id HAVING COUNT(*) > 1")).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "event_id", "count"}).AddRow("s1", "e1", 2))

	keys, err := repo.FindDuplicateGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, models.DuplicateKey{StudentID: "s1", EventID: "e1", Count: 2}, keys[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListGroupLocksRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAICTERepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE student_id = $1 AND event_id = $2 ORDER BY updated_at DESC FOR UPDATE")).
		WithArgs("s1", "e1").
		WillReturnRows(sqlmock.NewRows(transactionColumnNames).
			AddRow("t1", "s1", "e1", "c1", 20, "APPROVED", "m1", now, nil, false, "AB12CD34", now, now).
			AddRow("t2", "s1", "e1", "c1", 15, "PENDING", nil, nil, nil, false, "EF56GH78", now, now))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	txs, err := repo.ListGroup(context.Background(), tx, "s1", "e1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.Len(t, txs, 2)
	assert.Equal(t, models.TransactionApproved, txs[0].Status)
	assert.Nil(t, txs[1].ApprovedBy)
	assert.Equal(t, "EF56GH78", txs[1].VerificationCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTransactions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAICTERepository(db)

	n, err := repo.DeleteTransactions(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM aicte_point_transactions WHERE id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err = repo.DeleteTransactions(context.Background(), nil, []string{"t2", "t3"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStudentPointsFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAICTERepository(db)

	now := time.Now()
	columns := append(append([]string{}, studentColumns...), "approved_points", "pending_points", "approved_count", "pending_count", "rejected_count")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.department = $1 AND s.semester = $2")).
		WithArgs("CSE", 6).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("s1", "u1", "1AB21CS001", "A", "a@example.com", "CSE", 6, "REGULAR", nil, now, now, 80, 20, 4, 1, 0))

	rows, err := repo.ListStudentPoints(context.Background(), models.StudentFilter{Department: "CSE", Semester: 6})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 80, rows[0].ApprovedPoints)
	assert.Equal(t, 20, rows[0].PendingPoints)
	assert.Equal(t, "1AB21CS001", rows[0].USN)
	assert.NoError(t, mock.ExpectationsWereMet())
}
