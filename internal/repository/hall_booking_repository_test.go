package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

var bookingColumnNames = []string{"id", "hall_id", "event_id", "booked_by", "booking_date", "start_time", "end_time", "status", "approved_by", "rejection_reason", "created_at", "updated_at"}

func TestHallDateLockKey(t *testing.T) {
	date := time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, "hall:h1:2024-03-15", HallDateLockKey("h1", date))
}

func TestLockHallDateRequiresTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHallBookingRepository(db)

	err := repo.LockHallDate(context.Background(), nil, "h1", time.Now())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockHallDateTakesAdvisoryLock(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHallBookingRepository(db)

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("hall:h1:2024-03-15").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.LockHallDate(context.Background(), tx, "h1", date))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBlockingFiltersByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHallBookingRepository(db)

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	rows := sqlmock.NewRows(bookingColumnNames).
		AddRow("b1", "h1", nil, "u1", date, "09:00:00", "11:00:00", "APPROVED", "u1", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM hall_bookings WHERE hall_id = $1 AND booking_date = $2 AND status = ANY($3) ORDER BY start_time")).
		WithArgs("h1", "2024-03-15", sqlmock.AnyArg()).
		WillReturnRows(rows)

	bookings, err := repo.ListBlocking(context.Background(), nil, "h1", date)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, models.NewTimeOfDay(9, 0, 0), bookings[0].StartTime)
	assert.Equal(t, models.NewTimeOfDay(11, 0, 0), bookings[0].EndTime)
	assert.Equal(t, models.BookingStatusApproved, bookings[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindBookingLocksInsideTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHallBookingRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM hall_bookings WHERE id = $1 FOR UPDATE")).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(bookingColumnNames).
			AddRow("b1", "h1", nil, "u1", now, "09:00:00", "10:00:00", "PENDING", nil, nil, now, now))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	booking, err := repo.FindByID(context.Background(), tx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBookingStatusMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHallBookingRepository(db)

	mock.ExpectExec("UPDATE hall_bookings SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	reason := "double booked"
	err := repo.UpdateStatus(context.Background(), nil, "missing", models.BookingStatusRejected, nil, &reason)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingNormalisesDate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHallBookingRepository(db)

	mock.ExpectExec("INSERT INTO hall_bookings").WillReturnResult(sqlmock.NewResult(1, 1))

	booking := &models.HallBooking{
		HallID:      "h1",
		BookedBy:    "u1",
		BookingDate: time.Date(2024, 3, 15, 14, 45, 0, 0, time.UTC),
		StartTime:   models.NewTimeOfDay(9, 0, 0),
		EndTime:     models.NewTimeOfDay(10, 0, 0),
		Status:      models.BookingStatusApproved,
	}
	require.NoError(t, repo.Create(context.Background(), nil, booking))
	assert.NotEmpty(t, booking.ID)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), booking.BookingDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHallBookingsSchemaAllowsZeroLengthWindow(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "migrations", "0001_init.sql"))
	require.NoError(t, err)
	schema := string(raw)

	start := strings.Index(schema, "CREATE TABLE IF NOT EXISTS hall_bookings")
	require.GreaterOrEqual(t, start, 0)
	table := schema[start:]
	table = table[:strings.Index(table, ");")]

	assert.Contains(t, table, "CHECK (end_time >= start_time)", "events without an end time book a zero-length window")
	assert.NotContains(t, table, "CHECK (end_time > start_time)")
}
