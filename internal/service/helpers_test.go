package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

// txDB hands out sqlmock-backed transactions to services under test.
type txDB struct {
	db *sqlx.DB
}

func (t *txDB) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func newTxDB(t *testing.T) (*txDB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txDB{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tod(raw string) models.TimeOfDay {
	return models.MustParseTimeOfDay(raw)
}

func strPtr(s string) *string { return &s }

type hallStub struct {
	halls map[string]models.Hall
}

func newHallStub(halls ...models.Hall) *hallStub {
	s := &hallStub{halls: map[string]models.Hall{}}
	for _, h := range halls {
		s.halls[h.ID] = h
	}
	return s
}

func (s *hallStub) List(ctx context.Context, onlyAvailable bool) ([]models.Hall, error) {
	out := make([]models.Hall, 0, len(s.halls))
	for _, h := range s.halls {
		if onlyAvailable && !h.IsAvailable {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *hallStub) FindByID(ctx context.Context, id string) (*models.Hall, error) {
	h, ok := s.halls[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &h, nil
}

func (s *hallStub) FindByIDs(ctx context.Context, ids []string) ([]models.Hall, error) {
	var out []models.Hall
	for _, id := range ids {
		if h, ok := s.halls[id]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}

// bookingStoreStub keeps bookings in memory and records lock requests.
type bookingStoreStub struct {
	mu       sync.Mutex
	bookings map[string]*models.HallBooking
	locks    []string
	listErr  error
}

func newBookingStoreStub(bookings ...models.HallBooking) *bookingStoreStub {
	s := &bookingStoreStub{bookings: map[string]*models.HallBooking{}}
	for i := range bookings {
		b := bookings[i]
		s.bookings[b.ID] = &b
	}
	return s
}

func (s *bookingStoreStub) LockHallDate(ctx context.Context, exec sqlx.ExtContext, hallID string, d time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks = append(s.locks, hallID+"@"+d.Format(models.DateLayout))
	return nil
}

func (s *bookingStoreStub) ListBlocking(ctx context.Context, exec sqlx.ExtContext, hallID string, d time.Time) ([]models.HallBooking, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.HallBooking
	for _, b := range s.bookings {
		if b.HallID == hallID && models.DateOf(b.BookingDate).Equal(models.DateOf(d)) && b.Status.Blocking() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *bookingStoreStub) ListBlockingOnDate(ctx context.Context, d time.Time) ([]models.HallBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.HallBooking
	for _, b := range s.bookings {
		if models.DateOf(b.BookingDate).Equal(models.DateOf(d)) && b.Status.Blocking() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *bookingStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.HallBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (s *bookingStoreStub) List(ctx context.Context, filter models.HallBookingFilter) ([]models.HallBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.HallBooking
	for _, b := range s.bookings {
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (s *bookingStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.HallBooking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	cp := *booking
	s.bookings[booking.ID] = &cp
	return nil
}

func (s *bookingStoreStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.HallBookingStatus, approvedBy, reason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return sql.ErrNoRows
	}
	b.Status = status
	b.ApprovedBy = approvedBy
	b.RejectionReason = reason
	return nil
}

func (s *bookingStoreStub) get(id string) models.HallBooking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.bookings[id]
}

func (s *bookingStoreStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

// eventStoreStub keeps events in memory.
type eventStoreStub struct {
	mu        sync.Mutex
	events    map[string]*models.Event
	order     []string
	updateErr map[string]error
}

func newEventStoreStub(events ...models.Event) *eventStoreStub {
	s := &eventStoreStub{events: map[string]*models.Event{}, updateErr: map[string]error{}}
	for i := range events {
		e := events[i]
		s.events[e.ID] = &e
		s.order = append(s.order, e.ID)
	}
	return s
}

func (s *eventStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (s *eventStoreStub) ListActive(ctx context.Context) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for _, id := range s.order {
		if e := s.events[id]; !e.Status.Terminal() {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *eventStoreStub) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for _, id := range s.order {
		e := s.events[id]
		if filter.ClubID != "" && e.ClubID != filter.ClubID {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (s *eventStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	cp := *event
	s.events[event.ID] = &cp
	s.order = append(s.order, event.ID)
	return nil
}

func (s *eventStoreStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, expected, status models.EventStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateErr[id]; err != nil {
		return err
	}
	e, ok := s.events[id]
	if !ok || e.Status != expected {
		return sql.ErrNoRows
	}
	e.Status = status
	return nil
}

func (s *eventStoreStub) SetAssignedHall(ctx context.Context, exec sqlx.ExtContext, id string, hallID *string, assignedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.AssignedHallID = hallID
	e.HallAssignedAt = assignedAt
	return nil
}

func (s *eventStoreStub) get(id string) models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.events[id]
}

// permissiveTx accepts any number of transactions in any order.
func permissiveTx(t *testing.T, n int) *txDB {
	db, mock := newTxDB(t)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}
	return db
}

type clubStub struct {
	clubs      map[string]bool
	organizers map[string]string
}

func (c *clubStub) FindByID(ctx context.Context, id string) (*models.Club, error) {
	if !c.clubs[id] {
		return nil, sql.ErrNoRows
	}
	return &models.Club{ID: id, Name: "Robotics Club"}, nil
}

func (c *clubStub) IsOrganizer(ctx context.Context, clubID, userID string) (bool, error) {
	return c.organizers[userID] == clubID, nil
}

type assignerStub struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (a *assignerStub) AssignHallToEvent(ctx context.Context, eventID string) (*models.Hall, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, eventID)
	return nil, a.err
}

func (s *bookingStoreStub) CancelForEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.EventID != nil && *b.EventID == eventID && b.Status.Blocking() {
			b.Status = models.BookingStatusCancelled
		}
	}
	return nil
}
