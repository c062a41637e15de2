package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("approve booking: %w", Clone(ErrBookingConflict, "hall already booked 10:00-12:00"))

	got := FromError(wrapped)

	assert.Equal(t, "BOOKING_CONFLICT", got.Code)
	assert.Equal(t, http.StatusConflict, got.Status)
	assert.Equal(t, "hall already booked 10:00-12:00", got.Message)
	assert.True(t, IsCode(wrapped, ErrBookingConflict.Code))
}

func TestFromErrorHidesUntypedErrors(t *testing.T) {
	got := FromError(sql.ErrConnDone)

	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, ErrInternal.Message, got.Message)
	assert.True(t, errors.Is(got, sql.ErrConnDone))
	assert.Nil(t, FromError(nil))
}

func TestCloneDoesNotMutateSentinel(t *testing.T) {
	c := Clone(ErrValidation, "rejection reason must be at least 5 characters")

	assert.Equal(t, "validation failed", ErrValidation.Message)
	assert.Equal(t, ErrValidation.Code, c.Code)
	assert.NotSame(t, ErrValidation, c)
	assert.Equal(t, c.Message, c.Error())
}

func TestWrapFormatsCause(t *testing.T) {
	err := Wrap(errors.New("pq: deadlock detected"), ErrInternal.Code, ErrInternal.Status, "failed to approve booking")
	assert.Equal(t, "failed to approve booking: pq: deadlock detected", err.Error())
}
