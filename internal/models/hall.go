package models

import "time"

// Hall is a bookable campus venue.
type Hall struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	Location    string    `db:"location" json:"location"`
	Capacity    int       `db:"capacity" json:"capacity"`
	IsAvailable bool      `db:"is_available" json:"is_available"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// HallBookingStatus enumerates booking lifecycle states.
type HallBookingStatus string

const (
	BookingStatusPending   HallBookingStatus = "PENDING"
	BookingStatusApproved  HallBookingStatus = "APPROVED"
	BookingStatusRejected  HallBookingStatus = "REJECTED"
	BookingStatusCancelled HallBookingStatus = "CANCELLED"
	BookingStatusCompleted HallBookingStatus = "COMPLETED"
)

// Blocking reports whether a booking in this status occupies the hall.
func (s HallBookingStatus) Blocking() bool {
	return s == BookingStatusPending || s == BookingStatusApproved
}

// HallBooking reserves a hall for a time range on one date.
type HallBooking struct {
	ID              string            `db:"id" json:"id"`
	HallID          string            `db:"hall_id" json:"hall_id"`
	EventID         *string           `db:"event_id" json:"event_id,omitempty"`
	BookedBy        string            `db:"booked_by" json:"booked_by"`
	BookingDate     time.Time         `db:"booking_date" json:"booking_date"`
	StartTime       TimeOfDay         `db:"start_time" json:"start_time"`
	EndTime         TimeOfDay         `db:"end_time" json:"end_time"`
	Status          HallBookingStatus `db:"status" json:"status"`
	ApprovedBy      *string           `db:"approved_by" json:"approved_by,omitempty"`
	RejectionReason *string           `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// HallBookingFilter narrows booking listings.
type HallBookingFilter struct {
	HallID   string
	BookedBy string
	Status   *HallBookingStatus
	Date     *time.Time
}

// CreateHallBookingRequest is submitted by club organizers.
type CreateHallBookingRequest struct {
	HallID      string    `json:"hall_id" validate:"required"`
	EventID     *string   `json:"event_id" validate:"omitempty,uuid"`
	BookingDate string    `json:"booking_date" validate:"required"`
	StartTime   TimeOfDay `json:"start_time"`
	EndTime     TimeOfDay `json:"end_time"`
}

// RejectHallBookingRequest carries the admin's reason.
type RejectHallBookingRequest struct {
	Reason string `json:"reason"`
}

// AvailableHallsQuery asks which halls are free for a window.
type AvailableHallsQuery struct {
	Date      string `form:"date" validate:"required"`
	StartTime string `form:"start_time" validate:"required"`
	EndTime   string `form:"end_time" validate:"required"`
}
