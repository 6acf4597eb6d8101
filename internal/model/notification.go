package model

import "time"

// NotificationKind tells the sink which template to use.
type NotificationKind string

const (
	NotifyBookingCreated     NotificationKind = "booking_created"
	NotifyBookingPending     NotificationKind = "booking_pending"
	NotifyBookingApproved    NotificationKind = "booking_approved"
	NotifyBookingRejected    NotificationKind = "booking_rejected"
	NotifyBookingRescheduled NotificationKind = "booking_rescheduled"
	NotifyBookingCancelled   NotificationKind = "booking_cancelled"
)

// Notification is what the booking flow hands to the notification sink.
type Notification struct {
	Kind         NotificationKind
	BookingID    string
	Phone        string
	ClientName   string
	BusinessName string
	Date         time.Time
	Time         Clock
	ServiceName  string
}
