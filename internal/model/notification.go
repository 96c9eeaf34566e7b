package model

import "time"

// NotificationType tags the marketplace event behind a notification.
// The set is open: unknown tags from the backend are kept verbatim.
type NotificationType string

const (
	NotificationRentalRequest   NotificationType = "rental_request"
	NotificationRentalApproved  NotificationType = "rental_approved"
	NotificationRentalRejected  NotificationType = "rental_rejected"
	NotificationRentalCancelled NotificationType = "rental_cancelled"
	NotificationPayment         NotificationType = "payment"
	NotificationRideCompleted   NotificationType = "ride_completed"
	NotificationGeneral         NotificationType = "general"
)

// FieldSet is a bit set of Notification fields carried by a source payload.
type FieldSet uint8

const (
	FieldType FieldSet = 1 << iota
	FieldTitle
	FieldMessage
	FieldCreatedAt
	FieldRead
	FieldData

	// FieldAll marks a complete record.
	FieldAll = FieldType | FieldTitle | FieldMessage | FieldCreatedAt | FieldRead | FieldData
)

// Has reports whether every field in f is present in s.
func (s FieldSet) Has(f FieldSet) bool {
	return s&f == f
}

// Notification is one user-facing marketplace event.
type Notification struct {
	// ID is unique within one user's notification set.
	ID string `json:"id"`

	// Type is the event tag (rental_request, payment, ...).
	Type NotificationType `json:"type"`

	Title   string `json:"title"`
	Message string `json:"message"`

	// CreatedAt is normalized; it marshals as RFC 3339.
	CreatedAt time.Time `json:"createdAt"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// Data is the raw associated payload (e.g. a booking id) passed
	// through unchanged for UI actions.
	Data map[string]any `json:"data,omitempty"`

	// Present records which fields the source payload actually carried.
	// Zero means the record is complete.
	Present FieldSet `json:"-"`
}

// Fields returns the set of fields this record should contribute when
// merged over an existing record with the same ID.
func (n Notification) Fields() FieldSet {
	if n.Present == 0 {
		return FieldAll
	}
	return n.Present
}

// BookingID extracts the booking reference carried in Data, if any.
func (n Notification) BookingID() string {
	for _, k := range []string{"bookingId", "booking_id", "bookingID"} {
		if v, ok := n.Data[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	if b, ok := n.Data["booking"].(map[string]any); ok {
		for _, k := range []string{"id", "_id"} {
			if s, ok := b[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
