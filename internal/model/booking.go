package model

import "time"

// Booking statuses as reported by the backend.
const (
	BookingPending   = "pending"
	BookingApproved  = "approved"
	BookingRejected  = "rejected"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
)

// Bike is a listed rental item.
type Bike struct {
	ID           string  `json:"id"`
	OwnerID      string  `json:"ownerId"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	PricePerHour float64 `json:"pricePerHour"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Available    bool    `json:"available"`
}

// Booking is a rental of one bike by one renter.
type Booking struct {
	ID         string    `json:"id"`
	BikeID     string    `json:"bikeId"`
	RenterID   string    `json:"renterId"`
	Status     string    `json:"status"`
	StartAt    time.Time `json:"startAt"`
	EndAt      time.Time `json:"endAt"`
	TotalPrice float64   `json:"totalPrice"`
}
