package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nhle/bikerent/internal/model"
)

// Requester is the authenticated request pipeline the client runs on.
// *gateway.Gateway satisfies it.
type Requester interface {
	Get(ctx context.Context, path string, result any) error
	Post(ctx context.Context, path string, body any, result any) error
}

// Client is the typed marketplace backend client.
type Client struct {
	r Requester
}

// NewClient creates a Client over r.
func NewClient(r Requester) *Client {
	return &Client{r: r}
}

// BikeFilter narrows a bike listing to an area around a point.
type BikeFilter struct {
	Lat      float64
	Lng      float64
	RadiusKM float64
	Type     string
}

// query encodes the filter as URL parameters. Zero values are omitted.
func (f BikeFilter) query() string {
	v := url.Values{}
	if f.Lat != 0 || f.Lng != 0 {
		v.Set("lat", strconv.FormatFloat(f.Lat, 'f', -1, 64))
		v.Set("lng", strconv.FormatFloat(f.Lng, 'f', -1, 64))
	}
	if f.RadiusKM > 0 {
		v.Set("radius", strconv.FormatFloat(f.RadiusKM, 'f', -1, 64))
	}
	if f.Type != "" {
		v.Set("type", f.Type)
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// ListBikes returns bikes matching the filter.
func (c *Client) ListBikes(ctx context.Context, f BikeFilter) ([]model.Bike, error) {
	var env listEnvelope[model.Bike]
	if err := c.r.Get(ctx, "/bikes"+f.query(), &env); err != nil {
		return nil, fmt.Errorf("listing bikes: %w", err)
	}
	return env.items(), nil
}

// ListBookings returns the user's bookings as seen from role
// (owner: requests for my bikes, renter: my rentals).
func (c *Client) ListBookings(ctx context.Context, role string) ([]model.Booking, error) {
	path := "/bookings"
	if role != "" {
		path += "?role=" + url.QueryEscape(role)
	}

	var env listEnvelope[model.Booking]
	if err := c.r.Get(ctx, path, &env); err != nil {
		return nil, fmt.Errorf("listing bookings: %w", err)
	}
	return env.items(), nil
}

// ApproveBooking accepts a pending rental request.
func (c *Client) ApproveBooking(ctx context.Context, id string) error {
	return c.bookingAction(ctx, id, "approve")
}

// RejectBooking declines a pending rental request.
func (c *Client) RejectBooking(ctx context.Context, id string) error {
	return c.bookingAction(ctx, id, "reject")
}

// CancelBooking cancels a booking made by the renter.
func (c *Client) CancelBooking(ctx context.Context, id string) error {
	return c.bookingAction(ctx, id, "cancel")
}

func (c *Client) bookingAction(ctx context.Context, id, action string) error {
	if id == "" {
		return fmt.Errorf("%s booking: missing booking id", action)
	}
	path := fmt.Sprintf("/bookings/%s/%s", url.PathEscape(id), action)
	if err := c.r.Post(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("%s booking %s: %w", action, id, err)
	}
	return nil
}

// PaymentIntent is the server half of a Stripe payment; the client
// secret is handed to the Stripe checkout page.
type PaymentIntent struct {
	ID           string  `json:"id"`
	ClientSecret string  `json:"clientSecret"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
}

// CreatePaymentIntent starts payment for a booking.
func (c *Client) CreatePaymentIntent(ctx context.Context, bookingID string) (*PaymentIntent, error) {
	var pi PaymentIntent
	body := map[string]string{"bookingId": bookingID}
	if err := c.r.Post(ctx, "/payments/intent", body, &pi); err != nil {
		return nil, fmt.Errorf("creating payment intent for booking %s: %w", bookingID, err)
	}
	if pi.ClientSecret == "" {
		return nil, fmt.Errorf("payment intent for booking %s carried no client secret", bookingID)
	}
	return &pi, nil
}
