package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/bikerent/internal/ui/notifylist"
)

// Bookings performs owner actions on rental requests. *api.Client
// satisfies it.
type Bookings interface {
	ApproveBooking(ctx context.Context, id string) error
	RejectBooking(ctx context.Context, id string) error
}

// bookingResultMsg is sent after an approve or reject call.
type bookingResultMsg struct {
	action notifylist.BookingActionMsg
	err    error
}

// decideBooking approves or rejects the booking behind a rental request.
func (m Model) decideBooking(action notifylist.BookingActionMsg) tea.Cmd {
	b := m.bookings
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		var err error
		if action.Approve {
			err = b.ApproveBooking(ctx, action.BookingID)
		} else {
			err = b.RejectBooking(ctx, action.BookingID)
		}
		return bookingResultMsg{action: action, err: err}
	}
}

func bookingVerb(approve bool) string {
	if approve {
		return "approved"
	}
	return "rejected"
}

func bookingStatusText(res bookingResultMsg) string {
	if res.err != nil {
		return fmt.Sprintf("Could not update booking %s: %v", res.action.BookingID, res.err)
	}
	return fmt.Sprintf("Booking %s %s.", res.action.BookingID, bookingVerb(res.action.Approve))
}
