package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bikerent/internal/gateway"
)

type staticSession struct{ token string }

func (s *staticSession) AccessToken() string     { return s.token }
func (s *staticSession) SetAccessToken(t string) { s.token = t }
func (s *staticSession) EndSession(error)        {}
func (s *staticSession) AtSignIn() bool          { return false }

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(gateway.New(srv.URL, &staticSession{token: "tok"}))
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func TestUnreadCount_Envelopes(t *testing.T) {
	cases := map[string]string{
		"bare number":   `3`,
		"count":         `{"count": 3}`,
		"unreadCount":   `{"unreadCount": 3}`,
		"unread":        `{"unread": 3}`,
		"data number":   `{"data": 3}`,
		"data count":    `{"data": {"count": 3}}`,
		"float counter": `3.0`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, respond(body))
			n, err := c.UnreadCount(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 3, n)
		})
	}
}

func TestUnreadCount_Unrecognized(t *testing.T) {
	c := newTestClient(t, respond(`{"total": 3}`))
	_, err := c.UnreadCount(context.Background())
	assert.Error(t, err)
}

func TestListNotifications_Envelopes(t *testing.T) {
	cases := map[string]string{
		"bare array":    `[{"id":"1"},{"id":"2"}]`,
		"notifications": `{"notifications":[{"id":"1"},{"id":"2"}]}`,
		"data":          `{"data":[{"id":"1"},{"id":"2"}]}`,
		"nested":        `{"data":{"notifications":[{"id":"1"},{"id":"2"}]}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, respond(body))
			got, err := c.ListNotifications(context.Background())
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "1", got[0]["id"])
		})
	}
}

func TestListNotifications_Null(t *testing.T) {
	c := newTestClient(t, respond(`null`))
	got, err := c.ListNotifications(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMarkNotificationRead(t *testing.T) {
	var gotPath, gotMethod string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.MarkNotificationRead(context.Background(), "n 1"))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/notifications/n 1/read", gotPath)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "owner@example.com", body["email"])
		respond(`{"accessToken":"abc","user":{"id":"u1","email":"owner@example.com","role":"owner"}}`)(w, r)
	}))

	res, err := c.Login(context.Background(), "owner@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "abc", res.AccessToken)
	assert.Equal(t, "u1", res.User.ID)
	assert.True(t, res.User.IsOwner())
}

func TestLogin_MissingToken(t *testing.T) {
	c := newTestClient(t, respond(`{"user":{"id":"u1"}}`))
	_, err := c.Login(context.Background(), "a@example.com", "x")
	assert.Error(t, err)
}

func TestMe_WrappedAndBare(t *testing.T) {
	for _, body := range []string{
		`{"user":{"id":"u1","email":"a@example.com"}}`,
		`{"id":"u1","email":"a@example.com"}`,
	} {
		c := newTestClient(t, respond(body))
		p, err := c.Me(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "u1", p.ID)
	}
}

func TestListBikes_Query(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		respond(`{"bikes":[{"id":"b1","name":"Gravel","pricePerHour":4.5,"available":true}]}`)(w, r)
	}))

	bikes, err := c.ListBikes(context.Background(), BikeFilter{Lat: 52.5, Lng: 13.4, RadiusKM: 3})
	require.NoError(t, err)
	require.Len(t, bikes, 1)
	assert.Equal(t, "Gravel", bikes[0].Name)
	assert.Equal(t, "lat=52.5&lng=13.4&radius=3", gotQuery)
}

func TestBookingActions(t *testing.T) {
	var paths []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	ctx := context.Background()

	require.NoError(t, c.ApproveBooking(ctx, "bk1"))
	require.NoError(t, c.RejectBooking(ctx, "bk2"))
	require.NoError(t, c.CancelBooking(ctx, "bk3"))
	assert.Equal(t, []string{"/bookings/bk1/approve", "/bookings/bk2/reject", "/bookings/bk3/cancel"}, paths)

	assert.Error(t, c.ApproveBooking(ctx, ""))
}

func TestListBookings_Role(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		respond(`[{"id":"bk1","status":"pending"}]`)(w, r)
	}))

	bookings, err := c.ListBookings(context.Background(), "owner")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "role=owner", gotQuery)
}

func TestCreatePaymentIntent(t *testing.T) {
	c := newTestClient(t, respond(`{"id":"pi_1","clientSecret":"sec","amount":12,"currency":"eur"}`))
	pi, err := c.CreatePaymentIntent(context.Background(), "bk1")
	require.NoError(t, err)
	assert.Equal(t, "sec", pi.ClientSecret)

	c = newTestClient(t, respond(`{"id":"pi_1"}`))
	_, err = c.CreatePaymentIntent(context.Background(), "bk1")
	assert.Error(t, err)
}
