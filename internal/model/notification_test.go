package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotification_Fields(t *testing.T) {
	assert.Equal(t, FieldAll, Notification{}.Fields())

	n := Notification{Present: FieldTitle | FieldData}
	assert.True(t, n.Fields().Has(FieldTitle))
	assert.False(t, n.Fields().Has(FieldRead))
}

func TestNotification_BookingID(t *testing.T) {
	cases := map[string]map[string]any{
		"camel":  {"bookingId": "bk1"},
		"snake":  {"booking_id": "bk1"},
		"upper":  {"bookingID": "bk1"},
		"nested": {"booking": map[string]any{"id": "bk1"}},
		"mongo":  {"booking": map[string]any{"_id": "bk1"}},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, "bk1", Notification{Data: data}.BookingID())
		})
	}

	assert.Equal(t, "", Notification{}.BookingID())
	assert.Equal(t, "", Notification{Data: map[string]any{"bookingId": 7}}.BookingID())
}

func TestProfile_IsOwner(t *testing.T) {
	assert.True(t, Profile{Role: RoleOwner}.IsOwner())
	assert.False(t, Profile{Role: RoleRenter}.IsOwner())
}
