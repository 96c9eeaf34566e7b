package login

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, validateEmail("owner@example.com"))
	assert.NoError(t, validateEmail("  owner@example.com "))
	assert.Error(t, validateEmail(""))
	assert.Error(t, validateEmail("owner"))
	assert.Error(t, validateEmail("@example.com"))
	assert.Error(t, validateEmail("owner@"))
}

func TestValidateRequired(t *testing.T) {
	v := validateRequired("Password")
	assert.EqualError(t, v(" "), "Password is required")
	assert.NoError(t, v("secret"))
}

func TestReset_KeepsEmail(t *testing.T) {
	m := New(80, 24)
	m.creds.email = "owner@example.com"
	m.creds.password = "secret"
	m.busy = true

	m.Reset("Invalid email or password")

	assert.Equal(t, "owner@example.com", m.creds.email)
	assert.Empty(t, m.creds.password)
	assert.False(t, m.busy)
	assert.Contains(t, m.View(), "Invalid email or password")
}
