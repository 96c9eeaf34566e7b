package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	return NewVault(keyring.NewArrayKeyring(nil))
}

func TestVault_SetGet(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.Set("session", "cookie-value"))

	got, err := v.Get("session")
	require.NoError(t, err)
	assert.Equal(t, "cookie-value", got)
}

func TestVault_GetMissing(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVault_Delete(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.Set("session", "x"))
	require.NoError(t, v.Delete("session"))
	require.NoError(t, v.Delete("session"))

	_, err := v.Get("session")
	assert.ErrorIs(t, err, ErrNotFound)
}
