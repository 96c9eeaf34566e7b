package session

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieStore_ExportRestore(t *testing.T) {
	u, err := url.Parse("http://api.example.com/api/auth/refresh")
	require.NoError(t, err)

	c := newCookieStore()
	c.SetCookies(u, []*http.Cookie{
		{Name: "refreshToken", Value: "rt1", Path: "/api/auth"},
		{Name: "other", Value: "x", Path: "/elsewhere"},
	})
	assert.Equal(t, "refreshToken=rt1", c.export(u))

	restored := newCookieStore()
	require.NoError(t, restored.restore(u, c.export(u)))
	got := restored.Cookies(u)
	require.Len(t, got, 1)
	assert.Equal(t, "rt1", got[0].Value)

	restored.reset()
	assert.Empty(t, restored.Cookies(u))
	assert.Equal(t, "", restored.export(u))
}

func TestCookieStore_RestoreRejectsGarbage(t *testing.T) {
	u, _ := url.Parse("http://api.example.com/")
	assert.Error(t, newCookieStore().restore(u, "garbage"))
}
