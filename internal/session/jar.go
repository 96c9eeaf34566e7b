package session

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
)

// cookieStore is an http.CookieJar that can be wiped when a session ends
// and exported so the refresh cookie survives restarts.
type cookieStore struct {
	mu  sync.Mutex
	jar *cookiejar.Jar
}

func newCookieStore() *cookieStore {
	jar, _ := cookiejar.New(nil)
	return &cookieStore{jar: jar}
}

func (c *cookieStore) SetCookies(u *url.URL, cookies []*http.Cookie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jar.SetCookies(u, cookies)
}

func (c *cookieStore) Cookies(u *url.URL) []*http.Cookie {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jar.Cookies(u)
}

// reset drops every cookie.
func (c *cookieStore) reset() {
	jar, _ := cookiejar.New(nil)
	c.mu.Lock()
	c.jar = jar
	c.mu.Unlock()
}

// export serializes the cookies sent to u as a Cookie header value. The
// jar lists more specific paths first, so the first cookie of each name
// wins.
func (c *cookieStore) export(u *url.URL) string {
	seen := make(map[string]bool)
	var parts []string
	for _, ck := range c.Cookies(u) {
		if seen[ck.Name] {
			continue
		}
		seen[ck.Name] = true
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}

// restore loads a value produced by export. Restored cookies apply to the
// whole host.
func (c *cookieStore) restore(u *url.URL, header string) error {
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return fmt.Errorf("parsing stored cookies: %w", err)
	}
	for _, ck := range cookies {
		ck.Path = "/"
	}
	c.SetCookies(u, cookies)
	return nil
}
