package api

import (
	"context"
	"fmt"

	"github.com/nhle/bikerent/internal/model"
)

// LoginResult is the response of a successful sign-in.
type LoginResult struct {
	AccessToken string        `json:"accessToken"`
	User        model.Profile `json:"user"`
}

// Login exchanges credentials for an access token. The backend also sets
// the http-only refresh cookie on the client's cookie jar.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}

	var res LoginResult
	if err := c.r.Post(ctx, "/auth/login", body, &res); err != nil {
		return nil, fmt.Errorf("signing in %s: %w", email, err)
	}
	if res.AccessToken == "" {
		return nil, fmt.Errorf("signing in %s: response carried no access token", email)
	}
	return &res, nil
}

// Logout ends the server-side session and clears the refresh cookie.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.r.Post(ctx, "/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("signing out: %w", err)
	}
	return nil
}

// Me returns the profile of the token holder.
func (c *Client) Me(ctx context.Context) (*model.Profile, error) {
	var env struct {
		model.Profile
		User *model.Profile `json:"user"`
	}
	if err := c.r.Get(ctx, "/auth/me", &env); err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	if env.User != nil {
		return env.User, nil
	}
	return &env.Profile, nil
}
