package api

import (
	"context"
	"fmt"
	"net/url"
)

// ListNotifications returns the raw notification payloads for the
// signed-in user. Mapping to model.Notification is the synchronizer's job.
func (c *Client) ListNotifications(ctx context.Context) ([]map[string]any, error) {
	var env listEnvelope[map[string]any]
	if err := c.r.Get(ctx, "/notifications", &env); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return env.items(), nil
}

// UnreadCount returns the server-side unread counter.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var env countEnvelope
	if err := c.r.Get(ctx, "/notifications/count", &env); err != nil {
		return 0, fmt.Errorf("getting unread count: %w", err)
	}
	return env.n, nil
}

// MarkNotificationRead marks one notification read server-side.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	path := fmt.Sprintf("/notifications/%s/read", url.PathEscape(id))
	if err := c.r.Post(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}
