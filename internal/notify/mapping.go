package notify

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/bikerent/internal/model"
)

const (
	defaultTitle              = "New Notification"
	defaultRentalRequestTitle = "New Rental Request"
	defaultMessage            = "You have a new notification."
)

// timeLayouts are tried in order when a timestamp arrives as a string.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// now is replaced in tests.
var now = time.Now

// mutableKeys change between fetches of the same record and are left out
// of a content-derived id.
var mutableKeys = map[string]bool{
	"read":       true,
	"isRead":     true,
	"is_read":    true,
	"updatedAt":  true,
	"updated_at": true,
}

// FromPayload maps a raw backend or socket payload to a Notification.
// Missing or malformed fields fall back to defaults rather than failing,
// and Present records which fields the payload actually carried. A
// payload without an id gets a random one.
func FromPayload(p map[string]any) model.Notification {
	return fromPayload(p, uuid.NewString)
}

// FromListPayload maps a record from the bulk list. A missing id is
// derived from the payload content so reloading the same list yields the
// same ids.
func FromListPayload(p map[string]any) model.Notification {
	return fromPayload(p, func() string { return contentID(p) })
}

func fromPayload(p map[string]any, fallbackID func() string) model.Notification {
	var n model.Notification

	n.ID = firstString(p, "id", "_id", "notificationId")
	if n.ID == "" {
		n.ID = fallbackID()
	}

	if t := firstString(p, "type"); t != "" {
		n.Type = model.NotificationType(t)
		n.Present |= model.FieldType
	} else {
		n.Type = model.NotificationGeneral
	}

	if title := firstString(p, "title"); title != "" {
		n.Title = title
		n.Present |= model.FieldTitle
	} else if n.Type == model.NotificationRentalRequest {
		n.Title = defaultRentalRequestTitle
	} else {
		n.Title = defaultTitle
	}

	if msg := firstString(p, "message", "body"); msg != "" {
		n.Message = msg
		n.Present |= model.FieldMessage
	} else {
		n.Message = defaultMessage
	}

	if ts, ok := parseTime(first(p, "createdAt", "created_at")); ok {
		n.CreatedAt = ts
		n.Present |= model.FieldCreatedAt
	} else {
		n.CreatedAt = now().UTC()
	}

	if read, ok := firstBool(p, "read", "isRead", "is_read"); ok {
		n.Read = read
		n.Present |= model.FieldRead
	}

	// Data is always carried, so a mapped record never reads as complete.
	if data, ok := p["data"].(map[string]any); ok {
		n.Data = data
	} else {
		n.Data = p
	}
	n.Present |= model.FieldData

	return n
}

// contentID hashes the payload's stable fields into a name-based UUID.
// encoding/json sorts map keys, so equal payloads hash equally.
func contentID(p map[string]any) string {
	stable := make(map[string]any, len(p))
	for k, v := range p {
		if !mutableKeys[k] {
			stable[k] = v
		}
	}
	b, err := json.Marshal(stable)
	if err != nil {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, b).String()
}

func first(p map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := p[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(p map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := p[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func firstBool(p map[string]any, keys ...string) (bool, bool) {
	for _, k := range keys {
		if b, ok := p[k].(bool); ok {
			return b, true
		}
	}
	return false, false
}

// parseTime accepts RFC 3339 and a few common layouts, plus unix seconds
// or milliseconds.
func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), true
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromUnix(f)
		}
	case float64:
		return fromUnix(t)
	case time.Time:
		if !t.IsZero() {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// fromUnix treats values past 1e11 as milliseconds.
func fromUnix(f float64) (time.Time, bool) {
	if f <= 0 {
		return time.Time{}, false
	}
	if f > 1e11 {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	return time.Unix(int64(f), 0).UTC(), true
}
