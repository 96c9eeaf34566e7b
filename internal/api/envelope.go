package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// listEnvelope decodes a list response that may be a bare array or an
// object wrapping the array under one of several keys.
type listEnvelope[T any] struct {
	list []T
}

func (e *listEnvelope[T]) items() []T {
	if e.list == nil {
		return []T{}
	}
	return e.list
}

func (e *listEnvelope[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '[' {
		return json.Unmarshal(data, &e.list)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decoding list envelope: %w", err)
	}
	for _, key := range []string{"data", "items", "results", "notifications", "bikes", "bookings"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '{' {
			// {data: {notifications: [...]}}
			return e.UnmarshalJSON(raw)
		}
		return json.Unmarshal(raw, &e.list)
	}
	return fmt.Errorf("decoding list envelope: no list field in %s", truncate(data, 80))
}

// countEnvelope decodes an unread counter from a bare number or from an
// object such as {count}, {unreadCount}, {unread}, {data: n} or
// {data: {count}}.
type countEnvelope struct {
	n int
}

func (e *countEnvelope) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		e.n = int(n)
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decoding count envelope: %w", err)
	}
	for _, key := range []string{"count", "unreadCount", "unread", "data"} {
		if raw, ok := obj[key]; ok {
			return e.UnmarshalJSON(raw)
		}
	}
	return fmt.Errorf("decoding count envelope: no count field in %s", truncate(data, 80))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
