package notify

import (
	"sort"

	"github.com/nhle/bikerent/internal/model"
)

// Merge reconciles incoming records into existing, keyed by ID. On a
// collision the incoming record's present fields overwrite the existing
// ones; new IDs are inserted. The result is sorted newest first. Merging
// the same incoming set twice yields the same collection as merging once.
func Merge(existing, incoming []model.Notification) []model.Notification {
	byID := make(map[string]model.Notification, len(existing)+len(incoming))
	for _, n := range existing {
		byID[n.ID] = n
	}
	for _, in := range incoming {
		if cur, ok := byID[in.ID]; ok {
			byID[in.ID] = overlay(cur, in)
			continue
		}
		in.Present = 0
		byID[in.ID] = in
	}

	out := make([]model.Notification, 0, len(byID))
	for _, n := range byID {
		out = append(out, n)
	}
	sortNewestFirst(out)
	return out
}

// overlay copies the present fields of in over cur.
func overlay(cur, in model.Notification) model.Notification {
	f := in.Fields()
	if f.Has(model.FieldType) {
		cur.Type = in.Type
	}
	if f.Has(model.FieldTitle) {
		cur.Title = in.Title
	}
	if f.Has(model.FieldMessage) {
		cur.Message = in.Message
	}
	if f.Has(model.FieldCreatedAt) {
		cur.CreatedAt = in.CreatedAt
	}
	if f.Has(model.FieldRead) {
		cur.Read = in.Read
	}
	if f.Has(model.FieldData) {
		cur.Data = in.Data
	}
	cur.Present = 0
	return cur
}

// sortNewestFirst orders by CreatedAt descending; equal timestamps fall
// back to ID so the order is deterministic.
func sortNewestFirst(ns []model.Notification) {
	sort.SliceStable(ns, func(i, j int) bool {
		if !ns[i].CreatedAt.Equal(ns[j].CreatedAt) {
			return ns[i].CreatedAt.After(ns[j].CreatedAt)
		}
		return ns[i].ID < ns[j].ID
	})
}

// countUnread returns the number of records with Read == false.
func countUnread(ns []model.Notification) int {
	n := 0
	for _, x := range ns {
		if !x.Read {
			n++
		}
	}
	return n
}
