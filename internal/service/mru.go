package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"metaform/internal/infrastructure/storage/kv"
	"metaform/internal/schema"
	"metaform/pkg/logger"
)

// DefaultMRULimit bounds recently-used lists when the entity schema does not
// set one.
const DefaultMRULimit = 10

// MRUEntry is one recently touched record.
type MRUEntry struct {
	RecordID  string    `json:"recordId"`
	Label     string    `json:"label,omitempty"`
	TouchedAt time.Time `json:"touchedAt"`
}

// MRUTracker keeps per-user, per-entity most-recently-used record lists in a
// key/value store. A corrupt stored list reads as empty.
type MRUTracker struct {
	store kv.Storage
}

func NewMRUTracker(store kv.Storage) *MRUTracker {
	return &MRUTracker{store: store}
}

func mruKey(userID, entityType string) string {
	return fmt.Sprintf("mru:%s:%s", userID, entityType)
}

// Touch records an access. Touching an already listed record moves it to the
// front; the list is truncated to the entity's configured limit.
func (t *MRUTracker) Touch(ctx context.Context, userID string, entity *schema.EntitySchema, recordID, label string) {
	if entity == nil || !entity.Features.EnableMru || recordID == "" {
		return
	}
	limit := entity.Features.MruLimit
	if limit <= 0 {
		limit = DefaultMRULimit
	}

	entries := t.List(userID, entity.ID)
	next := make([]MRUEntry, 0, len(entries)+1)
	next = append(next, MRUEntry{RecordID: recordID, Label: label, TouchedAt: time.Now().UTC()})
	for _, entry := range entries {
		if entry.RecordID == recordID {
			continue
		}
		next = append(next, entry)
	}
	if len(next) > limit {
		next = next[:limit]
	}

	data, err := json.Marshal(next)
	if err != nil {
		logger.Error(ctx, "encode mru list failed", "entityType", entity.ID, "error", err)
		return
	}
	if err := t.store.SetItem(mruKey(userID, entity.ID), string(data)); err != nil {
		logger.Error(ctx, "persist mru list failed", "entityType", entity.ID, "error", err)
	}
}

// List returns the stored list, newest first. Missing or corrupt data yields
// an empty list.
func (t *MRUTracker) List(userID, entityType string) []MRUEntry {
	raw, ok := t.store.GetItem(mruKey(userID, entityType))
	if !ok {
		return nil
	}
	var entries []MRUEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}
	return entries
}
