// Package activity keeps a capped audit trail of admin actions in the
// "activity-log" blob, newest entries first.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pitchside/pitchside/internal/blob"
	"github.com/pitchside/pitchside/internal/model"
)

// maxEntries caps the stored trail. Older entries fall off the end.
const maxEntries = 500

// Entry is one recorded admin action.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Section   string    `json:"section"`
	Detail    string    `json:"detail,omitempty"`
}

// Recorder appends to and reads the audit trail. Recording failures are
// logged and swallowed: an audit write must never fail the action it
// describes.
type Recorder struct {
	blobs  blob.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder over the given blob store.
func NewRecorder(blobs blob.Store, logger *slog.Logger) *Recorder {
	return &Recorder{blobs: blobs, logger: logger, now: time.Now}
}

// Record prepends an entry to the trail, trimming to maxEntries.
func (r *Recorder) Record(ctx context.Context, actor, action, section, detail string) {
	entry := Entry{
		ID:        model.NewID(r.now()),
		Timestamp: r.now().UTC(),
		Actor:     actor,
		Action:    action,
		Section:   section,
		Detail:    detail,
	}
	err := r.modify(ctx, func(entries []Entry) []Entry {
		entries = append([]Entry{entry}, entries...)
		if len(entries) > maxEntries {
			entries = entries[:maxEntries]
		}
		return entries
	})
	if err != nil {
		r.logger.Error("record activity", "action", action, "section", section, "error", err)
	}
}

// All returns the trail, newest first.
func (r *Recorder) All(ctx context.Context) ([]Entry, error) {
	entries, _, err := r.load(ctx)
	return entries, err
}

func (r *Recorder) load(ctx context.Context) ([]Entry, int64, error) {
	data, version, err := r.blobs.Get(ctx, model.KeyActivity)
	if errors.Is(err, blob.ErrNotFound) {
		return []Entry{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, 0, fmt.Errorf("decode activity blob: %w", err)
	}
	return entries, version, nil
}

func (r *Recorder) modify(ctx context.Context, fn func([]Entry) []Entry) error {
	const attempts = 3
	var lastErr error
	for i := 0; i < attempts; i++ {
		entries, version, err := r.load(ctx)
		if err != nil {
			return err
		}
		data, err := json.Marshal(fn(entries))
		if err != nil {
			return fmt.Errorf("encode activity blob: %w", err)
		}
		if _, err := r.blobs.Put(ctx, model.KeyActivity, data, version); err != nil {
			if errors.Is(err, blob.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("update activity blob: %w", lastErr)
}
