// Package content implements the generic collection store and bulk
// operations shared by every content type. Each collection is one JSON
// array blob; writes go through a conditional-put cycle so concurrent
// mutations never silently drop records.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pitchside/pitchside/internal/blob"
	"github.com/pitchside/pitchside/internal/model"
)

// ErrNotFound reports a record id missing from a collection.
var ErrNotFound = errors.New("item not found")

// Store manages one content collection. T is the pointer type of a content
// record (e.g. *model.Fixture); newT produces a zero value for decoding.
type Store[T model.Item] struct {
	blobs    blob.Store
	key      string
	typeName string
	newT     func() T
	now      func() time.Time
}

// NewStore creates a collection store over the given blob key. typeName is
// the singular noun used in error messages ("fixture", "news item").
func NewStore[T model.Item](blobs blob.Store, key, typeName string, newT func() T) *Store[T] {
	return &Store[T]{
		blobs:    blobs,
		key:      key,
		typeName: typeName,
		newT:     newT,
		now:      time.Now,
	}
}

// TypeName returns the singular noun for this collection.
func (s *Store[T]) TypeName() string { return s.typeName }

// All returns every record in the collection. An absent blob reads as an
// empty collection, never an error.
func (s *Store[T]) All(ctx context.Context) ([]T, error) {
	items, _, err := s.load(ctx)
	return items, err
}

// Get returns one record by id.
func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	items, _, err := s.load(ctx)
	if err != nil {
		return zero, err
	}
	for _, item := range items {
		if item.ItemID() == id {
			return item, nil
		}
	}
	return zero, fmt.Errorf("%s %q: %w", s.typeName, id, ErrNotFound)
}

// Create validates and appends a record. A missing id is assigned; a
// record whose id already exists replaces the stored one. createdAt is
// stamped server-side.
func (s *Store[T]) Create(ctx context.Context, item T) (T, error) {
	var zero T
	if err := item.Validate(); err != nil {
		return zero, err
	}
	if item.ItemID() == "" {
		item.SetItemID(model.NewID(s.now()))
	}
	stampCreated(item, s.now())

	err := s.modify(ctx, func(items []T) ([]T, error) {
		for i := range items {
			if items[i].ItemID() == item.ItemID() {
				items[i] = item
				return items, nil
			}
		}
		return append(items, item), nil
	})
	if err != nil {
		return zero, err
	}
	return item, nil
}

// Update applies a shallow merge of patch onto the stored record: fields
// present in patch overwrite, absent fields keep their stored value, and
// the id is immutable. updatedAt is stamped server-side.
func (s *Store[T]) Update(ctx context.Context, id string, patch map[string]any) (T, error) {
	var zero T
	var updated T
	err := s.modify(ctx, func(items []T) ([]T, error) {
		for i := range items {
			if items[i].ItemID() != id {
				continue
			}
			merged, err := s.merge(items[i], patch)
			if err != nil {
				return nil, err
			}
			if err := merged.Validate(); err != nil {
				return nil, err
			}
			items[i] = merged
			updated = merged
			return items, nil
		}
		return nil, fmt.Errorf("%s %q: %w", s.typeName, id, ErrNotFound)
	})
	if err != nil {
		return zero, err
	}
	return updated, nil
}

// Delete removes a record by id.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	return s.modify(ctx, func(items []T) ([]T, error) {
		for i := range items {
			if items[i].ItemID() == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("%s %q: %w", s.typeName, id, ErrNotFound)
	})
}

// merge overlays patch onto the JSON form of item and decodes the result
// into a fresh record. The id always comes from the stored record.
func (s *Store[T]) merge(item T, patch map[string]any) (T, error) {
	var zero T
	raw, err := json.Marshal(item)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", s.typeName, err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return zero, fmt.Errorf("decode %s: %w", s.typeName, err)
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		fields[k] = v
	}
	fields["updatedAt"] = s.now().UTC().Format(time.RFC3339Nano)

	raw, err = json.Marshal(fields)
	if err != nil {
		return zero, fmt.Errorf("encode %s patch: %w", s.typeName, err)
	}
	merged := s.newT()
	if err := json.Unmarshal(raw, merged); err != nil {
		return zero, fmt.Errorf("%w: %s", model.ErrValidation, err)
	}
	return merged, nil
}

func stampCreated(item model.Item, now time.Time) {
	if ts, ok := item.(interface{ SetCreatedAt(time.Time) }); ok {
		ts.SetCreatedAt(now)
	}
}

func (s *Store[T]) load(ctx context.Context) ([]T, int64, error) {
	data, version, err := s.blobs.Get(ctx, s.key)
	if errors.Is(err, blob.ErrNotFound) {
		return []T{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, 0, fmt.Errorf("decode %s collection: %w", s.typeName, err)
	}
	return items, version, nil
}

// modify applies fn under a read-modify-write cycle with bounded retries
// on version conflicts. fn may run more than once.
func (s *Store[T]) modify(ctx context.Context, fn func([]T) ([]T, error)) error {
	const attempts = 3
	var lastErr error
	for i := 0; i < attempts; i++ {
		items, version, err := s.load(ctx)
		if err != nil {
			return err
		}
		next, err := fn(items)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode %s collection: %w", s.typeName, err)
		}
		if _, err := s.blobs.Put(ctx, s.key, data, version); err != nil {
			if errors.Is(err, blob.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("update %s collection: %w", s.typeName, lastErr)
}
