package content

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pitchside/pitchside/internal/model"
)

// ItemSummary identifies one record touched by a bulk operation.
type ItemSummary struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Failure records one input rejected during a bulk create or update.
type Failure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// BulkResult reports the outcome of a bulk operation. Valid inputs are
// applied even when others in the same request fail; the caller decides how
// to present the partial outcome.
type BulkResult struct {
	Created  []ItemSummary `json:"created,omitempty"`
	Updated  []ItemSummary `json:"updated,omitempty"`
	Deleted  []ItemSummary `json:"deleted,omitempty"`
	Failed   []Failure     `json:"failed,omitempty"`
	NotFound []string      `json:"notFound,omitempty"`
}

// BulkCreate decodes and validates each raw input and applies the valid
// ones in a single collection write, reporting per-index failures for the
// rest. An input carrying an id that already exists replaces that record,
// matching Create; when a batch repeats an id, the last input wins.
func (s *Store[T]) BulkCreate(ctx context.Context, inputs []json.RawMessage) (*BulkResult, error) {
	result := &BulkResult{}
	valid := make([]T, 0, len(inputs))
	seen := make(map[string]int, len(inputs))
	for i, raw := range inputs {
		item := s.newT()
		if err := json.Unmarshal(raw, item); err != nil {
			result.Failed = append(result.Failed, Failure{Index: i, Reason: fmt.Sprintf("malformed %s: %v", s.typeName, err)})
			continue
		}
		if err := item.Validate(); err != nil {
			result.Failed = append(result.Failed, Failure{Index: i, Reason: err.Error()})
			continue
		}
		if item.ItemID() == "" {
			item.SetItemID(model.NewID(s.now()))
		}
		stampCreated(item, s.now())
		if at, ok := seen[item.ItemID()]; ok {
			valid[at] = item
			continue
		}
		seen[item.ItemID()] = len(valid)
		valid = append(valid, item)
	}

	if len(valid) > 0 {
		err := s.modify(ctx, func(items []T) ([]T, error) {
			byID := make(map[string]int, len(items))
			for i := range items {
				byID[items[i].ItemID()] = i
			}
			for _, item := range valid {
				if at, ok := byID[item.ItemID()]; ok {
					items[at] = item
					continue
				}
				byID[item.ItemID()] = len(items)
				items = append(items, item)
			}
			return items, nil
		})
		if err != nil {
			return nil, err
		}
	}
	for _, item := range valid {
		result.Created = append(result.Created, ItemSummary{ID: item.ItemID(), Label: item.Label()})
	}
	return result, nil
}

// BulkUpdate applies one shallow-merge patch per input. Patches without an
// id are reported in Failed; ids not present in the collection are listed
// in NotFound. All merges land in a single collection write.
func (s *Store[T]) BulkUpdate(ctx context.Context, patches []map[string]any) (*BulkResult, error) {
	result := &BulkResult{}
	err := s.modify(ctx, func(items []T) ([]T, error) {
		// modify may rerun fn; the result is rebuilt from scratch each pass.
		*result = BulkResult{}
		byID := make(map[string]int, len(items))
		for i := range items {
			byID[items[i].ItemID()] = i
		}
		for i, patch := range patches {
			id, _ := patch["id"].(string)
			if id == "" {
				result.Failed = append(result.Failed, Failure{Index: i, Reason: "missing required field \"id\""})
				continue
			}
			idx, ok := byID[id]
			if !ok {
				result.NotFound = append(result.NotFound, id)
				continue
			}
			merged, err := s.merge(items[idx], patch)
			if err != nil {
				result.Failed = append(result.Failed, Failure{Index: i, Reason: err.Error()})
				continue
			}
			if err := merged.Validate(); err != nil {
				result.Failed = append(result.Failed, Failure{Index: i, Reason: err.Error()})
				continue
			}
			items[idx] = merged
			result.Updated = append(result.Updated, ItemSummary{ID: id, Label: merged.Label()})
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BulkDelete removes every listed id in a single collection write. Unknown
// ids are reported in NotFound, not treated as errors.
func (s *Store[T]) BulkDelete(ctx context.Context, ids []string) (*BulkResult, error) {
	result := &BulkResult{}
	err := s.modify(ctx, func(items []T) ([]T, error) {
		*result = BulkResult{}
		byID := make(map[string]T, len(items))
		for i := range items {
			byID[items[i].ItemID()] = items[i]
		}
		remove := make(map[string]bool, len(ids))
		for _, id := range ids {
			item, ok := byID[id]
			if !ok {
				result.NotFound = append(result.NotFound, id)
				continue
			}
			if remove[id] {
				continue
			}
			remove[id] = true
			result.Deleted = append(result.Deleted, ItemSummary{ID: id, Label: item.Label()})
		}
		kept := items[:0]
		for _, item := range items {
			if !remove[item.ItemID()] {
				kept = append(kept, item)
			}
		}
		return kept, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
