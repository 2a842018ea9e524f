package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/pitchside/pitchside/internal/content"
	"github.com/pitchside/pitchside/internal/model"
	"github.com/pitchside/pitchside/internal/server/middleware"
)

// ChangeListener observes applied content mutations. The server wires it to
// the activity recorder and the fixture/notification hooks; it runs after
// the write has landed and must not fail the request.
type ChangeListener func(ctx context.Context, actor *model.AdminUser, section, action, id, label string)

// ContentHandler serves one content collection: list, create, update,
// delete, and the bulk endpoint. T is the pointer type of the record.
type ContentHandler[T model.Item] struct {
	store     *content.Store[T]
	section   string
	pluralKey string
	onChange  ChangeListener
}

// NewContentHandler creates a handler for one collection. section is the
// URL segment and activity-log section id ("fixtures"); pluralKey is the
// legacy bulk body key accepted alongside "items".
func NewContentHandler[T model.Item](store *content.Store[T], section, pluralKey string, onChange ChangeListener) *ContentHandler[T] {
	return &ContentHandler[T]{store: store, section: section, pluralKey: pluralKey, onChange: onChange}
}

// List returns the whole collection.
// GET /{section}
func (h *ContentHandler[T]) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load "+h.section)
		return
	}
	writeSuccess(w, http.StatusOK, items)
}

// Create validates and stores one record.
// POST /{section}
func (h *ContentHandler[T]) Create(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := readJSON(r, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	item, err := h.decode(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+h.store.TypeName()+" payload")
		return
	}
	created, err := h.store.Create(r.Context(), item)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.notify(r, "create", created.ItemID(), created.Label())
	writeJSON(w, http.StatusCreated, model.SuccessResponse{
		Success: true,
		Data:    created,
		Message: capitalize(h.store.TypeName()) + " created",
	})
}

// Update applies a shallow-merge patch to the record named by ?id=.
// PUT /{section}?id={id}
func (h *ContentHandler[T]) Update(w http.ResponseWriter, r *http.Request) {
	id := queryString(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing id parameter")
		return
	}
	var patch map[string]any
	if err := readJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	updated, err := h.store.Update(r.Context(), id, patch)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.notify(r, "update", updated.ItemID(), updated.Label())
	writeSuccess(w, http.StatusOK, updated)
}

// Delete removes the record named by ?id=.
// DELETE /{section}?id={id}
func (h *ContentHandler[T]) Delete(w http.ResponseWriter, r *http.Request) {
	if !model.CanPerformAction(middleware.UserFrom(r.Context()), "delete") {
		writeError(w, http.StatusForbidden, "You do not have permission to delete items")
		return
	}
	id := queryString(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing id parameter")
		return
	}
	item, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.notify(r, "delete", id, item.Label())
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   capitalize(h.store.TypeName()) + " deleted",
		"deletedId": id,
	})
}

// bulkRequest is the bulk endpoint payload. Items serves create and
// update; ItemIDs serves delete. Older dashboard builds send the items
// under the collection's plural key instead of "items"; Extra catches
// those so both shapes work.
type bulkRequest struct {
	Action  string            `json:"action"`
	Items   []json.RawMessage `json:"items"`
	ItemIDs []string          `json:"itemIds"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (b *bulkRequest) UnmarshalJSON(data []byte) error {
	type plain bulkRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var extra map[string]json.RawMessage
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	delete(extra, "action")
	delete(extra, "items")
	delete(extra, "itemIds")
	*b = bulkRequest(p)
	b.Extra = extra
	return nil
}

// Bulk applies one bulk operation to the collection.
// POST /{section}-bulk
func (h *ContentHandler[T]) Bulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(req.Items) == 0 && req.Extra != nil {
		if raw, ok := req.Extra[h.pluralKey]; ok {
			if err := json.Unmarshal(raw, &req.Items); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid "+h.pluralKey+" array")
				return
			}
		}
	}

	var (
		result *content.BulkResult
		err    error
	)
	switch req.Action {
	case "create":
		if len(req.Items) == 0 {
			writeError(w, http.StatusBadRequest, "No items provided")
			return
		}
		result, err = h.store.BulkCreate(r.Context(), req.Items)
	case "update":
		patches := make([]map[string]any, 0, len(req.Items))
		for _, raw := range req.Items {
			var patch map[string]any
			if err := json.Unmarshal(raw, &patch); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid item in update list")
				return
			}
			patches = append(patches, patch)
		}
		if len(patches) == 0 {
			writeError(w, http.StatusBadRequest, "No items provided")
			return
		}
		result, err = h.store.BulkUpdate(r.Context(), patches)
	case "delete":
		if !model.CanPerformAction(middleware.UserFrom(r.Context()), "delete") {
			writeError(w, http.StatusForbidden, "You do not have permission to delete items")
			return
		}
		if len(req.ItemIDs) == 0 {
			writeError(w, http.StatusBadRequest, "No itemIds provided")
			return
		}
		result, err = h.store.BulkDelete(r.Context(), req.ItemIDs)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown bulk action %q", req.Action))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Bulk operation failed")
		return
	}

	for _, s := range result.Created {
		h.notify(r, "create", s.ID, s.Label)
	}
	for _, s := range result.Updated {
		h.notify(r, "update", s.ID, s.Label)
	}
	for _, s := range result.Deleted {
		h.notify(r, "delete", s.ID, s.Label)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": map[string]int{
			"created":  len(result.Created),
			"updated":  len(result.Updated),
			"deleted":  len(result.Deleted),
			"failed":   len(result.Failed),
			"notFound": len(result.NotFound),
		},
		"details": result,
	})
}

func (h *ContentHandler[T]) decode(raw json.RawMessage) (T, error) {
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, err
	}
	// A literal null leaves the pointer nil.
	var zero T
	if any(item) == any(zero) {
		return item, errors.New("empty payload")
	}
	return item, nil
}

func (h *ContentHandler[T]) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, content.ErrNotFound):
		writeError(w, http.StatusNotFound, capitalize(h.store.TypeName())+" not found")
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Failed to save "+h.section)
	}
}

func (h *ContentHandler[T]) notify(r *http.Request, action, id, label string) {
	if h.onChange == nil {
		return
	}
	h.onChange(r.Context(), middleware.UserFrom(r.Context()), h.section, action, id, label)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
