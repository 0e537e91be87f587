package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contentsort/internal/model"
	"contentsort/internal/perm"
)

// FieldExpander expands default-value tokens (e.g. $name) in a field value.
type FieldExpander interface {
	Expand(text string, it *model.Item) string
}

// EditOptions controls what an edit context does besides the write itself.
type EditOptions struct {
	// UpdateStatistics stamps UpdatedAt/UpdatedBy.
	UpdateStatistics bool
	// Silent suppresses the audit event for the edit.
	Silent bool
	// ExpandDefaults runs Expander over every field after fn returns.
	ExpandDefaults bool
	Expander       FieldExpander

	// EventType overrides the recorded event type (default "item.update").
	EventType string
	Payload   map[string]any
}

type WriteDeniedError struct {
	ActorID string
	ItemID  string
}

func (e WriteDeniedError) Error() string {
	return fmt.Sprintf("write denied: actor %s cannot edit item %s", e.ActorID, e.ItemID)
}

var ErrItemNotInStore = errors.New("item not in store")

// Edit runs fn against a copy of it and commits the copy back into db when fn succeeds.
// When fn returns an error the stored item is left as it was.
//
// Write access is checked for actorID unless ctx carries perm.WithSecurityDisabled.
// The item pointer stays valid: the committed copy replaces the stored value in place.
func (db *DB) Edit(ctx context.Context, actorID string, it *model.Item, opts EditOptions, fn func(*model.Item) error) error {
	if db == nil || it == nil {
		return ErrItemNotInStore
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	db.ensureIndexes()
	idx, ok := db.idxByID[NormalizeID(it.ID)]
	if !ok {
		return ErrItemNotInStore
	}
	stored := &db.Items[idx]

	if !perm.SecurityDisabled(ctx) {
		actor, _ := db.FindActor(actorID)
		if !perm.CanWriteItem(actor, stored) {
			return WriteDeniedError{ActorID: actorID, ItemID: stored.ID}
		}
	}

	staged := stored.Clone()
	if err := fn(&staged); err != nil {
		return err
	}
	// Identity and placement are owned by the store, not by edits.
	staged.ID = stored.ID
	staged.ParentID = stored.ParentID

	if opts.ExpandDefaults && opts.Expander != nil {
		for k, v := range staged.Fields {
			staged.Fields[k] = opts.Expander.Expand(v, &staged)
		}
	}
	if opts.UpdateStatistics {
		staged.UpdatedAt = time.Now().UTC()
		staged.UpdatedBy = actorID
	}

	*stored = staged
	db.invalidate()

	if !opts.Silent {
		typ := opts.EventType
		if typ == "" {
			typ = "item.update"
		}
		db.recordEvent(model.Event{
			TS:       time.Now().UTC(),
			ActorID:  actorID,
			Type:     typ,
			EntityID: stored.ID,
			Payload:  opts.Payload,
		})
	}
	return nil
}
