package mutate

import (
	"context"
	"strings"

	"contentsort/internal/model"
	"contentsort/internal/perm"
	"contentsort/internal/store"
)

type FlagResult struct {
	Item         *model.Item
	Changed      bool
	EventPayload map[string]any
}

// SetItemLocked locks or unlocks an item for actorID. It enforces write access, and an
// item locked by another actor can only be unlocked by an admin.
// Callers are responsible for saving db.
func SetItemLocked(ctx context.Context, db *store.DB, actorID, itemID string, locked bool) (FlagResult, error) {
	itemID = strings.TrimSpace(itemID)
	actorID = strings.TrimSpace(actorID)
	if db == nil || itemID == "" || actorID == "" {
		return FlagResult{}, nil
	}

	it, ok := db.FindItem(itemID)
	if !ok {
		return FlagResult{}, NotFoundError{Kind: "item", ID: itemID}
	}
	actor, _ := db.FindActor(actorID)
	if !perm.CanWriteItem(actor, it) {
		return FlagResult{}, OwnerOnlyError{ActorID: actorID, OwnerActorID: it.OwnerActorID, ItemID: it.ID}
	}
	if perm.IsLockedForActor(it, actorID) && !actor.Admin {
		return FlagResult{}, LockedError{ItemID: it.ID, LockedBy: lockHolder(it)}
	}
	if it.Locked == locked {
		return FlagResult{Item: it, Changed: false}, nil
	}

	typ := "item.unlock"
	if locked {
		typ = "item.lock"
	}
	err := db.Edit(ctx, actorID, it, store.EditOptions{UpdateStatistics: true, EventType: typ}, func(staged *model.Item) error {
		staged.Locked = locked
		if locked {
			holder := actorID
			staged.LockedBy = &holder
		} else {
			staged.LockedBy = nil
		}
		return nil
	})
	if err != nil {
		return FlagResult{}, err
	}
	return FlagResult{
		Item:    it,
		Changed: true,
		EventPayload: map[string]any{
			"locked": it.Locked,
		},
	}, nil
}

// SetItemReadOnly sets item.ReadOnly. Callers are responsible for saving db.
func SetItemReadOnly(ctx context.Context, db *store.DB, actorID, itemID string, readOnly bool) (FlagResult, error) {
	itemID = strings.TrimSpace(itemID)
	actorID = strings.TrimSpace(actorID)
	if db == nil || itemID == "" || actorID == "" {
		return FlagResult{}, nil
	}

	it, ok := db.FindItem(itemID)
	if !ok {
		return FlagResult{}, NotFoundError{Kind: "item", ID: itemID}
	}
	actor, _ := db.FindActor(actorID)
	if !perm.CanWriteItem(actor, it) {
		return FlagResult{}, OwnerOnlyError{ActorID: actorID, OwnerActorID: it.OwnerActorID, ItemID: it.ID}
	}
	if it.ReadOnly == readOnly {
		return FlagResult{Item: it, Changed: false}, nil
	}
	err := db.Edit(ctx, actorID, it, store.EditOptions{UpdateStatistics: true, EventType: "item.readonly"}, func(staged *model.Item) error {
		staged.ReadOnly = readOnly
		return nil
	})
	if err != nil {
		return FlagResult{}, err
	}
	return FlagResult{
		Item:    it,
		Changed: true,
		EventPayload: map[string]any{
			"readOnly": it.ReadOnly,
		},
	}, nil
}

func lockHolder(it *model.Item) string {
	if it == nil || it.LockedBy == nil {
		return ""
	}
	return *it.LockedBy
}
