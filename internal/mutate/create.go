package mutate

import (
	"context"
	"errors"
	"strings"
	"time"

	"contentsort/internal/model"
	"contentsort/internal/perm"
	"contentsort/internal/store"
	"contentsort/internal/tokens"
)

type CreateItemInput struct {
	// ParentRef is an id, ShortID or path; empty creates a root item.
	ParentRef    string
	Name         string
	TemplateName string
	Language     string
	DisplayName  string
	Fields       map[string]string
	// SortOrder, when nil, places the item after its last sibling.
	SortOrder *int
	Editors   []string
}

var ErrInvalidName = errors.New("item name must be non-empty and must not contain '/'")

// CreateItem adds an item under its parent. Field values are expanded with exp
// (nil skips expansion), the way new items get their standard values.
// Callers are responsible for saving db.
func CreateItem(ctx context.Context, db *store.DB, actorID string, in CreateItemInput, exp tokens.Expander) (*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.Contains(name, "/") {
		return nil, ErrInvalidName
	}
	actorID = strings.TrimSpace(actorID)
	actor, ok := db.FindActor(actorID)
	if !ok {
		return nil, NotFoundError{Kind: "actor", ID: actorID}
	}

	var parentID *string
	siblings := db.Roots()
	lang := strings.TrimSpace(in.Language)
	if ref := strings.TrimSpace(in.ParentRef); ref != "" {
		parent, ok := db.ResolveItemRef(ref)
		if !ok {
			return nil, NotFoundError{Kind: "item", ID: ref}
		}
		if !perm.CanWriteItem(actor, parent) {
			return nil, OwnerOnlyError{ActorID: actorID, OwnerActorID: parent.OwnerActorID, ItemID: parent.ID}
		}
		pid := parent.ID
		parentID = &pid
		siblings = db.ChildrenOf(parent.ID)
		if lang == "" {
			lang = parent.Language
		}
	}
	if lang == "" {
		lang = db.Language()
	}

	order := 0
	if in.SortOrder != nil {
		order = *in.SortOrder
	} else if n := len(siblings); n > 0 {
		order = siblings[n-1].SortOrder + SortOrderStep
	}

	now := time.Now().UTC()
	it := model.Item{
		ID:           store.NewItemID(),
		ParentID:     parentID,
		Name:         name,
		TemplateName: strings.TrimSpace(in.TemplateName),
		Language:     lang,
		SortOrder:    order,
		OwnerActorID: actorID,
		Editors:      append([]string{}, in.Editors...),
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedBy:    actorID,
		UpdatedAt:    now,
	}
	if dn := strings.TrimSpace(in.DisplayName); dn != "" {
		it.DisplayNames = map[string]string{lang: dn}
	}
	if len(in.Fields) > 0 {
		it.Fields = make(map[string]string, len(in.Fields))
		for k, v := range in.Fields {
			if exp != nil {
				v = exp.Expand(v, &it)
			}
			it.Fields[k] = v
		}
	}

	added := db.AddItem(it)
	db.RecordEvent(actorID, "item.create", added.ID, map[string]any{
		"name":      added.Name,
		"parentId":  parentID,
		"sortOrder": added.SortOrder,
	})
	return added, nil
}

// CreateActor adds an actor. Callers are responsible for saving db.
func CreateActor(db *store.DB, name string, admin bool) (*model.Actor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("actor name is required")
	}
	a := model.Actor{ID: store.NewActorID(), Name: name, Admin: admin}
	db.Actors = append(db.Actors, a)
	db.RecordEvent(a.ID, "actor.create", a.ID, map[string]any{"name": a.Name, "admin": a.Admin})
	return &db.Actors[len(db.Actors)-1], nil
}
