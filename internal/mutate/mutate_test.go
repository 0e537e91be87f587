package mutate

import (
	"context"
	"errors"
	"testing"

	"contentsort/internal/model"
	"contentsort/internal/store"
	"contentsort/internal/tokens"
)

const (
	idParent = "b0000000-0000-0000-0000-000000000000"
	idA      = "b1000000-0000-0000-0000-000000000000"
	idB      = "b2000000-0000-0000-0000-000000000000"
	idC      = "b3000000-0000-0000-0000-000000000000"
	idX      = "b9000000-0000-0000-0000-000000000000"
)

func strPtr(s string) *string { return &s }

func newTestDB() *store.DB {
	return &store.DB{
		Actors: []model.Actor{
			{ID: "act-owner", Name: "owner"},
			{ID: "act-admin", Name: "admin", Admin: true},
			{ID: "act-other", Name: "other"},
		},
		Items: []model.Item{
			{ID: idParent, Name: "home", OwnerActorID: "act-owner"},
			{ID: idA, ParentID: strPtr(idParent), Name: "a", SortOrder: 0},
			{ID: idB, ParentID: strPtr(idParent), Name: "b", SortOrder: 100},
			{ID: idC, ParentID: strPtr(idParent), Name: "c", SortOrder: 200},
		},
	}
}

func orders(db *store.DB) map[string]int {
	out := map[string]int{}
	for _, it := range db.Items {
		out[it.ID] = it.SortOrder
	}
	return out
}

func TestApplySortOrder_RequestOrderFromBase(t *testing.T) {
	db := newTestDB()
	cands := db.ChildrenOf(idParent)

	res, err := ApplySortOrder(context.Background(), db, "act-other", cands, []string{idC, idA}, SortOptions{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	got := orders(db)
	if got[idC] != 0 || got[idA] != 100 {
		t.Fatalf("named items = C:%d A:%d, want C:0 A:100", got[idC], got[idA])
	}
	if got[idB] != 100 {
		t.Fatalf("unnamed item changed: %d", got[idB])
	}
	if !res.Applied || len(res.Changes) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Changes[0] != (SortChange{ID: idC, From: 200, To: 0}) {
		t.Fatalf("first change = %+v", res.Changes[0])
	}
	evs := db.PendingEvents()
	if len(evs) != 2 || evs[0].Type != "item.sortorder" || evs[0].ActorID != "act-other" {
		t.Fatalf("events = %+v", evs)
	}
	it, _ := db.FindItem(idC)
	if it.UpdatedBy != "act-other" {
		t.Fatalf("statistics not stamped: %q", it.UpdatedBy)
	}
}

func TestApplySortOrder_UnknownIDsDoNotConsumePositions(t *testing.T) {
	db := newTestDB()
	cands := db.ChildrenOf(idParent)

	res, err := ApplySortOrder(context.Background(), db, "", cands, []string{idX, idB, idParent, idA}, SortOptions{Base: 1000})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	got := orders(db)
	if got[idB] != 1000 || got[idA] != 1100 {
		t.Fatalf("B:%d A:%d, want B:1000 A:1100", got[idB], got[idA])
	}
	if got[idParent] != 0 {
		t.Fatalf("non-candidate changed: %d", got[idParent])
	}
	if len(res.Skipped) != 2 || res.Skipped[0] != idX || res.Skipped[1] != idParent {
		t.Fatalf("skipped = %v", res.Skipped)
	}
}

func TestApplySortOrder_EmptyIsNoop(t *testing.T) {
	db := newTestDB()
	res, err := ApplySortOrder(context.Background(), db, "", db.ChildrenOf(idParent), nil, SortOptions{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Applied || len(res.Changes) != 0 {
		t.Fatalf("result = %+v", res)
	}
	if n := len(db.PendingEvents()); n != 0 {
		t.Fatalf("events recorded: %d", n)
	}
}

func TestApplySortOrder_DuplicateLastWins(t *testing.T) {
	db := newTestDB()
	_, err := ApplySortOrder(context.Background(), db, "", db.ChildrenOf(idParent), []string{idA, idB, idA}, SortOptions{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	got := orders(db)
	if got[idA] != 200 || got[idB] != 100 {
		t.Fatalf("A:%d B:%d, want A:200 B:100", got[idA], got[idB])
	}
}

func TestApplySortOrder_AcceptsShortIDs(t *testing.T) {
	db := newTestDB()
	_, err := ApplySortOrder(context.Background(), db, "", db.ChildrenOf(idParent), []string{store.ShortID(idC)}, SortOptions{Base: 5})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := orders(db)[idC]; got != 5 {
		t.Fatalf("C = %d", got)
	}
}

func TestApplySortOrder_CanceledContext(t *testing.T) {
	db := newTestDB()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ApplySortOrder(ctx, db, "", db.ChildrenOf(idParent), []string{idC, idA}, SortOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestSetItemLocked(t *testing.T) {
	db := newTestDB()
	ctx := context.Background()

	if _, err := SetItemLocked(ctx, db, "act-other", idParent, true); !errors.As(err, new(OwnerOnlyError)) {
		t.Fatalf("expected OwnerOnlyError, got %v", err)
	}
	res, err := SetItemLocked(ctx, db, "act-owner", idParent, true)
	if err != nil || !res.Changed || !res.Item.Locked || *res.Item.LockedBy != "act-owner" {
		t.Fatalf("lock: %+v %v", res, err)
	}
	res, err = SetItemLocked(ctx, db, "act-owner", idParent, true)
	if err != nil || res.Changed {
		t.Fatalf("second lock should be a no-op: %+v %v", res, err)
	}

	db.Items[0].Editors = []string{"act-other"}
	if _, err := SetItemLocked(ctx, db, "act-other", idParent, false); !errors.As(err, new(LockedError)) {
		t.Fatalf("expected LockedError, got %v", err)
	}
	res, err = SetItemLocked(ctx, db, "act-admin", idParent, false)
	if err != nil || !res.Changed || res.Item.Locked || res.Item.LockedBy != nil {
		t.Fatalf("admin unlock: %+v %v", res, err)
	}
	if _, err := SetItemLocked(ctx, db, "act-owner", idX, true); !errors.As(err, new(NotFoundError)) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSetItemReadOnly(t *testing.T) {
	db := newTestDB()
	res, err := SetItemReadOnly(context.Background(), db, "act-owner", store.ShortID(idParent), true)
	if err != nil {
		t.Fatalf("readonly: %v", err)
	}
	if !res.Changed || !res.Item.ReadOnly {
		t.Fatalf("readonly: %+v", res)
	}
	evs := db.PendingEvents()
	if len(evs) != 1 || evs[0].Type != "item.readonly" {
		t.Fatalf("events = %+v", evs)
	}
}

func TestCreateItem(t *testing.T) {
	db := newTestDB()
	ctx := context.Background()
	db.Items[0].Language = "da"

	exp := tokens.Default{Parent: func(it *model.Item) *model.Item {
		p, _ := db.Parent(it)
		return p
	}}
	it, err := CreateItem(ctx, db, "act-owner", CreateItemInput{
		ParentRef:   "/home",
		Name:        "d",
		DisplayName: "Dee",
		Fields:      map[string]string{"title": "$parentname/$name"},
	}, exp)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if it.SortOrder != 300 {
		t.Fatalf("sort order = %d, want after last sibling", it.SortOrder)
	}
	if it.Language != "da" || it.DisplayName("da") != "Dee" {
		t.Fatalf("language = %q display = %q", it.Language, it.DisplayName("da"))
	}
	if it.Field("title") != "home/d" {
		t.Fatalf("title = %q", it.Field("title"))
	}
	if got, ok := db.FindByPath("/home/d"); !ok || got.ID != it.ID {
		t.Fatalf("created item not reachable by path")
	}

	if _, err := CreateItem(ctx, db, "act-other", CreateItemInput{ParentRef: "/home", Name: "e"}, nil); !errors.As(err, new(OwnerOnlyError)) {
		t.Fatalf("expected OwnerOnlyError, got %v", err)
	}
	if _, err := CreateItem(ctx, db, "act-owner", CreateItemInput{Name: "a/b"}, nil); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := CreateItem(ctx, db, "act-nobody", CreateItemInput{Name: "x"}, nil); !errors.As(err, new(NotFoundError)) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	root, err := CreateItem(ctx, db, "act-other", CreateItemInput{Name: "second-root"}, nil)
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	if root.ParentID != nil || root.Language != store.DefaultLanguage || root.SortOrder != SortOrderStep {
		t.Fatalf("root = %+v", root)
	}
}

func TestCreateActor(t *testing.T) {
	db := &store.DB{}
	a, err := CreateActor(db, " editor ", true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Name != "editor" || !a.Admin {
		t.Fatalf("actor = %+v", a)
	}
	if _, ok := db.FindActor(a.ID); !ok {
		t.Fatalf("actor not stored")
	}
	if _, err := CreateActor(db, " ", false); err == nil {
		t.Fatalf("expected error for blank name")
	}
}
