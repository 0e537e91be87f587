package dialog

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"contentsort/internal/model"
	"contentsort/internal/mutate"
	"contentsort/internal/store"
	"contentsort/internal/tokens"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	idHome  = "c0000000-0000-0000-0000-000000000000"
	idA     = "c1000000-0000-0000-0000-000000000000"
	idB     = "c2000000-0000-0000-0000-000000000000"
	idC     = "c3000000-0000-0000-0000-000000000000"
	idEmpty = "c4000000-0000-0000-0000-000000000000"
)

func strPtr(s string) *string { return &s }

func newTestDB() *store.DB {
	return &store.DB{
		Actors: []model.Actor{{ID: "act-ed", Name: "ed"}},
		Items: []model.Item{
			{ID: idHome, Name: "home", Language: "da"},
			{ID: idA, ParentID: strPtr(idHome), Name: "a", SortOrder: 0, OwnerActorID: "act-ed",
				DisplayNames: map[string]string{"da": "Alfa"}},
			{ID: idB, ParentID: strPtr(idHome), Name: "b", SortOrder: 100, OwnerActorID: "act-ed"},
			{ID: idC, ParentID: strPtr(idHome), Name: "c", SortOrder: 200, ReadOnly: true,
				Fields: map[string]string{"headline": "<b>Big</b> $name"}},
			{ID: idEmpty, ParentID: strPtr(idA), Name: "leaf"},
		},
	}
}

func itemNames(items []*model.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestParseOptions(t *testing.T) {
	v := url.Values{"id": {" /home "}, "field": {"headline"}, "lang": {"de"}}
	o, err := ParseOptions(v, "./*")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Options{ItemRef: "/home", Query: "./*", Field: "headline", Language: "de"}
	if diff := cmp.Diff(want, o); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
	back, err := ParseOptions(o.Values(), "other")
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if diff := cmp.Diff(o, back); diff != "" {
		t.Fatalf("values round trip (-want +got):\n%s", diff)
	}

	if _, err := ParseOptions(url.Values{"query": {"./*"}}, "./*"); !errors.Is(err, ErrMissingItem) {
		t.Fatalf("expected ErrMissingItem, got %v", err)
	}
}

func TestParseSortOrder(t *testing.T) {
	a, b := store.ShortID(idA), store.ShortID(idB)
	ids, invalid := ParseSortOrder("I"+a+"||"+strings.ToLower(b)+"| bogus |", "|")
	if diff := cmp.Diff([]string{idA, idB}, ids); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"bogus"}, invalid); diff != "" {
		t.Fatalf("invalid (-want +got):\n%s", diff)
	}

	ids, _ = ParseSortOrder(b+","+a, ",")
	if diff := cmp.Diff([]string{idB, idA}, ids); diff != "" {
		t.Fatalf("custom delimiter (-want +got):\n%s", diff)
	}

	if ids, invalid := ParseSortOrder("", "|"); len(ids) != 0 || len(invalid) != 0 {
		t.Fatalf("empty field = %v %v", ids, invalid)
	}
}

func TestLoad(t *testing.T) {
	db := newTestDB()
	d := New(db, Settings{ClipLength: 40}, zap.NewNop())

	v, err := d.Load(Options{ItemRef: "/home", Query: "./*", Field: "headline"}, "act-ed")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !v.Enabled || v.Message != "" {
		t.Fatalf("enabled=%v message=%q", v.Enabled, v.Message)
	}
	if v.Language != "da" || v.Title != "Sorter" || v.RootPath != "/home" || v.RootID != idHome {
		t.Fatalf("view header = %q %q %q %q", v.Language, v.Title, v.RootPath, v.RootID)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, itemNames(v.Items)); diff != "" {
		t.Fatalf("items (-want +got):\n%s", diff)
	}
	texts := []string{}
	editable := []bool{}
	for _, e := range v.Entries {
		texts = append(texts, e.Text)
		editable = append(editable, e.Editable)
	}
	if diff := cmp.Diff([]string{"Alfa", "b", "Big c"}, texts); diff != "" {
		t.Fatalf("texts (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{true, true, false}, editable); diff != "" {
		t.Fatalf("editable (-want +got):\n%s", diff)
	}
	if v.Entries[0].ElementID != "I"+store.ShortID(idA) {
		t.Fatalf("element id = %q", v.Entries[0].ElementID)
	}
	if !strings.Contains(string(v.ListHTML), `id="I`+store.ShortID(idB)+`"`) {
		t.Fatalf("list html missing entry:\n%s", v.ListHTML)
	}
}

func TestLoad_CustomExpander(t *testing.T) {
	db := newTestDB()
	d := New(db, Settings{ClipLength: 40}, zap.NewNop()).WithExpander(tokens.Nop)

	v, err := d.Load(Options{ItemRef: "/home", Query: "./*", Field: "headline"}, "act-ed")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	texts := []string{}
	for _, e := range v.Entries {
		texts = append(texts, e.Text)
	}
	if diff := cmp.Diff([]string{"Alfa", "b", "Big $name"}, texts); diff != "" {
		t.Fatalf("texts (-want +got):\n%s", diff)
	}
}

func TestLoad_OverridesAndLanguage(t *testing.T) {
	db := newTestDB()
	d := New(db, Settings{}, nil)
	v, err := d.Load(Options{ItemRef: store.ShortID(idHome), Title: "Reorder", Text: "Custom", Language: "en"}, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v.Title != "Reorder" || v.Text != "Custom" || v.OKLabel != "OK" || v.CancelLabel != "Cancel" {
		t.Fatalf("labels = %+v", v)
	}
	// Default query is used when none is given.
	if len(v.Items) != 3 {
		t.Fatalf("items = %v", itemNames(v.Items))
	}
	for _, e := range v.Entries {
		if e.Editable {
			t.Fatalf("unknown actor should not edit %q", e.Text)
		}
	}
}

func TestLoad_FewerThanTwoDisables(t *testing.T) {
	db := newTestDB()
	d := New(db, Settings{}, nil)

	v, err := d.Load(Options{ItemRef: "/home/a", Language: "en"}, "act-ed")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v.Enabled || v.Message != "There is only one item, so there is nothing to sort." {
		t.Fatalf("single: enabled=%v message=%q", v.Enabled, v.Message)
	}

	v, err = d.Load(Options{ItemRef: "/home/a/leaf", Language: "en"}, "act-ed")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v.Enabled || v.Message != "There are no items to sort." || len(v.Entries) != 0 {
		t.Fatalf("empty: enabled=%v message=%q", v.Enabled, v.Message)
	}
}

func TestLoad_BadQueryIsEmptyNotError(t *testing.T) {
	db := newTestDB()
	core, logs := observer.New(zap.ErrorLevel)
	d := New(db, Settings{}, zap.New(core))

	v, err := d.Load(Options{ItemRef: "/home", Query: "./*["}, "act-ed")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v.Enabled || len(v.Items) != 0 {
		t.Fatalf("bad query should give an empty, disabled dialog")
	}
	if logs.Len() != 1 {
		t.Fatalf("expected query failure to be logged, got %d entries", logs.Len())
	}
}

func TestLoad_UnknownRoot(t *testing.T) {
	d := New(newTestDB(), Settings{}, nil)
	_, err := d.Load(Options{ItemRef: "/nope"}, "")
	var nf mutate.NotFoundError
	if !errors.As(err, &nf) || nf.ID != "/nope" {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestOnOK_AppliesInRequestOrder(t *testing.T) {
	db := newTestDB()
	d := New(db, Settings{BaseSortOrder: 1000}, nil)
	order := strings.Join([]string{"I" + store.ShortID(idC), store.ShortID(idA)}, "|")

	out, err := d.OnOK(context.Background(), Options{ItemRef: "/home", Language: "en"}, "act-ed", order)
	if err != nil {
		t.Fatalf("on ok: %v", err)
	}
	if out.DialogValue != DialogValueSorted || !out.Result.Applied || out.Message != "The new order has been saved." {
		t.Fatalf("outcome = %+v", out)
	}
	got := map[string]int{}
	for _, it := range db.Items {
		got[it.ID] = it.SortOrder
	}
	// Read-only items are still reordered: writes run with security disabled.
	if got[idC] != 1000 || got[idA] != 1100 || got[idB] != 100 {
		t.Fatalf("sort orders = %v", got)
	}
	if n := len(db.PendingEvents()); n != 2 {
		t.Fatalf("events = %d", n)
	}
}

func TestOnOK_EmptySubmissionTakesDefaultPath(t *testing.T) {
	db := newTestDB()
	core, logs := observer.New(zap.WarnLevel)
	d := New(db, Settings{}, zap.New(core))

	out, err := d.OnOK(context.Background(), Options{ItemRef: "/home"}, "act-ed", " | bogus ")
	if err != nil {
		t.Fatalf("on ok: %v", err)
	}
	if out.DialogValue != "" || out.Result.Applied || out.Message != "Nothing was reordered." {
		t.Fatalf("outcome = %+v", out)
	}
	if diff := cmp.Diff([]string{"bogus"}, out.Invalid); diff != "" {
		t.Fatalf("invalid (-want +got):\n%s", diff)
	}
	if logs.FilterMessage("ignoring invalid sortorder entries").Len() != 1 {
		t.Fatalf("expected invalid entries to be logged")
	}
	if n := len(db.PendingEvents()); n != 0 {
		t.Fatalf("events = %d", n)
	}
}

func TestOnOK_IDsOutsideCandidatesAreSkipped(t *testing.T) {
	db := newTestDB()
	d := New(db, Settings{}, nil)
	order := store.ShortID(idEmpty) + "|" + store.ShortID(idB)

	out, err := d.OnOK(context.Background(), Options{ItemRef: "/home"}, "act-ed", order)
	if err != nil {
		t.Fatalf("on ok: %v", err)
	}
	if diff := cmp.Diff([]string{idEmpty}, out.Result.Skipped); diff != "" {
		t.Fatalf("skipped (-want +got):\n%s", diff)
	}
	leaf, _ := db.FindItem(idEmpty)
	b, _ := db.FindItem(idB)
	if leaf.SortOrder != 0 || b.SortOrder != 0 {
		t.Fatalf("leaf=%d b=%d", leaf.SortOrder, b.SortOrder)
	}
}

func TestShortIDs(t *testing.T) {
	db := newTestDB()
	d := New(db, Settings{Delimiter: ","}, nil)
	_, items, err := d.Candidates(Options{ItemRef: "/home"})
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	want := store.ShortID(idA) + "," + store.ShortID(idB) + "," + store.ShortID(idC)
	if got := d.ShortIDs(items); got != want {
		t.Fatalf("ShortIDs = %q, want %q", got, want)
	}
}
