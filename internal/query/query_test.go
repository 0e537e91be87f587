package query

import (
	"strings"
	"testing"

	"contentsort/internal/model"
	"contentsort/internal/store"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	idRoot  = "a0000000-0000-0000-0000-000000000000"
	idHome  = "a1000000-0000-0000-0000-000000000000"
	idNews  = "a2000000-0000-0000-0000-000000000000"
	idAbout = "a3000000-0000-0000-0000-000000000000"
	idDeep  = "a4000000-0000-0000-0000-000000000000"
	idOther = "a5000000-0000-0000-0000-000000000000"
)

func strPtr(s string) *string { return &s }

func newTestDB() *store.DB {
	return &store.DB{Items: []model.Item{
		{ID: idRoot, Name: "content", TemplateName: "Root"},
		{ID: idHome, ParentID: strPtr(idRoot), Name: "home", TemplateName: "Folder", Language: "da"},
		{ID: idNews, ParentID: strPtr(idHome), Name: "news", TemplateName: "Page", SortOrder: 100,
			DisplayNames: map[string]string{"da": "Nyheder", "en": "News"}, Fields: map[string]string{"show": "1"}},
		{ID: idAbout, ParentID: strPtr(idHome), Name: "about", TemplateName: "Page", SortOrder: 200},
		{ID: idDeep, ParentID: strPtr(idNews), Name: "archive", TemplateName: "Page"},
		{ID: idOther, ParentID: strPtr(idRoot), Name: "media", TemplateName: "Folder", SortOrder: 100},
	}}
}

func names(items []*model.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func sameNames(got []*model.Item, want ...string) bool {
	g := names(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func TestParse(t *testing.T) {
	q, err := Parse("./*")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Absolute || len(q.Steps) != 2 || q.Steps[0].Axis != AxisSelf || q.Steps[1].Axis != AxisChild || q.Steps[1].Test != "*" {
		t.Fatalf("unexpected steps: %+v", q.Steps)
	}

	q, err = Parse("//*[@@templatename='Page' and @show='1' or @@name!='x']")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !q.Absolute || len(q.Steps) != 2 || q.Steps[0].Axis != AxisDescendantOrSelf {
		t.Fatalf("unexpected steps: %+v", q.Steps)
	}
	pred := q.Steps[1].Preds[0]
	if len(pred.Or) != 2 || len(pred.Or[0]) != 2 || len(pred.Or[1]) != 1 {
		t.Fatalf("unexpected predicate shape: %+v", pred)
	}
	if c := pred.Or[0][0]; !c.System || c.Attr != "templatename" || c.Op != "=" || c.Value != "Page" {
		t.Fatalf("unexpected cmp: %+v", c)
	}
	if c := pred.Or[0][1]; c.System || c.Attr != "show" {
		t.Fatalf("unexpected field cmp: %+v", c)
	}

	q, err = Parse("ancestor-or-self::#my item#")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Steps[0].Axis != AxisAncestorOrSelf || q.Steps[0].Test != "my item" {
		t.Fatalf("unexpected step: %+v", q.Steps[0])
	}
}

func TestParse_Errors(t *testing.T) {
	for _, src := range []string{
		"",
		"  ",
		"./*[",
		"./*]",
		"bogus::*",
		"*[@@nope='x']",
		"*[@a='x' and]",
		"*['x']",
		"news/",
		"#open",
		"*[@a='unterminated]",
	} {
		if _, err := Parse(src); err == nil {
			t.Fatalf("Parse(%q) should fail", src)
		}
	}
}

func TestSelect_Axes(t *testing.T) {
	db := newTestDB()
	home, _ := db.FindItem(idHome)
	news, _ := db.FindItem(idNews)

	cases := []struct {
		ctx   *model.Item
		query string
		want  []string
	}{
		{home, "./*", []string{"news", "about"}},
		{home, "*", []string{"news", "about"}},
		{home, ".", []string{"home"}},
		{home, "..", []string{"content"}},
		{home, "descendant::*", []string{"news", "archive", "about"}},
		{home, "descendant-or-self::*[@@templatename='page']", []string{"news", "archive", "about"}},
		{home, "*[@show]", []string{"news"}},
		{home, "*[@show!='1']", []string{"about"}},
		{news, "ancestor::*", []string{"content", "home"}},
		{news, "following-sibling::*", []string{"about"}},
		{news, "preceding-sibling::*", nil},
		{home, "/content/media", []string{"media"}},
		{home, "//#archive#", []string{"archive"}},
		{home, "*[@@id='" + store.ShortID(idAbout) + "']", []string{"about"}},
	}
	for _, tc := range cases {
		q, err := Parse(tc.query)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.query, err)
		}
		got, err := Select(db, tc.ctx, q)
		if err != nil {
			t.Fatalf("select %q: %v", tc.query, err)
		}
		if !sameNames(got, tc.want...) {
			t.Fatalf("%q = %v, want %v", tc.query, names(got), tc.want)
		}
	}
}

func TestSelectStore_UsesWholeStore(t *testing.T) {
	db := newTestDB()
	q, err := Parse("//*[@@templatename='Folder']")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := SelectStore(db, q)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !sameNames(got, "home", "media") {
		t.Fatalf("got %v", names(got))
	}
}

func TestResolver_FastIgnoresRoot(t *testing.T) {
	db := newTestDB()
	news, _ := db.FindItem(idNews)
	r := NewResolver(db, zap.NewNop())

	got := r.Resolve(news, "fast://*[@@templatename='Folder']")
	if !sameNames(got, "home", "media") {
		t.Fatalf("fast query = %v", names(got))
	}
	got = r.Resolve(news, "//*[@@templatename='Folder']")
	if !sameNames(got, "home", "media") {
		t.Fatalf("absolute axis query = %v", names(got))
	}
	got = r.Resolve(news, "./*")
	if !sameNames(got, "archive") {
		t.Fatalf("relative axis query = %v", names(got))
	}

	// A relative path means the store's top level under fast: and the root's children otherwise.
	got = r.Resolve(news, "fast:*")
	if !sameNames(got, "content") {
		t.Fatalf("relative fast query = %v", names(got))
	}
	got = r.Resolve(news, "*")
	if !sameNames(got, "archive") {
		t.Fatalf("relative query = %v", names(got))
	}
}

func TestResolver_UsesRootLanguage(t *testing.T) {
	db := newTestDB()
	home, _ := db.FindItem(idHome)
	r := NewResolver(db, nil)

	got := r.Resolve(home, "*[@@displayname='Nyheder']")
	if !sameNames(got, "news") {
		t.Fatalf("expected da display name match, got %v", names(got))
	}
	if db.Language() != store.DefaultLanguage {
		t.Fatalf("language leaked: %q", db.Language())
	}
}

func TestResolver_FailuresAreLoggedAndEmpty(t *testing.T) {
	db := newTestDB()
	home, _ := db.FindItem(idHome)
	core, logs := observer.New(zap.ErrorLevel)
	r := NewResolver(db, zap.New(core))

	got := r.Resolve(home, "./*[")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %v", got)
	}
	entries := logs.FilterMessage("Failed to execute query: ./*[").All()
	if len(entries) != 1 {
		t.Fatalf("expected one error log, got %d", logs.Len())
	}
	if q := entries[0].ContextMap()["query"]; q != "./*[" {
		t.Fatalf("logged query = %v", q)
	}

	if got := r.Resolve(nil, "./*"); got == nil || len(got) != 0 {
		t.Fatalf("nil root should give empty list")
	}
	if got := r.Resolve(home, " "); got == nil || len(got) != 0 {
		t.Fatalf("blank query should give empty list")
	}
	if got := NewResolver(nil, zap.New(core)).Resolve(home, "./*"); len(got) != 0 {
		t.Fatalf("missing store should give empty list")
	}
	if logs.Len() != 2 {
		t.Fatalf("expected two error logs, got %d", logs.Len())
	}
}

func TestResolver_RecoversFromPanic(t *testing.T) {
	db := newTestDB()
	home, _ := db.FindItem(idHome)
	db.Roots() // build indexes
	// Dropping items behind the index leaves child positions past the end of Items.
	db.Items = db.Items[:2]

	core, logs := observer.New(zap.ErrorLevel)
	got := NewResolver(db, zap.New(core)).Resolve(home, "./*")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", names(got))
	}
	entries := logs.FilterMessage("Failed to execute query: ./*").All()
	if len(entries) != 1 {
		t.Fatalf("expected one error log, got %d", logs.Len())
	}
	fields := entries[0].ContextMap()
	if fields["query"] != "./*" || fields["root"] != idHome {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if msg, _ := fields["error"].(string); !strings.HasPrefix(msg, "panic: ") {
		t.Fatalf("error field = %v", fields["error"])
	}
}

func TestIsFast(t *testing.T) {
	if !IsFast("fast:/content") || IsFast("/content") || IsFast(" fast:/x") {
		t.Fatalf("IsFast mismatch")
	}
}
