package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"contentsort/internal/model"
)

const (
	sqliteFileName = "content.sqlite"

	// DefaultLanguage is the content language used when none is set.
	DefaultLanguage = "en"
)

type DB struct {
	Version        int           `json:"version"`
	CurrentActorID string        `json:"currentActorId,omitempty"`
	Actors         []model.Actor `json:"actors"`
	Items          []model.Item  `json:"items"`

	// Derived indexes for lookups. These are not persisted.
	idxBuilt            bool             `json:"-"`
	idxByID             map[string]int   `json:"-"`
	idxChildrenByParent map[string][]int `json:"-"`
	idxByName           map[string][]int `json:"-"`
	idxByTemplate       map[string][]int `json:"-"`

	lang    string        `json:"-"`
	pending []model.Event `json:"-"`
}

type Store struct {
	Dir string
}

func DiscoverDir(start string) (string, bool) {
	dir := start
	for {
		candidate := filepath.Join(dir, ".contentsort")
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func DefaultDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if found, ok := DiscoverDir(cwd); ok {
		return found, nil
	}
	return filepath.Join(cwd, ".contentsort"), nil
}

func (s Store) Ensure() error {
	return os.MkdirAll(s.Dir, 0o755)
}

func (s Store) sqlitePath() string {
	return filepath.Join(s.Dir, sqliteFileName)
}

func (s Store) Load() (*DB, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	return s.LoadSQLite(context.Background())
}

// Save persists db and flushes events recorded by edit contexts since the last save.
func (s Store) Save(db *DB) error {
	if err := s.Ensure(); err != nil {
		return err
	}
	return s.SaveSQLite(context.Background(), db)
}

func (db *DB) FindActor(id string) (*model.Actor, bool) {
	for i := range db.Actors {
		if db.Actors[i].ID == id {
			return &db.Actors[i], true
		}
	}
	return nil, false
}

func (db *DB) FindItem(id string) (*model.Item, bool) {
	if db == nil {
		return nil, false
	}
	db.ensureIndexes()
	idx, ok := db.idxByID[NormalizeID(id)]
	if !ok {
		return nil, false
	}
	return &db.Items[idx], true
}

// AddItem appends it and invalidates the derived indexes.
func (db *DB) AddItem(it model.Item) *model.Item {
	db.Items = append(db.Items, it)
	db.invalidate()
	return &db.Items[len(db.Items)-1]
}

func (db *DB) invalidate() {
	db.idxBuilt = false
}

func (db *DB) ensureIndexes() {
	if db == nil || db.idxBuilt {
		return
	}
	db.idxByID = map[string]int{}
	db.idxChildrenByParent = map[string][]int{}
	db.idxByName = map[string][]int{}
	db.idxByTemplate = map[string][]int{}

	for i, it := range db.Items {
		db.idxByID[NormalizeID(it.ID)] = i
		pid := ""
		if it.ParentID != nil {
			pid = NormalizeID(*it.ParentID)
		}
		db.idxChildrenByParent[pid] = append(db.idxChildrenByParent[pid], i)
		db.idxByName[strings.ToLower(it.Name)] = append(db.idxByName[strings.ToLower(it.Name)], i)
		if t := strings.ToLower(strings.TrimSpace(it.TemplateName)); t != "" {
			db.idxByTemplate[t] = append(db.idxByTemplate[t], i)
		}
	}
	for pid := range db.idxChildrenByParent {
		idxs := db.idxChildrenByParent[pid]
		sort.SliceStable(idxs, func(i, j int) bool {
			return compareSiblings(&db.Items[idxs[i]], &db.Items[idxs[j]]) < 0
		})
	}

	db.idxBuilt = true
}

func (db *DB) pointers(idxs []int) []*model.Item {
	out := make([]*model.Item, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, &db.Items[i])
	}
	return out
}

// Roots returns items without a parent, in sibling order.
func (db *DB) Roots() []*model.Item {
	if db == nil {
		return nil
	}
	db.ensureIndexes()
	return db.pointers(db.idxChildrenByParent[""])
}

// ChildrenOf returns the children of parentItemID in sibling order.
func (db *DB) ChildrenOf(parentItemID string) []*model.Item {
	if db == nil {
		return nil
	}
	db.ensureIndexes()
	parentItemID = NormalizeID(parentItemID)
	if parentItemID == "" {
		return nil
	}
	return db.pointers(db.idxChildrenByParent[parentItemID])
}

func (db *DB) Parent(it *model.Item) (*model.Item, bool) {
	if it == nil || it.ParentID == nil {
		return nil, false
	}
	return db.FindItem(*it.ParentID)
}

// Descendants returns every item below id in document order (depth-first, sibling order).
func (db *DB) Descendants(id string) []*model.Item {
	var out []*model.Item
	var walk func(pid string, depth int)
	walk = func(pid string, depth int) {
		// Guard against corrupt parent cycles.
		if depth > 512 {
			return
		}
		for _, c := range db.ChildrenOf(pid) {
			out = append(out, c)
			walk(c.ID, depth+1)
		}
	}
	walk(id, 0)
	return out
}

// ItemsByName is a direct index lookup over the whole store (case-insensitive).
func (db *DB) ItemsByName(name string) []*model.Item {
	if db == nil {
		return nil
	}
	db.ensureIndexes()
	return db.pointers(db.idxByName[strings.ToLower(strings.TrimSpace(name))])
}

// ItemsByTemplate is a direct index lookup over the whole store (case-insensitive).
func (db *DB) ItemsByTemplate(templateName string) []*model.Item {
	if db == nil {
		return nil
	}
	db.ensureIndexes()
	return db.pointers(db.idxByTemplate[strings.ToLower(strings.TrimSpace(templateName))])
}

// PathOf returns the slash-separated path of it from the tree root, e.g. /content/home/news.
func (db *DB) PathOf(it *model.Item) string {
	if it == nil {
		return ""
	}
	var segs []string
	cur := it
	for i := 0; cur != nil && i < 512; i++ {
		segs = append(segs, cur.Name)
		p, ok := db.Parent(cur)
		if !ok {
			break
		}
		cur = p
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return "/" + strings.Join(segs, "/")
}

// FindByPath resolves an absolute path (case-insensitive segments) to an item.
func (db *DB) FindByPath(path string) (*model.Item, bool) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, false
	}
	segs := strings.Split(path, "/")
	var cur *model.Item
	for i, seg := range segs {
		var sibs []*model.Item
		if i == 0 {
			sibs = db.Roots()
		} else {
			sibs = db.ChildrenOf(cur.ID)
		}
		cur = nil
		for _, s := range sibs {
			if strings.EqualFold(s.Name, seg) {
				cur = s
				break
			}
		}
		if cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// ResolveItemRef accepts an item id, a ShortID or an absolute path.
func (db *DB) ResolveItemRef(ref string) (*model.Item, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, false
	}
	if strings.HasPrefix(ref, "/") {
		return db.FindByPath(ref)
	}
	if id, err := DecodeShortID(ref); err == nil {
		return db.FindItem(id)
	}
	return db.FindItem(ref)
}

// SortItemsBySortOrder sorts items in place using sibling order:
// sort order, then name, then id.
func SortItemsBySortOrder(items []*model.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return compareSiblings(items[i], items[j]) < 0
	})
}

func compareSiblings(a, b *model.Item) int {
	if a.SortOrder != b.SortOrder {
		if a.SortOrder < b.SortOrder {
			return -1
		}
		return 1
	}
	an := strings.ToLower(a.Name)
	bn := strings.ToLower(b.Name)
	if an != bn {
		if an < bn {
			return -1
		}
		return 1
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}

// PendingEvents returns events recorded since the last save.
func (db *DB) PendingEvents() []model.Event {
	return append([]model.Event{}, db.pending...)
}

// RecordEvent queues an event; it is written with the next Save.
func (db *DB) RecordEvent(actorID, typ, entityID string, payload map[string]any) {
	db.recordEvent(model.Event{
		TS:       time.Now().UTC(),
		ActorID:  actorID,
		Type:     typ,
		EntityID: entityID,
		Payload:  payload,
	})
}

func (db *DB) recordEvent(ev model.Event) {
	db.pending = append(db.pending, ev)
}
