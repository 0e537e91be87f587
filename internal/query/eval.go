package query

import (
	"errors"
	"sort"
	"strings"

	"contentsort/internal/model"
	"contentsort/internal/store"
)

var ErrNoStore = errors.New("query: no store")

// node is either an item or the document node (item == nil) above the tree roots.
type node struct {
	item *model.Item
}

func (n node) isDoc() bool { return n.item == nil }

type evaluator struct {
	db *store.DB

	// indexed lets document-scoped descendant steps use the store's name/template
	// indexes instead of walking the tree.
	indexed bool

	order map[string]int
}

// Select evaluates q against db. Relative queries start at ctxItem; absolute
// queries (or a nil ctxItem) start at the document node.
func Select(db *store.DB, ctxItem *model.Item, q *Query) ([]*model.Item, error) {
	if db == nil {
		return nil, ErrNoStore
	}
	ev := &evaluator{db: db}
	start := node{item: ctxItem}
	if q.Absolute {
		start = node{}
	}
	return ev.run(start, q)
}

// SelectStore evaluates q against the whole store using direct index lookups where
// possible. Relative queries are treated as rooted at the document node.
func SelectStore(db *store.DB, q *Query) ([]*model.Item, error) {
	if db == nil {
		return nil, ErrNoStore
	}
	ev := &evaluator{db: db, indexed: true}
	return ev.run(node{}, q)
}

func (ev *evaluator) run(start node, q *Query) ([]*model.Item, error) {
	cur := []node{start}
	for i := 0; i < len(q.Steps); i++ {
		st := q.Steps[i]

		if ev.indexed && len(cur) == 1 && cur[0].isDoc() {
			// "//x" parses as descendant-or-self::*/child::x; from the document node
			// that is every item matching x, so go straight to the index.
			if st.Axis == AxisDescendantOrSelf && st.Test == "*" && len(st.Preds) == 0 && i+1 < len(q.Steps) && q.Steps[i+1].Axis == AxisChild {
				i++
				cur = ev.indexLookup(q.Steps[i])
				continue
			}
			if st.Axis == AxisDescendant {
				cur = ev.indexLookup(st)
				continue
			}
		}

		var next []node
		for _, n := range cur {
			for _, c := range ev.axis(n, st.Axis) {
				if ev.matches(c, st) {
					next = append(next, c)
				}
			}
		}
		cur = ev.docOrder(next)
		if len(cur) == 0 {
			break
		}
	}

	out := make([]*model.Item, 0, len(cur))
	for _, n := range cur {
		if !n.isDoc() {
			out = append(out, n.item)
		}
	}
	return out, nil
}

func (ev *evaluator) indexLookup(st Step) []node {
	var cands []*model.Item
	switch {
	case st.Test != "*":
		cands = ev.db.ItemsByName(st.Test)
	case templateEquality(st) != "":
		cands = ev.db.ItemsByTemplate(templateEquality(st))
	default:
		for _, r := range ev.db.Roots() {
			cands = append(cands, r)
			cands = append(cands, ev.db.Descendants(r.ID)...)
		}
	}
	var out []node
	for _, c := range cands {
		n := node{item: c}
		if ev.matches(n, st) {
			out = append(out, n)
		}
	}
	return ev.docOrder(out)
}

// templateEquality returns the template name when the step's only predicate is a
// plain @@templatename='x' comparison.
func templateEquality(st Step) string {
	if len(st.Preds) != 1 || len(st.Preds[0].Or) != 1 || len(st.Preds[0].Or[0]) != 1 {
		return ""
	}
	c := st.Preds[0].Or[0][0]
	if c.System && c.Attr == "templatename" && c.Op == "=" {
		return c.Value
	}
	return ""
}

func (ev *evaluator) wrap(items []*model.Item) []node {
	out := make([]node, 0, len(items))
	for _, it := range items {
		out = append(out, node{item: it})
	}
	return out
}

func (ev *evaluator) children(n node) []node {
	if n.isDoc() {
		return ev.wrap(ev.db.Roots())
	}
	return ev.wrap(ev.db.ChildrenOf(n.item.ID))
}

func (ev *evaluator) parent(n node) (node, bool) {
	if n.isDoc() {
		return node{}, false
	}
	if p, ok := ev.db.Parent(n.item); ok {
		return node{item: p}, true
	}
	return node{}, true
}

func (ev *evaluator) siblings(n node) []node {
	if n.isDoc() {
		return nil
	}
	p, ok := ev.parent(n)
	if !ok {
		return nil
	}
	return ev.children(p)
}

func (ev *evaluator) axis(n node, ax Axis) []node {
	switch ax {
	case AxisSelf:
		return []node{n}
	case AxisChild:
		return ev.children(n)
	case AxisDescendant, AxisDescendantOrSelf:
		var out []node
		if ax == AxisDescendantOrSelf {
			out = append(out, n)
		}
		if n.isDoc() {
			for _, r := range ev.db.Roots() {
				out = append(out, node{item: r})
				out = append(out, ev.wrap(ev.db.Descendants(r.ID))...)
			}
			return out
		}
		return append(out, ev.wrap(ev.db.Descendants(n.item.ID))...)
	case AxisParent:
		if p, ok := ev.parent(n); ok {
			return []node{p}
		}
		return nil
	case AxisAncestor, AxisAncestorOrSelf:
		var out []node
		if ax == AxisAncestorOrSelf {
			out = append(out, n)
		}
		cur := n
		for i := 0; i < 512; i++ {
			p, ok := ev.parent(cur)
			if !ok {
				break
			}
			out = append(out, p)
			cur = p
		}
		return out
	case AxisFollowingSibling, AxisPrecedingSibling:
		sibs := ev.siblings(n)
		idx := -1
		for i, s := range sibs {
			if s.item == n.item {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil
		}
		if ax == AxisFollowingSibling {
			return sibs[idx+1:]
		}
		return sibs[:idx]
	}
	return nil
}

func (ev *evaluator) matches(n node, st Step) bool {
	if n.isDoc() {
		// The document node only passes through self / descendant-or-self with "*"
		// and no predicates (e.g. "//" at the start of an absolute query).
		return st.Test == "*" && len(st.Preds) == 0
	}
	if st.Test != "*" && !strings.EqualFold(n.item.Name, st.Test) {
		return false
	}
	for _, p := range st.Preds {
		if !ev.evalExpr(n.item, p) {
			return false
		}
	}
	return true
}

func (ev *evaluator) evalExpr(it *model.Item, ex Expr) bool {
	for _, and := range ex.Or {
		ok := true
		for _, c := range and {
			if !ev.evalCmp(it, c) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (ev *evaluator) evalCmp(it *model.Item, c Cmp) bool {
	var v string
	if c.System {
		switch c.Attr {
		case "name":
			v = it.Name
		case "key":
			v = strings.ToLower(it.Name)
		case "id":
			v = it.ID
		case "templatename":
			v = it.TemplateName
		case "displayname":
			v = ev.db.DisplayName(it)
		}
	} else {
		v = it.Field(c.Attr)
	}
	switch c.Op {
	case "":
		return v != ""
	case "=":
		if c.System && c.Attr == "id" {
			return store.NormalizeID(v) == store.NormalizeID(c.Value)
		}
		if c.System {
			return strings.EqualFold(v, c.Value)
		}
		return v == c.Value
	case "!=":
		if c.System {
			return !strings.EqualFold(v, c.Value)
		}
		return v != c.Value
	}
	return false
}

// docOrder de-duplicates nodes and sorts them in document order.
func (ev *evaluator) docOrder(ns []node) []node {
	if len(ns) == 0 {
		return nil
	}
	if ev.order == nil {
		ev.order = map[string]int{}
		i := 0
		for _, r := range ev.db.Roots() {
			ev.order[r.ID] = i
			i++
			for _, d := range ev.db.Descendants(r.ID) {
				ev.order[d.ID] = i
				i++
			}
		}
	}
	seen := map[string]bool{}
	out := make([]node, 0, len(ns))
	for _, n := range ns {
		key := ""
		if !n.isDoc() {
			key = n.item.ID
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].isDoc() {
			return !out[j].isDoc()
		}
		if out[j].isDoc() {
			return false
		}
		return ev.order[out[i].item.ID] < ev.order[out[j].item.ID]
	})
	return out
}
