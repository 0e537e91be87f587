package tokens

import (
	"sort"
	"strings"
	"time"

	"contentsort/internal/model"
)

// Expander expands placeholder tokens in a field value or display text.
type Expander interface {
	Expand(text string, it *model.Item) string
}

// ExpanderFunc adapts a func to Expander.
type ExpanderFunc func(text string, it *model.Item) string

func (f ExpanderFunc) Expand(text string, it *model.Item) string { return f(text, it) }

// Nop leaves text untouched.
var Nop Expander = ExpanderFunc(func(text string, _ *model.Item) string { return text })

// Default expands the standard tokens:
//
//	$name $displayname $id $shortid $parentid $parentname $templatename $date $time $now
//
// Tokens are matched longest first, so $name does not clobber $parentname.
type Default struct {
	// Parent resolves an item's parent; nil disables $parentid / $parentname.
	Parent func(*model.Item) *model.Item
	// ShortID formats ids for $shortid; nil falls back to the raw id.
	ShortID  func(id string) string
	Language string
	Now      func() time.Time
}

func (d Default) Expand(text string, it *model.Item) string {
	if it == nil || !strings.Contains(text, "$") {
		return text
	}
	now := time.Now().UTC()
	if d.Now != nil {
		now = d.Now()
	}
	shortID := it.ID
	if d.ShortID != nil {
		shortID = d.ShortID(it.ID)
	}
	vals := map[string]string{
		"$name":         it.Name,
		"$displayname":  it.DisplayName(d.Language),
		"$id":           it.ID,
		"$shortid":      shortID,
		"$templatename": it.TemplateName,
		"$date":         now.Format("20060102"),
		"$time":         now.Format("150405"),
		"$now":          now.Format("20060102T150405"),
		"$parentid":     "",
		"$parentname":   "",
	}
	if d.Parent != nil {
		if p := d.Parent(it); p != nil {
			vals["$parentid"] = p.ID
			vals["$parentname"] = p.Name
		}
	}

	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, vals[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
