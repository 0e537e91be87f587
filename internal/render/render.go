package render

import (
	"bytes"
	"html"
	"html/template"
	"strings"
	"unicode/utf8"

	"contentsort/internal/model"
	"contentsort/internal/tokens"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultClipLength is the display-text limit in runes.
const DefaultClipLength = 40

type Options struct {
	// Field, when set, supplies the display text instead of the display name.
	Field    string
	Language string
	// Expander expands placeholder tokens in the display text; nil skips expansion.
	Expander   tokens.Expander
	ClipLength int
	// Editable decides the editable flag per item; nil treats every item as editable.
	Editable func(*model.Item) bool
	// ShortID formats item ids for element ids.
	ShortID func(id string) string
}

// Entry is one rendered list row.
type Entry struct {
	ElementID string `json:"elementId"`
	ItemID    string `json:"itemId"`
	Text      string `json:"text"`
	Editable  bool   `json:"editable"`
}

var stripPolicy = bluemonday.StrictPolicy()

var listTmpl = template.Must(template.New("sort-list").Parse(
	`<ul id="sort-list" class="sort-list">` +
		`{{range .}}<li id="{{.ElementID}}" class="sortable{{if not .Editable}} readonly{{end}}" data-editable="{{.Editable}}">{{.Text}}</li>{{end}}` +
		`</ul>`))

// Entries computes display rows for items in the given order.
func Entries(items []*model.Item, opts Options) []Entry {
	clip := opts.ClipLength
	if clip <= 0 {
		clip = DefaultClipLength
	}
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		id := it.ID
		if opts.ShortID != nil {
			id = opts.ShortID(it.ID)
		}
		editable := true
		if opts.Editable != nil {
			editable = opts.Editable(it)
		}
		out = append(out, Entry{
			ElementID: "I" + id,
			ItemID:    it.ID,
			Text:      DisplayText(it, opts, clip),
			Editable:  editable,
		})
	}
	return out
}

// RenderList renders items as the sortable list fragment.
func RenderList(items []*model.Item, opts Options) (template.HTML, error) {
	var b bytes.Buffer
	if err := listTmpl.Execute(&b, Entries(items, opts)); err != nil {
		return "", err
	}
	return template.HTML(b.String()), nil
}

// DisplayText picks the field value or display name, expands tokens, strips markup
// and clips to clip runes.
func DisplayText(it *model.Item, opts Options, clip int) string {
	text := ""
	if f := strings.TrimSpace(opts.Field); f != "" {
		text = it.Field(f)
	}
	if strings.TrimSpace(text) == "" {
		text = it.DisplayName(opts.Language)
	}
	if opts.Expander != nil {
		text = opts.Expander.Expand(text, it)
	}
	return Clip(StripTags(text), clip)
}

// StripTags removes all markup and returns plain text with collapsed whitespace.
func StripTags(s string) string {
	s = stripPolicy.Sanitize(s)
	// bluemonday escapes text; html/template escapes again on output.
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// Clip shortens s to at most n runes, ending with "..." when cut.
func Clip(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	return strings.TrimSpace(string([]rune(s)[:n-3])) + "..."
}
