package dialog

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"contentsort/internal/i18n"
	"contentsort/internal/model"
	"contentsort/internal/mutate"
	"contentsort/internal/perm"
	"contentsort/internal/query"
	"contentsort/internal/render"
	"contentsort/internal/store"
	"contentsort/internal/tokens"

	"go.uber.org/zap"
)

// SortOrderField is the form field carrying the submitted order.
const SortOrderField = "sortorder"

// DialogValueSorted is returned to the opener when a new order was applied.
const DialogValueSorted = "1"

// Options are the dialog's request parameters.
type Options struct {
	// ItemRef names the root item: an id, a ShortID or an absolute path.
	ItemRef  string `json:"id"`
	Query    string `json:"query"`
	Field    string `json:"field,omitempty"`
	Title    string `json:"title,omitempty"`
	Text     string `json:"text,omitempty"`
	Language string `json:"lang,omitempty"`
}

var ErrMissingItem = errors.New("dialog: missing id")

// ParseOptions reads dialog options from request parameters. defaultQuery is used
// when the request carries no query.
func ParseOptions(v url.Values, defaultQuery string) (Options, error) {
	o := Options{
		ItemRef:  strings.TrimSpace(v.Get("id")),
		Query:    strings.TrimSpace(v.Get("query")),
		Field:    strings.TrimSpace(v.Get("field")),
		Title:    strings.TrimSpace(v.Get("title")),
		Text:     strings.TrimSpace(v.Get("text")),
		Language: strings.TrimSpace(v.Get("lang")),
	}
	if o.ItemRef == "" {
		return Options{}, ErrMissingItem
	}
	if o.Query == "" {
		o.Query = defaultQuery
	}
	return o, nil
}

// Values encodes o back into request parameters.
func (o Options) Values() url.Values {
	v := url.Values{}
	v.Set("id", o.ItemRef)
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("query", o.Query)
	set("field", o.Field)
	set("title", o.Title)
	set("text", o.Text)
	set("lang", o.Language)
	return v
}

type Settings struct {
	BaseSortOrder int
	Delimiter     string
	DefaultQuery  string
	ClipLength    int
}

// Dialog loads, renders and applies a manual reorder of content items.
type Dialog struct {
	db       *store.DB
	resolver *query.Resolver
	catalog  *i18n.Catalog
	expander tokens.Expander
	log      *zap.Logger
	settings Settings
}

func New(db *store.DB, settings Settings, log *zap.Logger) *Dialog {
	if log == nil {
		log = zap.NewNop()
	}
	if settings.Delimiter == "" {
		settings.Delimiter = "|"
	}
	if settings.DefaultQuery == "" {
		settings.DefaultQuery = "./*"
	}
	cat, err := i18n.Default()
	if err != nil {
		log.Warn("translations unavailable", zap.Error(err))
	}
	d := &Dialog{
		db:       db,
		resolver: query.NewResolver(db, log),
		catalog:  cat,
		log:      log,
		settings: settings,
	}
	d.expander = tokens.Default{
		Parent: func(it *model.Item) *model.Item {
			p, _ := db.Parent(it)
			return p
		},
		ShortID:  store.ShortID,
		Language: db.Language(),
	}
	return d
}

// WithExpander replaces the display-text token expander.
func (d *Dialog) WithExpander(e tokens.Expander) *Dialog {
	d.expander = e
	return d
}

func (d *Dialog) Settings() Settings { return d.settings }

// View is everything needed to show the dialog.
type View struct {
	Options     Options        `json:"options"`
	RootID      string         `json:"rootId"`
	RootPath    string         `json:"rootPath"`
	Language    string         `json:"language"`
	Title       string         `json:"title"`
	Text        string         `json:"text"`
	OKLabel     string         `json:"okLabel"`
	CancelLabel string         `json:"cancelLabel"`
	Message     string         `json:"message,omitempty"`
	Enabled     bool           `json:"enabled"`
	Entries     []render.Entry `json:"entries"`
	Items       []*model.Item  `json:"-"`
	ListHTML    template.HTML  `json:"-"`
}

func (d *Dialog) root(ref string) (*model.Item, error) {
	it, ok := d.db.ResolveItemRef(ref)
	if !ok {
		return nil, mutate.NotFoundError{Kind: "item", ID: ref}
	}
	return it, nil
}

// Candidates resolves the items the dialog reorders, in current sibling order.
func (d *Dialog) Candidates(opts Options) (*model.Item, []*model.Item, error) {
	root, err := d.root(opts.ItemRef)
	if err != nil {
		return nil, nil, err
	}
	q := opts.Query
	if strings.TrimSpace(q) == "" {
		q = d.settings.DefaultQuery
	}
	items := d.resolver.Resolve(root, q)
	store.SortItemsBySortOrder(items)
	return root, items, nil
}

// Load resolves and renders the candidate list. Fewer than two candidates leave the
// dialog disabled; that is a valid state, not an error.
func (d *Dialog) Load(opts Options, actorID string) (View, error) {
	root, items, err := d.Candidates(opts)
	if err != nil {
		return View{}, err
	}
	lang := opts.Language
	if lang == "" {
		lang = root.Language
	}
	if lang == "" {
		lang = store.DefaultLanguage
	}
	actor, _ := d.db.FindActor(actorID)

	ropts := render.Options{
		Field:      opts.Field,
		Language:   lang,
		Expander:   d.expanderFor(lang),
		ClipLength: d.settings.ClipLength,
		Editable:   func(it *model.Item) bool { return perm.IsEditable(actor, it) },
		ShortID:    store.ShortID,
	}
	list, err := render.RenderList(items, ropts)
	if err != nil {
		return View{}, err
	}

	v := View{
		Options:     opts,
		RootID:      root.ID,
		RootPath:    d.db.PathOf(root),
		Language:    lang,
		Title:       firstNonEmpty(opts.Title, d.t(lang, "sort.title")),
		Text:        firstNonEmpty(opts.Text, d.t(lang, "sort.text")),
		OKLabel:     d.t(lang, "sort.ok"),
		CancelLabel: d.t(lang, "sort.cancel"),
		Enabled:     len(items) >= 2,
		Entries:     render.Entries(items, ropts),
		Items:       items,
		ListHTML:    list,
	}
	switch len(items) {
	case 0:
		v.Message = d.t(lang, "sort.empty")
	case 1:
		v.Message = d.t(lang, "sort.single")
	}
	return v, nil
}

func (d *Dialog) expanderFor(lang string) tokens.Expander {
	if def, ok := d.expander.(tokens.Default); ok {
		def.Language = lang
		return def
	}
	return d.expander
}

func (d *Dialog) t(lang, key string) string {
	if d.catalog == nil {
		return key
	}
	return d.catalog.Translate(lang, key)
}

// ParseSortOrder splits the submitted field into item ids, dropping empty entries and
// entries that are not valid ShortIDs.
func ParseSortOrder(field, delimiter string) (ids []string, invalid []string) {
	if delimiter == "" {
		delimiter = "|"
	}
	for _, part := range strings.Split(field, delimiter) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		// Element ids are "I<ShortID>"; accept both forms.
		raw := part
		if len(raw) == 33 && (raw[0] == 'I' || raw[0] == 'i') {
			raw = raw[1:]
		}
		id, err := store.DecodeShortID(raw)
		if err != nil {
			invalid = append(invalid, part)
			continue
		}
		ids = append(ids, id)
	}
	return ids, invalid
}

// Outcome reports what OnOK did.
type Outcome struct {
	// DialogValue is "1" when a new order was applied, "" on the default path.
	DialogValue string            `json:"dialogValue"`
	Result      mutate.SortResult `json:"result"`
	Invalid     []string          `json:"invalid,omitempty"`
	Message     string            `json:"message"`
}

// OnOK applies the submitted order. An empty submission writes nothing and takes the
// default path. Callers are responsible for saving db.
func (d *Dialog) OnOK(ctx context.Context, opts Options, actorID, sortOrder string) (Outcome, error) {
	lang := opts.Language
	ids, invalid := ParseSortOrder(sortOrder, d.settings.Delimiter)
	if len(invalid) > 0 {
		d.log.Warn("ignoring invalid sortorder entries", zap.Strings("entries", invalid))
	}
	if len(ids) == 0 {
		return Outcome{Invalid: invalid, Message: d.t(lang, "sort.unchanged")}, nil
	}

	_, items, err := d.Candidates(opts)
	if err != nil {
		return Outcome{}, err
	}
	res, err := mutate.ApplySortOrder(ctx, d.db, actorID, items, ids, mutate.SortOptions{Base: d.settings.BaseSortOrder})
	if err != nil {
		return Outcome{}, fmt.Errorf("apply sort order: %w", err)
	}
	d.log.Debug("sort order applied",
		zap.String("root", opts.ItemRef),
		zap.String("query", opts.Query),
		zap.Int("changed", len(res.Changes)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return Outcome{
		DialogValue: DialogValueSorted,
		Result:      res,
		Invalid:     invalid,
		Message:     d.t(lang, "sort.saved"),
	}, nil
}

// ShortIDs returns the ShortIDs of items in order, joined with the dialog delimiter.
// This is the value a client submits to keep the current order.
func (d *Dialog) ShortIDs(items []*model.Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, store.ShortID(it.ID))
	}
	return strings.Join(parts, d.settings.Delimiter)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
