package i18n

import (
	"embed"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localesFS embed.FS

const fallbackLanguage = "en"

// Catalog holds one flat key -> text dictionary per language.
type Catalog struct {
	dicts   map[string]map[string]string
	tags    []language.Tag
	names   []string
	matcher language.Matcher
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog built from the embedded locales.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load(localesFS, "locales")
	})
	return defaultCatalog, defaultErr
}

// Load reads every <lang>.yaml under dir.
func Load(fsys fs.FS, dir string) (*Catalog, error) {
	paths, err := fs.Glob(fsys, dir+"/*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	c := &Catalog{dicts: map[string]map[string]string{}}
	for _, p := range paths {
		b, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, err
		}
		var dict map[string]string
		if err := yaml.Unmarshal(b, &dict); err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		tag, err := language.Parse(name)
		if err != nil {
			return nil, err
		}
		c.dicts[tag.String()] = dict
		c.tags = append(c.tags, tag)
		c.names = append(c.names, tag.String())
	}

	// The matcher's first tag is its default; keep the fallback language first.
	for i, t := range c.tags {
		if t.String() == fallbackLanguage && i != 0 {
			c.tags[0], c.tags[i] = c.tags[i], c.tags[0]
			c.names[0], c.names[i] = c.names[i], c.names[0]
			break
		}
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// Languages lists the loaded language tags.
func (c *Catalog) Languages() []string {
	out := append([]string{}, c.names...)
	sort.Strings(out)
	return out
}

// Match returns the loaded language closest to lang (e.g. "da-DK" -> "da").
func (c *Catalog) Match(lang string) string {
	if c == nil || len(c.tags) == 0 {
		return fallbackLanguage
	}
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return c.names[0]
	}
	_, idx, _ := c.matcher.Match(tag)
	return c.names[idx]
}

// Translate looks key up for lang, then for English, then returns key itself.
func (c *Catalog) Translate(lang, key string) string {
	if c == nil {
		return key
	}
	if v := c.dicts[c.Match(lang)][key]; v != "" {
		return v
	}
	if v := c.dicts[fallbackLanguage][key]; v != "" {
		return v
	}
	return key
}

// T translates with the default catalog.
func T(lang, key string) string {
	c, err := Default()
	if err != nil {
		return key
	}
	return c.Translate(lang, key)
}
