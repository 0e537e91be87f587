package query

import (
	"fmt"
	"strings"

	"contentsort/internal/model"
	"contentsort/internal/store"

	"go.uber.org/zap"
)

// FastPrefix selects the store-wide index dialect.
const FastPrefix = "fast:"

// Resolver turns a content query into a candidate list. It never fails: any
// problem is logged with the offending query and yields an empty list.
type Resolver struct {
	db  *store.DB
	log *zap.Logger
}

func NewResolver(db *store.DB, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{db: db, log: log}
}

// IsFast reports whether query uses the fast dialect.
func IsFast(query string) bool {
	return strings.HasPrefix(query, FastPrefix)
}

// Resolve returns the items matching query.
//
// "fast:<q>" evaluates <q> over the whole store through direct index lookups.
// Anything else is an axis query evaluated relative to root. The root item's
// language is current for the duration of the query.
func (r *Resolver) Resolve(root *model.Item, query string) (items []*model.Item) {
	items = []*model.Item{}
	if root == nil {
		r.log.Debug("query skipped: no root item", zap.String("query", query))
		return items
	}
	if strings.TrimSpace(query) == "" {
		r.log.Debug("query skipped: empty query", zap.String("root", root.ID))
		return items
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Failed to execute query: "+query,
				zap.String("query", query),
				zap.String("root", root.ID),
				zap.Error(fmt.Errorf("panic: %v", rec)),
			)
			items = []*model.Item{}
		}
	}()

	res, err := r.resolve(root, query)
	if err != nil {
		r.log.Error("Failed to execute query: "+query,
			zap.String("query", query),
			zap.String("root", root.ID),
			zap.Error(err),
		)
		return items
	}
	if res == nil {
		return items
	}
	return res
}

func (r *Resolver) resolve(root *model.Item, query string) ([]*model.Item, error) {
	if r.db == nil {
		return nil, ErrNoStore
	}
	defer r.db.SwitchLanguage(root.Language)()

	if IsFast(query) {
		q, err := Parse(strings.TrimPrefix(query, FastPrefix))
		if err != nil {
			return nil, err
		}
		return SelectStore(r.db, q)
	}
	q, err := Parse(query)
	if err != nil {
		return nil, err
	}
	return Select(r.db, root, q)
}
