package mutate

import (
	"context"
	"strings"

	"contentsort/internal/model"
	"contentsort/internal/perm"
	"contentsort/internal/store"
)

// SortOrderStep is the gap between consecutive sort order values.
const SortOrderStep = 100

type SortOptions struct {
	// Base is the sort order given to the first matched item.
	Base int
}

type SortChange struct {
	ID   string `json:"id"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

type SortResult struct {
	// Applied is false when no ids were submitted; callers then take their default path.
	Applied bool         `json:"applied"`
	Changes []SortChange `json:"changes"`
	Skipped []string     `json:"skipped,omitempty"`
}

// ApplySortOrder writes Base, Base+100, Base+200, ... into the candidates named by ids,
// in the order of ids.
//
// Each id is looked up in candidates by identity; ids with no matching candidate are
// skipped and do not advance the counter. Candidates not named keep their value.
// A repeated id is written again at its later position.
//
// Writes run with security disabled inside an edit context that stamps statistics
// and records an event but does not expand default values. Callers are responsible
// for saving db. A failed write is returned as is; earlier writes stay applied.
func ApplySortOrder(ctx context.Context, db *store.DB, actorID string, candidates []*model.Item, ids []string, opts SortOptions) (SortResult, error) {
	res := SortResult{Changes: []SortChange{}}
	if db == nil || len(ids) == 0 {
		return res, nil
	}
	res.Applied = true

	pos := opts.Base
	for _, id := range ids {
		it := findCandidate(candidates, id)
		if it == nil {
			res.Skipped = append(res.Skipped, id)
			continue
		}
		from := it.SortOrder
		to := pos
		err := perm.RunWithSecurityDisabled(ctx, func(ctx context.Context) error {
			return db.Edit(ctx, actorID, it, store.EditOptions{
				UpdateStatistics: true,
				Silent:           false,
				ExpandDefaults:   false,
				EventType:        "item.sortorder",
				Payload:          map[string]any{"from": from, "to": to},
			}, func(staged *model.Item) error {
				staged.SortOrder = to
				return nil
			})
		})
		if err != nil {
			return res, err
		}
		res.Changes = append(res.Changes, SortChange{ID: it.ID, From: from, To: to})
		pos += SortOrderStep
	}
	return res, nil
}

func findCandidate(candidates []*model.Item, id string) *model.Item {
	want := store.NormalizeID(id)
	if want == "" {
		return nil
	}
	for _, c := range candidates {
		if c != nil && strings.EqualFold(store.NormalizeID(c.ID), want) {
			return c
		}
	}
	return nil
}
