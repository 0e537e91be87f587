package cli

import (
	"context"
	"strings"

	"contentsort/internal/model"
	"contentsort/internal/mutate"
	"contentsort/internal/store"
	"contentsort/internal/tokens"

	"github.com/spf13/cobra"
)

// itemView is the CLI's JSON shape for an item.
type itemView struct {
	model.Item
	ShortID  string `json:"shortId"`
	Path     string `json:"path"`
	Children int    `json:"children"`
}

func viewItem(db *store.DB, it *model.Item) itemView {
	return itemView{
		Item:     *it,
		ShortID:  store.ShortID(it.ID),
		Path:     db.PathOf(it),
		Children: len(db.ChildrenOf(it.ID)),
	}
}

func viewItems(db *store.DB, items []*model.Item) []itemView {
	out := make([]itemView, 0, len(items))
	for _, it := range items {
		out = append(out, viewItem(db, it))
	}
	return out
}

func newItemsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Manage content items",
	}
	cmd.AddCommand(newItemsAddCmd(app))
	cmd.AddCommand(newItemsListCmd(app))
	cmd.AddCommand(newItemsShowCmd(app))
	cmd.AddCommand(newItemsLockCmd(app, true))
	cmd.AddCommand(newItemsLockCmd(app, false))
	cmd.AddCommand(newItemsReadOnlyCmd(app))
	return cmd
}

func newItemsAddCmd(app *App) *cobra.Command {
	var in mutate.CreateItemInput
	var sortOrder int

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create an item (appended after its last sibling unless --sort-order is set)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, s, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			actorID, err := currentActorID(app, db)
			if err != nil {
				return writeErr(cmd, err)
			}
			in.Name = args[0]
			if cmd.Flags().Changed("sort-order") {
				in.SortOrder = &sortOrder
			}
			exp := tokens.Default{
				Parent: func(it *model.Item) *model.Item {
					p, _ := db.Parent(it)
					return p
				},
				ShortID:  store.ShortID,
				Language: in.Language,
			}
			it, err := mutate.CreateItem(cmd.Context(), db, actorID, in, exp)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.Save(db); err != nil {
				return writeErr(cmd, err)
			}
			hints := []string{}
			if p, ok := db.Parent(it); ok {
				hints = append(hints, "contentsort sort show "+db.PathOf(p))
			}
			return writeOut(cmd, app, map[string]any{"data": viewItem(db, it), "_hints": hints})
		},
	}
	cmd.Flags().StringVar(&in.ParentRef, "parent", "", "Parent item (id, ShortID or path); empty creates a root")
	cmd.Flags().StringVar(&in.TemplateName, "template", "", "Template name")
	cmd.Flags().StringVar(&in.Language, "lang", "", "Content language (default: parent's)")
	cmd.Flags().StringVar(&in.DisplayName, "display-name", "", "Display name in --lang")
	cmd.Flags().StringToStringVar(&in.Fields, "field", nil, "Field values (name=value, repeatable; $name, $parentname, $date... are expanded)")
	cmd.Flags().IntVar(&sortOrder, "sort-order", 0, "Explicit sort order")
	cmd.Flags().StringSliceVar(&in.Editors, "editor", nil, "Additional actor ids with write access")
	return cmd
}

func newItemsListCmd(app *App) *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the children of --parent (or the roots) in sibling order",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			items := db.Roots()
			if ref := strings.TrimSpace(parent); ref != "" {
				p, ok := db.ResolveItemRef(ref)
				if !ok {
					return writeErr(cmd, errNotFound("item", ref))
				}
				items = db.ChildrenOf(p.ID)
			}
			return writeOut(cmd, app, map[string]any{"data": viewItems(db, items)})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Parent item (id, ShortID or path)")
	return cmd
}

func newItemsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <item>",
		Short: "Show an item (id, ShortID or path)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			it, ok := db.ResolveItemRef(args[0])
			if !ok {
				return writeErr(cmd, errNotFound("item", args[0]))
			}
			data := map[string]any{
				"item":     viewItem(db, it),
				"children": viewItems(db, db.ChildrenOf(it.ID)),
			}
			if p, ok := db.Parent(it); ok {
				data["parent"] = viewItem(db, p)
			}
			return writeOut(cmd, app, map[string]any{"data": data})
		},
	}
}

func newItemsLockCmd(app *App, locked bool) *cobra.Command {
	use, short := "unlock <item>", "Unlock an item"
	if locked {
		use, short = "lock <item>", "Lock an item for the current actor"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItemFlag(cmd, app, args[0], func(ctx context.Context, db *store.DB, actorID, itemID string) (mutate.FlagResult, error) {
				return mutate.SetItemLocked(ctx, db, actorID, itemID, locked)
			})
		},
	}
}

func newItemsReadOnlyCmd(app *App) *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   "readonly <item>",
		Short: "Mark an item read-only (it can no longer be moved in the sort dialog)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItemFlag(cmd, app, args[0], func(ctx context.Context, db *store.DB, actorID, itemID string) (mutate.FlagResult, error) {
				return mutate.SetItemReadOnly(ctx, db, actorID, itemID, !off)
			})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "Clear the read-only flag")
	return cmd
}

func runItemFlag(cmd *cobra.Command, app *App, ref string, set func(ctx context.Context, db *store.DB, actorID, itemID string) (mutate.FlagResult, error)) error {
	db, s, err := loadDB(app)
	if err != nil {
		return writeErr(cmd, err)
	}
	actorID, err := currentActorID(app, db)
	if err != nil {
		return writeErr(cmd, err)
	}
	it, ok := db.ResolveItemRef(ref)
	if !ok {
		return writeErr(cmd, errNotFound("item", ref))
	}
	res, err := set(cmd.Context(), db, actorID, it.ID)
	if err != nil {
		return writeErr(cmd, err)
	}
	if res.Changed {
		if err := s.Save(db); err != nil {
			return writeErr(cmd, err)
		}
	}
	return writeOut(cmd, app, map[string]any{
		"data": map[string]any{
			"item":    viewItem(db, res.Item),
			"changed": res.Changed,
		},
	})
}
