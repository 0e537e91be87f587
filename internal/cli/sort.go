package cli

import (
	"errors"
	"strings"

	"contentsort/internal/dialog"
	"contentsort/internal/tui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type sortFlags struct {
	query string
	field string
	lang  string
	title string
	text  string
}

func (f *sortFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.query, "query", "", "Query selecting the items (default from config, ./*)")
	cmd.Flags().StringVar(&f.field, "field", "", "Field to display instead of the display name")
	cmd.Flags().StringVar(&f.lang, "lang", "", "Display language (default: the root item's)")
}

func (f *sortFlags) options(app *App, root string) dialog.Options {
	q := strings.TrimSpace(f.query)
	if q == "" {
		q = app.config().Sort.Query
	}
	return dialog.Options{
		ItemRef:  root,
		Query:    q,
		Field:    f.field,
		Title:    f.title,
		Text:     f.text,
		Language: f.lang,
	}
}

func newSortCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Show and apply a manual order for the items a query selects",
	}
	cmd.AddCommand(newSortShowCmd(app))
	cmd.AddCommand(newSortApplyCmd(app))
	cmd.AddCommand(newSortTUICmd(app))
	return cmd
}

func newSortShowCmd(app *App) *cobra.Command {
	var f sortFlags
	var html bool

	cmd := &cobra.Command{
		Use:   "show <root>",
		Short: "List the items in their current order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			actorID, _ := currentActorID(app, db)
			d := dialog.New(db, app.dialogSettings(), app.logger())
			v, err := d.Load(f.options(app, args[0]), actorID)
			if err != nil {
				return writeErr(cmd, err)
			}
			if html {
				_, err := cmd.OutOrStdout().Write([]byte(string(v.ListHTML) + "\n"))
				return err
			}
			hints := []string{}
			if v.Enabled {
				hints = append(hints, `contentsort sort apply `+args[0]+` --order "`+d.ShortIDs(v.Items)+`"`)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"view":      v,
					"sortorder": d.ShortIDs(v.Items),
				},
				"_hints": hints,
			})
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&html, "html", false, "Print the rendered list markup")
	return cmd
}

func newSortApplyCmd(app *App) *cobra.Command {
	var f sortFlags
	var order string

	cmd := &cobra.Command{
		Use:   "apply <root>",
		Short: "Apply a new order (ShortIDs joined with the configured delimiter)",
		Long: `Apply a new order.

The first listed item gets the base sort order (sort.defaultSortOrder), each next
one 100 more. ShortIDs that are not among the selected items are skipped. An empty
--order changes nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, s, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			actorID, err := currentActorID(app, db)
			if err != nil {
				return writeErr(cmd, err)
			}
			if _, ok := db.FindActor(actorID); !ok {
				return writeErr(cmd, errNotFound("actor", actorID))
			}
			d := dialog.New(db, app.dialogSettings(), app.logger())
			out, err := d.OnOK(cmd.Context(), f.options(app, args[0]), actorID, order)
			if err != nil {
				return writeErr(cmd, err)
			}
			if out.DialogValue != "" {
				if err := s.Save(db); err != nil {
					return writeErr(cmd, err)
				}
				app.logger().Info("sort order saved",
					zap.String("actor", actorID),
					zap.String("root", args[0]),
					zap.Int("changed", len(out.Result.Changes)),
				)
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&order, "order", "", "ShortIDs in the new order")
	return cmd
}

func newSortTUICmd(app *App) *cobra.Command {
	var f sortFlags

	cmd := &cobra.Command{
		Use:   "tui <root>",
		Short: "Reorder interactively (J/K move, enter applies, esc cancels)",
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
			settings := app.dialogSettings()
			d := dialog.New(db, settings, app.logger())
			opts := f.options(app, args[0])
			v, err := d.Load(opts, actorID)
			if err != nil {
				return writeErr(cmd, err)
			}

			ctx := cmd.Context()
			out, err := tui.Run(ctx, v, settings.Delimiter, func(order string) (dialog.Outcome, error) {
				out, err := d.OnOK(ctx, opts, actorID, order)
				if err != nil {
					return out, err
				}
				if out.DialogValue != "" {
					if err := s.Save(db); err != nil {
						return dialog.Outcome{}, err
					}
				}
				return out, nil
			})
			if errors.Is(err, tui.ErrCancelled) {
				return writeOut(cmd, app, map[string]any{"data": map[string]any{"cancelled": true}})
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&f.title, "title", "", "Dialog title")
	cmd.Flags().StringVar(&f.text, "text", "", "Dialog text (markdown)")
	return cmd
}
