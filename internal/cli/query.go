package cli

import (
	"contentsort/internal/query"

	"github.com/spf13/cobra"
)

func newQueryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "query <root> <query>",
		Short: "Evaluate a query against a root item (prefix with fast: for a store-wide query)",
		Long: `Evaluate a query the way the sort dialog does.

A query that fails to parse is logged and selects nothing; see ` + "`contentsort docs queries`" + `.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			root, ok := db.ResolveItemRef(args[0])
			if !ok {
				return writeErr(cmd, errNotFound("item", args[0]))
			}
			items := query.NewResolver(db, app.logger()).Resolve(root, args[1])
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"root":  db.PathOf(root),
					"query": args[1],
					"fast":  query.IsFast(args[1]),
					"items": viewItems(db, items),
				},
			})
		},
	}
}
