package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newEventsCmd(app *App) *cobra.Command {
	var limit int
	var item string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, s, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			entityID := ""
			if ref := strings.TrimSpace(item); ref != "" {
				it, ok := db.ResolveItemRef(ref)
				if !ok {
					return writeErr(cmd, errNotFound("item", ref))
				}
				entityID = it.ID
			}
			evs, err := s.ReadEvents(cmd.Context(), entityID, limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": evs})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Max events to return")
	cmd.Flags().StringVar(&item, "item", "", "Only events for this item (id, ShortID or path)")
	return cmd
}
