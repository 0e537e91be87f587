package cli

import (
	"path/filepath"

	"contentsort/internal/config"

	"github.com/spf13/cobra"
)

func newInitCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the local store and write a default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, s, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.Save(db); err != nil {
				return writeErr(cmd, err)
			}
			cfgPath, created, err := config.WriteDefault(s.Dir)
			if err != nil {
				return writeErr(cmd, err)
			}

			hints := []string{}
			if len(db.Actors) == 0 {
				hints = append(hints, "contentsort actors add --name <name> --admin --use")
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"dir":           s.Dir,
					"sqlitePath":    filepath.Join(s.Dir, "content.sqlite"),
					"config":        cfgPath,
					"configCreated": created,
				},
				"_hints": hints,
			})
		},
	}
	return cmd
}
