package cli

import (
	"strings"

	"contentsort/internal/mutate"

	"github.com/spf13/cobra"
)

func newActorsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actors",
		Short: "Manage actors (the identities that edit content)",
	}
	cmd.AddCommand(newActorsAddCmd(app))
	cmd.AddCommand(newActorsListCmd(app))
	cmd.AddCommand(newActorsUseCmd(app))
	return cmd
}

func newActorsAddCmd(app *App) *cobra.Command {
	var name string
	var admin bool
	var use bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, s, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			a, err := mutate.CreateActor(db, name, admin)
			if err != nil {
				return writeErr(cmd, err)
			}
			if use {
				db.CurrentActorID = a.ID
			}
			if err := s.Save(db); err != nil {
				return writeErr(cmd, err)
			}
			hints := []string{}
			if !use {
				hints = append(hints, "contentsort actors use "+a.ID)
			}
			return writeOut(cmd, app, map[string]any{"data": a, "_hints": hints})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Actor name")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant write access to every item")
	cmd.Flags().BoolVar(&use, "use", false, "Make this the current actor")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newActorsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List actors",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"actors":         db.Actors,
					"currentActorId": db.CurrentActorID,
				},
			})
		},
	}
}

func newActorsUseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "use <actor-id>",
		Short: "Set the current actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, s, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := strings.TrimSpace(args[0])
			a, ok := db.FindActor(id)
			if !ok {
				return writeErr(cmd, errNotFound("actor", id))
			}
			db.CurrentActorID = a.ID
			if err := s.Save(db); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": a})
		},
	}
}
