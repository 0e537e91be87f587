package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"contentsort/internal/config"
	"contentsort/internal/dialog"
	"contentsort/internal/format"
	"contentsort/internal/logging"
	"contentsort/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type App struct {
	Dir        string
	ActorID    string
	PrettyJSON bool
	Format     string
	ConfigFile string
	Verbose    bool

	Config *config.Config
	Log    *zap.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "contentsort",
		Short:        "Manually order content items selected by a query",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Create a store and an admin actor
  contentsort init
  contentsort actors add --name editor --admin --use

  # List the children of /home in their current order
  contentsort sort show /home

  # Apply a new order (ShortIDs separated by |)
  contentsort sort apply /home --order "<shortid>|<shortid>"

  # Reorder interactively
  contentsort sort tui /home

  # Direct item lookup (shortcut for: contentsort items show <shortid>)
  contentsort 0F2A6A1C5B6D4E8F9A0B1C2D3E4F5A6B
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup()
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app.Log != nil {
			// Sync on stderr fails with EINVAL on some terminals; nothing to do about it.
			_ = app.Log.Sync()
		}
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("CONTENTSORT_DIR", ""), "Path to store dir (default: nearest .contentsort/ upwards from cwd)")
	cmd.PersistentFlags().StringVar(&app.ActorID, "actor", envOr("CONTENTSORT_ACTOR", ""), "Actor id (overrides the store's current actor)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("CONTENTSORT_FORMAT", "json"), "Output format ("+strings.Join(format.Formats, "|")+")")
	cmd.PersistentFlags().StringVar(&app.ConfigFile, "config", envOr("CONTENTSORT_CONFIG", ""), "Config file (default: config.* in the store dir)")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "Debug logging on stderr")

	cmd.AddCommand(newInitCmd(app))
	cmd.AddCommand(newDocsCmd(app))
	cmd.AddCommand(newActorsCmd(app))
	cmd.AddCommand(newItemsCmd(app))
	cmd.AddCommand(newQueryCmd(app))
	cmd.AddCommand(newSortCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newWebCmd(app))

	return cmd
}

func (app *App) setup() error {
	if app.Dir == "" {
		d, err := store.DefaultDir()
		if err != nil {
			return err
		}
		app.Dir = d
	}
	cfg, err := config.Load(app.Dir, app.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	app.Config = cfg

	log, err := logging.New(cfg.Log.Level, app.Verbose)
	if err != nil {
		return err
	}
	app.Log = log
	app.Log.Debug("store resolved", zap.String("dir", app.Dir), zap.String("config", app.ConfigFile))
	return nil
}

func (app *App) logger() *zap.Logger {
	if app.Log == nil {
		return zap.NewNop()
	}
	return app.Log
}

func (app *App) config() *config.Config {
	if app.Config == nil {
		return config.Default()
	}
	return app.Config
}

func (app *App) dialogSettings() dialog.Settings {
	cfg := app.config()
	return dialog.Settings{
		BaseSortOrder: cfg.Sort.DefaultSortOrder,
		Delimiter:     cfg.Sort.Delimiter,
		DefaultQuery:  cfg.Sort.Query,
		ClipLength:    cfg.Render.ClipLength,
	}
}

func loadDB(app *App) (*store.DB, store.Store, error) {
	if app.Dir == "" {
		d, err := store.DefaultDir()
		if err != nil {
			return nil, store.Store{}, err
		}
		app.Dir = d
	}
	s := store.Store{Dir: app.Dir}
	db, err := s.Load()
	if err != nil {
		return nil, s, err
	}
	return db, s, nil
}

func currentActorID(app *App, db *store.DB) (string, error) {
	if app.ActorID != "" {
		return app.ActorID, nil
	}
	if db.CurrentActorID != "" {
		return db.CurrentActorID, nil
	}
	return "", errors.New("no current actor; run `contentsort actors add --name <name> --use` or `contentsort actors use <actor-id>` (or pass --actor)")
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), describeError(err))
	return err
}
