package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"contentsort/internal/web"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newWebCmd(app *App) *cobra.Command {
	var addr string
	var readOnly bool
	var authMode string
	var datastarURL string

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the sort dialog over HTTP",
		Example: strings.TrimSpace(`
# Serve on the configured address (web.addr)
contentsort web

# Read-only on all interfaces
contentsort web --addr :3340 --read-only
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.config()
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				listenAddr = cfg.Web.Addr
			}
			if listenAddr == "" {
				return writeErr(cmd, errors.New("web: missing --addr"))
			}
			if !cmd.Flags().Changed("read-only") {
				readOnly = cfg.Web.ReadOnly
			}

			// Make sure the store exists before serving it.
			if _, _, err := loadDB(app); err != nil {
				return writeErr(cmd, err)
			}

			srv, err := web.NewServer(web.ServerConfig{
				Addr:        listenAddr,
				Dir:         app.Dir,
				ActorID:     strings.TrimSpace(app.ActorID),
				ReadOnly:    readOnly,
				AuthMode:    authMode,
				Sort:        app.dialogSettings(),
				DatastarURL: datastarURL,
				Logger:      app.logger(),
			})
			if err != nil {
				return writeErr(cmd, err)
			}

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}
			actualAddr := ln.Addr().String()
			url := "http://" + actualAddr + "/"

			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      actualAddr,
					"url":       url,
					"dir":       app.Dir,
					"readOnly":  readOnly,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
				"_hints": []string{"open " + url},
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "contentsort web running at %s\n", url)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, ln, srv.Handler(), app.logger())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Bind address (default: web.addr from config)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "Reject every POST with 403")
	cmd.Flags().StringVar(&authMode, "auth", "none", "Auth mode (none|dev)")
	cmd.Flags().StringVar(&datastarURL, "datastar-url", envOr("CONTENTSORT_DATASTAR_URL", ""), "Datastar client bundle URL (enables in-place updates)")
	return cmd
}

// serve runs the HTTP server until ctx is cancelled, then shuts it down.
func serve(ctx context.Context, ln net.Listener, h http.Handler, log *zap.Logger) error {
	hs := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
