package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/flowgrid/internal/transport/viewws"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve <save>",
		Short: "Serve a save's view to renderers",
		Long: `Load a save, start its session loop and serve frames over WebSocket
at /view and inventory queries at /inventory. Only loopback clients are
accepted. Edits made through other commands are picked up on the next
load; the session writes its document on shutdown.

Example:
  flowgrid serve factory
  flowgrid serve factory --listen 127.0.0.1:9000 --verbose`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "address to listen on (overrides config)")
	return cmd
}

func runServe(opts *ServeOptions, idOrName string, cmd *cobra.Command) error {
	sess, err := opts.openSession(cmd, idOrName)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			opts.Logger.Error("error closing database", "error", closeErr)
		}
	}()

	addr := opts.Listen
	if addr == "" {
		addr = opts.Config.View.Listen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := viewws.NewServer(sess.engine,
		viewws.WithLogger(opts.Logger),
		viewws.WithMaxMessageBytes(opts.Config.View.MaxMessageBytes),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s. Press Ctrl-C to stop.\n", sess.engine.Info().Name, addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sess.engine.Run(gctx)
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx, addr)
	})
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "serve failed", err)
	}

	opts.Logger.Info("session stopped", "save", sess.engine.Info().ID)
	return nil
}
