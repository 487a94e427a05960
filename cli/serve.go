package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/jesspatton/watson/config"
	"github.com/jesspatton/watson/engine"
	"github.com/jesspatton/watson/notify"
	"github.com/jesspatton/watson/transport"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var opts serveOptions
	var noDesktop bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the watson daemon in the foreground",
		Long: `Run the daemon that watches projects and runs their builds.

watson watch starts it in the background when it is not already running,
so you rarely need to call this yourself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			opts.desktop = !noDesktop
			return runServe(ctx, global, endpoint, opts)
		},
	}
	cmd.Flags().BoolVar(&noDesktop, "no-desktop", false, "only log build results, no desktop notifications")
	cmd.Flags().IntVar(&opts.wrap, "wrap", defaultWrap, "wrap build output in the log at this many columns (0 disables)")
	return cmd
}

const defaultWrap = 100

type serveOptions struct {
	desktop bool
	wrap    int
}

// runServe serves the registry on addr until ctx is done or a client asks
// for shutdown, then tears the registry down.
func runServe(ctx context.Context, global *config.Config, addr string, opts serveOptions) error {
	logger := log.Default().WithPrefix("serve")

	registry, err := engine.NewRegistry(global,
		engine.WithNotifier(notify.New(opts.desktop, log.Default().WithPrefix("notify"), opts.wrap)),
		engine.WithLogger(log.Default().WithPrefix("registry")),
	)
	if err != nil {
		return err
	}

	srv, err := transport.NewServer(registry)
	if err != nil {
		registry.Shutdown()
		return err
	}
	if err := srv.Listen(addr); err != nil {
		registry.Shutdown()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Serve)
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-srv.ShutdownRequested():
		}
		logger.Info("stopping daemon")
		err := registry.Shutdown()
		if cerr := srv.Close(); err == nil {
			err = cerr
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("daemon stopped")
	return nil
}
