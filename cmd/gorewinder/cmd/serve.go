package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gorewinder/internal/database"
	"github.com/dbsmedya/gorewinder/internal/server"
	"github.com/dbsmedya/gorewinder/rewinder"
)

// AddrEnv tells a spawned command where the control API listens.
const AddrEnv = "GOREWINDER_ADDR"

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [-- command [args...]]",
	Short: "Run the control API as the root process",
	Long: `Serve becomes the root process of a test run and exposes clean,
clean_all, record and tracked over HTTP for runners that cannot link the
Go package.

When a command follows '--' it is spawned with the tracking environment
and GOREWINDER_ADDR set. The server stops when that command exits, or on
SIGINT/SIGTERM.

Example:
  gorewinder serve --config rewinder.yaml
  gorewinder serve --addr 127.0.0.1:0 -- npm run e2e`,
	Args: cobra.ArbitraryArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"Override listen address")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, cancel := database.SetupSignalHandler(context.Background(), func(sig os.Signal) {
		log.Infow("Received signal, shutting down", "signal", sig.String())
	})
	defer cancel()

	rw, err := rewinder.SetupFromConfig(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rw.Close()

	srv := server.New(rw,
		server.WithAddress(cfg.Server.Addr),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		server.WithLogger(log),
	)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start control API: %w", err)
	}
	defer func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Warnw("Control API shutdown failed", "error", err)
		}
	}()

	if len(args) == 0 {
		<-ctx.Done()
		return nil
	}

	env := append(rw.Tracker().Environ(os.Environ()), AddrEnv+"="+srv.Addr())
	return runChild(ctx, cmd, env, cfg.Server.ShutdownTimeout, args)
}

// runChild runs args with env and waits for it. Cancelling ctx sends SIGTERM
// and waits up to grace before the child is killed; that case is not an error.
func runChild(ctx context.Context, cmd *cobra.Command, env []string, grace time.Duration, args []string) error {
	child := exec.CommandContext(ctx, args[0], args[1:]...)
	child.Env = env
	child.Stdin = cmd.InOrStdin()
	child.Stdout = cmd.OutOrStdout()
	child.Stderr = cmd.ErrOrStderr()
	child.Cancel = func() error {
		return child.Process.Signal(syscall.SIGTERM)
	}
	child.WaitDelay = grace

	err := child.Run()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("command %q failed: %w", args[0], err)
	}
	return nil
}
