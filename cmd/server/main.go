// Command server runs the closet organizer.
//
//	closet-server          serve HTTP (same as "serve")
//	closet-server serve    serve HTTP until SIGINT/SIGTERM
//	closet-server export   write an owner's photos to the blob store and
//	                       print their locations
//
// Configuration comes from the environment; see internal/config. main stays
// minimal: it builds the command tree and maps a failure to exit status 1.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "closet-server",
		Short: "Closet organizer: GitHub-gated photo galleries",
		Long: `Closet organizer serves photo galleries to members of one GitHub
organization. Visitors log in with GitHub; only members of GITHUB_ORG get a
session, and every photo is scoped to the member who uploaded it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := newServeCmd()
	root.AddCommand(serve, newExportCmd())
	// Running without a subcommand serves.
	root.RunE = serve.RunE

	return root
}

// newLogger builds the process logger. Text output, like every log line the
// server writes, so it reads well in a terminal and parses in a collector.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
