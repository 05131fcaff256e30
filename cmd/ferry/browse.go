package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/ferry"
	"github.com/aretw0/ferry/internal/cli"
	"github.com/aretw0/ferry/internal/presentation/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse [root-path]",
	Short: "Navigate a Page Source interactively",
	Long: `Boots from the root document and reads visit commands from stdin
(get, post, back, forward, reload, history, ...). Type 'help' for the list.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		printer, err := newPrinter(cmd)
		if err != nil {
			return err
		}

		metricsOpts, stopMetrics := startMetrics(cfg, logger)
		defer stopMetrics()

		engine, closeStore, err := cli.NewEngine(cfg, logger, metricsOpts...)
		if err != nil {
			return err
		}
		defer closeStore()

		root := "/"
		if len(args) > 0 {
			root = args[0]
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		interactive := printer.Format() == cli.FormatMarkdown
		if interactive {
			tui.PrintBanner(os.Stderr, ferry.Version)
		}

		page, err := engine.BootFromRoot(ctx, root)
		if err != nil {
			return err
		}
		printer.Status(tui.StatusInfo, "scope %s", engine.Scope())
		if err := printer.Page(page); err != nil {
			return err
		}

		var prompt io.Writer
		if interactive {
			prompt = os.Stderr
		}
		err = cli.Browse(ctx, engine, os.Stdin, printer, prompt)
		if errors.Is(err, context.Canceled) && ctx.Signal() != nil {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}
