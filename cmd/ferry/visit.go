package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/ferry/internal/cli"
	"github.com/aretw0/ferry/pkg/domain"
)

var visitCmd = &cobra.Command{
	Use:   "visit <url>",
	Short: "Boot from the root document and perform one visit",
	Long: `Loads the root document, boots the engine from the page it embeds and
performs a single protocol visit. The committed page is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		printer, err := newPrinter(cmd)
		if err != nil {
			return err
		}

		method, _ := cmd.Flags().GetString("method")
		rawData, _ := cmd.Flags().GetString("data")
		only, _ := cmd.Flags().GetStringSlice("only")
		except, _ := cmd.Flags().GetStringSlice("except")
		root, _ := cmd.Flags().GetString("root")

		m, err := domain.ParseMethod(method)
		if err != nil {
			return err
		}
		var data any
		if strings.TrimSpace(rawData) != "" {
			var obj map[string]any
			if err := json.Unmarshal([]byte(rawData), &obj); err != nil {
				return fmt.Errorf("--data must be a JSON object: %w", err)
			}
			data = obj
		}

		metricsOpts, stopMetrics := startMetrics(cfg, logger)
		defer stopMetrics()

		engine, closeStore, err := cli.NewEngine(cfg, logger, metricsOpts...)
		if err != nil {
			return err
		}
		defer closeStore()

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		if _, err := engine.BootFromRoot(ctx, root); err != nil {
			return err
		}
		page, err := engine.Visit(ctx, domain.VisitRequest{
			URL:    args[0],
			Method: m,
			Data:   data,
			Only:   only,
			Except: except,
		})
		if err != nil {
			return err
		}
		return printer.Page(page)
	},
}

func init() {
	rootCmd.AddCommand(visitCmd)
	visitCmd.Flags().StringP("method", "X", "GET", "HTTP method")
	visitCmd.Flags().StringP("data", "d", "", "Request data as a JSON object")
	visitCmd.Flags().StringSlice("only", nil, "Props to request (partial reload of the same component)")
	visitCmd.Flags().StringSlice("except", nil, "Props the Page Source may omit")
	visitCmd.Flags().String("root", "/", "Path of the root document to boot from")
}
