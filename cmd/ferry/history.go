package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/ferry/internal/config"
	"github.com/aretw0/ferry/internal/presentation/graph"
	"github.com/aretw0/ferry/internal/presentation/tui"
	"github.com/aretw0/ferry/pkg/domain"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect stored history entries",
	Long:  `List, show, graph and clear the history entries kept by the configured backend.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scopes, or the entries of --scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, storage, err := openStorage(cmd)
		if err != nil {
			return err
		}
		defer storage.Close()
		printer, err := newPrinter(cmd)
		if err != nil {
			return err
		}

		if cfg.History.Scope != "" {
			entries, err := loadScope(cmd, storage, cfg.History.Scope)
			if err != nil {
				return err
			}
			return printer.Entries(entries, "")
		}

		keys, err := storage.Store.List(cmd.Context(), "")
		if err != nil {
			return fmt.Errorf("failed to list history: %w", err)
		}
		counts := map[string]int{}
		for _, k := range keys {
			scope, _, _ := strings.Cut(k, ":")
			counts[scope]++
		}
		if len(counts) == 0 {
			fmt.Println("No history scopes found.")
			return nil
		}
		scopes := make([]string, 0, len(counts))
		for s := range counts {
			scopes = append(scopes, s)
		}
		sort.Strings(scopes)
		for _, s := range scopes {
			fmt.Printf("- %s (%d entries)\n", s, counts[s])
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <scope:key>",
	Short: "Print one stored entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, storage, err := openStorage(cmd)
		if err != nil {
			return err
		}
		defer storage.Close()
		printer, err := newPrinter(cmd)
		if err != nil {
			return err
		}

		entry, err := storage.Store.Load(cmd.Context(), args[0])
		if errors.Is(err, domain.ErrEntryNotFound) {
			return fmt.Errorf("no history entry %q", args[0])
		}
		if err != nil {
			return err
		}
		return printer.Entry(entry)
	},
}

var historyGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the entries of --scope as a Mermaid diagram",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, storage, err := openStorage(cmd)
		if err != nil {
			return err
		}
		defer storage.Close()
		if cfg.History.Scope == "" {
			return errors.New("--scope is required")
		}

		entries, err := loadScope(cmd, storage, cfg.History.Scope)
		if err != nil {
			return err
		}
		current, _ := cmd.Flags().GetString("current")
		fmt.Print(graph.HistoryMermaid(entries, &graph.Overlay{Current: current}))
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every entry of --scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, storage, err := openStorage(cmd)
		if err != nil {
			return err
		}
		defer storage.Close()
		printer, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		if cfg.History.Scope == "" {
			return errors.New("--scope is required")
		}

		keys, err := storage.Store.List(cmd.Context(), cfg.History.Scope+":")
		if err != nil {
			return fmt.Errorf("failed to list history: %w", err)
		}
		for _, k := range keys {
			if err := storage.Store.Delete(cmd.Context(), k); err != nil {
				return fmt.Errorf("failed to delete %s: %w", k, err)
			}
		}
		printer.Status(tui.StatusOK, "removed %d entries from %s", len(keys), cfg.History.Scope)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyGraphCmd)
	historyCmd.AddCommand(historyClearCmd)

	historyGraphCmd.Flags().String("current", "", "Entry key to highlight")
}

func openStorage(cmd *cobra.Command) (*config.Config, *config.Storage, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	storage, err := config.OpenHistory(cfg.History)
	if err != nil {
		return nil, nil, err
	}
	return cfg, storage, nil
}

func loadScope(cmd *cobra.Command, storage *config.Storage, scope string) ([]*domain.Entry, error) {
	keys, err := storage.Store.List(cmd.Context(), scope+":")
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	entries := make([]*domain.Entry, 0, len(keys))
	for _, k := range keys {
		entry, err := storage.Store.Load(cmd.Context(), k)
		if err != nil {
			if errors.Is(err, domain.ErrEntryNotFound) {
				continue
			}
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
