package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/inair/reportes/internal/config"
	"github.com/inair/reportes/internal/store"
	"github.com/inair/reportes/internal/types"
)

var (
	dbPathOverride string
	jsonOutput     bool
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Inspect and manage server drafts",
	Long:  "List, show, mark sent, and delete drafts directly in the server database without running the server.",
}

func init() {
	addStoreFlags(draftCmd)

	draftCmd.AddCommand(draftListCmd)
	draftCmd.AddCommand(draftShowCmd)
	draftCmd.AddCommand(draftSentCmd)
	draftCmd.AddCommand(draftDeleteCmd)
	draftCmd.AddCommand(draftArchiveURLCmd)
}

// addStoreFlags registers the flags shared by every store-backed command group.
func addStoreFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&dbPathOverride, "db", "",
		"Database path (overrides config and REPORTES_DB_PATH)")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")
}

// openStore opens the server database from config with an optional --db override.
func openStore() (*store.SQLiteStore, error) {
	path := dbPathOverride
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = cfg.Database.Path
	}
	return store.NewSQLiteStore(path)
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// statusLabel renders a draft status for terminal output.
func statusLabel(s types.DraftStatus) string {
	switch s {
	case types.StatusSent:
		return color.New(color.FgGreen).Sprint(string(s))
	case types.StatusDraft:
		return color.New(color.FgYellow).Sprint(string(s))
	default:
		return color.New(color.FgRed).Sprint(string(s))
	}
}

// displayValue shortens data URLs so photos and signatures don't flood the terminal.
func displayValue(v string) string {
	if strings.HasPrefix(v, "data:") {
		mime := strings.TrimPrefix(v, "data:")
		if i := strings.IndexAny(mime, ";,"); i >= 0 {
			mime = mime[:i]
		}
		return fmt.Sprintf("<%s, %s>", mime, formatSize(int64(len(v))))
	}
	if v == "" {
		return "-"
	}
	return v
}

// formatSize returns a human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
	)
	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
