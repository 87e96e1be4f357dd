package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/inair/reportes/internal/config"
	"github.com/inair/reportes/pkg/draft"
)

var (
	localCachePath string
	localServerURL string
	localQuota     int
	localJSON      bool
	localReconcile bool
)

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Work with the offline draft cache",
	Long: `Inspect the local draft cache used by headless clients, and move drafts
between the cache and the server.`,
}

var localListCmd = &cobra.Command{
	Use:   "list",
	Short: "List drafts in the local index, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runLocalList,
}

var localPullCmd = &cobra.Command{
	Use:   "pull <folio>",
	Short: "Copy a draft from the server into the local cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocalPull,
}

var localPushCmd = &cobra.Command{
	Use:   "push <folio>",
	Short: "Save a locally cached draft to the server",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocalPush,
}

var localDeleteCmd = &cobra.Command{
	Use:   "delete <folio>",
	Short: "Remove a draft from the local cache and index",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocalDelete,
}

func init() {
	localCmd.PersistentFlags().StringVar(&localCachePath, "cache", "",
		"Cache database path (overrides client.cache_path)")
	localCmd.PersistentFlags().StringVar(&localServerURL, "server", "",
		"Server base URL (overrides client.server_url)")
	localCmd.PersistentFlags().IntVar(&localQuota, "quota", 0,
		"Cache byte quota (overrides client.cache_quota)")
	localCmd.PersistentFlags().BoolVar(&localJSON, "json", false,
		"Output in JSON format")
	localListCmd.Flags().BoolVar(&localReconcile, "reconcile", false,
		"Rebuild the index from the drafts actually cached before listing")

	localCmd.AddCommand(localListCmd)
	localCmd.AddCommand(localPullCmd)
	localCmd.AddCommand(localPushCmd)
	localCmd.AddCommand(localDeleteCmd)
}

// localTier bundles the cache components a local subcommand needs.
type localTier struct {
	kv      *draft.SQLiteKV
	cache   *draft.LocalCache
	catalog *draft.Catalog
	remote  *draft.RemoteClient
}

func (t *localTier) Close() error {
	return t.kv.Close()
}

// openLocalTier opens the cache from config with flag overrides applied.
func openLocalTier(errOut io.Writer) (*localTier, error) {
	clientCfg := config.ClientConfig{
		ServerURL:  localServerURL,
		CachePath:  localCachePath,
		CacheQuota: localQuota,
	}
	if clientCfg.ServerURL == "" || clientCfg.CachePath == "" || clientCfg.CacheQuota == 0 {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if clientCfg.ServerURL == "" {
			clientCfg.ServerURL = cfg.Client.ServerURL
		}
		if clientCfg.CachePath == "" {
			clientCfg.CachePath = cfg.Client.CachePath
		}
		if clientCfg.CacheQuota == 0 {
			clientCfg.CacheQuota = cfg.Client.CacheQuota
		}
	}

	kv, err := draft.NewSQLiteKV(clientCfg.CachePath, int64(clientCfg.CacheQuota))
	if err != nil {
		return nil, err
	}
	return &localTier{
		kv: kv,
		cache: draft.NewLocalCache(kv, draft.LocalOptions{
			Notifier: writerNotifier{w: errOut},
		}),
		catalog: draft.NewCatalog(kv, "", "", nil),
		remote:  draft.NewRemoteClient(clientCfg.ServerURL, nil),
	}, nil
}

// writerNotifier surfaces engine warnings and status messages on a terminal.
type writerNotifier struct {
	w io.Writer
}

func (n writerNotifier) Warn(msg string) {
	fmt.Fprintln(n.w, color.New(color.FgYellow).Sprint("WARNING: ")+msg)
}

func (n writerNotifier) Status(msg string, isError bool) {
	if isError {
		msg = color.New(color.FgRed).Sprint(msg)
	}
	fmt.Fprintln(n.w, msg)
}

func runLocalList(cmd *cobra.Command, args []string) error {
	t, err := openLocalTier(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer t.Close()

	if localReconcile {
		added, dropped, err := t.catalog.Reconcile("cliente", "fecha")
		if err != nil {
			return fmt.Errorf("reconcile index: %w", err)
		}
		if !localJSON {
			fmt.Fprintf(cmd.ErrOrStderr(), "Index reconciled: %d added, %d dropped\n", added, dropped)
		}
	}

	entries := t.catalog.List()

	if localJSON {
		items := make([]map[string]any, len(entries))
		for i, e := range entries {
			items[i] = map[string]any{
				"folio":    e.Folio,
				"cliente":  e.ClientName,
				"fecha":    e.Date,
				"saved_at": e.SavedAt,
			}
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"drafts": items,
			"total":  len(items),
		})
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No local drafts.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "FOLIO\tCLIENTE\tFECHA\tSAVED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Folio,
			displayValue(e.ClientName),
			displayValue(e.Date),
			displayValue(e.SavedAt),
		)
	}
	w.Flush()
	return nil
}

func runLocalPull(cmd *cobra.Command, args []string) error {
	folio := args[0]

	t, err := openLocalTier(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer t.Close()

	snap, ok := t.remote.Load(cmd.Context(), folio)
	if !ok {
		return fmt.Errorf("draft %q not available on the server", folio)
	}
	if snap.SavedAt() == "" {
		snap[draft.SavedAtKey] = time.Now().UTC().Format(time.RFC3339Nano)
	}

	outcome := t.cache.Write(folio, snap)
	if outcome == draft.WriteDropped {
		return fmt.Errorf("draft %q does not fit in the local cache", folio)
	}
	if err := t.catalog.Update(draft.IndexEntry{
		Folio:      folio,
		ClientName: snap["cliente"],
		Date:       snap["fecha"],
		SavedAt:    snap.SavedAt(),
	}); err != nil {
		return fmt.Errorf("update index: %w", err)
	}

	if localJSON {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"folio":   folio,
			"outcome": outcome.String(),
			"fields":  len(snap),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pulled draft %q (%s, %d fields)\n", folio, outcome, len(snap))
	return nil
}

func runLocalPush(cmd *cobra.Command, args []string) error {
	folio := args[0]

	t, err := openLocalTier(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer t.Close()

	snap, ok := t.cache.Read(folio)
	if !ok {
		return fmt.Errorf("draft %q not in the local cache", folio)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	if err := t.remote.Save(ctx, folio, snap); err != nil {
		return fmt.Errorf("push draft %q: %w", folio, err)
	}

	if localJSON {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"folio":  folio,
			"pushed": true,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pushed draft %q\n", folio)
	return nil
}

func runLocalDelete(cmd *cobra.Command, args []string) error {
	folio := args[0]

	t, err := openLocalTier(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer t.Close()

	t.cache.Delete(folio)
	t.catalog.Remove(folio)

	if localJSON {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"folio":   folio,
			"deleted": true,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed local draft %q\n", folio)
	return nil
}
