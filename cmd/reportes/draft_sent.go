package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/inair/reportes/internal/archive"
	"github.com/inair/reportes/internal/config"
)

var draftSentCmd = &cobra.Command{
	Use:   "sent <folio>",
	Short: "Mark a draft as sent",
	Long:  "Mark a draft as sent. Sent drafts are archived and removed by the retention worker once they exceed retention.max_age.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftSent,
}

var draftArchiveURLCmd = &cobra.Command{
	Use:   "archive-url <folio>",
	Short: "Print a temporary download link for an archived draft",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftArchiveURL,
}

func runDraftSent(cmd *cobra.Command, args []string) error {
	folio := args[0]
	ctx := context.Background()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.MarkSent(ctx, folio); err != nil {
		return fmt.Errorf("draft %q: %w", folio, err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"folio":  folio,
			"status": "sent",
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Marked draft %q as sent\n", folio)
	return nil
}

func runDraftArchiveURL(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := archive.New(cfg.Archive)
	if err != nil {
		return err
	}

	url, expiry, err := a.PresignedURL(context.Background(), args[0])
	if errors.Is(err, archive.ErrNotConfigured) {
		return errors.New("archive storage is not configured (set archive.bucket)")
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"folio":      args[0],
			"url":        url,
			"expires_at": expiry.UTC().Format(time.RFC3339),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}
