package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inair/reportes/internal/types"
	"github.com/inair/reportes/internal/validation"
)

var listStatus string

var draftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List drafts, most recently updated first",
	Args:  cobra.NoArgs,
	RunE:  runDraftList,
}

func init() {
	draftListCmd.Flags().StringVar(&listStatus, "status", "",
		"Only list drafts with this status (draft or sent)")
}

func runDraftList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if verr := validation.ValidateStatus("status", listStatus); verr != nil {
		return fmt.Errorf("--status: %s", verr.Message)
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	drafts, err := s.ListDrafts(ctx, types.DraftStatus(listStatus))
	if err != nil {
		return fmt.Errorf("list drafts: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), types.DraftListResponse{
			Drafts: drafts,
			Total:  len(drafts),
		})
	}

	if len(drafts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No drafts found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "FOLIO\tCLIENTE\tFECHA\tSTATUS\tUPDATED")
	for _, d := range drafts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			d.Folio,
			displayValue(d.ClientName),
			displayValue(d.Date),
			statusLabel(d.Status),
			d.UpdatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	w.Flush()

	return nil
}
