package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var deleteForce bool

var draftDeleteCmd = &cobra.Command{
	Use:   "delete <folio>",
	Short: "Delete a draft from the server database",
	Long:  "Permanently delete a draft, including its photos and signatures. Requires --force or interactive confirmation.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftDelete,
}

func init() {
	draftDeleteCmd.Flags().BoolVar(&deleteForce, "force", false,
		"Skip confirmation prompt")
}

func runDraftDelete(cmd *cobra.Command, args []string) error {
	folio := args[0]
	ctx := context.Background()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	// Fail before prompting when the draft does not exist.
	if _, err := s.GetDraft(ctx, folio); err != nil {
		return fmt.Errorf("draft %q: %w", folio, err)
	}

	// Interactive confirmation unless --force
	if !deleteForce {
		errOut := cmd.ErrOrStderr()
		fmt.Fprintf(errOut, "WARNING: This will permanently delete draft %q.\n", folio)
		fmt.Fprint(errOut, "Type the folio to confirm: ")

		reader := bufio.NewReader(cmd.InOrStdin())
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}

		if strings.TrimSpace(input) != folio {
			fmt.Fprintln(errOut, "Aborted. Folio did not match.")
			return nil
		}
	}

	if err := s.DeleteDraft(ctx, folio); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"folio":   folio,
			"deleted": true,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted draft %q\n", folio)
	return nil
}
