package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/inair/reportes/internal/types"
)

var draftShowCmd = &cobra.Command{
	Use:   "show <folio>",
	Short: "Show a draft and its form fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftShow,
}

func runDraftShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	d, err := s.GetDraft(ctx, args[0])
	if err != nil {
		return fmt.Errorf("draft %q: %w", args[0], err)
	}

	out := cmd.OutOrStdout()

	if jsonOutput {
		return printJSON(out, types.LoadDraftResponse{
			Folio:            d.Folio,
			FormData:         d.FormData,
			FirmaTecnicoData: d.FirmaTecnico,
			FirmaClienteData: d.FirmaCliente,
			Status:           d.Status,
			Revision:         d.Revision,
			UpdatedAt:        d.UpdatedAt,
		})
	}

	fmt.Fprintf(out, "Folio:      %s\n", d.Folio)
	fmt.Fprintf(out, "Status:     %s\n", statusLabel(d.Status))
	fmt.Fprintf(out, "Cliente:    %s\n", displayValue(d.ClientName))
	fmt.Fprintf(out, "Fecha:      %s\n", displayValue(d.Date))
	fmt.Fprintf(out, "Revision:   %s\n", d.Revision)
	fmt.Fprintf(out, "Created:    %s\n", d.CreatedAt.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Updated:    %s\n", d.UpdatedAt.Local().Format("2006-01-02 15:04:05 MST"))
	if d.SentAt != nil {
		fmt.Fprintf(out, "Sent:       %s\n", d.SentAt.Local().Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(out, "Firma tec.: %s\n", displayValue(d.FirmaTecnico))
	fmt.Fprintf(out, "Firma cli.: %s\n", displayValue(d.FirmaCliente))

	keys := make([]string, 0, len(d.FormData))
	for k := range d.FormData {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(out, "\nFields (%d):\n", len(keys))
	w := newTabWriter(out)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s\t%s\n", k, displayValue(d.FormData[k]))
	}
	w.Flush()

	return nil
}
