package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inair/reportes/internal/config"
)

var folioPrefix string

var folioCmd = &cobra.Command{
	Use:   "folio",
	Short: "Allocate report folios",
}

var folioNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Allocate the next folio for a prefix",
	Args:  cobra.NoArgs,
	RunE:  runFolioNext,
}

func init() {
	addStoreFlags(folioCmd)
	folioNextCmd.Flags().StringVar(&folioPrefix, "prefix", "",
		"Folio prefix (defaults to folio.prefix from config)")

	folioCmd.AddCommand(folioNextCmd)
}

func runFolioNext(cmd *cobra.Command, args []string) error {
	prefix := folioPrefix
	if prefix == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		prefix = cfg.Folio.Prefix
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	folio, err := s.NextFolio(context.Background(), prefix)
	if err != nil {
		return fmt.Errorf("allocate folio: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"folio": folio})
	}
	fmt.Fprintln(cmd.OutOrStdout(), folio)
	return nil
}
