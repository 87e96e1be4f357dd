package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inair/reportes/internal/types"
)

var newEquipment types.Equipment

var equipmentCmd = &cobra.Command{
	Use:   "equipment",
	Short: "Manage equipment installed at client sites",
}

var equipmentListCmd = &cobra.Command{
	Use:   "list <client-id>",
	Short: "List a client's equipment",
	Args:  cobra.ExactArgs(1),
	RunE:  runEquipmentList,
}

var equipmentAddCmd = &cobra.Command{
	Use:   "add <client-id> <serie>",
	Short: "Register a unit at a client site",
	Args:  cobra.ExactArgs(2),
	RunE:  runEquipmentAdd,
}

var equipmentDeleteCmd = &cobra.Command{
	Use:   "delete <client-id> <serie>",
	Short: "Remove a unit from a client site",
	Args:  cobra.ExactArgs(2),
	RunE:  runEquipmentDelete,
}

func init() {
	addStoreFlags(equipmentCmd)

	equipmentAddCmd.Flags().StringVar(&newEquipment.Type, "tipo", "", "Equipment type (required)")
	equipmentAddCmd.Flags().StringVar(&newEquipment.Model, "modelo", "", "Model (required)")
	equipmentAddCmd.Flags().StringVar(&newEquipment.Brand, "marca", "", "Brand")
	equipmentAddCmd.Flags().StringVar(&newEquipment.Power, "potencia", "", "Rated power")

	equipmentCmd.AddCommand(equipmentListCmd)
	equipmentCmd.AddCommand(equipmentAddCmd)
	equipmentCmd.AddCommand(equipmentDeleteCmd)
}

func runEquipmentList(cmd *cobra.Command, args []string) error {
	id, err := parseClientID(args[0])
	if err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	resp, err := s.GetClientEquipment(context.Background(), id)
	if err != nil {
		return fmt.Errorf("client %d: %w", id, err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), resp.Equipment)
	}
	if len(resp.Equipment) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No equipment found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "TIPO\tMODELO\tSERIE\tMARCA\tPOTENCIA")
	for _, e := range resp.Equipment {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Type, e.Model, e.Serial,
			displayValue(e.Brand), displayValue(e.Power))
	}
	w.Flush()
	return nil
}

func runEquipmentAdd(cmd *cobra.Command, args []string) error {
	id, err := parseClientID(args[0])
	if err != nil {
		return err
	}
	e := newEquipment
	e.Serial = strings.TrimSpace(args[1])
	if e.Serial == "" || e.Type == "" || e.Model == "" {
		return fmt.Errorf("serie, --tipo and --modelo are required")
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.AddEquipment(context.Background(), id, e); err != nil {
		return fmt.Errorf("client %d: %w", id, err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), e)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s serie %s to client %d\n", e.Type, e.Model, e.Serial, id)
	return nil
}

func runEquipmentDelete(cmd *cobra.Command, args []string) error {
	id, err := parseClientID(args[0])
	if err != nil {
		return err
	}
	serial := args[1]

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.DeleteEquipment(context.Background(), id, serial); err != nil {
		return fmt.Errorf("client %d serie %q: %w", id, serial, err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"client_id": id,
			"serie":     serial,
			"deleted":   true,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted serie %q from client %d\n", serial, id)
	return nil
}
