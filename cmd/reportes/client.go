package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inair/reportes/internal/types"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Manage the client directory",
}

var clientImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import clients and their equipment from a YAML file",
	Long: `Import clients and their equipment from a YAML file. Each entry is a client
record with an "equipos" list. Existing clients (matched by id) are updated and
their equipment lists replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runClientImport,
}

var clientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known clients",
	Args:  cobra.NoArgs,
	RunE:  runClientList,
}

var clientAddCmd = &cobra.Command{
	Use:   "add <nombre>",
	Short: "Add a client to the directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientAdd,
}

var clientDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a client and its equipment",
	Long:  "Delete a client and every equipment record at its site. Requires --force or typing the client name to confirm.",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientDelete,
}

var (
	newClient         types.Client
	clientDeleteForce bool
)

func init() {
	addStoreFlags(clientCmd)

	clientAddCmd.Flags().Int64Var(&newClient.ID, "id", 0, "Client id (assigned when omitted)")
	clientAddCmd.Flags().StringVar(&newClient.Contact, "contacto", "", "Contact person")
	clientAddCmd.Flags().StringVar(&newClient.Phone, "telefono", "", "Phone number")
	clientAddCmd.Flags().StringVar(&newClient.Email, "email", "", "Email address")
	clientAddCmd.Flags().StringVar(&newClient.Address, "direccion", "", "Site address")
	clientDeleteCmd.Flags().BoolVar(&clientDeleteForce, "force", false, "Skip confirmation prompt")

	clientCmd.AddCommand(clientImportCmd)
	clientCmd.AddCommand(clientListCmd)
	clientCmd.AddCommand(clientAddCmd)
	clientCmd.AddCommand(clientDeleteCmd)
}

// clientFile is the layout of an import file.
type clientFile struct {
	Clients []types.ClientWithEquipment `yaml:"clientes"`
}

func runClientImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}

	var f clientFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse import file: %w", err)
	}
	for i, c := range f.Clients {
		if c.Name == "" {
			return fmt.Errorf("client #%d: nombre is required", i+1)
		}
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.ImportClients(context.Background(), f.Clients)
	if err != nil {
		return fmt.Errorf("import clients: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"imported": n,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d clients\n", n)
	return nil
}

func runClientList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	clients, err := s.ListClients(context.Background())
	if err != nil {
		return fmt.Errorf("list clients: %w", err)
	}
	if clients == nil {
		clients = []types.ClientSummary{}
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), clients)
	}

	if len(clients) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No clients found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tNOMBRE")
	for _, c := range clients {
		fmt.Fprintf(w, "%d\t%s\n", c.ID, c.Name)
	}
	w.Flush()
	return nil
}

func runClientAdd(cmd *cobra.Command, args []string) error {
	c := newClient
	c.Name = strings.TrimSpace(args[0])
	if c.Name == "" {
		return fmt.Errorf("nombre is required")
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.CreateClient(context.Background(), c)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), types.ClientSummary{ID: id, Name: c.Name})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added client %d %q\n", id, c.Name)
	return nil
}

func runClientDelete(cmd *cobra.Command, args []string) error {
	id, err := parseClientID(args[0])
	if err != nil {
		return err
	}
	ctx := context.Background()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	c, err := s.GetClient(ctx, id)
	if err != nil {
		return fmt.Errorf("client %d: %w", id, err)
	}

	if !clientDeleteForce {
		errOut := cmd.ErrOrStderr()
		fmt.Fprintf(errOut, "WARNING: This will delete client %q and all its equipment.\n", c.Name)
		fmt.Fprint(errOut, "Type the client name to confirm: ")

		input, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.TrimSpace(input) != c.Name {
			fmt.Fprintln(errOut, "Aborted. Name did not match.")
			return nil
		}
	}

	if err := s.DeleteClient(ctx, id); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"id":      id,
			"deleted": true,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted client %d %q\n", id, c.Name)
	return nil
}

func parseClientID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid client id %q", raw)
	}
	return id, nil
}
