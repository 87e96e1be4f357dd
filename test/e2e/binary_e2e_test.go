//go:build e2e

package e2e

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/inair/reportes/pkg/draft"
)

// These tests exercise the built binary: the server process and the operator CLI.

func TestBinary_ImportAllocateAndAutosave(t *testing.T) {
	srv := startReportes(t)

	fixture := filepath.Join(t.TempDir(), "clientes.yaml")
	if err := os.WriteFile(fixture, []byte(`
clientes:
  - id: 1
    nombre: ACME
    contacto: Ana Ruiz
    equipos:
      - tipo_equipo: COMPRESOR
        modelo: GA37
        serie: AII123
        marca: ATLAS COPCO
        potencia: 50 HP
`), 0644); err != nil {
		t.Fatal(err)
	}
	if out, err := srv.cli(t, "client", "import", fixture); err != nil {
		t.Fatalf("client import: %v\n%s", err, out)
	}

	out, err := srv.cli(t, "folio", "next")
	if err != nil {
		t.Fatalf("folio next: %v\n%s", err, out)
	}
	folio := strings.TrimSpace(out)
	if folio != "INAIR-0001" {
		t.Fatalf("folio = %q", folio)
	}

	s := openSession(t, srv.baseURL(), folio, draft.NewMemoryKV(0))
	fillReport(t, s)
	s.engine.Close()

	out, err = srv.cli(t, "draft", "list")
	if err != nil {
		t.Fatalf("draft list: %v\n%s", err, out)
	}
	if !strings.Contains(out, folio) || !strings.Contains(out, "ACME") {
		t.Errorf("draft list = %q", out)
	}

	out, err = srv.cli(t, "local", "pull", folio)
	if err != nil {
		t.Fatalf("local pull: %v\n%s", err, out)
	}
	out, err = srv.cli(t, "local", "list")
	if err != nil || !strings.Contains(out, folio) {
		t.Errorf("local list = %q, %v", out, err)
	}

	remote := draft.NewRemoteClient(srv.baseURL(), nil)
	snap, ok := remote.Load(context.Background(), folio)
	if !ok || snap["serie"] != "AII123" {
		t.Errorf("remote load = %v, %v", snap, ok)
	}
}

func TestBinary_GracefulShutdown(t *testing.T) {
	srv := startReportes(t)
	srv.stop()

	logs, err := os.ReadFile(srv.logFile)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"server starting", "shutdown initiated", "shutdown complete"} {
		if !strings.Contains(string(logs), want) {
			t.Errorf("log missing %q", want)
		}
	}
}
