package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/inair/reportes/internal/api"
	"github.com/inair/reportes/internal/store"
	"github.com/inair/reportes/internal/types"
	"github.com/inair/reportes/pkg/draft"
)

// testEnv is an in-process server over a real SQLite database.
type testEnv struct {
	store  *store.SQLiteStore
	server *httptest.Server
}

// setupTestEnv starts the API over a fresh database seeded with the client directory.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "reportes.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if _, err := s.ImportClients(context.Background(), directoryFixture()); err != nil {
		t.Fatalf("ImportClients() error = %v", err)
	}

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(s, "INAIR", "e2e")))
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return &testEnv{store: s, server: srv}
}

func directoryFixture() []types.ClientWithEquipment {
	return []types.ClientWithEquipment{
		{
			Client: types.Client{ID: 1, Name: "ACME", Contact: "Ana Ruiz", Phone: "555-0101", Email: "ana@acme.test", Address: "Av. Norte 12"},
			Equipment: []types.Equipment{
				{Type: "COMPRESOR", Model: "GA37", Serial: "AII123", Brand: "atlas copco", Power: "50 HP"},
				{Type: "COMPRESOR", Model: "GA55", Serial: "AII200", Brand: "ATLAS COPCO", Power: "75 HP"},
				{Type: "COMPRESOR", Model: "GA55", Serial: "AII201", Brand: "ATLAS COPCO", Power: "75 HP"},
				{Type: "SECADOR", Model: "FD120", Serial: "SEC9", Brand: "Quincy", Power: "2 HP"},
			},
		},
		{
			Client: types.Client{ID: 2, Name: "Beta Industrial", Contact: "Luis"},
		},
	}
}

// newReportForm builds the headless maintenance report form.
func newReportForm() *draft.Form {
	return draft.NewForm(
		&draft.Element{ID: "folio", Name: "folio", Kind: draft.KindHidden},
		&draft.Element{ID: "fecha", Name: "fecha", Kind: draft.KindText},
		&draft.Element{ID: "cliente_select", Name: "cliente_select", Kind: draft.KindSelect, Options: []draft.Option{{Value: "", Label: draft.PlaceholderClient}}},
		&draft.Element{ID: "cliente_input", Name: "cliente_input", Kind: draft.KindText},
		&draft.Element{ID: "contacto", Name: "contacto", Kind: draft.KindText},
		&draft.Element{ID: "telefono", Name: "telefono", Kind: draft.KindText},
		&draft.Element{ID: "email", Name: "email", Kind: draft.KindText},
		&draft.Element{ID: "direccion", Name: "direccion", Kind: draft.KindText},
		&draft.Element{ID: "tipo_equipo_select", Name: "tipo_equipo_select", Kind: draft.KindSelect, Options: []draft.Option{{Value: "", Label: draft.PlaceholderType}}},
		&draft.Element{ID: "tipo_equipo_input", Name: "tipo_equipo_input", Kind: draft.KindText},
		&draft.Element{ID: "modelo_select", Name: "modelo_select", Kind: draft.KindSelect, Options: []draft.Option{{Value: "", Label: draft.PlaceholderModel}}},
		&draft.Element{ID: "modelo_input", Name: "modelo_input", Kind: draft.KindText},
		&draft.Element{ID: "serie_select", Name: "serie_select", Kind: draft.KindSelect, Options: []draft.Option{{Value: "", Label: draft.PlaceholderSerial}}},
		&draft.Element{ID: "serie_input", Name: "serie_input", Kind: draft.KindText},
		&draft.Element{ID: "marca", Name: "marca", Kind: draft.KindSelect, Options: []draft.Option{
			{Value: "", Label: "--"},
			{Value: "ATLAS COPCO", Label: "Atlas Copco"},
			{Value: "KAESER", Label: "Kaeser"},
			{Value: draft.OtherBrand, Label: "Otros"},
		}},
		&draft.Element{ID: "otra_marca", Name: "otra_marca", Kind: draft.KindText},
		&draft.Element{ID: "potencia", Name: "potencia", Kind: draft.KindText, ReadOnly: true},
		&draft.Element{ID: "cambio_filtro", Name: "cambio_filtro", Kind: draft.KindCheckbox, Value: "1"},
		&draft.Element{ID: "notas", Name: "notas", Kind: draft.KindTextarea},
		&draft.Element{ID: "foto1", Name: "foto1", Kind: draft.KindFile},
		&draft.Element{ID: "foto1_data", Name: "foto1_data", Kind: draft.KindHidden},
		&draft.Element{ID: "firma_tecnico_data", Name: "firma_tecnico_data", Kind: draft.KindHidden},
		&draft.Element{ID: "firma_cliente_data", Name: "firma_cliente_data", Kind: draft.KindHidden},
	)
}

// session is one open report form on one device.
type session struct {
	engine *draft.Engine
	form   *draft.Form
	kv     draft.KV
}

// openSession binds an engine for folio against baseURL with the given cache.
// Sessions are closed at test cleanup if the test did not close them.
func openSession(t *testing.T, baseURL, folio string, kv draft.KV) *session {
	t.Helper()

	form := newReportForm()
	remote := draft.NewRemoteClient(baseURL, nil)

	cfg := draft.DefaultConfig()
	cfg.Folio = folio
	cfg.FastInterval = 20 * time.Millisecond
	cfg.SlowInterval = 50 * time.Millisecond
	cfg.ClientWait = 2 * time.Second
	cfg.FetchTimeout = 2 * time.Second

	engine, err := draft.Bind(form, draft.Deps{
		KV:        kv,
		Remote:    remote,
		Directory: remote,
	}, cfg)
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return &session{engine: engine, form: form, kv: kv}
}

func (s *session) value(name string) string {
	return s.engine.Snapshot()[name]
}

// allocateFolio asks the server for the next folio.
func allocateFolio(t *testing.T, baseURL string) string {
	t.Helper()
	folio, err := postFolio(baseURL)
	if err != nil {
		t.Fatalf("nuevo_folio: %v", err)
	}
	return folio
}

func postFolio(baseURL string) (string, error) {
	resp, err := http.Post(baseURL+"/api/nuevo_folio", "application/json", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var fr types.FolioResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return "", fmt.Errorf("decode folio: %w", err)
	}
	return fr.Folio, nil
}

// waitFor polls cond until it holds or timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
