package draft

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"
)

// --- Fake clock ---

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c    *fakeClock
	at   time.Time
	f    func()
	done bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs every timer that became due, in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, pending []*fakeTimer
	for _, t := range c.timers {
		switch {
		case t.done:
		case !t.at.After(c.now):
			t.done = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// --- Fake directory ---

type fakeDirectory struct {
	mu         sync.Mutex
	clients    []Client
	clientsErr error
	equipment  map[string]*ClientEquipment
	equipErr   error
	gates      map[string]chan struct{}
	entered    chan string
	calls      []string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		clients: []Client{
			{ID: 1, Name: "ACME"},
			{ID: 2, Name: "Globex"},
		},
		equipment: map[string]*ClientEquipment{
			"1": {
				Client: ClientContact{Contact: "Ana Ruiz", Phone: "555-0101", Email: "ana@acme.test", Address: "Calle 1"},
				Equipment: []EquipmentRecord{
					{Type: "Compresor", Model: "X", Serial: "001", Brand: "atlas copco", Power: "50 HP"},
					{Type: "Compresor", Model: "Y", Serial: "101", Brand: "Kaeser", Power: "30 HP"},
					{Type: "Compresor", Model: "Y", Serial: "102", Brand: "Kaeser", Power: "30 HP"},
					{Type: "Secador", Model: "D1", Serial: "900", Brand: "Acme Dry", Power: "5 HP"},
				},
			},
			"2": {
				Client: ClientContact{Contact: "Hank", Phone: "555-0202"},
				Equipment: []EquipmentRecord{
					{Type: "Bomba", Model: "B7", Serial: "B-1", Brand: "Grundfos", Power: "2 HP"},
				},
			},
		},
		gates:   make(map[string]chan struct{}),
		entered: make(chan string, 16),
	}
}

func (d *fakeDirectory) Clients(ctx context.Context) ([]Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.clientsErr != nil {
		return nil, d.clientsErr
	}
	return append([]Client(nil), d.clients...), nil
}

func (d *fakeDirectory) ClientEquipment(ctx context.Context, id string) (*ClientEquipment, error) {
	d.mu.Lock()
	d.calls = append(d.calls, id)
	gate := d.gates[id]
	err := d.equipErr
	ce := d.equipment[id]
	d.mu.Unlock()

	select {
	case d.entered <- id:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if ce == nil {
		return &ClientEquipment{}, nil
	}
	return ce, nil
}

// block makes equipment fetches for id wait until the returned func is called.
func (d *fakeDirectory) block(id string) func() {
	ch := make(chan struct{})
	d.mu.Lock()
	d.gates[id] = ch
	d.mu.Unlock()
	return func() { close(ch) }
}

// --- Fake remote ---

type fakeRemote struct {
	mu      sync.Mutex
	drafts  map[string]Snapshot
	saveErr error
	saves   int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{drafts: make(map[string]Snapshot)}
}

func (r *fakeRemote) Save(ctx context.Context, folio string, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.saveErr != nil {
		return r.saveErr
	}
	r.drafts[folio] = snap.Clone()
	return nil
}

func (r *fakeRemote) Load(ctx context.Context, folio string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.drafts[folio]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (r *fakeRemote) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// --- Form fixtures ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newReportForm builds a form shaped like the maintenance report.
func newReportForm() *Form {
	return NewForm(
		&Element{ID: "folio", Name: "folio", Kind: KindHidden},
		&Element{ID: "fecha", Name: "fecha", Kind: KindText},
		&Element{ID: "cliente_select", Name: "cliente_select", Kind: KindSelect, Options: []Option{{Value: "", Label: PlaceholderClient}}},
		&Element{ID: "cliente_input", Name: "cliente_input", Kind: KindText},
		&Element{ID: "contacto", Name: "contacto", Kind: KindText},
		&Element{ID: "telefono", Name: "telefono", Kind: KindText},
		&Element{ID: "email", Name: "email", Kind: KindText},
		&Element{ID: "direccion", Name: "direccion", Kind: KindText},
		&Element{ID: "tipo_equipo_select", Name: "tipo_equipo_select", Kind: KindSelect, Options: []Option{{Value: "", Label: PlaceholderType}}},
		&Element{ID: "tipo_equipo_input", Name: "tipo_equipo_input", Kind: KindText},
		&Element{ID: "modelo_select", Name: "modelo_select", Kind: KindSelect, Options: []Option{{Value: "", Label: PlaceholderModel}}},
		&Element{ID: "modelo_input", Name: "modelo_input", Kind: KindText},
		&Element{ID: "serie_select", Name: "serie_select", Kind: KindSelect, Options: []Option{{Value: "", Label: PlaceholderSerial}}},
		&Element{ID: "serie_input", Name: "serie_input", Kind: KindText},
		&Element{ID: "marca", Name: "marca", Kind: KindSelect, Options: []Option{
			{Value: "", Label: "--"},
			{Value: "ATLAS COPCO", Label: "Atlas Copco"},
			{Value: "KAESER", Label: "Kaeser"},
			{Value: OtherBrand, Label: "Otros"},
		}},
		&Element{ID: "otra_marca", Name: "otra_marca", Kind: KindText},
		&Element{ID: "potencia", Name: "potencia", Kind: KindText, ReadOnly: true},
		&Element{ID: "tipo_servicio_prev", Name: "tipo_servicio", Kind: KindRadio, Value: "preventivo"},
		&Element{ID: "tipo_servicio_corr", Name: "tipo_servicio", Kind: KindRadio, Value: "correctivo"},
		&Element{ID: "cambio_filtro", Name: "cambio_filtro", Kind: KindCheckbox, Value: "1"},
		&Element{ID: "cambio_aceite", Name: "cambio_aceite", Kind: KindCheckbox, Value: "1"},
		&Element{ID: "notas", Name: "notas", Kind: KindTextarea},
		&Element{ID: "foto1", Name: "foto1", Kind: KindFile},
		&Element{ID: "foto1_data", Name: "foto1_data", Kind: KindHidden},
		&Element{ID: "firma_tecnico_data", Name: "firma_tecnico_data", Kind: KindHidden},
		&Element{ID: "firma_cliente_data", Name: "firma_cliente_data", Kind: KindHidden},
	)
}

type engineFixture struct {
	engine *Engine
	form   *Form
	kv     *MemoryKV
	clock  *fakeClock
	dir    *fakeDirectory
	remote *fakeRemote
	status *StatusIndicator
}

// newEngineFixture binds an engine for folio. A nil dir disables the cascade;
// a nil remote keeps drafts local.
func newEngineFixture(t *testing.T, folio string, dir *fakeDirectory, remote *fakeRemote) *engineFixture {
	t.Helper()
	clock := newFakeClock()
	kv := NewMemoryKV(0)
	status := NewStatusIndicator(clock)
	form := newReportForm()

	cfg := DefaultConfig()
	cfg.Folio = folio
	cfg.ClientWait = 2 * time.Second
	cfg.FetchTimeout = 2 * time.Second

	deps := Deps{
		KV:       kv,
		Notifier: status,
		Clock:    clock,
		Logger:   discardLogger(),
	}
	if dir != nil {
		deps.Directory = dir
	}
	if remote != nil {
		deps.Remote = remote
	}

	e, err := Bind(form, deps, cfg)
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return &engineFixture{engine: e, form: form, kv: kv, clock: clock, dir: dir, remote: remote, status: status}
}
