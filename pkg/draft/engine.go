package draft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// ErrMissingElement is returned by Bind when a required element is absent.
var ErrMissingElement = errors.New("required form element missing")

// NoFolio keys the draft of a report that has no identifier yet.
// Such drafts stay local and are never sent to the server.
const NoFolio = "no-folio"

// FieldBinding names a composite field and the ids of its two representations.
type FieldBinding struct {
	Name     string
	ListID   string
	ManualID string
	ByLabel  bool
}

// Config configures an Engine. DefaultConfig returns the report form layout.
type Config struct {
	Folio string

	FastInterval time.Duration
	SlowInterval time.Duration
	ClientWait   time.Duration
	FetchTimeout time.Duration

	DraftPrefix     string
	IndexKey        string
	SignatureFields []string
	SkipFields      []string

	// Snapshot keys copied into the draft index.
	ClientNameField string
	DateField       string

	Client FieldBinding
	Type   FieldBinding
	Model  FieldBinding
	Serial FieldBinding

	// Names of the plain fields filled by the cascade. Missing ones are skipped.
	ContactField    string
	PhoneField      string
	EmailField      string
	AddressField    string
	BrandField      string
	OtherBrandField string
	PowerField      string
}

// DefaultConfig returns the configuration of the maintenance report form.
func DefaultConfig() Config {
	return Config{
		FastInterval:    DefaultFastInterval,
		SlowInterval:    DefaultSlowInterval,
		ClientWait:      DefaultClientWait,
		FetchTimeout:    DefaultFetchTimeout,
		DraftPrefix:     DefaultDraftPrefix,
		IndexKey:        DefaultIndexKey,
		SignatureFields: DefaultSignatureFields,
		ClientNameField: "cliente",
		DateField:       "fecha",
		Client:          FieldBinding{Name: "cliente", ListID: "cliente_select", ManualID: "cliente_input", ByLabel: true},
		Type:            FieldBinding{Name: "tipo_equipo", ListID: "tipo_equipo_select", ManualID: "tipo_equipo_input"},
		Model:           FieldBinding{Name: "modelo", ListID: "modelo_select", ManualID: "modelo_input"},
		Serial:          FieldBinding{Name: "serie", ListID: "serie_select", ManualID: "serie_input"},
		ContactField:    "contacto",
		PhoneField:      "telefono",
		EmailField:      "email",
		AddressField:    "direccion",
		BrandField:      "marca",
		OtherBrandField: "otra_marca",
		PowerField:      "potencia",
	}
}

// Deps are the collaborators of an Engine. KV is required; without Remote
// drafts stay local, and without Directory the cascade is not driven.
type Deps struct {
	KV        KV
	Remote    Remote
	Directory Directory
	Notifier  Notifier
	Clock     Clock
	Logger    *slog.Logger
}

// Source reports where Load found a draft.
type Source int

const (
	SourceNone Source = iota
	SourceRemote
	SourceLocal
)

func (s Source) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceLocal:
		return "local"
	default:
		return "none"
	}
}

// Engine keeps one open form durable across the local and remote tiers.
type Engine struct {
	cfg      Config
	folio    string
	form     *Form
	codec    *Codec
	local    *LocalCache
	catalog  *Catalog
	remote   Remote
	seq      *Sequencer
	sched    *Scheduler
	notifier Notifier
	logger   *slog.Logger

	composites map[string]*CompositeField
	links      map[string]Link // element id -> cascade link

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards form and every element in it. The sequencer shares it.
	mu     sync.Mutex
	closed bool
}

// Bind validates every element the engine needs up front and returns an
// Engine for form. It fails with ErrMissingElement instead of tolerating
// absent elements later.
func Bind(form *Form, deps Deps, cfg Config) (*Engine, error) {
	if form == nil {
		return nil, fmt.Errorf("%w: form", ErrMissingElement)
	}
	if deps.KV == nil {
		return nil, errors.New("draft engine needs a KV store")
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	folio := cfg.Folio
	if folio == "" {
		folio = NoFolio
	}

	e := &Engine{
		cfg:        cfg,
		folio:      folio,
		form:       form,
		remote:     deps.Remote,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		composites: make(map[string]*CompositeField),
		links:      make(map[string]Link),
	}

	bindings := []FieldBinding{cfg.Client, cfg.Type, cfg.Model, cfg.Serial}
	fields := make([]*CompositeField, 0, len(bindings))
	for i, b := range bindings {
		if b.Name == "" {
			return nil, fmt.Errorf("%w: composite field %d has no name", ErrMissingElement, i)
		}
		list, manual := form.ByID(b.ListID), form.ByID(b.ManualID)
		if list == nil {
			return nil, fmt.Errorf("%w: #%s", ErrMissingElement, b.ListID)
		}
		if manual == nil {
			return nil, fmt.Errorf("%w: #%s", ErrMissingElement, b.ManualID)
		}
		cf, err := NewCompositeField(b.Name, list, manual, b.ByLabel)
		if err != nil {
			return nil, err
		}
		fields = append(fields, cf)
		e.composites[b.Name] = cf
		e.links[b.ListID] = Link(i)
		e.links[b.ManualID] = Link(i)
	}

	e.codec = NewCodec(form, fields...)
	e.codec.now = deps.Clock.Now
	e.codec.SkipFields(cfg.SkipFields...)

	e.local = NewLocalCache(deps.KV, LocalOptions{
		Prefix:          cfg.DraftPrefix,
		SignatureFields: cfg.SignatureFields,
		Notifier:        deps.Notifier,
		Logger:          deps.Logger,
	})
	e.catalog = NewCatalog(deps.KV, cfg.DraftPrefix, cfg.IndexKey, deps.Logger)

	if deps.Directory != nil {
		seq, err := NewSequencer(SequencerOptions{
			Client: fields[LinkClient],
			Type:   fields[LinkType],
			Model:  fields[LinkModel],
			Serial: fields[LinkSerial],
			Details: Details{
				Contact:    named(form, cfg.ContactField),
				Phone:      named(form, cfg.PhoneField),
				Email:      named(form, cfg.EmailField),
				Address:    named(form, cfg.AddressField),
				Brand:      named(form, cfg.BrandField),
				OtherBrand: named(form, cfg.OtherBrandField),
				Power:      named(form, cfg.PowerField),
			},
			Directory:    deps.Directory,
			ClientWait:   cfg.ClientWait,
			FetchTimeout: cfg.FetchTimeout,
			Lock:         &e.mu,
			Logger:       deps.Logger,
		})
		if err != nil {
			return nil, err
		}
		e.seq = seq
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.sched = NewScheduler(deps.Clock, cfg.FastInterval, cfg.SlowInterval, e.saveLocal, e.saveRemote)
	return e, nil
}

// Folio returns the draft key of the open form.
func (e *Engine) Folio() string { return e.folio }

// Composite returns the composite field called name, or nil.
func (e *Engine) Composite(name string) *CompositeField { return e.composites[name] }

// Sequencer returns the cascade sequencer, or nil without a Directory.
func (e *Engine) Sequencer() *Sequencer { return e.seq }

// Catalog returns the local draft index.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Local returns the local cache tier.
func (e *Engine) Local() *LocalCache { return e.local }

// Dispatch routes a UI event captured at the form root to the scheduler.
func (e *Engine) Dispatch(ev Event) bool {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return false
	}
	return e.sched.Notify(ev)
}

// Input types value into the element with the given id.
func (e *Engine) Input(id, value string) error {
	e.mu.Lock()
	el := e.form.ByID(id)
	if el == nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: #%s", ErrMissingElement, id)
	}
	err := el.Set(value)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	if _, ok := e.links[id]; ok && e.seq != nil {
		e.seq.Supersede()
	}
	e.Dispatch(Event{Type: EventInput, Target: id})
	return nil
}

// Check sets the checked state of a checkbox or radio. Checking a radio
// unchecks the others of its group.
func (e *Engine) Check(id string, checked bool) error {
	e.mu.Lock()
	el := e.form.ByID(id)
	if el == nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: #%s", ErrMissingElement, id)
	}
	if el.Disabled {
		e.mu.Unlock()
		return ErrDisabled
	}
	if el.Kind == KindRadio && checked {
		for _, other := range e.form.Elements() {
			if other.Kind == KindRadio && other.Name == el.Name {
				other.Checked = false
			}
		}
	}
	el.Checked = checked
	e.mu.Unlock()

	e.Dispatch(Event{Type: EventChange, Target: id})
	return nil
}

// Select chooses value in the select with the given id. Selections on the
// cascade advance the chain; choosing a client fetches its equipment.
func (e *Engine) Select(ctx context.Context, id, value string) error {
	e.mu.Lock()
	el := e.form.ByID(id)
	if el == nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: #%s", ErrMissingElement, id)
	}
	err := el.Set(value)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.Dispatch(Event{Type: EventChange, Target: id})
	if link, ok := e.links[id]; ok {
		return e.advance(ctx, link)
	}
	return nil
}

// Toggle flips the representation of the composite field called name. The
// value is carried across, so downstream cascade values are kept and only
// their candidates are recomputed.
func (e *Engine) Toggle(ctx context.Context, name string) error {
	cf := e.composites[name]
	if cf == nil {
		return fmt.Errorf("%w: composite %q", ErrMissingElement, name)
	}
	e.mu.Lock()
	cf.Toggle()
	e.mu.Unlock()

	e.Dispatch(Event{Type: EventChange, Target: cf.List().ID})
	if e.seq == nil {
		return nil
	}
	return e.seq.OnToggled(ctx, e.links[cf.List().ID])
}

func (e *Engine) advance(ctx context.Context, link Link) error {
	if e.seq == nil {
		return nil
	}
	switch link {
	case LinkClient:
		return e.seq.OnClientSelected(ctx)
	case LinkType:
		e.seq.Supersede()
		e.seq.OnTypeSelected()
	case LinkModel:
		e.seq.Supersede()
		e.seq.OnModelSelected()
	case LinkSerial:
		e.seq.Supersede()
		e.seq.OnSerialSelected()
	}
	return nil
}

// Load restores the draft of the open form. The server copy wins when the
// folio is known; the local copy is the fallback. The cascade is restored
// first so its candidates exist, then plain fields are applied.
// Restoration does not schedule saves.
func (e *Engine) Load(ctx context.Context) (Source, error) {
	var (
		snap   Snapshot
		found  bool
		source = SourceNone
	)
	if e.folio != NoFolio && e.remote != nil {
		if snap, found = e.remote.Load(ctx, e.folio); found {
			source = SourceRemote
		}
	}
	if !found {
		if snap, found = e.local.Read(e.folio); found {
			source = SourceLocal
		}
	}

	if e.seq != nil {
		var err error
		if found {
			err = e.seq.Restore(ctx, snap)
		} else {
			err = e.seq.PopulateClients(ctx)
		}
		if err != nil && ctx.Err() != nil {
			return source, ctx.Err()
		}
	}
	if !found {
		return SourceNone, nil
	}

	e.mu.Lock()
	e.codec.Apply(snap)
	e.mu.Unlock()

	e.logger.Info("draft restored",
		"component", "draft",
		"action", "restored",
		"folio", e.folio,
		"source", source.String(),
		"saved_at", snap.SavedAt(),
	)
	return source, nil
}

// Snapshot serializes the current form state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.codec.Serialize()
}

// Flush runs any pending debounced save immediately.
func (e *Engine) Flush() {
	e.sched.Flush()
}

// Submit prepares the form for submission and returns the payload. Every
// composite's canonical value and every hidden or disabled checkbox reaches
// the payload through a hidden _<name>_submit field. The draft is then cleared.
func (e *Engine) Submit() url.Values {
	e.sched.Stop()

	e.mu.Lock()
	for _, b := range []FieldBinding{e.cfg.Client, e.cfg.Type, e.cfg.Model, e.cfg.Serial} {
		cf := e.composites[b.Name]
		e.materialize(cf.Name(), cf.CanonicalValue())
	}
	for _, el := range e.form.Elements() {
		if el.Kind != KindCheckbox || el.Name == "" || el.transient {
			continue
		}
		if !el.Hidden && !el.Disabled {
			continue
		}
		value := ""
		if el.Checked {
			value = "1"
		}
		e.materialize(el.Name, value)
		el.superseded = true
	}
	payload := e.form.Payload()
	e.mu.Unlock()

	e.clear()
	return payload
}

// materialize creates or updates the hidden submit field for name.
func (e *Engine) materialize(name, value string) {
	id := "_" + name + "_submit"
	el := e.form.ByID(id)
	if el == nil {
		el = &Element{ID: id, Name: name, Kind: KindHidden, transient: true}
		e.form.Add(el)
	}
	el.Value = value
}

// DeleteDraft discards the draft of the open form and its index entry.
func (e *Engine) DeleteDraft() {
	e.sched.Stop()
	e.clear()
}

func (e *Engine) clear() {
	e.catalog.Remove(e.folio)
	e.logger.Info("draft cleared",
		"component", "draft",
		"action", "cleared",
		"folio", e.folio,
	)
}

// Close flushes pending saves, waits for remote saves in flight and stops the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	e.sched.Flush()

	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.sched.Stop()
	e.wg.Wait()
	e.cancel()
	return nil
}

func (e *Engine) saveLocal() {
	e.mu.Lock()
	snap := e.codec.Serialize()
	e.mu.Unlock()

	outcome := e.local.Write(e.folio, snap)
	if outcome == WriteDropped {
		return
	}
	if err := e.catalog.Update(IndexEntry{
		Folio:      e.folio,
		ClientName: snap[e.cfg.ClientNameField],
		Date:       snap[e.cfg.DateField],
		SavedAt:    snap.SavedAt(),
	}); err != nil {
		e.logger.Debug("draft index update failed",
			"component", "draft",
			"action", "index_update_failed",
			"folio", e.folio,
			"error", err,
		)
	}
	e.logger.Debug("draft saved locally",
		"component", "draft",
		"action", "local_saved",
		"folio", e.folio,
		"outcome", outcome.String(),
	)
}

func (e *Engine) saveRemote() {
	if e.folio == NoFolio || e.remote == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		// Close is already waiting on the saves in flight.
		e.mu.Unlock()
		return
	}
	snap := e.codec.Serialize()
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		e.notifier.Status("Saving draft...", false)
		if err := e.remote.Save(e.ctx, e.folio, snap); err != nil {
			var se *StatusError
			msg := "Connection error while saving draft"
			if errors.As(err, &se) {
				msg = "Server draft save failed"
			}
			e.logger.Warn("remote draft save failed",
				"component", "draft",
				"action", "remote_save_failed",
				"folio", e.folio,
				"error", err,
			)
			e.notifier.Status(msg, true)
			return
		}
		e.notifier.Status("Draft saved to server", false)
	}()
}

func named(form *Form, name string) *Element {
	if name == "" {
		return nil
	}
	return form.Named(name)
}
