package draft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultClientWait bounds how long restoration waits for the client list.
	DefaultClientWait = 5 * time.Second

	// DefaultFetchTimeout bounds one equipment fetch.
	DefaultFetchTimeout = 10 * time.Second
)

var (
	// ErrTimeout is returned when the client list is not ready in time.
	ErrTimeout = errors.New("timed out waiting for client list")

	// ErrSuperseded is returned when a newer restoration or user edit replaced
	// the one in progress. Its late results were discarded.
	ErrSuperseded = errors.New("cascade step superseded")
)

// Directory supplies the client list and per-client equipment records.
type Directory interface {
	Clients(ctx context.Context) ([]Client, error)
	ClientEquipment(ctx context.Context, clientID string) (*ClientEquipment, error)
}

// ClientLoader fetches the client list once and signals completion through Done.
type ClientLoader struct {
	dir Directory

	once    sync.Once
	done    chan struct{}
	clients []Client
	err     error
}

// NewClientLoader creates a loader; nothing is fetched until Start.
func NewClientLoader(dir Directory) *ClientLoader {
	return &ClientLoader{dir: dir, done: make(chan struct{})}
}

// Start begins the fetch in the background. Later calls do nothing.
func (l *ClientLoader) Start(ctx context.Context) {
	l.once.Do(func() {
		go func() {
			defer close(l.done)
			l.clients, l.err = l.dir.Clients(ctx)
		}()
	})
}

// Done is closed once the fetch has finished, successfully or not.
func (l *ClientLoader) Done() <-chan struct{} {
	return l.done
}

// Result returns the fetched clients. It is only meaningful after Done is closed.
func (l *ClientLoader) Result() ([]Client, error) {
	select {
	case <-l.done:
		return l.clients, l.err
	default:
		return nil, ErrTimeout
	}
}

// Wait starts the loader if needed and blocks until it finishes, the timeout
// elapses or ctx is cancelled.
func (l *ClientLoader) Wait(ctx context.Context, timeout time.Duration) ([]Client, error) {
	l.Start(ctx)
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-l.done:
		return l.clients, l.err
	case <-t.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stage is the restoration state of one cascade link.
type Stage int

const (
	StagePending Stage = iota
	StagePopulating
	StageApplied
)

func (s Stage) String() string {
	switch s {
	case StagePopulating:
		return "populating"
	case StageApplied:
		return "applied"
	default:
		return "pending"
	}
}

// Link identifies a position in the cascade chain.
type Link int

const (
	LinkClient Link = iota
	LinkType
	LinkModel
	LinkSerial
	linkCount
)

func (l Link) String() string {
	switch l {
	case LinkClient:
		return "client"
	case LinkType:
		return "equipment_type"
	case LinkModel:
		return "model"
	case LinkSerial:
		return "serial"
	default:
		return "unknown"
	}
}

// Placeholder labels of the cascade selects.
const (
	PlaceholderClient = "-- Select client --"
	PlaceholderType   = "-- Select type --"
	PlaceholderModel  = "-- Select model --"
	PlaceholderSerial = "-- Select serial --"
)

// OtherBrand is the brand option used when a record's brand is not listed.
const OtherBrand = "OTROS"

// Details are the plain elements filled from a client record or a matched
// equipment record. Any of them may be nil.
type Details struct {
	Contact    *Element
	Phone      *Element
	Email      *Element
	Address    *Element
	Brand      *Element
	OtherBrand *Element
	Power      *Element
}

// SequencerOptions configures a Sequencer.
type SequencerOptions struct {
	Client  *CompositeField
	Type    *CompositeField
	Model   *CompositeField
	Serial  *CompositeField
	Details Details

	Directory    Directory
	Loader       *ClientLoader
	ClientWait   time.Duration
	FetchTimeout time.Duration

	// Lock guards the form. It is released while waiting on the network.
	Lock   sync.Locker
	Logger *slog.Logger
}

// Sequencer drives the client, equipment type, model and serial chain so
// that each link's candidates exist before its value is applied.
type Sequencer struct {
	links        [linkCount]*CompositeField
	details      Details
	dir          Directory
	loader       *ClientLoader
	clientWait   time.Duration
	fetchTimeout time.Duration
	lock         sync.Locker
	logger       *slog.Logger

	// Guarded by lock.
	stages     [linkCount]Stage
	records    []EquipmentRecord
	recordsFor string // client id the records were fetched for
	gen        uint64
}

// NewSequencer creates a Sequencer. All four composites and a Directory are required.
func NewSequencer(opts SequencerOptions) (*Sequencer, error) {
	if opts.Client == nil || opts.Type == nil || opts.Model == nil || opts.Serial == nil {
		return nil, fmt.Errorf("%w: cascade needs client, type, model and serial fields", ErrMissingElement)
	}
	if opts.Directory == nil {
		return nil, errors.New("cascade needs a directory")
	}
	if opts.Loader == nil {
		opts.Loader = NewClientLoader(opts.Directory)
	}
	if opts.ClientWait <= 0 {
		opts.ClientWait = DefaultClientWait
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Lock == nil {
		opts.Lock = &sync.Mutex{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Sequencer{
		links:        [linkCount]*CompositeField{opts.Client, opts.Type, opts.Model, opts.Serial},
		details:      opts.Details,
		dir:          opts.Directory,
		loader:       opts.Loader,
		clientWait:   opts.ClientWait,
		fetchTimeout: opts.FetchTimeout,
		lock:         opts.Lock,
		logger:       opts.Logger,
	}, nil
}

// Stage returns the current stage of link.
func (s *Sequencer) Stage(link Link) Stage {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.stages[link]
}

// Supersede abandons any restoration or fetch in flight. Called when the user
// edits a cascade field so that late results never overwrite the edit.
func (s *Sequencer) Supersede() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.gen++
}

// PopulateClients waits for the client list and fills the client candidates.
func (s *Sequencer) PopulateClients(ctx context.Context) error {
	s.lock.Lock()
	s.gen++
	gen := s.gen
	s.lock.Unlock()

	clients, err := s.loader.Wait(ctx, s.clientWait)

	s.lock.Lock()
	defer s.lock.Unlock()
	if gen != s.gen {
		return ErrSuperseded
	}
	if err != nil {
		s.logFetchFailure(LinkClient, err)
		return err
	}
	s.setClientCandidates(clients)
	s.stages[LinkClient] = StagePopulating
	return nil
}

// Restore applies the cascade fields of snap in dependency order, waiting for
// each link's candidates before restoring it. Keys absent from snap leave the
// corresponding field untouched. On a fetch failure the failed link and every
// link after it stay Pending and fall back to an empty manual value.
func (s *Sequencer) Restore(ctx context.Context, snap Snapshot) error {
	s.lock.Lock()
	s.gen++
	gen := s.gen
	s.stages = [linkCount]Stage{}
	s.records = nil
	s.recordsFor = ""
	s.lock.Unlock()

	clients, err := s.loader.Wait(ctx, s.clientWait)

	s.lock.Lock()
	if gen != s.gen {
		s.lock.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		s.failFrom(LinkClient, err)
		s.lock.Unlock()
		return nil
	}
	s.setClientCandidates(clients)
	s.stages[LinkClient] = StagePopulating
	s.restoreLink(LinkClient, snap)
	s.stages[LinkClient] = StageApplied

	clientID := s.links[LinkClient].ListID()
	if clientID == "" {
		// A client outside the directory has no records: every downstream
		// value is free text.
		for l := LinkType; l < linkCount; l++ {
			s.links[l].SetCandidates(placeholder(l), nil)
			s.stages[l] = StagePopulating
			s.restoreLink(l, snap)
			s.stages[l] = StageApplied
		}
		s.lock.Unlock()
		return nil
	}
	s.lock.Unlock()

	ce, err := s.fetchEquipment(ctx, clientID)

	s.lock.Lock()
	defer s.lock.Unlock()
	if gen != s.gen {
		return ErrSuperseded
	}
	if err != nil {
		s.failFrom(LinkType, err)
		return nil
	}
	s.records = ce.Equipment
	s.recordsFor = clientID
	s.fillContact(ce.Client)

	s.populateTypes()
	s.restoreLink(LinkType, snap)
	s.stages[LinkType] = StageApplied

	s.populateModels()
	s.restoreLink(LinkModel, snap)
	s.stages[LinkModel] = StageApplied

	matches := s.populateSerials()
	if len(matches) == 1 {
		if v, ok := snap[s.links[LinkSerial].Name()]; ok && v != "" && v != matches[0].Serial {
			s.links[LinkSerial].ForceManual(v)
		}
	} else {
		s.restoreLink(LinkSerial, snap)
	}
	s.stages[LinkSerial] = StageApplied
	return nil
}

// OnClientSelected reacts to a new client value: it resets every downstream
// link and, for a known client, fetches its equipment.
func (s *Sequencer) OnClientSelected(ctx context.Context) error {
	s.lock.Lock()
	s.gen++
	gen := s.gen
	s.records = nil
	s.recordsFor = ""
	for l := LinkType; l < linkCount; l++ {
		s.links[l].ResetCandidates(placeholder(l))
		s.stages[l] = StagePending
	}
	s.stages[LinkClient] = StageApplied

	clientID := s.links[LinkClient].ListID()
	if clientID == "" {
		for l := LinkType; l < linkCount; l++ {
			s.links[l].SetCandidates(placeholder(l), nil)
			s.links[l].ForceManual("")
			s.stages[l] = StageApplied
		}
		s.lock.Unlock()
		return nil
	}
	s.lock.Unlock()

	ce, err := s.fetchEquipment(ctx, clientID)

	s.lock.Lock()
	defer s.lock.Unlock()
	if gen != s.gen {
		return ErrSuperseded
	}
	if err != nil {
		s.failFrom(LinkType, err)
		return err
	}
	s.records = ce.Equipment
	s.recordsFor = clientID
	s.fillContact(ce.Client)
	s.populateTypes()
	s.resetSerial()
	return nil
}

// OnTypeSelected recomputes the model candidates for the chosen type. The
// serial and the details filled from its record no longer apply and are cleared.
func (s *Sequencer) OnTypeSelected() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.stages[LinkType] = StageApplied
	s.populateModels()
	s.resetSerial()
}

// OnModelSelected recomputes the serial candidates. A single matching record
// fills the serial in manual mode along with its brand and rated power; no
// match leaves an empty manual serial.
func (s *Sequencer) OnModelSelected() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.stages[LinkModel] = StageApplied
	s.resetSerial()
	s.populateSerials()
}

// OnToggled reacts to a representation switch of link. The value carried
// across is the same logical value, so downstream values are kept and only
// their candidates are recomputed. The client chain restarts only when the
// list now selects a different client than the records belong to.
func (s *Sequencer) OnToggled(ctx context.Context, link Link) error {
	s.lock.Lock()
	s.gen++
	if link == LinkClient {
		id := s.links[LinkClient].ListID()
		changed := id != "" && id != s.recordsFor
		s.lock.Unlock()
		if changed {
			return s.OnClientSelected(ctx)
		}
		return nil
	}
	defer s.lock.Unlock()
	for l := link + 1; l < linkCount; l++ {
		s.refresh(l)
	}
	return nil
}

// OnSerialSelected fills brand and rated power from the chosen serial's record.
func (s *Sequencer) OnSerialSelected() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.stages[LinkSerial] = StageApplied
	serial := s.links[LinkSerial].CanonicalValue()
	for _, r := range s.matching() {
		if r.Serial == serial {
			s.fillEquipment(r)
			return
		}
	}
}

// restoreLink applies snap's value for link. An absent key leaves the field as is.
func (s *Sequencer) restoreLink(link Link, snap Snapshot) {
	cf := s.links[link]
	v, ok := snap[cf.Name()]
	if !ok {
		return
	}
	if err := cf.Restore(v); err != nil {
		// Candidates are always populated before this point.
		cf.ForceManual(v)
	}
}

// refresh recomputes the candidates of link without touching its value. A list
// selection that is no longer offered moves to the manual input.
func (s *Sequencer) refresh(link Link) {
	var opts []Option
	switch link {
	case LinkModel:
		opts = s.modelOptions()
	case LinkSerial:
		opts = serialOptions(s.matching())
	default:
		return
	}
	cf := s.links[link]
	value, mode := cf.CanonicalValue(), cf.Mode()
	cf.SetCandidates(placeholder(link), opts)
	if mode == ModeList && value != "" && cf.CanonicalValue() != value {
		cf.ForceManual(value)
	}
}

// resetSerial leaves the serial empty in manual mode and clears brand and
// rated power, which only describe a matched record.
func (s *Sequencer) resetSerial() {
	serial := s.links[LinkSerial]
	serial.ResetCandidates(PlaceholderSerial)
	serial.ForceManual("")
	s.stages[LinkSerial] = StagePending
	if brand := s.details.Brand; brand != nil && len(brand.Options) > 0 {
		assign(brand, brand.Options[0].Value)
	}
	assign(s.details.OtherBrand, "")
	assign(s.details.Power, "")
}

// failFrom leaves link and every later link Pending with an empty manual value.
func (s *Sequencer) failFrom(link Link, err error) {
	s.logFetchFailure(link, err)
	for l := link; l < linkCount; l++ {
		s.stages[l] = StagePending
		s.links[l].ResetCandidates(placeholder(l))
		s.links[l].ForceManual("")
	}
}

func (s *Sequencer) setClientCandidates(clients []Client) {
	opts := make([]Option, 0, len(clients))
	for _, c := range clients {
		opts = append(opts, Option{Value: strconv.FormatInt(c.ID, 10), Label: c.Name})
	}
	s.links[LinkClient].SetCandidates(PlaceholderClient, opts)
}

func (s *Sequencer) fetchEquipment(ctx context.Context, clientID string) (*ClientEquipment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	return s.dir.ClientEquipment(ctx, clientID)
}

func (s *Sequencer) populateTypes() {
	var opts []Option
	seen := make(map[string]bool)
	for _, r := range s.records {
		if r.Type == "" || seen[r.Type] {
			continue
		}
		seen[r.Type] = true
		opts = append(opts, Option{Value: r.Type, Label: r.Type})
	}
	s.links[LinkType].SetCandidates(PlaceholderType, opts)
	s.links[LinkModel].ResetCandidates(PlaceholderModel)
	s.links[LinkSerial].ResetCandidates(PlaceholderSerial)
	s.stages[LinkType] = StagePopulating
}

func (s *Sequencer) populateModels() {
	s.links[LinkModel].SetCandidates(PlaceholderModel, s.modelOptions())
	s.stages[LinkModel] = StagePopulating
}

func (s *Sequencer) modelOptions() []Option {
	typ := s.links[LinkType].CanonicalValue()
	var opts []Option
	seen := make(map[string]bool)
	for _, r := range s.records {
		if r.Type != typ || r.Model == "" || seen[r.Model] {
			continue
		}
		seen[r.Model] = true
		opts = append(opts, Option{Value: r.Model, Label: r.Model})
	}
	return opts
}

// populateSerials offers the serials of the records matching type and model
// and returns those records. A single match is filled in directly.
func (s *Sequencer) populateSerials() []EquipmentRecord {
	matches := s.matching()
	serial := s.links[LinkSerial]
	s.stages[LinkSerial] = StagePopulating

	if len(matches) == 1 {
		// Offered in the list too, so toggling the serial keeps it.
		serial.SetCandidates(PlaceholderSerial, serialOptions(matches))
		serial.ForceManual(matches[0].Serial)
		s.fillEquipment(matches[0])
		return matches
	}

	opts := serialOptions(matches)
	serial.SetCandidates(PlaceholderSerial, opts)
	if len(opts) > 0 && serial.Mode() == ModeManual {
		serial.Toggle()
	}
	return matches
}

func serialOptions(records []EquipmentRecord) []Option {
	var opts []Option
	seen := make(map[string]bool)
	for _, r := range records {
		if r.Serial == "" || seen[r.Serial] {
			continue
		}
		seen[r.Serial] = true
		opts = append(opts, Option{Value: r.Serial, Label: r.Serial})
	}
	return opts
}

func (s *Sequencer) matching() []EquipmentRecord {
	typ := s.links[LinkType].CanonicalValue()
	model := s.links[LinkModel].CanonicalValue()
	if typ == "" || model == "" {
		return nil
	}
	var out []EquipmentRecord
	for _, r := range s.records {
		if r.Type == typ && r.Model == model {
			out = append(out, r)
		}
	}
	return out
}

func (s *Sequencer) fillContact(c ClientContact) {
	assign(s.details.Contact, c.Contact)
	assign(s.details.Phone, c.Phone)
	assign(s.details.Email, c.Email)
	assign(s.details.Address, c.Address)
}

func (s *Sequencer) fillEquipment(r EquipmentRecord) {
	assign(s.details.Power, r.Power)

	brand := s.details.Brand
	if brand == nil || r.Brand == "" {
		return
	}
	for _, o := range brand.Options {
		if o.Value != "" && strings.EqualFold(o.Value, r.Brand) {
			assign(brand, o.Value)
			assign(s.details.OtherBrand, "")
			return
		}
	}
	assign(brand, OtherBrand)
	assign(s.details.OtherBrand, r.Brand)
}

func (s *Sequencer) logFetchFailure(link Link, err error) {
	s.logger.Warn("cascade fetch failed",
		"component", "cascade",
		"action", "fetch_failed",
		"link", link.String(),
		"error", err,
	)
}

func placeholder(l Link) string {
	switch l {
	case LinkClient:
		return PlaceholderClient
	case LinkType:
		return PlaceholderType
	case LinkModel:
		return PlaceholderModel
	default:
		return PlaceholderSerial
	}
}

// assign writes programmatically, the way a script sets a read-only input.
// Disabled targets are skipped.
func assign(e *Element, v string) {
	if e == nil {
		return
	}
	_ = e.Set(v)
}
