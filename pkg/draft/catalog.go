package draft

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// IndexEntry is one row of the local draft index. It is advisory and may
// briefly disagree with the drafts actually stored.
type IndexEntry struct {
	Folio      string `json:"-"`
	ClientName string `json:"cliente"`
	Date       string `json:"fecha"`
	SavedAt    string `json:"saved_at"`
}

// Catalog maintains the index of locally known drafts, independent of any open form.
type Catalog struct {
	kv     KV
	prefix string
	key    string
	logger *slog.Logger

	mu sync.Mutex
}

// NewCatalog creates a Catalog. Empty prefix or index key select the defaults.
func NewCatalog(kv KV, prefix, indexKey string, logger *slog.Logger) *Catalog {
	if prefix == "" {
		prefix = DefaultDraftPrefix
	}
	if indexKey == "" {
		indexKey = DefaultIndexKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{kv: kv, prefix: prefix, key: indexKey, logger: logger}
}

// Update records or replaces the entry for e.Folio.
func (c *Catalog) Update(e IndexEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.load()
	idx[e.Folio] = e
	return c.store(idx)
}

// List returns every entry, most recently saved first. Entries without a
// timestamp sort last. Timestamps compare as strings.
func (c *Catalog) List() []IndexEntry {
	c.mu.Lock()
	idx := c.load()
	c.mu.Unlock()

	out := make([]IndexEntry, 0, len(idx))
	for _, e := range idx {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].SavedAt, out[j].SavedAt
		if (a == "") != (b == "") {
			return a != ""
		}
		if a != b {
			return a > b
		}
		return out[i].Folio < out[j].Folio
	})
	return out
}

// Remove deletes the draft and its index entry. Each step is best-effort.
func (c *Catalog) Remove(folio string) {
	if err := c.kv.Remove(c.prefix + folio); err != nil {
		c.logger.Debug("draft removal failed",
			"component", "catalog",
			"action", "remove_draft_failed",
			"folio", folio,
			"error", err,
		)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.load()
	if _, ok := idx[folio]; !ok {
		return
	}
	delete(idx, folio)
	if err := c.store(idx); err != nil {
		c.logger.Debug("index update failed",
			"component", "catalog",
			"action", "remove_entry_failed",
			"folio", folio,
			"error", err,
		)
	}
}

// Reconcile rebuilds the index from the drafts actually stored. Entries whose
// draft is gone are dropped; drafts missing from the index are added using
// their snapshot contents. clientField and dateField name the snapshot keys
// that feed the entry.
func (c *Catalog) Reconcile(clientField, dateField string) (added, dropped int, err error) {
	keys, err := c.kv.Keys()
	if err != nil {
		return 0, 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.load()
	present := make(map[string]bool)
	for _, k := range keys {
		if k == c.key || !strings.HasPrefix(k, c.prefix) {
			continue
		}
		folio := strings.TrimPrefix(k, c.prefix)
		present[folio] = true
		if _, ok := idx[folio]; ok {
			continue
		}
		raw, ok, err := c.kv.Get(k)
		if err != nil || !ok {
			continue
		}
		snap, err := decodeSnapshot([]byte(raw))
		if err != nil {
			continue
		}
		idx[folio] = IndexEntry{
			Folio:      folio,
			ClientName: snap[clientField],
			Date:       snap[dateField],
			SavedAt:    snap.SavedAt(),
		}
		added++
	}
	for folio := range idx {
		if !present[folio] {
			delete(idx, folio)
			dropped++
		}
	}

	if added == 0 && dropped == 0 {
		return 0, 0, nil
	}
	if err := c.store(idx); err != nil {
		return 0, 0, err
	}
	c.logger.Info("draft index reconciled",
		"component", "catalog",
		"action", "reconciled",
		"added", added,
		"dropped", dropped,
	)
	return added, dropped, nil
}

// load reads the index. A missing or malformed index is empty.
func (c *Catalog) load() map[string]IndexEntry {
	idx := make(map[string]IndexEntry)
	raw, ok, err := c.kv.Get(c.key)
	if err != nil || !ok {
		return idx
	}
	var stored map[string]IndexEntry
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		c.logger.Warn("malformed draft index ignored",
			"component", "catalog",
			"action", "index_malformed",
			"error", err,
		)
		return idx
	}
	for folio, e := range stored {
		e.Folio = folio
		idx[folio] = e
	}
	return idx
}

func (c *Catalog) store(idx map[string]IndexEntry) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return c.kv.Set(c.key, string(data))
}
