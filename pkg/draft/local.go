package draft

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
)

const (
	// DefaultDraftPrefix prefixes the storage key of every draft.
	DefaultDraftPrefix = "report_draft_"

	// DefaultIndexKey holds the draft index.
	DefaultIndexKey = "report_drafts_index"
)

// DefaultSignatureFields are the large data-URL fields dropped under storage pressure.
var DefaultSignatureFields = []string{"firma_tecnico_data", "firma_cliente_data"}

// WriteOutcome reports what a local write achieved.
type WriteOutcome int

const (
	// WriteStored means the full snapshot was persisted.
	WriteStored WriteOutcome = iota
	// WriteDegraded means the snapshot was persisted without signature fields.
	WriteDegraded
	// WriteDropped means nothing was persisted this cycle.
	WriteDropped
)

func (o WriteOutcome) String() string {
	switch o {
	case WriteStored:
		return "stored"
	case WriteDegraded:
		return "degraded"
	default:
		return "dropped"
	}
}

const quotaWarning = "The draft is too large (signatures). It will keep saving WITHOUT signatures to avoid errors."

// LocalCache is the fast, synchronous draft tier. It never performs network I/O.
type LocalCache struct {
	kv              KV
	prefix          string
	signatureFields []string
	notifier        Notifier
	logger          *slog.Logger

	mu       sync.Mutex
	degraded bool
	warned   bool
}

// LocalOptions configures a LocalCache. Zero values select the defaults.
type LocalOptions struct {
	Prefix          string
	SignatureFields []string
	Notifier        Notifier
	Logger          *slog.Logger
}

// NewLocalCache creates a LocalCache on kv.
func NewLocalCache(kv KV, opts LocalOptions) *LocalCache {
	if opts.Prefix == "" {
		opts.Prefix = DefaultDraftPrefix
	}
	if opts.SignatureFields == nil {
		opts.SignatureFields = DefaultSignatureFields
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &LocalCache{
		kv:              kv,
		prefix:          opts.Prefix,
		signatureFields: opts.SignatureFields,
		notifier:        opts.Notifier,
		logger:          opts.Logger,
	}
}

// Key returns the storage key for folio.
func (c *LocalCache) Key(folio string) string {
	return c.prefix + folio
}

// Write persists snap under folio. On quota failure it retries once without
// signature fields, stays degraded for the rest of the session, and warns once.
func (c *LocalCache) Write(folio string, snap Snapshot) WriteOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload := snap
	if c.degraded {
		payload = snap.Without(c.signatureFields...)
	}

	err := c.put(folio, payload)
	if err == nil {
		if c.degraded {
			return WriteDegraded
		}
		return WriteStored
	}
	if !errors.Is(err, ErrQuotaExceeded) || c.degraded {
		c.logger.Debug("local draft write dropped",
			"component", "draft",
			"action", "local_write_dropped",
			"folio", folio,
			"error", err,
		)
		return WriteDropped
	}

	c.degraded = true
	retryErr := c.put(folio, snap.Without(c.signatureFields...))
	if !c.warned {
		c.warned = true
		c.logger.Warn("local draft saved without signatures",
			"component", "draft",
			"action", "local_write_degraded",
			"folio", folio,
		)
		c.notifier.Warn(quotaWarning)
	}
	if retryErr != nil {
		return WriteDropped
	}
	return WriteDegraded
}

// Read returns the stored snapshot for folio. Missing or malformed data is absent.
func (c *LocalCache) Read(folio string) (Snapshot, bool) {
	raw, ok, err := c.kv.Get(c.Key(folio))
	if err != nil || !ok {
		return nil, false
	}
	snap, err := decodeSnapshot([]byte(raw))
	if err != nil {
		c.logger.Warn("malformed local draft ignored",
			"component", "draft",
			"action", "local_read_malformed",
			"folio", folio,
			"error", err,
		)
		return nil, false
	}
	return snap, true
}

// Delete removes the draft for folio. Deleting a missing draft is not an error.
func (c *LocalCache) Delete(folio string) {
	if err := c.kv.Remove(c.Key(folio)); err != nil {
		c.logger.Debug("local draft delete failed",
			"component", "draft",
			"action", "local_delete_failed",
			"folio", folio,
			"error", err,
		)
	}
}

// Degraded reports whether signature fields are being dropped for this session.
func (c *LocalCache) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

func (c *LocalCache) put(folio string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.kv.Set(c.Key(folio), string(data))
}
