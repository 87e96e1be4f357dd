package draft

import (
	"encoding/json"
	"time"
)

// SavedAtKey is the reserved snapshot entry holding the save timestamp.
const SavedAtKey = "__saved_at"

// Snapshot is the flat, serializable state of one form.
// A key absent from the snapshot means "leave the field untouched" on restore.
type Snapshot map[string]string

// SavedAt returns the ISO-8601 save timestamp, or "" when unset.
func (s Snapshot) SavedAt() string {
	return s[SavedAtKey]
}

// Clone returns an independent copy.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Without returns a copy with the given keys removed.
func (s Snapshot) Without(keys ...string) Snapshot {
	out := s.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Lookup returns the value for key and whether it is present.
func (s Snapshot) Lookup(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// decodeSnapshot parses a stored snapshot. Non-string values make the data malformed.
func decodeSnapshot(raw []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s == nil {
		s = Snapshot{}
	}
	return s, nil
}

// Codec serializes a Form into a Snapshot and applies a Snapshot back.
// Composite-owned elements are skipped; each composite contributes its canonical value.
type Codec struct {
	form       *Form
	composites []*CompositeField
	skip       map[string]bool
	now        func() time.Time
}

// NewCodec creates a Codec for form. Composites are serialized under their field names.
func NewCodec(form *Form, composites ...*CompositeField) *Codec {
	return &Codec{
		form:       form,
		composites: composites,
		skip:       make(map[string]bool),
		now:        time.Now,
	}
}

// SkipFields excludes the named fields from subsequent serializations.
func (c *Codec) SkipFields(names ...string) {
	for _, n := range names {
		c.skip[n] = true
	}
}

// Serialize captures every persistable named element, including disabled ones.
func (c *Codec) Serialize() Snapshot {
	data := Snapshot{}
	c.form.WithEnabled(func() {
		for _, e := range c.form.Elements() {
			if !c.persistable(e) {
				continue
			}
			switch e.Kind {
			case KindCheckbox:
				if e.Checked {
					data[e.Name] = "1"
				} else {
					data[e.Name] = ""
				}
			case KindRadio:
				if e.Checked {
					data[e.Name] = e.Value
				}
			default:
				data[e.Name] = e.Value
			}
		}
		for _, cf := range c.composites {
			if c.skip[cf.Name()] {
				continue
			}
			data[cf.Name()] = cf.CanonicalValue()
		}
	})
	data[SavedAtKey] = c.now().UTC().Format(time.RFC3339Nano)
	return data
}

// Apply writes snapshot values into plain elements. Unknown keys and missing
// elements are ignored. Composite fields are left to the Sequencer.
func (c *Codec) Apply(s Snapshot) {
	c.form.WithEnabled(func() {
		for _, e := range c.form.Elements() {
			if e.Name == "" || e.owner != "" || e.transient || e.Kind == KindFile || e.Binary {
				continue
			}
			val, ok := s[e.Name]
			if !ok {
				continue
			}
			switch e.Kind {
			case KindCheckbox:
				e.Checked = val == "1"
			case KindRadio:
				e.Checked = e.Value == val
			default:
				_ = e.Set(val)
			}
		}
	})
}

func (c *Codec) persistable(e *Element) bool {
	if e.Name == "" || e.owner != "" || e.transient {
		return false
	}
	if e.Kind == KindFile || e.Binary {
		return false
	}
	return !c.skip[e.Name]
}
