package draft

import (
	"errors"
	"fmt"
)

// ErrNotPopulated is returned by Restore while the list candidates are unknown.
var ErrNotPopulated = errors.New("candidate list not populated")

// Mode is the active representation of a composite field.
type Mode int

const (
	ModeList Mode = iota
	ModeManual
)

func (m Mode) String() string {
	if m == ModeManual {
		return "manual"
	}
	return "list"
}

// CompositeField is one logical field with a list representation (a select)
// and a manual representation (free text). Exactly one is active.
type CompositeField struct {
	name      string
	list      *Element
	manual    *Element
	byLabel   bool
	mode      Mode
	populated bool
}

// NewCompositeField binds a select and a text input as the two representations of name.
// When byLabel is set the canonical value of the list is the selected option's label
// (the option value is an opaque id). The field starts in list mode.
func NewCompositeField(name string, list, manual *Element, byLabel bool) (*CompositeField, error) {
	if list == nil || manual == nil {
		return nil, fmt.Errorf("%w: composite %q needs both representations", ErrMissingElement, name)
	}
	if list.Kind != KindSelect {
		return nil, fmt.Errorf("composite %q: list representation must be a select, got %s", name, list.Kind)
	}
	list.owner = name
	manual.owner = name
	c := &CompositeField{name: name, list: list, manual: manual, byLabel: byLabel}
	c.activate(ModeList)
	return c, nil
}

// Name returns the logical field name used in snapshots and payloads.
func (c *CompositeField) Name() string { return c.name }

// Mode returns the active representation.
func (c *CompositeField) Mode() Mode { return c.mode }

// List returns the select element.
func (c *CompositeField) List() *Element { return c.list }

// Manual returns the free-text element.
func (c *CompositeField) Manual() *Element { return c.manual }

// Populated reports whether candidates were supplied since the last reset.
func (c *CompositeField) Populated() bool { return c.populated }

// Candidates returns the non-placeholder options of the list representation.
func (c *CompositeField) Candidates() []Option {
	var out []Option
	for _, o := range c.list.Options {
		if o.Value != "" {
			out = append(out, o)
		}
	}
	return out
}

// SetCandidates replaces the list options, keeping a leading placeholder.
// The current selection survives only if it is still a candidate.
func (c *CompositeField) SetCandidates(placeholder string, opts []Option) {
	current := c.list.Value
	c.list.Options = append([]Option{{Value: "", Label: placeholder}}, opts...)
	if !c.list.HasOption(current) {
		c.list.Value = ""
	}
	c.populated = true
}

// ResetCandidates empties the list and marks it unpopulated.
func (c *CompositeField) ResetCandidates(placeholder string) {
	c.list.Options = []Option{{Value: "", Label: placeholder}}
	c.list.Value = ""
	c.populated = false
}

// CanonicalValue returns the value of the active representation,
// regardless of the inactive one.
func (c *CompositeField) CanonicalValue() string {
	if c.mode == ModeManual {
		return c.manual.Value
	}
	if c.byLabel {
		return c.list.SelectedLabel()
	}
	return c.list.Value
}

// Toggle flips the active representation, carrying the value across.
// List to manual always copies; manual to list selects the value only if it is a candidate.
func (c *CompositeField) Toggle() {
	if c.mode == ModeList {
		carried := c.CanonicalValue()
		c.activate(ModeManual)
		c.manual.Value = carried
		return
	}
	carried := c.manual.Value
	c.activate(ModeList)
	if opt, ok := c.match(carried); ok {
		c.list.Value = opt.Value
	} else {
		c.list.Value = ""
	}
}

// Select chooses a candidate by canonical value in list mode.
func (c *CompositeField) Select(value string) bool {
	opt, ok := c.match(value)
	if !ok {
		return false
	}
	c.activate(ModeList)
	c.list.Value = opt.Value
	c.manual.Value = value
	return true
}

// Restore applies a canonical value from a snapshot. Membership in the current
// candidate set decides the representation, not how the value was saved.
func (c *CompositeField) Restore(value string) error {
	if !c.populated {
		return ErrNotPopulated
	}
	if opt, ok := c.match(value); ok {
		c.activate(ModeList)
		c.list.Value = opt.Value
		c.manual.Value = value
		return nil
	}
	if value == "" && len(c.Candidates()) > 0 {
		c.activate(ModeList)
		c.list.Value = ""
		c.manual.Value = ""
		return nil
	}
	c.ForceManual(value)
	return nil
}

// ForceManual switches to manual mode holding value.
func (c *CompositeField) ForceManual(value string) {
	c.activate(ModeManual)
	c.list.Value = ""
	c.manual.Value = value
}

// ListID returns the option value of the current list selection.
func (c *CompositeField) ListID() string {
	if c.mode != ModeList {
		return ""
	}
	return c.list.Value
}

func (c *CompositeField) match(value string) (Option, bool) {
	if value == "" {
		return Option{}, false
	}
	for _, o := range c.Candidates() {
		if c.byLabel && o.Label == value {
			return o, true
		}
		if !c.byLabel && o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

func (c *CompositeField) activate(m Mode) {
	c.mode = m
	c.list.Disabled = m != ModeList
	c.manual.Disabled = m != ModeManual
	c.list.Hidden = m != ModeList
	c.manual.Hidden = m != ModeManual
}
