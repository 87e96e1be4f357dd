package draft

import (
	"errors"
	"net/url"
)

// ErrDisabled is returned when assigning to a disabled element.
var ErrDisabled = errors.New("element is disabled")

// Kind identifies the control type of a form element.
type Kind string

const (
	KindText     Kind = "text"
	KindTextarea Kind = "textarea"
	KindSelect   Kind = "select"
	KindCheckbox Kind = "checkbox"
	KindRadio    Kind = "radio"
	KindHidden   Kind = "hidden"
	KindFile     Kind = "file"
)

// Option is a single choice of a select element.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Element is a headless stand-in for an input-like DOM control.
type Element struct {
	ID       string
	Name     string
	Kind     Kind
	Value    string
	Checked  bool
	Disabled bool
	ReadOnly bool
	Hidden   bool // an ancestor block is not displayed
	Binary   bool // uploaded binary, not re-serializable
	Options  []Option

	owner      string // composite field that owns this element
	superseded bool   // replaced by a materialized submit field
	transient  bool   // materialized for submission only
}

// Set assigns a value the way a script assigns el.value.
// Selects only accept one of their option values; anything else clears the selection.
func (e *Element) Set(value string) error {
	if e.Disabled {
		return ErrDisabled
	}
	if e.Kind == KindSelect && !e.HasOption(value) {
		e.Value = ""
		return nil
	}
	e.Value = value
	return nil
}

// HasOption reports whether value is one of the select's option values.
func (e *Element) HasOption(value string) bool {
	for _, o := range e.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// SelectedLabel returns the label of the selected option, or "" when nothing is selected.
func (e *Element) SelectedLabel() string {
	if e.Value == "" {
		return ""
	}
	for _, o := range e.Options {
		if o.Value == e.Value {
			return o.Label
		}
	}
	return ""
}

// Form is an ordered collection of elements.
// Form is not safe for concurrent use; the Engine serializes access to it.
type Form struct {
	elements []*Element
	byID     map[string]*Element
}

// NewForm creates a Form holding the given elements in document order.
func NewForm(elements ...*Element) *Form {
	f := &Form{byID: make(map[string]*Element)}
	for _, e := range elements {
		f.Add(e)
	}
	return f
}

// Add appends an element. An element with an existing ID replaces the lookup entry.
func (f *Form) Add(e *Element) {
	f.elements = append(f.elements, e)
	if e.ID != "" {
		f.byID[e.ID] = e
	}
}

// ByID returns the element with the given id, or nil.
func (f *Form) ByID(id string) *Element {
	return f.byID[id]
}

// Named returns the first element carrying name, or nil.
func (f *Form) Named(name string) *Element {
	for _, e := range f.elements {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Elements returns the elements in document order.
func (f *Form) Elements() []*Element {
	return f.elements
}

// WithEnabled runs fn with every disabled element temporarily enabled,
// then restores the disabled flags even if fn panics.
func (f *Form) WithEnabled(fn func()) {
	var disabled []*Element
	for _, e := range f.elements {
		if e.Disabled {
			disabled = append(disabled, e)
			e.Disabled = false
		}
	}
	defer func() {
		for _, e := range disabled {
			e.Disabled = true
		}
	}()
	fn()
}

// Payload builds the values a browser would submit for the form.
func (f *Form) Payload() url.Values {
	v := url.Values{}
	for _, e := range f.elements {
		if e.Name == "" || e.Disabled || e.superseded || e.owner != "" {
			continue
		}
		switch e.Kind {
		case KindFile:
			continue
		case KindCheckbox, KindRadio:
			if !e.Checked {
				continue
			}
			value := e.Value
			if value == "" {
				value = "on"
			}
			v.Add(e.Name, value)
		default:
			v.Add(e.Name, e.Value)
		}
	}
	return v
}
