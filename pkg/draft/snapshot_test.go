package draft

import (
	"reflect"
	"testing"
	"time"
)

func newPlainForm() *Form {
	return NewForm(
		&Element{ID: "fecha", Name: "fecha", Kind: KindText},
		&Element{ID: "notas", Name: "notas", Kind: KindTextarea},
		&Element{ID: "zona", Name: "zona", Kind: KindSelect, Options: []Option{{Value: ""}, {Value: "norte"}, {Value: "sur"}}},
		&Element{ID: "filtro", Name: "filtro", Kind: KindCheckbox, Value: "1"},
		&Element{ID: "aceite", Name: "aceite", Kind: KindCheckbox, Value: "1"},
		&Element{ID: "prev", Name: "servicio", Kind: KindRadio, Value: "preventivo"},
		&Element{ID: "corr", Name: "servicio", Kind: KindRadio, Value: "correctivo"},
		&Element{ID: "oculto", Name: "oculto", Kind: KindText, Disabled: true},
		&Element{ID: "foto1", Name: "foto1", Kind: KindFile},
		&Element{ID: "foto1_data", Name: "foto1_data", Kind: KindHidden},
		&Element{ID: "adjunto", Name: "adjunto", Kind: KindHidden, Binary: true},
	)
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
}

func TestCodec_RoundTrip(t *testing.T) {
	src := newPlainForm()
	src.ByID("fecha").Value = "2024-03-15"
	src.ByID("notas").Value = "linea 1\nlinea 2"
	src.ByID("zona").Value = "sur"
	src.ByID("filtro").Checked = true
	src.ByID("corr").Checked = true
	src.ByID("oculto").Value = "capturado"
	src.ByID("foto1_data").Value = "data:image/jpeg;base64,AAAA"

	c1 := NewCodec(src)
	c1.now = fixedNow
	first := c1.Serialize()

	dst := newPlainForm()
	c2 := NewCodec(dst)
	c2.now = fixedNow
	c2.Apply(first)
	second := c2.Serialize()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("round trip mismatch:\n first = %v\nsecond = %v", first, second)
	}
	if !dst.ByID("oculto").Disabled {
		t.Error("Expected disabled flag to survive Apply")
	}
}

func TestCodec_Serialize(t *testing.T) {
	f := newPlainForm()
	f.ByID("filtro").Checked = true
	f.ByID("oculto").Value = "x"
	f.ByID("foto1").Value = "C:\\fakepath\\a.jpg"
	f.ByID("adjunto").Value = "raw"

	c := NewCodec(f)
	c.now = fixedNow
	s := c.Serialize()

	if s["filtro"] != "1" {
		t.Errorf("filtro = %q, want 1", s["filtro"])
	}
	if v, ok := s["aceite"]; !ok || v != "" {
		t.Errorf("aceite = %q (present=%v), want empty and present", v, ok)
	}
	if _, ok := s["servicio"]; ok {
		t.Error("Expected unchecked radio group to be absent")
	}
	if s["oculto"] != "x" {
		t.Errorf("Expected disabled value captured, got %q", s["oculto"])
	}
	if _, ok := s["foto1"]; ok {
		t.Error("Expected file input skipped")
	}
	if _, ok := s["adjunto"]; ok {
		t.Error("Expected binary field skipped")
	}
	if s.SavedAt() != "2024-03-15T10:00:00Z" {
		t.Errorf("SavedAt = %q", s.SavedAt())
	}
	if !f.ByID("oculto").Disabled {
		t.Error("Expected disabled flag restored after Serialize")
	}
}

func TestCodec_SkipFields(t *testing.T) {
	f := newPlainForm()
	f.ByID("notas").Value = "big"
	c := NewCodec(f)
	c.SkipFields("notas")

	if _, ok := c.Serialize()["notas"]; ok {
		t.Error("Expected skipped field to be absent")
	}
}

func TestCodec_Apply_AbsentKeysUntouched(t *testing.T) {
	f := newPlainForm()
	f.ByID("fecha").Value = "keep"
	f.ByID("notas").Value = "old"

	NewCodec(f).Apply(Snapshot{"notas": "", "desconocido": "x"})

	if f.ByID("fecha").Value != "keep" {
		t.Errorf("Expected absent key to leave fecha untouched, got %q", f.ByID("fecha").Value)
	}
	if f.ByID("notas").Value != "" {
		t.Errorf("Expected empty string to clear notas, got %q", f.ByID("notas").Value)
	}
}

func TestCodec_CompositeContributesCanonicalValue(t *testing.T) {
	list := &Element{ID: "tipo_select", Name: "tipo_select", Kind: KindSelect}
	manual := &Element{ID: "tipo_input", Name: "tipo_input", Kind: KindText}
	f := NewForm(list, manual)

	cf, err := NewCompositeField("tipo", list, manual, false)
	if err != nil {
		t.Fatalf("NewCompositeField() error = %v", err)
	}
	cf.SetCandidates("--", []Option{{Value: "Compresor", Label: "Compresor"}})
	list.Value = "Compresor"
	cf.Toggle()
	manual.Value = "Compresor rotativo"

	s := NewCodec(f, cf).Serialize()

	if s["tipo"] != "Compresor rotativo" {
		t.Errorf("tipo = %q, want manual value", s["tipo"])
	}
	for _, k := range []string{"tipo_select", "tipo_input"} {
		if _, ok := s[k]; ok {
			t.Errorf("Expected owned element %q not serialized", k)
		}
	}
}

func TestDecodeSnapshot_Malformed(t *testing.T) {
	for _, raw := range []string{"{", `{"a": {"nested": 1}}`, `[1,2]`} {
		if _, err := decodeSnapshot([]byte(raw)); err == nil {
			t.Errorf("Expected error for %q", raw)
		}
	}
}
