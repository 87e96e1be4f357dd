package validation

import (
	"strings"
	"testing"

	"github.com/inair/reportes/internal/types"
)

// --- Primitive validator tests ---

func TestValidateUTF8(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"ascii", "compresor", false},
		{"empty", "", false},
		{"accents", "Revisión de válvula", false},
		{"invalid bytes", string([]byte{0xff, 0xfe}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUTF8("notas", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUTF8(%q) = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if err != nil && err.Field != "notas" {
				t.Errorf("error.Field = %q, want notas", err.Field)
			}
		})
	}
}

func TestValidateNoNullBytes(t *testing.T) {
	if err := ValidateNoNullBytes("f", "clean"); err != nil {
		t.Errorf("ValidateNoNullBytes(clean) = %v, want nil", err)
	}
	if err := ValidateNoNullBytes("f", "a\x00b"); err == nil {
		t.Error("ValidateNoNullBytes(null) = nil, want error")
	}
}

func TestValidateMaxLength_CountsRunes(t *testing.T) {
	if err := ValidateMaxLength("f", "ñññ", 3); err != nil {
		t.Errorf("Expected 3 runes within limit, got %v", err)
	}
	if err := ValidateMaxLength("f", "ññññ", 3); err == nil {
		t.Error("Expected error for 4 runes over limit 3")
	}
}

func TestValidateRequired(t *testing.T) {
	for _, v := range []string{"", "   ", "\t\n"} {
		if err := ValidateRequired("folio", v); err == nil {
			t.Errorf("ValidateRequired(%q) = nil, want error", v)
		}
	}
	if err := ValidateRequired("folio", "INAIR-0001"); err != nil {
		t.Errorf("ValidateRequired(valid) = %v", err)
	}
}

func TestValidateEnum_CaseSensitive(t *testing.T) {
	allowed := []string{"draft", "sent"}
	if err := ValidateEnum("status", "sent", allowed); err != nil {
		t.Errorf("ValidateEnum(sent) = %v", err)
	}
	err := ValidateEnum("status", "SENT", allowed)
	if err == nil {
		t.Fatal("Expected case-sensitive rejection")
	}
	if !strings.Contains(err.Message, "draft, sent") {
		t.Errorf("Expected allowed values in message, got %q", err.Message)
	}
}

// --- Domain validator tests ---

func TestValidateFolio(t *testing.T) {
	tests := []struct {
		name    string
		folio   string
		wantErr bool
	}{
		{"standard", "INAIR-0001", false},
		{"sentinel", "no-folio", false},
		{"underscore", "TEC_12", false},
		{"empty", "", true},
		{"slash", "INAIR/0001", true},
		{"leading dash", "-0001", true},
		{"space", "INAIR 1", true},
		{"too long", strings.Repeat("A", MaxFolioLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFolio("folio", tt.folio)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFolio(%q) = %v, wantErr %v", tt.folio, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDataURL(t *testing.T) {
	if err := ValidateDataURL("foto1_data", ""); err != nil {
		t.Errorf("Expected empty accepted, got %v", err)
	}
	if err := ValidateDataURL("foto1_data", "data:image/png;base64,AA"); err != nil {
		t.Errorf("Expected data URL accepted, got %v", err)
	}
	if err := ValidateDataURL("foto1_data", "https://example.test/x.png"); err == nil {
		t.Error("Expected non data URL rejected")
	}
}

func TestValidateStatus(t *testing.T) {
	for _, ok := range []string{"", "draft", "sent"} {
		if err := ValidateStatus("status", ok); err != nil {
			t.Errorf("ValidateStatus(%q) = %v", ok, err)
		}
	}
	if err := ValidateStatus("status", "archived"); err == nil {
		t.Error("Expected unknown status rejected")
	}
}

func TestValidateAutosaveRequest_Valid(t *testing.T) {
	req := types.AutosaveRequest{
		Folio: "INAIR-0001",
		FormData: map[string]string{
			"cliente":    "ACME",
			"notas":      "Cambio de filtro",
			"foto1_data": "data:image/jpeg;base64,AA",
		},
		FirmaTecnicoData: "data:image/png;base64,BB",
	}
	if errs := ValidateAutosaveRequest(req); len(errs) != 0 {
		t.Errorf("Expected no errors, got %+v", errs)
	}
}

func TestValidateAutosaveRequest_CollectsAllErrors(t *testing.T) {
	req := types.AutosaveRequest{
		Folio: "",
		FormData: map[string]string{
			"notas":      "a\x00b",
			"foto2_data": "not-a-data-url",
		},
		FirmaClienteData: "plain text",
	}

	errs := ValidateAutosaveRequest(req)
	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, want := range []string{"folio", "form_data.notas", "form_data.foto2_data", "firma_cliente_data"} {
		if !fields[want] {
			t.Errorf("Expected error for %s, got %+v", want, errs)
		}
	}
}

func TestValidateAutosaveRequest_MissingFormData(t *testing.T) {
	errs := ValidateAutosaveRequest(types.AutosaveRequest{Folio: "INAIR-0001"})
	if len(errs) != 1 || errs[0].Field != "form_data" {
		t.Errorf("Expected a single form_data error, got %+v", errs)
	}
}

func TestValidateAutosaveRequest_LongPlainValue(t *testing.T) {
	req := types.AutosaveRequest{
		Folio:    "INAIR-0001",
		FormData: map[string]string{"notas": strings.Repeat("x", MaxFieldValueLength+1)},
	}
	if errs := ValidateAutosaveRequest(req); len(errs) != 1 {
		t.Errorf("Expected one length error, got %+v", errs)
	}
}

// --- Collector tests ---

func TestCollector_AccumulatesAndIgnoresNil(t *testing.T) {
	c := &Collector{}
	if c.HasErrors() {
		t.Error("HasErrors() = true, want false for empty collector")
	}
	c.Add(nil)
	c.Add(&ValidationError{Field: "f1", Message: "m1"})
	c.Add(nil)
	c.Add(&ValidationError{Field: "f2", Message: "m2"})

	errs := c.Errors()
	if len(errs) != 2 {
		t.Fatalf("len(Errors()) = %d, want 2", len(errs))
	}
	if errs[0].Field != "f1" || errs[1].Field != "f2" {
		t.Errorf("Expected insertion order, got %+v", errs)
	}
	if !c.HasErrors() {
		t.Error("HasErrors() = false, want true")
	}
}
