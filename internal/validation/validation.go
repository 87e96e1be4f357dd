package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/inair/reportes/internal/types"
)

const (
	// MaxFolioLength bounds folio identifiers.
	MaxFolioLength = 64
	// MaxFieldNameLength bounds form_data keys.
	MaxFieldNameLength = 128
	// MaxFieldValueLength bounds plain form_data values.
	MaxFieldValueLength = 10000
	// MaxDataURLLength bounds embedded photos and signatures.
	MaxDataURLLength = 8 << 20
	// MaxFormFields bounds the number of form_data entries.
	MaxFormFields = 1000
)

var folioPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// dataURLFields hold Base64 data URLs rather than typed text.
var dataURLFields = map[string]bool{
	"foto1_data":         true,
	"foto2_data":         true,
	"foto3_data":         true,
	"foto4_data":         true,
	"firma_tecnico_data": true,
	"firma_cliente_data": true,
}

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{Field: field, Message: "must be valid UTF-8"}
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.ContainsRune(value, 0) {
		return &ValidationError{Field: field, Message: "must not contain null bytes"}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// ValidateEnum returns an error if the value is not in the allowed list.
func ValidateEnum(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateFolio checks that a folio is present, bounded, and URL-safe.
func ValidateFolio(field, folio string) *ValidationError {
	if err := ValidateRequired(field, folio); err != nil {
		return err
	}
	if err := ValidateMaxLength(field, folio, MaxFolioLength); err != nil {
		return err
	}
	if !folioPattern.MatchString(folio) {
		return &ValidationError{
			Field:   field,
			Message: "may only contain letters, digits, '-' and '_'",
		}
	}
	return nil
}

// ValidateDataURL accepts an empty value or a data: URL within the size bound.
func ValidateDataURL(field, value string) *ValidationError {
	if value == "" {
		return nil
	}
	if !strings.HasPrefix(value, "data:") {
		return &ValidationError{Field: field, Message: "must be a data: URL"}
	}
	if len(value) > MaxDataURLLength {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum size of %d bytes", MaxDataURLLength),
		}
	}
	return nil
}

// ValidateStatus accepts an empty filter or a known draft status.
func ValidateStatus(field, status string) *ValidationError {
	if status == "" {
		return nil
	}
	return ValidateEnum(field, status, []string{string(types.StatusDraft), string(types.StatusSent)})
}

// ValidateAutosaveRequest validates an autosave body and returns every
// field-level failure.
func ValidateAutosaveRequest(req types.AutosaveRequest) []ValidationError {
	var c Collector

	c.Add(ValidateFolio("folio", req.Folio))
	if req.FormData == nil {
		c.Add(&ValidationError{Field: "form_data", Message: "is required"})
	}
	if len(req.FormData) > MaxFormFields {
		c.Add(&ValidationError{
			Field:   "form_data",
			Message: fmt.Sprintf("exceeds maximum of %d fields", MaxFormFields),
		})
	}

	for key, value := range req.FormData {
		field := "form_data." + key
		c.Add(ValidateMaxLength("form_data", key, MaxFieldNameLength))
		c.Add(ValidateUTF8(field, value))
		if dataURLFields[key] {
			c.Add(ValidateDataURL(field, value))
			continue
		}
		c.Add(ValidateNoNullBytes(field, value))
		c.Add(ValidateMaxLength(field, value, MaxFieldValueLength))
	}

	c.Add(ValidateDataURL("firma_tecnico_data", req.FirmaTecnicoData))
	c.Add(ValidateDataURL("firma_cliente_data", req.FirmaClienteData))

	return c.Errors()
}
