package types

import (
	"encoding/json"
	"time"
)

// DraftStatus is the lifecycle state of a server-side draft report.
type DraftStatus string

const (
	StatusDraft DraftStatus = "draft"
	StatusSent  DraftStatus = "sent"
)

// Valid reports whether s is a known draft status.
func (s DraftStatus) Valid() bool {
	return s == StatusDraft || s == StatusSent
}

// Client is a customer record from the directory.
type Client struct {
	ID      int64  `json:"id" yaml:"id"`
	Name    string `json:"nombre" yaml:"nombre"`
	Contact string `json:"contacto" yaml:"contacto"`
	Phone   string `json:"telefono" yaml:"telefono"`
	Email   string `json:"email" yaml:"email"`
	Address string `json:"direccion" yaml:"direccion"`
}

// Equipment is one unit installed at a client site.
type Equipment struct {
	Type   string `json:"tipo_equipo" yaml:"tipo_equipo"`
	Model  string `json:"modelo" yaml:"modelo"`
	Serial string `json:"serie" yaml:"serie"`
	Brand  string `json:"marca" yaml:"marca"`
	Power  string `json:"potencia" yaml:"potencia"`
}

// ClientWithEquipment is the import unit for the client directory.
type ClientWithEquipment struct {
	Client    `yaml:",inline"`
	Equipment []Equipment `json:"equipos" yaml:"equipos"`
}

// ClientSummary is a row of GET /api/clientes.
type ClientSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"nombre"`
}

// ClientContact holds the contact fields copied into a report.
type ClientContact struct {
	Contact string `json:"contacto"`
	Phone   string `json:"telefono"`
	Email   string `json:"email"`
	Address string `json:"direccion"`
}

// ClientEquipmentResponse is the body of GET /api/clientes/{id}/equipos.
type ClientEquipmentResponse struct {
	Client    ClientContact `json:"cliente"`
	Equipment []Equipment   `json:"equipos"`
}

// MarshalJSON ensures nil equipment marshals as [] not null.
func (r ClientEquipmentResponse) MarshalJSON() ([]byte, error) {
	if r.Equipment == nil {
		r.Equipment = []Equipment{}
	}
	type Alias ClientEquipmentResponse
	return json.Marshal(Alias(r))
}

// DraftReport is a report draft as held by the server.
type DraftReport struct {
	Folio        string            `json:"folio"`
	FormData     map[string]string `json:"form_data"`
	ClientName   string            `json:"cliente"`
	Date         string            `json:"fecha"`
	Photos       [4]string         `json:"-"`
	FirmaTecnico string            `json:"-"`
	FirmaCliente string            `json:"-"`
	Status       DraftStatus       `json:"status"`
	Revision     string            `json:"revision"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
}

// DraftSummary is a row of GET /api/drafts.
type DraftSummary struct {
	Folio      string      `json:"folio"`
	ClientName string      `json:"cliente"`
	Date       string      `json:"fecha"`
	Status     DraftStatus `json:"status"`
	Revision   string      `json:"revision"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// AutosaveRequest is the body of POST /api/autosave_draft.
type AutosaveRequest struct {
	Folio            string            `json:"folio"`
	FormData         map[string]string `json:"form_data"`
	FirmaTecnicoData string            `json:"firma_tecnico_data,omitempty"`
	FirmaClienteData string            `json:"firma_cliente_data,omitempty"`
}

// AutosaveResponse acknowledges a stored draft.
type AutosaveResponse struct {
	OK       bool      `json:"ok"`
	Folio    string    `json:"folio"`
	Revision string    `json:"revision"`
	SavedAt  time.Time `json:"saved_at"`
}

// LoadDraftResponse is the body of GET /api/load_draft/{folio}.
type LoadDraftResponse struct {
	Folio            string            `json:"folio"`
	FormData         map[string]string `json:"form_data"`
	FirmaTecnicoData string            `json:"firma_tecnico_data,omitempty"`
	FirmaClienteData string            `json:"firma_cliente_data,omitempty"`
	Status           DraftStatus       `json:"status"`
	Revision         string            `json:"revision"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// DraftListResponse is the body of GET /api/drafts.
type DraftListResponse struct {
	Drafts []DraftSummary `json:"drafts"`
	Total  int            `json:"total"`
}

// MarshalJSON ensures nil drafts marshal as [] not null.
func (r DraftListResponse) MarshalJSON() ([]byte, error) {
	if r.Drafts == nil {
		r.Drafts = []DraftSummary{}
	}
	type Alias DraftListResponse
	return json.Marshal(Alias(r))
}

// FolioResponse is the body of POST /api/nuevo_folio.
type FolioResponse struct {
	Folio string `json:"folio"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	DraftCount  int64  `json:"draft_count"`
	SentCount   int64  `json:"sent_count"`
	ClientCount int64  `json:"client_count"`
}

// StoreStats holds aggregate store statistics.
type StoreStats struct {
	DraftCount  int64 `json:"draft_count"`
	SentCount   int64 `json:"sent_count"`
	ClientCount int64 `json:"client_count"`
}
