package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is an entry of the known-clients list.
type Client struct {
	ID   int64  `json:"id"`
	Name string `json:"nombre"`
}

// ClientContact holds the contact details returned with a client's equipment.
type ClientContact struct {
	Contact string `json:"contacto"`
	Phone   string `json:"telefono"`
	Email   string `json:"email"`
	Address string `json:"direccion"`
}

// EquipmentRecord is one piece of equipment registered for a client.
type EquipmentRecord struct {
	Type   string `json:"tipo_equipo"`
	Model  string `json:"modelo"`
	Serial string `json:"serie"`
	Brand  string `json:"marca"`
	Power  string `json:"potencia"`
}

// ClientEquipment is the payload of GET /api/clientes/{id}/equipos.
type ClientEquipment struct {
	Client    ClientContact     `json:"cliente"`
	Equipment []EquipmentRecord `json:"equipos"`
}

// Remote is the authoritative draft tier.
type Remote interface {
	Save(ctx context.Context, folio string, snap Snapshot) error
	Load(ctx context.Context, folio string) (Snapshot, bool)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

// autosaveRequest is the body of POST /api/autosave_draft.
type autosaveRequest struct {
	Folio            string   `json:"folio"`
	FormData         Snapshot `json:"form_data"`
	FirmaTecnicoData string   `json:"firma_tecnico_data,omitempty"`
	FirmaClienteData string   `json:"firma_cliente_data,omitempty"`
}

// loadResponse is the body of GET /api/load_draft/{folio}.
type loadResponse struct {
	FormData         Snapshot `json:"form_data"`
	FirmaTecnicoData string   `json:"firma_tecnico_data,omitempty"`
	FirmaClienteData string   `json:"firma_cliente_data,omitempty"`
}

// RemoteClient talks to the draft and catalog endpoints of the report server.
// It implements Remote and Directory.
type RemoteClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewRemoteClient creates a client for the server at baseURL.
func NewRemoteClient(baseURL string, logger *slog.Logger) *RemoteClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Save posts the full snapshot plus the signature side-channel fields.
// The server applies last-write-wins; no version check is made here.
func (c *RemoteClient) Save(ctx context.Context, folio string, snap Snapshot) error {
	body := autosaveRequest{
		Folio:            folio,
		FormData:         snap,
		FirmaTecnicoData: snap["firma_tecnico_data"],
		FirmaClienteData: snap["firma_cliente_data"],
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/autosave_draft", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: http.MethodPost, Path: "/api/autosave_draft", Code: resp.StatusCode}
	}
	return nil
}

// Load fetches the server draft for folio. A 404, a transport failure or an
// undecodable body all yield (nil, false); the caller falls back to the local tier.
func (c *RemoteClient) Load(ctx context.Context, folio string) (Snapshot, bool) {
	path := "/api/load_draft/" + url.PathEscape(folio)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		c.logger.Warn("remote draft load failed",
			"component", "draft",
			"action", "remote_load_failed",
			"folio", folio,
			"error", err,
		)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, false
	}

	var lr loadResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		c.logger.Warn("malformed remote draft ignored",
			"component", "draft",
			"action", "remote_load_malformed",
			"folio", folio,
			"error", err,
		)
		return nil, false
	}
	if lr.FormData == nil {
		return nil, false
	}

	snap := lr.FormData.Clone()
	if _, ok := snap["firma_tecnico_data"]; !ok && lr.FirmaTecnicoData != "" {
		snap["firma_tecnico_data"] = lr.FirmaTecnicoData
	}
	if _, ok := snap["firma_cliente_data"]; !ok && lr.FirmaClienteData != "" {
		snap["firma_cliente_data"] = lr.FirmaClienteData
	}
	return snap, true
}

// Clients returns the known clients.
func (c *RemoteClient) Clients(ctx context.Context) ([]Client, error) {
	var clients []Client
	if err := c.getJSON(ctx, "/api/clientes", &clients); err != nil {
		return nil, err
	}
	return clients, nil
}

// ClientEquipment returns the contact details and equipment records of a client.
func (c *RemoteClient) ClientEquipment(ctx context.Context, clientID string) (*ClientEquipment, error) {
	var ce ClientEquipment
	path := "/api/clientes/" + url.PathEscape(clientID) + "/equipos"
	if err := c.getJSON(ctx, path, &ce); err != nil {
		return nil, err
	}
	return &ce, nil
}

func (c *RemoteClient) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *RemoteClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if c.baseURL == "" {
		return nil, errors.New("remote base URL not configured")
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.client.Do(req)
}
