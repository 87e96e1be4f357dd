package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/inair/reportes/internal/types"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// timeFormat is fixed-width so stored timestamps compare lexicographically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Side-channel keys stored in their own columns rather than inside form_data.
var photoKeys = [4]string{"foto1_data", "foto2_data", "foto3_data", "foto4_data"}

const (
	firmaTecnicoKey = "firma_tecnico_data"
	firmaClienteKey = "firma_cliente_data"
	clientNameKey   = "cliente"
	dateKey         = "fecha"
)

var prefixPattern = regexp.MustCompile(`^[A-Z0-9]{1,16}$`)

// SQLiteStore is the SQLite-backed report store.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// dsn attaches the per-connection pragmas so every pooled connection
// waits on locks and enforces foreign keys, not only the first one.
func dsn(dbPath string) string {
	if dbPath == ":memory:" {
		return dbPath
	}
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for schema inspection.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// ListClients returns the client directory ordered by name.
func (s *SQLiteStore) ListClients(ctx context.Context) ([]types.ClientSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, nombre FROM clients ORDER BY nombre COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := []types.ClientSummary{}
	for rows.Next() {
		var c types.ClientSummary
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// GetClient returns a single client record.
func (s *SQLiteStore) GetClient(ctx context.Context, id int64) (*types.Client, error) {
	var c types.Client
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nombre, contacto, telefono, email, direccion
		FROM clients WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Contact, &c.Phone, &c.Email, &c.Address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client %d: %w", id, err)
	}
	return &c, nil
}

// GetClientEquipment returns the contact record and installed equipment of a client.
func (s *SQLiteStore) GetClientEquipment(ctx context.Context, id int64) (*types.ClientEquipmentResponse, error) {
	client, err := s.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tipo_equipo, modelo, serie, marca, potencia
		FROM client_equipment
		WHERE client_id = ?
		ORDER BY tipo_equipo, modelo, serie
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list equipment for client %d: %w", id, err)
	}
	defer rows.Close()

	resp := &types.ClientEquipmentResponse{
		Client: types.ClientContact{
			Contact: client.Contact,
			Phone:   client.Phone,
			Email:   client.Email,
			Address: client.Address,
		},
		Equipment: []types.Equipment{},
	}
	for rows.Next() {
		var e types.Equipment
		if err := rows.Scan(&e.Type, &e.Model, &e.Serial, &e.Brand, &e.Power); err != nil {
			return nil, fmt.Errorf("scan equipment: %w", err)
		}
		resp.Equipment = append(resp.Equipment, e)
	}
	return resp, rows.Err()
}

// ImportClients upserts clients and replaces their equipment lists in one
// transaction. Clients without an id are assigned one.
func (s *SQLiteStore) ImportClients(ctx context.Context, clients []types.ClientWithEquipment) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC().Format(timeFormat)
	for _, c := range clients {
		id := c.ID
		if id == 0 {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO clients (nombre, contacto, telefono, email, direccion, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, c.Name, c.Contact, c.Phone, c.Email, c.Address, now, now)
			if err != nil {
				return 0, fmt.Errorf("insert client %q: %w", c.Name, err)
			}
			if id, err = res.LastInsertId(); err != nil {
				return 0, fmt.Errorf("client id: %w", err)
			}
		} else {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO clients (id, nombre, contacto, telefono, email, direccion, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					nombre = excluded.nombre,
					contacto = excluded.contacto,
					telefono = excluded.telefono,
					email = excluded.email,
					direccion = excluded.direccion,
					updated_at = excluded.updated_at
			`, id, c.Name, c.Contact, c.Phone, c.Email, c.Address, now, now)
			if err != nil {
				return 0, fmt.Errorf("upsert client %d: %w", id, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM client_equipment WHERE client_id = ?`, id); err != nil {
			return 0, fmt.Errorf("clear equipment for client %d: %w", id, err)
		}
		for _, e := range c.Equipment {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO client_equipment (client_id, tipo_equipo, modelo, serie, marca, potencia)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(client_id, serie) DO UPDATE SET
					tipo_equipo = excluded.tipo_equipo,
					modelo = excluded.modelo,
					marca = excluded.marca,
					potencia = excluded.potencia
			`, id, e.Type, e.Model, e.Serial, e.Brand, e.Power)
			if err != nil {
				return 0, fmt.Errorf("insert equipment %q for client %d: %w", e.Serial, id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(clients), nil
}

// CreateClient adds a client to the directory and returns its id. A zero
// ID lets the database assign one.
func (s *SQLiteStore) CreateClient(ctx context.Context, c types.Client) (int64, error) {
	now := s.now().UTC().Format(timeFormat)
	var id any
	if c.ID != 0 {
		id = c.ID
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, nombre, contacto, telefono, email, direccion, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, c.Name, c.Contact, c.Phone, c.Email, c.Address, now, now)
	if err != nil {
		return 0, fmt.Errorf("create client %q: %w", c.Name, err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("client id: %w", err)
	}
	return newID, nil
}

// DeleteClient removes a client and its equipment.
func (s *SQLiteStore) DeleteClient(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete client: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM client_equipment WHERE client_id = ?`, id); err != nil {
		return fmt.Errorf("delete equipment for client %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete client %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete client: %w", err)
	}
	return nil
}

// AddEquipment registers a unit at a client site. Serials are unique per client.
func (s *SQLiteStore) AddEquipment(ctx context.Context, clientID int64, e types.Equipment) error {
	if _, err := s.GetClient(ctx, clientID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO client_equipment (client_id, tipo_equipo, modelo, serie, marca, potencia)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id, serie) DO NOTHING
	`, clientID, e.Type, e.Model, e.Serial, e.Brand, e.Power)
	if err != nil {
		return fmt.Errorf("add equipment %q for client %d: %w", e.Serial, clientID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDuplicateSerial
	}
	return nil
}

// DeleteEquipment removes the unit with serial from a client.
func (s *SQLiteStore) DeleteEquipment(ctx context.Context, clientID int64, serial string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM client_equipment WHERE client_id = ? AND serie = ?`, clientID, serial)
	if err != nil {
		return fmt.Errorf("delete equipment %q for client %d: %w", serial, clientID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveDraft stores a draft with last-write-wins semantics. Photo and
// signature payloads are split out of form_data into their own columns.
// Every save stamps a fresh revision; the status of an existing draft is kept.
func (s *SQLiteStore) SaveDraft(ctx context.Context, req types.AutosaveRequest) (*types.DraftReport, error) {
	if strings.TrimSpace(req.Folio) == "" {
		return nil, ErrEmptyFolio
	}

	form := make(map[string]string, len(req.FormData))
	for k, v := range req.FormData {
		form[k] = v
	}

	var photos [4]sql.NullString
	for i, key := range photoKeys {
		if v, ok := form[key]; ok {
			photos[i] = nullable(v)
			delete(form, key)
		}
	}
	firmaTecnico := takeSignature(form, firmaTecnicoKey, req.FirmaTecnicoData)
	firmaCliente := takeSignature(form, firmaClienteKey, req.FirmaClienteData)

	encoded, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("encode form data: %w", err)
	}

	now := s.now().UTC()
	stamp := now.Format(timeFormat)
	revision := ulid.Make().String()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO draft_reports
			(folio, form_data, cliente, fecha, foto1, foto2, foto3, foto4,
			 firma_tecnico, firma_cliente, status, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'draft', ?, ?, ?)
		ON CONFLICT(folio) DO UPDATE SET
			form_data = excluded.form_data,
			cliente = excluded.cliente,
			fecha = excluded.fecha,
			foto1 = excluded.foto1,
			foto2 = excluded.foto2,
			foto3 = excluded.foto3,
			foto4 = excluded.foto4,
			firma_tecnico = excluded.firma_tecnico,
			firma_cliente = excluded.firma_cliente,
			revision = excluded.revision,
			updated_at = excluded.updated_at
	`, req.Folio, string(encoded), form[clientNameKey], form[dateKey],
		photos[0], photos[1], photos[2], photos[3],
		firmaTecnico, firmaCliente, revision, stamp, stamp)
	if err != nil {
		return nil, fmt.Errorf("save draft %s: %w", req.Folio, err)
	}

	return s.GetDraft(ctx, req.Folio)
}

// takeSignature moves a signature out of the form map, preferring the
// explicit side-channel value when both are present.
func takeSignature(form map[string]string, key, side string) sql.NullString {
	inline, ok := form[key]
	delete(form, key)
	if side != "" {
		return nullable(side)
	}
	if ok {
		return nullable(inline)
	}
	return sql.NullString{}
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

const draftColumns = `folio, form_data, cliente, fecha, foto1, foto2, foto3, foto4,
	firma_tecnico, firma_cliente, status, revision, created_at, updated_at, sent_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (*types.DraftReport, error) {
	var (
		d                          types.DraftReport
		formData                   string
		photos                     [4]sql.NullString
		firmaTecnico, firmaCliente sql.NullString
		status                     string
		createdAt, updatedAt       string
		sentAt                     sql.NullString
	)
	err := row.Scan(&d.Folio, &formData, &d.ClientName, &d.Date,
		&photos[0], &photos[1], &photos[2], &photos[3],
		&firmaTecnico, &firmaCliente, &status, &d.Revision,
		&createdAt, &updatedAt, &sentAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(formData), &d.FormData); err != nil {
		return nil, fmt.Errorf("decode form data for %s: %w", d.Folio, err)
	}
	if d.FormData == nil {
		d.FormData = map[string]string{}
	}
	for i, p := range photos {
		if p.Valid {
			d.Photos[i] = p.String
			d.FormData[photoKeys[i]] = p.String
		}
	}
	d.FirmaTecnico = firmaTecnico.String
	d.FirmaCliente = firmaCliente.String
	d.Status = types.DraftStatus(status)
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	if sentAt.Valid {
		t := parseTime(sentAt.String)
		d.SentAt = &t
	}
	return &d, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// GetDraft returns the stored draft with its photos merged back into form_data.
func (s *SQLiteStore) GetDraft(ctx context.Context, folio string) (*types.DraftReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM draft_reports WHERE folio = ?`, folio)
	d, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft %s: %w", folio, err)
	}
	return d, nil
}

// ListDrafts returns draft summaries, newest first. An empty status lists all.
func (s *SQLiteStore) ListDrafts(ctx context.Context, status types.DraftStatus) ([]types.DraftSummary, error) {
	query := `SELECT folio, cliente, fecha, status, revision, updated_at FROM draft_reports`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY updated_at DESC, folio`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	drafts := []types.DraftSummary{}
	for rows.Next() {
		var (
			d         types.DraftSummary
			st        string
			updatedAt string
		)
		if err := rows.Scan(&d.Folio, &d.ClientName, &d.Date, &st, &d.Revision, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan draft summary: %w", err)
		}
		d.Status = types.DraftStatus(st)
		d.UpdatedAt = parseTime(updatedAt)
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// DeleteDraft removes a draft. Returns ErrNotFound when no draft matched.
func (s *SQLiteStore) DeleteDraft(ctx context.Context, folio string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM draft_reports WHERE folio = ?`, folio)
	if err != nil {
		return fmt.Errorf("delete draft %s: %w", folio, err)
	}
	return requireAffected(res)
}

// MarkSent moves a draft to the sent state. Marking an already sent draft
// keeps its original sent timestamp.
func (s *SQLiteStore) MarkSent(ctx context.Context, folio string) error {
	stamp := s.now().UTC().Format(timeFormat)
	res, err := s.db.ExecContext(ctx, `
		UPDATE draft_reports
		SET status = 'sent',
			sent_at = COALESCE(sent_at, ?),
			updated_at = ?
		WHERE folio = ?
	`, stamp, stamp, folio)
	if err != nil {
		return fmt.Errorf("mark draft %s sent: %w", folio, err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSentBefore returns sent drafts whose sent time is strictly before the cutoff.
func (s *SQLiteStore) ListSentBefore(ctx context.Context, before time.Time) ([]types.DraftReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+draftColumns+`
		FROM draft_reports
		WHERE status = 'sent' AND sent_at < ?
		ORDER BY sent_at
	`, before.UTC().Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("list sent drafts: %w", err)
	}
	defer rows.Close()

	var drafts []types.DraftReport
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sent draft: %w", err)
		}
		drafts = append(drafts, *d)
	}
	return drafts, rows.Err()
}

// NextFolio increments the counter for prefix and returns "<PREFIX>-<NNNN>".
func (s *SQLiteStore) NextFolio(ctx context.Context, prefix string) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if !prefixPattern.MatchString(prefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}

	var n int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO folios (prefix, last) VALUES (?, 1)
		ON CONFLICT(prefix) DO UPDATE SET last = last + 1
		RETURNING last
	`, prefix).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("next folio for %s: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%04d", prefix, n), nil
}

// GetStats returns aggregate store statistics
func (s *SQLiteStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	var stats types.StoreStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM draft_reports WHERE status = 'draft'),
			(SELECT COUNT(*) FROM draft_reports WHERE status = 'sent'),
			(SELECT COUNT(*) FROM clients)
	`).Scan(&stats.DraftCount, &stats.SentCount, &stats.ClientCount)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &stats, nil
}
