// Package archive stores sent drafts in S3-compatible object storage before
// they are removed from the database. When no bucket is configured the
// NoopArchiver is used and the server stays in local-only mode.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/inair/reportes/internal/config"
	"github.com/inair/reportes/internal/types"
)

// ErrNotConfigured is returned when archive storage is not configured.
var ErrNotConfigured = errors.New("archive storage not configured")

// DefaultURLExpiry bounds pre-signed download links.
const DefaultURLExpiry = 15 * time.Minute

// Archiver persists drafts outside the database.
type Archiver interface {
	// Archive writes the complete draft. Callers must not delete a draft
	// whose Archive call failed.
	Archive(ctx context.Context, draft types.DraftReport) error

	// PresignedURL returns a time-limited download link for an archived draft.
	// Returns ErrNotConfigured when archiving is disabled.
	PresignedURL(ctx context.Context, folio string) (url string, expiry time.Time, err error)
}

// Document is the archived representation of a draft.
type Document struct {
	Folio            string            `json:"folio"`
	FormData         map[string]string `json:"form_data"`
	FirmaTecnicoData string            `json:"firma_tecnico_data,omitempty"`
	FirmaClienteData string            `json:"firma_cliente_data,omitempty"`
	Status           types.DraftStatus `json:"status"`
	Revision         string            `json:"revision"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	SentAt           *time.Time        `json:"sent_at,omitempty"`
	ArchivedAt       time.Time         `json:"archived_at"`
}

// NewDocument builds the archive document for a draft. Photos are already
// merged into FormData by the store.
func NewDocument(d types.DraftReport, archivedAt time.Time) Document {
	return Document{
		Folio:            d.Folio,
		FormData:         d.FormData,
		FirmaTecnicoData: d.FirmaTecnico,
		FirmaClienteData: d.FirmaCliente,
		Status:           d.Status,
		Revision:         d.Revision,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
		SentAt:           d.SentAt,
		ArchivedAt:       archivedAt.UTC(),
	}
}

// s3Client defines the minimal minio.Client operations used by S3Archiver.
type s3Client interface {
	PutObject(ctx context.Context, bucket, objectName string, r io.Reader, size int64, contentType string) error
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error)
}

// minioClientWrapper adapts *minio.Client to s3Client.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) PutObject(ctx context.Context, bucket, objectName string, r io.Reader, size int64, contentType string) error {
	_, err := w.client.PutObject(ctx, bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
}

// S3Archiver writes drafts as JSON objects to S3-compatible storage.
type S3Archiver struct {
	client    s3Client
	bucket    string
	prefix    string
	urlExpiry time.Duration
	now       func() time.Time
}

// Archive uploads the draft document.
func (a *S3Archiver) Archive(ctx context.Context, draft types.DraftReport) error {
	body, err := json.Marshal(NewDocument(draft, a.now()))
	if err != nil {
		return fmt.Errorf("encode archive document for %s: %w", draft.Folio, err)
	}
	key := objectKey(a.prefix, draft.Folio)
	if err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return fmt.Errorf("archive draft %s to S3: %w", draft.Folio, err)
	}
	return nil
}

// PresignedURL returns a pre-signed GET URL for an archived draft.
func (a *S3Archiver) PresignedURL(ctx context.Context, folio string) (string, time.Time, error) {
	presigned, err := a.client.PresignedGetObject(ctx, a.bucket, objectKey(a.prefix, folio), a.urlExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	return presigned.String(), a.now().Add(a.urlExpiry), nil
}

// NoopArchiver is used when archive storage is not configured.
// Archive succeeds without writing anything and PresignedURL returns ErrNotConfigured.
type NoopArchiver struct{}

// Archive is a no-op when archive storage is not configured.
func (NoopArchiver) Archive(ctx context.Context, draft types.DraftReport) error {
	return nil
}

// PresignedURL returns ErrNotConfigured.
func (NoopArchiver) PresignedURL(ctx context.Context, folio string) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// Enabled reports whether a writes to real storage.
func Enabled(a Archiver) bool {
	_, noop := a.(NoopArchiver)
	return !noop
}

// New creates the appropriate Archiver based on configuration.
// Returns NoopArchiver when bucket is empty, S3Archiver otherwise.
func New(cfg config.ArchiveConfig) (Archiver, error) {
	if cfg.Bucket == "" {
		return NoopArchiver{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}
	endpoint := stripScheme(cfg.Endpoint, &useSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Archiver{
		client:    &minioClientWrapper{client: client},
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		urlExpiry: DefaultURLExpiry,
		now:       time.Now,
	}, nil
}

// stripScheme removes an http:// or https:// scheme from endpoint, which
// minio expects as host[:port], and lets the scheme decide TLS.
func stripScheme(endpoint string, useSSL *bool) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		*useSSL = true
		return strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		*useSSL = false
		return strings.TrimPrefix(endpoint, "http://")
	}
	return endpoint
}

// objectKey returns the object key for an archived draft.
// Convention: {prefix}/drafts/{folio}.json
func objectKey(prefix, folio string) string {
	if prefix == "" {
		return "drafts/" + folio + ".json"
	}
	return prefix + "/drafts/" + folio + ".json"
}
