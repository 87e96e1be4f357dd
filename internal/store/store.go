package store

import (
	"context"
	"time"

	"github.com/inair/reportes/internal/types"
)

// Store defines the interface contract for report and directory storage.
type Store interface {
	ListClients(ctx context.Context) ([]types.ClientSummary, error)
	GetClient(ctx context.Context, id int64) (*types.Client, error)
	GetClientEquipment(ctx context.Context, id int64) (*types.ClientEquipmentResponse, error)
	ImportClients(ctx context.Context, clients []types.ClientWithEquipment) (int, error)

	SaveDraft(ctx context.Context, req types.AutosaveRequest) (*types.DraftReport, error)
	GetDraft(ctx context.Context, folio string) (*types.DraftReport, error)
	ListDrafts(ctx context.Context, status types.DraftStatus) ([]types.DraftSummary, error)
	DeleteDraft(ctx context.Context, folio string) error
	MarkSent(ctx context.Context, folio string) error
	ListSentBefore(ctx context.Context, before time.Time) ([]types.DraftReport, error)

	NextFolio(ctx context.Context, prefix string) (string, error)
	GetStats(ctx context.Context) (*types.StoreStats, error)
	Close() error
}
