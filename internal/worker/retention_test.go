package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/inair/reportes/internal/archive"
	"github.com/inair/reportes/internal/store"
	"github.com/inair/reportes/internal/types"
)

// mockRetentionStore implements RetentionStore for testing.
type mockRetentionStore struct {
	mu        sync.Mutex
	drafts    []types.DraftReport
	listErr   error
	deleteErr map[string]error
	deleted   []string
	cutoffs   []time.Time
	listCalls chan struct{}
}

func newMockRetentionStore(folios ...string) *mockRetentionStore {
	m := &mockRetentionStore{
		deleteErr: make(map[string]error),
		listCalls: make(chan struct{}, 10),
	}
	for _, f := range folios {
		m.drafts = append(m.drafts, types.DraftReport{Folio: f, Status: types.StatusSent})
	}
	return m
}

func (m *mockRetentionStore) ListSentBefore(ctx context.Context, cutoff time.Time) ([]types.DraftReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoff)
	select {
	case m.listCalls <- struct{}{}:
	default:
	}
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]types.DraftReport, len(m.drafts))
	copy(out, m.drafts)
	return out, nil
}

func (m *mockRetentionStore) DeleteDraft(ctx context.Context, folio string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteErr[folio]; err != nil {
		return err
	}
	m.deleted = append(m.deleted, folio)
	for i, d := range m.drafts {
		if d.Folio == folio {
			m.drafts = append(m.drafts[:i], m.drafts[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockRetentionStore) deletedFolios() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// mockArchiver records archived folios and fails for configured ones.
type mockArchiver struct {
	mu       sync.Mutex
	failFor  map[string]error
	archived []string
}

func (m *mockArchiver) Archive(ctx context.Context, d types.DraftReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor[d.Folio]; err != nil {
		return err
	}
	m.archived = append(m.archived, d.Folio)
	return nil
}

func (m *mockArchiver) PresignedURL(ctx context.Context, folio string) (string, time.Time, error) {
	return "", time.Time{}, archive.ErrNotConfigured
}

func newTestCoordinator(s RetentionStore, a archive.Archiver, now time.Time) *RetentionCoordinator {
	c := NewRetentionCoordinator(s, a, time.Hour, 90*24*time.Hour)
	c.now = func() time.Time { return now }
	return c
}

func TestRetentionCoordinator_ArchivesThenDeletes(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	s := newMockRetentionStore("INAIR-0001", "INAIR-0002")
	a := &mockArchiver{}

	res := newTestCoordinator(s, a, now).RunOnce(context.Background())

	if res.Candidates != 2 || res.Archived != 2 || res.Deleted != 2 || res.Failed != 0 {
		t.Errorf("RunOnce() = %+v", res)
	}
	if len(a.archived) != 2 {
		t.Errorf("archived = %v", a.archived)
	}
	if got := s.deletedFolios(); len(got) != 2 {
		t.Errorf("deleted = %v", got)
	}
	if want := now.Add(-90 * 24 * time.Hour); !s.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %v, want %v", s.cutoffs[0], want)
	}
}

func TestRetentionCoordinator_ArchiveFailureKeepsDraft(t *testing.T) {
	s := newMockRetentionStore("INAIR-0001", "INAIR-0002", "INAIR-0003")
	a := &mockArchiver{failFor: map[string]error{"INAIR-0002": errors.New("bucket unreachable")}}

	res := newTestCoordinator(s, a, time.Now()).RunOnce(context.Background())

	if res.Deleted != 2 || res.Failed != 1 {
		t.Errorf("RunOnce() = %+v, want 2 deleted and 1 failed", res)
	}
	for _, f := range s.deletedFolios() {
		if f == "INAIR-0002" {
			t.Error("Draft whose archive failed must not be deleted")
		}
	}
}

func TestRetentionCoordinator_DeleteFailureCounted(t *testing.T) {
	s := newMockRetentionStore("INAIR-0001")
	s.deleteErr["INAIR-0001"] = errors.New("database is locked")

	res := newTestCoordinator(s, &mockArchiver{}, time.Now()).RunOnce(context.Background())

	if res.Archived != 1 || res.Deleted != 0 || res.Failed != 1 {
		t.Errorf("RunOnce() = %+v", res)
	}
}

func TestRetentionCoordinator_ListErrorIsTolerated(t *testing.T) {
	s := newMockRetentionStore()
	s.listErr = errors.New("disk I/O error")

	res := newTestCoordinator(s, &mockArchiver{}, time.Now()).RunOnce(context.Background())
	if res != (CycleResult{}) {
		t.Errorf("RunOnce() = %+v, want zero result", res)
	}
}

func TestRetentionCoordinator_NilArchiverDeletesWithoutArchiving(t *testing.T) {
	s := newMockRetentionStore("INAIR-0001")

	res := newTestCoordinator(s, nil, time.Now()).RunOnce(context.Background())

	if res.Archived != 0 || res.Deleted != 1 {
		t.Errorf("RunOnce() = %+v, want local-only delete", res)
	}
}

func TestRetentionCoordinator_CancelledContextStopsCycle(t *testing.T) {
	s := newMockRetentionStore("INAIR-0001", "INAIR-0002")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	newTestCoordinator(s, &mockArchiver{}, time.Now()).RunOnce(ctx)

	if got := s.deletedFolios(); len(got) != 0 {
		t.Errorf("Expected no deletions after cancellation, got %v", got)
	}
}

func TestRetentionCoordinator_RunsImmediatelyAndOnInterval(t *testing.T) {
	s := newMockRetentionStore()
	c := NewRetentionCoordinator(s, nil, 30*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-s.listCalls:
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for cycle %d", i+1)
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRetentionCoordinator_WithSQLiteStore(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "retention.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	for _, folio := range []string{"INAIR-0001", "INAIR-0002"} {
		if _, err := s.SaveDraft(ctx, types.AutosaveRequest{
			Folio:    folio,
			FormData: map[string]string{"cliente": "ACME"},
		}); err != nil {
			t.Fatalf("SaveDraft(%s) error = %v", folio, err)
		}
	}
	if err := s.MarkSent(ctx, "INAIR-0001"); err != nil {
		t.Fatalf("MarkSent() error = %v", err)
	}

	a := &mockArchiver{}
	c := NewRetentionCoordinator(s, a, time.Hour, 24*time.Hour)
	c.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	res := c.RunOnce(ctx)
	if res.Deleted != 1 {
		t.Fatalf("RunOnce() = %+v, want one sent draft retired", res)
	}
	if len(a.archived) != 1 || a.archived[0] != "INAIR-0001" {
		t.Errorf("archived = %v", a.archived)
	}
	if _, err := s.GetDraft(ctx, "INAIR-0001"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetDraft(sent) error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetDraft(ctx, "INAIR-0002"); err != nil {
		t.Errorf("Unsent draft should survive retention, got %v", err)
	}
}
