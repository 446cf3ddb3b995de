package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

func openTestStore(t *testing.T, dir string) *StateStore {
	t.Helper()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStateStorePauseFlagDefaultsToRunning(t *testing.T) {
	store := openTestStore(t, t.TempDir())

	paused, err := store.IsPaused(context.Background())
	if err != nil {
		t.Fatalf("IsPaused() error = %v", err)
	}
	if paused {
		t.Fatal("fresh store should not be paused")
	}
}

func TestStateStoreSetPausedRequiresAdmin(t *testing.T) {
	store := openTestStore(t, t.TempDir())
	ctx := context.Background()

	err := store.SetPaused(ctx, true, "stranger")
	if !domain.IsKind(err, domain.ErrNotAuthorized) {
		t.Fatalf("SetPaused() error = %v, want ErrNotAuthorized", err)
	}

	paused, err := store.IsPaused(ctx)
	if err != nil {
		t.Fatalf("IsPaused() error = %v", err)
	}
	if paused {
		t.Fatal("rejected command must not change the pause flag")
	}
}

func TestStateStorePauseAndResume(t *testing.T) {
	store := openTestStore(t, t.TempDir())
	ctx := context.Background()

	if err := store.SeedAdmins(ctx, []string{"root"}); err != nil {
		t.Fatalf("SeedAdmins() error = %v", err)
	}

	if err := store.SetPaused(ctx, true, "root"); err != nil {
		t.Fatalf("SetPaused(true) error = %v", err)
	}
	paused, err := store.IsPaused(ctx)
	if err != nil {
		t.Fatalf("IsPaused() error = %v", err)
	}
	if !paused {
		t.Fatal("expected paused after SetPaused(true)")
	}

	if err := store.SetPaused(ctx, false, "root"); err != nil {
		t.Fatalf("SetPaused(false) error = %v", err)
	}
	paused, err = store.IsPaused(ctx)
	if err != nil {
		t.Fatalf("IsPaused() error = %v", err)
	}
	if paused {
		t.Fatal("expected running after SetPaused(false)")
	}
}

func TestStateStoreAddAdminGrantsAccess(t *testing.T) {
	store := openTestStore(t, t.TempDir())
	ctx := context.Background()

	if err := store.SeedAdmins(ctx, []string{"root"}); err != nil {
		t.Fatalf("SeedAdmins() error = %v", err)
	}

	if err := store.AddAdmin(ctx, "newcomer", "stranger"); !domain.IsKind(err, domain.ErrNotAuthorized) {
		t.Fatalf("AddAdmin() by non-admin error = %v, want ErrNotAuthorized", err)
	}
	if err := store.AddAdmin(ctx, "newcomer", "root"); err != nil {
		t.Fatalf("AddAdmin() error = %v", err)
	}

	ok, err := store.IsAdmin(ctx, "newcomer")
	if err != nil {
		t.Fatalf("IsAdmin() error = %v", err)
	}
	if !ok {
		t.Fatal("newcomer should be an admin after AddAdmin")
	}

	if err := store.SetPaused(ctx, true, "newcomer"); err != nil {
		t.Fatalf("SetPaused() by new admin error = %v", err)
	}
}

func TestStateStoreSeedAdminsIsIdempotent(t *testing.T) {
	store := openTestStore(t, t.TempDir())
	ctx := context.Background()

	for range 3 {
		if err := store.SeedAdmins(ctx, []string{"root", "", "ops"}); err != nil {
			t.Fatalf("SeedAdmins() error = %v", err)
		}
	}

	for _, id := range []string{"root", "ops"} {
		ok, err := store.IsAdmin(ctx, id)
		if err != nil {
			t.Fatalf("IsAdmin(%s) error = %v", id, err)
		}
		if !ok {
			t.Fatalf("seeded admin %s missing", id)
		}
	}
	if ok, _ := store.IsAdmin(ctx, ""); ok {
		t.Fatal("empty id must not be seeded")
	}
}

func TestStateStoreRecordOutcomeCounts(t *testing.T) {
	store := openTestStore(t, t.TempDir())
	ctx := context.Background()

	if err := store.RecordOutcome(ctx, "general", false); err != nil {
		t.Fatalf("RecordOutcome(kb) error = %v", err)
	}
	if err := store.RecordOutcome(ctx, "technical", false); err != nil {
		t.Fatalf("RecordOutcome(kb) error = %v", err)
	}
	if err := store.RecordOutcome(ctx, "general", false); err != nil {
		t.Fatalf("RecordOutcome(kb) error = %v", err)
	}
	if err := store.RecordOutcome(ctx, "", true); err != nil {
		t.Fatalf("RecordOutcome(fallback) error = %v", err)
	}

	stats, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if stats.TotalQueries != 4 {
		t.Fatalf("TotalQueries = %d, want 4", stats.TotalQueries)
	}
	if stats.Fallbacks != 1 {
		t.Fatalf("Fallbacks = %d, want 1", stats.Fallbacks)
	}
	if stats.KBHits["general"] != 2 || stats.KBHits["technical"] != 1 {
		t.Fatalf("KBHits = %v, want general=2 technical=1", stats.KBHits)
	}
}

func TestStateStoreRecordOutcomeConcurrent(t *testing.T) {
	store := openTestStore(t, t.TempDir())
	ctx := context.Background()

	const workers = 20
	const perWorker = 5

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func(fallback bool) {
			defer wg.Done()
			for range perWorker {
				if err := store.RecordOutcome(ctx, "general", fallback); err != nil {
					errCh <- err
					return
				}
			}
		}(i%2 == 0)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("RecordOutcome() error = %v", err)
	}

	stats, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if stats.TotalQueries != workers*perWorker {
		t.Fatalf("TotalQueries = %d, want %d", stats.TotalQueries, workers*perWorker)
	}
	if stats.Fallbacks+stats.KBHits["general"] != workers*perWorker {
		t.Fatalf("Fallbacks+KBHits = %d, want %d", stats.Fallbacks+stats.KBHits["general"], workers*perWorker)
	}
}

func TestStateStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := store.SeedAdmins(ctx, []string{"root"}); err != nil {
		t.Fatalf("SeedAdmins() error = %v", err)
	}
	if err := store.SetPaused(ctx, true, "root"); err != nil {
		t.Fatalf("SetPaused() error = %v", err)
	}
	if err := store.RecordOutcome(ctx, "technical", false); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened := openTestStore(t, dir)
	paused, err := reopened.IsPaused(ctx)
	if err != nil {
		t.Fatalf("IsPaused() after reopen error = %v", err)
	}
	if !paused {
		t.Fatal("pause flag must survive reopen")
	}
	stats, err := reopened.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() after reopen error = %v", err)
	}
	if stats.TotalQueries != 1 || stats.KBHits["technical"] != 1 {
		t.Fatalf("stats after reopen = %+v, want total=1 technical=1", stats)
	}
}

func TestStateStoreRecordOutcomeRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO counters").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO kb_hits").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	store := NewWithDB(db)
	err = store.RecordOutcome(context.Background(), "general", false)
	if !domain.IsKind(err, domain.ErrStoreUnavailable) {
		t.Fatalf("RecordOutcome() error = %v, want ErrStoreUnavailable", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
