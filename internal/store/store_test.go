package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/histcore/internal/history"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{
		"urls", "visits", "visit_source", "keyword_search_terms",
		"context_annotations", "content_annotations",
		"clusters", "cluster_visits", "cluster_keywords", "meta",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	checks := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"busy_timeout": "5000",
		"foreign_keys": "1",
	}
	for name, want := range checks {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestOpen_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}

	value, err := s.GetMeta(context.Background(), metaFirstRecordedTime)
	if err != nil {
		t.Fatalf("GetMeta() failed: %v", err)
	}
	if value != "0" {
		t.Errorf("first_recorded_time = %q, want \"0\"", value)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx *Tx) error {
		id := mustInsertURLTx(t, tx, "https://rollback.test/")
		if _, err := tx.GetURL(ctx, id); err != nil {
			t.Fatalf("GetURL() inside tx failed: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}

	if _, err := s.GetURLByString(ctx, "https://rollback.test/"); !errors.Is(err, ErrNotFound) {
		t.Errorf("row survived rollback: err = %v", err)
	}
}

func TestUpdate_Commits(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx *Tx) error {
		mustInsertURLTx(t, tx, "https://commit.test/")
		return nil
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	if _, err := s.GetURLByString(ctx, "https://commit.test/"); err != nil {
		t.Errorf("committed row missing: %v", err)
	}
}

func TestUpdate_AfterCloseIsFatal(t *testing.T) {
	s := createTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	err := s.Update(context.Background(), func(*Tx) error {
		t.Fatal("fn must not run on a closed store")
		return nil
	})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("Update() error = %v, want ErrClosed", err)
	}
	if !IsFatal(err) {
		t.Error("closed store error should be fatal")
	}
}

func TestIsFatal(t *testing.T) {
	if IsFatal(wrap("read", context.Canceled)) {
		t.Error("canceled context must not be fatal")
	}
	if IsFatal(wrap("read", errors.New("too many SQL variables"))) {
		t.Error("statement error must not be fatal")
	}
	if IsFatal(nil) {
		t.Error("nil must not be fatal")
	}
}

func TestWrap(t *testing.T) {
	if wrap("op", nil) != nil {
		t.Error("wrap(nil) should be nil")
	}
	if !errors.Is(wrap("op", ErrNotFound), ErrNotFound) {
		t.Error("wrap should pass ErrNotFound through")
	}

	inner := errors.New("disk")
	err := wrap("read", inner)
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("wrap() = %T, want *Error", err)
	}
	if se.Op != "read" || !errors.Is(err, inner) {
		t.Errorf("unexpected wrapped error %+v", se)
	}
	if IsCorruption(err) {
		t.Error("plain error must not classify as corruption")
	}
	if StatusCode(err) != 0 {
		t.Errorf("StatusCode() = %d, want 0", StatusCode(err))
	}
	if StatusCode(inner) != -1 {
		t.Errorf("StatusCode(non-store) = %d, want -1", StatusCode(inner))
	}
	if again := wrap("outer", err); again != err {
		t.Error("wrap should not double-wrap store errors")
	}
}

func mustInsertURLTx(t *testing.T, tx *Tx, url string) history.URLID {
	t.Helper()
	id, err := tx.InsertURL(context.Background(), history.URLRow{URL: url})
	if err != nil {
		t.Fatalf("InsertURL() failed: %v", err)
	}
	return id
}
