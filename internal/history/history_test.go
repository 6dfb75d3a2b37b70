package history

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"imgseekbot/internal/engine"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestRecord(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO search_history`).
		WithArgs(int64(42), "baidu", 120, int64(1500)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Record(context.Background(), 42, engine.Baidu, 120, 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRecordWrapsError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO search_history`).
		WillReturnError(errors.New("connection reset"))

	err := store.Record(context.Background(), 42, engine.Google, 1, time.Second)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRecent(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user_id", "engine", "result_chars", "took_ms", "created_at"}).
		AddRow(2, 42, "google", 300, 900, created).
		AddRow(1, 42, "baidu", 120, 1500, created.Add(-time.Hour))
	mock.ExpectQuery(`SELECT .+ FROM search_history WHERE user_id`).
		WithArgs(int64(42), 5).
		WillReturnRows(rows)

	entries, err := store.Recent(context.Background(), 42, 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Engine != "google" || entries[0].ResultChars != 300 {
		t.Fatalf("first entry = %+v", entries[0])
	}
}

func TestRecentDefaultLimit(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .+ FROM search_history WHERE user_id`).
		WithArgs(int64(7), defaultRecentLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "engine", "result_chars", "took_ms", "created_at"}))

	if _, err := store.Recent(context.Background(), 7, 0); err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestTotalsByEngine(t *testing.T) {
	store, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"engine", "count"}).
		AddRow("baidu", 12).
		AddRow("saucenao", 3)
	mock.ExpectQuery(`SELECT engine, COUNT`).WillReturnRows(rows)

	totals, err := store.TotalsByEngine(context.Background())
	if err != nil {
		t.Fatalf("TotalsByEngine: %v", err)
	}
	if len(totals) != 2 || totals[0].Engine != "baidu" || totals[0].Count != 12 {
		t.Fatalf("totals = %+v", totals)
	}
}
