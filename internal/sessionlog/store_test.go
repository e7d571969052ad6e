package sessionlog

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockStore(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return NewStore(db, nil), mock
}

func TestGormStoreSaveInsertsRecord(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "gateway_session_records"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("generated-id"))
	mock.ExpectCommit()

	record := &SessionRecord{
		CallID:    "call-123",
		ClientID:  "007",
		StartTime: time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 5, 10, 1, 0, 0, time.UTC),
		FinalPhase: "CLOSING",
	}

	if err := store.Save(context.Background(), record); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if record.ID == "" {
		t.Fatal("expected BeforeCreate to assign an ID")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGormStoreGetReturnsNotFoundError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "gateway_session_records"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "call_id"}))

	_, err := store.Get(context.Background(), "missing-call")
	if err == nil {
		t.Fatal("expected an error for a missing call_id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
