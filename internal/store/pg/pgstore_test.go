package pg

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestListIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select dag_id from dags").WillReturnRows(
		sqlmock.NewRows([]string{"dag_id"}).AddRow("etl_daily").AddRow("reporting"))

	store := New(db)
	ids, err := store.ListIDs(context.Background())
	if err != nil {
		t.Fatalf("ListIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "etl_daily" || ids[1] != "reporting" {
		t.Fatalf("unexpected ids: %v", ids)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListIDsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select dag_id from dags").WillReturnError(errors.New("connection reset"))

	if _, err := New(db).ListIDs(context.Background()); err == nil {
		t.Fatal("expected query error to propagate")
	}
}

func TestCreateDag(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into dags").
		WithArgs(sqlmock.AnyArg(), "etl_daily").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := New(db).CreateDag(context.Background(), "etl_daily"); err != nil {
		t.Fatalf("CreateDag: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateDagConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into dags").
		WithArgs(sqlmock.AnyArg(), "etl_daily").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err = New(db).CreateDag(context.Background(), "etl_daily")
	if !errors.Is(err, ErrDagExists) {
		t.Fatalf("want ErrDagExists, got %v", err)
	}
}

func TestMarkStale(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update dags set is_stale").
		WithArgs("etl_daily", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := New(db).MarkStale(context.Background(), "etl_daily", true); err != nil {
		t.Fatalf("MarkStale: %v", err)
	}

	mock.ExpectExec("update dags set is_stale").
		WithArgs("ghost", false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = New(db).MarkStale(context.Background(), "ghost", false)
	if !errors.Is(err, ErrDagNotFound) {
		t.Fatalf("want ErrDagNotFound, got %v", err)
	}
}
