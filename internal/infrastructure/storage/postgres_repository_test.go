package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"ArgumentMiner/internal/domain"
)

func TestProcessedIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	ids := []string{"a1", "a2", "a3"}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT article_id FROM extraction_results WHERE pipeline = $1 AND success = $2 AND article_id = ANY($3)")).
		WithArgs("direct_extraction", true, pq.Array(ids)).
		WillReturnRows(sqlmock.NewRows([]string{"article_id"}).AddRow("a1").AddRow("a3"))

	repo := NewPostgresRepository(db)
	got, err := repo.ProcessedIDs(context.Background(), domain.VariantDirect, ids)
	if err != nil {
		t.Fatalf("ProcessedIDs() error = %v", err)
	}

	if len(got) != 2 || !got["a1"] || !got["a3"] || got["a2"] {
		t.Errorf("unexpected processed set %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestProcessedIDsEmptyInput(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	got, err := NewPostgresRepository(db).ProcessedIDs(context.Background(), domain.VariantDirect, nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v, %v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected queries: %v", err)
	}
}

func TestSaveResultsUpsertsInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	ok := domain.NewExtractionResult(domain.VariantSocratic, domain.Article{ID: "a1"}, []string{"q"},
		[]domain.ArgumentRecord{{Question: "q", Answer: "a", Claim: "c", Premises: []string{"p"}}})
	failed := domain.NewExtractionResult(domain.VariantSocratic, domain.Article{ID: "a2"}, nil, nil)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO extraction_results").
		WithArgs("run-1", "socratic_extraction", "a1", true, nil, `["q"]`,
			`[{"question":"q","answer":"a","claim":"c","premises":["p"]}]`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("ON CONFLICT \\(pipeline, article_id\\) DO UPDATE").
		WithArgs("run-1", "socratic_extraction", "a2", false, domain.NoArgumentsReason, `[]`, `[]`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := NewPostgresRepository(db).SaveResults(context.Background(), "run-1", []domain.ExtractionResult{ok, failed}); err != nil {
		t.Fatalf("SaveResults() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSaveResultsRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO extraction_results").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	res := domain.NewExtractionResult(domain.VariantDirect, domain.Article{ID: "x"}, nil, nil)
	err = NewPostgresRepository(db).SaveResults(context.Background(), "run-2", []domain.ExtractionResult{res})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS extraction_results").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := NewPostgresRepository(db).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
