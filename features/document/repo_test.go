package document

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepoExistsByHash(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepo(db)
	query := regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM document_texts WHERE text_hash = $1)`)

	t.Run("hash present", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs("abc123").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		exists, err := repo.ExistsByHash(context.Background(), "abc123")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("hash absent", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs("def456").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		exists, err := repo.ExistsByHash(context.Background(), "def456")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs("ghi789").
			WillReturnError(errors.New("connection refused"))

		_, err := repo.ExistsByHash(context.Background(), "ghi789")
		require.Error(t, err)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepoInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepo(db)
	unit := &TextUnit{
		ID:           42,
		DocumentName: "report.pdf",
		PageNumber:   3,
		Text:         "some extracted text",
		TextHash:     "abc123",
		ProcessedAt:  time.Now(),
	}

	t.Run("inserts new unit", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO document_texts").
			WithArgs(unit.ID, unit.DocumentName, unit.PageNumber, unit.Text, unit.TextHash, unit.ProcessedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Insert(context.Background(), unit))
	})

	t.Run("conflicting hash reports duplicate", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO document_texts").
			WithArgs(unit.ID, unit.DocumentName, unit.PageNumber, unit.Text, unit.TextHash, unit.ProcessedAt).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Insert(context.Background(), unit)
		require.ErrorIs(t, err, ErrDuplicateContent)
	})

	t.Run("exec error", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO document_texts").
			WithArgs(unit.ID, unit.DocumentName, unit.PageNumber, unit.Text, unit.TextHash, unit.ProcessedAt).
			WillReturnError(errors.New("connection refused"))

		err := repo.Insert(context.Background(), unit)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicateContent)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepoGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepo(db)
	columns := []string{"id", "document_name", "page_number", "text", "text_hash", "processed_at"}

	t.Run("found", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT id, document_name, page_number, text, text_hash, processed_at FROM document_texts").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(int64(42), "report.pdf", 3, "some text", "abc123", now))

		unit, err := repo.GetByID(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, int64(42), unit.ID)
		assert.Equal(t, "report.pdf", unit.DocumentName)
		assert.Equal(t, 3, unit.PageNumber)
		assert.Equal(t, "some text", unit.Text)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, document_name, page_number, text, text_hash, processed_at FROM document_texts").
			WithArgs(int64(777)).
			WillReturnRows(sqlmock.NewRows(columns))

		_, err := repo.GetByID(context.Background(), 777)
		require.ErrorIs(t, err, ErrNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
