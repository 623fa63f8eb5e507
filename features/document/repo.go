package document

import (
	"context"
	"database/sql"
	"errors"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM document_texts WHERE text_hash = $1)`
	err := r.db.QueryRowContext(ctx, query, hash).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Insert persists a unit. The UNIQUE constraint on text_hash is the
// authoritative dedup guard: a conflicting insert affects zero rows and is
// reported as ErrDuplicateContent, so concurrent ingestions of identical
// content can never produce two rows.
func (r *PostgresRepo) Insert(ctx context.Context, unit *TextUnit) error {
	query := `INSERT INTO document_texts (id, document_name, page_number, text, text_hash, processed_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (text_hash) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		unit.ID, unit.DocumentName, unit.PageNumber, unit.Text, unit.TextHash, unit.ProcessedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDuplicateContent
	}
	return nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, id int64) (*TextUnit, error) {
	u := &TextUnit{}
	query := `SELECT id, document_name, page_number, text, text_hash, processed_at FROM document_texts WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.DocumentName, &u.PageNumber, &u.Text, &u.TextHash, &u.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
