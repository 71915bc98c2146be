package history

import (
	"context"
	"fmt"

	"github.com/Hemang2904/jewelbench-flux-gen/internal/domain"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/infra"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/sqlinline"
)

// PostgresStore persists run records through the marker-tagged SQL
// runner. Enabled when DATABASE_URL is configured.
type PostgresStore struct {
	sql infra.SQLExecutor
}

func NewPostgresStore(sql infra.SQLExecutor) *PostgresStore {
	return &PostgresStore{sql: sql}
}

func (s *PostgresStore) Record(ctx context.Context, rec domain.RunRecord) error {
	_, err := s.sql.Exec(ctx, sqlinline.QInsertRun,
		rec.ID,
		string(rec.Mode),
		rec.Template,
		rec.Requested,
		rec.Unique,
		rec.Duplicates,
		rec.Failed,
		string(rec.Status),
		rec.Error,
		rec.StartedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("history: record run: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (domain.RunRecord, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectRun, id)
	rec, err := scanRun(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.RunRecord{}, domain.ErrNotFound
		}
		return domain.RunRecord{}, fmt.Errorf("history: load run: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.sql.Query(ctx, sqlinline.QListRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (domain.RunRecord, error) {
	var rec domain.RunRecord
	var mode, status string
	if err := row.Scan(
		&rec.ID,
		&mode,
		&rec.Template,
		&rec.Requested,
		&rec.Unique,
		&rec.Duplicates,
		&rec.Failed,
		&status,
		&rec.Error,
		&rec.StartedAt,
		&rec.FinishedAt,
	); err != nil {
		return domain.RunRecord{}, err
	}
	rec.Mode = domain.Mode(mode)
	rec.Status = domain.RunStatus(status)
	return rec, nil
}

var _ Store = (*PostgresStore)(nil)
