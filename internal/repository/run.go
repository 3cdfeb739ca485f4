package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/ReportDrop/internal/model"
)

// RunRepository keeps the run ledger in the report_runs table.
type RunRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository constructs a repository.
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// Create inserts a run.
func (r *RunRepository) Create(ctx context.Context, run *model.Run) error {
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO report_runs (token, kind, client_id, record_id, state, bytes, pages, archive_key, message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, run.Token, run.Kind, run.ClientID, run.RecordID, run.State, run.Bytes, run.Pages, nullable(run.ArchiveKey), nullable(run.Message), run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get returns a run by token.
func (r *RunRepository) Get(ctx context.Context, token string) (*model.Run, error) {
	var (
		run        model.Run
		archiveKey sql.NullString
		message    sql.NullString
	)
	row := r.pool.QueryRow(ctx, `
		SELECT token, kind, client_id, record_id, state, bytes, pages, archive_key, message, created_at, updated_at
		FROM report_runs WHERE token=$1
	`, token)
	if err := row.Scan(&run.Token, &run.Kind, &run.ClientID, &run.RecordID, &run.State, &run.Bytes, &run.Pages, &archiveKey, &message, &run.CreatedAt, &run.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("select run %s: %w", token, model.ErrRunNotFound)
		}
		return nil, fmt.Errorf("select run: %w", err)
	}
	run.ArchiveKey = archiveKey.String
	run.Message = message.String
	return &run, nil
}

// MarkState moves a run to state.
func (r *RunRepository) MarkState(ctx context.Context, token string, state model.RunState) error {
	return r.exec(ctx, `UPDATE report_runs SET state=$1, updated_at=$2 WHERE token=$3`, state, time.Now().UTC(), token)
}

// MarkFailed records a failure before rendering started.
func (r *RunRepository) MarkFailed(ctx context.Context, token, msg string) error {
	return r.exec(ctx, `UPDATE report_runs SET state=$1, message=$2, updated_at=$3 WHERE token=$4`,
		model.StateFailed, msg, time.Now().UTC(), token)
}

// MarkRendered records the outcome of the render step.
func (r *RunRepository) MarkRendered(ctx context.Context, token string, state model.RunState, bytes int64, msg string) error {
	return r.exec(ctx, `UPDATE report_runs SET state=$1, bytes=$2, message=$3, updated_at=$4 WHERE token=$5`,
		state, bytes, nullable(msg), time.Now().UTC(), token)
}

// MarkArchived stores where the PDF was archived.
func (r *RunRepository) MarkArchived(ctx context.Context, token, key string, pages int) error {
	return r.exec(ctx, `UPDATE report_runs SET archive_key=$1, pages=$2, updated_at=$3 WHERE token=$4`,
		key, pages, time.Now().UTC(), token)
}

func (r *RunRepository) exec(ctx context.Context, stmt string, args ...any) error {
	tag, err := r.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRunNotFound
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
