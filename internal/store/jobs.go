package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/mediacache/internal/domain"
)

const jobColumns = `id, type, status, progress, source_id, created_at, updated_at, error`

func (db *DB) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `INSERT OR IGNORE INTO jobs (id, type, status, progress, source_id, created_at, updated_at)
		VALUES (:id, :type, :status, :progress, :source_id, :created_at, :updated_at)`

	return db.Do(ctx, func(ctx context.Context, h *sqlx.DB) error {
		_, err := h.NamedExecContext(ctx, query, job)
		return err
	})
}

func (db *DB) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	job := &domain.Job{}
	err := db.Do(ctx, func(ctx context.Context, h *sqlx.DB) error {
		return h.GetContext(ctx, job, query, id)
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (db *DB) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, progress float64) error {
	query := `UPDATE jobs SET status = ?, progress = ?, updated_at = ? WHERE id = ?`
	return db.exec(ctx, query, status, progress, time.Now(), id)
}

func (db *DB) UpdateJobError(ctx context.Context, id string, errorMsg string) error {
	query := `UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`
	return db.exec(ctx, query, domain.JobStatusFailed, errorMsg, time.Now(), id)
}

func (db *DB) ClearJobError(ctx context.Context, id string) error {
	query := `UPDATE jobs SET status = ?, progress = 0, error = NULL, updated_at = ? WHERE id = ?`
	return db.exec(ctx, query, domain.JobStatusQueued, time.Now(), id)
}

func (db *DB) ListJobs(ctx context.Context, limit int) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC LIMIT ?`
	return db.selectJobs(ctx, query, limit)
}

func (db *DB) ListActiveJobs(ctx context.Context) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN ('queued', 'running') ORDER BY created_at ASC`
	return db.selectJobs(ctx, query)
}

func (db *DB) ListFinishedJobs(ctx context.Context, limit int) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN ('completed', 'failed', 'cancelled') ORDER BY updated_at DESC LIMIT ?`
	return db.selectJobs(ctx, query, limit)
}

func (db *DB) GetActiveJobBySourceID(ctx context.Context, sourceID string, jobType domain.JobType) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM jobs
		WHERE source_id = ? AND type = ? AND status IN ('queued', 'running')
		LIMIT 1`

	job := &domain.Job{}
	err := db.Do(ctx, func(ctx context.Context, h *sqlx.DB) error {
		return h.GetContext(ctx, job, query, sourceID, jobType)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (db *DB) ResetStuckJobs(ctx context.Context) error {
	query := `UPDATE jobs SET status = ?, updated_at = ? WHERE status = 'running'`
	return db.exec(ctx, query, domain.JobStatusQueued, time.Now())
}

func (db *DB) ClearFinishedJobs(ctx context.Context) error {
	query := `DELETE FROM jobs WHERE status IN ('completed', 'failed', 'cancelled')`
	return db.exec(ctx, query)
}

type JobStats struct {
	Total     int `db:"total"`
	Completed int `db:"completed"`
	Failed    int `db:"failed"`
	Cancelled int `db:"cancelled"`
}

func (db *DB) GetJobStats(ctx context.Context) (*JobStats, error) {
	query := `SELECT
		COUNT(*) as total,
		COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) as completed,
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) as failed,
		COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0) as cancelled
	FROM jobs
	WHERE status IN ('completed', 'failed', 'cancelled')`

	stats := &JobStats{}
	err := db.Do(ctx, func(ctx context.Context, h *sqlx.DB) error {
		return h.GetContext(ctx, stats, query)
	})
	return stats, err
}

func (db *DB) selectJobs(ctx context.Context, query string, args ...any) ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := db.Do(ctx, func(ctx context.Context, h *sqlx.DB) error {
		return h.SelectContext(ctx, &jobs, query, args...)
	})
	return jobs, err
}

func (db *DB) exec(ctx context.Context, query string, args ...any) error {
	return db.Do(ctx, func(ctx context.Context, h *sqlx.DB) error {
		_, err := h.ExecContext(ctx, query, args...)
		return err
	})
}
