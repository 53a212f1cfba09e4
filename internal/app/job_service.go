package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cesargomez89/mediacache/internal/constants"
	"github.com/cesargomez89/mediacache/internal/domain"
	"github.com/cesargomez89/mediacache/internal/logger"
	"github.com/cesargomez89/mediacache/internal/store"
)

var ErrJobNotFound = errors.New("job not found")

type JobService struct {
	Repo   *store.DB
	Logger *logger.Logger
}

func NewJobService(repo *store.DB, log *logger.Logger) *JobService {
	if log == nil {
		log = logger.Default()
	}
	return &JobService{Repo: repo, Logger: log.WithComponent("jobs")}
}

// EnqueueJob queues a job unless one of the same type is already queued or
// running for sourceID, in which case that job is returned
func (s *JobService) EnqueueJob(ctx context.Context, sourceID string, jobType domain.JobType) (*domain.Job, error) {
	existing, err := s.Repo.GetActiveJobBySourceID(ctx, sourceID, jobType)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing job: %w", err)
	}
	if existing != nil {
		s.Logger.Info("Job already exists", "job_id", existing.ID, "source_id", sourceID, "type", jobType)
		return existing, nil
	}

	now := time.Now()
	job := &domain.Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Status:    domain.JobStatusQueued,
		SourceID:  sourceID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.Logger.Info("Job enqueued", "job_id", job.ID, "source_id", sourceID, "type", jobType)
	return job, nil
}

func (s *JobService) ListJobs(ctx context.Context) ([]*domain.Job, error) {
	return s.Repo.ListJobs(ctx, constants.DefaultJobListLimit)
}

func (s *JobService) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	job, err := s.Repo.GetJob(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, err
}

func (s *JobService) ListActiveJobs(ctx context.Context) ([]*domain.Job, error) {
	return s.Repo.ListActiveJobs(ctx)
}

// CancelJob marks a queued job cancelled. A running job notices at its
// next progress update.
func (s *JobService) CancelJob(ctx context.Context, id string) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Finished() {
		return nil
	}
	if err := s.Repo.UpdateJobStatus(ctx, id, domain.JobStatusCancelled, job.Progress); err != nil {
		return err
	}
	s.Logger.Info("Job cancelled", "job_id", id)
	return nil
}

// RetryJob requeues a failed or cancelled job
func (s *JobService) RetryJob(ctx context.Context, id string) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if err := s.Repo.ClearJobError(ctx, id); err != nil {
		return err
	}
	s.Logger.Info("Job retried", "job_id", id, "type", job.Type, "source_id", job.SourceID)
	return nil
}

func (s *JobService) ListFinishedJobs(ctx context.Context, limit int) ([]*domain.Job, error) {
	return s.Repo.ListFinishedJobs(ctx, limit)
}

func (s *JobService) GetJobStats(ctx context.Context) (*store.JobStats, error) {
	return s.Repo.GetJobStats(ctx)
}

func (s *JobService) ClearFinishedJobs(ctx context.Context) error {
	return s.Repo.ClearFinishedJobs(ctx)
}
