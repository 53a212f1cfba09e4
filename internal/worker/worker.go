// Package worker runs queued jobs in the background.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cesargomez89/mediacache/internal/constants"
	"github.com/cesargomez89/mediacache/internal/domain"
	"github.com/cesargomez89/mediacache/internal/logger"
	"github.com/cesargomez89/mediacache/internal/store"
)

var ErrJobCancelled = errors.New("job was cancelled")

type Worker struct {
	ctx           context.Context
	Repo          *store.DB
	Dispatcher    *Dispatcher
	Logger        *logger.Logger
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	MaxConcurrent int
	PollInterval  time.Duration
}

func NewWorker(repo *store.DB, dispatcher *Dispatcher, log *logger.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if log == nil {
		log = logger.Default()
	}

	return &Worker{
		Repo:          repo,
		Dispatcher:    dispatcher,
		MaxConcurrent: constants.DefaultConcurrency,
		PollInterval:  constants.DefaultPollInterval,
		Logger:        log.WithComponent("worker"),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (w *Worker) Start() {
	w.Logger.Info("Starting worker", "concurrency", w.MaxConcurrent)

	if err := w.Repo.ResetStuckJobs(w.ctx); err != nil {
		w.Logger.Error("Failed to reset stuck jobs", "error", err)
	}

	w.wg.Add(1)
	go w.processJobs()
}

func (w *Worker) Stop() {
	w.Logger.Info("Stopping worker")
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) processJobs() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, max(w.MaxConcurrent, 1))

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.startQueued(sem)
		}
	}
}

func (w *Worker) startQueued(sem chan struct{}) {
	jobs, err := w.Repo.ListActiveJobs(w.ctx)
	if err != nil {
		w.Logger.Error("Failed to list jobs", "error", err)
		return
	}

	activeCount := 0
	var queued []*domain.Job
	for _, j := range jobs {
		switch j.Status {
		case domain.JobStatusRunning:
			activeCount++
		case domain.JobStatusQueued:
			queued = append(queued, j)
		}
	}

	toStart := w.MaxConcurrent - activeCount
	for i := 0; i < toStart && i < len(queued); i++ {
		job := queued[i]
		sem <- struct{}{}
		w.wg.Add(1)
		go func(j *domain.Job) {
			defer w.wg.Done()
			defer func() { <-sem }()
			w.runJob(w.ctx, j)
		}(job)
	}
}

func (w *Worker) runJob(ctx context.Context, job *domain.Job) {
	defer func() {
		if r := recover(); r != nil {
			w.Logger.Error("Panic in job",
				"job_id", job.ID,
				"panic", r,
			)
			_ = w.Repo.UpdateJobError(ctx, job.ID, fmt.Sprintf("Panic: %v", r))
		}
	}()

	log := w.Logger.WithJob(job.ID, string(job.Type)).With("source_id", job.SourceID)
	log.Info("Running job")

	if err := w.Repo.UpdateJobStatus(ctx, job.ID, domain.JobStatusRunning, 0); err != nil {
		log.Error("Failed to update status", "error", err)
		return
	}

	progress := func(fraction float64) error {
		if w.isCancelled(ctx, job.ID) {
			return ErrJobCancelled
		}
		return w.Repo.UpdateJobStatus(ctx, job.ID, domain.JobStatusRunning, fraction*100)
	}

	err := w.Dispatcher.Dispatch(ctx, job, progress, log)
	switch {
	case errors.Is(err, ErrJobCancelled):
		log.Info("Job cancelled")
	case err != nil:
		log.Error("Job failed", "error", err)
		if uerr := w.Repo.UpdateJobError(context.WithoutCancel(ctx), job.ID, err.Error()); uerr != nil {
			log.Error("Failed to record job error", "error", uerr)
		}
	default:
		if uerr := w.Repo.UpdateJobStatus(ctx, job.ID, domain.JobStatusCompleted, 100); uerr != nil {
			log.Error("Failed to complete job", "error", uerr)
			return
		}
		log.Info("Job completed")
	}
}

func (w *Worker) isCancelled(ctx context.Context, id string) bool {
	job, err := w.Repo.GetJob(ctx, id)
	if err != nil {
		return false
	}
	return job.Status == domain.JobStatusCancelled
}
