package dto

import (
	"time"

	"github.com/cesargomez89/mediacache/internal/domain"
)

// JobResponse is a sync or prune job as returned by the jobs endpoints.
// SourceID is the provider name for sync jobs.
type JobResponse struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Status    string  `json:"status"`
	SourceID  string  `json:"source_id"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	Error     *string `json:"error,omitempty"`
	Progress  float64 `json:"progress"`
	Finished  bool    `json:"finished"`
}

func NewJobResponse(j *domain.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Type:      string(j.Type),
		Status:    string(j.Status),
		SourceID:  j.SourceID,
		CreatedAt: j.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.UTC().Format(time.RFC3339),
		Error:     j.Error,
		Progress:  j.Progress,
		Finished:  j.Finished(),
	}
}
