// Package finalize hands locked documents to the rendering service and
// records the outcome. Rendering never runs on the request path.
package finalize

import (
	"time"

	"github.com/vincentgggg12/docufen-admin-sub001/internal/db/models"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// SystemActor attributes ledger entries written by the workers.
const SystemActor = "system:finalizer"

// Job is unique per (document, content revision).
type Job struct {
	ID          string     `json:"id"`
	DocumentID  string     `json:"document_id"`
	TenantID    string     `json:"tenant_id"`
	Revision    int        `json:"revision"`
	Status      Status     `json:"status"`
	Attempts    int        `json:"attempts"`
	ArtifactRef string     `json:"artifact_ref,omitempty"`
	Pages       int        `json:"pages,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	RequestedBy string     `json:"requested_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func jobFromRow(row *models.FinalizationJob) Job {
	return Job{
		ID:          row.ID,
		DocumentID:  row.DocumentID,
		TenantID:    row.TenantID,
		Revision:    row.Revision,
		Status:      Status(row.Status),
		Attempts:    row.Attempts,
		ArtifactRef: row.ArtifactRef,
		Pages:       row.Pages,
		LastError:   row.LastError,
		RequestedBy: row.RequestedBy,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		CompletedAt: row.CompletedAt,
	}
}
