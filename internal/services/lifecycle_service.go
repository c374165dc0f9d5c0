package services

import (
	"context"

	"github.com/vincentgggg12/docufen-admin-sub001/internal/audit"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/finalize"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type TransitionResult struct {
	Document     *domain.Document  `json:"document"`
	Transition   domain.Transition `json:"transition"`
	Finalization *finalize.Job     `json:"finalization,omitempty"`
}

// RequestTransition moves the stage cursor. Entering Final PDF locks the
// document and creates its finalization job in the same transaction; the
// job is queued once the transaction commits.
func (ds *DocumentService) RequestTransition(ctx context.Context, docID string, actor domain.Principal, target domain.Stage, dir domain.Direction, reason string) (TransitionResult, error) {
	const op = "transition"
	var t domain.Transition
	d, ch, err := ds.mutate(ctx, op, docID, actor, func(tx *gorm.DB, d *domain.Document) (*change, error) {
		if err := domain.Authorize(op, d, actor, domain.ActionTransition); err != nil {
			return nil, err
		}
		var err error
		t, err = d.Transition(target, dir, reason)
		if err != nil {
			return nil, err
		}
		after := map[string]any{"stage": t.To, "direction": t.Direction, "locked": d.Locked}
		if t.Reason != "" {
			after["reason"] = t.Reason
		}
		c := &change{records: []audit.Record{{
			Action: audit.ActionTransitioned,
			Before: map[string]any{"stage": t.From},
			After:  after,
		}}}
		if t.Finalizing() {
			c.hook = func(tx *gorm.DB) error {
				job, err := ds.finalizer.BeginFinalization(ctx, tx, d, actor.UserID)
				if err != nil {
					return err
				}
				c.job = &job
				return nil
			}
		}
		return c, nil
	})
	if err != nil {
		return TransitionResult{}, err
	}
	ds.logger.Info("Document transitioned",
		zap.String("doc_id", d.ID),
		zap.String("actor", actor.UserID),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
	)
	return TransitionResult{Document: d, Transition: t, Finalization: ch.job}, nil
}

// FinalizationStatus reports the latest finalization job of the document.
func (ds *DocumentService) FinalizationStatus(ctx context.Context, docID string, actor domain.Principal) (finalize.Job, error) {
	if _, err := ds.view(ctx, "finalization_status", docID, actor); err != nil {
		return finalize.Job{}, err
	}
	return ds.finalizer.Status(ctx, docID)
}

// CancelFinalization stops the latest job of the document. Owners only.
func (ds *DocumentService) CancelFinalization(ctx context.Context, docID string, actor domain.Principal) (finalize.Job, error) {
	const op = "cancel_finalization"
	d, err := ds.store.Load(ctx, ds.db, docID)
	if err != nil {
		return finalize.Job{}, err
	}
	if !d.IsOwner(actor.UserID) {
		return finalize.Job{}, domain.Errorf(domain.KindForbidden, op, "%s may not cancel finalization of %s", actor.UserID, docID)
	}
	job, err := ds.finalizer.Status(ctx, docID)
	if err != nil {
		return finalize.Job{}, err
	}
	if err := ds.finalizer.Cancel(ctx, job.ID); err != nil {
		return finalize.Job{}, err
	}
	ds.logger.Info("Finalization canceled", zap.String("doc_id", docID), zap.String("job_id", job.ID), zap.String("actor", actor.UserID))
	return ds.finalizer.Status(ctx, docID)
}
