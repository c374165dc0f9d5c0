package finalize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/audit"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/config"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/db"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/db/models"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/lock"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/metering"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const cancelReason = "canceled"

var errJobResolved = errors.New("job already resolved")

type run struct {
	cancel   context.CancelFunc
	canceled bool
}

// Trigger owns finalization jobs: it creates them inside the transition's
// transaction and renders them from a worker pool afterwards.
type Trigger struct {
	gdb      *gorm.DB
	store    *db.DocumentStore
	ledger   *audit.Ledger
	locker   lock.Locker
	renderer Renderer
	meter    metering.Meter
	cfg      config.FinalizationConfig
	logger   *zap.Logger

	queue chan string

	mu       sync.Mutex
	inflight map[string]*run
}

func NewTrigger(
	gdb *gorm.DB,
	store *db.DocumentStore,
	ledger *audit.Ledger,
	locker lock.Locker,
	renderer Renderer,
	meter metering.Meter,
	cfg config.FinalizationConfig,
	logger *zap.Logger,
) *Trigger {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 64
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Trigger{
		gdb:      gdb,
		store:    store,
		ledger:   ledger,
		locker:   locker,
		renderer: renderer,
		meter:    meter,
		cfg:      cfg,
		logger:   logger.With(zap.String("service", "finalization")),
		queue:    make(chan string, cfg.QueueSize),
		inflight: make(map[string]*run),
	}
}

// BeginFinalization creates or reuses the job for doc's current revision
// inside tx. A Failed job is reset to Pending; Pending and Succeeded jobs
// are returned as they are. Callers enqueue the job after commit when it
// is Pending.
func (t *Trigger) BeginFinalization(ctx context.Context, tx *gorm.DB, doc *domain.Document, actorID string) (Job, error) {
	const op = "begin_finalization"
	var rows []models.FinalizationJob
	if err := tx.WithContext(ctx).
		Where("document_id = ? AND revision = ?", doc.ID, doc.Revision).
		Limit(1).
		Find(&rows).Error; err != nil {
		return Job{}, db.Classify(op, err)
	}

	var row models.FinalizationJob
	switch {
	case len(rows) == 0:
		row = models.FinalizationJob{
			ID:          uuid.NewString(),
			DocumentID:  doc.ID,
			TenantID:    doc.TenantID,
			Revision:    doc.Revision,
			Status:      string(StatusPending),
			RequestedBy: actorID,
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			return Job{}, db.Classify(op, err)
		}
	case rows[0].Status == string(StatusFailed):
		row = rows[0]
		row.Status = string(StatusPending)
		row.Attempts = 0
		row.LastError = ""
		row.CompletedAt = nil
		row.RequestedBy = actorID
		if err := tx.WithContext(ctx).Model(&models.FinalizationJob{}).Where("id = ?", row.ID).
			Updates(map[string]any{
				"status":       row.Status,
				"attempts":     0,
				"last_error":   "",
				"completed_at": nil,
				"requested_by": actorID,
			}).Error; err != nil {
			return Job{}, db.Classify(op, err)
		}
	default:
		return jobFromRow(&rows[0]), nil
	}

	job := jobFromRow(&row)
	if _, err := t.ledger.Append(ctx, tx, audit.Record{
		DocumentID: doc.ID,
		Action:     audit.ActionFinalizationRequested,
		ActorID:    actorID,
		After:      map[string]any{"job_id": job.ID, "revision": job.Revision, "status": job.Status},
	}); err != nil {
		return Job{}, err
	}
	return job, nil
}

// Enqueue schedules jobID without blocking. When the queue is full the job
// stays Pending and the next sweep picks it up.
func (t *Trigger) Enqueue(jobID string) bool {
	select {
	case t.queue <- jobID:
		return true
	default:
		t.logger.Warn("Finalization queue full, deferring job to sweep", zap.String("job_id", jobID))
		return false
	}
}

// Start runs the workers until ctx is done. Pending jobs left from an
// earlier run are re-enqueued first.
func (t *Trigger) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < t.cfg.Workers; i++ {
		g.Go(func() error {
			t.work(ctx)
			return nil
		})
	}
	g.Go(func() error {
		t.sweep(ctx)
		if t.cfg.SweepInterval <= 0 {
			return nil
		}
		ticker := time.NewTicker(t.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				t.sweep(ctx)
			}
		}
	})
	t.logger.Info("Finalization workers started", zap.Int("workers", t.cfg.Workers))
	return g.Wait()
}

func (t *Trigger) sweep(ctx context.Context) {
	var ids []string
	if err := t.gdb.WithContext(ctx).Model(&models.FinalizationJob{}).
		Where("status = ?", string(StatusPending)).
		Order("created_at").
		Pluck("id", &ids).Error; err != nil {
		if ctx.Err() == nil {
			t.logger.Error("Failed to list pending finalization jobs", zap.Error(err))
		}
		return
	}
	for _, id := range ids {
		if t.running(id) {
			continue
		}
		if !t.Enqueue(id) {
			return
		}
	}
}

func (t *Trigger) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-t.queue:
			t.process(ctx, id)
		}
	}
}

func (t *Trigger) running(jobID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inflight[jobID]
	return ok
}

func (t *Trigger) claim(ctx context.Context, jobID string) (context.Context, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inflight[jobID]; ok {
		return nil, false
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.inflight[jobID] = &run{cancel: cancel}
	return runCtx, true
}

// release drops the in-flight entry and reports whether Cancel was called.
func (t *Trigger) release(jobID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.inflight[jobID]
	if !ok {
		return false
	}
	r.cancel()
	delete(t.inflight, jobID)
	return r.canceled
}

func (t *Trigger) process(ctx context.Context, jobID string) {
	runCtx, ok := t.claim(ctx, jobID)
	if !ok {
		return
	}
	log := t.logger.With(zap.String("job_id", jobID))
	canceled := false
	defer func() {
		if !canceled {
			t.release(jobID)
		}
	}()

	job, err := t.Get(runCtx, jobID)
	if err != nil {
		log.Error("Failed to load finalization job", zap.Error(err))
		return
	}
	if job.Status != StatusPending {
		return
	}
	log = log.With(zap.String("doc_id", job.DocumentID), zap.Int("revision", job.Revision))

	doc, err := t.store.Load(runCtx, t.gdb, job.DocumentID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		t.complete(ctx, job, Artifact{}, "document no longer exists")
		return
	case err != nil:
		log.Error("Failed to load document for rendering", zap.Error(err))
		return
	}
	if doc.Revision != job.Revision || doc.Stage != domain.StageFinalPDF || !doc.Locked {
		t.complete(ctx, job, Artifact{}, fmt.Sprintf("superseded: document is at revision %d in stage %s", doc.Revision, doc.Stage))
		return
	}

	req := newRenderRequest(job, doc)
	var lastErr error
	for job.Attempts < t.cfg.MaxAttempts {
		job.Attempts++
		t.recordAttempt(runCtx, job)

		attemptCtx, cancel := context.WithTimeout(runCtx, t.attemptTimeout())
		art, err := t.renderer.Render(attemptCtx, req)
		cancel()
		if err == nil {
			log.Info("Document rendered",
				zap.String("artifact_ref", art.Ref),
				zap.Int("pages", art.Pages),
				zap.Int("attempts", job.Attempts),
			)
			t.complete(ctx, job, art, "")
			return
		}
		lastErr = err
		log.Warn("Render attempt failed", zap.Int("attempt", job.Attempts), zap.Error(err))

		if runCtx.Err() != nil || job.Attempts >= t.cfg.MaxAttempts {
			break
		}
		timer := time.NewTimer(Backoff(job.ID, job.Attempts, t.cfg.BaseBackoff, t.cfg.MaxBackoff))
		select {
		case <-runCtx.Done():
			timer.Stop()
		case <-timer.C:
		}
		if runCtx.Err() != nil {
			break
		}
	}

	if runCtx.Err() != nil {
		canceled = true
		if t.release(jobID) {
			t.complete(ctx, job, Artifact{}, cancelReason)
		}
		// otherwise the process is shutting down; the job stays Pending
		return
	}
	reason := "render attempts exhausted"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	t.complete(ctx, job, Artifact{}, reason)
}

func (t *Trigger) attemptTimeout() time.Duration {
	if t.cfg.AttemptTimeout > 0 {
		return t.cfg.AttemptTimeout
	}
	return 2 * time.Minute
}

func (t *Trigger) recordAttempt(ctx context.Context, job Job) {
	if err := t.gdb.WithContext(ctx).Model(&models.FinalizationJob{}).
		Where("id = ? AND status = ?", job.ID, string(StatusPending)).
		Update("attempts", job.Attempts).Error; err != nil && ctx.Err() == nil {
		t.logger.Warn("Failed to record render attempt", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// complete writes the job outcome and its ledger entry under the document
// lock. failure is empty on success. A job that is no longer Pending is
// left alone.
func (t *Trigger) complete(ctx context.Context, job Job, art Artifact, failure string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	log := t.logger.With(zap.String("job_id", job.ID), zap.String("doc_id", job.DocumentID))

	if err := t.resolve(ctx, job, art, failure); err != nil {
		if errors.Is(err, errJobResolved) {
			log.Info("Finalization job resolved elsewhere")
			return
		}
		log.Error("Failed to record finalization outcome", zap.Error(err))
		return
	}
	if failure != "" {
		log.Warn("Finalization failed", zap.String("reason", failure))
		return
	}
	if t.meter == nil {
		return
	}
	if err := t.meter.Record(ctx, metering.Event{
		TenantID:   job.TenantID,
		DocumentID: job.DocumentID,
		EventType:  metering.EventFinalizedPage,
		Quantity:   int64(art.Pages),
		Metadata:   map[string]any{"job_id": job.ID, "revision": job.Revision, "artifact_ref": art.Ref},
	}); err != nil {
		log.Warn("Failed to record finalized page count", zap.Error(err))
	}
}

func (t *Trigger) resolve(ctx context.Context, job Job, art Artifact, failure string) error {
	unlock, err := t.locker.Lock(ctx, lock.DocumentKey(job.DocumentID))
	if err != nil {
		return err
	}
	defer unlock()

	now := time.Now().UTC()
	status, action := StatusSucceeded, audit.ActionFinalizationSucceeded
	if failure != "" {
		status, action = StatusFailed, audit.ActionFinalizationFailed
	}

	return t.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.FinalizationJob{}).
			Where("id = ? AND status = ?", job.ID, string(StatusPending)).
			Updates(map[string]any{
				"status":       string(status),
				"attempts":     job.Attempts,
				"artifact_ref": art.Ref,
				"pages":        art.Pages,
				"last_error":   failure,
				"completed_at": now,
			})
		if res.Error != nil {
			return db.Classify("finalization_outcome", res.Error)
		}
		if res.RowsAffected == 0 {
			return errJobResolved
		}

		after := map[string]any{"job_id": job.ID, "revision": job.Revision, "status": status, "attempts": job.Attempts}
		if failure != "" {
			after["error"] = failure
		} else {
			after["artifact_ref"] = art.Ref
			after["pages"] = art.Pages
		}
		_, err := t.ledger.Append(ctx, tx, audit.Record{
			DocumentID: job.DocumentID,
			Action:     action,
			ActorID:    SystemActor,
			Before:     map[string]any{"job_id": job.ID, "status": StatusPending},
			After:      after,
		})
		return err
	})
}

// Cancel stops a job. An in-flight retry loop is interrupted and records
// the job as Failed; a queued job is failed directly.
func (t *Trigger) Cancel(ctx context.Context, jobID string) error {
	t.mu.Lock()
	if r, ok := t.inflight[jobID]; ok {
		r.canceled = true
		r.cancel()
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	job, err := t.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != StatusPending {
		return domain.Errorf(domain.KindPreconditionFailed, "cancel_finalization", "job %s is already %s", jobID, job.Status)
	}
	err = t.resolve(ctx, job, Artifact{}, cancelReason)
	if errors.Is(err, errJobResolved) {
		return domain.Errorf(domain.KindConflict, "cancel_finalization", "job %s was resolved concurrently", jobID)
	}
	return err
}

func (t *Trigger) Get(ctx context.Context, jobID string) (Job, error) {
	var row models.FinalizationJob
	err := t.gdb.WithContext(ctx).First(&row, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Job{}, domain.Errorf(domain.KindNotFound, "get_finalization", "job %s not found", jobID)
	}
	if err != nil {
		return Job{}, db.Classify("get_finalization", err)
	}
	return jobFromRow(&row), nil
}

// Status returns the job for docID's most recent revision.
func (t *Trigger) Status(ctx context.Context, docID string) (Job, error) {
	var rows []models.FinalizationJob
	if err := t.gdb.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("revision DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return Job{}, db.Classify("finalization_status", err)
	}
	if len(rows) == 0 {
		return Job{}, domain.Errorf(domain.KindNotFound, "finalization_status", "document %s has no finalization job", docID)
	}
	return jobFromRow(&rows[0]), nil
}

func newRenderRequest(job Job, doc *domain.Document) RenderRequest {
	req := RenderRequest{
		JobID:      job.ID,
		DocumentID: doc.ID,
		TenantID:   doc.TenantID,
		Revision:   doc.Revision,
		Title:      doc.Title,
		Content:    doc.Content,
	}
	for _, a := range doc.Attachments {
		req.Attachments = append(req.Attachments, RenderFile{
			ID:        a.ID,
			Name:      a.Name,
			MediaType: a.MediaType,
			SHA256:    a.SHA256,
			Pages:     a.Pages,
			Data:      a.Data,
		})
	}
	for _, g := range domain.SigningGroups {
		for _, p := range doc.Group(g).Participants {
			if p.Signature == nil {
				continue
			}
			req.Signatures = append(req.Signatures, RenderSigner{
				Group:       string(g),
				UserID:      p.UserID,
				DisplayName: p.DisplayName,
				CompanyName: p.CompanyName,
				SignedAt:    p.Signature.SignedAt,
				Method:      string(p.Signature.Method),
				Notation:    p.Signature.Notation,
			})
		}
	}
	return req
}
