package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/audit"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/db"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/directory"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/finalize"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/lock"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/metering"
	"github.com/vincentgggg12/docufen-admin-sub001/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tracerName = "github.com/vincentgggg12/docufen-admin-sub001/internal/services"

// Finalizer is the part of the finalization trigger the engine drives.
type Finalizer interface {
	BeginFinalization(ctx context.Context, tx *gorm.DB, doc *domain.Document, actorID string) (finalize.Job, error)
	Enqueue(jobID string) bool
	Status(ctx context.Context, docID string) (finalize.Job, error)
	Cancel(ctx context.Context, jobID string) error
}

// DocumentService runs every lifecycle operation: lock the document, load
// it, apply the domain rule, save it and append the ledger entries in one
// transaction.
type DocumentService struct {
	db        *gorm.DB
	store     *db.DocumentStore
	ledger    *audit.Ledger
	locker    lock.Locker
	directory directory.Directory
	finalizer Finalizer
	meter     metering.Meter
	logger    *zap.Logger
	metrics   *metrics.MetricsCollector
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
}

func NewDocumentService(
	gdb *gorm.DB,
	store *db.DocumentStore,
	ledger *audit.Ledger,
	locker lock.Locker,
	dir directory.Directory,
	finalizer Finalizer,
	meter metering.Meter,
	logger *zap.Logger,
	metrics *metrics.MetricsCollector,
) *DocumentService {
	return &DocumentService{
		db:        gdb,
		store:     store,
		ledger:    ledger,
		locker:    locker,
		directory: dir,
		finalizer: finalizer,
		meter:     meter,
		logger:    logger.With(zap.String("service", "document_service")),
		metrics:   metrics,
		tracer:    otel.Tracer(tracerName),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// change is what a mutation hands back to mutate. Records are appended
// after the document is saved, then hook runs in the same transaction.
type change struct {
	records  []audit.Record
	usage    []metering.Event
	skipSave bool
	deleted  bool
	hook     func(tx *gorm.DB) error
	job      *finalize.Job
}

type mutation func(tx *gorm.DB, d *domain.Document) (*change, error)

func (ds *DocumentService) collectMetrics(ctx context.Context, fn func()) {
	go func() {
		select {
		case <-ctx.Done():
			return
		default:
			fn()
		}
	}()
}

// mutate serializes on the document lock, then runs fn inside one
// transaction. Nothing fn did survives an error.
func (ds *DocumentService) mutate(ctx context.Context, op, docID string, actor domain.Principal, fn mutation) (*domain.Document, *change, error) {
	ctx, span := ds.tracer.Start(ctx, "document."+op, trace.WithAttributes(
		attribute.String("document.id", docID),
		attribute.String("actor.id", actor.UserID),
	))
	defer span.End()
	start := time.Now()

	var (
		doc *domain.Document
		ch  *change
	)
	err := func() error {
		unlock, err := ds.locker.Lock(ctx, lock.DocumentKey(docID))
		if err != nil {
			return err
		}
		defer unlock()

		return ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			d, err := ds.store.Load(ctx, tx, docID)
			if err != nil {
				return err
			}
			c, err := fn(tx, d)
			if err != nil {
				return err
			}
			if !c.skipSave && !c.deleted {
				d.UpdatedAt = ds.now()
				if err := ds.store.Save(ctx, tx, d); err != nil {
					return err
				}
			}
			if err := ds.appendAll(ctx, tx, d.ID, actor.UserID, c.records); err != nil {
				return err
			}
			if c.hook != nil {
				if err := c.hook(tx); err != nil {
					return err
				}
			}
			doc, ch = d, c
			return nil
		})
	}()
	if err != nil {
		err = db.Classify(op, err)
		ds.reject(ctx, span, op, docID, actor, err)
		return nil, nil, err
	}

	ds.afterCommit(ctx, ch)
	ds.collectMetrics(context.WithoutCancel(ctx), func() {
		ds.metrics.IncrementCounter("document_operations_total", map[string]string{"op": op, "outcome": "ok"})
		ds.metrics.ObserveLatency(op, time.Since(start))
	})
	return doc, ch, nil
}

func (ds *DocumentService) appendAll(ctx context.Context, tx *gorm.DB, docID, actorID string, records []audit.Record) error {
	for _, rec := range records {
		if rec.DocumentID == "" {
			rec.DocumentID = docID
		}
		if rec.ActorID == "" {
			rec.ActorID = actorID
		}
		if _, err := ds.ledger.Append(ctx, tx, rec); err != nil {
			return err
		}
	}
	return nil
}

// afterCommit notifies the collaborators that must never see an
// uncommitted state.
func (ds *DocumentService) afterCommit(ctx context.Context, ch *change) {
	if ch.job != nil && ch.job.Status == finalize.StatusPending {
		ds.finalizer.Enqueue(ch.job.ID)
	}
	for _, ev := range ch.usage {
		if err := ds.meter.Record(ctx, ev); err != nil {
			ds.logger.Warn("Failed to record usage",
				zap.String("doc_id", ev.DocumentID),
				zap.String("event_type", string(ev.EventType)),
				zap.Error(err),
			)
		}
	}
}

func (ds *DocumentService) reject(ctx context.Context, span trace.Span, op, docID string, actor domain.Principal, err error) {
	kind := domain.KindOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("doc_id", docID),
		zap.String("actor", actor.UserID),
		zap.String("kind", string(kind)),
		zap.Error(err),
	}
	switch kind {
	case domain.KindUnavailable:
		ds.logger.Error("Document operation failed", fields...)
	case domain.KindForbidden, domain.KindConflict:
		ds.logger.Warn("Document operation rejected", fields...)
	default:
		ds.logger.Info("Document operation rejected", fields...)
	}
	ds.collectMetrics(context.WithoutCancel(ctx), func() {
		ds.metrics.IncrementCounter("document_operations_total", map[string]string{"op": op, "outcome": string(kind)})
	})
}

// view loads docID outside any lock and checks that actor may see it.
func (ds *DocumentService) view(ctx context.Context, op, docID string, actor domain.Principal) (*domain.Document, error) {
	d, err := ds.store.Load(ctx, ds.db, docID)
	if err != nil {
		return nil, err
	}
	if err := domain.Authorize(op, d, actor, domain.ActionView); err != nil {
		ds.logger.Warn("Document read rejected",
			zap.String("op", op),
			zap.String("doc_id", docID),
			zap.String("actor", actor.UserID),
		)
		return nil, err
	}
	return d, nil
}

// CreateDocument starts a document in Pre-Approval with actor as its
// first owner.
func (ds *DocumentService) CreateDocument(ctx context.Context, actor domain.Principal, title string) (*domain.Document, error) {
	const op = "create_document"
	ctx, span := ds.tracer.Start(ctx, "document."+op, trace.WithAttributes(attribute.String("actor.id", actor.UserID)))
	defer span.End()

	title = strings.TrimSpace(title)
	if title == "" {
		err := domain.Errorf(domain.KindInvalidArgument, op, "title is required")
		ds.reject(ctx, span, op, "", actor, err)
		return nil, err
	}
	if !actor.Role.OwnerEligible() {
		err := domain.Errorf(domain.KindRoleNotEligible, op, "role %s cannot own documents", actor.Role)
		ds.reject(ctx, span, op, "", actor, err)
		return nil, err
	}

	now := ds.now()
	d := domain.NewDocument(ds.newID(), actor.TenantID, title)
	d.CreatedBy = actor.UserID
	d.CreatedAt = now
	d.UpdatedAt = now
	if err := d.AddParticipant(domain.GroupOwners, actor, now); err != nil {
		ds.reject(ctx, span, op, d.ID, actor, err)
		return nil, err
	}

	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ds.store.Create(ctx, tx, d); err != nil {
			return err
		}
		_, err := ds.ledger.Append(ctx, tx, audit.Record{
			DocumentID: d.ID,
			Action:     audit.ActionDocumentCreated,
			ActorID:    actor.UserID,
			After:      summarize(d),
		})
		return err
	})
	if err != nil {
		err = db.Classify(op, err)
		ds.reject(ctx, span, op, d.ID, actor, err)
		return nil, err
	}
	ds.logger.Info("Document created", zap.String("doc_id", d.ID), zap.String("actor", actor.UserID))
	return d, nil
}

func (ds *DocumentService) GetDocument(ctx context.Context, docID string, actor domain.Principal) (*domain.Document, error) {
	return ds.view(ctx, "get_document", docID, actor)
}

// UpdateContent replaces the document body. Signatures that no longer
// cover the content are reset and each reset is audited.
func (ds *DocumentService) UpdateContent(ctx context.Context, docID string, actor domain.Principal, content []byte) (*domain.Document, error) {
	const op = "update_content"
	d, _, err := ds.mutate(ctx, op, docID, actor, func(tx *gorm.DB, d *domain.Document) (*change, error) {
		if err := domain.Authorize(op, d, actor, domain.ActionEditContent); err != nil {
			return nil, err
		}
		before := contentSummary(d)
		resets, err := d.UpdateContent(content)
		if err != nil {
			return nil, err
		}
		c := &change{records: []audit.Record{{
			Action: audit.ActionContentUpdated,
			Before: before,
			After:  contentSummary(d),
		}}}
		for _, r := range resets {
			c.records = append(c.records, audit.Record{
				Action: audit.ActionSignatureReset,
				Before: map[string]any{"group": r.Group, "user_id": r.UserID, "signed": true},
				After:  map[string]any{"group": r.Group, "user_id": r.UserID, "signed": false, "revision": d.Revision},
			})
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	ds.collectMetrics(context.WithoutCancel(ctx), func() {
		ds.metrics.ObserveSize("document_content_bytes", float64(len(content)))
	})
	return d, nil
}

type AttachmentInput struct {
	Name      string
	MediaType string
	Data      []byte
	Pages     int
}

// AddAttachment stores a file with the document. Attachments count as
// content, so the first one turns Delete into Void.
func (ds *DocumentService) AddAttachment(ctx context.Context, docID string, actor domain.Principal, in AttachmentInput) (*domain.Document, domain.Attachment, error) {
	const op = "add_attachment"
	var added domain.Attachment
	d, _, err := ds.mutate(ctx, op, docID, actor, func(tx *gorm.DB, d *domain.Document) (*change, error) {
		if err := domain.Authorize(op, d, actor, domain.ActionEditContent); err != nil {
			return nil, err
		}
		mediaType := strings.TrimSpace(in.MediaType)
		if mediaType == "" {
			mediaType = "application/octet-stream"
		}
		added = domain.Attachment{
			ID:        ds.newID(),
			Name:      strings.TrimSpace(in.Name),
			MediaType: mediaType,
			SHA256:    digest(in.Data),
			Size:      int64(len(in.Data)),
			Pages:     in.Pages,
			Data:      append([]byte(nil), in.Data...),
			AddedBy:   actor.UserID,
			AddedAt:   ds.now(),
		}
		if err := d.AddAttachment(added); err != nil {
			return nil, err
		}
		c := &change{records: []audit.Record{{
			Action: audit.ActionAttachmentAdded,
			After: map[string]any{
				"attachment_id": added.ID,
				"name":          added.Name,
				"media_type":    added.MediaType,
				"sha256":        added.SHA256,
				"size":          added.Size,
				"pages":         added.Pages,
			},
		}}}
		if added.Pages > 0 {
			c.usage = append(c.usage, metering.Event{
				TenantID:   d.TenantID,
				DocumentID: d.ID,
				EventType:  metering.EventAttachmentPage,
				Quantity:   int64(added.Pages),
				Metadata:   map[string]any{"attachment_id": added.ID},
			})
		}
		return c, nil
	})
	if err != nil {
		return nil, domain.Attachment{}, err
	}
	return d, added, nil
}

// DeleteDocument removes a document that never had content. Its ledger is
// kept and closed with a document.deleted entry.
func (ds *DocumentService) DeleteDocument(ctx context.Context, docID string, actor domain.Principal) error {
	const op = "delete_document"
	_, _, err := ds.mutate(ctx, op, docID, actor, func(tx *gorm.DB, d *domain.Document) (*change, error) {
		if err := domain.Authorize(op, d, actor, domain.ActionDelete); err != nil {
			return nil, err
		}
		if err := d.CheckDelete(); err != nil {
			return nil, err
		}
		if err := ds.store.Delete(ctx, tx, d.ID); err != nil {
			return nil, err
		}
		return &change{
			deleted: true,
			records: []audit.Record{{Action: audit.ActionDeleted, Before: summarize(d)}},
		}, nil
	})
	if err == nil {
		ds.logger.Info("Document deleted", zap.String("doc_id", docID), zap.String("actor", actor.UserID))
	}
	return err
}

// VoidDocument retires a document that has content. It stays queryable.
func (ds *DocumentService) VoidDocument(ctx context.Context, docID string, actor domain.Principal, reason string) (*domain.Document, error) {
	const op = "void_document"
	d, _, err := ds.mutate(ctx, op, docID, actor, func(tx *gorm.DB, d *domain.Document) (*change, error) {
		if err := domain.Authorize(op, d, actor, domain.ActionVoid); err != nil {
			return nil, err
		}
		before := summarize(d)
		if err := d.MarkVoid(reason, actor.UserID, ds.now()); err != nil {
			return nil, err
		}
		after := summarize(d)
		after["void_reason"] = d.Void.Reason
		return &change{records: []audit.Record{{Action: audit.ActionVoided, Before: before, After: after}}}, nil
	})
	return d, err
}

// Reopen unlocks a finalized document. Repeating it before the document
// moves again returns it unchanged and writes nothing.
func (ds *DocumentService) Reopen(ctx context.Context, docID string, actor domain.Principal, confirm bool) (*domain.Document, error) {
	const op = "reopen"
	d, _, err := ds.mutate(ctx, op, docID, actor, func(tx *gorm.DB, d *domain.Document) (*change, error) {
		if err := domain.Authorize(op, d, actor, domain.ActionReopen); err != nil {
			return nil, err
		}
		before := summarize(d)
		changed, err := d.Reopen(confirm)
		if err != nil {
			return nil, err
		}
		if !changed {
			return &change{skipSave: true}, nil
		}
		after := summarize(d)
		after["reopen_count"] = d.ReopenCount
		return &change{records: []audit.Record{{Action: audit.ActionReopened, Before: before, After: after}}}, nil
	})
	return d, err
}

type GroupSigners struct {
	Group         domain.Group         `json:"group"`
	OrderEnforced bool                 `json:"order_enforced"`
	NextSigner    *domain.Participant  `json:"next_signer,omitempty"`
	Eligible      []domain.Participant `json:"eligible"`
}

// CapabilityView is everything the presentation layer needs to decide
// which controls to render for one principal.
type CapabilityView struct {
	DocumentID   string              `json:"document_id"`
	Stage        domain.Stage        `json:"stage"`
	Locked       bool                `json:"locked"`
	Revision     int                 `json:"revision"`
	Capabilities domain.Capabilities `json:"capabilities"`
	Groups       []GroupSigners      `json:"groups"`
}

func (ds *DocumentService) Capabilities(ctx context.Context, docID string, actor domain.Principal) (CapabilityView, error) {
	d, err := ds.view(ctx, "capabilities", docID, actor)
	if err != nil {
		return CapabilityView{}, err
	}
	v := CapabilityView{
		DocumentID:   d.ID,
		Stage:        d.Stage,
		Locked:       d.Locked,
		Revision:     d.Revision,
		Capabilities: domain.Resolve(d, actor),
	}
	for _, g := range domain.SigningGroups {
		gs := d.Group(g)
		entry := GroupSigners{Group: g, OrderEnforced: gs.OrderEnforced, Eligible: gs.EligibleSigners()}
		if next, ok := gs.NextSigner(); ok {
			entry.NextSigner = &next
		}
		v.Groups = append(v.Groups, entry)
	}
	return v, nil
}

func summarize(d *domain.Document) map[string]any {
	return map[string]any{
		"title":    d.Title,
		"stage":    d.Stage,
		"revision": d.Revision,
		"locked":   d.Locked,
		"tenant":   d.TenantID,
		"disposal": domain.DisposalFor(d),
	}
}

func contentSummary(d *domain.Document) map[string]any {
	return map[string]any{
		"revision": d.Revision,
		"sha256":   digest(d.Content),
		"size":     len(d.Content),
	}
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
