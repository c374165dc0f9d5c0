// Package audit implements the append-only per-document ledger. Each
// document's entries form their own sequence and hash chain.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vincentgggg12/docufen-admin-sub001/internal/config"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/db"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/db/models"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const genesisHash = "genesis"

const (
	ActionDocumentCreated       = "document.created"
	ActionContentUpdated        = "document.content_updated"
	ActionAttachmentAdded       = "document.attachment_added"
	ActionTransitioned          = "document.transitioned"
	ActionReopened              = "document.reopened"
	ActionVoided                = "document.voided"
	ActionDeleted               = "document.deleted"
	ActionCopyCreated           = "document.copy_created"
	ActionCopiedFrom            = "document.copied_from"
	ActionParticipantAdded      = "participant.added"
	ActionParticipantRemoved    = "participant.removed"
	ActionOrderChanged          = "signing.order_changed"
	ActionSigned                = "signature.captured"
	ActionSignatureReset        = "signature.reset"
	ActionVerificationRevoked   = "signature.verification_revoked"
	ActionReverified            = "signature.reverified"
	ActionFinalizationRequested = "finalization.requested"
	ActionFinalizationSucceeded = "finalization.succeeded"
	ActionFinalizationFailed    = "finalization.failed"
)

// Record is what callers hand to Append. Before and After are marshalled
// to JSON; nil leaves the snapshot empty.
type Record struct {
	DocumentID string
	Action     string
	ActorID    string
	Before     any
	After      any
}

type Entry struct {
	DocumentID string          `json:"document_id"`
	Sequence   uint64          `json:"sequence"`
	Action     string          `json:"action"`
	ActorID    string          `json:"actor_id"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	PrevHash   string          `json:"prev_hash"`
	Hash       string          `json:"hash"`
}

type Filter struct {
	Actions []string
	ActorID string
	Since   *time.Time
	Until   *time.Time
}

// Page addresses a keyset page: entries with sequence strictly greater
// than After, at most Limit of them.
type Page struct {
	After uint64
	Limit int
}

type Result struct {
	Entries    []Entry `json:"entries"`
	NextCursor uint64  `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}

type Verification struct {
	DocumentID string `json:"document_id"`
	Entries    int    `json:"entries"`
	Valid      bool   `json:"valid"`
	BrokenAt   uint64 `json:"broken_at,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type Ledger struct {
	db           *gorm.DB
	logger       *zap.Logger
	defaultLimit int
	maxLimit     int
	verifyBatch  int
	now          func() time.Time
}

func NewLedger(gdb *gorm.DB, cfg config.LedgerConfig, logger *zap.Logger) *Ledger {
	l := &Ledger{
		db:           gdb,
		logger:       logger.With(zap.String("service", "audit_ledger")),
		defaultLimit: cfg.DefaultPageSize,
		maxLimit:     cfg.MaxPageSize,
		verifyBatch:  cfg.VerifyBatchSize,
		now:          time.Now,
	}
	if l.defaultLimit <= 0 {
		l.defaultLimit = 50
	}
	if l.maxLimit < l.defaultLimit {
		l.maxLimit = 500
	}
	if l.verifyBatch <= 0 {
		l.verifyBatch = 500
	}
	return l
}

// Append writes one entry inside tx. The caller holds the document lock, so
// reading the chain head and inserting the next link cannot interleave with
// another writer; the unique (document_id, sequence) index backs that up.
// Any failure is Unavailable and must abort tx.
func (l *Ledger) Append(ctx context.Context, tx *gorm.DB, rec Record) (Entry, error) {
	const op = "audit_append"
	if rec.DocumentID == "" || rec.Action == "" {
		return Entry{}, domain.Errorf(domain.KindInvalidArgument, op, "document id and action are required")
	}
	before, err := marshalSnapshot(rec.Before)
	if err != nil {
		return Entry{}, domain.Unavailable(op, err)
	}
	after, err := marshalSnapshot(rec.After)
	if err != nil {
		return Entry{}, domain.Unavailable(op, err)
	}

	var head []models.AuditRecord
	if err := tx.WithContext(ctx).
		Where("document_id = ?", rec.DocumentID).
		Order("sequence DESC").
		Limit(1).
		Find(&head).Error; err != nil {
		l.logger.Error("Failed to read ledger head", zap.String("doc_id", rec.DocumentID), zap.Error(err))
		return Entry{}, domain.Unavailable(op, err)
	}

	row := models.AuditRecord{
		DocumentID: rec.DocumentID,
		Sequence:   1,
		Action:     rec.Action,
		ActorID:    rec.ActorID,
		Before:     before,
		After:      after,
		Timestamp:  l.now().UTC().Truncate(time.Microsecond),
		PrevHash:   genesisHash,
	}
	if len(head) == 1 {
		prev := head[0]
		row.Sequence = prev.Sequence + 1
		row.PrevHash = prev.Hash
		if prevTS := prev.Timestamp.UTC(); row.Timestamp.Before(prevTS) {
			row.Timestamp = prevTS
		}
	}
	row.Hash = entryHash(&row)

	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		l.logger.Error("Failed to append ledger entry",
			zap.String("doc_id", rec.DocumentID),
			zap.String("action", rec.Action),
			zap.Error(err),
		)
		return Entry{}, domain.Unavailable(op, err)
	}
	return toEntry(&row), nil
}

// Query returns one keyset page of docID's ledger in sequence order.
func (l *Ledger) Query(ctx context.Context, docID string, f Filter, p Page) (Result, error) {
	const op = "audit_query"
	limit := p.Limit
	switch {
	case limit < 0:
		return Result{}, domain.Errorf(domain.KindInvalidArgument, op, "page size must not be negative")
	case limit == 0:
		limit = l.defaultLimit
	case limit > l.maxLimit:
		limit = l.maxLimit
	}

	q := l.db.WithContext(ctx).
		Where("document_id = ? AND sequence > ?", docID, p.After)
	if len(f.Actions) > 0 {
		q = q.Where("action IN ?", f.Actions)
	}
	if f.ActorID != "" {
		q = q.Where("actor_id = ?", f.ActorID)
	}
	if f.Since != nil {
		q = q.Where("recorded_at >= ?", f.Since.UTC())
	}
	if f.Until != nil {
		q = q.Where("recorded_at < ?", f.Until.UTC())
	}

	var rows []models.AuditRecord
	if err := q.Order("sequence ASC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return Result{}, db.Classify(op, err)
	}

	res := Result{Entries: make([]Entry, 0, min(len(rows), limit))}
	if len(rows) > limit {
		res.HasMore = true
		rows = rows[:limit]
	}
	for i := range rows {
		res.Entries = append(res.Entries, toEntry(&rows[i]))
	}
	if res.HasMore {
		res.NextCursor = rows[len(rows)-1].Sequence
	}
	return res, nil
}

// VerifyChain walks docID's ledger in batches and reports the first link
// that does not hold.
func (l *Ledger) VerifyChain(ctx context.Context, docID string) (Verification, error) {
	const op = "audit_verify"
	v := Verification{DocumentID: docID, Valid: true}
	var (
		cursor   uint64
		prevHash = genesisHash
		prevTS   time.Time
	)
	for {
		if err := ctx.Err(); err != nil {
			return v, domain.Unavailable(op, err)
		}
		var rows []models.AuditRecord
		if err := l.db.WithContext(ctx).
			Where("document_id = ? AND sequence > ?", docID, cursor).
			Order("sequence ASC").
			Limit(l.verifyBatch).
			Find(&rows).Error; err != nil {
			return v, db.Classify(op, err)
		}
		for i := range rows {
			row := &rows[i]
			switch {
			case row.Sequence != cursor+1:
				return broken(v, row.Sequence, fmt.Sprintf("expected sequence %d", cursor+1)), nil
			case row.PrevHash != prevHash:
				return broken(v, row.Sequence, "previous hash does not match"), nil
			case entryHash(row) != row.Hash:
				return broken(v, row.Sequence, "entry hash does not match contents"), nil
			case row.Timestamp.UTC().Before(prevTS):
				return broken(v, row.Sequence, "timestamp moves backwards"), nil
			}
			cursor = row.Sequence
			prevHash = row.Hash
			prevTS = row.Timestamp.UTC()
			v.Entries++
		}
		if len(rows) < l.verifyBatch {
			return v, nil
		}
	}
}

func broken(v Verification, seq uint64, reason string) Verification {
	v.Valid = false
	v.BrokenAt = seq
	v.Reason = reason
	return v
}

func marshalSnapshot(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return string(raw), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	return string(data), nil
}

func entryHash(row *models.AuditRecord) string {
	hashable := struct {
		DocumentID string `json:"document_id"`
		Sequence   uint64 `json:"sequence"`
		Action     string `json:"action"`
		ActorID    string `json:"actor_id"`
		Before     string `json:"before"`
		After      string `json:"after"`
		Timestamp  string `json:"timestamp"`
		PrevHash   string `json:"prev_hash"`
	}{
		DocumentID: row.DocumentID,
		Sequence:   row.Sequence,
		Action:     row.Action,
		ActorID:    row.ActorID,
		Before:     row.Before,
		After:      row.After,
		Timestamp:  row.Timestamp.UTC().Format(time.RFC3339Nano),
		PrevHash:   row.PrevHash,
	}
	// marshalling a struct of strings cannot fail
	data, _ := json.Marshal(hashable)
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func toEntry(row *models.AuditRecord) Entry {
	e := Entry{
		DocumentID: row.DocumentID,
		Sequence:   row.Sequence,
		Action:     row.Action,
		ActorID:    row.ActorID,
		Timestamp:  row.Timestamp.UTC(),
		PrevHash:   row.PrevHash,
		Hash:       row.Hash,
	}
	if row.Before != "" {
		e.Before = json.RawMessage(row.Before)
	}
	if row.After != "" {
		e.After = json.RawMessage(row.After)
	}
	return e
}
