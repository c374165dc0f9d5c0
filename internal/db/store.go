package db

import (
	"context"
	"errors"
	"time"

	"github.com/vincentgggg12/docufen-admin-sub001/internal/db/models"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Classify maps a gorm error onto the engine's error kinds.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.Error{Kind: domain.KindNotFound, Op: op, Msg: "record not found"}
	}
	return domain.Unavailable(op, err)
}

// DocumentStore persists the document aggregate. Every method runs on the
// transaction handed in by the caller.
type DocumentStore struct{}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{}
}

func (s *DocumentStore) Load(ctx context.Context, tx *gorm.DB, id string) (*domain.Document, error) {
	var row models.Document
	err := tx.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("group_name, position") }).
		Preload("GroupSettings").
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("added_at, id") }).
		First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.Errorf(domain.KindNotFound, "load_document", "document %s not found", id)
		}
		return nil, Classify("load_document", err)
	}
	return fromRow(&row), nil
}

func (s *DocumentStore) Create(ctx context.Context, tx *gorm.DB, d *domain.Document) error {
	row := toRow(d)
	if err := tx.WithContext(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		return Classify("create_document", err)
	}
	return s.writeChildren(ctx, tx, d)
}

// Save writes d back if nobody saved it since it was loaded. A stale
// version yields Conflict. On success d.Version is advanced.
func (s *DocumentStore) Save(ctx context.Context, tx *gorm.DB, d *domain.Document) error {
	const op = "save_document"
	res := tx.WithContext(ctx).Model(&models.Document{}).
		Where("id = ? AND version = ?", d.ID, d.Version).
		Updates(map[string]any{
			"title":           d.Title,
			"stage":           string(d.Stage),
			"content":         d.Content,
			"revision":        d.Revision,
			"locked":          d.Locked,
			"void_reason":     voidReason(d),
			"voided_by":       voidActor(d),
			"voided_at":       voidAt(d),
			"pre_final_stage": string(d.PreFinalStage),
			"reopen_count":    d.ReopenCount,
			"reopen_pending":  d.ReopenPending,
			"version":         d.Version + 1,
			"updated_at":      d.UpdatedAt,
		})
	if res.Error != nil {
		return Classify(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Errorf(domain.KindConflict, op, "document %s was modified concurrently", d.ID)
	}
	d.Version++

	if err := tx.WithContext(ctx).Where("document_id = ?", d.ID).Delete(&models.Participant{}).Error; err != nil {
		return Classify(op, err)
	}
	if err := tx.WithContext(ctx).Where("document_id = ?", d.ID).Delete(&models.GroupSetting{}).Error; err != nil {
		return Classify(op, err)
	}
	return s.writeChildren(ctx, tx, d)
}

// Delete removes the document rows. The audit ledger is left untouched.
func (s *DocumentStore) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	const op = "delete_document"
	for _, m := range []any{&models.Participant{}, &models.GroupSetting{}, &models.Attachment{}} {
		if err := tx.WithContext(ctx).Where("document_id = ?", id).Delete(m).Error; err != nil {
			return Classify(op, err)
		}
	}
	if err := tx.WithContext(ctx).Delete(&models.Document{}, "id = ?", id).Error; err != nil {
		return Classify(op, err)
	}
	return nil
}

func (s *DocumentStore) writeChildren(ctx context.Context, tx *gorm.DB, d *domain.Document) error {
	const op = "save_document"
	var participants []models.Participant
	var settings []models.GroupSetting
	for _, g := range []domain.Group{domain.GroupOwners, domain.GroupPreApproval, domain.GroupExecution, domain.GroupPostApproval, domain.GroupViewers} {
		gs := d.Group(g)
		if g.Signing() {
			settings = append(settings, models.GroupSetting{DocumentID: d.ID, GroupName: string(g), OrderEnforced: gs.OrderEnforced})
		}
		for _, p := range gs.Participants {
			participants = append(participants, participantRow(d.ID, g, p))
		}
	}
	if len(participants) > 0 {
		if err := tx.WithContext(ctx).Create(&participants).Error; err != nil {
			return Classify(op, err)
		}
	}
	if len(settings) > 0 {
		if err := tx.WithContext(ctx).Create(&settings).Error; err != nil {
			return Classify(op, err)
		}
	}
	// attachments are append-only
	if len(d.Attachments) > 0 {
		rows := make([]models.Attachment, 0, len(d.Attachments))
		for _, a := range d.Attachments {
			rows = append(rows, models.Attachment{
				ID:         a.ID,
				DocumentID: d.ID,
				Name:       a.Name,
				MediaType:  a.MediaType,
				SHA256:     a.SHA256,
				Size:       a.Size,
				Pages:      a.Pages,
				Data:       a.Data,
				AddedBy:    a.AddedBy,
				AddedAt:    a.AddedAt,
			})
		}
		if err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return Classify(op, err)
		}
	}
	return nil
}

func participantRow(docID string, g domain.Group, p domain.Participant) models.Participant {
	row := models.Participant{
		DocumentID:          docID,
		GroupName:           string(g),
		UserID:              p.UserID,
		DisplayName:         p.DisplayName,
		Position:            p.Position,
		External:            p.External,
		CompanyName:         p.CompanyName,
		VerificationRevoked: p.VerificationRevoked,
		AddedAt:             p.AddedAt,
	}
	if p.Signature != nil {
		at := p.Signature.SignedAt
		row.SignedAt = &at
		row.Method = string(p.Signature.Method)
		row.Notation = p.Signature.Notation
		row.SignedRevision = p.Signature.Revision
	}
	return row
}

func toRow(d *domain.Document) models.Document {
	return models.Document{
		ID:               d.ID,
		TenantID:         d.TenantID,
		Title:            d.Title,
		Stage:            string(d.Stage),
		Content:          d.Content,
		Revision:         d.Revision,
		Locked:           d.Locked,
		VoidReason:       voidReason(d),
		VoidedBy:         voidActor(d),
		VoidedAt:         voidAt(d),
		PreFinalStage:    string(d.PreFinalStage),
		ReopenCount:      d.ReopenCount,
		ReopenPending:    d.ReopenPending,
		Version:          d.Version,
		SourceDocumentID: d.SourceDocumentID,
		CreatedBy:        d.CreatedBy,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func fromRow(row *models.Document) *domain.Document {
	d := domain.NewDocument(row.ID, row.TenantID, row.Title)
	d.Stage = domain.Stage(row.Stage)
	d.Content = row.Content
	d.Revision = row.Revision
	d.Locked = row.Locked
	d.PreFinalStage = domain.Stage(row.PreFinalStage)
	d.ReopenCount = row.ReopenCount
	d.ReopenPending = row.ReopenPending
	d.Version = row.Version
	d.SourceDocumentID = row.SourceDocumentID
	d.CreatedBy = row.CreatedBy
	d.CreatedAt = row.CreatedAt
	d.UpdatedAt = row.UpdatedAt
	if row.VoidedAt != nil {
		d.Void = &domain.VoidRecord{Reason: row.VoidReason, Actor: row.VoidedBy, At: *row.VoidedAt}
	}

	for _, s := range row.GroupSettings {
		d.Group(domain.Group(s.GroupName)).OrderEnforced = s.OrderEnforced
	}
	for _, p := range row.Participants {
		gs := d.Group(domain.Group(p.GroupName))
		part := domain.Participant{
			UserID:              p.UserID,
			DisplayName:         p.DisplayName,
			Position:            p.Position,
			External:            p.External,
			CompanyName:         p.CompanyName,
			VerificationRevoked: p.VerificationRevoked,
			AddedAt:             p.AddedAt,
		}
		if p.SignedAt != nil {
			part.Signature = &domain.Signature{
				SignedAt: *p.SignedAt,
				Method:   domain.VerificationMethod(p.Method),
				Notation: p.Notation,
				Revision: p.SignedRevision,
			}
		}
		gs.Participants = append(gs.Participants, part)
	}
	for _, a := range row.Attachments {
		d.Attachments = append(d.Attachments, domain.Attachment{
			ID:        a.ID,
			Name:      a.Name,
			MediaType: a.MediaType,
			SHA256:    a.SHA256,
			Size:      a.Size,
			Pages:     a.Pages,
			Data:      a.Data,
			AddedBy:   a.AddedBy,
			AddedAt:   a.AddedAt,
		})
	}
	return d
}

func voidReason(d *domain.Document) string {
	if d.Void == nil {
		return ""
	}
	return d.Void.Reason
}

func voidActor(d *domain.Document) string {
	if d.Void == nil {
		return ""
	}
	return d.Void.Actor
}

func voidAt(d *domain.Document) *time.Time {
	if d.Void == nil {
		return nil
	}
	at := d.Void.At
	return &at
}
