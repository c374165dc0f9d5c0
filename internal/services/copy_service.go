package services

import (
	"context"

	"github.com/vincentgggg12/docufen-admin-sub001/internal/audit"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateControlledCopy derives a new document from sourceID. The source is
// not modified; both ledgers record the link.
func (ds *DocumentService) CreateControlledCopy(ctx context.Context, sourceID string, actor domain.Principal) (*domain.Document, error) {
	const op = "controlled_copy"
	var cp *domain.Document
	_, _, err := ds.mutate(ctx, op, sourceID, actor, func(tx *gorm.DB, src *domain.Document) (*change, error) {
		var err error
		cp, err = domain.ControlledCopy(src, actor, ds.newID, ds.now())
		if err != nil {
			return nil, err
		}
		if err := ds.store.Create(ctx, tx, cp); err != nil {
			return nil, err
		}
		return &change{
			skipSave: true,
			records: []audit.Record{
				{
					Action: audit.ActionCopyCreated,
					After:  map[string]any{"copy_id": cp.ID, "source_stage": src.Stage, "revision": src.Revision},
				},
				{
					DocumentID: cp.ID,
					Action:     audit.ActionCopiedFrom,
					After: map[string]any{
						"source_id": src.ID,
						"stage":     cp.Stage,
						"revision":  cp.Revision,
						"owners":    cp.MembershipSnapshot(domain.GroupOwners),
					},
				},
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	ds.logger.Info("Controlled copy created",
		zap.String("doc_id", cp.ID),
		zap.String("source_id", sourceID),
		zap.String("actor", actor.UserID),
	)
	return cp, nil
}
