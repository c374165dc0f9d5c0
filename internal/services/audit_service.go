package services

import (
	"context"
	"encoding/json"

	"github.com/vincentgggg12/docufen-admin-sub001/internal/audit"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
)

// ledgerAccess lets participants read the ledger of a live document. Once
// the document is deleted only site administrators of its tenant can.
func (ds *DocumentService) ledgerAccess(ctx context.Context, op, docID string, actor domain.Principal) error {
	_, err := ds.view(ctx, op, docID, actor)
	if domain.KindOf(err) != domain.KindNotFound {
		return err
	}
	res, qerr := ds.ledger.Query(ctx, docID, audit.Filter{Actions: []string{audit.ActionDeleted}}, audit.Page{Limit: 1})
	if qerr != nil {
		return qerr
	}
	if len(res.Entries) == 0 {
		return err
	}
	var before struct {
		Tenant string `json:"tenant"`
	}
	if err := json.Unmarshal(res.Entries[0].Before, &before); err != nil {
		return domain.Unavailable(op, err)
	}
	if actor.Role == domain.RoleSiteAdmin && before.Tenant == actor.TenantID {
		return nil
	}
	return domain.Errorf(domain.KindForbidden, op, "%s may not read the ledger of %s", actor.UserID, docID)
}

func (ds *DocumentService) AuditTrail(ctx context.Context, docID string, actor domain.Principal, f audit.Filter, p audit.Page) (audit.Result, error) {
	const op = "audit_trail"
	if err := ds.ledgerAccess(ctx, op, docID, actor); err != nil {
		return audit.Result{}, err
	}
	return ds.ledger.Query(ctx, docID, f, p)
}

func (ds *DocumentService) VerifyLedger(ctx context.Context, docID string, actor domain.Principal) (audit.Verification, error) {
	const op = "verify_ledger"
	if err := ds.ledgerAccess(ctx, op, docID, actor); err != nil {
		return audit.Verification{}, err
	}
	return ds.ledger.VerifyChain(ctx, docID)
}
