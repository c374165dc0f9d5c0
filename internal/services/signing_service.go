package services

import (
	"context"
	"strings"

	"github.com/vincentgggg12/docufen-admin-sub001/internal/audit"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"gorm.io/gorm"
)

type SignRequest struct {
	Method   domain.VerificationMethod
	Notation string
}

// Sign captures actor's signature in group g.
func (ds *DocumentService) Sign(ctx context.Context, docID string, g domain.Group, actor domain.Principal, req SignRequest) (*domain.Document, error) {
	const op = "sign"
	d, _, err := ds.mutate(ctx, op, docID, actor, func(tx *gorm.DB, d *domain.Document) (*change, error) {
		if err := d.Sign(g, actor.UserID, req.Method, req.Notation, ds.now()); err != nil {
			return nil, err
		}
		p, _ := d.Group(g).Member(actor.UserID)
		return &change{records: []audit.Record{{
			Action: audit.ActionSigned,
			Before: map[string]any{"group": g, "user_id": actor.UserID, "signed": false},
			After: map[string]any{
				"group":     g,
				"user_id":   actor.UserID,
				"position":  p.Position,
				"method":    p.Signature.Method,
				"notation":  p.Signature.Notation,
				"revision":  p.Signature.Revision,
				"signed_at": p.Signature.SignedAt,
			},
		}}}, nil
	})
	return d, err
}

func signingGroup(op string, g domain.Group) error {
	if !g.Signing() {
		return domain.Errorf(domain.KindInvalidArgument, op, "%s is not a signing group", g)
	}
	return nil
}

// NextSigner returns the participant whose turn it is in an enforced group.
// ok is false for parallel groups and completed groups.
func (ds *DocumentService) NextSigner(ctx context.Context, docID string, g domain.Group, actor domain.Principal) (domain.Participant, bool, error) {
	const op = "next_signer"
	if err := signingGroup(op, g); err != nil {
		return domain.Participant{}, false, err
	}
	d, err := ds.view(ctx, op, docID, actor)
	if err != nil {
		return domain.Participant{}, false, err
	}
	p, ok := d.Group(g).NextSigner()
	return p, ok, nil
}

func (ds *DocumentService) EligibleSigners(ctx context.Context, docID string, g domain.Group, actor domain.Principal) ([]domain.Participant, error) {
	const op = "eligible_signers"
	if err := signingGroup(op, g); err != nil {
		return nil, err
	}
	d, err := ds.view(ctx, op, docID, actor)
	if err != nil {
		return nil, err
	}
	return d.Group(g).EligibleSigners(), nil
}

// RevokeVerification clears participantID's signature and blocks them
// from signing again until Reverify.
func (ds *DocumentService) RevokeVerification(ctx context.Context, docID string, g domain.Group, participantID string, actor domain.Principal, reason string) (*domain.Document, error) {
	const op = "revoke_verification"
	d, _, err := ds.mutate(ctx, op, docID, actor, func(tx *gorm.DB, d *domain.Document) (*change, error) {
		if err := domain.Authorize(op, d, actor, domain.ActionRevokeVerification); err != nil {
			return nil, err
		}
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return nil, domain.Errorf(domain.KindInvalidArgument, op, "a reason is required to revoke verification")
		}
		prev, err := d.RevokeVerification(g, participantID)
		if err != nil {
			return nil, err
		}
		return &change{records: []audit.Record{{
			Action: audit.ActionVerificationRevoked,
			Before: map[string]any{"group": g, "user_id": participantID, "signature": prev},
			After:  map[string]any{"group": g, "user_id": participantID, "verification_revoked": true, "reason": reason},
		}}}, nil
	})
	return d, err
}

func (ds *DocumentService) Reverify(ctx context.Context, docID string, g domain.Group, participantID string, actor domain.Principal) (*domain.Document, error) {
	const op = "reverify"
	d, _, err := ds.mutate(ctx, op, docID, actor, func(tx *gorm.DB, d *domain.Document) (*change, error) {
		if err := domain.Authorize(op, d, actor, domain.ActionRevokeVerification); err != nil {
			return nil, err
		}
		if err := d.Reverify(g, participantID); err != nil {
			return nil, err
		}
		return &change{records: []audit.Record{{
			Action: audit.ActionReverified,
			Before: map[string]any{"group": g, "user_id": participantID, "verification_revoked": true},
			After:  map[string]any{"group": g, "user_id": participantID, "verification_revoked": false},
		}}}, nil
	})
	return d, err
}
