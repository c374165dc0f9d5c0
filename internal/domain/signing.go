package domain

import (
	"strings"
	"time"
)

// eligible is the single signer predicate. With order enforced a participant
// is gated on every lower position having signed; without it any unsigned
// participant qualifies.
func (g *GroupState) eligible(i int) bool {
	p := g.Participants[i]
	if p.Signed() || p.VerificationRevoked {
		return false
	}
	if !g.OrderEnforced {
		return true
	}
	for _, prev := range g.Participants[:i] {
		if !prev.Signed() {
			return false
		}
	}
	return true
}

// EligibleSigners lists who may sign right now, lowest position first.
func (g *GroupState) EligibleSigners() []Participant {
	g.sortByPosition()
	var out []Participant
	for i := range g.Participants {
		if g.eligible(i) {
			out = append(out, g.Participants[i])
		}
	}
	return out
}

// NextSigner is the lowest-position eligible participant of an enforced
// group. A revoked participant at the head of the order blocks the group,
// so nobody is reported until they are re-verified. Parallel groups have no
// designated next signer.
func (g *GroupState) NextSigner() (Participant, bool) {
	if !g.OrderEnforced {
		return Participant{}, false
	}
	g.sortByPosition()
	for i, p := range g.Participants {
		if p.Signed() {
			continue
		}
		if !g.eligible(i) {
			return Participant{}, false
		}
		return p, true
	}
	return Participant{}, false
}

// Sign records a signature for userID in group g.
func (d *Document) Sign(g Group, userID string, method VerificationMethod, notation string, now time.Time) error {
	const op = "sign"
	if !g.Signing() {
		return Errorf(KindInvalidArgument, op, "%s is not a signing group", g)
	}
	if d.Locked {
		return Errorf(KindPreconditionFailed, op, "document %s is locked", d.ID)
	}
	if active, ok := d.Stage.Group(); !ok || active != g {
		return Errorf(KindPreconditionFailed, op, "group %s is not open for signing in stage %s", g, d.Stage)
	}
	if !method.Valid() {
		return Errorf(KindInvalidArgument, op, "unknown verification method %q", method)
	}
	notation = strings.TrimSpace(notation)
	if method == VerifyRegisterNotation && notation == "" {
		return Errorf(KindInvalidArgument, op, "register notation is required")
	}

	gs := d.Group(g)
	gs.sortByPosition()
	p, idx := gs.Member(userID)
	if p == nil {
		return Errorf(KindForbidden, op, "%s is not a participant of %s", userID, g)
	}
	if p.Signed() {
		return Errorf(KindConflict, op, "%s has already signed %s", userID, g)
	}
	if p.VerificationRevoked {
		return Errorf(KindForbidden, op, "verification for %s was revoked; re-verification required", userID)
	}
	if !gs.eligible(idx) {
		head := p.Position
		for _, prev := range gs.Participants[:idx] {
			if !prev.Signed() {
				head = prev.Position
				break
			}
		}
		return Errorf(KindOutOfOrder, op, "position %d may not sign before position %d", p.Position, head)
	}
	p.Signature = &Signature{
		SignedAt: now,
		Method:   method,
		Notation: notation,
		Revision: d.Revision,
	}
	return nil
}

// RevokeVerification clears a captured signature and blocks the participant
// until Reverify.
func (d *Document) RevokeVerification(g Group, userID string) (Signature, error) {
	const op = "revoke_verification"
	if !g.Signing() {
		return Signature{}, Errorf(KindInvalidArgument, op, "%s is not a signing group", g)
	}
	if d.Locked {
		return Signature{}, Errorf(KindPreconditionFailed, op, "document %s is locked", d.ID)
	}
	p, _ := d.Group(g).Member(userID)
	if p == nil {
		return Signature{}, Errorf(KindNotFound, op, "%s is not a participant of %s", userID, g)
	}
	if !p.Signed() {
		return Signature{}, Errorf(KindPreconditionFailed, op, "%s has not signed %s", userID, g)
	}
	prev := *p.Signature
	p.Signature = nil
	p.VerificationRevoked = true
	return prev, nil
}

func (d *Document) Reverify(g Group, userID string) error {
	const op = "reverify"
	if !g.Signing() {
		return Errorf(KindInvalidArgument, op, "%s is not a signing group", g)
	}
	if d.Locked {
		return Errorf(KindPreconditionFailed, op, "document %s is locked", d.ID)
	}
	p, _ := d.Group(g).Member(userID)
	if p == nil {
		return Errorf(KindNotFound, op, "%s is not a participant of %s", userID, g)
	}
	if !p.VerificationRevoked {
		return Errorf(KindPreconditionFailed, op, "verification for %s is not revoked", userID)
	}
	p.VerificationRevoked = false
	return nil
}

// SetOrderEnforced toggles one group's flag; positions and other groups are
// untouched.
func (d *Document) SetOrderEnforced(g Group, enabled bool) error {
	const op = "set_order_enforced"
	if !g.Signing() {
		return Errorf(KindInvalidArgument, op, "%s is not a signing group", g)
	}
	if d.Locked {
		return Errorf(KindPreconditionFailed, op, "document %s is locked", d.ID)
	}
	d.Group(g).OrderEnforced = enabled
	return nil
}
