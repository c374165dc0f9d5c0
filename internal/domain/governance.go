package domain

import "time"

// frozen reports whether a signing group belongs to a stage the document
// has already moved past.
func (d *Document) frozen(g Group) bool {
	st, ok := g.Stage()
	return ok && st.Before(d.Stage)
}

// AddParticipant appends candidate to group g at the next position.
func (d *Document) AddParticipant(g Group, candidate Principal, now time.Time) error {
	const op = "add_participant"
	if !g.Valid() {
		return Errorf(KindInvalidArgument, op, "unknown group %q", g)
	}
	if d.Locked {
		return Errorf(KindPreconditionFailed, op, "document %s is locked", d.ID)
	}
	if candidate.UserID == "" {
		return Errorf(KindInvalidArgument, op, "candidate is required")
	}
	gs := d.Group(g)
	if p, _ := gs.Member(candidate.UserID); p != nil {
		return Errorf(KindInvalidArgument, op, "%s is already in %s", candidate.UserID, g)
	}
	external := candidate.TenantID != d.TenantID

	switch g {
	case GroupOwners:
		if !candidate.Role.OwnerEligible() {
			return Errorf(KindRoleNotEligible, op, "role %s cannot own documents", candidate.Role)
		}
		if external {
			return Errorf(KindRoleNotEligible, op, "external users cannot own documents")
		}
		if p, _ := d.Group(GroupViewers).Member(candidate.UserID); p != nil {
			return Errorf(KindInvalidArgument, op, "%s is a viewer; remove the viewer membership first", candidate.UserID)
		}
	case GroupViewers:
		if d.IsOwner(candidate.UserID) {
			return Errorf(KindInvalidArgument, op, "%s is an owner", candidate.UserID)
		}
	default:
		if d.frozen(g) {
			return Errorf(KindPreconditionFailed, op, "group %s is closed in stage %s", g, d.Stage)
		}
	}

	p := Participant{
		UserID:      candidate.UserID,
		DisplayName: candidate.DisplayName,
		Position:    len(gs.Participants) + 1,
		External:    external,
		AddedAt:     now,
	}
	if external {
		p.CompanyName = candidate.CompanyName
	}
	gs.sortByPosition()
	gs.Participants = append(gs.Participants, p)
	return nil
}

// RemoveParticipant drops userID from g and re-indexes the remaining
// members to contiguous positions. actorID is the owner performing it.
func (d *Document) RemoveParticipant(g Group, userID, actorID string) error {
	const op = "remove_participant"
	if !g.Valid() {
		return Errorf(KindInvalidArgument, op, "unknown group %q", g)
	}
	if d.Locked {
		return Errorf(KindPreconditionFailed, op, "document %s is locked", d.ID)
	}
	gs := d.Group(g)
	gs.sortByPosition()
	p, idx := gs.Member(userID)
	if p == nil {
		return Errorf(KindNotFound, op, "%s is not in %s", userID, g)
	}
	switch {
	case g == GroupOwners:
		if len(gs.Participants) == 1 {
			if userID == actorID {
				return Errorf(KindLastOwnerProtected, op, "add another owner before removing yourself")
			}
			return Errorf(KindLastOwnerProtected, op, "a document must keep at least one owner")
		}
	case g.Signing():
		if d.frozen(g) {
			return Errorf(KindPreconditionFailed, op, "group %s is closed in stage %s", g, d.Stage)
		}
		if p.Signed() {
			return Errorf(KindPreconditionFailed, op, "%s has already signed", userID)
		}
	}
	gs.Participants = append(gs.Participants[:idx], gs.Participants[idx+1:]...)
	for i := range gs.Participants {
		gs.Participants[i].Position = i + 1
	}
	return nil
}
