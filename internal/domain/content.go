package domain

import (
	"strings"
	"time"
)

// SignatureReset identifies a signature cleared by a content edit.
type SignatureReset struct {
	Group  Group  `json:"group"`
	UserID string `json:"user_id"`
}

func (d *Document) checkEditable(op string) error {
	if d.Locked || d.Stage == StageVoided {
		return Errorf(KindPreconditionFailed, op, "document %s is locked", d.ID)
	}
	if d.Stage == StageClosed {
		return Errorf(KindPreconditionFailed, op, "document %s is closed; move it back to edit", d.ID)
	}
	return nil
}

// UpdateContent replaces the content and bumps the revision. Signatures of
// the current and later signing groups no longer cover the content and are
// cleared.
func (d *Document) UpdateContent(content []byte) ([]SignatureReset, error) {
	const op = "update_content"
	if err := d.checkEditable(op); err != nil {
		return nil, err
	}
	d.Content = append([]byte(nil), content...)
	d.Revision++

	var resets []SignatureReset
	for _, g := range SigningGroups {
		st, _ := g.Stage()
		if st.Before(d.Stage) {
			continue
		}
		gs := d.Group(g)
		for i := range gs.Participants {
			if gs.Participants[i].Signed() {
				gs.Participants[i].Signature = nil
				resets = append(resets, SignatureReset{Group: g, UserID: gs.Participants[i].UserID})
			}
		}
	}
	return resets, nil
}

func (d *Document) AddAttachment(a Attachment) error {
	const op = "add_attachment"
	if err := d.checkEditable(op); err != nil {
		return err
	}
	if strings.TrimSpace(a.Name) == "" {
		return Errorf(KindInvalidArgument, op, "attachment name is required")
	}
	if a.Pages < 0 {
		return Errorf(KindInvalidArgument, op, "page count must not be negative")
	}
	d.Attachments = append(d.Attachments, a)
	return nil
}

// ControlledCopy derives a new document from src. Content, attachments,
// memberships, order flags and Pre-Approval signatures carry over verbatim;
// Execution and later signature state is reset and the copy starts in
// Execution. newID mints ids for the copy and its attachments.
func ControlledCopy(src *Document, actor Principal, newID func() string, now time.Time) (*Document, error) {
	const op = "controlled_copy"
	if actor.Role != RoleCreator {
		return nil, Errorf(KindForbidden, op, "only creators may make controlled copies")
	}
	if err := Authorize(op, src, actor, ActionControlledCopy); err != nil {
		return nil, err
	}
	if actor.TenantID != src.TenantID {
		return nil, Errorf(KindForbidden, op, "external users may not copy %s", src.ID)
	}
	if src.Stage == StageVoided {
		return nil, Errorf(KindPreconditionFailed, op, "document %s is voided", src.ID)
	}
	if !StagePreApproval.Before(src.Stage) {
		return nil, Errorf(KindPreconditionFailed, op, "document %s has not completed pre-approval", src.ID)
	}

	c := src.Clone()
	c.ID = newID()
	c.Stage = StageExecution
	c.Locked = false
	c.Void = nil
	c.PreFinalStage = ""
	c.ReopenCount = 0
	c.ReopenPending = false
	c.Version = 0
	c.SourceDocumentID = src.ID
	c.CreatedBy = actor.UserID
	c.CreatedAt = now
	c.UpdatedAt = now
	for _, g := range []Group{GroupExecution, GroupPostApproval} {
		gs := c.Group(g)
		for i := range gs.Participants {
			gs.Participants[i].Signature = nil
			gs.Participants[i].VerificationRevoked = false
		}
	}
	for i := range c.Attachments {
		c.Attachments[i].ID = newID()
	}
	if !c.IsOwner(actor.UserID) {
		viewers := c.Group(GroupViewers)
		if _, idx := viewers.Member(actor.UserID); idx >= 0 {
			viewers.Participants = append(viewers.Participants[:idx], viewers.Participants[idx+1:]...)
			for i := range viewers.Participants {
				viewers.Participants[i].Position = i + 1
			}
		}
		if err := c.AddParticipant(GroupOwners, actor, now); err != nil {
			return nil, err
		}
	}
	return c, nil
}
