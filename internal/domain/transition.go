package domain

import (
	"strings"
	"time"
)

type Transition struct {
	From      Stage     `json:"from"`
	To        Stage     `json:"to"`
	Direction Direction `json:"direction"`
	Reason    string    `json:"reason,omitempty"`
}

// Finalizing reports whether the transition locks the document.
func (t Transition) Finalizing() bool { return t.To == StageFinalPDF }

// Transition moves the stage cursor. Backward moves never touch signatures,
// content or attachments.
func (d *Document) Transition(target Stage, dir Direction, reason string) (Transition, error) {
	const op = "transition"
	t := Transition{From: d.Stage, To: target, Direction: dir}
	if d.Stage == StageVoided {
		return t, Errorf(KindPreconditionFailed, op, "document %s is voided", d.ID)
	}
	if d.Locked {
		return t, Errorf(KindPreconditionFailed, op, "document %s is locked; reopen it first", d.ID)
	}
	if target.Rank() == 0 {
		return t, Errorf(KindInvalidArgument, op, "invalid target stage %q", target)
	}

	switch dir {
	case Forward:
		next, ok := d.Stage.Next()
		if !ok || target != next {
			return t, Errorf(KindInvalidArgument, op, "forward target must be the successor of %s", d.Stage)
		}
		if g, ok := d.Stage.Group(); ok && !d.Group(g).Complete() {
			return t, Errorf(KindPreconditionFailed, op, "group %s has unsigned participants", g)
		}
		if target == StageClosed && !d.Group(GroupPostApproval).Complete() {
			return t, Errorf(KindPreconditionFailed, op, "group %s has unsigned participants", GroupPostApproval)
		}
		if target == StageFinalPDF {
			d.PreFinalStage = d.Stage
			d.Locked = true
		}
	case Backward:
		if !target.Before(d.Stage) {
			return t, Errorf(KindInvalidArgument, op, "backward target must precede %s", d.Stage)
		}
		t.Reason = strings.TrimSpace(reason)
		if t.Reason == "" {
			return t, Errorf(KindInvalidArgument, op, "a reason is required to move a document back")
		}
	default:
		return t, Errorf(KindInvalidArgument, op, "invalid direction %q", dir)
	}
	d.Stage = target
	d.ReopenPending = false
	return t, nil
}

// Reopen unlocks a finalized document. Repeating the call before the
// document moves again is a no-op and reports changed=false.
func (d *Document) Reopen(confirm bool) (changed bool, err error) {
	const op = "reopen"
	if d.Stage == StageVoided {
		return false, Errorf(KindPreconditionFailed, op, "voided documents cannot be reopened")
	}
	if !confirm {
		return false, Errorf(KindInvalidArgument, op, "owner confirmation is required")
	}
	if !d.Locked {
		if d.ReopenPending && d.Stage == d.PreFinalStage {
			return false, nil
		}
		return false, Errorf(KindPreconditionFailed, op, "document %s is not finalized", d.ID)
	}
	if d.Stage != StageFinalPDF {
		return false, Errorf(KindPreconditionFailed, op, "document %s is not finalized", d.ID)
	}
	if d.PreFinalStage == "" {
		d.PreFinalStage = StageClosed
	}
	d.Locked = false
	d.Stage = d.PreFinalStage
	d.ReopenCount++
	d.ReopenPending = true
	return true, nil
}

// MarkVoid retires a document that has content. Callers use Delete
// instead when it does not.
func (d *Document) MarkVoid(reason, actor string, now time.Time) error {
	const op = "void"
	if d.Stage == StageVoided {
		return Errorf(KindPreconditionFailed, op, "document %s is already voided", d.ID)
	}
	if d.Locked {
		return Errorf(KindPreconditionFailed, op, "document %s is finalized; reopen it first", d.ID)
	}
	if !d.HasAnyContent() {
		return Errorf(KindPreconditionFailed, op, "document %s has no content; delete it instead", d.ID)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Errorf(KindInvalidArgument, op, "a reason is required to void a document")
	}
	d.Void = &VoidRecord{Reason: reason, Actor: actor, At: now}
	d.Stage = StageVoided
	d.Locked = true
	return nil
}

// CheckDelete reports whether hard deletion is the eligible action.
func (d *Document) CheckDelete() error {
	const op = "delete"
	if d.Stage == StageVoided || d.Locked {
		return Errorf(KindPreconditionFailed, op, "document %s is locked", d.ID)
	}
	if d.HasAnyContent() {
		return Errorf(KindPreconditionFailed, op, "document %s has content; void it instead", d.ID)
	}
	return nil
}
