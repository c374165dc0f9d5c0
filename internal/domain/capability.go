package domain

type Action string

const (
	ActionView               Action = "VIEW"
	ActionEditContent        Action = "EDIT_CONTENT"
	ActionTransition         Action = "TRANSITION"
	ActionDelete             Action = "DELETE"
	ActionVoid               Action = "VOID"
	ActionReopen             Action = "REOPEN"
	ActionManageParticipants Action = "MANAGE_PARTICIPANTS"
	ActionSetSigningOrder    Action = "SET_SIGNING_ORDER"
	ActionRevokeVerification Action = "REVOKE_VERIFICATION"
	ActionSign               Action = "SIGN"
	ActionControlledCopy     Action = "CONTROLLED_COPY"
)

var allActions = []Action{
	ActionView,
	ActionEditContent,
	ActionTransition,
	ActionDelete,
	ActionVoid,
	ActionReopen,
	ActionManageParticipants,
	ActionSetSigningOrder,
	ActionRevokeVerification,
	ActionSign,
	ActionControlledCopy,
}

// ownerActions are offered to the owner set and nobody else.
var ownerActions = map[Action]bool{
	ActionTransition:         true,
	ActionDelete:             true,
	ActionVoid:               true,
	ActionReopen:             true,
	ActionManageParticipants: true,
	ActionSetSigningOrder:    true,
	ActionRevokeVerification: true,
}

// Capabilities is what the presentation layer renders. It is derived, never
// inferred client side.
type Capabilities struct {
	Actions    []Action `json:"actions"`
	SignGroups []Group  `json:"sign_groups,omitempty"`
	Disposal   Disposal `json:"disposal,omitempty"`
	Owner      bool     `json:"owner"`
}

func (c Capabilities) Allows(a Action) bool {
	for _, x := range c.Actions {
		if x == a {
			return true
		}
	}
	return false
}

// Authorized answers the authority half of capability resolution: does the
// (role, ownership, membership) of p permit action on d at all.
func Authorized(d *Document, p Principal, a Action) bool {
	if ownerActions[a] {
		return d.IsOwner(p.UserID)
	}
	switch a {
	case ActionView:
		return len(d.Memberships(p.UserID)) > 0
	case ActionEditContent:
		if d.IsOwner(p.UserID) {
			return true
		}
		g, ok := d.Stage.Group()
		if !ok {
			return false
		}
		m, _ := d.Group(g).Member(p.UserID)
		return m != nil
	case ActionSign:
		for _, g := range SigningGroups {
			if m, _ := d.Group(g).Member(p.UserID); m != nil {
				return true
			}
		}
		return false
	case ActionControlledCopy:
		return p.Role == RoleCreator && len(d.Memberships(p.UserID)) > 0
	}
	return false
}

// stateAllows answers the lifecycle half: is action legal in d's current
// state regardless of who asks.
func stateAllows(d *Document, a Action) bool {
	switch a {
	case ActionView:
		return true
	case ActionReopen:
		return d.Locked && d.Stage == StageFinalPDF
	case ActionControlledCopy:
		return d.Stage != StageVoided && StagePreApproval.Before(d.Stage)
	case ActionSign:
		_, ok := d.Stage.Group()
		return ok && !d.Locked
	}
	return !d.Locked && d.Stage != StageVoided
}

// Authorize returns Forbidden when p lacks authority for action.
func Authorize(op string, d *Document, p Principal, a Action) error {
	if Authorized(d, p, a) {
		return nil
	}
	return Errorf(KindForbidden, op, "%s may not %s document %s", p.UserID, a, d.ID)
}

// Resolve maps (role, ownership, state) to the actions offered to p.
func Resolve(d *Document, p Principal) Capabilities {
	caps := Capabilities{Owner: d.IsOwner(p.UserID)}
	disposal := DisposalFor(d)
	for _, a := range allActions {
		if !Authorized(d, p, a) || !stateAllows(d, a) {
			continue
		}
		if (a == ActionDelete && disposal != DisposalDelete) || (a == ActionVoid && disposal != DisposalVoid) {
			continue
		}
		caps.Actions = append(caps.Actions, a)
	}
	if caps.Allows(ActionDelete) || caps.Allows(ActionVoid) {
		caps.Disposal = disposal
	}
	if caps.Allows(ActionSign) {
		if g, ok := d.Stage.Group(); ok {
			if m, _ := d.Group(g).Member(p.UserID); m != nil && !m.Signed() && !m.VerificationRevoked {
				caps.SignGroups = append(caps.SignGroups, g)
			}
		}
		if len(caps.SignGroups) == 0 {
			caps.Actions = removeAction(caps.Actions, ActionSign)
		}
	}
	return caps
}

func removeAction(actions []Action, a Action) []Action {
	out := actions[:0]
	for _, x := range actions {
		if x != a {
			out = append(out, x)
		}
	}
	return out
}
