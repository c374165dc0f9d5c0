package domain

import (
	"sort"
	"time"
)

type Signature struct {
	SignedAt time.Time          `json:"signed_at"`
	Method   VerificationMethod `json:"method"`
	Notation string             `json:"notation,omitempty"`
	Revision int                `json:"revision"`
}

type Participant struct {
	UserID              string     `json:"user_id"`
	DisplayName         string     `json:"display_name,omitempty"`
	Position            int        `json:"position"`
	External            bool       `json:"external"`
	CompanyName         string     `json:"company_name,omitempty"`
	Signature           *Signature `json:"signature,omitempty"`
	VerificationRevoked bool       `json:"verification_revoked"`
	AddedAt             time.Time  `json:"added_at"`
}

func (p Participant) Signed() bool { return p.Signature != nil }

type GroupState struct {
	Name          Group         `json:"name"`
	OrderEnforced bool          `json:"order_enforced"`
	Participants  []Participant `json:"participants"`
}

// Member returns the participant with userID and its slice index, or -1.
func (g *GroupState) Member(userID string) (*Participant, int) {
	for i := range g.Participants {
		if g.Participants[i].UserID == userID {
			return &g.Participants[i], i
		}
	}
	return nil, -1
}

// Complete reports whether every participant has signed. Empty groups are
// vacuously complete.
func (g *GroupState) Complete() bool {
	for _, p := range g.Participants {
		if !p.Signed() {
			return false
		}
	}
	return true
}

func (g *GroupState) sortByPosition() {
	sort.SliceStable(g.Participants, func(i, j int) bool {
		return g.Participants[i].Position < g.Participants[j].Position
	})
}

type Attachment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MediaType string    `json:"media_type"`
	SHA256    string    `json:"sha256"`
	Size      int64     `json:"size"`
	Pages     int       `json:"pages"`
	Data      []byte    `json:"-"`
	AddedBy   string    `json:"added_by"`
	AddedAt   time.Time `json:"added_at"`
}

type VoidRecord struct {
	Reason string    `json:"reason"`
	Actor  string    `json:"actor"`
	At     time.Time `json:"at"`
}

// Document is the aggregate every lifecycle operation loads, mutates and
// saves as one unit.
type Document struct {
	ID               string                `json:"id"`
	TenantID         string                `json:"tenant_id"`
	Title            string                `json:"title"`
	Stage            Stage                 `json:"stage"`
	Content          []byte                `json:"-"`
	Revision         int                   `json:"revision"`
	Locked           bool                  `json:"locked"`
	Void             *VoidRecord           `json:"void,omitempty"`
	PreFinalStage    Stage                 `json:"pre_final_stage,omitempty"`
	ReopenCount      int                   `json:"reopen_count"`
	ReopenPending    bool                  `json:"reopen_pending"`
	Version          int                   `json:"version"`
	SourceDocumentID string                `json:"source_document_id,omitempty"`
	Groups           map[Group]*GroupState `json:"groups"`
	Attachments      []Attachment          `json:"attachments"`
	CreatedBy        string                `json:"created_by"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func NewDocument(id, tenantID, title string) *Document {
	d := &Document{
		ID:       id,
		TenantID: tenantID,
		Title:    title,
		Stage:    StagePreApproval,
		Groups:   make(map[Group]*GroupState),
	}
	for _, g := range []Group{GroupOwners, GroupPreApproval, GroupExecution, GroupPostApproval, GroupViewers} {
		d.Groups[g] = &GroupState{Name: g}
	}
	return d
}

// Group returns the state for g, creating an empty one when missing.
func (d *Document) Group(g Group) *GroupState {
	if d.Groups == nil {
		d.Groups = make(map[Group]*GroupState)
	}
	gs, ok := d.Groups[g]
	if !ok {
		gs = &GroupState{Name: g}
		d.Groups[g] = gs
	}
	return gs
}

func (d *Document) IsOwner(userID string) bool {
	p, _ := d.Group(GroupOwners).Member(userID)
	return p != nil
}

// Memberships lists every group userID belongs to.
func (d *Document) Memberships(userID string) []Group {
	var out []Group
	for _, g := range []Group{GroupOwners, GroupPreApproval, GroupExecution, GroupPostApproval, GroupViewers} {
		if p, _ := d.Group(g).Member(userID); p != nil {
			out = append(out, g)
		}
	}
	return out
}

// HasAnyContent drives the Delete-vs-Void decision.
func (d *Document) HasAnyContent() bool {
	return len(d.Content) > 0 || len(d.Attachments) > 0
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := *d
	c.Content = append([]byte(nil), d.Content...)
	if d.Void != nil {
		v := *d.Void
		c.Void = &v
	}
	c.Groups = make(map[Group]*GroupState, len(d.Groups))
	for name, gs := range d.Groups {
		cp := &GroupState{Name: gs.Name, OrderEnforced: gs.OrderEnforced}
		cp.Participants = make([]Participant, len(gs.Participants))
		for i, p := range gs.Participants {
			if p.Signature != nil {
				s := *p.Signature
				p.Signature = &s
			}
			cp.Participants[i] = p
		}
		c.Groups[name] = cp
	}
	c.Attachments = make([]Attachment, len(d.Attachments))
	for i, a := range d.Attachments {
		a.Data = append([]byte(nil), a.Data...)
		c.Attachments[i] = a
	}
	return &c
}

type MemberSnapshot struct {
	UserID   string `json:"user_id"`
	Position int    `json:"position"`
	External bool   `json:"external,omitempty"`
	Company  string `json:"company,omitempty"`
	Signed   bool   `json:"signed"`
}

// MembershipSnapshot is the before/after value recorded for membership
// audit entries.
func (d *Document) MembershipSnapshot(g Group) []MemberSnapshot {
	gs := d.Group(g)
	out := make([]MemberSnapshot, 0, len(gs.Participants))
	for _, p := range gs.Participants {
		out = append(out, MemberSnapshot{
			UserID:   p.UserID,
			Position: p.Position,
			External: p.External,
			Company:  p.CompanyName,
			Signed:   p.Signed(),
		})
	}
	return out
}
