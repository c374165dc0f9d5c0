package domain

import "strings"

type Group string

const (
	GroupOwners       Group = "OWNERS"
	GroupPreApproval  Group = "PRE_APPROVAL"
	GroupExecution    Group = "EXECUTION"
	GroupPostApproval Group = "POST_APPROVAL"
	GroupViewers      Group = "VIEWERS"
)

var SigningGroups = []Group{GroupPreApproval, GroupExecution, GroupPostApproval}

func (g Group) Signing() bool {
	return g == GroupPreApproval || g == GroupExecution || g == GroupPostApproval
}

func (g Group) Valid() bool {
	return g == GroupOwners || g == GroupViewers || g.Signing()
}

// Stage returns the lifecycle stage a signing group gates.
func (g Group) Stage() (Stage, bool) {
	switch g {
	case GroupPreApproval:
		return StagePreApproval, true
	case GroupExecution:
		return StageExecution, true
	case GroupPostApproval:
		return StagePostApproval, true
	}
	return "", false
}

func ParseGroup(v string) (Group, bool) {
	g := Group(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(v), "-", "_")))
	return g, g.Valid()
}

type Role string

const (
	RoleCreator      Role = "CREATOR"
	RoleCollaborator Role = "COLLABORATOR"
	RoleUserManager  Role = "USER_MANAGER"
	RoleTrialAdmin   Role = "TRIAL_ADMIN"
	RoleSiteAdmin    Role = "SITE_ADMIN"
)

// OwnerEligible reports whether a role may sit in the Owners group.
func (r Role) OwnerEligible() bool {
	switch r {
	case RoleCreator, RoleUserManager, RoleTrialAdmin:
		return true
	}
	return false
}

// Principal is an authenticated identity as resolved by the directory.
type Principal struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Role        Role   `json:"role"`
	TenantID    string `json:"tenant_id"`
	CompanyName string `json:"company_name,omitempty"`
}

type VerificationMethod string

const (
	VerifyRoleAttestation  VerificationMethod = "ROLE_ATTESTATION"
	VerifyRegisterNotation VerificationMethod = "REGISTER_NOTATION"
)

func (m VerificationMethod) Valid() bool {
	return m == VerifyRoleAttestation || m == VerifyRegisterNotation
}
