package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func principal(id string, role Role) Principal {
	return Principal{UserID: id, Role: role, TenantID: "tenant-a"}
}

func testDocument(t *testing.T) *Document {
	t.Helper()
	d := NewDocument("doc-1", "tenant-a", "Batch record")
	require.NoError(t, d.AddParticipant(GroupOwners, principal("owner", RoleCreator), t0))
	return d
}

func addSigners(t *testing.T, d *Document, g Group, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, d.AddParticipant(g, principal(id, RoleCollaborator), t0))
	}
}

func TestSign_OrderEnforcedRejectsOutOfOrder(t *testing.T) {
	d := testDocument(t)
	addSigners(t, d, GroupPreApproval, "p1", "p2", "p3")
	require.NoError(t, d.SetOrderEnforced(GroupPreApproval, true))

	err := d.Sign(GroupPreApproval, "p2", VerifyRoleAttestation, "", t0)
	require.ErrorIs(t, err, ErrOutOfOrder)

	require.NoError(t, d.Sign(GroupPreApproval, "p1", VerifyRoleAttestation, "", t0))
	require.NoError(t, d.Sign(GroupPreApproval, "p2", VerifyRoleAttestation, "", t0))

	next, ok := d.Group(GroupPreApproval).NextSigner()
	require.True(t, ok)
	assert.Equal(t, "p3", next.UserID)
}

func TestSign_ParallelAllowsAnyUnsigned(t *testing.T) {
	d := testDocument(t)
	addSigners(t, d, GroupPreApproval, "p1", "p2", "p3")

	_, ok := d.Group(GroupPreApproval).NextSigner()
	assert.False(t, ok, "parallel groups have no designated next signer")
	assert.Len(t, d.Group(GroupPreApproval).EligibleSigners(), 3)

	require.NoError(t, d.Sign(GroupPreApproval, "p3", VerifyRoleAttestation, "", t0))
	require.NoError(t, d.Sign(GroupPreApproval, "p1", VerifyRoleAttestation, "", t0))

	eligible := d.Group(GroupPreApproval).EligibleSigners()
	require.Len(t, eligible, 1)
	assert.Equal(t, "p2", eligible[0].UserID)
}

func TestSign_GroupFlagsAreIndependent(t *testing.T) {
	d := testDocument(t)
	addSigners(t, d, GroupPreApproval, "p1", "p2")
	addSigners(t, d, GroupExecution, "e1", "e2")

	require.NoError(t, d.SetOrderEnforced(GroupExecution, true))

	assert.False(t, d.Group(GroupPreApproval).OrderEnforced)
	assert.True(t, d.Group(GroupExecution).OrderEnforced)
	assert.Equal(t, []MemberSnapshot{
		{UserID: "p1", Position: 1},
		{UserID: "p2", Position: 2},
	}, d.MembershipSnapshot(GroupPreApproval))
}

func TestSign_Rejections(t *testing.T) {
	d := testDocument(t)
	addSigners(t, d, GroupPreApproval, "p1")
	addSigners(t, d, GroupExecution, "e1")

	tests := []struct {
		name     string
		group    Group
		user     string
		method   VerificationMethod
		notation string
		want     error
	}{
		{"inactive group", GroupExecution, "e1", VerifyRoleAttestation, "", ErrPreconditionFailed},
		{"non member", GroupPreApproval, "stranger", VerifyRoleAttestation, "", ErrForbidden},
		{"viewers cannot sign", GroupViewers, "p1", VerifyRoleAttestation, "", ErrInvalidArgument},
		{"notation required", GroupPreApproval, "p1", VerifyRegisterNotation, "  ", ErrInvalidArgument},
		{"unknown method", GroupPreApproval, "p1", VerificationMethod("WET_INK"), "", ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Sign(tt.group, tt.user, tt.method, tt.notation, t0)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	require.NoError(t, d.Sign(GroupPreApproval, "p1", VerifyRegisterNotation, "Register B-12 p.4", t0))
	p, _ := d.Group(GroupPreApproval).Member("p1")
	assert.Equal(t, "Register B-12 p.4", p.Signature.Notation)
	assert.ErrorIs(t, d.Sign(GroupPreApproval, "p1", VerifyRoleAttestation, "", t0), ErrConflict)
}

func TestRevokeVerification_BlocksUntilReverified(t *testing.T) {
	d := testDocument(t)
	addSigners(t, d, GroupPreApproval, "p1")
	require.NoError(t, d.Sign(GroupPreApproval, "p1", VerifyRoleAttestation, "", t0))

	prev, err := d.RevokeVerification(GroupPreApproval, "p1")
	require.NoError(t, err)
	assert.Equal(t, VerifyRoleAttestation, prev.Method)

	p, _ := d.Group(GroupPreApproval).Member("p1")
	assert.False(t, p.Signed())
	assert.ErrorIs(t, d.Sign(GroupPreApproval, "p1", VerifyRoleAttestation, "", t0), ErrForbidden)
	assert.Empty(t, d.Group(GroupPreApproval).EligibleSigners())

	require.NoError(t, d.Reverify(GroupPreApproval, "p1"))
	require.NoError(t, d.Sign(GroupPreApproval, "p1", VerifyRoleAttestation, "", t0))

	_, err = d.RevokeVerification(GroupPreApproval, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, d.Reverify(GroupPreApproval, "p1"), ErrPreconditionFailed)
}

func TestNextSigner_RevokedHeadBlocksGroup(t *testing.T) {
	d := testDocument(t)
	addSigners(t, d, GroupPreApproval, "p1", "p2")
	require.NoError(t, d.SetOrderEnforced(GroupPreApproval, true))
	require.NoError(t, d.Sign(GroupPreApproval, "p1", VerifyRoleAttestation, "", t0))
	_, err := d.RevokeVerification(GroupPreApproval, "p1")
	require.NoError(t, err)

	gs := d.Group(GroupPreApproval)
	_, ok := gs.NextSigner()
	assert.False(t, ok, "a revoked participant is never the next signer")
	assert.Empty(t, gs.EligibleSigners())
	assert.ErrorIs(t, d.Sign(GroupPreApproval, "p2", VerifyRoleAttestation, "", t0), ErrOutOfOrder)

	require.NoError(t, d.Reverify(GroupPreApproval, "p1"))
	next, ok := gs.NextSigner()
	require.True(t, ok)
	assert.Equal(t, "p1", next.UserID)
	assert.Equal(t, []Participant{next}, gs.EligibleSigners())
}

func TestRemoveParticipant_ReindexesPositions(t *testing.T) {
	d := testDocument(t)
	addSigners(t, d, GroupExecution, "e1", "e2", "e3")
	require.NoError(t, d.SetOrderEnforced(GroupExecution, true))

	require.NoError(t, d.RemoveParticipant(GroupExecution, "e1", "owner"))

	snap := d.MembershipSnapshot(GroupExecution)
	require.Len(t, snap, 2)
	assert.Equal(t, "e2", snap[0].UserID)
	assert.Equal(t, 1, snap[0].Position)
	assert.Equal(t, "e3", snap[1].UserID)
	assert.Equal(t, 2, snap[1].Position)

	next, ok := d.Group(GroupExecution).NextSigner()
	require.True(t, ok)
	assert.Equal(t, "e2", next.UserID)
}
