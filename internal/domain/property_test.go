package domain

import (
	"testing"

	"pgregory.net/rapid"
)

var rolePool = []Role{RoleCreator, RoleCollaborator, RoleUserManager, RoleTrialAdmin, RoleSiteAdmin}

func TestProperty_OwnersNeverEmpty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		d := NewDocument("doc", "tenant-a", "prop")
		if err := d.AddParticipant(GroupOwners, principal("u0", RoleCreator), t0); err != nil {
			rt.Fatal(err)
		}
		users := []string{"u0", "u1", "u2", "u3"}

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			user := rapid.SampledFrom(users).Draw(rt, "user")
			if rapid.Bool().Draw(rt, "add") {
				role := rapid.SampledFrom(rolePool).Draw(rt, "role")
				err := d.AddParticipant(GroupOwners, principal(user, role), t0)
				if err == nil && !role.OwnerEligible() {
					rt.Fatalf("role %s became an owner", role)
				}
			} else {
				owners := d.Group(GroupOwners).Participants
				actor := owners[rapid.IntRange(0, len(owners)-1).Draw(rt, "actor")].UserID
				_ = d.RemoveParticipant(GroupOwners, user, actor)
			}
			if len(d.Group(GroupOwners).Participants) < 1 {
				rt.Fatalf("document lost its last owner after step %d", i)
			}
		}
	})
}

func TestProperty_EnforcedOrderNeverSkipsPositions(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		d := NewDocument("doc", "tenant-a", "prop")
		n := rapid.IntRange(1, 6).Draw(rt, "signers")
		ids := make([]string, n)
		for i := range ids {
			ids[i] = string(rune('a' + i))
			if err := d.AddParticipant(GroupPreApproval, principal(ids[i], RoleCollaborator), t0); err != nil {
				rt.Fatal(err)
			}
		}
		if err := d.SetOrderEnforced(GroupPreApproval, rapid.Bool().Draw(rt, "enforced")); err != nil {
			rt.Fatal(err)
		}
		gs := d.Group(GroupPreApproval)

		attempts := rapid.IntRange(1, 20).Draw(rt, "attempts")
		for i := 0; i < attempts; i++ {
			who := rapid.SampledFrom(ids).Draw(rt, "who")
			if err := d.Sign(GroupPreApproval, who, VerifyRoleAttestation, "", t0); err != nil {
				continue
			}
			if !gs.OrderEnforced {
				continue
			}
			p, _ := gs.Member(who)
			for _, prev := range gs.Participants {
				if prev.Position < p.Position && !prev.Signed() {
					rt.Fatalf("position %d signed before position %d", p.Position, prev.Position)
				}
			}
		}

		stage := d.Stage
		if _, err := d.Transition(StageExecution, Forward, ""); err != nil && d.Stage != stage {
			rt.Fatalf("failed transition moved stage to %s", d.Stage)
		}
	})
}
