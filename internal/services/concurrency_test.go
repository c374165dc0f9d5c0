package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/audit"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"pgregory.net/rapid"
)

func TestConcurrentOwnerRemoval_KeepsOneOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t)
	f.add(t, d.ID, domain.GroupOwners, carol)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pair := range [][2]domain.Principal{{alice, carol}, {carol, alice}} {
		wg.Add(1)
		go func(i int, actor, target domain.Principal) {
			defer wg.Done()
			_, errs[i] = f.svc.RemoveParticipant(ctx, d.ID, domain.GroupOwners, target.UserID, actor)
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		kind := domain.KindOf(err)
		assert.Contains(t, []domain.Kind{domain.KindForbidden, domain.KindLastOwnerProtected}, kind)
	}
	assert.Equal(t, 1, succeeded)

	var owners int
	for _, u := range []domain.Principal{alice, carol} {
		if doc, err := f.svc.GetDocument(ctx, d.ID, u); err == nil {
			owners = len(doc.Group(domain.GroupOwners).Participants)
		}
	}
	assert.Equal(t, 1, owners)
}

func TestConcurrentParallelSignatures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t)

	signers := make([]domain.Principal, 6)
	for i := range signers {
		signers[i] = domain.Principal{UserID: fmt.Sprintf("signer-%d", i), Role: domain.RoleCollaborator, TenantID: "tenant-a"}
		f.dir.Put(signers[i])
	}
	f.add(t, d.ID, domain.GroupPreApproval, signers...)

	var wg sync.WaitGroup
	errs := make(chan error, len(signers))
	for _, s := range signers {
		wg.Add(1)
		go func(s domain.Principal) {
			defer wg.Done()
			_, err := f.svc.Sign(ctx, d.ID, domain.GroupPreApproval, s, SignRequest{Method: domain.VerifyRoleAttestation})
			errs <- err
		}(s)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.True(t, f.load(t, d.ID).Group(domain.GroupPreApproval).Complete())
	signed := 0
	for _, e := range f.entries(t, d.ID) {
		if e.Action == audit.ActionSigned {
			signed++
		}
	}
	assert.Equal(t, len(signers), signed)

	v, err := f.svc.VerifyLedger(ctx, d.ID, alice)
	require.NoError(t, err)
	assert.True(t, v.Valid)
}

// Random owner churn never leaves a document without an owner, and every
// accepted call extends the ledger with entries attributed to its actor.
func TestOwnerChurnProperty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pool := []domain.Principal{alice, carol, uma}
	for i := 0; i < 3; i++ {
		p := domain.Principal{UserID: fmt.Sprintf("creator-%d", i), Role: domain.RoleCreator, TenantID: "tenant-a"}
		f.dir.Put(p)
		pool = append(pool, p)
	}

	rapid.Check(t, func(rt *rapid.T) {
		d, err := f.svc.CreateDocument(ctx, alice, "Churn")
		require.NoError(rt, err)
		owners := map[string]bool{"alice": true}

		steps := rapid.IntRange(1, 12).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			var actor domain.Principal
			for _, p := range pool {
				if owners[p.UserID] {
					actor = p
					break
				}
			}
			target := rapid.SampledFrom(pool).Draw(rt, "target")
			before := len(f.entries(t, d.ID))

			var opErr error
			if rapid.Bool().Draw(rt, "add") {
				_, opErr = f.svc.AddParticipant(ctx, d.ID, domain.GroupOwners, target.UserID, actor)
				if opErr == nil {
					owners[target.UserID] = true
				}
			} else {
				_, opErr = f.svc.RemoveParticipant(ctx, d.ID, domain.GroupOwners, target.UserID, actor)
				if opErr == nil {
					delete(owners, target.UserID)
				}
			}

			entries := f.entries(t, d.ID)
			if opErr != nil {
				require.Len(rt, entries, before)
			} else {
				require.Len(rt, entries, before+1)
				last := entries[len(entries)-1]
				require.Equal(rt, actor.UserID, last.ActorID)
				require.False(rt, last.Timestamp.Before(entries[len(entries)-2].Timestamp))
			}
			require.NotEmpty(rt, owners)
		}

		doc, err := f.svc.store.Load(ctx, f.gdb, d.ID)
		require.NoError(rt, err)
		require.Len(rt, doc.Group(domain.GroupOwners).Participants, len(owners))
		v, err := f.ledger.VerifyChain(ctx, d.ID)
		require.NoError(rt, err)
		require.True(rt, v.Valid)
	})
}
