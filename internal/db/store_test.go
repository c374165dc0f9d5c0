package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/db"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/db/dbtest"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"gorm.io/gorm"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seedDocument(t *testing.T) *domain.Document {
	t.Helper()
	d := domain.NewDocument("doc-1", "tenant-a", "SOP-001")
	d.CreatedBy = "owner"
	d.CreatedAt = now
	d.UpdatedAt = now
	require.NoError(t, d.AddParticipant(domain.GroupOwners, domain.Principal{UserID: "owner", Role: domain.RoleCreator, TenantID: "tenant-a"}, now))
	require.NoError(t, d.AddParticipant(domain.GroupPreApproval, domain.Principal{UserID: "qa", Role: domain.RoleCollaborator, TenantID: "tenant-a"}, now))
	require.NoError(t, d.AddParticipant(domain.GroupPreApproval, domain.Principal{UserID: "ext", Role: domain.RoleCollaborator, TenantID: "tenant-b", CompanyName: "Acme CRO"}, now))
	require.NoError(t, d.SetOrderEnforced(domain.GroupPreApproval, true))
	return d
}

func TestDocumentStore_RoundTrip(t *testing.T) {
	gdb := dbtest.SQLite(t)
	store := db.NewDocumentStore()
	ctx := context.Background()

	d := seedDocument(t)
	require.NoError(t, d.Sign(domain.GroupPreApproval, "qa", domain.VerifyRegisterNotation, "REG-7", now))
	require.NoError(t, d.AddAttachment(domain.Attachment{ID: "att-1", Name: "scan.pdf", MediaType: "application/pdf", SHA256: "abc", Size: 3, Pages: 2, Data: []byte("pdf"), AddedBy: "owner", AddedAt: now}))
	require.NoError(t, store.Create(ctx, gdb, d))

	got, err := store.Load(ctx, gdb, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StagePreApproval, got.Stage)
	assert.True(t, got.IsOwner("owner"))

	pre := got.Group(domain.GroupPreApproval)
	assert.True(t, pre.OrderEnforced)
	require.Len(t, pre.Participants, 2)
	assert.Equal(t, "qa", pre.Participants[0].UserID)
	require.NotNil(t, pre.Participants[0].Signature)
	assert.Equal(t, "REG-7", pre.Participants[0].Signature.Notation)
	assert.True(t, pre.Participants[1].External)
	assert.Equal(t, "Acme CRO", pre.Participants[1].CompanyName)

	require.Len(t, got.Attachments, 1)
	assert.Equal(t, []byte("pdf"), got.Attachments[0].Data)
	assert.Equal(t, domain.DisposalVoid, domain.DisposalFor(got))
}

func TestDocumentStore_SaveRejectsStaleVersion(t *testing.T) {
	gdb := dbtest.SQLite(t)
	store := db.NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, gdb, seedDocument(t)))

	first, err := store.Load(ctx, gdb, "doc-1")
	require.NoError(t, err)
	second, err := store.Load(ctx, gdb, "doc-1")
	require.NoError(t, err)

	first.Title = "SOP-001 rev A"
	require.NoError(t, store.Save(ctx, gdb, first))
	assert.Equal(t, 1, first.Version)

	second.Title = "SOP-001 rev B"
	err = store.Save(ctx, gdb, second)
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := store.Load(ctx, gdb, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "SOP-001 rev A", got.Title)
	assert.Len(t, got.Group(domain.GroupPreApproval).Participants, 2)
}

func TestDocumentStore_SaveVoidRecord(t *testing.T) {
	gdb := dbtest.SQLite(t)
	store := db.NewDocumentStore()
	ctx := context.Background()
	d := seedDocument(t)
	d.Content = []byte("body")
	require.NoError(t, store.Create(ctx, gdb, d))

	require.NoError(t, d.MarkVoid("superseded", "owner", now))
	require.NoError(t, store.Save(ctx, gdb, d))

	got, err := store.Load(ctx, gdb, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageVoided, got.Stage)
	require.NotNil(t, got.Void)
	assert.Equal(t, "superseded", got.Void.Reason)
	assert.True(t, got.Locked)
}

func TestDocumentStore_DeleteAndNotFound(t *testing.T) {
	gdb := dbtest.SQLite(t)
	store := db.NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, gdb, seedDocument(t)))

	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		return store.Delete(ctx, tx, "doc-1")
	}))

	_, err := store.Load(ctx, gdb, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, db.Classify("op", nil))
	assert.ErrorIs(t, db.Classify("op", gorm.ErrRecordNotFound), domain.ErrNotFound)
	assert.ErrorIs(t, db.Classify("op", errors.New("connection reset")), domain.ErrUnavailable)

	typed := domain.Errorf(domain.KindConflict, "op", "stale")
	assert.Same(t, typed, db.Classify("other", typed))
}
