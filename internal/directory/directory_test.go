package directory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/db/dbtest"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/db/models"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
)

func TestGormDirectory_Resolve(t *testing.T) {
	gdb := dbtest.SQLite(t)
	dir := NewGormDirectory(gdb)
	ctx := context.Background()

	require.NoError(t, dir.Upsert(ctx, &models.User{
		Username:     "alice",
		Email:        "alice@acme.test",
		DisplayName:  "Alice",
		Role:         models.RoleCreator,
		TenantID:     "tenant-a",
		CompanyName:  "Acme",
		ActiveStatus: true,
	}))

	p, err := dir.Resolve(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{
		UserID:      "alice",
		DisplayName: "Alice",
		Role:        domain.RoleCreator,
		TenantID:    "tenant-a",
		CompanyName: "Acme",
	}, p)

	_, err = dir.Resolve(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGormDirectory_UpsertRefreshesRole(t *testing.T) {
	gdb := dbtest.SQLite(t)
	dir := NewGormDirectory(gdb)
	ctx := context.Background()

	user := &models.User{Username: "bob", Email: "bob@acme.test", Role: models.RoleCollaborator, TenantID: "tenant-a", ActiveStatus: true}
	require.NoError(t, dir.Upsert(ctx, user))
	require.NoError(t, dir.Upsert(ctx, &models.User{Username: "bob", Email: "bob@acme.test", Role: models.RoleUserManager, TenantID: "tenant-a", ActiveStatus: true}))

	p, err := dir.Resolve(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUserManager, p.Role)

	var count int64
	require.NoError(t, gdb.Model(&models.User{}).Where("username = ?", "bob").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGormDirectory_DeactivatedUser(t *testing.T) {
	gdb := dbtest.SQLite(t)
	dir := NewGormDirectory(gdb)
	ctx := context.Background()

	require.NoError(t, dir.Upsert(ctx, &models.User{Username: "carol", Email: "carol@acme.test", Role: models.RoleCreator, TenantID: "tenant-a", ActiveStatus: true}))
	require.NoError(t, gdb.Model(&models.User{}).Where("username = ?", "carol").Update("active_status", false).Error)

	_, err := dir.Resolve(ctx, "carol")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestStatic(t *testing.T) {
	dir := NewStatic(domain.Principal{UserID: "u1", Role: domain.RoleSiteAdmin, TenantID: "t"})
	p, err := dir.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSiteAdmin, p.Role)

	dir.Put(domain.Principal{UserID: "u2", Role: domain.RoleCreator, TenantID: "t"})
	_, err = dir.Resolve(context.Background(), "u2")
	assert.NoError(t, err)
	_, err = dir.Resolve(context.Background(), "u3")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGormDirectory_Sync(t *testing.T) {
	gdb := dbtest.SQLite(t)
	dir := NewGormDirectory(gdb)
	ctx := context.Background()

	export := `[
		{"username": "alice", "email": "alice@acme.test", "display_name": "Alice", "role": "creator", "tenant_id": "tenant-a"},
		{"username": "dave", "email": "dave@cro.test", "role": "COLLABORATOR", "tenant_id": "tenant-b", "company_name": "Acme CRO"},
		{"username": "erin", "email": "erin@acme.test", "tenant_id": "tenant-a", "active": false}
	]`
	n, err := dir.Sync(ctx, strings.NewReader(export))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	p, err := dir.Resolve(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCreator, p.Role)
	p, err = dir.Resolve(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, "Acme CRO", p.CompanyName)
	_, err = dir.Resolve(ctx, "erin")
	assert.ErrorIs(t, err, domain.ErrForbidden, "inactive users are stored deactivated")

	n, err = dir.Sync(ctx, strings.NewReader(`[{"username": "alice", "email": "alice@acme.test", "role": "USER_MANAGER", "tenant_id": "tenant-a"}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	p, err = dir.Resolve(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUserManager, p.Role)
}

func TestGormDirectory_SyncRejectsBadExport(t *testing.T) {
	gdb := dbtest.SQLite(t)
	dir := NewGormDirectory(gdb)
	ctx := context.Background()

	_, err := dir.Sync(ctx, strings.NewReader(`{"username": "alice"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = dir.Sync(ctx, strings.NewReader(`[
		{"username": "bob", "email": "bob@acme.test", "tenant_id": "tenant-a"},
		{"username": "mallory", "email": "m@acme.test", "role": "ROOT", "tenant_id": "tenant-a"}
	]`))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = dir.Resolve(ctx, "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound, "nothing is written when any record is invalid")
}
