// Package directory resolves user ids to principals. The identity provider
// owns the data; this service only reads its projection.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/vincentgggg12/docufen-admin-sub001/internal/db"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/db/models"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"gorm.io/gorm"
)

type Directory interface {
	Resolve(ctx context.Context, userID string) (domain.Principal, error)
}

// GormDirectory reads the users table kept in sync by the identity
// integration. The username is the user id used everywhere else.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(gdb *gorm.DB) *GormDirectory {
	return &GormDirectory{db: gdb}
}

func (d *GormDirectory) Resolve(ctx context.Context, userID string) (domain.Principal, error) {
	const op = "resolve_principal"
	var user models.User
	err := d.db.WithContext(ctx).Where("username = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Principal{}, domain.Errorf(domain.KindNotFound, op, "user %s not found", userID)
	}
	if err != nil {
		return domain.Principal{}, db.Classify(op, err)
	}
	if !user.ActiveStatus {
		return domain.Principal{}, domain.Errorf(domain.KindForbidden, op, "user %s is deactivated", userID)
	}
	return domain.Principal{
		UserID:      user.Username,
		DisplayName: user.DisplayName,
		Role:        domain.Role(user.Role),
		TenantID:    user.TenantID,
		CompanyName: user.CompanyName,
	}, nil
}

// Upsert stores or refreshes a user projection.
func (d *GormDirectory) Upsert(ctx context.Context, user *models.User) error {
	var existing models.User
	err := d.db.WithContext(ctx).Where("username = ?", user.Username).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := d.db.WithContext(ctx).Create(user).Error; err != nil {
			return db.Classify("upsert_user", err)
		}
		// Create leaves zero values to the column default.
		if !user.ActiveStatus {
			return db.Classify("upsert_user", d.db.WithContext(ctx).Model(user).Update("active_status", false).Error)
		}
		return nil
	case err != nil:
		return db.Classify("upsert_user", err)
	}
	user.ID = existing.ID
	user.CreatedAt = existing.CreatedAt
	return db.Classify("upsert_user", d.db.WithContext(ctx).Save(user).Error)
}

// Record is one user in an identity provider export.
type Record struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	TenantID    string `json:"tenant_id"`
	CompanyName string `json:"company_name"`
	Active      *bool  `json:"active"`
}

func (r Record) user() (*models.User, error) {
	const op = "sync_users"
	if strings.TrimSpace(r.Username) == "" || strings.TrimSpace(r.Email) == "" || strings.TrimSpace(r.TenantID) == "" {
		return nil, domain.Errorf(domain.KindInvalidArgument, op, "username, email and tenant_id are required")
	}
	role := models.UserRole(strings.ToUpper(strings.TrimSpace(r.Role)))
	switch role {
	case models.RoleCreator, models.RoleCollaborator, models.RoleUserManager, models.RoleTrialAdmin, models.RoleSiteAdmin:
	case "":
		role = models.RoleCollaborator
	default:
		return nil, domain.Errorf(domain.KindInvalidArgument, op, "user %s has unknown role %q", r.Username, r.Role)
	}
	return &models.User{
		Username:     r.Username,
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		Role:         role,
		TenantID:     r.TenantID,
		CompanyName:  r.CompanyName,
		ActiveStatus: r.Active == nil || *r.Active,
	}, nil
}

// Sync upserts every record of a JSON array export. The whole export is
// validated before anything is written; it returns the number of users
// stored.
func (d *GormDirectory) Sync(ctx context.Context, r io.Reader) (int, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return 0, domain.Errorf(domain.KindInvalidArgument, "sync_users", "malformed export: %v", err)
	}
	users := make([]*models.User, 0, len(records))
	for _, rec := range records {
		u, err := rec.user()
		if err != nil {
			return 0, err
		}
		users = append(users, u)
	}
	for i, u := range users {
		if err := d.Upsert(ctx, u); err != nil {
			return i, err
		}
	}
	return len(users), nil
}

// Static is an in-memory directory for tests and local runs.
type Static struct {
	mu    sync.RWMutex
	users map[string]domain.Principal
}

func NewStatic(principals ...domain.Principal) *Static {
	s := &Static{users: make(map[string]domain.Principal, len(principals))}
	for _, p := range principals {
		s.users[p.UserID] = p
	}
	return s
}

func (s *Static) Put(p domain.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[p.UserID] = p
}

func (s *Static) Resolve(_ context.Context, userID string) (domain.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.users[userID]
	if !ok {
		return domain.Principal{}, domain.Errorf(domain.KindNotFound, "resolve_principal", "user %s not found", userID)
	}
	return p, nil
}
