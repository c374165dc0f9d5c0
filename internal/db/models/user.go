package models

import (
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleCreator      UserRole = "CREATOR"
	RoleCollaborator UserRole = "COLLABORATOR"
	RoleUserManager  UserRole = "USER_MANAGER"
	RoleTrialAdmin   UserRole = "TRIAL_ADMIN"
	RoleSiteAdmin    UserRole = "SITE_ADMIN"
)

// User is the local projection of the identity directory.
type User struct {
	gorm.Model
	Username     string   `gorm:"unique;not null"`
	Email        string   `gorm:"unique;not null"`
	DisplayName  string
	Role         UserRole `gorm:"not null;default:'COLLABORATOR'"`
	TenantID     string   `gorm:"index;not null"`
	CompanyName  string
	ActiveStatus bool     `gorm:"not null;default:true"`
}
