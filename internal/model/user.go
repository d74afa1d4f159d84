package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the closed set of user roles known to the system.
type Role string

const (
	RoleResident   Role = "resident"
	RoleDispatcher Role = "dispatcher"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleResident, RoleDispatcher, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// User is a resident or a management company employee
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username  string         `gorm:"type:varchar(255)" json:"username"`
	FirstName string         `gorm:"type:varchar(255)" json:"first_name"`
	LastName  string         `gorm:"type:varchar(255)" json:"last_name"`
	Phone     string         `gorm:"type:varchar(20)" json:"phone"`
	Role      Role           `gorm:"type:varchar(20);not null;default:'resident'" json:"role"`
	HouseID   *uuid.UUID     `gorm:"type:uuid;index" json:"house_id"`
	House     *House         `gorm:"foreignKey:HouseID;constraint:OnDelete:SET NULL;" json:"house,omitempty"`
	Apartment string         `gorm:"type:varchar(20)" json:"apartment"`
	CompanyID *uuid.UUID     `gorm:"type:uuid;index" json:"company_id"` // staff only
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// FullName falls back to the username when no personal name is known.
func (u *User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return name
}

// House is a residential building served by a management company.
// Directory management lives elsewhere; the model is needed for request scoping.
type House struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Address   string     `gorm:"type:varchar(500);not null" json:"address"`
	CompanyID *uuid.UUID `gorm:"type:uuid;index" json:"company_id"`
	CreatedAt time.Time  `json:"created_at"`
}
