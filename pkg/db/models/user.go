package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrioscamacho/memberfees-backend/pkg/enums"
)

// User mirrors the identity provider's record. Account management lives
// elsewhere; this service only reads existence, email, and role.
type User struct {
	ID    uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email string         `gorm:"column:email;not null;unique"`
	Name  string         `gorm:"column:name;not null"`
	Role  enums.UserRole `gorm:"column:role;type:user_role;not null;default:'member'"`

	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}
