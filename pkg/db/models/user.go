package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/distrihogar/storefront-backend/pkg/enums"
)

// User is the storefront account. Accounts go through an admin validation
// workflow before they may mutate a cart.
type User struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string           `gorm:"column:email;not null;uniqueIndex"`
	Name      string           `gorm:"column:name;not null"`
	Tier      enums.UserTier   `gorm:"column:tier;not null;default:'NATURAL'"`
	Status    enums.UserStatus `gorm:"column:status;not null;default:'pending'"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt   `gorm:"column:deleted_at;index"`
}

// BeforeCreate assigns the ID client-side so inserts also work on backends
// without gen_random_uuid.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the account may operate on its cart: approved by
// an admin and not soft-deleted.
func (u *User) IsActive() bool {
	return u != nil && u.Status == enums.UserStatusApproved && !u.DeletedAt.Valid
}
