package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Business is a marketplace participant. The role determines which plan
// templates it can subscribe to and which usage limits apply.
type Business struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrgID        string         `gorm:"size:50;not null;uniqueIndex:idx_businesses_org_email" json:"-"`
	Email        string         `gorm:"not null;size:255;uniqueIndex:idx_businesses_org_email" json:"email"`
	Name         string         `gorm:"not null;size:255" json:"name"`
	Role         BusinessRole   `gorm:"size:20;not null;index" json:"role"`
	MerchantRef  string         `gorm:"size:100" json:"merchant_ref"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
