package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization represents a named subdivision of an authority.
// Every authority has exactly one default organization (IsDefault=true), which is
// materialized lazily the first time it is needed.
type Organization struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Pubid     string    `gorm:"uniqueIndex;not null" json:"pubid"`
	Name      string    `gorm:"not null" json:"name"`
	Authority string    `gorm:"not null;index" json:"authority"`
	IsDefault bool      `gorm:"default:false" json:"is_default"`

	// DefaultAuthority is set to Authority for the default organization only.
	// The unique index guarantees a single default per authority while allowing
	// any number of non-default organizations (NULLs never collide).
	DefaultAuthority *string `gorm:"uniqueIndex" json:"-"`

	// Relationships
	Groups []Group `gorm:"foreignKey:OrganizationID" json:"groups,omitempty"`
}

// BeforeCreate assigns a public identifier if none was given.
func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.Pubid == "" {
		o.Pubid = uuid.NewString()
	}
	return nil
}
