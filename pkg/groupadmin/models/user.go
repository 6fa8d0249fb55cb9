package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// User is a reference to an account owned by the accounts subsystem.
// This service only reads users; it never creates or mutates them.
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Username  string    `gorm:"not null" json:"username"`
	// Usernames are unique per authority regardless of case
	UsernameFolded string `gorm:"not null;uniqueIndex:idx_user_authority" json:"-"`
	Authority      string `gorm:"not null;uniqueIndex:idx_user_authority" json:"authority"`
	Email          string `json:"email"`
	DisplayName    string `json:"display_name"`

	// Relationships
	GroupMemberships []GroupMembership `gorm:"foreignKey:UserID" json:"group_memberships,omitempty"`
}

// Userid returns the account identifier in "acct:username@authority" form.
func (u *User) Userid() string {
	return fmt.Sprintf("acct:%s@%s", u.Username, u.Authority)
}

// BeforeCreate folds the username for lookups and the uniqueness index.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.UsernameFolded = FoldName(u.Username)
	return nil
}
