package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GroupType distinguishes open groups from restricted ones. It never changes
// after creation.
type GroupType string

const (
	GroupTypeOpen       GroupType = "open"
	GroupTypeRestricted GroupType = "restricted"
)

// Valid reports whether t is a known group type.
func (t GroupType) Valid() bool {
	return t == GroupTypeOpen || t == GroupTypeRestricted
}

// Group is a named annotation context scoped to an organization and an authority
type Group struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Pubid          string    `gorm:"uniqueIndex;not null" json:"pubid"`
	Name           string    `gorm:"not null" json:"name"`
	NameFolded     string    `gorm:"not null;index" json:"-"`
	Description    string    `json:"description"`
	Type           GroupType `gorm:"type:varchar(20);not null" json:"type"`
	Authority      string    `gorm:"not null;index" json:"authority"`
	CreatorID      *uint     `gorm:"index" json:"creator_id"`
	OrganizationID uint      `gorm:"not null;index" json:"organization_id"`
	// No gorm default here: a default tag would turn an explicit false into true on insert.
	EnforceScope bool `gorm:"not null" json:"enforce_scope"`

	// Relationships
	Creator      *User             `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Organization Organization      `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Scopes       []GroupScope      `gorm:"foreignKey:GroupID" json:"scopes,omitempty"`
	Members      []GroupMembership `gorm:"foreignKey:GroupID" json:"members,omitempty"`
}

// BeforeCreate assigns a public identifier if none was given and folds the name.
func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.Pubid == "" {
		g.Pubid = uuid.NewString()
	}
	g.NameFolded = FoldName(g.Name)
	return nil
}

// Origins returns the scope origins in display order.
func (g *Group) Origins() []string {
	origins := make([]string, len(g.Scopes))
	for i, s := range g.Scopes {
		origins[i] = s.Origin
	}
	return origins
}

// MemberUsers returns the users behind the loaded memberships.
func (g *Group) MemberUsers() []User {
	users := make([]User, 0, len(g.Members))
	for _, m := range g.Members {
		users = append(users, m.User)
	}
	return users
}

// GroupScope is an origin that annotations in the group are constrained to.
// Scopes are owned by their group and compared by origin.
type GroupScope struct {
	ID      uint   `gorm:"primarykey" json:"id"`
	GroupID uint   `gorm:"not null;uniqueIndex:idx_group_origin" json:"group_id"`
	Origin  string `gorm:"not null;uniqueIndex:idx_group_origin" json:"origin"`
}
