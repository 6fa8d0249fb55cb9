// Package groups implements the group lifecycle: listing and lookup, creation
// of open and restricted groups, in-place updates, membership reconciliation
// and deletion. Every mutating operation runs in a single gorm transaction, so
// it either commits completely or leaves nothing behind.
package groups

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/mikepea/groupadmin/pkg/groupadmin/models"
)

// UserFetcher resolves a userid ("acct:username@authority") or a bare username.
// It must fail with models.ErrUserNotFound when the reference does not resolve.
type UserFetcher interface {
	Fetch(ctx context.Context, userIDOrUsername string) (*models.User, error)
}

// preloadGroup loads everything a caller needs to render a group.
func preloadGroup(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Creator").
		Preload("Organization").
		Preload("Scopes", func(db *gorm.DB) *gorm.DB { return db.Order("group_scopes.id ASC") }).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("group_memberships.id ASC") }).
		Preload("Members.User")
}

// lockGroup verifies the group row still exists inside tx.
func lockGroup(tx *gorm.DB, group *models.Group) error {
	if group == nil || group.ID == 0 {
		return errors.Wrap(models.ErrNotFound, "group")
	}
	var stored models.Group
	err := tx.Select("id", "pubid").First(&stored, group.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrapf(models.ErrNotFound, "group %s", group.Pubid)
	}
	if err != nil {
		return errors.Wrapf(err, "find group %s", group.Pubid)
	}
	return nil
}

// resolveOrganization re-reads org inside tx so a stale or fabricated
// reference is rejected.
func resolveOrganization(tx *gorm.DB, org *models.Organization) (*models.Organization, error) {
	if org == nil || org.ID == 0 {
		return nil, errors.Wrap(models.ErrInvalidOrganization, "no organization given")
	}
	var stored models.Organization
	err := tx.First(&stored, org.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(models.ErrInvalidOrganization, "organization %s", org.Pubid)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find organization %s", org.Pubid)
	}
	return &stored, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", models.NewValidationError("name", "must not be empty")
	}
	return name, nil
}

// normalizeOrigins reduces each origin to scheme://host[:port] and drops
// repeats, keeping the first occurrence so display order follows the
// caller's order.
func normalizeOrigins(origins []string) ([]string, error) {
	seen := make(map[string]struct{}, len(origins))
	out := make([]string, 0, len(origins))
	for _, raw := range origins {
		origin, err := canonicalOrigin(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[origin]; dup {
			continue
		}
		seen[origin] = struct{}{}
		out = append(out, origin)
	}
	return out, nil
}

var defaultPorts = map[string]string{"http": "80", "https": "443"}

func canonicalOrigin(raw string) (string, error) {
	malformed := models.NewValidationError("origins", "malformed origin "+raw)
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Opaque != "" || u.Host == "" || u.User != nil {
		return "", malformed
	}
	defaultPort, ok := defaultPorts[u.Scheme]
	if !ok {
		return "", malformed
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.ForceQuery || u.Fragment != "" {
		return "", malformed
	}

	host := strings.TrimSuffix(strings.ToLower(u.Host), ":")
	if u.Port() == defaultPort {
		host = strings.TrimSuffix(host, ":"+defaultPort)
	}
	return u.Scheme + "://" + host, nil
}

// createScopes inserts one scope per origin for groupID.
func createScopes(tx *gorm.DB, groupID uint, origins []string) ([]models.GroupScope, error) {
	scopes := make([]models.GroupScope, len(origins))
	for i, origin := range origins {
		scopes[i] = models.GroupScope{GroupID: groupID, Origin: origin}
	}
	if len(scopes) == 0 {
		return scopes, nil
	}
	if err := tx.Create(&scopes).Error; err != nil {
		return nil, errors.Wrap(err, "create scopes")
	}
	return scopes, nil
}
