package users

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/mikepea/groupadmin/pkg/groupadmin/models"
)

type authorityKey struct{}

// WithAuthority returns a context carrying the caller's current authority.
// Bare usernames passed to Fetch resolve within that authority.
func WithAuthority(ctx context.Context, authority string) context.Context {
	return context.WithValue(ctx, authorityKey{}, authority)
}

// AuthorityFrom returns the authority stored by WithAuthority.
func AuthorityFrom(ctx context.Context) (string, bool) {
	authority, ok := ctx.Value(authorityKey{}).(string)
	return authority, ok && authority != ""
}

// ParseUserid splits an "acct:username@authority" identifier.
func ParseUserid(userid string) (username, authority string, err error) {
	rest, ok := strings.CutPrefix(userid, "acct:")
	if !ok {
		return "", "", errors.Errorf("userid %q: missing acct: prefix", userid)
	}
	at := strings.LastIndex(rest, "@")
	if at <= 0 || at == len(rest)-1 {
		return "", "", errors.Errorf("userid %q: want acct:username@authority", userid)
	}
	return rest[:at], rest[at+1:], nil
}

// Resolver looks users up by userid or by username.
type Resolver struct {
	db               *gorm.DB
	defaultAuthority string
}

// NewResolver creates a resolver. Bare usernames resolve in the context
// authority, falling back to defaultAuthority.
func NewResolver(db *gorm.DB, defaultAuthority string) *Resolver {
	return &Resolver{db: db, defaultAuthority: defaultAuthority}
}

// Fetch resolves an "acct:username@authority" userid or a bare username.
// It fails with models.ErrUserNotFound when nothing matches.
func (r *Resolver) Fetch(ctx context.Context, userIDOrUsername string) (*models.User, error) {
	ref := strings.TrimSpace(userIDOrUsername)
	if ref == "" {
		return nil, errors.Wrap(models.ErrUserNotFound, "empty user reference")
	}

	username, authority := ref, r.defaultAuthority
	if strings.HasPrefix(ref, "acct:") {
		var err error
		if username, authority, err = ParseUserid(ref); err != nil {
			return nil, errors.Wrap(models.ErrUserNotFound, err.Error())
		}
	} else if a, ok := AuthorityFrom(ctx); ok {
		authority = a
	}

	var user models.User
	err := r.db.WithContext(ctx).
		Where("username_folded = ? AND authority = ?", models.FoldName(username), authority).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(models.ErrUserNotFound, "%s", ref)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fetch user %s", ref)
	}
	return &user, nil
}

// FetchAll resolves every reference, failing on the first one that does not resolve.
func (r *Resolver) FetchAll(ctx context.Context, refs []string) ([]*models.User, error) {
	resolved := make([]*models.User, 0, len(refs))
	for _, ref := range refs {
		user, err := r.Fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, user)
	}
	return resolved, nil
}
