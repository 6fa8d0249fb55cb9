package groups

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/mikepea/groupadmin/pkg/groupadmin/models"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Repository reads groups
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new group repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListParams selects a page of groups. A Limit of zero or less means no limit.
type ListParams struct {
	Filter string
	Offset int
	Limit  int
}

func (r *Repository) filtered(ctx context.Context, filter string) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Group{})
	if filter != "" {
		pattern := "%" + likeEscaper.Replace(models.FoldName(filter)) + "%"
		query = query.Where(`name_folded LIKE ? ESCAPE '\'`, pattern)
	}
	return query
}

// List returns every group whose name contains filter (case-insensitively),
// newest first. An empty filter returns all groups.
func (r *Repository) List(ctx context.Context, filter string) ([]models.Group, error) {
	groups, _, err := r.ListPage(ctx, ListParams{Filter: filter})
	return groups, err
}

// ListPage returns one page of List together with the total number of matches.
// The order is fixed before paging: created descending, then id descending.
func (r *Repository) ListPage(ctx context.Context, params ListParams) ([]models.Group, int64, error) {
	var total int64
	if err := r.filtered(ctx, params.Filter).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count groups")
	}

	query := preloadGroup(r.filtered(ctx, params.Filter)).
		Order("created_at DESC").
		Order("id DESC")
	if params.Offset > 0 {
		query = query.Offset(params.Offset)
	}
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}

	var groups []models.Group
	if err := query.Find(&groups).Error; err != nil {
		return nil, 0, errors.Wrap(err, "list groups")
	}
	return groups, total, nil
}

// FindByPubid returns the group with the given public id.
// It fails with models.ErrNotFound when there is none.
func (r *Repository) FindByPubid(ctx context.Context, pubid string) (*models.Group, error) {
	var group models.Group
	err := preloadGroup(r.db.WithContext(ctx)).Where("pubid = ?", pubid).First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(models.ErrNotFound, "group %s", pubid)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find group %s", pubid)
	}
	return &group, nil
}

// AnnotationCount returns how many annotations were made in the group.
func (r *Repository) AnnotationCount(ctx context.Context, pubid string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Annotation{}).Where("groupid = ?", pubid).Count(&count).Error
	if err != nil {
		return 0, errors.Wrapf(err, "count annotations in %s", pubid)
	}
	return count, nil
}
