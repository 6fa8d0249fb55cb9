package organizations

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mikepea/groupadmin/pkg/groupadmin/logging"
	"github.com/mikepea/groupadmin/pkg/groupadmin/models"
)

// Directory resolves the organizations visible to an authority
type Directory struct {
	db               *gorm.DB
	defaultAuthority string
	log              logrus.FieldLogger
}

// NewDirectory creates a new organization directory. defaultAuthority is used
// when listing across all authorities.
func NewDirectory(db *gorm.DB, defaultAuthority string, log logrus.FieldLogger) *Directory {
	return &Directory{db: db, defaultAuthority: defaultAuthority, log: logging.OrDiscard(log)}
}

// Default returns the default organization for authority, creating it if it
// does not exist yet. Concurrent first calls converge on a single row: the
// insert is a no-op when the unique default_authority index already holds one.
func (d *Directory) Default(ctx context.Context, authority string) (*models.Organization, error) {
	if authority == "" {
		authority = d.defaultAuthority
	}
	db := d.db.WithContext(ctx)

	var org models.Organization
	err := db.Where("default_authority = ?", authority).First(&org).Error
	if err == nil {
		return &org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(err, "find default organization for %s", authority)
	}

	org = models.Organization{
		Name:             authority,
		Authority:        authority,
		IsDefault:        true,
		DefaultAuthority: &authority,
	}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&org)
	if result.Error != nil {
		return nil, errors.Wrapf(result.Error, "create default organization for %s", authority)
	}
	if result.RowsAffected == 1 {
		d.log.WithFields(logrus.Fields{
			"pubid":     org.Pubid,
			"authority": authority,
		}).Info("organization.default.created")
	}

	// Re-read so a caller that lost the race gets the winner's row.
	var stored models.Organization
	if err := db.Where("default_authority = ?", authority).First(&stored).Error; err != nil {
		return nil, errors.Wrapf(err, "reload default organization for %s", authority)
	}
	return &stored, nil
}

// ListOrganizations returns the organizations for authority, or every
// organization when authority is empty. The authority's default organization
// is always part of the result and always comes first; the rest are ordered
// by name.
func (d *Directory) ListOrganizations(ctx context.Context, authority string) ([]models.Organization, error) {
	def, err := d.Default(ctx, authority)
	if err != nil {
		return nil, err
	}

	query := d.db.WithContext(ctx).Order("is_default DESC").Order("name ASC").Order("id ASC")
	if authority != "" {
		query = query.Where("authority = ?", authority)
	}

	var orgs []models.Organization
	if err := query.Find(&orgs).Error; err != nil {
		return nil, errors.Wrap(err, "list organizations")
	}

	for i := range orgs {
		if orgs[i].ID == def.ID {
			if i > 0 {
				orgs = append(orgs[:i], orgs[i+1:]...)
				orgs = append([]models.Organization{*def}, orgs...)
			}
			return orgs, nil
		}
	}
	return append([]models.Organization{*def}, orgs...), nil
}

// FindByPubid looks up a single organization.
// It fails with models.ErrInvalidOrganization when the pubid does not resolve.
func (d *Directory) FindByPubid(ctx context.Context, pubid string) (*models.Organization, error) {
	var org models.Organization
	err := d.db.WithContext(ctx).Where("pubid = ?", pubid).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(models.ErrInvalidOrganization, "%s", pubid)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find organization %s", pubid)
	}
	return &org, nil
}

// IndexByPubid maps each organization's pubid to the organization.
func IndexByPubid(orgs []models.Organization) map[string]*models.Organization {
	index := make(map[string]*models.Organization, len(orgs))
	for i := range orgs {
		index[orgs[i].Pubid] = &orgs[i]
	}
	return index
}
