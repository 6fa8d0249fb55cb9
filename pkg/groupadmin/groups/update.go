package groups

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mikepea/groupadmin/pkg/groupadmin/logging"
	"github.com/mikepea/groupadmin/pkg/groupadmin/models"
)

// UpdateParams is the complete new state of a group's editable fields.
// Origins replaces the whole scope list; pass every origin the group should keep.
type UpdateParams struct {
	Organization *models.Organization
	Creator      *models.User // nil removes the creator
	Description  string
	Name         string
	Origins      []string
	EnforceScope bool
}

// UpdateService edits existing groups in place
type UpdateService struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

// NewUpdateService creates a new group update service
func NewUpdateService(db *gorm.DB, log logrus.FieldLogger) *UpdateService {
	return &UpdateService{db: db, log: logging.OrDiscard(log)}
}

// Update overwrites the group's organization, creator, description, name,
// enforce_scope and scopes. Type, authority and members are left alone.
// The passed group is updated in place and returned.
func (s *UpdateService) Update(ctx context.Context, group *models.Group, params UpdateParams) (*models.Group, error) {
	if group == nil || group.ID == 0 {
		return nil, errors.Wrap(models.ErrNotFound, "group")
	}
	name, err := validateName(params.Name)
	if err != nil {
		return nil, err
	}
	origins, err := normalizeOrigins(params.Origins)
	if err != nil {
		return nil, err
	}

	var (
		org    *models.Organization
		scopes []models.GroupScope
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockGroup(tx, group); err != nil {
			return err
		}
		resolved, err := resolveOrganization(tx, params.Organization)
		if err != nil {
			return err
		}
		org = resolved

		var creatorID *uint
		if params.Creator != nil {
			if params.Creator.ID == 0 {
				return errors.Wrap(models.ErrUserNotFound, "creator")
			}
			err := tx.Select("id").First(&models.User{}, params.Creator.ID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(models.ErrUserNotFound, "creator %s", params.Creator.Userid())
			}
			if err != nil {
				return errors.Wrap(err, "find creator")
			}
			creatorID = &params.Creator.ID
		}

		err = tx.Model(&models.Group{ID: group.ID}).Updates(map[string]interface{}{
			"name":            name,
			"name_folded":     models.FoldName(name),
			"description":     params.Description,
			"organization_id": org.ID,
			"creator_id":      creatorID,
			"enforce_scope":   params.EnforceScope,
		}).Error
		if err != nil {
			return errors.Wrap(err, "update group")
		}

		if err := tx.Where("group_id = ?", group.ID).Delete(&models.GroupScope{}).Error; err != nil {
			return errors.Wrap(err, "delete scopes")
		}
		scopes, err = createScopes(tx, group.ID, origins)
		return err
	})
	if err != nil {
		return nil, err
	}

	group.Name = name
	group.NameFolded = models.FoldName(name)
	group.Description = params.Description
	group.OrganizationID = org.ID
	group.Organization = *org
	group.Creator = params.Creator
	group.CreatorID = nil
	if params.Creator != nil {
		group.CreatorID = &params.Creator.ID
	}
	group.EnforceScope = params.EnforceScope
	group.Scopes = scopes

	s.log.WithFields(logrus.Fields{
		"pubid":        group.Pubid,
		"organization": org.Pubid,
		"scopes":       len(scopes),
	}).Info("group.updated")
	return group, nil
}
