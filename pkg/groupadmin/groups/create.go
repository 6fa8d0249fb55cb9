package groups

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mikepea/groupadmin/pkg/groupadmin/logging"
	"github.com/mikepea/groupadmin/pkg/groupadmin/models"
)

// CreateParams describes a new group.
type CreateParams struct {
	Name         string
	Userid       string // creator; resolved through the UserFetcher
	Description  string
	Origins      []string
	Organization *models.Organization
	EnforceScope bool
}

// CreateService creates open and restricted groups.
// It never adds members; callers do that afterwards through MembersService.
type CreateService struct {
	db    *gorm.DB
	users UserFetcher
	log   logrus.FieldLogger
}

// NewCreateService creates a new group creation service
func NewCreateService(db *gorm.DB, users UserFetcher, log logrus.FieldLogger) *CreateService {
	return &CreateService{db: db, users: users, log: logging.OrDiscard(log)}
}

// CreateOpenGroup creates a group anyone in the authority can use.
func (s *CreateService) CreateOpenGroup(ctx context.Context, params CreateParams) (*models.Group, error) {
	return s.create(ctx, models.GroupTypeOpen, params)
}

// CreateRestrictedGroup creates a group whose member list gates participation.
func (s *CreateService) CreateRestrictedGroup(ctx context.Context, params CreateParams) (*models.Group, error) {
	return s.create(ctx, models.GroupTypeRestricted, params)
}

func (s *CreateService) create(ctx context.Context, groupType models.GroupType, params CreateParams) (*models.Group, error) {
	name, err := validateName(params.Name)
	if err != nil {
		return nil, err
	}
	origins, err := normalizeOrigins(params.Origins)
	if err != nil {
		return nil, err
	}

	creator, err := s.users.Fetch(ctx, params.Userid)
	if err != nil {
		return nil, errors.Wrap(err, "resolve creator")
	}

	var group models.Group
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := resolveOrganization(tx, params.Organization)
		if err != nil {
			return err
		}

		group = models.Group{
			Name:           name,
			Description:    params.Description,
			Type:           groupType,
			Authority:      creator.Authority,
			CreatorID:      &creator.ID,
			OrganizationID: org.ID,
			EnforceScope:   params.EnforceScope,
		}
		if err := tx.Omit(clause.Associations).Create(&group).Error; err != nil {
			return errors.Wrap(err, "create group")
		}

		scopes, err := createScopes(tx, group.ID, origins)
		if err != nil {
			return err
		}

		group.Creator = creator
		group.Organization = *org
		group.Scopes = scopes
		group.Members = []models.GroupMembership{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"pubid":     group.Pubid,
		"type":      group.Type,
		"authority": group.Authority,
		"scopes":    len(group.Scopes),
	}).Info("group.created")
	return &group, nil
}
