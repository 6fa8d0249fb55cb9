package groups

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mikepea/groupadmin/pkg/groupadmin/logging"
	"github.com/mikepea/groupadmin/pkg/groupadmin/models"
)

// DeleteService deletes groups
type DeleteService struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

// NewDeleteService creates a new group deletion service
func NewDeleteService(db *gorm.DB, log logrus.FieldLogger) *DeleteService {
	return &DeleteService{db: db, log: logging.OrDiscard(log)}
}

// Delete removes the group together with its scopes and membership edges.
// Users, the organization and annotations are left alone. It fails with
// models.ErrNotFound if the group is already gone.
func (s *DeleteService) Delete(ctx context.Context, group *models.Group) error {
	var memberships, scopes int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockGroup(tx, group); err != nil {
			return err
		}

		result := tx.Where("group_id = ?", group.ID).Delete(&models.GroupMembership{})
		if result.Error != nil {
			return errors.Wrap(result.Error, "delete memberships")
		}
		memberships = result.RowsAffected

		result = tx.Where("group_id = ?", group.ID).Delete(&models.GroupScope{})
		if result.Error != nil {
			return errors.Wrap(result.Error, "delete scopes")
		}
		scopes = result.RowsAffected

		if err := tx.Delete(&models.Group{}, group.ID).Error; err != nil {
			return errors.Wrap(err, "delete group")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"pubid":       group.Pubid,
		"memberships": memberships,
		"scopes":      scopes,
	}).Info("group.deleted")
	return nil
}
