package groups

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mikepea/groupadmin/pkg/groupadmin/logging"
	"github.com/mikepea/groupadmin/pkg/groupadmin/models"
)

// userSet is a set of user IDs.
type userSet map[uint]struct{}

func newUserSet(ids ...uint) userSet {
	s := make(userSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// minus returns the IDs in s that are not in other, in ascending order.
func (s userSet) minus(other userSet) []uint {
	var out []uint
	for id := range s {
		if _, ok := other[id]; !ok {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// MembersService synchronizes group membership
type MembersService struct {
	db    *gorm.DB
	users UserFetcher
	log   logrus.FieldLogger
}

// NewMembersService creates a new group membership service
func NewMembersService(db *gorm.DB, users UserFetcher, log logrus.FieldLogger) *MembersService {
	return &MembersService{db: db, users: users, log: logging.OrDiscard(log)}
}

// AddMembers adds every referenced user that is not already a member.
// Existing members are never removed. All references are resolved before
// anything is written, so one unknown user leaves the group unchanged.
func (s *MembersService) AddMembers(ctx context.Context, group *models.Group, userids []string) error {
	if group == nil || group.ID == 0 {
		return errors.Wrap(models.ErrNotFound, "group")
	}

	target := newUserSet()
	for _, userid := range userids {
		user, err := s.users.Fetch(ctx, userid)
		if err != nil {
			return errors.Wrap(err, "resolve member")
		}
		target[user.ID] = struct{}{}
	}

	var added []uint
	members, err := s.apply(ctx, group, func(current userSet) (add, remove []uint) {
		added = target.minus(current)
		return added, nil
	})
	if err != nil {
		return err
	}
	group.Members = members

	s.log.WithFields(logrus.Fields{
		"pubid": group.Pubid,
		"added": len(added),
	}).Info("group.members.added")
	return nil
}

// UpdateMembers makes the group's member set equal to users. Members missing
// from users are removed, new ones are added, and the rest are not touched.
// Repeated users count once.
func (s *MembersService) UpdateMembers(ctx context.Context, group *models.Group, users []*models.User) error {
	if group == nil || group.ID == 0 {
		return errors.Wrap(models.ErrNotFound, "group")
	}

	target := newUserSet()
	for _, user := range users {
		if user == nil || user.ID == 0 {
			return errors.Wrap(models.ErrUserNotFound, "member")
		}
		target[user.ID] = struct{}{}
	}

	var added, removed []uint
	members, err := s.apply(ctx, group, func(current userSet) (add, remove []uint) {
		added, removed = target.minus(current), current.minus(target)
		return added, removed
	})
	if err != nil {
		return err
	}
	group.Members = members

	s.log.WithFields(logrus.Fields{
		"pubid":   group.Pubid,
		"added":   len(added),
		"removed": len(removed),
	}).Info("group.members.updated")
	return nil
}

// apply computes a diff against the stored member set and writes it in one
// transaction, returning the resulting memberships.
func (s *MembersService) apply(ctx context.Context, group *models.Group, diff func(current userSet) (add, remove []uint)) ([]models.GroupMembership, error) {
	var members []models.GroupMembership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockGroup(tx, group); err != nil {
			return err
		}

		var currentIDs []uint
		if err := tx.Model(&models.GroupMembership{}).Where("group_id = ?", group.ID).Pluck("user_id", &currentIDs).Error; err != nil {
			return errors.Wrap(err, "load members")
		}

		add, remove := diff(newUserSet(currentIDs...))

		if len(add) > 0 {
			var found int64
			if err := tx.Model(&models.User{}).Where("id IN ?", add).Count(&found).Error; err != nil {
				return errors.Wrap(err, "check members")
			}
			if int(found) != len(add) {
				return errors.Wrap(models.ErrUserNotFound, "member")
			}
		}

		if len(remove) > 0 {
			err := tx.Where("group_id = ? AND user_id IN ?", group.ID, remove).Delete(&models.GroupMembership{}).Error
			if err != nil {
				return errors.Wrap(err, "remove members")
			}
		}
		if len(add) > 0 {
			edges := make([]models.GroupMembership, len(add))
			for i, id := range add {
				edges[i] = models.GroupMembership{GroupID: group.ID, UserID: id}
			}
			if err := tx.Omit("User", "Group").Create(&edges).Error; err != nil {
				return errors.Wrap(err, "add members")
			}
		}

		return tx.Preload("User").Where("group_id = ?", group.ID).Order("id ASC").Find(&members).Error
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}
