package groups

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikepea/groupadmin/pkg/groupadmin/models"
)

func TestUserSetMinus(t *testing.T) {
	a := newUserSet(1, 2, 3, 5)
	b := newUserSet(2, 4, 5)

	assert.Equal(t, []uint{1, 3}, a.minus(b))
	assert.Equal(t, []uint{4}, b.minus(a))
	assert.Empty(t, a.minus(a))
}

func TestRestrictedGroupMembershipScenario(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	creator := createTestUser(t, db, "creator")
	u1 := createTestUser(t, db, "u1")
	u2 := createTestUser(t, db, "u2")
	o1 := createTestOrg(t, db, "O1")

	group, err := NewCreateService(db, newResolver(db), nil).CreateRestrictedGroup(ctx, CreateParams{
		Name:         "BioPub",
		Userid:       creator.Userid(),
		Origins:      []string{"http://example.com"},
		Organization: o1,
	})
	require.NoError(t, err)
	svc := NewMembersService(db, newResolver(db), nil)

	require.NoError(t, svc.UpdateMembers(ctx, group, []*models.User{u1, u2}))
	assert.Equal(t, []uint{u1.ID, u2.ID}, memberIDs(t, db, group))
	assert.Len(t, group.Members, 2)

	require.NoError(t, svc.UpdateMembers(ctx, group, []*models.User{u1}))
	assert.Equal(t, []uint{u1.ID}, memberIDs(t, db, group))
	require.Len(t, group.Members, 1)
	assert.Equal(t, "u1", group.Members[0].User.Username)
}

func TestUpdateMembersIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	group := createTestGroup(t, db, "BioPub", zeroTime)
	u1 := createTestUser(t, db, "u1")
	u2 := createTestUser(t, db, "u2")
	svc := NewMembersService(db, newResolver(db), nil)

	require.NoError(t, svc.UpdateMembers(ctx, group, []*models.User{u1, u2}))
	var before []models.GroupMembership
	db.Where("group_id = ?", group.ID).Order("id").Find(&before)

	require.NoError(t, svc.UpdateMembers(ctx, group, []*models.User{u2, u1}))
	var after []models.GroupMembership
	db.Where("group_id = ?", group.ID).Order("id").Find(&after)

	assert.Equal(t, []uint{u1.ID, u2.ID}, memberIDs(t, db, group))
	require.Len(t, after, 2)
	assert.Equal(t, before[0].ID, after[0].ID, "untouched members keep their edge")
	assert.Equal(t, before[1].ID, after[1].ID, "untouched members keep their edge")
}

func TestUpdateMembersCollapsesDuplicates(t *testing.T) {
	db := setupTestDB(t)
	group := createTestGroup(t, db, "BioPub", zeroTime)
	u1 := createTestUser(t, db, "u1")
	svc := NewMembersService(db, newResolver(db), nil)

	require.NoError(t, svc.UpdateMembers(context.Background(), group, []*models.User{u1, u1}))
	assert.Equal(t, []uint{u1.ID}, memberIDs(t, db, group))
}

func TestUpdateMembersToEmptySet(t *testing.T) {
	db := setupTestDB(t)
	group := createTestGroup(t, db, "BioPub", zeroTime)
	u1 := createTestUser(t, db, "u1")
	svc := NewMembersService(db, newResolver(db), nil)

	require.NoError(t, svc.UpdateMembers(context.Background(), group, []*models.User{u1}))
	require.NoError(t, svc.UpdateMembers(context.Background(), group, nil))
	assert.Empty(t, memberIDs(t, db, group))
	assert.Empty(t, group.Members)
}

func TestUpdateMembersRejectsUnresolvedUsers(t *testing.T) {
	db := setupTestDB(t)
	group := createTestGroup(t, db, "BioPub", zeroTime)
	u1 := createTestUser(t, db, "u1")
	u2 := createTestUser(t, db, "u2")
	svc := NewMembersService(db, newResolver(db), nil)
	require.NoError(t, svc.UpdateMembers(context.Background(), group, []*models.User{u1}))

	for _, bad := range [][]*models.User{
		{u2, nil},
		{u2, {Username: "unsaved"}},
		{u2, {ID: 999, Username: "deleted"}},
	} {
		err := svc.UpdateMembers(context.Background(), group, bad)
		assert.True(t, errors.Is(err, models.ErrUserNotFound), "got %v", err)
		assert.Equal(t, []uint{u1.ID}, memberIDs(t, db, group), "no partial change")
	}
}

func TestAddMembersNeverRemoves(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	group := createTestGroup(t, db, "BioPub", zeroTime)
	u1 := createTestUser(t, db, "u1")
	u2 := createTestUser(t, db, "u2")
	u3 := createTestUser(t, db, "u3")
	svc := NewMembersService(db, newResolver(db), nil)

	require.NoError(t, svc.AddMembers(ctx, group, []string{u1.Userid()}))
	require.NoError(t, svc.AddMembers(ctx, group, []string{u2.Userid(), "u3", u2.Username}))
	assert.Equal(t, []uint{u1.ID, u2.ID, u3.ID}, memberIDs(t, db, group))

	require.NoError(t, svc.AddMembers(ctx, group, nil))
	require.NoError(t, svc.AddMembers(ctx, group, []string{u1.Userid()}))
	assert.Equal(t, []uint{u1.ID, u2.ID, u3.ID}, memberIDs(t, db, group))
	assert.Len(t, group.Members, 3)
}

func TestAddMembersFailsWholeOperationOnUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	group := createTestGroup(t, db, "BioPub", zeroTime)
	u1 := createTestUser(t, db, "u1")
	svc := NewMembersService(db, newResolver(db), nil)

	err := svc.AddMembers(context.Background(), group, []string{u1.Userid(), "acct:ghost@foo.com"})

	assert.True(t, errors.Is(err, models.ErrUserNotFound), "got %v", err)
	assert.Empty(t, memberIDs(t, db, group))
}

func TestMembersOnMissingGroup(t *testing.T) {
	db := setupTestDB(t)
	u1 := createTestUser(t, db, "u1")
	svc := NewMembersService(db, newResolver(db), nil)
	gone := &models.Group{ID: 42, Pubid: "gone"}

	assert.True(t, errors.Is(svc.AddMembers(context.Background(), gone, []string{u1.Userid()}), models.ErrNotFound))
	assert.True(t, errors.Is(svc.UpdateMembers(context.Background(), gone, []*models.User{u1}), models.ErrNotFound))

	var count int64
	db.Model(&models.GroupMembership{}).Count(&count)
	assert.Zero(t, count)
}
