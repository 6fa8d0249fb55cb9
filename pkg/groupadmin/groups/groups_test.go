package groups

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mikepea/groupadmin/pkg/groupadmin/models"
	"github.com/mikepea/groupadmin/pkg/groupadmin/users"
)

const testAuthority = "foo.com"

var zeroTime time.Time

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "Failed to connect to test database")
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	user := &models.User{Username: username, Authority: testAuthority, Email: username + "@example.com"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestOrg(t *testing.T, db *gorm.DB, name string) *models.Organization {
	org := &models.Organization{Name: name, Authority: testAuthority}
	require.NoError(t, db.Create(org).Error)
	return org
}

// createTestGroup inserts a group directly, bypassing the services.
func createTestGroup(t *testing.T, db *gorm.DB, name string, created time.Time) *models.Group {
	org := createTestOrg(t, db, name+" org")
	group := &models.Group{
		Name:           name,
		Type:           models.GroupTypeOpen,
		Authority:      testAuthority,
		OrganizationID: org.ID,
		CreatedAt:      created,
	}
	require.NoError(t, db.Create(group).Error)
	return group
}

func newResolver(db *gorm.DB) *users.Resolver {
	return users.NewResolver(db, testAuthority)
}

func names(groups []models.Group) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Name
	}
	return out
}

func memberIDs(t *testing.T, db *gorm.DB, group *models.Group) []uint {
	var ids []uint
	require.NoError(t, db.Model(&models.GroupMembership{}).Where("group_id = ?", group.ID).Order("user_id").Pluck("user_id", &ids).Error)
	return ids
}

func TestListSortedByCreatedDesc(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	createTestGroup(t, db, "Aug 2017", time.Date(2017, 8, 2, 0, 0, 0, 0, time.UTC))
	createTestGroup(t, db, "Feb 2015", time.Date(2015, 2, 1, 0, 0, 0, 0, time.UTC))
	createTestGroup(t, db, "Now", time.Time{})
	createTestGroup(t, db, "Feb 2013", time.Date(2013, 2, 1, 0, 0, 0, 0, time.UTC))

	groups, err := repo.List(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Now", "Aug 2017", "Feb 2015", "Feb 2013"}, names(groups))
}

func TestListTieBreakIsDeterministic(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	same := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	createTestGroup(t, db, "first", same)
	createTestGroup(t, db, "second", same)
	createTestGroup(t, db, "third", same)

	groups, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, names(groups))
}

func TestListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	createTestGroup(t, db, "BioPub", time.Time{})
	createTestGroup(t, db, "ChemPub", time.Time{})
	createTestGroup(t, db, "Public", time.Time{})
	createTestGroup(t, db, "Émile Lab", time.Time{})
	createTestGroup(t, db, "Ölgruppe", time.Time{})

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"BioPub", "ChemPub", "Public", "Émile Lab", "Ölgruppe"}},
		{"BioPub", []string{"BioPub"}},
		{"ChemPub", []string{"ChemPub"}},
		{"chem", []string{"ChemPub"}},
		{"PUB", []string{"BioPub", "ChemPub", "Public"}},
		{"%", nil},
		{"_", nil},
		{"émile", []string{"Émile Lab"}},
		{"ÉMILE LAB", []string{"Émile Lab"}},
		{"ölg", []string{"Ölgruppe"}},
		{" ", []string{"Émile Lab"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			groups, err := repo.List(context.Background(), tt.query)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, names(groups))
		})
	}
}

func TestListPagePaginatesWithoutResorting(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		createTestGroup(t, db, name, base.Add(time.Duration(i)*time.Hour))
	}

	all, err := repo.List(context.Background(), "")
	require.NoError(t, err)

	var paged []models.Group
	for offset := 0; offset < 6; offset += 2 {
		page, total, err := repo.ListPage(context.Background(), ListParams{Offset: offset, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		paged = append(paged, page...)
	}

	assert.Equal(t, names(all), names(paged))
	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, names(paged))
}

func TestFindByPubid(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	group := createTestGroup(t, db, "BioPub", time.Time{})
	db.Create(&models.GroupScope{GroupID: group.ID, Origin: "http://example.com"})

	found, err := repo.FindByPubid(context.Background(), group.Pubid)
	require.NoError(t, err)
	assert.Equal(t, group.ID, found.ID)
	assert.Equal(t, "BioPub org", found.Organization.Name)
	assert.Equal(t, []string{"http://example.com"}, found.Origins())
	assert.Nil(t, found.Creator)

	_, err = repo.FindByPubid(context.Background(), "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestAnnotationCount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	group := createTestGroup(t, db, "BioPub", time.Time{})
	other := createTestGroup(t, db, "ChemPub", time.Time{})
	db.Create(&models.Annotation{Groupid: group.Pubid, Userid: "acct:phil@foo.com"})
	db.Create(&models.Annotation{Groupid: group.Pubid, Userid: "acct:sue@foo.com"})
	db.Create(&models.Annotation{Groupid: other.Pubid, Userid: "acct:sue@foo.com"})

	count, err := repo.AnnotationCount(context.Background(), group.Pubid)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
