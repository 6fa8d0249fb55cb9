package admin

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mikepea/groupadmin/pkg/groupadmin/auth"
	"github.com/mikepea/groupadmin/pkg/groupadmin/groups"
	"github.com/mikepea/groupadmin/pkg/groupadmin/logging"
	"github.com/mikepea/groupadmin/pkg/groupadmin/models"
	"github.com/mikepea/groupadmin/pkg/groupadmin/organizations"
	"github.com/mikepea/groupadmin/pkg/groupadmin/users"
)

const maxPageSize = 1000

// AnnotationCounter counts the annotations made in a group
type AnnotationCounter interface {
	AnnotationCount(ctx context.Context, pubid string) (int64, error)
}

// Options configures the admin handler
type Options struct {
	// DefaultAuthority is used for bare usernames when the caller carries no authority
	DefaultAuthority string
	// PageSize is the index page size when the request does not set one
	PageSize int
}

// Handler serves the group administration views
type Handler struct {
	groups      *groups.Repository
	orgs        *organizations.Directory
	users       *users.Resolver
	creator     *groups.CreateService
	updater     *groups.UpdateService
	members     *groups.MembersService
	deleter     *groups.DeleteService
	annotations AnnotationCounter
	pageSize    int
	log         logrus.FieldLogger
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB, opts Options, log logrus.FieldLogger) *Handler {
	log = logging.OrDiscard(log)
	if opts.PageSize < 1 {
		opts.PageSize = 100
	}

	resolver := users.NewResolver(db, opts.DefaultAuthority)
	repo := groups.NewRepository(db)
	return &Handler{
		groups:      repo,
		orgs:        organizations.NewDirectory(db, opts.DefaultAuthority, log),
		users:       resolver,
		creator:     groups.NewCreateService(db, resolver, log),
		updater:     groups.NewUpdateService(db, log),
		members:     groups.NewMembersService(db, resolver, log),
		deleter:     groups.NewDeleteService(db, log),
		annotations: repo,
		pageSize:    opts.PageSize,
		log:         log,
	}
}

// RegisterRoutes registers admin routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/groups", h.Index)
	r.POST("/groups", h.CreateGroup)
	r.GET("/groups/:pubid", h.ReadGroup)
	r.PUT("/groups/:pubid", h.UpdateGroup)
	r.DELETE("/groups/:pubid", h.DeleteGroup)
	r.GET("/organizations", h.ListOrganizations)
}

// GroupSummary represents a group in the admin index
type GroupSummary struct {
	Pubid        string `json:"pubid"`
	Name         string `json:"name"`
	GroupType    string `json:"group_type"`
	Authority    string `json:"authority"`
	Organization string `json:"organization"`
	Creator      string `json:"creator"`
	MemberCount  int    `json:"member_count"`
	CreatedAt    string `json:"created_at"`
}

// IndexResponse is one page of the admin group index
type IndexResponse struct {
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Results  []GroupSummary `json:"results"`
}

// GroupResponse is the admin form of a group plus read-only details
type GroupResponse struct {
	GroupForm
	Pubid           string `json:"pubid"`
	GroupName       string `json:"group_name"`
	MemberCount     int    `json:"member_count"`
	AnnotationCount int64  `json:"annotation_count"`
}

// OrganizationResponse represents an organization in admin responses
type OrganizationResponse struct {
	Pubid     string `json:"pubid"`
	Name      string `json:"name"`
	Authority string `json:"authority"`
	IsDefault bool   `json:"is_default"`
}

// Index lists groups, newest first
// @Summary List groups
// @Description Page through all groups, optionally filtered by name
// @Tags admin
// @Produce json
// @Param q query string false "Name filter"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} IndexResponse
// @Security BearerAuth
// @Router /admin/groups [get]
func (h *Handler) Index(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
		return
	}
	pageSize, err := queryInt(c, "page_size", h.pageSize)
	if err != nil || pageSize < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page size"})
		return
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page > math.MaxInt/pageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
		return
	}

	list, total, err := h.groups.ListPage(h.requestContext(c), groups.ListParams{
		Filter: strings.TrimSpace(c.Query("q")),
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	results := make([]GroupSummary, len(list))
	for i := range list {
		g := &list[i]
		results[i] = GroupSummary{
			Pubid:        g.Pubid,
			Name:         g.Name,
			GroupType:    string(g.Type),
			Authority:    g.Authority,
			Organization: g.Organization.Pubid,
			MemberCount:  len(g.Members),
			CreatedAt:    g.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if g.Creator != nil {
			results[i].Creator = g.Creator.Username
		}
	}

	c.JSON(http.StatusOK, IndexResponse{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Results:  results,
	})
}

// CreateGroup creates a group from the admin form
// @Summary Create a group
// @Tags admin
// @Accept json
// @Produce json
// @Param request body GroupIntent true "Group"
// @Success 201 {object} GroupResponse
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /admin/groups [post]
func (h *Handler) CreateGroup(c *gin.Context) {
	var intent GroupIntent
	if err := c.ShouldBindJSON(&intent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := intent.Validate(); err != nil {
		h.writeError(c, err)
		return
	}
	ctx := h.requestContext(c)

	// Any organization may be picked on create
	orgs, err := h.orgs.ListOrganizations(ctx, "")
	if err != nil {
		h.writeError(c, err)
		return
	}
	org, ok := organizations.IndexByPubid(orgs)[intent.Organization]
	if !ok {
		h.writeError(c, withField("organization", models.ErrInvalidOrganization))
		return
	}

	creator, err := h.users.Fetch(ctx, intent.Creator)
	if err != nil {
		h.writeError(c, withField("creator", err))
		return
	}
	// Resolve members up front so an unknown one creates nothing
	members, err := h.users.FetchAll(ctx, intent.Members)
	if err != nil {
		h.writeError(c, withField("members", err))
		return
	}

	params := groups.CreateParams{
		Name:         intent.Name,
		Userid:       creator.Userid(),
		Description:  intent.Description,
		Origins:      intent.Origins,
		Organization: org,
		EnforceScope: intent.enforceScope(),
	}
	var group *models.Group
	if intent.Type() == models.GroupTypeRestricted {
		group, err = h.creator.CreateRestrictedGroup(ctx, params)
	} else {
		group, err = h.creator.CreateOpenGroup(ctx, params)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	userids := make([]string, len(members))
	for i, m := range members {
		userids[i] = m.Userid()
	}
	if err := h.members.AddMembers(ctx, group, userids); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newGroupResponse(group, 0))
}

// ReadGroup returns a group's admin form
// @Summary Get a group
// @Tags admin
// @Produce json
// @Param pubid path string true "Group pubid"
// @Success 200 {object} GroupResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /admin/groups/{pubid} [get]
func (h *Handler) ReadGroup(c *gin.Context) {
	ctx := h.requestContext(c)
	group, err := h.groups.FindByPubid(ctx, c.Param("pubid"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.respondGroup(ctx, c, http.StatusOK, group)
}

// UpdateGroup applies the admin form to an existing group
// @Summary Update a group
// @Tags admin
// @Accept json
// @Produce json
// @Param pubid path string true "Group pubid"
// @Param request body GroupIntent true "Group"
// @Success 200 {object} GroupResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /admin/groups/{pubid} [put]
func (h *Handler) UpdateGroup(c *gin.Context) {
	ctx := h.requestContext(c)
	group, err := h.groups.FindByPubid(ctx, c.Param("pubid"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	var intent GroupIntent
	if err := c.ShouldBindJSON(&intent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := intent.Validate(); err != nil {
		h.writeError(c, err)
		return
	}
	if intent.Type() != group.Type {
		h.writeError(c, models.NewValidationError("group_type", "cannot be changed"))
		return
	}

	// Only organizations in the group's own authority are offered on edit
	orgs, err := h.orgs.ListOrganizations(ctx, group.Authority)
	if err != nil {
		h.writeError(c, err)
		return
	}
	org, ok := organizations.IndexByPubid(orgs)[intent.Organization]
	if !ok {
		h.writeError(c, withField("organization", models.ErrInvalidOrganization))
		return
	}

	var creator *models.User
	if intent.Creator != "" {
		if creator, err = h.users.Fetch(ctx, intent.Creator); err != nil {
			h.writeError(c, withField("creator", err))
			return
		}
	}
	members, err := h.users.FetchAll(ctx, intent.Members)
	if err != nil {
		h.writeError(c, withField("members", err))
		return
	}

	group, err = h.updater.Update(ctx, group, groups.UpdateParams{
		Organization: org,
		Creator:      creator,
		Description:  intent.Description,
		Name:         intent.Name,
		Origins:      intent.Origins,
		EnforceScope: intent.enforceScope(),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.members.UpdateMembers(ctx, group, members); err != nil {
		h.writeError(c, err)
		return
	}

	h.respondGroup(ctx, c, http.StatusOK, group)
}

// DeleteGroup deletes a group with its scopes and memberships
// @Summary Delete a group
// @Tags admin
// @Param pubid path string true "Group pubid"
// @Success 204
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /admin/groups/{pubid} [delete]
func (h *Handler) DeleteGroup(c *gin.Context) {
	ctx := h.requestContext(c)
	group, err := h.groups.FindByPubid(ctx, c.Param("pubid"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.deleter.Delete(ctx, group); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListOrganizations lists organizations, the default one first
// @Summary List organizations
// @Tags admin
// @Produce json
// @Param authority query string false "Authority filter"
// @Success 200 {array} OrganizationResponse
// @Security BearerAuth
// @Router /admin/organizations [get]
func (h *Handler) ListOrganizations(c *gin.Context) {
	orgs, err := h.orgs.ListOrganizations(h.requestContext(c), c.Query("authority"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	responses := make([]OrganizationResponse, len(orgs))
	for i, o := range orgs {
		responses[i] = OrganizationResponse{
			Pubid:     o.Pubid,
			Name:      o.Name,
			Authority: o.Authority,
			IsDefault: o.IsDefault,
		}
	}
	c.JSON(http.StatusOK, responses)
}

func (h *Handler) respondGroup(ctx context.Context, c *gin.Context, status int, group *models.Group) {
	count, err := h.annotations.AnnotationCount(ctx, group.Pubid)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, newGroupResponse(group, count))
}

func newGroupResponse(group *models.Group, annotationCount int64) GroupResponse {
	return GroupResponse{
		GroupForm:       newGroupForm(group),
		Pubid:           group.Pubid,
		GroupName:       group.Name,
		MemberCount:     len(group.Members),
		AnnotationCount: annotationCount,
	}
}

// requestContext carries the caller's authority down to user resolution
func (h *Handler) requestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if authority, ok := auth.GetAuthority(c); ok {
		ctx = users.WithAuthority(ctx, authority)
	}
	return ctx
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// fieldError ties a lookup failure to the form field it came from
type fieldError struct {
	field string
	err   error
}

func withField(field string, err error) error {
	return &fieldError{field: field, err: err}
}

func (e *fieldError) Error() string { return e.field + ": " + e.err.Error() }

func (e *fieldError) Unwrap() error { return e.err }

func (h *Handler) writeError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	var fe *fieldError
	if errors.As(err, &fe) {
		body["field"] = fe.field
	}

	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		body["error"] = verr.Message
		if verr.Field != "" {
			body["field"] = verr.Field
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
	case errors.Is(err, models.ErrUserNotFound), errors.Is(err, models.ErrInvalidOrganization):
		c.JSON(http.StatusBadRequest, body)
	default:
		userid, _ := auth.GetUserid(c)
		h.log.WithError(err).WithFields(logrus.Fields{
			"path":   c.FullPath(),
			"userid": userid,
		}).Error("admin request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
