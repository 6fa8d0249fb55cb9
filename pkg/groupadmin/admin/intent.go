package admin

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/mikepea/groupadmin/pkg/groupadmin/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// GroupIntent is the admin form for creating or editing a group
type GroupIntent struct {
	Name         string   `json:"name" validate:"required,min=3,max=25"`
	GroupType    string   `json:"group_type" validate:"required,oneof=open restricted"`
	Creator      string   `json:"creator"`
	Description  string   `json:"description" validate:"max=250"`
	Organization string   `json:"organization" validate:"required"`
	Origins      []string `json:"origins" validate:"dive,required"`
	Members      []string `json:"members" validate:"dive,required"`
	EnforceScope *bool    `json:"enforce_scope"`
}

// Validate trims the intent and checks it, returning the first problem
// found as a *models.ValidationError.
func (i *GroupIntent) Validate() error {
	i.Name = strings.TrimSpace(i.Name)
	i.Creator = strings.TrimSpace(i.Creator)
	i.Organization = strings.TrimSpace(i.Organization)
	for n := range i.Origins {
		i.Origins[n] = strings.TrimSpace(i.Origins[n])
	}
	for n := range i.Members {
		i.Members[n] = strings.TrimSpace(i.Members[n])
	}

	err := validate.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Wrap(err, "validate group intent")
	}
	fe := fieldErrs[0]
	// origins[2] -> origins
	field := strings.SplitN(fe.Field(), "[", 2)[0]
	return models.NewValidationError(field, validationMessage(fe))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return "is invalid"
	}
}

// Type returns the intent's group type
func (i *GroupIntent) Type() models.GroupType {
	return models.GroupType(i.GroupType)
}

// enforceScope defaults to true when the form leaves it out
func (i *GroupIntent) enforceScope() bool {
	return i.EnforceScope == nil || *i.EnforceScope
}

// GroupForm is a group rendered the way the admin form edits it
type GroupForm struct {
	Creator      string   `json:"creator"`
	Description  string   `json:"description"`
	GroupType    string   `json:"group_type"`
	Name         string   `json:"name"`
	Members      []string `json:"members"`
	Organization string   `json:"organization"`
	Origins      []string `json:"origins"`
	EnforceScope bool     `json:"enforce_scope"`
}

// newGroupForm expects the group's creator, organization, scopes and
// member users to be loaded.
func newGroupForm(group *models.Group) GroupForm {
	form := GroupForm{
		Description:  group.Description,
		GroupType:    string(group.Type),
		Name:         group.Name,
		Members:      []string{},
		Organization: group.Organization.Pubid,
		Origins:      group.Origins(),
		EnforceScope: group.EnforceScope,
	}
	if group.Creator != nil {
		form.Creator = group.Creator.Username
	}
	for _, user := range group.MemberUsers() {
		form.Members = append(form.Members, user.Username)
	}
	return form
}
