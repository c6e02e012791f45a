package acl

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/user"
)

// Permissions
const (
	PermView   = "view"
	PermManage = "manage"
	PermDelete = "delete"
)

// Resource types
const (
	TypeAnnouncement = "announcement"
	TypePage         = "page"
	TypeModule       = "module"
	TypeQuiz         = "quiz"
	TypeAssignment   = "assignment"
	TypeDiscussion   = "discussion"
)

// Grantee types
const (
	GranteeRole = "role"
	GranteeUser = "user"
)

var (
	Permissions   = []string{PermView, PermManage, PermDelete}
	ResourceTypes = []string{TypeAnnouncement, TypePage, TypeModule, TypeQuiz, TypeAssignment, TypeDiscussion}

	// implied lists the permissions granted along with each permission.
	implied = map[string][]string{
		PermView:   {PermView},
		PermManage: {PermManage, PermView},
		PermDelete: {PermDelete, PermView},
	}
)

// Entry grants Permission on a course resource to a role or a single user.
// A role Grantee is either a course role (student, instructor) or a global user role (admin:, student:, ...).
// Role entries only reach members of the entry course; user entries also reach non-members.
type Entry struct {
	ID           string    `json:"id" db:"id"`
	CourseID     string    `json:"course_id" db:"course_id"`
	ResourceType string    `json:"resource_type" db:"resource_type"`
	ResourceID   string    `json:"resource_id" db:"resource_id"`
	GranteeType  string    `json:"grantee_type" db:"grantee_type"`
	Grantee      string    `json:"grantee" db:"grantee"`
	Permission   string    `json:"permission" db:"permission"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Grants reports whether the entry gives perm.
func (e Entry) Grants(perm string) bool {
	for _, p := range implied[e.Permission] {
		if p == perm {
			return true
		}
	}
	return false
}

// Matches reports whether the entry applies to sub.
func (e Entry) Matches(sub Subject) bool {
	switch e.GranteeType {
	case GranteeUser:
		return e.Grantee == sub.User.ID
	case GranteeRole:
		if sub.Membership.CourseID != e.CourseID || !sub.Membership.IsMember() {
			return false
		}
		if sub.Membership.Role != "" && e.Grantee == sub.Membership.Role {
			return true
		}
		return sub.User.HasRole(e.Grantee)
	}
	return false
}

// Resource describes the object an access decision is made on.
type Resource struct {
	Type      string
	ID        string
	CourseID  string
	Published bool
	OwnerID   string // author, when the resource has one
}

// Subject is the user asking for access along with their membership of the resource course.
type Subject struct {
	User       user.User
	Membership course.Membership
}

type NewEntry struct {
	ResourceType string `json:"resource_type" validate:"required,aclresource"`
	ResourceID   string `json:"resource_id" validate:"required,uuid"`
	GranteeType  string `json:"grantee_type" validate:"required,oneof=role user"`
	Grantee      string `json:"grantee" validate:"required"`
	Permission   string `json:"permission" validate:"required,aclperm"`
}

func (ne *NewEntry) Validate(validate *validator.Validate) error {
	ne.ResourceType = core.CleanString(ne.ResourceType, true /* lower */)
	ne.GranteeType = core.CleanString(ne.GranteeType, true /* lower */)
	ne.Grantee = core.CleanString(ne.Grantee)
	ne.Permission = core.CleanString(ne.Permission, true /* lower */)
	return validate.Struct(ne)
}
