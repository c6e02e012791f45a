package course

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/user"
)

// Enrollment roles
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
)

// Module item types
const (
	ItemPage       = "page"
	ItemAssignment = "assignment"
	ItemQuiz       = "quiz"
	ItemDiscussion = "discussion"
)

var (
	EnrollmentRoles = []string{RoleStudent, RoleInstructor}
	ItemTypes       = []string{ItemPage, ItemAssignment, ItemQuiz, ItemDiscussion}

	nonSlugRegex = regexp.MustCompile(`[^a-z0-9]+`)
)

type Course struct {
	ID           string    `json:"id" db:"id"`
	Code         string    `json:"code" db:"code"`
	Title        string    `json:"title" db:"title"`
	Description  string    `json:"description" db:"description"`
	InstructorID string    `json:"instructor_id" db:"instructor_id"`
	IsPublished  bool      `json:"is_published" db:"is_published"`
	StartsAt     null.Time `json:"starts_at" db:"starts_at"`
	EndsAt       null.Time `json:"ends_at" db:"ends_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type Enrollment struct {
	ID        string    `json:"id" db:"id"`
	CourseID  string    `json:"course_id" db:"course_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Membership is what a user is to a course.
type Membership struct {
	CourseID string `json:"course_id"`
	UserID   string `json:"user_id"`
	Role     string `json:"role,omitempty"` // empty when not enrolled
	IsOwner  bool   `json:"is_owner"`
}

func (m Membership) IsMember() bool { return m.IsOwner || m.Role != "" }

// IsInstructor reports whether the user teaches the course: its owner or an instructor enrollment.
func (m Membership) IsInstructor() bool { return m.IsOwner || m.Role == RoleInstructor }

func (m Membership) IsStudent() bool { return !m.IsOwner && m.Role == RoleStudent }

type Module struct {
	ID          string    `json:"id" db:"id"`
	CourseID    string    `json:"course_id" db:"course_id"`
	Title       string    `json:"title" db:"title"`
	Position    int       `json:"position" db:"position"`
	IsPublished bool      `json:"is_published" db:"is_published"`
	UnlockAt    null.Time `json:"unlock_at" db:"unlock_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// IsUnlocked reports whether module content is reachable at t.
func (m Module) IsUnlocked(t time.Time) bool {
	return !m.UnlockAt.Valid || !t.Before(m.UnlockAt.Time)
}

type ModuleItem struct {
	ID       string `json:"id" db:"id"`
	ModuleID string `json:"module_id" db:"module_id"`
	ItemType string `json:"item_type" db:"item_type"`
	ItemID   string `json:"item_id" db:"item_id"`
	Position int    `json:"position" db:"position"`
}

type Page struct {
	ID          string    `json:"id" db:"id"`
	CourseID    string    `json:"course_id" db:"course_id"`
	Title       string    `json:"title" db:"title"`
	Slug        string    `json:"slug" db:"slug"`
	Body        string    `json:"body" db:"body"`
	IsPublished bool      `json:"is_published" db:"is_published"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Slugify lowers s and joins its alphanumeric runs with hyphens.
func Slugify(s string) string {
	return strings.Trim(nonSlugRegex.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Code         string    `json:"code" validate:"required,max=32,alphanum_"`
	Title        string    `json:"title" validate:"required,max=255"`
	Description  string    `json:"description"`
	InstructorID string    `json:"instructor_id" validate:"omitempty,uuid"`
	IsPublished  bool      `json:"is_published"`
	StartsAt     null.Time `json:"starts_at"`
	EndsAt       null.Time `json:"ends_at"`
}

func (nc *NewCourse) Validate(validate *validator.Validate, creator user.User) error {
	nc.Code = strings.ToUpper(core.CleanString(nc.Code))
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	if nc.InstructorID == "" {
		nc.InstructorID = creator.ID
	}
	if err := validate.Struct(nc); err != nil {
		return err
	}
	return core.CheckTimeRange("ends_at", nc.StartsAt, nc.EndsAt)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Code         string    `json:"code" validate:"omitempty,max=32,alphanum_"`
	Title        string    `json:"title" validate:"omitempty,max=255"`
	Description  *string   `json:"description"`
	InstructorID string    `json:"instructor_id" validate:"omitempty,uuid"`
	IsPublished  *bool     `json:"is_published"`
	StartsAt     null.Time `json:"starts_at"`
	EndsAt       null.Time `json:"ends_at"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Code = strings.ToUpper(core.CleanString(uc.Code))
	uc.Title = core.CleanString(uc.Title)
	if err := validate.Struct(uc); err != nil {
		return err
	}
	return core.CheckTimeRange("ends_at", uc.StartsAt, uc.EndsAt)
}

type NewEnrollment struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Role   string `json:"role" validate:"omitempty,oneof=student instructor"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.Role = core.CleanString(ne.Role, true /* lower */)
	if ne.Role == "" {
		ne.Role = RoleStudent
	}
	return validate.Struct(ne)
}

type NewModule struct {
	Title       string    `json:"title" validate:"required,max=255"`
	IsPublished bool      `json:"is_published"`
	UnlockAt    null.Time `json:"unlock_at"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	return validate.Struct(nm)
}

type UpdateModule struct {
	Title       string    `json:"title" validate:"omitempty,max=255"`
	Position    *int      `json:"position" validate:"omitempty,min=0"`
	IsPublished *bool     `json:"is_published"`
	UnlockAt    null.Time `json:"unlock_at"`
}

func (um *UpdateModule) Validate(validate *validator.Validate) error {
	um.Title = core.CleanString(um.Title)
	return validate.Struct(um)
}

type NewModuleItem struct {
	ItemType string `json:"item_type" validate:"required,oneof=page assignment quiz discussion"`
	ItemID   string `json:"item_id" validate:"required,uuid"`
}

func (ni *NewModuleItem) Validate(validate *validator.Validate) error {
	ni.ItemType = core.CleanString(ni.ItemType, true /* lower */)
	return validate.Struct(ni)
}

type ReorderItems struct {
	ItemIDs []string `json:"item_ids" validate:"required,dive,uuid"`
}

func (ri *ReorderItems) Validate(validate *validator.Validate) error { return validate.Struct(ri) }

type NewPage struct {
	Title       string `json:"title" validate:"required,max=255"`
	Slug        string `json:"slug" validate:"required,max=255,slug"`
	Body        string `json:"body"`
	IsPublished bool   `json:"is_published"`
}

func (np *NewPage) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Slug = core.CleanString(np.Slug, true /* lower */)
	if np.Slug == "" {
		np.Slug = Slugify(np.Title)
	}
	return validate.Struct(np)
}

type UpdatePage struct {
	Title       string  `json:"title" validate:"omitempty,max=255"`
	Slug        string  `json:"slug" validate:"omitempty,max=255,slug"`
	Body        *string `json:"body"`
	IsPublished *bool   `json:"is_published"`
}

func (up *UpdatePage) Validate(validate *validator.Validate) error {
	up.Title = core.CleanString(up.Title)
	up.Slug = core.CleanString(up.Slug, true /* lower */)
	return validate.Struct(up)
}

type QueryFilter struct {
	Search      string `query:"search"`
	IsPublished *bool  `query:"is_published"`
	// MemberID restricts results to courses taught by or enrolled in by this user.
	MemberID string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Orderable lists the fields courses can be ordered by.
var Orderable = []string{"code", "title", "is_published", "starts_at", "ends_at", "created_at", "updated_at"}
