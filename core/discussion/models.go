package discussion

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core"
)

type Discussion struct {
	ID          string    `json:"id" db:"id"`
	CourseID    string    `json:"course_id" db:"course_id"`
	AuthorID    string    `json:"author_id" db:"author_id"`
	Title       string    `json:"title" db:"title"`
	Body        string    `json:"body" db:"body"`
	IsPinned    bool      `json:"is_pinned" db:"is_pinned"`
	IsLocked    bool      `json:"is_locked" db:"is_locked"`
	IsPublished bool      `json:"is_published" db:"is_published"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Reply struct {
	ID           string      `json:"id" db:"id"`
	DiscussionID string      `json:"discussion_id" db:"discussion_id"`
	AuthorID     string      `json:"author_id" db:"author_id"`
	ParentID     null.String `json:"parent_id" db:"parent_id"`
	Body         string      `json:"body" db:"body"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

type NewDiscussion struct {
	Title       string `json:"title" validate:"required,max=255"`
	Body        string `json:"body" validate:"required"`
	IsPublished *bool  `json:"is_published"` // true when omitted
}

func (nd *NewDiscussion) Validate(validate *validator.Validate) error {
	nd.Title = core.CleanString(nd.Title)
	nd.Body = core.CleanString(nd.Body)
	return validate.Struct(nd)
}

type UpdateDiscussion struct {
	Title       string `json:"title" validate:"omitempty,max=255"`
	Body        string `json:"body"`
	IsPublished *bool  `json:"is_published"`
	// moderation, instructors only
	IsPinned *bool `json:"is_pinned"`
	IsLocked *bool `json:"is_locked"`
}

func (ud *UpdateDiscussion) Validate(validate *validator.Validate) error {
	ud.Title = core.CleanString(ud.Title)
	ud.Body = core.CleanString(ud.Body)
	return validate.Struct(ud)
}

// IsModeration reports whether ud touches pin or lock flags.
func (ud *UpdateDiscussion) IsModeration() bool { return ud.IsPinned != nil || ud.IsLocked != nil }

type NewReply struct {
	Body     string `json:"body" validate:"required"`
	ParentID string `json:"parent_id" validate:"omitempty,uuid"`
}

func (nr *NewReply) Validate(validate *validator.Validate) error {
	nr.Body = core.CleanString(nr.Body)
	return validate.Struct(nr)
}

type UpdateReply struct {
	Body string `json:"body" validate:"required"`
}

func (ur *UpdateReply) Validate(validate *validator.Validate) error {
	ur.Body = core.CleanString(ur.Body)
	return validate.Struct(ur)
}

// Orderable lists the fields discussions can be ordered by.
var Orderable = []string{"title", "is_locked", "created_at", "updated_at"}
