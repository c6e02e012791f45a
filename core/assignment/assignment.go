package assignment

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrClosed             = errors.New("assignment is closed for submissions")
	ErrUnpublished        = errors.New("assignment is not published")
)

type Assignment struct {
	ID          string    `json:"id" db:"id"`
	CourseID    string    `json:"course_id" db:"course_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Points      float64   `json:"points" db:"points"`
	DueAt       null.Time `json:"due_at" db:"due_at"`
	LockAt      null.Time `json:"lock_at" db:"lock_at"`
	AllowLate   bool      `json:"allow_late" db:"allow_late"`
	IsPublished bool      `json:"is_published" db:"is_published"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// AcceptsAt reports whether a submission made at t is accepted, and whether it is late.
func (a Assignment) AcceptsAt(t time.Time) (ok, late bool) {
	if a.LockAt.Valid && !t.Before(a.LockAt.Time) {
		return false, false
	}
	late = a.DueAt.Valid && t.After(a.DueAt.Time)
	if late && !a.AllowLate {
		return false, true
	}
	return true, late
}

type Submission struct {
	ID           string       `json:"id" db:"id"`
	AssignmentID string       `json:"assignment_id" db:"assignment_id"`
	StudentID    string       `json:"student_id" db:"student_id"`
	Body         string       `json:"body" db:"body"`
	URL          string       `json:"url" db:"url"`
	SubmittedAt  time.Time    `json:"submitted_at" db:"submitted_at"`
	IsLate       bool         `json:"is_late" db:"is_late"`
	Attempt      int          `json:"attempt" db:"attempt"`
	Score        null.Float64 `json:"score" db:"score"`
	Feedback     string       `json:"feedback" db:"feedback"`
	GraderID     null.String  `json:"grader_id" db:"grader_id"`
	GradedAt     null.Time    `json:"graded_at" db:"graded_at"`
}

func (s Submission) IsGraded() bool { return s.Score.Valid }

type NewAssignment struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description"`
	Points      float64   `json:"points" validate:"gte=0"`
	DueAt       null.Time `json:"due_at"`
	LockAt      null.Time `json:"lock_at"`
	AllowLate   bool      `json:"allow_late"`
	IsPublished bool      `json:"is_published"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	if err := validate.Struct(na); err != nil {
		return err
	}
	return core.CheckTimeRange("lock_at", na.DueAt, na.LockAt)
}

type UpdateAssignment struct {
	Title       string    `json:"title" validate:"omitempty,max=255"`
	Description *string   `json:"description"`
	Points      *float64  `json:"points" validate:"omitempty,gte=0"`
	DueAt       null.Time `json:"due_at"`
	LockAt      null.Time `json:"lock_at"`
	AllowLate   *bool     `json:"allow_late"`
	IsPublished *bool     `json:"is_published"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanString(ua.Title)
	return validate.Struct(ua)
}

type NewSubmission struct {
	Body string `json:"body" validate:"required_without=URL"`
	URL  string `json:"url" validate:"omitempty,url"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.Body = core.CleanString(ns.Body)
	ns.URL = core.CleanString(ns.URL)
	return validate.Struct(ns)
}

type GradeSubmission struct {
	Score    *float64 `json:"score" validate:"required,gte=0"`
	Feedback string   `json:"feedback"`
}

func (gs *GradeSubmission) Validate(validate *validator.Validate) error {
	gs.Feedback = core.CleanString(gs.Feedback)
	return validate.Struct(gs)
}

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, id string) error
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		// QueryAssignments lists a course assignments by due date, undated last.
		QueryAssignments(ctx context.Context, courseID string) ([]Assignment, error)

		// SaveSubmission inserts or replaces the student submission of an assignment.
		SaveSubmission(ctx context.Context, s Submission) (Submission, error)
		UpdateSubmission(ctx context.Context, s Submission) (Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		GetStudentSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
		// QuerySubmissions lists submissions of an assignment, filtered by student when studentID != "".
		QuerySubmissions(ctx context.Context, assignmentID, studentID string) ([]Submission, error)
	}

	Service interface {
		Create(ctx context.Context, courseID string, na NewAssignment) (Assignment, error)
		Update(ctx context.Context, id string, ua UpdateAssignment) (Assignment, error)
		Delete(ctx context.Context, id string) error
		GetByID(ctx context.Context, id string) (Assignment, error)
		List(ctx context.Context, courseID string) ([]Assignment, error)

		Submit(ctx context.Context, a Assignment, student user.User, ns NewSubmission) (Submission, error)
		Grade(ctx context.Context, a Assignment, submissionID string, grader user.User, gs GradeSubmission) (Submission, error)
		Submissions(ctx context.Context, assignmentID, studentID string) ([]Submission, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, courseID string, na NewAssignment) (Assignment, error) {
	now := core.Now()
	return svc.repo.CreateAssignment(ctx, Assignment{
		ID:          core.NewID(),
		CourseID:    courseID,
		Title:       na.Title,
		Description: na.Description,
		Points:      na.Points,
		DueAt:       na.DueAt,
		LockAt:      na.LockAt,
		AllowLate:   na.AllowLate,
		IsPublished: na.IsPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) Update(ctx context.Context, id string, ua UpdateAssignment) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "finding assignment by ID")
	}
	if ua.Title != "" {
		a.Title = ua.Title
	}
	if ua.Description != nil {
		a.Description = core.CleanString(*ua.Description)
	}
	if ua.Points != nil {
		a.Points = *ua.Points
	}
	if ua.DueAt.Valid {
		a.DueAt = ua.DueAt
	}
	if ua.LockAt.Valid {
		a.LockAt = ua.LockAt
	}
	if ua.AllowLate != nil {
		a.AllowLate = *ua.AllowLate
	}
	if ua.IsPublished != nil {
		a.IsPublished = *ua.IsPublished
	}
	if err = core.CheckTimeRange("lock_at", a.DueAt, a.LockAt); err != nil {
		return Assignment{}, err
	}
	a.UpdatedAt = core.Now()
	return svc.repo.UpdateAssignment(ctx, a)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteAssignment(ctx, id)
}

func (svc *service) GetByID(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *service) List(ctx context.Context, courseID string) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, courseID)
}

// Submit records the student submission. A resubmission replaces the previous one and clears its grade.
func (svc *service) Submit(ctx context.Context, a Assignment, student user.User, ns NewSubmission) (Submission, error) {
	if !a.IsPublished {
		return Submission{}, ErrUnpublished
	}
	now := core.Now()
	ok, late := a.AcceptsAt(now)
	if !ok {
		return Submission{}, ErrClosed
	}

	sub := Submission{ID: core.NewID(), AssignmentID: a.ID, StudentID: student.ID, Attempt: 1}
	prev, err := svc.repo.GetStudentSubmission(ctx, a.ID, student.ID)
	switch errors.Cause(err) {
	case nil:
		sub.ID = prev.ID
		sub.Attempt = prev.Attempt + 1
	case ErrSubmissionNotFound:
	default:
		return Submission{}, errors.Wrap(err, "finding previous submission")
	}
	sub.Body = ns.Body
	sub.URL = ns.URL
	sub.SubmittedAt = now
	sub.IsLate = late
	return svc.repo.SaveSubmission(ctx, sub)
}

func (svc *service) Grade(ctx context.Context, a Assignment, submissionID string, grader user.User, gs GradeSubmission) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	if sub.AssignmentID != a.ID {
		return Submission{}, ErrSubmissionNotFound
	}
	if *gs.Score > a.Points {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "score", Error: "cannot exceed the assignment points"})
	}
	sub.Score = null.Float64From(*gs.Score)
	sub.Feedback = gs.Feedback
	sub.GraderID = null.StringFrom(grader.ID)
	sub.GradedAt = null.TimeFrom(core.Now())
	return svc.repo.UpdateSubmission(ctx, sub)
}

func (svc *service) Submissions(ctx context.Context, assignmentID, studentID string) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, assignmentID, studentID)
}
