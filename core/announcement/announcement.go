package announcement

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/user"
)

var ErrNotFound = errors.New("announcement not found")

type Announcement struct {
	ID        string    `json:"id" db:"id"`
	CourseID  string    `json:"course_id" db:"course_id"`
	AuthorID  string    `json:"author_id" db:"author_id"`
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	PublishAt time.Time `json:"publish_at" db:"publish_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (a Announcement) IsPublished(now time.Time) bool { return !a.PublishAt.After(now) }

type NewAnnouncement struct {
	Title     string    `json:"title" validate:"required,max=255"`
	Body      string    `json:"body" validate:"required"`
	PublishAt null.Time `json:"publish_at"` // now when null
	Notify    bool      `json:"notify"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Body = core.CleanString(na.Body)
	return validate.Struct(na)
}

type UpdateAnnouncement struct {
	Title     string    `json:"title" validate:"omitempty,max=255"`
	Body      string    `json:"body"`
	PublishAt null.Time `json:"publish_at"`
}

func (ua *UpdateAnnouncement) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanString(ua.Title)
	ua.Body = core.CleanString(ua.Body)
	return validate.Struct(ua)
}

type (
	Repository interface {
		CreateAnnouncement(ctx context.Context, a Announcement) (Announcement, error)
		UpdateAnnouncement(ctx context.Context, a Announcement) (Announcement, error)
		DeleteAnnouncement(ctx context.Context, id string) error
		GetAnnouncement(ctx context.Context, id string) (Announcement, error)
		// QueryAnnouncements lists a course announcements newest first.
		// Only those published at publishedBefore are returned when it is non-zero.
		QueryAnnouncements(ctx context.Context, courseID string, publishedBefore time.Time) ([]Announcement, error)
	}

	Service interface {
		Create(ctx context.Context, c course.Course, author user.User, na NewAnnouncement) (Announcement, error)
		Update(ctx context.Context, id string, ua UpdateAnnouncement) (Announcement, error)
		Delete(ctx context.Context, id string) error
		GetByID(ctx context.Context, id string) (Announcement, error)
		// List returns every announcement of the course when all is set, only published ones otherwise.
		List(ctx context.Context, courseID string, all bool) ([]Announcement, error)
	}

	service struct {
		repo      Repository
		courseSvc course.Service
		userSvc   user.Service
		mailSvc   core.EmailService
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	courseSvc course.Service,
	userSvc user.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	return &service{
		repo:      repo,
		courseSvc: courseSvc,
		userSvc:   userSvc,
		mailSvc:   mailSvc,
		logger:    logger,
	}
}

func (svc *service) Create(ctx context.Context, c course.Course, author user.User, na NewAnnouncement) (Announcement, error) {
	now := core.Now()
	publishAt := now
	if na.PublishAt.Valid {
		publishAt = na.PublishAt.Time.UTC()
	}
	a, err := svc.repo.CreateAnnouncement(ctx, Announcement{
		ID:        core.NewID(),
		CourseID:  c.ID,
		AuthorID:  author.ID,
		Title:     na.Title,
		Body:      na.Body,
		PublishAt: publishAt,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Announcement{}, errors.Wrap(err, "creating announcement")
	}
	if na.Notify {
		if err = svc.notify(ctx, c, a); err != nil {
			svc.logger.Error("notifying announcement", errors.Wrap(err, "notifying students"), author)
		}
	}
	return a, nil
}

// notify emails the announcement to every enrolled student.
func (svc *service) notify(ctx context.Context, c course.Course, a Announcement) error {
	ids, err := svc.courseSvc.StudentIDs(ctx, c.ID)
	if err != nil {
		return errors.Wrap(err, "listing students")
	}
	students, err := svc.userSvc.GetByIDs(ctx, ids...)
	if err != nil {
		return errors.Wrap(err, "finding students")
	}

	messages := make([]*core.EmailMessage, 0, len(students))
	for _, s := range students {
		if s.Email == "" || !s.IsActive {
			continue
		}
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: s.Name, Address: s.Email}},
			Subject:      c.Code + ": " + a.Title,
			TemplateName: "announcement",
			TemplateData: map[string]string{
				"CourseID":    c.ID,
				"CourseTitle": c.Title,
				"ID":          a.ID,
				"Title":       a.Title,
				"Body":        a.Body,
			},
		})
	}
	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
	return nil
}

func (svc *service) Update(ctx context.Context, id string, ua UpdateAnnouncement) (Announcement, error) {
	a, err := svc.repo.GetAnnouncement(ctx, id)
	if err != nil {
		return Announcement{}, errors.Wrap(err, "finding announcement by ID")
	}
	if ua.Title != "" {
		a.Title = ua.Title
	}
	if ua.Body != "" {
		a.Body = ua.Body
	}
	if ua.PublishAt.Valid {
		a.PublishAt = ua.PublishAt.Time.UTC()
	}
	a.UpdatedAt = core.Now()
	return svc.repo.UpdateAnnouncement(ctx, a)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteAnnouncement(ctx, id)
}

func (svc *service) GetByID(ctx context.Context, id string) (Announcement, error) {
	return svc.repo.GetAnnouncement(ctx, id)
}

func (svc *service) List(ctx context.Context, courseID string, all bool) ([]Announcement, error) {
	var before time.Time
	if !all {
		before = core.Now()
	}
	return svc.repo.QueryAnnouncements(ctx, courseID, before)
}
