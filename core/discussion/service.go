package discussion

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/user"
)

var (
	// errors
	ErrNotFound      = errors.New("discussion not found")
	ErrReplyNotFound = errors.New("reply not found")
	ErrLocked        = errors.New("discussion is locked")
)

type (
	Repository interface {
		CreateDiscussion(ctx context.Context, d Discussion) (Discussion, error)
		UpdateDiscussion(ctx context.Context, d Discussion) (Discussion, error)
		DeleteDiscussion(ctx context.Context, id string) error
		GetDiscussion(ctx context.Context, id string) (Discussion, error)
		// QueryDiscussions lists a course discussions, pinned first then newest first unless ordering says otherwise.
		QueryDiscussions(ctx context.Context, courseID string, ordering []core.DBOrdering) ([]Discussion, error)

		CreateReply(ctx context.Context, r Reply) (Reply, error)
		UpdateReply(ctx context.Context, r Reply) (Reply, error)
		DeleteReply(ctx context.Context, id string) error
		GetReply(ctx context.Context, id string) (Reply, error)
		// QueryReplies lists a discussion replies oldest first.
		QueryReplies(ctx context.Context, discussionID string) ([]Reply, error)
	}

	Service interface {
		Create(ctx context.Context, courseID string, author user.User, nd NewDiscussion) (Discussion, error)
		Update(ctx context.Context, id string, ud UpdateDiscussion) (Discussion, error)
		Delete(ctx context.Context, id string) error
		GetByID(ctx context.Context, id string) (Discussion, error)
		// List keeps pinned discussions first whatever the ordering.
		List(ctx context.Context, courseID string, ordering []core.DBOrdering) ([]Discussion, error)
		Lock(ctx context.Context, id string, locked bool) (Discussion, error)
		Pin(ctx context.Context, id string, pinned bool) (Discussion, error)

		Reply(ctx context.Context, d Discussion, author user.User, nr NewReply) (Reply, error)
		Replies(ctx context.Context, discussionID string) ([]Reply, error)
		GetReply(ctx context.Context, discussionID, replyID string) (Reply, error)
		EditReply(ctx context.Context, r Reply, ur UpdateReply) (Reply, error)
		DeleteReply(ctx context.Context, r Reply) error

		Subscribe(ctx context.Context, discussionID string) (<-chan Event, func(), error)
	}

	service struct {
		repo   Repository
		feed   Feed
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, feed Feed, logger core.Logger) Service {
	return &service{repo: repo, feed: feed, logger: logger}
}

func (svc *service) Create(ctx context.Context, courseID string, author user.User, nd NewDiscussion) (Discussion, error) {
	published := true
	if nd.IsPublished != nil {
		published = *nd.IsPublished
	}
	now := core.Now()
	return svc.repo.CreateDiscussion(ctx, Discussion{
		ID:          core.NewID(),
		CourseID:    courseID,
		AuthorID:    author.ID,
		Title:       nd.Title,
		Body:        nd.Body,
		IsPublished: published,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) Update(ctx context.Context, id string, ud UpdateDiscussion) (Discussion, error) {
	d, err := svc.repo.GetDiscussion(ctx, id)
	if err != nil {
		return Discussion{}, errors.Wrap(err, "finding discussion by ID")
	}
	if ud.Title != "" {
		d.Title = ud.Title
	}
	if ud.Body != "" {
		d.Body = ud.Body
	}
	if ud.IsPublished != nil {
		d.IsPublished = *ud.IsPublished
	}
	if ud.IsPinned != nil {
		d.IsPinned = *ud.IsPinned
	}
	if ud.IsLocked != nil {
		d.IsLocked = *ud.IsLocked
	}
	d.UpdatedAt = core.Now()
	return svc.repo.UpdateDiscussion(ctx, d)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteDiscussion(ctx, id)
}

func (svc *service) GetByID(ctx context.Context, id string) (Discussion, error) {
	return svc.repo.GetDiscussion(ctx, id)
}

func (svc *service) List(ctx context.Context, courseID string, ordering []core.DBOrdering) ([]Discussion, error) {
	ordering = core.CleanOrderings(ordering, Orderable...)
	if len(ordering) > 0 {
		ordering = append([]core.DBOrdering{{Field: "is_pinned", Ascending: false}}, ordering...)
	}
	return svc.repo.QueryDiscussions(ctx, courseID, ordering)
}

func (svc *service) Lock(ctx context.Context, id string, locked bool) (Discussion, error) {
	return svc.Update(ctx, id, UpdateDiscussion{IsLocked: &locked})
}

func (svc *service) Pin(ctx context.Context, id string, pinned bool) (Discussion, error) {
	return svc.Update(ctx, id, UpdateDiscussion{IsPinned: &pinned})
}

func (svc *service) Reply(ctx context.Context, d Discussion, author user.User, nr NewReply) (Reply, error) {
	if d.IsLocked {
		return Reply{}, ErrLocked
	}
	r := Reply{
		ID:           core.NewID(),
		DiscussionID: d.ID,
		AuthorID:     author.ID,
		Body:         nr.Body,
	}
	if nr.ParentID != "" {
		parent, err := svc.repo.GetReply(ctx, nr.ParentID)
		if err != nil && errors.Cause(err) != ErrReplyNotFound {
			return Reply{}, errors.Wrap(err, "finding parent reply")
		}
		if err != nil || parent.DiscussionID != d.ID {
			return Reply{}, core.NewValidationError(nil, core.FieldError{Field: "parent_id", Error: "reply not found in this discussion"})
		}
		r.ParentID = null.StringFrom(parent.ID)
	}
	r.CreatedAt = core.Now()
	r.UpdatedAt = r.CreatedAt

	r, err := svc.repo.CreateReply(ctx, r)
	if err != nil {
		return Reply{}, errors.Wrap(err, "creating reply")
	}
	svc.publish(ctx, EventReplyCreated, r)
	return r, nil
}

func (svc *service) publish(ctx context.Context, typ string, r Reply) {
	if err := svc.feed.Publish(ctx, Event{Type: typ, DiscussionID: r.DiscussionID, Reply: r}); err != nil {
		svc.logger.Warn("publishing discussion event", errors.Wrap(err, typ))
	}
}

func (svc *service) Replies(ctx context.Context, discussionID string) ([]Reply, error) {
	return svc.repo.QueryReplies(ctx, discussionID)
}

func (svc *service) GetReply(ctx context.Context, discussionID, replyID string) (Reply, error) {
	r, err := svc.repo.GetReply(ctx, replyID)
	if err != nil {
		return Reply{}, err
	}
	if r.DiscussionID != discussionID {
		return Reply{}, ErrReplyNotFound
	}
	return r, nil
}

func (svc *service) EditReply(ctx context.Context, r Reply, ur UpdateReply) (Reply, error) {
	r.Body = ur.Body
	r.UpdatedAt = core.Now()
	r, err := svc.repo.UpdateReply(ctx, r)
	if err != nil {
		return Reply{}, errors.Wrap(err, "updating reply")
	}
	svc.publish(ctx, EventReplyUpdated, r)
	return r, nil
}

func (svc *service) DeleteReply(ctx context.Context, r Reply) error {
	if err := svc.repo.DeleteReply(ctx, r.ID); err != nil {
		return errors.Wrap(err, "deleting reply")
	}
	svc.publish(ctx, EventReplyDeleted, r)
	return nil
}

func (svc *service) Subscribe(ctx context.Context, discussionID string) (<-chan Event, func(), error) {
	return svc.feed.Subscribe(ctx, discussionID)
}
