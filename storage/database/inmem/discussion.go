package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/discussion"
)

type discussionRepository struct {
	discussions *table[discussion.Discussion]
	replies     *table[discussion.Reply]
}

var _ discussion.Repository = (*discussionRepository)(nil) // interface compliance check

func NewDiscussionRepository(db *DB) discussion.Repository {
	return &discussionRepository{discussions: db.discussion, replies: db.reply}
}

func (repo *discussionRepository) CreateDiscussion(_ context.Context, d discussion.Discussion) (discussion.Discussion, error) {
	repo.discussions.Lock()
	defer repo.discussions.Unlock()

	repo.discussions.rows[d.ID] = d
	return d, nil
}

func (repo *discussionRepository) UpdateDiscussion(_ context.Context, d discussion.Discussion) (discussion.Discussion, error) {
	repo.discussions.Lock()
	defer repo.discussions.Unlock()

	if _, ok := repo.discussions.rows[d.ID]; !ok {
		return discussion.Discussion{}, discussion.ErrNotFound
	}
	repo.discussions.rows[d.ID] = d
	return d, nil
}

func (repo *discussionRepository) DeleteDiscussion(_ context.Context, id string) error {
	repo.discussions.Lock()
	delete(repo.discussions.rows, id)
	repo.discussions.Unlock()

	repo.replies.Lock()
	defer repo.replies.Unlock()
	repo.replies.deleteWhere(func(r discussion.Reply) bool { return r.DiscussionID == id })
	return nil
}

func (repo *discussionRepository) GetDiscussion(_ context.Context, id string) (discussion.Discussion, error) {
	repo.discussions.RLock()
	defer repo.discussions.RUnlock()

	if d, ok := repo.discussions.rows[id]; ok {
		return d, nil
	}
	return discussion.Discussion{}, discussion.ErrNotFound
}

func (repo *discussionRepository) QueryDiscussions(_ context.Context, courseID string, ordering []core.DBOrdering) ([]discussion.Discussion, error) {
	repo.discussions.RLock()
	defer repo.discussions.RUnlock()

	discussions := repo.discussions.filter(
		func(d discussion.Discussion) bool { return d.CourseID == courseID },
		func(a, b discussion.Discussion) bool {
			if a.IsPinned != b.IsPinned {
				return a.IsPinned
			}
			return a.CreatedAt.After(b.CreatedAt)
		},
	)
	sortStable(discussions, ordering, func(a, b discussion.Discussion, field string) int {
		switch field {
		case "title":
			return strings.Compare(a.Title, b.Title)
		case "is_pinned":
			return compareBool(a.IsPinned, b.IsPinned)
		case "is_locked":
			return compareBool(a.IsLocked, b.IsLocked)
		case "created_at":
			return a.CreatedAt.Compare(b.CreatedAt)
		case "updated_at":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		}
		return 0
	})
	return discussions, nil
}

func (repo *discussionRepository) CreateReply(_ context.Context, r discussion.Reply) (discussion.Reply, error) {
	repo.replies.Lock()
	defer repo.replies.Unlock()

	repo.replies.rows[r.ID] = r
	return r, nil
}

func (repo *discussionRepository) UpdateReply(_ context.Context, r discussion.Reply) (discussion.Reply, error) {
	repo.replies.Lock()
	defer repo.replies.Unlock()

	if _, ok := repo.replies.rows[r.ID]; !ok {
		return discussion.Reply{}, discussion.ErrReplyNotFound
	}
	repo.replies.rows[r.ID] = r
	return r, nil
}

// DeleteReply also drops the replies to the deleted one.
func (repo *discussionRepository) DeleteReply(_ context.Context, id string) error {
	repo.replies.Lock()
	defer repo.replies.Unlock()

	delete(repo.replies.rows, id)
	repo.replies.deleteWhere(func(r discussion.Reply) bool { return r.ParentID.Valid && r.ParentID.String == id })
	return nil
}

func (repo *discussionRepository) GetReply(_ context.Context, id string) (discussion.Reply, error) {
	repo.replies.RLock()
	defer repo.replies.RUnlock()

	if r, ok := repo.replies.rows[id]; ok {
		return r, nil
	}
	return discussion.Reply{}, discussion.ErrReplyNotFound
}

func (repo *discussionRepository) QueryReplies(_ context.Context, discussionID string) ([]discussion.Reply, error) {
	repo.replies.RLock()
	defer repo.replies.RUnlock()

	return repo.replies.filter(
		func(r discussion.Reply) bool { return r.DiscussionID == discussionID },
		func(a, b discussion.Reply) bool { return a.CreatedAt.Before(b.CreatedAt) },
	), nil
}
