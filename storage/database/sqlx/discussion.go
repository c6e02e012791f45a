package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/discussion"
)

const (
	discussionColumns = "id, course_id, author_id, title, body, is_pinned, is_locked, is_published, created_at, updated_at"
	replyColumns      = "id, discussion_id, author_id, parent_id, body, created_at, updated_at"
)

type discussionRepository struct {
	repo
}

var _ discussion.Repository = (*discussionRepository)(nil) // interface compliance check

func NewDiscussionRepository(db *sqlx.DB) discussion.Repository {
	return &discussionRepository{repo{db: db}}
}

func (r *discussionRepository) CreateDiscussion(ctx context.Context, d discussion.Discussion) (discussion.Discussion, error) {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO discussions (`+discussionColumns+`)
		VALUES (:id, :course_id, :author_id, :title, :body, :is_pinned, :is_locked, :is_published, :created_at, :updated_at)`,
		d,
	)
	if err != nil {
		return discussion.Discussion{}, errors.Wrap(err, "inserting discussion")
	}
	return d, nil
}

func (r *discussionRepository) UpdateDiscussion(ctx context.Context, d discussion.Discussion) (discussion.Discussion, error) {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE discussions SET
			title = :title, body = :body, is_pinned = :is_pinned, is_locked = :is_locked,
			is_published = :is_published, updated_at = :updated_at
		WHERE id = :id`,
		d,
	)
	if err = mustExist(res, err, discussion.ErrNotFound); err != nil {
		return discussion.Discussion{}, errors.Wrap(err, "updating discussion")
	}
	return d, nil
}

func (r *discussionRepository) DeleteDiscussion(ctx context.Context, id string) error {
	_, err := r.exec(ctx, "DELETE FROM discussions WHERE id = ?", id)
	return errors.Wrap(err, "deleting discussion")
}

func (r *discussionRepository) GetDiscussion(ctx context.Context, id string) (discussion.Discussion, error) {
	var d discussion.Discussion
	if err := r.get(ctx, &d, "SELECT "+discussionColumns+" FROM discussions WHERE id = ?", id); err != nil {
		return discussion.Discussion{}, noRows(err, discussion.ErrNotFound)
	}
	return d, nil
}

func (r *discussionRepository) QueryDiscussions(ctx context.Context, courseID string, ordering []core.DBOrdering) ([]discussion.Discussion, error) {
	items := make([]discussion.Discussion, 0)
	q := "SELECT " + discussionColumns + " FROM discussions WHERE course_id = ?" + orderBy(ordering, "is_pinned DESC, created_at DESC")
	err := r.selectAll(ctx, &items, q, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying discussions")
	}
	return items, nil
}

func (r *discussionRepository) CreateReply(ctx context.Context, rep discussion.Reply) (discussion.Reply, error) {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO discussion_replies (`+replyColumns+`)
		VALUES (:id, :discussion_id, :author_id, :parent_id, :body, :created_at, :updated_at)`,
		rep,
	)
	if err != nil {
		return discussion.Reply{}, errors.Wrap(err, "inserting reply")
	}
	return rep, nil
}

func (r *discussionRepository) UpdateReply(ctx context.Context, rep discussion.Reply) (discussion.Reply, error) {
	res, err := r.db.NamedExecContext(ctx,
		"UPDATE discussion_replies SET body = :body, updated_at = :updated_at WHERE id = :id",
		rep,
	)
	if err = mustExist(res, err, discussion.ErrReplyNotFound); err != nil {
		return discussion.Reply{}, errors.Wrap(err, "updating reply")
	}
	return rep, nil
}

// DeleteReply relies on the parent_id foreign key to drop the nested replies.
func (r *discussionRepository) DeleteReply(ctx context.Context, id string) error {
	_, err := r.exec(ctx, "DELETE FROM discussion_replies WHERE id = ?", id)
	return errors.Wrap(err, "deleting reply")
}

func (r *discussionRepository) GetReply(ctx context.Context, id string) (discussion.Reply, error) {
	var rep discussion.Reply
	if err := r.get(ctx, &rep, "SELECT "+replyColumns+" FROM discussion_replies WHERE id = ?", id); err != nil {
		return discussion.Reply{}, noRows(err, discussion.ErrReplyNotFound)
	}
	return rep, nil
}

func (r *discussionRepository) QueryReplies(ctx context.Context, discussionID string) ([]discussion.Reply, error) {
	replies := make([]discussion.Reply, 0)
	err := r.selectAll(ctx, &replies,
		"SELECT "+replyColumns+" FROM discussion_replies WHERE discussion_id = ? ORDER BY created_at",
		discussionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying replies")
	}
	return replies, nil
}
