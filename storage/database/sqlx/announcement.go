package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/announcement"
)

const announcementColumns = "id, course_id, author_id, title, body, publish_at, created_at, updated_at"

type announcementRepository struct {
	repo
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db *sqlx.DB) announcement.Repository {
	return &announcementRepository{repo{db: db}}
}

func (r *announcementRepository) CreateAnnouncement(ctx context.Context, a announcement.Announcement) (announcement.Announcement, error) {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO announcements (`+announcementColumns+`)
		VALUES (:id, :course_id, :author_id, :title, :body, :publish_at, :created_at, :updated_at)`,
		a,
	)
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return a, nil
}

func (r *announcementRepository) UpdateAnnouncement(ctx context.Context, a announcement.Announcement) (announcement.Announcement, error) {
	res, err := r.db.NamedExecContext(ctx,
		"UPDATE announcements SET title = :title, body = :body, publish_at = :publish_at, updated_at = :updated_at WHERE id = :id",
		a,
	)
	if err = mustExist(res, err, announcement.ErrNotFound); err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "updating announcement")
	}
	return a, nil
}

func (r *announcementRepository) DeleteAnnouncement(ctx context.Context, id string) error {
	_, err := r.exec(ctx, "DELETE FROM announcements WHERE id = ?", id)
	return errors.Wrap(err, "deleting announcement")
}

func (r *announcementRepository) GetAnnouncement(ctx context.Context, id string) (announcement.Announcement, error) {
	var a announcement.Announcement
	if err := r.get(ctx, &a, "SELECT "+announcementColumns+" FROM announcements WHERE id = ?", id); err != nil {
		return announcement.Announcement{}, noRows(err, announcement.ErrNotFound)
	}
	return a, nil
}

func (r *announcementRepository) QueryAnnouncements(ctx context.Context, courseID string, publishedBefore time.Time) ([]announcement.Announcement, error) {
	q := "SELECT " + announcementColumns + " FROM announcements WHERE course_id = ?"
	args := []interface{}{courseID}
	if !publishedBefore.IsZero() {
		q += " AND publish_at <= ?"
		args = append(args, publishedBefore.UTC())
	}

	items := make([]announcement.Announcement, 0)
	if err := r.selectAll(ctx, &items, q+" ORDER BY publish_at DESC, created_at DESC", args...); err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	return items, nil
}
