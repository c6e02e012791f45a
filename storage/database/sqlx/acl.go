package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/acl"
)

const aclColumns = "id, course_id, resource_type, resource_id, grantee_type, grantee, permission, created_at"

type aclRepository struct {
	repo
}

var _ acl.Repository = (*aclRepository)(nil) // interface compliance check

func NewACLRepository(db *sqlx.DB) acl.Repository {
	return &aclRepository{repo{db: db}}
}

func (r *aclRepository) CreateEntry(ctx context.Context, e acl.Entry) (acl.Entry, error) {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO acl_entries (`+aclColumns+`)
		VALUES (:id, :course_id, :resource_type, :resource_id, :grantee_type, :grantee, :permission, :created_at)`,
		e,
	)
	if err != nil {
		return acl.Entry{}, errors.Wrap(err, "inserting acl entry")
	}
	return e, nil
}

func (r *aclRepository) GetEntry(ctx context.Context, id string) (acl.Entry, error) {
	var e acl.Entry
	if err := r.get(ctx, &e, "SELECT "+aclColumns+" FROM acl_entries WHERE id = ?", id); err != nil {
		return acl.Entry{}, noRows(err, acl.ErrEntryNotFound)
	}
	return e, nil
}

func (r *aclRepository) DeleteEntry(ctx context.Context, id string) error {
	_, err := r.exec(ctx, "DELETE FROM acl_entries WHERE id = ?", id)
	return errors.Wrap(err, "deleting acl entry")
}

func (r *aclRepository) QueryEntries(ctx context.Context, filter acl.EntryFilter) ([]acl.Entry, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.CourseID != "" {
		conds = append(conds, "course_id = ?")
		args = append(args, filter.CourseID)
	}
	if filter.ResourceType != "" {
		conds = append(conds, "resource_type = ?")
		args = append(args, filter.ResourceType)
	}
	if filter.ResourceID != "" {
		conds = append(conds, "resource_id = ?")
		args = append(args, filter.ResourceID)
	}

	q := "SELECT " + aclColumns + " FROM acl_entries"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}

	entries := make([]acl.Entry, 0)
	if err := r.selectAll(ctx, &entries, q+" ORDER BY created_at", args...); err != nil {
		return nil, errors.Wrap(err, "querying acl entries")
	}
	return entries, nil
}

func (r *aclRepository) DeleteResourceEntries(ctx context.Context, resourceType, resourceID string) error {
	_, err := r.exec(ctx, "DELETE FROM acl_entries WHERE resource_type = ? AND resource_id = ?", resourceType, resourceID)
	return errors.Wrap(err, "deleting resource acl entries")
}
