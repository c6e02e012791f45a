package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/course"
)

const (
	courseColumns     = "id, code, title, description, instructor_id, is_published, starts_at, ends_at, created_at, updated_at"
	enrollmentColumns = "id, course_id, user_id, role, created_at"
	moduleColumns     = "id, course_id, title, position, is_published, unlock_at, created_at, updated_at"
	itemColumns       = "id, module_id, item_type, item_id, position"
	pageColumns       = "id, course_id, title, slug, body, is_published, created_at, updated_at"
)

type courseRepository struct {
	repo
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{repo{db: db}}
}

// Courses

func (r *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES (:id, :code, :title, :description, :instructor_id, :is_published, :starts_at, :ends_at, :created_at, :updated_at)`,
		c,
	)
	if isUniqueViolation(err) {
		return course.Course{}, course.ErrCodeExists
	}
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (r *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE courses SET
			code = :code, title = :title, description = :description, instructor_id = :instructor_id,
			is_published = :is_published, starts_at = :starts_at, ends_at = :ends_at, updated_at = :updated_at
		WHERE id = :id`,
		c,
	)
	if isUniqueViolation(err) {
		return course.Course{}, course.ErrCodeExists
	}
	if err = mustExist(res, err, course.ErrNotFound); err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	return c, nil
}

func (r *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	_, err := r.exec(ctx, "DELETE FROM courses WHERE id = ?", id)
	return errors.Wrap(err, "deleting course")
}

func (r *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var c course.Course
	if err := r.get(ctx, &c, "SELECT "+courseColumns+" FROM courses WHERE id = ?", id); err != nil {
		return course.Course{}, noRows(err, course.ErrNotFound)
	}
	return c, nil
}

func (r *courseRepository) GetCourseByCode(ctx context.Context, code string) (course.Course, error) {
	var c course.Course
	if err := r.get(ctx, &c, "SELECT "+courseColumns+" FROM courses WHERE code = ?", code); err != nil {
		return course.Course{}, noRows(err, course.ErrNotFound)
	}
	return c, nil
}

func (r *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter != nil {
		if filter.Search != "" {
			pattern := likePattern(filter.Search)
			conds = append(conds, `(LOWER(code) LIKE ? ESCAPE '\' OR LOWER(title) LIKE ? ESCAPE '\')`)
			args = append(args, pattern, pattern)
		}
		if filter.IsPublished != nil {
			conds = append(conds, "is_published = ?")
			args = append(args, *filter.IsPublished)
		}
		if filter.MemberID != "" {
			conds = append(conds, "(instructor_id = ? OR id IN (SELECT course_id FROM enrollments WHERE user_id = ?))")
			args = append(args, filter.MemberID, filter.MemberID)
		}
	}

	q := "SELECT " + courseColumns + " FROM courses"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderBy(ordering, "code ASC")

	courses := make([]course.Course, 0)
	if err := r.selectAll(ctx, &courses, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return courses, nil
}

// Enrollments

func (r *courseRepository) CreateEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error) {
	_, err := r.db.NamedExecContext(ctx,
		"INSERT INTO enrollments ("+enrollmentColumns+") VALUES (:id, :course_id, :user_id, :role, :created_at)",
		e,
	)
	if isUniqueViolation(err) {
		return course.Enrollment{}, course.ErrAlreadyEnrolled
	}
	if err != nil {
		return course.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

func (r *courseRepository) DeleteEnrollment(ctx context.Context, courseID, userID string) (int, error) {
	n, err := r.execAffected(ctx, "DELETE FROM enrollments WHERE course_id = ? AND user_id = ?", courseID, userID)
	return n, errors.Wrap(err, "deleting enrollment")
}

func (r *courseRepository) GetEnrollment(ctx context.Context, courseID, userID string) (course.Enrollment, error) {
	var e course.Enrollment
	err := r.get(ctx, &e, "SELECT "+enrollmentColumns+" FROM enrollments WHERE course_id = ? AND user_id = ?", courseID, userID)
	if err != nil {
		return course.Enrollment{}, noRows(err, course.ErrEnrollmentNotFound)
	}
	return e, nil
}

func (r *courseRepository) QueryEnrollments(ctx context.Context, courseID, role string) ([]course.Enrollment, error) {
	q := "SELECT " + enrollmentColumns + " FROM enrollments WHERE course_id = ?"
	args := []interface{}{courseID}
	if role != "" {
		q += " AND role = ?"
		args = append(args, role)
	}
	enrollments := make([]course.Enrollment, 0)
	if err := r.selectAll(ctx, &enrollments, q+" ORDER BY created_at", args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrollments, nil
}

// Modules

func (r *courseRepository) CreateModule(ctx context.Context, m course.Module) (course.Module, error) {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO modules (`+moduleColumns+`)
		VALUES (:id, :course_id, :title, :position, :is_published, :unlock_at, :created_at, :updated_at)`,
		m,
	)
	if err != nil {
		return course.Module{}, errors.Wrap(err, "inserting module")
	}
	return m, nil
}

func (r *courseRepository) UpdateModule(ctx context.Context, m course.Module) (course.Module, error) {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE modules SET
			title = :title, position = :position, is_published = :is_published, unlock_at = :unlock_at, updated_at = :updated_at
		WHERE id = :id`,
		m,
	)
	if err = mustExist(res, err, course.ErrModuleNotFound); err != nil {
		return course.Module{}, errors.Wrap(err, "updating module")
	}
	return m, nil
}

func (r *courseRepository) DeleteModule(ctx context.Context, id string) error {
	_, err := r.exec(ctx, "DELETE FROM modules WHERE id = ?", id)
	return errors.Wrap(err, "deleting module")
}

func (r *courseRepository) GetModule(ctx context.Context, id string) (course.Module, error) {
	var m course.Module
	if err := r.get(ctx, &m, "SELECT "+moduleColumns+" FROM modules WHERE id = ?", id); err != nil {
		return course.Module{}, noRows(err, course.ErrModuleNotFound)
	}
	return m, nil
}

func (r *courseRepository) QueryModules(ctx context.Context, courseID string) ([]course.Module, error) {
	modules := make([]course.Module, 0)
	err := r.selectAll(ctx, &modules, "SELECT "+moduleColumns+" FROM modules WHERE course_id = ? ORDER BY position, created_at", courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	return modules, nil
}

// Module items

func (r *courseRepository) CreateModuleItem(ctx context.Context, it course.ModuleItem) (course.ModuleItem, error) {
	_, err := r.db.NamedExecContext(ctx,
		"INSERT INTO module_items ("+itemColumns+") VALUES (:id, :module_id, :item_type, :item_id, :position)",
		it,
	)
	if err != nil {
		return course.ModuleItem{}, errors.Wrap(err, "inserting module item")
	}
	return it, nil
}

func (r *courseRepository) DeleteModuleItem(ctx context.Context, id string) error {
	_, err := r.exec(ctx, "DELETE FROM module_items WHERE id = ?", id)
	return errors.Wrap(err, "deleting module item")
}

func (r *courseRepository) GetModuleItem(ctx context.Context, id string) (course.ModuleItem, error) {
	var it course.ModuleItem
	if err := r.get(ctx, &it, "SELECT "+itemColumns+" FROM module_items WHERE id = ?", id); err != nil {
		return course.ModuleItem{}, noRows(err, course.ErrItemNotFound)
	}
	return it, nil
}

func (r *courseRepository) QueryModuleItems(ctx context.Context, moduleID string) ([]course.ModuleItem, error) {
	items := make([]course.ModuleItem, 0)
	err := r.selectAll(ctx, &items, "SELECT "+itemColumns+" FROM module_items WHERE module_id = ? ORDER BY position", moduleID)
	if err != nil {
		return nil, errors.Wrap(err, "querying module items")
	}
	return items, nil
}

func (r *courseRepository) SetModuleItemPositions(ctx context.Context, moduleID string, ids []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	q := tx.Rebind("UPDATE module_items SET position = ? WHERE id = ? AND module_id = ?")
	for pos, id := range ids {
		res, err := tx.ExecContext(ctx, q, pos, id, moduleID)
		if err = mustExist(res, err, course.ErrItemNotFound); err != nil {
			return err
		}
	}
	return errors.Wrap(tx.Commit(), "committing item positions")
}

// Pages

func (r *courseRepository) CreatePage(ctx context.Context, p course.Page) (course.Page, error) {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO pages (`+pageColumns+`)
		VALUES (:id, :course_id, :title, :slug, :body, :is_published, :created_at, :updated_at)`,
		p,
	)
	if isUniqueViolation(err) {
		return course.Page{}, course.ErrSlugExists
	}
	if err != nil {
		return course.Page{}, errors.Wrap(err, "inserting page")
	}
	return p, nil
}

func (r *courseRepository) UpdatePage(ctx context.Context, p course.Page) (course.Page, error) {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE pages SET
			title = :title, slug = :slug, body = :body, is_published = :is_published, updated_at = :updated_at
		WHERE id = :id`,
		p,
	)
	if isUniqueViolation(err) {
		return course.Page{}, course.ErrSlugExists
	}
	if err = mustExist(res, err, course.ErrPageNotFound); err != nil {
		return course.Page{}, errors.Wrap(err, "updating page")
	}
	return p, nil
}

func (r *courseRepository) DeletePage(ctx context.Context, id string) error {
	_, err := r.exec(ctx, "DELETE FROM pages WHERE id = ?", id)
	return errors.Wrap(err, "deleting page")
}

func (r *courseRepository) GetPage(ctx context.Context, id string) (course.Page, error) {
	var p course.Page
	if err := r.get(ctx, &p, "SELECT "+pageColumns+" FROM pages WHERE id = ?", id); err != nil {
		return course.Page{}, noRows(err, course.ErrPageNotFound)
	}
	return p, nil
}

func (r *courseRepository) GetPageBySlug(ctx context.Context, courseID, slug string) (course.Page, error) {
	var p course.Page
	err := r.get(ctx, &p, "SELECT "+pageColumns+" FROM pages WHERE course_id = ? AND slug = ?", courseID, slug)
	if err != nil {
		return course.Page{}, noRows(err, course.ErrPageNotFound)
	}
	return p, nil
}

func (r *courseRepository) QueryPages(ctx context.Context, courseID string) ([]course.Page, error) {
	pages := make([]course.Page, 0)
	if err := r.selectAll(ctx, &pages, "SELECT "+pageColumns+" FROM pages WHERE course_id = ? ORDER BY title", courseID); err != nil {
		return nil, errors.Wrap(err, "querying pages")
	}
	return pages, nil
}
