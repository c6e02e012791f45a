package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/assignment"
)

const (
	assignmentColumns = "id, course_id, title, description, points, due_at, lock_at, allow_late, is_published, created_at, updated_at"
	submissionColumns = "id, assignment_id, student_id, body, url, submitted_at, is_late, attempt, score, feedback, grader_id, graded_at"
)

type assignmentRepository struct {
	repo
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB) assignment.Repository {
	return &assignmentRepository{repo{db: db}}
}

func (r *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES (:id, :course_id, :title, :description, :points, :due_at, :lock_at, :allow_late, :is_published, :created_at, :updated_at)`,
		a,
	)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (r *assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE assignments SET
			title = :title, description = :description, points = :points, due_at = :due_at, lock_at = :lock_at,
			allow_late = :allow_late, is_published = :is_published, updated_at = :updated_at
		WHERE id = :id`,
		a,
	)
	if err = mustExist(res, err, assignment.ErrNotFound); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	return a, nil
}

func (r *assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	_, err := r.exec(ctx, "DELETE FROM assignments WHERE id = ?", id)
	return errors.Wrap(err, "deleting assignment")
}

func (r *assignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	var a assignment.Assignment
	if err := r.get(ctx, &a, "SELECT "+assignmentColumns+" FROM assignments WHERE id = ?", id); err != nil {
		return assignment.Assignment{}, noRows(err, assignment.ErrNotFound)
	}
	return a, nil
}

func (r *assignmentRepository) QueryAssignments(ctx context.Context, courseID string) ([]assignment.Assignment, error) {
	items := make([]assignment.Assignment, 0)
	err := r.selectAll(ctx, &items,
		"SELECT "+assignmentColumns+" FROM assignments WHERE course_id = ? ORDER BY (due_at IS NULL), due_at, created_at",
		courseID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return items, nil
}

func (r *assignmentRepository) SaveSubmission(ctx context.Context, s assignment.Submission) (assignment.Submission, error) {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES (:id, :assignment_id, :student_id, :body, :url, :submitted_at, :is_late, :attempt, :score, :feedback, :grader_id, :graded_at)
		ON CONFLICT (assignment_id, student_id) DO UPDATE SET
			id = EXCLUDED.id, body = EXCLUDED.body, url = EXCLUDED.url, submitted_at = EXCLUDED.submitted_at,
			is_late = EXCLUDED.is_late, attempt = EXCLUDED.attempt, score = EXCLUDED.score,
			feedback = EXCLUDED.feedback, grader_id = EXCLUDED.grader_id, graded_at = EXCLUDED.graded_at`,
		s,
	)
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "saving submission")
	}
	return s, nil
}

func (r *assignmentRepository) UpdateSubmission(ctx context.Context, s assignment.Submission) (assignment.Submission, error) {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE submissions SET
			body = :body, url = :url, submitted_at = :submitted_at, is_late = :is_late, attempt = :attempt,
			score = :score, feedback = :feedback, grader_id = :grader_id, graded_at = :graded_at
		WHERE id = :id`,
		s,
	)
	if err = mustExist(res, err, assignment.ErrSubmissionNotFound); err != nil {
		return assignment.Submission{}, errors.Wrap(err, "updating submission")
	}
	return s, nil
}

func (r *assignmentRepository) GetSubmission(ctx context.Context, id string) (assignment.Submission, error) {
	var s assignment.Submission
	if err := r.get(ctx, &s, "SELECT "+submissionColumns+" FROM submissions WHERE id = ?", id); err != nil {
		return assignment.Submission{}, noRows(err, assignment.ErrSubmissionNotFound)
	}
	return s, nil
}

func (r *assignmentRepository) GetStudentSubmission(ctx context.Context, assignmentID, studentID string) (assignment.Submission, error) {
	var s assignment.Submission
	err := r.get(ctx, &s,
		"SELECT "+submissionColumns+" FROM submissions WHERE assignment_id = ? AND student_id = ?",
		assignmentID, studentID,
	)
	if err != nil {
		return assignment.Submission{}, noRows(err, assignment.ErrSubmissionNotFound)
	}
	return s, nil
}

func (r *assignmentRepository) QuerySubmissions(ctx context.Context, assignmentID, studentID string) ([]assignment.Submission, error) {
	q := "SELECT " + submissionColumns + " FROM submissions WHERE assignment_id = ?"
	args := []interface{}{assignmentID}
	if studentID != "" {
		q += " AND student_id = ?"
		args = append(args, studentID)
	}
	subs := make([]assignment.Submission, 0)
	if err := r.selectAll(ctx, &subs, q+" ORDER BY submitted_at", args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return subs, nil
}
