package inmemdb

import (
	"context"

	"github.com/trezcool/masomo-lms/core/assignment"
)

type assignmentRepository struct {
	assignments *table[assignment.Assignment]
	submissions *table[assignment.Submission]
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{assignments: db.assignment, submissions: db.submission}
}

func (repo *assignmentRepository) CreateAssignment(_ context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.assignments.Lock()
	defer repo.assignments.Unlock()

	repo.assignments.rows[a.ID] = a
	return a, nil
}

func (repo *assignmentRepository) UpdateAssignment(_ context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.assignments.Lock()
	defer repo.assignments.Unlock()

	if _, ok := repo.assignments.rows[a.ID]; !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	repo.assignments.rows[a.ID] = a
	return a, nil
}

func (repo *assignmentRepository) DeleteAssignment(_ context.Context, id string) error {
	repo.assignments.Lock()
	delete(repo.assignments.rows, id)
	repo.assignments.Unlock()

	repo.submissions.Lock()
	defer repo.submissions.Unlock()
	repo.submissions.deleteWhere(func(s assignment.Submission) bool { return s.AssignmentID == id })
	return nil
}

func (repo *assignmentRepository) GetAssignment(_ context.Context, id string) (assignment.Assignment, error) {
	repo.assignments.RLock()
	defer repo.assignments.RUnlock()

	if a, ok := repo.assignments.rows[id]; ok {
		return a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) QueryAssignments(_ context.Context, courseID string) ([]assignment.Assignment, error) {
	repo.assignments.RLock()
	defer repo.assignments.RUnlock()

	return repo.assignments.filter(
		func(a assignment.Assignment) bool { return a.CourseID == courseID },
		func(a, b assignment.Assignment) bool {
			switch {
			case a.DueAt.Valid && b.DueAt.Valid:
				return a.DueAt.Time.Before(b.DueAt.Time)
			case a.DueAt.Valid != b.DueAt.Valid:
				return a.DueAt.Valid
			}
			return a.CreatedAt.Before(b.CreatedAt)
		},
	), nil
}

func (repo *assignmentRepository) SaveSubmission(_ context.Context, s assignment.Submission) (assignment.Submission, error) {
	repo.submissions.Lock()
	defer repo.submissions.Unlock()

	repo.submissions.deleteWhere(func(other assignment.Submission) bool {
		return other.ID != s.ID && other.AssignmentID == s.AssignmentID && other.StudentID == s.StudentID
	})
	repo.submissions.rows[s.ID] = s
	return s, nil
}

func (repo *assignmentRepository) UpdateSubmission(_ context.Context, s assignment.Submission) (assignment.Submission, error) {
	repo.submissions.Lock()
	defer repo.submissions.Unlock()

	if _, ok := repo.submissions.rows[s.ID]; !ok {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	repo.submissions.rows[s.ID] = s
	return s, nil
}

func (repo *assignmentRepository) GetSubmission(_ context.Context, id string) (assignment.Submission, error) {
	repo.submissions.RLock()
	defer repo.submissions.RUnlock()

	if s, ok := repo.submissions.rows[id]; ok {
		return s, nil
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) GetStudentSubmission(_ context.Context, assignmentID, studentID string) (assignment.Submission, error) {
	repo.submissions.RLock()
	defer repo.submissions.RUnlock()

	for _, s := range repo.submissions.rows {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			return s, nil
		}
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) QuerySubmissions(_ context.Context, assignmentID, studentID string) ([]assignment.Submission, error) {
	repo.submissions.RLock()
	defer repo.submissions.RUnlock()

	return repo.submissions.filter(
		func(s assignment.Submission) bool {
			return s.AssignmentID == assignmentID && (studentID == "" || s.StudentID == studentID)
		},
		func(a, b assignment.Submission) bool { return a.SubmittedAt.Before(b.SubmittedAt) },
	), nil
}
