package inmemdb

import (
	"context"
	"strings"
	"time"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/quiz"
)

type quizRepository struct {
	quizzes   *table[quiz.Quiz]
	questions *table[quiz.Question]
	attempts  *table[quiz.Attempt]
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{quizzes: db.quiz, questions: db.question, attempts: db.attempt}
}

// Stored rows must not share maps or slices with callers.

func copyQuestion(q quiz.Question) quiz.Question {
	q.Options = append(quiz.Options{}, q.Options...)
	return q
}

func copyAttempt(a quiz.Attempt) quiz.Attempt {
	a.Answers = a.Answers.Merge(nil)
	return a
}

// Quizzes

func (repo *quizRepository) CreateQuiz(_ context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	repo.quizzes.Lock()
	defer repo.quizzes.Unlock()

	repo.quizzes.rows[q.ID] = q
	return q, nil
}

func (repo *quizRepository) UpdateQuiz(_ context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	repo.quizzes.Lock()
	defer repo.quizzes.Unlock()

	if _, ok := repo.quizzes.rows[q.ID]; !ok {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	repo.quizzes.rows[q.ID] = q
	return q, nil
}

func (repo *quizRepository) DeleteQuiz(_ context.Context, id string) error {
	repo.quizzes.Lock()
	delete(repo.quizzes.rows, id)
	repo.quizzes.Unlock()

	repo.questions.Lock()
	repo.questions.deleteWhere(func(q quiz.Question) bool { return q.QuizID == id })
	repo.questions.Unlock()

	repo.attempts.Lock()
	defer repo.attempts.Unlock()
	repo.attempts.deleteWhere(func(a quiz.Attempt) bool { return a.QuizID == id })
	return nil
}

func (repo *quizRepository) GetQuiz(_ context.Context, id string) (quiz.Quiz, error) {
	repo.quizzes.RLock()
	defer repo.quizzes.RUnlock()

	if q, ok := repo.quizzes.rows[id]; ok {
		return q, nil
	}
	return quiz.Quiz{}, quiz.ErrNotFound
}

func (repo *quizRepository) QueryQuizzes(_ context.Context, courseID string, ordering []core.DBOrdering) ([]quiz.Quiz, error) {
	repo.quizzes.RLock()
	defer repo.quizzes.RUnlock()

	quizzes := repo.quizzes.filter(
		func(q quiz.Quiz) bool { return q.CourseID == courseID },
		func(a, b quiz.Quiz) bool { return a.CreatedAt.Before(b.CreatedAt) },
	)
	sortStable(quizzes, ordering, func(a, b quiz.Quiz, field string) int {
		switch field {
		case "title":
			return strings.Compare(a.Title, b.Title)
		case "available_from":
			return a.AvailableFrom.Time.Compare(b.AvailableFrom.Time)
		case "available_until":
			return a.AvailableUntil.Time.Compare(b.AvailableUntil.Time)
		case "is_published":
			return compareBool(a.IsPublished, b.IsPublished)
		case "created_at":
			return a.CreatedAt.Compare(b.CreatedAt)
		case "updated_at":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		}
		return 0
	})
	return quizzes, nil
}

// Questions

func (repo *quizRepository) CreateQuestion(_ context.Context, q quiz.Question) (quiz.Question, error) {
	repo.questions.Lock()
	defer repo.questions.Unlock()

	repo.questions.rows[q.ID] = copyQuestion(q)
	return q, nil
}

func (repo *quizRepository) UpdateQuestion(_ context.Context, q quiz.Question) (quiz.Question, error) {
	repo.questions.Lock()
	defer repo.questions.Unlock()

	if _, ok := repo.questions.rows[q.ID]; !ok {
		return quiz.Question{}, quiz.ErrQuestionNotFound
	}
	repo.questions.rows[q.ID] = copyQuestion(q)
	return q, nil
}

func (repo *quizRepository) DeleteQuestion(_ context.Context, id string) error {
	repo.questions.Lock()
	defer repo.questions.Unlock()

	delete(repo.questions.rows, id)
	return nil
}

func (repo *quizRepository) GetQuestion(_ context.Context, id string) (quiz.Question, error) {
	repo.questions.RLock()
	defer repo.questions.RUnlock()

	if q, ok := repo.questions.rows[id]; ok {
		return copyQuestion(q), nil
	}
	return quiz.Question{}, quiz.ErrQuestionNotFound
}

func (repo *quizRepository) QueryQuestions(_ context.Context, quizID string) ([]quiz.Question, error) {
	repo.questions.RLock()
	defer repo.questions.RUnlock()

	questions := repo.questions.filter(
		func(q quiz.Question) bool { return q.QuizID == quizID },
		func(a, b quiz.Question) bool {
			if a.Position != b.Position {
				return a.Position < b.Position
			}
			return a.ID < b.ID
		},
	)
	for i := range questions {
		questions[i] = copyQuestion(questions[i])
	}
	return questions, nil
}

// Attempts

func (repo *quizRepository) CreateAttempt(_ context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	repo.attempts.Lock()
	defer repo.attempts.Unlock()

	for _, other := range repo.attempts.rows {
		if other.QuizID == a.QuizID && other.StudentID == a.StudentID && other.Number == a.Number {
			return quiz.Attempt{}, quiz.ErrDuplicateAttempt
		}
	}
	repo.attempts.rows[a.ID] = copyAttempt(a)
	return a, nil
}

func (repo *quizRepository) GetAttempt(_ context.Context, id string) (quiz.Attempt, error) {
	repo.attempts.RLock()
	defer repo.attempts.RUnlock()

	if a, ok := repo.attempts.rows[id]; ok {
		return copyAttempt(a), nil
	}
	return quiz.Attempt{}, quiz.ErrAttemptNotFound
}

func (repo *quizRepository) QueryAttempts(_ context.Context, filter quiz.AttemptFilter) ([]quiz.Attempt, error) {
	repo.attempts.RLock()
	defer repo.attempts.RUnlock()

	attempts := repo.attempts.filter(
		func(a quiz.Attempt) bool {
			return (filter.QuizID == "" || a.QuizID == filter.QuizID) &&
				(filter.StudentID == "" || a.StudentID == filter.StudentID) &&
				(filter.Status == "" || a.Status == filter.Status)
		},
		func(a, b quiz.Attempt) bool {
			if a.Number != b.Number {
				return a.Number < b.Number
			}
			return a.StudentID < b.StudentID
		},
	)
	for i := range attempts {
		attempts[i] = copyAttempt(attempts[i])
	}
	return attempts, nil
}

func (repo *quizRepository) CountAttempts(_ context.Context, quizID string) (int, error) {
	repo.attempts.RLock()
	defer repo.attempts.RUnlock()

	var n int
	for _, a := range repo.attempts.rows {
		if a.QuizID == quizID {
			n++
		}
	}
	return n, nil
}

func (repo *quizRepository) MergeDraft(_ context.Context, attemptID string, answers quiz.Answers) error {
	repo.attempts.Lock()
	defer repo.attempts.Unlock()

	a, ok := repo.attempts.rows[attemptID]
	if !ok {
		return quiz.ErrAttemptNotFound
	}
	if a.Status != quiz.StatusInProgress {
		return quiz.ErrAttemptClosed
	}
	a.Answers = a.Answers.Merge(answers)
	repo.attempts.rows[attemptID] = a
	return nil
}

func (repo *quizRepository) FinishAttempt(_ context.Context, a quiz.Attempt) error {
	repo.attempts.Lock()
	defer repo.attempts.Unlock()

	current, ok := repo.attempts.rows[a.ID]
	if !ok {
		return quiz.ErrAttemptNotFound
	}
	if current.Status != quiz.StatusInProgress {
		return quiz.ErrAttemptClosed
	}
	repo.attempts.rows[a.ID] = copyAttempt(a)
	return nil
}

func (repo *quizRepository) UpdateAttempt(_ context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	repo.attempts.Lock()
	defer repo.attempts.Unlock()

	if _, ok := repo.attempts.rows[a.ID]; !ok {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	repo.attempts.rows[a.ID] = copyAttempt(a)
	return a, nil
}

func (repo *quizRepository) QueryExpiredAttempts(_ context.Context, t time.Time) ([]quiz.Attempt, error) {
	repo.attempts.RLock()
	defer repo.attempts.RUnlock()

	attempts := repo.attempts.filter(
		func(a quiz.Attempt) bool {
			return a.Status == quiz.StatusInProgress && a.ExpiresAt.Valid && !a.ExpiresAt.Time.After(t)
		},
		func(a, b quiz.Attempt) bool { return a.ExpiresAt.Time.Before(b.ExpiresAt.Time) },
	)
	for i := range attempts {
		attempts[i] = copyAttempt(attempts[i])
	}
	return attempts, nil
}
