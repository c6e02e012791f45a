package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/quiz"
)

const (
	quizColumns = "id, course_id, title, description, time_limit, max_attempts, available_from, available_until, " +
		"is_published, show_correct_answers, scoring_policy, created_at, updated_at"
	questionColumns = "id, quiz_id, type, prompt, points, position, options"
	attemptColumns  = "id, quiz_id, student_id, number, status, started_at, expires_at, submitted_at, " +
		"auto_submitted, answers, score, max_score"
)

type quizRepository struct {
	repo
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *sqlx.DB) quiz.Repository {
	return &quizRepository{repo{db: db}}
}

// Quizzes

func (r *quizRepository) CreateQuiz(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO quizzes (`+quizColumns+`)
		VALUES (:id, :course_id, :title, :description, :time_limit, :max_attempts, :available_from, :available_until,
			:is_published, :show_correct_answers, :scoring_policy, :created_at, :updated_at)`,
		q,
	)
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "inserting quiz")
	}
	return q, nil
}

func (r *quizRepository) UpdateQuiz(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE quizzes SET
			title = :title, description = :description, time_limit = :time_limit, max_attempts = :max_attempts,
			available_from = :available_from, available_until = :available_until, is_published = :is_published,
			show_correct_answers = :show_correct_answers, scoring_policy = :scoring_policy, updated_at = :updated_at
		WHERE id = :id`,
		q,
	)
	if err = mustExist(res, err, quiz.ErrNotFound); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "updating quiz")
	}
	return q, nil
}

func (r *quizRepository) DeleteQuiz(ctx context.Context, id string) error {
	_, err := r.exec(ctx, "DELETE FROM quizzes WHERE id = ?", id)
	return errors.Wrap(err, "deleting quiz")
}

func (r *quizRepository) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	var q quiz.Quiz
	if err := r.get(ctx, &q, "SELECT "+quizColumns+" FROM quizzes WHERE id = ?", id); err != nil {
		return quiz.Quiz{}, noRows(err, quiz.ErrNotFound)
	}
	return q, nil
}

func (r *quizRepository) QueryQuizzes(ctx context.Context, courseID string, ordering []core.DBOrdering) ([]quiz.Quiz, error) {
	quizzes := make([]quiz.Quiz, 0)
	q := "SELECT " + quizColumns + " FROM quizzes WHERE course_id = ?" + orderBy(ordering, "created_at ASC")
	err := r.selectAll(ctx, &quizzes, q, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying quizzes")
	}
	return quizzes, nil
}

// Questions

func (r *quizRepository) CreateQuestion(ctx context.Context, q quiz.Question) (quiz.Question, error) {
	_, err := r.db.NamedExecContext(ctx,
		"INSERT INTO quiz_questions ("+questionColumns+") VALUES (:id, :quiz_id, :type, :prompt, :points, :position, :options)",
		q,
	)
	if err != nil {
		return quiz.Question{}, errors.Wrap(err, "inserting question")
	}
	return q, nil
}

func (r *quizRepository) UpdateQuestion(ctx context.Context, q quiz.Question) (quiz.Question, error) {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE quiz_questions SET
			type = :type, prompt = :prompt, points = :points, position = :position, options = :options
		WHERE id = :id`,
		q,
	)
	if err = mustExist(res, err, quiz.ErrQuestionNotFound); err != nil {
		return quiz.Question{}, errors.Wrap(err, "updating question")
	}
	return q, nil
}

func (r *quizRepository) DeleteQuestion(ctx context.Context, id string) error {
	_, err := r.exec(ctx, "DELETE FROM quiz_questions WHERE id = ?", id)
	return errors.Wrap(err, "deleting question")
}

func (r *quizRepository) GetQuestion(ctx context.Context, id string) (quiz.Question, error) {
	var q quiz.Question
	if err := r.get(ctx, &q, "SELECT "+questionColumns+" FROM quiz_questions WHERE id = ?", id); err != nil {
		return quiz.Question{}, noRows(err, quiz.ErrQuestionNotFound)
	}
	return q, nil
}

func (r *quizRepository) QueryQuestions(ctx context.Context, quizID string) ([]quiz.Question, error) {
	questions := make([]quiz.Question, 0)
	err := r.selectAll(ctx, &questions, "SELECT "+questionColumns+" FROM quiz_questions WHERE quiz_id = ? ORDER BY position", quizID)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	return questions, nil
}

// Attempts

func (r *quizRepository) CreateAttempt(ctx context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO quiz_attempts (`+attemptColumns+`)
		VALUES (:id, :quiz_id, :student_id, :number, :status, :started_at, :expires_at, :submitted_at,
			:auto_submitted, :answers, :score, :max_score)`,
		a,
	)
	if isUniqueViolation(err) {
		return quiz.Attempt{}, quiz.ErrDuplicateAttempt
	}
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return a, nil
}

func (r *quizRepository) GetAttempt(ctx context.Context, id string) (quiz.Attempt, error) {
	var a quiz.Attempt
	if err := r.get(ctx, &a, "SELECT "+attemptColumns+" FROM quiz_attempts WHERE id = ?", id); err != nil {
		return quiz.Attempt{}, noRows(err, quiz.ErrAttemptNotFound)
	}
	return a, nil
}

func (r *quizRepository) QueryAttempts(ctx context.Context, filter quiz.AttemptFilter) ([]quiz.Attempt, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.QuizID != "" {
		conds = append(conds, "quiz_id = ?")
		args = append(args, filter.QuizID)
	}
	if filter.StudentID != "" {
		conds = append(conds, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}

	q := "SELECT " + attemptColumns + " FROM quiz_attempts"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}

	attempts := make([]quiz.Attempt, 0)
	if err := r.selectAll(ctx, &attempts, q+" ORDER BY number, student_id", args...); err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}
	return attempts, nil
}

func (r *quizRepository) CountAttempts(ctx context.Context, quizID string) (int, error) {
	var n int
	err := r.get(ctx, &n, "SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = ?", quizID)
	return n, errors.Wrap(err, "counting attempts")
}

// MergeDraft reads and rewrites the answers in one transaction. Postgres locks the row; sqlite runs on a single connection.
func (r *quizRepository) MergeDraft(ctx context.Context, attemptID string, answers quiz.Answers) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	q := "SELECT status, answers FROM quiz_attempts WHERE id = ?"
	if tx.DriverName() == "postgres" {
		q += " FOR UPDATE"
	}
	var current struct {
		Status  string       `db:"status"`
		Answers quiz.Answers `db:"answers"`
	}
	if err = tx.GetContext(ctx, &current, tx.Rebind(q), attemptID); err != nil {
		return noRows(err, quiz.ErrAttemptNotFound)
	}
	if current.Status != quiz.StatusInProgress {
		return quiz.ErrAttemptClosed
	}

	_, err = tx.ExecContext(ctx, tx.Rebind("UPDATE quiz_attempts SET answers = ? WHERE id = ?"), current.Answers.Merge(answers), attemptID)
	if err != nil {
		return errors.Wrap(err, "updating draft")
	}
	return errors.Wrap(tx.Commit(), "committing draft")
}

// FinishAttempt only moves an attempt out of in_progress once, so a manual submit and the sweeper cannot both win.
func (r *quizRepository) FinishAttempt(ctx context.Context, a quiz.Attempt) error {
	res, err := r.exec(ctx, `
		UPDATE quiz_attempts SET
			status = ?, submitted_at = ?, auto_submitted = ?, answers = ?, score = ?, max_score = ?
		WHERE id = ? AND status = ?`,
		a.Status, a.SubmittedAt, a.AutoSubmitted, a.Answers, a.Score, a.MaxScore, a.ID, quiz.StatusInProgress,
	)
	if err = mustExist(res, err, quiz.ErrAttemptClosed); err != nil {
		return r.closedOrMissing(ctx, a.ID, err)
	}
	return nil
}

// closedOrMissing tells a closed attempt from a missing one after a conditional update matched no row.
func (r *quizRepository) closedOrMissing(ctx context.Context, id string, err error) error {
	if errors.Cause(err) != quiz.ErrAttemptClosed {
		return errors.Wrap(err, "updating attempt")
	}
	var n int
	if cerr := r.get(ctx, &n, "SELECT COUNT(*) FROM quiz_attempts WHERE id = ?", id); cerr != nil {
		return errors.Wrap(cerr, "finding attempt")
	}
	if n == 0 {
		return quiz.ErrAttemptNotFound
	}
	return quiz.ErrAttemptClosed
}

func (r *quizRepository) UpdateAttempt(ctx context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE quiz_attempts SET
			status = :status, expires_at = :expires_at, submitted_at = :submitted_at, auto_submitted = :auto_submitted,
			answers = :answers, score = :score, max_score = :max_score
		WHERE id = :id`,
		a,
	)
	if err = mustExist(res, err, quiz.ErrAttemptNotFound); err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "updating attempt")
	}
	return a, nil
}

func (r *quizRepository) QueryExpiredAttempts(ctx context.Context, t time.Time) ([]quiz.Attempt, error) {
	attempts := make([]quiz.Attempt, 0)
	err := r.selectAll(ctx, &attempts,
		"SELECT "+attemptColumns+" FROM quiz_attempts WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ? ORDER BY expires_at",
		quiz.StatusInProgress, t.UTC(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying expired attempts")
	}
	return attempts, nil
}
