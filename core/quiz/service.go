package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("quiz not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrUnavailable        = errors.New("quiz is not available")
	ErrMaxAttemptsReached = errors.New("maximum number of attempts reached")
	ErrAttemptExpired     = errors.New("attempt time is over; it has been submitted")
	ErrAttemptClosed      = errors.New("attempt is no longer in progress")
	ErrAttemptInProgress  = errors.New("attempt is still in progress")
	ErrNotOwner           = errors.New("attempt belongs to another student")
	ErrHasAttempts        = errors.New("questions cannot change once the quiz has attempts")
	// ErrDuplicateAttempt is returned by repositories when an attempt number is already taken.
	ErrDuplicateAttempt = errors.New("attempt already exists")
)

type (
	Repository interface {
		CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
		UpdateQuiz(ctx context.Context, q Quiz) (Quiz, error)
		DeleteQuiz(ctx context.Context, id string) error
		GetQuiz(ctx context.Context, id string) (Quiz, error)
		// QueryQuizzes lists a course quizzes, oldest first unless ordering says otherwise.
		QueryQuizzes(ctx context.Context, courseID string, ordering []core.DBOrdering) ([]Quiz, error)

		CreateQuestion(ctx context.Context, q Question) (Question, error)
		UpdateQuestion(ctx context.Context, q Question) (Question, error)
		DeleteQuestion(ctx context.Context, id string) error
		GetQuestion(ctx context.Context, id string) (Question, error)
		// QueryQuestions lists a quiz questions by position.
		QueryQuestions(ctx context.Context, quizID string) ([]Question, error)

		// CreateAttempt returns ErrDuplicateAttempt when the (quiz, student, number) triple exists.
		CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
		GetAttempt(ctx context.Context, id string) (Attempt, error)
		// QueryAttempts applies AND operation on the non-empty AttemptFilter fields, ordered by number.
		QueryAttempts(ctx context.Context, filter AttemptFilter) ([]Attempt, error)
		CountAttempts(ctx context.Context, quizID string) (int, error)
		// MergeDraft merges answers into those of an in-progress attempt in one atomic step; ErrAttemptClosed otherwise.
		MergeDraft(ctx context.Context, attemptID string, answers Answers) error
		// FinishAttempt persists a submitted attempt only if it is still in progress; ErrAttemptClosed otherwise.
		FinishAttempt(ctx context.Context, a Attempt) error
		UpdateAttempt(ctx context.Context, a Attempt) (Attempt, error)
		// QueryExpiredAttempts lists in-progress attempts expired at or before t.
		QueryExpiredAttempts(ctx context.Context, t time.Time) ([]Attempt, error)
	}

	Service interface {
		Create(ctx context.Context, courseID string, nq NewQuiz) (Quiz, error)
		Update(ctx context.Context, id string, uq UpdateQuiz) (Quiz, error)
		Delete(ctx context.Context, id string) error
		GetByID(ctx context.Context, id string) (Quiz, error)
		List(ctx context.Context, courseID string, ordering []core.DBOrdering) ([]Quiz, error)

		CreateQuestion(ctx context.Context, q Quiz, nq NewQuestion) (Question, error)
		UpdateQuestion(ctx context.Context, q Quiz, questionID string, nq NewQuestion) (Question, error)
		DeleteQuestion(ctx context.Context, q Quiz, questionID string) error
		// Questions lists the quiz questions; correctness flags are hidden forStudent.
		Questions(ctx context.Context, quizID string, forStudent bool) ([]Question, error)
		Import(ctx context.Context, courseID string, qf QuizFile) (Quiz, []Question, error)

		StartAttempt(ctx context.Context, q Quiz, student user.User) (Attempt, error)
		SaveAnswers(ctx context.Context, attemptID string, student user.User, sa SaveAnswers) (Attempt, error)
		SubmitAttempt(ctx context.Context, attemptID string, student user.User) (Attempt, error)
		SubmitExpired(ctx context.Context, now time.Time) (int, error)
		GradeAnswer(ctx context.Context, attemptID, questionID string, ga GradeAnswer) (Attempt, error)
		Attempt(ctx context.Context, id string) (Attempt, error)
		// Attempts lists the quiz attempts, of a single student when studentID != "".
		Attempts(ctx context.Context, quizID, studentID string) ([]Attempt, error)
	}

	service struct {
		repo   Repository
		drafts DraftStore
		grader *Grader
		grace  time.Duration
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, drafts DraftStore, conf *core.Config, logger core.Logger) Service {
	return &service{
		repo:   repo,
		drafts: drafts,
		grader: NewGrader(),
		grace:  conf.Quiz.SubmitGrace,
		logger: logger,
	}
}

// Authoring

func (svc *service) Create(ctx context.Context, courseID string, nq NewQuiz) (Quiz, error) {
	now := core.Now()
	return svc.repo.CreateQuiz(ctx, Quiz{
		ID:                 core.NewID(),
		CourseID:           courseID,
		Title:              nq.Title,
		Description:        nq.Description,
		TimeLimit:          nq.TimeLimit,
		MaxAttempts:        nq.MaxAttempts,
		AvailableFrom:      nq.AvailableFrom,
		AvailableUntil:     nq.AvailableUntil,
		IsPublished:        nq.IsPublished,
		ShowCorrectAnswers: nq.ShowCorrectAnswers,
		ScoringPolicy:      nq.ScoringPolicy,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
}

func (svc *service) Update(ctx context.Context, id string, uq UpdateQuiz) (Quiz, error) {
	q, err := svc.repo.GetQuiz(ctx, id)
	if err != nil {
		return Quiz{}, errors.Wrap(err, "finding quiz by ID")
	}
	if uq.Title != "" {
		q.Title = uq.Title
	}
	if uq.Description != nil {
		q.Description = core.CleanString(*uq.Description)
	}
	if uq.TimeLimit != nil {
		q.TimeLimit = *uq.TimeLimit
	}
	if uq.MaxAttempts != nil {
		q.MaxAttempts = *uq.MaxAttempts
	}
	if uq.AvailableFrom.Valid {
		q.AvailableFrom = uq.AvailableFrom
	}
	if uq.AvailableUntil.Valid {
		q.AvailableUntil = uq.AvailableUntil
	}
	if uq.IsPublished != nil {
		q.IsPublished = *uq.IsPublished
	}
	if uq.ShowCorrectAnswers != nil {
		q.ShowCorrectAnswers = *uq.ShowCorrectAnswers
	}
	if uq.ScoringPolicy != "" {
		q.ScoringPolicy = uq.ScoringPolicy
	}
	if err = core.CheckTimeRange("available_until", q.AvailableFrom, q.AvailableUntil); err != nil {
		return Quiz{}, err
	}
	q.UpdatedAt = core.Now()
	return svc.repo.UpdateQuiz(ctx, q)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteQuiz(ctx, id)
}

func (svc *service) GetByID(ctx context.Context, id string) (Quiz, error) {
	return svc.repo.GetQuiz(ctx, id)
}

func (svc *service) List(ctx context.Context, courseID string, ordering []core.DBOrdering) ([]Quiz, error) {
	return svc.repo.QueryQuizzes(ctx, courseID, core.CleanOrderings(ordering, Orderable...))
}

func (svc *service) checkNoAttempts(ctx context.Context, quizID string) error {
	n, err := svc.repo.CountAttempts(ctx, quizID)
	if err != nil {
		return errors.Wrap(err, "counting attempts")
	}
	if n > 0 {
		return ErrHasAttempts
	}
	return nil
}

func (svc *service) CreateQuestion(ctx context.Context, q Quiz, nq NewQuestion) (Question, error) {
	if err := svc.checkNoAttempts(ctx, q.ID); err != nil {
		return Question{}, err
	}
	questions, err := svc.repo.QueryQuestions(ctx, q.ID)
	if err != nil {
		return Question{}, errors.Wrap(err, "querying questions")
	}
	pos := len(questions)
	if nq.Position != nil {
		pos = *nq.Position
	}
	return svc.repo.CreateQuestion(ctx, Question{
		ID:       core.NewID(),
		QuizID:   q.ID,
		Type:     nq.Type,
		Prompt:   nq.Prompt,
		Points:   nq.Points,
		Position: pos,
		Options:  nq.options(),
	})
}

func (svc *service) getQuestion(ctx context.Context, quizID, questionID string) (Question, error) {
	qn, err := svc.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return Question{}, err
	}
	if qn.QuizID != quizID {
		return Question{}, ErrQuestionNotFound
	}
	return qn, nil
}

func (svc *service) UpdateQuestion(ctx context.Context, q Quiz, questionID string, nq NewQuestion) (Question, error) {
	qn, err := svc.getQuestion(ctx, q.ID, questionID)
	if err != nil {
		return Question{}, err
	}
	if err = svc.checkNoAttempts(ctx, q.ID); err != nil {
		return Question{}, err
	}
	qn.Type = nq.Type
	qn.Prompt = nq.Prompt
	qn.Points = nq.Points
	qn.Options = nq.options()
	if nq.Position != nil {
		qn.Position = *nq.Position
	}
	return svc.repo.UpdateQuestion(ctx, qn)
}

func (svc *service) DeleteQuestion(ctx context.Context, q Quiz, questionID string) error {
	if _, err := svc.getQuestion(ctx, q.ID, questionID); err != nil {
		return err
	}
	if err := svc.checkNoAttempts(ctx, q.ID); err != nil {
		return err
	}
	return svc.repo.DeleteQuestion(ctx, questionID)
}

func (svc *service) Questions(ctx context.Context, quizID string, forStudent bool) ([]Question, error) {
	questions, err := svc.repo.QueryQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if forStudent {
		for i := range questions {
			questions[i] = questions[i].ForStudent()
		}
	}
	return questions, nil
}

// Attempt lifecycle

// StartAttempt resumes the student's in-progress attempt or starts a new one.
// An expired in-progress attempt is submitted first and counts towards MaxAttempts.
func (svc *service) StartAttempt(ctx context.Context, q Quiz, student user.User) (Attempt, error) {
	now := core.Now()
	if !q.IsPublished || !q.IsAvailable(now) {
		return Attempt{}, ErrUnavailable
	}

	attempts, err := svc.repo.QueryAttempts(ctx, AttemptFilter{QuizID: q.ID, StudentID: student.ID})
	if err != nil {
		return Attempt{}, errors.Wrap(err, "querying attempts")
	}
	for _, a := range attempts {
		if a.Status != StatusInProgress {
			continue
		}
		if !a.IsExpired(now) {
			return svc.withDrafts(ctx, a)
		}
		if _, err = svc.finish(ctx, a, a.ExpiresAt.Time, true); err != nil && errors.Cause(err) != ErrAttemptClosed {
			return Attempt{}, errors.Wrap(err, "submitting expired attempt")
		}
	}
	if q.MaxAttempts > 0 && len(attempts) >= q.MaxAttempts {
		return Attempt{}, ErrMaxAttemptsReached
	}

	questions, err := svc.repo.QueryQuestions(ctx, q.ID)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "querying questions")
	}
	var maxScore float64
	for _, qn := range questions {
		maxScore += qn.Points
	}

	a, err := svc.repo.CreateAttempt(ctx, Attempt{
		ID:        core.NewID(),
		QuizID:    q.ID,
		StudentID: student.ID,
		Number:    len(attempts) + 1,
		Status:    StatusInProgress,
		StartedAt: now,
		ExpiresAt: q.expiresAt(now),
		Answers:   Answers{},
		MaxScore:  maxScore,
	})
	if errors.Cause(err) == ErrDuplicateAttempt {
		// a concurrent start won the race: resume its attempt
		return svc.resume(ctx, q, student)
	}
	return a, err
}

func (svc *service) resume(ctx context.Context, q Quiz, student user.User) (Attempt, error) {
	attempts, err := svc.repo.QueryAttempts(ctx, AttemptFilter{QuizID: q.ID, StudentID: student.ID, Status: StatusInProgress})
	if err != nil {
		return Attempt{}, errors.Wrap(err, "querying attempts")
	}
	if len(attempts) == 0 {
		return Attempt{}, ErrAttemptClosed
	}
	return svc.withDrafts(ctx, attempts[0])
}

func (svc *service) withDrafts(ctx context.Context, a Attempt) (Attempt, error) {
	if a.Status != StatusInProgress {
		return a, nil
	}
	drafts, err := svc.drafts.Load(ctx, a)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "loading drafts")
	}
	a.Answers = a.Answers.Merge(drafts)
	return a, nil
}

func (svc *service) ownAttempt(ctx context.Context, attemptID string, student user.User) (Attempt, error) {
	a, err := svc.repo.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.StudentID != student.ID {
		return Attempt{}, ErrNotOwner
	}
	return a, nil
}

func (svc *service) SaveAnswers(ctx context.Context, attemptID string, student user.User, sa SaveAnswers) (Attempt, error) {
	a, err := svc.ownAttempt(ctx, attemptID, student)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusInProgress {
		return Attempt{}, ErrAttemptClosed
	}
	if a.IsExpired(core.Now()) {
		if _, err = svc.finish(ctx, a, a.ExpiresAt.Time, true); err != nil && errors.Cause(err) != ErrAttemptClosed {
			return Attempt{}, errors.Wrap(err, "submitting expired attempt")
		}
		return Attempt{}, ErrAttemptExpired
	}

	questions, err := svc.repo.QueryQuestions(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "querying questions")
	}
	answers, err := cleanAnswers(questions, sa.Answers)
	if err != nil {
		return Attempt{}, err
	}
	if err = svc.drafts.Save(ctx, a, answers); err != nil {
		return Attempt{}, errors.Wrap(err, "saving drafts")
	}
	return svc.withDrafts(ctx, a)
}

// cleanAnswers checks answers against the quiz questions.
func cleanAnswers(questions []Question, in map[string]AnswerInput) (Answers, error) {
	byID := make(map[string]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	var fldErrs []core.FieldError
	out := make(Answers, len(in))
	for qid, ai := range in {
		field := "answers." + qid
		q, ok := byID[qid]
		if !ok {
			fldErrs = append(fldErrs, core.FieldError{Field: field, Error: "question not found in this quiz"})
			continue
		}
		if q.Type == TypeEssay {
			if len(ai.OptionIDs) > 0 {
				fldErrs = append(fldErrs, core.FieldError{Field: field, Error: "essay questions take a text answer"})
				continue
			}
			out[qid] = Answer{Text: core.CleanString(ai.Text)}
			continue
		}

		ids := dedup(ai.OptionIDs)
		if (q.Type == TypeMultipleChoice || q.Type == TypeTrueFalse) && len(ids) > 1 {
			fldErrs = append(fldErrs, core.FieldError{Field: field, Error: "only one option can be selected"})
			continue
		}
		for _, id := range ids {
			if !q.hasOption(id) {
				fldErrs = append(fldErrs, core.FieldError{Field: field, Error: fmt.Sprintf("unknown option %q", id)})
				break
			}
		}
		out[qid] = Answer{OptionIDs: ids}
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(nil, fldErrs...)
	}
	return out, nil
}

// SubmitAttempt submits the attempt. Submissions are accepted until ExpiresAt + grace;
// later ones are recorded as auto-submitted at ExpiresAt.
func (svc *service) SubmitAttempt(ctx context.Context, attemptID string, student user.User) (Attempt, error) {
	a, err := svc.ownAttempt(ctx, attemptID, student)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusInProgress {
		return Attempt{}, ErrAttemptClosed
	}

	now := core.Now()
	if a.ExpiresAt.Valid && now.After(a.ExpiresAt.Time.Add(svc.grace)) {
		return svc.finish(ctx, a, a.ExpiresAt.Time, true)
	}
	return svc.finish(ctx, a, now, false)
}

// finish grades the attempt and closes it. Only one writer wins the in_progress transition.
func (svc *service) finish(ctx context.Context, a Attempt, submittedAt time.Time, auto bool) (Attempt, error) {
	a, err := svc.withDrafts(ctx, a)
	if err != nil {
		return Attempt{}, err
	}
	questions, err := svc.repo.QueryQuestions(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "querying questions")
	}

	graded, score, pending := svc.grader.GradeAttempt(questions, a.Answers)
	a.Answers = graded
	a.Score = null.Float64From(score)
	a.SubmittedAt = null.TimeFrom(submittedAt)
	a.AutoSubmitted = auto
	a.Status = StatusGraded
	if pending {
		a.Status = StatusSubmitted
	}

	if err = svc.repo.FinishAttempt(ctx, a); err != nil {
		return Attempt{}, err
	}
	if err = svc.drafts.Clear(ctx, a); err != nil {
		svc.logger.Warn("clearing drafts", errors.Wrap(err, a.ID))
	}
	return a, nil
}

// SubmitExpired auto-submits in-progress attempts whose deadline and grace period are over.
func (svc *service) SubmitExpired(ctx context.Context, now time.Time) (int, error) {
	attempts, err := svc.repo.QueryExpiredAttempts(ctx, now.Add(-svc.grace))
	if err != nil {
		return 0, errors.Wrap(err, "querying expired attempts")
	}
	var n int
	for _, a := range attempts {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if _, err = svc.finish(ctx, a, a.ExpiresAt.Time, true); err != nil {
			if errors.Cause(err) == ErrAttemptClosed {
				continue // submitted meanwhile
			}
			return n, errors.Wrapf(err, "submitting attempt %s", a.ID)
		}
		n++
	}
	return n, nil
}

// GradeAnswer sets the points of one essay answer; the attempt is graded once no manual answer is pending.
// Auto-graded answers keep the points computed on submit.
func (svc *service) GradeAnswer(ctx context.Context, attemptID, questionID string, ga GradeAnswer) (Attempt, error) {
	a, err := svc.repo.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusInProgress {
		return Attempt{}, ErrAttemptInProgress
	}
	questions, err := svc.repo.QueryQuestions(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "querying questions")
	}

	var found bool
	for _, q := range questions {
		if q.ID == questionID {
			found = true
			if !q.IsManual() {
				return Attempt{}, core.NewValidationError(nil, core.FieldError{Field: "question_id", Error: "only essay answers are graded by hand"})
			}
			if *ga.Points > q.Points {
				return Attempt{}, core.NewValidationError(nil, core.FieldError{Field: "points", Error: "cannot exceed the question points"})
			}
		}
	}
	if !found {
		return Attempt{}, ErrQuestionNotFound
	}

	if a.Answers == nil {
		a.Answers = Answers{}
	}
	ans := a.Answers[questionID]
	ans.Points = *ga.Points
	ans.Graded = true
	a.Answers[questionID] = ans

	var score float64
	pending := false
	for _, q := range questions {
		qa := a.Answers[q.ID]
		score += qa.Points
		if q.IsManual() && !qa.Graded {
			pending = true
		}
	}
	a.Score = null.Float64From(score)
	a.Status = StatusGraded
	if pending {
		a.Status = StatusSubmitted
	}
	return svc.repo.UpdateAttempt(ctx, a)
}

func (svc *service) Attempt(ctx context.Context, id string) (Attempt, error) {
	a, err := svc.repo.GetAttempt(ctx, id)
	if err != nil {
		return Attempt{}, err
	}
	return svc.withDrafts(ctx, a)
}

func (svc *service) Attempts(ctx context.Context, quizID, studentID string) ([]Attempt, error) {
	return svc.repo.QueryAttempts(ctx, AttemptFilter{QuizID: quizID, StudentID: studentID})
}
