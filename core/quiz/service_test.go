package quiz_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/quiz"
	"github.com/trezcool/masomo-lms/core/user"
	inmemdb "github.com/trezcool/masomo-lms/storage/database/inmem"
	"github.com/trezcool/masomo-lms/testutil"
)

var ctx = context.Background()

type fixture struct {
	svc     quiz.Service
	sweeper *quiz.Sweeper
	clock   *time.Time
	quiz    quiz.Quiz
	mcq     quiz.Question
	essay   quiz.Question
	student user.User
}

// setup creates a published quiz with a multiple choice question (1 point) and an essay (2 points).
func setup(t *testing.T, nq quiz.NewQuiz, grace time.Duration) *fixture {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewQuizRepository(db)

	conf := testutil.Config()
	conf.Quiz.SubmitGrace = grace
	svc := quiz.NewService(repo, quiz.NewDBDraftStore(repo), conf, testutil.NopLogger{})

	f := &fixture{
		svc:     svc,
		sweeper: quiz.NewSweeper(svc, conf, testutil.NopLogger{}),
		clock:   testutil.FreezeTime(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
		student: user.User{ID: core.NewID(), Username: "hero", Roles: []string{user.RoleStudent}},
	}

	nq.Title = "Week 1"
	nq.IsPublished = true
	f.quiz, err = svc.Create(ctx, core.NewID(), nq)
	require.NoError(t, err)

	f.mcq, err = svc.CreateQuestion(ctx, f.quiz, quiz.NewQuestion{
		Type: quiz.TypeMultipleChoice, Prompt: "2 + 2 = ?", Points: 1,
		Options: []quiz.NewOption{{Text: "3"}, {Text: "4", IsCorrect: true}},
	})
	require.NoError(t, err)
	f.essay, err = svc.CreateQuestion(ctx, f.quiz, quiz.NewQuestion{Type: quiz.TypeEssay, Prompt: "Why?", Points: 2})
	require.NoError(t, err)
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func (f *fixture) answer(t *testing.T, a quiz.Attempt, optionID string) {
	t.Helper()
	_, err := f.svc.SaveAnswers(ctx, a.ID, f.student, quiz.SaveAnswers{
		Answers: map[string]quiz.AnswerInput{f.mcq.ID: {OptionIDs: []string{optionID}}},
	})
	require.NoError(t, err)
}

func TestService_StartAttempt(t *testing.T) {
	f := setup(t, quiz.NewQuiz{MaxAttempts: 2}, 0)

	a, err := f.svc.StartAttempt(ctx, f.quiz, f.student)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Number)
	assert.Equal(t, 3.0, a.MaxScore)
	assert.False(t, a.ExpiresAt.Valid)
	assert.Equal(t, *f.clock, a.StartedAt)

	resumed, err := f.svc.StartAttempt(ctx, f.quiz, f.student)
	require.NoError(t, err)
	assert.Equal(t, a.ID, resumed.ID)

	t.Run("questions are locked", func(t *testing.T) {
		_, err := f.svc.CreateQuestion(ctx, f.quiz, quiz.NewQuestion{Type: quiz.TypeEssay, Prompt: "Lol", Points: 1})
		assert.Equal(t, quiz.ErrHasAttempts, errors.Cause(err))
		_, err = f.svc.UpdateQuestion(ctx, f.quiz, f.mcq.ID, quiz.NewQuestion{Type: quiz.TypeEssay, Prompt: "Lol", Points: 1})
		assert.Equal(t, quiz.ErrHasAttempts, errors.Cause(err))
		assert.Equal(t, quiz.ErrHasAttempts, errors.Cause(f.svc.DeleteQuestion(ctx, f.quiz, f.mcq.ID)))
	})

	t.Run("unavailable", func(t *testing.T) {
		draft := f.quiz
		draft.IsPublished = false
		_, err := f.svc.StartAttempt(ctx, draft, f.student)
		assert.Equal(t, quiz.ErrUnavailable, errors.Cause(err))

		closed := f.quiz
		closed.AvailableUntil = null.TimeFrom(f.clock.Add(-time.Minute))
		_, err = f.svc.StartAttempt(ctx, closed, f.student)
		assert.Equal(t, quiz.ErrUnavailable, errors.Cause(err))
	})

	_, err = f.svc.SubmitAttempt(ctx, a.ID, f.student)
	require.NoError(t, err)
	second, err := f.svc.StartAttempt(ctx, f.quiz, f.student)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Number)
	_, err = f.svc.SubmitAttempt(ctx, second.ID, f.student)
	require.NoError(t, err)

	_, err = f.svc.StartAttempt(ctx, f.quiz, f.student)
	assert.Equal(t, quiz.ErrMaxAttemptsReached, errors.Cause(err))
}

func TestService_SaveAnswers(t *testing.T) {
	f := setup(t, quiz.NewQuiz{}, 0)
	a, err := f.svc.StartAttempt(ctx, f.quiz, f.student)
	require.NoError(t, err)

	other := user.User{ID: core.NewID()}
	_, err = f.svc.SaveAnswers(ctx, a.ID, other, quiz.SaveAnswers{Answers: map[string]quiz.AnswerInput{}})
	assert.Equal(t, quiz.ErrNotOwner, errors.Cause(err))

	f.answer(t, a, "a")
	f.answer(t, a, "b")
	saved, err := f.svc.SaveAnswers(ctx, a.ID, f.student, quiz.SaveAnswers{
		Answers: map[string]quiz.AnswerInput{f.essay.ID: {Text: " Because. "}},
	})
	require.NoError(t, err)
	assert.Equal(t, quiz.Answers{
		f.mcq.ID:   {OptionIDs: []string{"b"}},
		f.essay.ID: {Text: "Because."},
	}, saved.Answers)

	_, err = f.svc.GradeAnswer(ctx, a.ID, f.essay.ID, quiz.GradeAnswer{Points: null.Float64From(1).Ptr()})
	assert.Equal(t, quiz.ErrAttemptInProgress, errors.Cause(err))
}

func TestService_SaveAnswers_concurrent(t *testing.T) {
	f := setup(t, quiz.NewQuiz{}, 0)
	essays := []quiz.Question{f.essay}
	for i := 0; i < 9; i++ {
		qn, err := f.svc.CreateQuestion(ctx, f.quiz, quiz.NewQuestion{Type: quiz.TypeEssay, Prompt: fmt.Sprintf("Why %d?", i), Points: 1})
		require.NoError(t, err)
		essays = append(essays, qn)
	}
	a, err := f.svc.StartAttempt(ctx, f.quiz, f.student)
	require.NoError(t, err)

	var g errgroup.Group
	for _, qn := range essays {
		qn := qn
		g.Go(func() error {
			_, err := f.svc.SaveAnswers(ctx, a.ID, f.student, quiz.SaveAnswers{
				Answers: map[string]quiz.AnswerInput{qn.ID: {Text: "Because " + qn.Prompt}},
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err := f.svc.Attempt(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, got.Answers, len(essays))
	for _, qn := range essays {
		assert.Equal(t, "Because "+qn.Prompt, got.Answers[qn.ID].Text)
	}
}

func TestService_SubmitAttempt(t *testing.T) {
	f := setup(t, quiz.NewQuiz{}, 0)
	a, err := f.svc.StartAttempt(ctx, f.quiz, f.student)
	require.NoError(t, err)
	f.answer(t, a, "b")
	_, err = f.svc.SaveAnswers(ctx, a.ID, f.student, quiz.SaveAnswers{
		Answers: map[string]quiz.AnswerInput{f.essay.ID: {Text: "Because."}},
	})
	require.NoError(t, err)

	submitted, err := f.svc.SubmitAttempt(ctx, a.ID, f.student)
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusSubmitted, submitted.Status)
	assert.False(t, submitted.AutoSubmitted)
	assert.Equal(t, 1.0, submitted.Score.Float64)

	_, err = f.svc.SubmitAttempt(ctx, a.ID, f.student)
	assert.Equal(t, quiz.ErrAttemptClosed, errors.Cause(err))

	t.Run("grade", func(t *testing.T) {
		_, err := f.svc.GradeAnswer(ctx, a.ID, "lol", quiz.GradeAnswer{Points: null.Float64From(1).Ptr()})
		assert.Equal(t, quiz.ErrQuestionNotFound, errors.Cause(err))

		_, err = f.svc.GradeAnswer(ctx, a.ID, f.essay.ID, quiz.GradeAnswer{Points: null.Float64From(3).Ptr()})
		require.Error(t, err)
		_, ok := errors.Cause(err).(*core.ValidationError)
		assert.True(t, ok)

		graded, err := f.svc.GradeAnswer(ctx, a.ID, f.essay.ID, quiz.GradeAnswer{Points: null.Float64From(2).Ptr()})
		require.NoError(t, err)
		assert.Equal(t, quiz.StatusGraded, graded.Status)
		assert.Equal(t, 3.0, graded.Score.Float64)

	})

	t.Run("auto-graded answers are not graded by hand", func(t *testing.T) {
		_, err := f.svc.GradeAnswer(ctx, a.ID, f.mcq.ID, quiz.GradeAnswer{Points: null.Float64From(0.5).Ptr()})
		require.Error(t, err)
		verr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "want a *core.ValidationError, got %T", err)
		assert.Equal(t, "question_id", verr.Fields[0].Field)

		got, err := f.svc.Attempt(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 3.0, got.Score.Float64)
		assert.Equal(t, 1.0, got.Answers[f.mcq.ID].Points)
	})
}

func TestService_autoGradedAttempt(t *testing.T) {
	f := setup(t, quiz.NewQuiz{}, 0)
	a, err := f.svc.StartAttempt(ctx, f.quiz, f.student)
	require.NoError(t, err)
	f.answer(t, a, "a")

	// the essay is blank: nothing left to review
	submitted, err := f.svc.SubmitAttempt(ctx, a.ID, f.student)
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusGraded, submitted.Status)
	assert.Equal(t, 0.0, submitted.Score.Float64)
	assert.True(t, submitted.Score.Valid)
}

func TestService_timeLimit(t *testing.T) {
	const grace = 30 * time.Second
	f := setup(t, quiz.NewQuiz{TimeLimit: 10}, grace)

	start := func(t *testing.T) quiz.Attempt {
		t.Helper()
		a, err := f.svc.StartAttempt(ctx, f.quiz, f.student)
		require.NoError(t, err)
		require.True(t, a.ExpiresAt.Valid)
		assert.Equal(t, f.clock.Add(10*time.Minute), a.ExpiresAt.Time)
		return a
	}

	t.Run("submit within grace", func(t *testing.T) {
		a := start(t)
		f.answer(t, a, "b")
		f.advance(10*time.Minute + grace/2)

		submitted, err := f.svc.SubmitAttempt(ctx, a.ID, f.student)
		require.NoError(t, err)
		assert.False(t, submitted.AutoSubmitted)
		assert.Equal(t, *f.clock, submitted.SubmittedAt.Time)
		assert.Equal(t, 1.0, submitted.Score.Float64)
	})

	t.Run("save after deadline", func(t *testing.T) {
		a := start(t)
		assert.Equal(t, 2, a.Number)
		f.answer(t, a, "b")
		f.advance(10*time.Minute + grace/2)

		_, err := f.svc.SaveAnswers(ctx, a.ID, f.student, quiz.SaveAnswers{Answers: map[string]quiz.AnswerInput{}})
		assert.Equal(t, quiz.ErrAttemptExpired, errors.Cause(err))

		got, err := f.svc.Attempt(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, got.IsFinished())
		assert.True(t, got.AutoSubmitted)
		assert.Equal(t, a.ExpiresAt.Time, got.SubmittedAt.Time)
		assert.Equal(t, []string{"b"}, got.Answers[f.mcq.ID].OptionIDs)
	})

	t.Run("submit after grace", func(t *testing.T) {
		a := start(t)
		f.advance(time.Hour)

		submitted, err := f.svc.SubmitAttempt(ctx, a.ID, f.student)
		require.NoError(t, err)
		assert.True(t, submitted.AutoSubmitted)
		assert.Equal(t, a.ExpiresAt.Time, submitted.SubmittedAt.Time)
	})

	t.Run("expired attempts count on restart", func(t *testing.T) {
		a := start(t)
		f.advance(11 * time.Minute)

		next := start(t)
		assert.Equal(t, a.Number+1, next.Number)

		got, err := f.svc.Attempt(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, got.IsFinished())
		assert.True(t, got.AutoSubmitted)
	})
}

func TestSweeper_Sweep(t *testing.T) {
	const grace = time.Minute
	f := setup(t, quiz.NewQuiz{TimeLimit: 5}, grace)

	a, err := f.svc.StartAttempt(ctx, f.quiz, f.student)
	require.NoError(t, err)
	f.answer(t, a, "b")

	other := user.User{ID: core.NewID()}
	_, err = f.svc.StartAttempt(ctx, f.quiz, other)
	require.NoError(t, err)

	f.advance(5 * time.Minute)
	assert.Equal(t, 0, f.sweeper.Sweep(ctx), "grace period")

	f.advance(grace)
	assert.Equal(t, 2, f.sweeper.Sweep(ctx))
	assert.Equal(t, 0, f.sweeper.Sweep(ctx))

	got, err := f.svc.Attempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusGraded, got.Status)
	assert.True(t, got.AutoSubmitted)
	assert.Equal(t, a.ExpiresAt.Time, got.SubmittedAt.Time)
	assert.Equal(t, 1.0, got.Score.Float64)

	attempts, err := f.svc.Attempts(ctx, f.quiz.ID, other.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, quiz.StatusGraded, attempts[0].Status)
}

func TestSweeper_Run(t *testing.T) {
	f := setup(t, quiz.NewQuiz{}, 0)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- f.sweeper.Run(runCtx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop")
	}
}

func TestQuizFile(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)

	f := setup(t, quiz.NewQuiz{}, 0)

	qf, err := quiz.ParseQuizFile(strings.NewReader(`
title: Imported
scoring_policy: latest
questions:
  - type: multiple_answer
    prompt: Pick the primes.
    points: 2
    options:
      - {text: "2", correct: true}
      - {text: "4"}
      - {text: "5", correct: true}
`))
	require.NoError(t, err)
	require.NoError(t, qf.Validate(validate))

	q, questions, err := f.svc.Import(ctx, f.quiz.CourseID, qf)
	require.NoError(t, err)
	assert.Equal(t, quiz.PolicyLatest, q.ScoringPolicy)
	assert.False(t, q.IsPublished)
	require.Len(t, questions, 1)
	assert.Equal(t, 0, questions[0].Position)
	assert.Equal(t, quiz.Options{{ID: "a", Text: "2", IsCorrect: true}, {ID: "b", Text: "4"}, {ID: "c", Text: "5", IsCorrect: true}}, questions[0].Options)

	quizzes, err := f.svc.List(ctx, f.quiz.CourseID, nil)
	require.NoError(t, err)
	assert.Len(t, quizzes, 2)

	t.Run("invalid question", func(t *testing.T) {
		qf, err := quiz.ParseQuizFile(strings.NewReader("title: Lol\nquestions:\n  - {type: lol, prompt: Lol}\n"))
		require.NoError(t, err)
		assert.Error(t, qf.Validate(validate))
	})
}
