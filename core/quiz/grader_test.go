package quiz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core"
)

var (
	mcQuestion = Question{
		ID: "mc", Type: TypeMultipleChoice, Points: 2,
		Options: Options{{ID: "a", Text: "3"}, {ID: "b", Text: "4", IsCorrect: true}},
	}
	maQuestion = Question{
		ID: "ma", Type: TypeMultipleAnswer, Points: 3,
		Options: Options{{ID: "a", IsCorrect: true}, {ID: "b"}, {ID: "c", IsCorrect: true}},
	}
	tfQuestion    = Question{ID: "tf", Type: TypeTrueFalse, Points: 1, Options: NewQuestion{Type: TypeTrueFalse}.options()}
	essayQuestion = Question{ID: "essay", Type: TypeEssay, Points: 5, Options: Options{}}
)

func TestGrader_Grade(t *testing.T) {
	g := NewGrader()

	tests := []struct {
		name string
		q    Question
		ans  Answer
		want Result
	}{
		{name: "single choice: correct", q: mcQuestion, ans: Answer{OptionIDs: []string{"b"}}, want: Result{Points: 2}},
		{name: "single choice: wrong", q: mcQuestion, ans: Answer{OptionIDs: []string{"a"}}},
		{name: "single choice: blank", q: mcQuestion, ans: Answer{}},
		{name: "single choice: both", q: mcQuestion, ans: Answer{OptionIDs: []string{"a", "b"}}},
		{name: "true false", q: tfQuestion, ans: Answer{OptionIDs: []string{optionFalse}}, want: Result{Points: 1}},
		{name: "multiple answer: exact set", q: maQuestion, ans: Answer{OptionIDs: []string{"c", "a"}}, want: Result{Points: 3}},
		{name: "multiple answer: duplicates", q: maQuestion, ans: Answer{OptionIDs: []string{"a", "c", "a"}}, want: Result{Points: 3}},
		{name: "multiple answer: subset", q: maQuestion, ans: Answer{OptionIDs: []string{"a"}}},
		{name: "multiple answer: superset", q: maQuestion, ans: Answer{OptionIDs: []string{"a", "b", "c"}}},
		{name: "multiple answer: blank", q: maQuestion, ans: Answer{}},
		{name: "essay", q: essayQuestion, ans: Answer{Text: "Lightweight threads."}, want: Result{NeedsManual: true}},
		{name: "essay: blank", q: essayQuestion, ans: Answer{Text: "   "}},
		{name: "unknown type", q: Question{Type: "lol", Points: 1}, ans: Answer{Text: "lol"}, want: Result{NeedsManual: true}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Grade(tt.q, tt.ans))
		})
	}
}

func TestGrader_GradeAttempt(t *testing.T) {
	questions := []Question{mcQuestion, essayQuestion, tfQuestion}

	graded, score, pending := NewGrader().GradeAttempt(questions, Answers{
		mcQuestion.ID:    {OptionIDs: []string{"b"}},
		essayQuestion.ID: {Text: "Lightweight threads."},
		"lol":            {Text: "not a question of this quiz"},
	})
	assert.Equal(t, 2.0, score)
	assert.True(t, pending)
	require.Len(t, graded, 3)
	assert.Equal(t, Answer{OptionIDs: []string{"b"}, Points: 2, Graded: true}, graded[mcQuestion.ID])
	assert.Equal(t, Answer{Text: "Lightweight threads.", Graded: false}, graded[essayQuestion.ID])
	assert.Equal(t, Answer{Graded: true}, graded[tfQuestion.ID])

	_, score, pending = NewGrader().GradeAttempt(questions, Answers{tfQuestion.ID: {OptionIDs: []string{optionFalse}}})
	assert.Equal(t, 1.0, score)
	assert.False(t, pending)
}

func TestKeptScore(t *testing.T) {
	attempts := []Attempt{
		{Number: 1, Status: StatusGraded, Score: null.Float64From(4)},
		{Number: 2, Status: StatusGraded, Score: null.Float64From(8)},
		{Number: 3, Status: StatusGraded, Score: null.Float64From(6)},
		{Number: 4, Status: StatusInProgress},
	}

	tests := []struct {
		policy string
		want   null.Float64
	}{
		{policy: PolicyHighest, want: null.Float64From(8)},
		{policy: "", want: null.Float64From(8)},
		{policy: PolicyLatest, want: null.Float64From(6)},
		{policy: PolicyAverage, want: null.Float64From(6)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.policy, func(t *testing.T) {
			assert.Equal(t, tt.want, KeptScore(attempts, tt.policy))
		})
	}

	assert.False(t, KeptScore(nil, PolicyAverage).Valid)
	assert.False(t, KeptScore(attempts[3:], PolicyHighest).Valid)
}

func TestQuiz_window(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	until := null.TimeFrom(now.Add(20 * time.Minute))

	q := Quiz{AvailableFrom: null.TimeFrom(now), AvailableUntil: until}
	assert.False(t, q.IsAvailable(now.Add(-time.Second)))
	assert.True(t, q.IsAvailable(now))
	assert.False(t, q.IsAvailable(until.Time))

	assert.False(t, Quiz{}.expiresAt(now).Valid)
	assert.Equal(t, now.Add(30*time.Minute), Quiz{TimeLimit: 30}.expiresAt(now).Time)
	assert.Equal(t, until.Time, Quiz{TimeLimit: 30, AvailableUntil: until}.expiresAt(now).Time)
	assert.Equal(t, now.Add(10*time.Minute), Quiz{TimeLimit: 10, AvailableUntil: until}.expiresAt(now).Time)
}

func TestAttempt_ForStudent(t *testing.T) {
	a := Attempt{
		Status:  StatusSubmitted,
		Answers: Answers{"mc": {OptionIDs: []string{"b"}, Points: 2, Graded: true}},
		Score:   null.Float64From(2),
	}
	hidden := a.ForStudent()
	assert.False(t, hidden.Score.Valid)
	assert.Equal(t, Answer{OptionIDs: []string{"b"}}, hidden.Answers["mc"])
	assert.Equal(t, 2.0, a.Answers["mc"].Points, "the original answers are left untouched")

	a.Status = StatusGraded
	assert.Equal(t, a, a.ForStudent())
}

func TestQuestion_ForStudent(t *testing.T) {
	q := mcQuestion.ForStudent()
	assert.Equal(t, Options{{ID: "a", Text: "3"}, {ID: "b", Text: "4"}}, q.Options)
	assert.True(t, mcQuestion.Options[1].IsCorrect)
}

func TestCleanAnswers(t *testing.T) {
	questions := []Question{mcQuestion, maQuestion, essayQuestion}

	answers, err := cleanAnswers(questions, map[string]AnswerInput{
		mcQuestion.ID:    {OptionIDs: []string{"b"}},
		maQuestion.ID:    {OptionIDs: []string{"c", "a", "c"}},
		essayQuestion.ID: {Text: "  Lightweight threads. "},
	})
	require.NoError(t, err)
	assert.Equal(t, Answers{
		mcQuestion.ID:    {OptionIDs: []string{"b"}},
		maQuestion.ID:    {OptionIDs: []string{"a", "c"}},
		essayQuestion.ID: {Text: "Lightweight threads."},
	}, answers)

	tests := []struct {
		name  string
		in    map[string]AnswerInput
		field string
		msg   string
	}{
		{name: "unknown question", in: map[string]AnswerInput{"lol": {Text: "lol"}}, field: "answers.lol", msg: "question not found in this quiz"},
		{name: "essay options", in: map[string]AnswerInput{essayQuestion.ID: {OptionIDs: []string{"a"}}}, field: "answers.essay", msg: "essay questions take a text answer"},
		{name: "single choice", in: map[string]AnswerInput{mcQuestion.ID: {OptionIDs: []string{"a", "b"}}}, field: "answers.mc", msg: "only one option can be selected"},
		{name: "unknown option", in: map[string]AnswerInput{maQuestion.ID: {OptionIDs: []string{"a", "z"}}}, field: "answers.ma", msg: `unknown option "z"`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := cleanAnswers(questions, tt.in)
			require.Error(t, err)
			verr, ok := err.(*core.ValidationError)
			require.True(t, ok, "want a *core.ValidationError, got %T", err)
			assert.Equal(t, []core.FieldError{{Field: tt.field, Error: tt.msg}}, verr.Fields)
		})
	}
}

func TestNewQuestion_options(t *testing.T) {
	yes := true
	assert.Equal(t, Options{{ID: "true", Text: "True", IsCorrect: true}, {ID: "false", Text: "False"}},
		NewQuestion{Type: TypeTrueFalse, Answer: &yes}.options())
	assert.Equal(t, Options{}, NewQuestion{Type: TypeEssay, Options: []NewOption{{Text: "lol"}}}.options())
	assert.Equal(t, Options{{ID: "a", Text: "x"}, {ID: "b", Text: "y", IsCorrect: true}, {ID: "c", Text: "z"}},
		NewQuestion{Type: TypeMultipleAnswer, Options: []NewOption{{Text: "x"}, {Text: "y", IsCorrect: true}, {Text: "z"}}}.options())
}
