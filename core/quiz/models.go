package quiz

import (
	"database/sql/driver"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core"
)

// Question types
const (
	TypeMultipleChoice = "multiple_choice"
	TypeTrueFalse      = "true_false"
	TypeMultipleAnswer = "multiple_answer"
	TypeEssay          = "essay"
)

// Attempt statuses
const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted" // waiting for manual grading
	StatusGraded     = "graded"
)

// Scoring policies
const (
	PolicyHighest = "highest"
	PolicyLatest  = "latest"
	PolicyAverage = "average"
)

const (
	optionTrue  = "true"
	optionFalse = "false"
)

var (
	QuestionTypes   = []string{TypeMultipleChoice, TypeTrueFalse, TypeMultipleAnswer, TypeEssay}
	ScoringPolicies = []string{PolicyHighest, PolicyLatest, PolicyAverage}
)

type Quiz struct {
	ID                 string    `json:"id" db:"id"`
	CourseID           string    `json:"course_id" db:"course_id"`
	Title              string    `json:"title" db:"title"`
	Description        string    `json:"description" db:"description"`
	TimeLimit          int       `json:"time_limit" db:"time_limit"`     // minutes, 0 = none
	MaxAttempts        int       `json:"max_attempts" db:"max_attempts"` // 0 = unlimited
	AvailableFrom      null.Time `json:"available_from" db:"available_from"`
	AvailableUntil     null.Time `json:"available_until" db:"available_until"`
	IsPublished        bool      `json:"is_published" db:"is_published"`
	ShowCorrectAnswers bool      `json:"show_correct_answers" db:"show_correct_answers"`
	ScoringPolicy      string    `json:"scoring_policy" db:"scoring_policy"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// IsAvailable reports whether t is inside the quiz availability window.
func (q Quiz) IsAvailable(t time.Time) bool {
	if q.AvailableFrom.Valid && t.Before(q.AvailableFrom.Time) {
		return false
	}
	if q.AvailableUntil.Valid && !t.Before(q.AvailableUntil.Time) {
		return false
	}
	return true
}

// expiresAt is the deadline of an attempt started at t: the time limit capped by the window end.
func (q Quiz) expiresAt(t time.Time) null.Time {
	var exp null.Time
	if q.TimeLimit > 0 {
		exp = null.TimeFrom(t.Add(time.Duration(q.TimeLimit) * time.Minute))
	}
	if q.AvailableUntil.Valid && (!exp.Valid || q.AvailableUntil.Time.Before(exp.Time)) {
		exp = null.TimeFrom(q.AvailableUntil.Time)
	}
	return exp
}

type Option struct {
	ID        string `json:"id" yaml:"id"`
	Text      string `json:"text" yaml:"text"`
	IsCorrect bool   `json:"is_correct,omitempty" yaml:"correct,omitempty"`
}

// Options is persisted as a JSON TEXT column.
type Options []Option

func (o Options) Value() (driver.Value, error) { return core.JSONValue(o) }
func (o *Options) Scan(src interface{}) error  { return core.ScanJSON(src, o) }

type Question struct {
	ID       string  `json:"id" db:"id"`
	QuizID   string  `json:"quiz_id" db:"quiz_id"`
	Type     string  `json:"type" db:"type"`
	Prompt   string  `json:"prompt" db:"prompt"`
	Points   float64 `json:"points" db:"points"`
	Position int     `json:"position" db:"position"`
	Options  Options `json:"options" db:"options"`
}

// IsManual reports whether answers to the question are graded by hand.
func (q Question) IsManual() bool { return q.Type == TypeEssay }

// ForStudent hides which options are correct.
func (q Question) ForStudent() Question {
	opts := make(Options, len(q.Options))
	for i, o := range q.Options {
		opts[i] = Option{ID: o.ID, Text: o.Text}
	}
	q.Options = opts
	return q
}

func (q Question) hasOption(id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

func (q Question) correctOptionIDs() []string {
	ids := make([]string, 0, 1)
	for _, o := range q.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

type Answer struct {
	OptionIDs []string `json:"option_ids,omitempty"`
	Text      string   `json:"text,omitempty"`
	Points    float64  `json:"points"`
	Graded    bool     `json:"graded"`
}

// Answers maps question IDs to answers; persisted as a JSON TEXT column.
type Answers map[string]Answer

func (a Answers) Value() (driver.Value, error) { return core.JSONValue(a) }
func (a *Answers) Scan(src interface{}) error  { return core.ScanJSON(src, a) }

// Merge returns a copy of a overridden by b.
func (a Answers) Merge(b Answers) Answers {
	out := make(Answers, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

type Attempt struct {
	ID            string       `json:"id" db:"id"`
	QuizID        string       `json:"quiz_id" db:"quiz_id"`
	StudentID     string       `json:"student_id" db:"student_id"`
	Number        int          `json:"number" db:"number"`
	Status        string       `json:"status" db:"status"`
	StartedAt     time.Time    `json:"started_at" db:"started_at"`
	ExpiresAt     null.Time    `json:"expires_at" db:"expires_at"`
	SubmittedAt   null.Time    `json:"submitted_at" db:"submitted_at"`
	AutoSubmitted bool         `json:"auto_submitted" db:"auto_submitted"`
	Answers       Answers      `json:"answers" db:"answers"`
	Score         null.Float64 `json:"score" db:"score"`
	MaxScore      float64      `json:"max_score" db:"max_score"`
}

func (a Attempt) IsFinished() bool { return a.Status != StatusInProgress }

// IsExpired reports whether the attempt deadline has passed at t.
func (a Attempt) IsExpired(t time.Time) bool {
	return a.ExpiresAt.Valid && !t.Before(a.ExpiresAt.Time)
}

// ForStudent hides per answer points of an attempt still waiting for manual grading.
func (a Attempt) ForStudent() Attempt {
	if a.Status != StatusSubmitted {
		return a
	}
	answers := make(Answers, len(a.Answers))
	for k, v := range a.Answers {
		answers[k] = Answer{OptionIDs: v.OptionIDs, Text: v.Text}
	}
	a.Answers = answers
	a.Score = null.Float64{}
	return a
}

// NewQuiz contains information needed to create a new Quiz.
type NewQuiz struct {
	Title              string    `json:"title" validate:"required,max=255"`
	Description        string    `json:"description"`
	TimeLimit          int       `json:"time_limit" validate:"gte=0"`
	MaxAttempts        int       `json:"max_attempts" validate:"gte=0"`
	AvailableFrom      null.Time `json:"available_from"`
	AvailableUntil     null.Time `json:"available_until"`
	IsPublished        bool      `json:"is_published"`
	ShowCorrectAnswers bool      `json:"show_correct_answers"`
	ScoringPolicy      string    `json:"scoring_policy" validate:"omitempty,oneof=highest latest average"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	nq.Description = core.CleanString(nq.Description)
	nq.ScoringPolicy = core.CleanString(nq.ScoringPolicy, true /* lower */)
	if nq.ScoringPolicy == "" {
		nq.ScoringPolicy = PolicyHighest
	}
	if err := validate.Struct(nq); err != nil {
		return err
	}
	return core.CheckTimeRange("available_until", nq.AvailableFrom, nq.AvailableUntil)
}

// UpdateQuiz defines what information may be provided to modify an existing Quiz.
type UpdateQuiz struct {
	Title              string    `json:"title" validate:"omitempty,max=255"`
	Description        *string   `json:"description"`
	TimeLimit          *int      `json:"time_limit" validate:"omitempty,gte=0"`
	MaxAttempts        *int      `json:"max_attempts" validate:"omitempty,gte=0"`
	AvailableFrom      null.Time `json:"available_from"`
	AvailableUntil     null.Time `json:"available_until"`
	IsPublished        *bool     `json:"is_published"`
	ShowCorrectAnswers *bool     `json:"show_correct_answers"`
	ScoringPolicy      string    `json:"scoring_policy" validate:"omitempty,oneof=highest latest average"`
}

func (uq *UpdateQuiz) Validate(validate *validator.Validate) error {
	uq.Title = core.CleanString(uq.Title)
	uq.ScoringPolicy = core.CleanString(uq.ScoringPolicy, true /* lower */)
	return validate.Struct(uq)
}

type NewOption struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

// NewQuestion is used to create or replace a Question.
// true_false questions take Answer instead of Options.
type NewQuestion struct {
	Type     string      `json:"type" validate:"required,qtype"`
	Prompt   string      `json:"prompt" validate:"required"`
	Points   float64     `json:"points" validate:"gte=0"`
	Position *int        `json:"position" validate:"omitempty,gte=0"`
	Options  []NewOption `json:"options" validate:"max=26,dive"`
	Answer   *bool       `json:"answer"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Type = core.CleanString(nq.Type, true /* lower */)
	nq.Prompt = core.CleanString(nq.Prompt)
	for i := range nq.Options {
		nq.Options[i].Text = core.CleanString(nq.Options[i].Text)
	}
	return validate.Struct(nq)
}

// options builds the stored options: letters for choice questions, true/false otherwise.
func (nq NewQuestion) options() Options {
	switch nq.Type {
	case TypeTrueFalse:
		answer := nq.Answer != nil && *nq.Answer
		return Options{
			{ID: optionTrue, Text: "True", IsCorrect: answer},
			{ID: optionFalse, Text: "False", IsCorrect: !answer},
		}
	case TypeEssay:
		return Options{}
	}
	opts := make(Options, 0, len(nq.Options))
	for i, o := range nq.Options {
		opts = append(opts, Option{ID: string(rune('a' + i)), Text: o.Text, IsCorrect: o.IsCorrect})
	}
	return opts
}

type SaveAnswers struct {
	Answers map[string]AnswerInput `json:"answers" validate:"required"`
}

type AnswerInput struct {
	OptionIDs []string `json:"option_ids"`
	Text      string   `json:"text"`
}

func (sa *SaveAnswers) Validate(validate *validator.Validate) error { return validate.Struct(sa) }

type GradeAnswer struct {
	Points *float64 `json:"points" validate:"required,gte=0"`
}

func (ga *GradeAnswer) Validate(validate *validator.Validate) error { return validate.Struct(ga) }

type AttemptFilter struct {
	QuizID    string
	StudentID string
	Status    string
}

// Orderable lists the fields quizzes can be ordered by.
var Orderable = []string{"title", "available_from", "available_until", "is_published", "created_at", "updated_at"}
