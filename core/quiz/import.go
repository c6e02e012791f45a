package quiz

import (
	"context"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gopkg.in/yaml.v3"
)

// QuizFile is the YAML representation of a quiz with its questions.
//
//	title: Week 1
//	time_limit: 20
//	questions:
//	  - type: multiple_choice
//	    prompt: 2 + 2 = ?
//	    points: 1
//	    options:
//	      - {text: "3"}
//	      - {text: "4", correct: true}
type QuizFile struct {
	Title              string         `yaml:"title"`
	Description        string         `yaml:"description"`
	TimeLimit          int            `yaml:"time_limit"`
	MaxAttempts        int            `yaml:"max_attempts"`
	AvailableFrom      null.Time      `yaml:"available_from"`
	AvailableUntil     null.Time      `yaml:"available_until"`
	Published          bool           `yaml:"published"`
	ShowCorrectAnswers bool           `yaml:"show_correct_answers"`
	ScoringPolicy      string         `yaml:"scoring_policy"`
	Questions          []QuestionFile `yaml:"questions"`

	quiz      NewQuiz
	questions []NewQuestion
}

type QuestionFile struct {
	Type    string       `yaml:"type"`
	Prompt  string       `yaml:"prompt"`
	Points  float64      `yaml:"points"`
	Options []OptionFile `yaml:"options"`
	Answer  *bool        `yaml:"answer"`
}

type OptionFile struct {
	Text    string `yaml:"text"`
	Correct bool   `yaml:"correct"`
}

// ParseQuizFile decodes a YAML quiz; unknown keys are rejected.
func ParseQuizFile(r io.Reader) (QuizFile, error) {
	var qf QuizFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&qf); err != nil {
		return QuizFile{}, errors.Wrap(err, "decoding quiz file")
	}
	return qf, nil
}

// Validate checks the quiz and every question the same way the API does.
func (qf *QuizFile) Validate(validate *validator.Validate) error {
	qf.quiz = NewQuiz{
		Title:              qf.Title,
		Description:        qf.Description,
		TimeLimit:          qf.TimeLimit,
		MaxAttempts:        qf.MaxAttempts,
		AvailableFrom:      qf.AvailableFrom,
		AvailableUntil:     qf.AvailableUntil,
		IsPublished:        qf.Published,
		ShowCorrectAnswers: qf.ShowCorrectAnswers,
		ScoringPolicy:      qf.ScoringPolicy,
	}
	if err := qf.quiz.Validate(validate); err != nil {
		return err
	}
	if len(qf.Questions) == 0 {
		return errors.New("quiz file has no questions")
	}

	qf.questions = make([]NewQuestion, 0, len(qf.Questions))
	for i, q := range qf.Questions {
		pos := i
		nq := NewQuestion{Type: q.Type, Prompt: q.Prompt, Points: q.Points, Position: &pos, Answer: q.Answer}
		for _, o := range q.Options {
			nq.Options = append(nq.Options, NewOption{Text: o.Text, IsCorrect: o.Correct})
		}
		if err := nq.Validate(validate); err != nil {
			return errors.Wrapf(err, "question %d", i+1)
		}
		qf.questions = append(qf.questions, nq)
	}
	return nil
}

// Import creates the quiz and its questions from a validated QuizFile.
func (svc *service) Import(ctx context.Context, courseID string, qf QuizFile) (Quiz, []Question, error) {
	if len(qf.questions) != len(qf.Questions) || qf.quiz.Title == "" {
		return Quiz{}, nil, errors.New("quiz file must be validated before import")
	}
	q, err := svc.Create(ctx, courseID, qf.quiz)
	if err != nil {
		return Quiz{}, nil, errors.Wrap(err, "creating quiz")
	}
	questions := make([]Question, 0, len(qf.questions))
	for _, nq := range qf.questions {
		qn, err := svc.CreateQuestion(ctx, q, nq)
		if err != nil {
			return Quiz{}, nil, errors.Wrap(err, "creating question")
		}
		questions = append(questions, qn)
	}
	return q, questions, nil
}
