package quiz

import (
	"sort"
	"strings"
)

// Result is the outcome of grading a single answer.
type Result struct {
	Points      float64
	NeedsManual bool
}

// Strategy grades answers to one question type.
type Strategy interface {
	Grade(q Question, ans Answer) Result
}

// Grader routes answers to the Strategy of their question type.
type Grader struct {
	strategies map[string]Strategy
}

// NewGrader installs the built-in strategies. Scoring is exact match, without partial credit.
func NewGrader() *Grader {
	return &Grader{
		strategies: map[string]Strategy{
			TypeMultipleChoice: singleChoiceStrategy{},
			TypeTrueFalse:      singleChoiceStrategy{},
			TypeMultipleAnswer: multipleAnswerStrategy{},
			TypeEssay:          manualStrategy{},
		},
	}
}

func (g *Grader) Grade(q Question, ans Answer) Result {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{NeedsManual: true}
	}
	return s.Grade(q, ans)
}

// GradeAttempt grades every question of the quiz against answers.
// Unanswered questions score 0; manual ones stay ungraded until reviewed.
// It returns the graded answers, the score and whether manual grading is pending.
func (g *Grader) GradeAttempt(questions []Question, answers Answers) (Answers, float64, bool) {
	graded := make(Answers, len(questions))
	var score float64
	var pending bool
	for _, q := range questions {
		ans := answers[q.ID]
		res := g.Grade(q, ans)
		ans.Points = res.Points
		ans.Graded = !res.NeedsManual
		if res.NeedsManual {
			pending = true
		}
		score += res.Points
		graded[q.ID] = ans
	}
	return graded, score, pending
}

type singleChoiceStrategy struct{}

// Grade awards full points iff exactly the single correct option is selected.
func (singleChoiceStrategy) Grade(q Question, ans Answer) Result {
	correct := q.correctOptionIDs()
	if len(ans.OptionIDs) == 1 && len(correct) == 1 && ans.OptionIDs[0] == correct[0] {
		return Result{Points: q.Points}
	}
	return Result{}
}

type multipleAnswerStrategy struct{}

// Grade awards full points iff the selected set equals the correct set.
func (multipleAnswerStrategy) Grade(q Question, ans Answer) Result {
	if equalSets(ans.OptionIDs, q.correctOptionIDs()) {
		return Result{Points: q.Points}
	}
	return Result{}
}

type manualStrategy struct{}

// Grade leaves answers for review; blank answers score 0 right away.
func (manualStrategy) Grade(_ Question, ans Answer) Result {
	if strings.TrimSpace(ans.Text) == "" {
		return Result{}
	}
	return Result{NeedsManual: true}
}

func equalSets(a, b []string) bool {
	a, b = dedup(a), dedup(b)
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func dedup(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	j := 0
	for i, s := range out {
		if i == 0 || s != out[j-1] {
			out[j] = s
			j++
		}
	}
	return out[:j]
}
