package gradebook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core/quiz"
)

func Test_quizCell(t *testing.T) {
	graded := func(n int, score float64) quiz.Attempt {
		return quiz.Attempt{Number: n, Status: quiz.StatusGraded, Score: null.Float64From(score)}
	}

	tests := []struct {
		name     string
		attempts []quiz.Attempt
		policy   string
		want     Cell
	}{
		{name: "no attempt", want: Cell{Status: StatusMissing}},
		{name: "in progress", attempts: []quiz.Attempt{{Number: 1, Status: quiz.StatusInProgress}}, want: Cell{Status: StatusInProgress}},
		{
			name:     "pending review hides the score",
			attempts: []quiz.Attempt{{Number: 1, Status: quiz.StatusSubmitted, Score: null.Float64From(2)}},
			want:     Cell{Status: StatusPending},
		},
		{
			name:     "pending wins over graded",
			attempts: []quiz.Attempt{graded(1, 3), {Number: 2, Status: quiz.StatusSubmitted, Score: null.Float64From(1)}},
			want:     Cell{Score: null.Float64From(3), Status: StatusPending},
		},
		{
			name:     "highest",
			attempts: []quiz.Attempt{graded(1, 3), graded(2, 1), {Number: 3, Status: quiz.StatusInProgress}},
			want:     Cell{Score: null.Float64From(3), Status: StatusGraded},
		},
		{
			name:     "latest",
			attempts: []quiz.Attempt{graded(1, 3), graded(2, 1)},
			policy:   quiz.PolicyLatest,
			want:     Cell{Score: null.Float64From(1), Status: StatusGraded},
		},
		{
			name:     "average",
			attempts: []quiz.Attempt{graded(1, 3), graded(2, 1)},
			policy:   quiz.PolicyAverage,
			want:     Cell{Score: null.Float64From(2), Status: StatusGraded},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, quizCell(tt.attempts, tt.policy))
		})
	}
}

func TestRow_summarize(t *testing.T) {
	columns := []Column{
		{ID: "q1", Points: 4},
		{ID: "a1", Points: 10},
		{ID: "a2", Points: 10},
		{ID: "a3", Points: 6},
	}
	r := Row{Cells: map[string]Cell{
		"q1": {Score: null.Float64From(3), Status: StatusGraded},
		"a1": {Score: null.Float64From(8), Status: StatusGraded},
		"a2": {Status: StatusPending},
		"a3": {Status: StatusMissing},
	}}
	r.summarize(columns)
	assert.Equal(t, 11.0, r.Total)
	assert.Equal(t, 14.0, r.Possible)
	assert.InDelta(t, 78.57, r.Percent.Float64, 0.01)

	empty := Row{Cells: map[string]Cell{"a2": {Status: StatusPending}}}
	empty.summarize(columns)
	assert.Zero(t, empty.Total)
	assert.False(t, empty.Percent.Valid)
}

func Test_filterIDs(t *testing.T) {
	ids := []string{"a", "b", "c"}
	assert.Equal(t, []string{"b"}, filterIDs(ids, "b"))
	assert.Equal(t, []string{}, filterIDs(ids, "lol"))
}
