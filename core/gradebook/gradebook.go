package gradebook

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core/assignment"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/quiz"
	"github.com/trezcool/masomo-lms/core/user"
)

// Column kinds
const (
	KindQuiz       = "quiz"
	KindAssignment = "assignment"
)

// Cell statuses
const (
	StatusMissing    = "missing"
	StatusInProgress = "in_progress"
	StatusPending    = "pending" // waiting for grading
	StatusGraded     = "graded"
)

type (
	Column struct {
		ID     string  `json:"id"`
		Kind   string  `json:"kind"`
		Title  string  `json:"title"`
		Points float64 `json:"points"`
	}

	Cell struct {
		Score  null.Float64 `json:"score"`
		Status string       `json:"status"`
	}

	Row struct {
		StudentID string          `json:"student_id"`
		Name      string          `json:"name"`
		Cells     map[string]Cell `json:"cells"` // {columnID: Cell}
		Total     float64         `json:"total"`
		Possible  float64         `json:"possible"` // points of the graded columns
		Percent   null.Float64    `json:"percent"`
	}

	Gradebook struct {
		CourseID string   `json:"course_id"`
		Columns  []Column `json:"columns"`
		Rows     []Row    `json:"rows"`
	}
)

type (
	Service interface {
		// Build computes the course gradebook, restricted to a single student when studentID != "".
		Build(ctx context.Context, c course.Course, studentID string) (Gradebook, error)
	}

	service struct {
		courseSvc     course.Service
		userSvc       user.Service
		quizSvc       quiz.Service
		assignmentSvc assignment.Service
	}
)

var _ Service = (*service)(nil)

func NewService(courseSvc course.Service, userSvc user.Service, quizSvc quiz.Service, assignmentSvc assignment.Service) Service {
	return &service{
		courseSvc:     courseSvc,
		userSvc:       userSvc,
		quizSvc:       quizSvc,
		assignmentSvc: assignmentSvc,
	}
}

func (svc *service) Build(ctx context.Context, c course.Course, studentID string) (Gradebook, error) {
	gb := Gradebook{CourseID: c.ID, Columns: []Column{}, Rows: []Row{}}

	studentIDs, err := svc.courseSvc.StudentIDs(ctx, c.ID)
	if err != nil {
		return Gradebook{}, errors.Wrap(err, "querying students")
	}
	if studentID != "" {
		studentIDs = filterIDs(studentIDs, studentID)
	}
	students, err := svc.userSvc.GetByIDs(ctx, studentIDs...)
	if err != nil {
		return Gradebook{}, errors.Wrap(err, "querying students")
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })

	rows := make(map[string]*Row, len(students))
	for _, s := range students {
		gb.Rows = append(gb.Rows, Row{StudentID: s.ID, Name: s.Name, Cells: make(map[string]Cell)})
	}
	for i := range gb.Rows {
		rows[gb.Rows[i].StudentID] = &gb.Rows[i]
	}

	if err = svc.addQuizzes(ctx, &gb, rows, studentID); err != nil {
		return Gradebook{}, err
	}
	if err = svc.addAssignments(ctx, &gb, rows, studentID); err != nil {
		return Gradebook{}, err
	}

	for i := range gb.Rows {
		gb.Rows[i].summarize(gb.Columns)
	}
	return gb, nil
}

func (svc *service) addQuizzes(ctx context.Context, gb *Gradebook, rows map[string]*Row, studentID string) error {
	quizzes, err := svc.quizSvc.List(ctx, gb.CourseID, nil)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	for _, q := range quizzes {
		if !q.IsPublished {
			continue
		}
		questions, err := svc.quizSvc.Questions(ctx, q.ID, false)
		if err != nil {
			return errors.Wrap(err, "querying questions")
		}
		col := Column{ID: q.ID, Kind: KindQuiz, Title: q.Title}
		for _, qn := range questions {
			col.Points += qn.Points
		}
		gb.Columns = append(gb.Columns, col)

		attempts, err := svc.quizSvc.Attempts(ctx, q.ID, studentID)
		if err != nil {
			return errors.Wrap(err, "querying attempts")
		}
		byStudent := make(map[string][]quiz.Attempt)
		for _, a := range attempts {
			byStudent[a.StudentID] = append(byStudent[a.StudentID], a)
		}
		for id, row := range rows {
			row.Cells[col.ID] = quizCell(byStudent[id], q.ScoringPolicy)
		}
	}
	return nil
}

// quizCell keeps the score of graded attempts only; attempts waiting for manual grading mark the cell pending.
func quizCell(attempts []quiz.Attempt, policy string) Cell {
	if len(attempts) == 0 {
		return Cell{Status: StatusMissing}
	}
	graded := make([]quiz.Attempt, 0, len(attempts))
	var pending, inProgress bool
	for _, a := range attempts {
		switch a.Status {
		case quiz.StatusGraded:
			graded = append(graded, a)
		case quiz.StatusSubmitted:
			pending = true
		case quiz.StatusInProgress:
			inProgress = true
		}
	}

	cell := Cell{Score: quiz.KeptScore(graded, policy)}
	switch {
	case pending:
		cell.Status = StatusPending
	case cell.Score.Valid:
		cell.Status = StatusGraded
	case inProgress:
		cell.Status = StatusInProgress
	default:
		cell.Status = StatusMissing
	}
	return cell
}

func (svc *service) addAssignments(ctx context.Context, gb *Gradebook, rows map[string]*Row, studentID string) error {
	assignments, err := svc.assignmentSvc.List(ctx, gb.CourseID)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	for _, a := range assignments {
		if !a.IsPublished {
			continue
		}
		col := Column{ID: a.ID, Kind: KindAssignment, Title: a.Title, Points: a.Points}
		gb.Columns = append(gb.Columns, col)

		subs, err := svc.assignmentSvc.Submissions(ctx, a.ID, studentID)
		if err != nil {
			return errors.Wrap(err, "querying submissions")
		}
		for _, row := range rows {
			row.Cells[col.ID] = Cell{Status: StatusMissing}
		}
		for _, s := range subs {
			row, ok := rows[s.StudentID]
			if !ok {
				continue // no longer enrolled
			}
			cell := Cell{Status: StatusPending}
			if s.IsGraded() {
				cell = Cell{Score: s.Score, Status: StatusGraded}
			}
			row.Cells[col.ID] = cell
		}
	}
	return nil
}

func (r *Row) summarize(columns []Column) {
	r.Total, r.Possible = 0, 0
	for _, col := range columns {
		cell, ok := r.Cells[col.ID]
		if !ok || !cell.Score.Valid {
			continue
		}
		r.Total += cell.Score.Float64
		r.Possible += col.Points
	}
	if r.Possible > 0 {
		r.Percent = null.Float64From(r.Total / r.Possible * 100)
	}
}

func filterIDs(ids []string, keep string) []string {
	for _, id := range ids {
		if id == keep {
			return []string{id}
		}
	}
	return []string{}
}
