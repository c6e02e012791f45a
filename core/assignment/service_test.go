package assignment_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/assignment"
	"github.com/trezcool/masomo-lms/core/user"
	inmemdb "github.com/trezcool/masomo-lms/storage/database/inmem"
	"github.com/trezcool/masomo-lms/testutil"
)

func score(f float64) *float64 { return &f }

func TestService(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := testutil.FreezeTime(t, start)

	db, err := inmemdb.Open()
	require.NoError(t, err)
	svc := assignment.NewService(inmemdb.NewAssignmentRepository(db))

	courseID := core.NewID()
	prof := user.User{ID: core.NewID()}
	alice := user.User{ID: core.NewID()}
	bob := user.User{ID: core.NewID()}

	essay, err := svc.Create(ctx, courseID, assignment.NewAssignment{
		Title:  "Essay",
		Points: 10,
		DueAt:  null.TimeFrom(start.Add(24 * time.Hour)),
		LockAt: null.TimeFrom(start.Add(48 * time.Hour)),
	})
	require.NoError(t, err)

	t.Run("unpublished", func(t *testing.T) {
		_, err := svc.Submit(ctx, essay, alice, assignment.NewSubmission{Body: "Draft"})
		assert.Equal(t, assignment.ErrUnpublished, err)
	})

	t.Run("update keeps dates ordered", func(t *testing.T) {
		_, err := svc.Update(ctx, essay.ID, assignment.UpdateAssignment{LockAt: null.TimeFrom(start)})
		assert.Error(t, err)

		published := true
		essay, err = svc.Update(ctx, essay.ID, assignment.UpdateAssignment{IsPublished: &published})
		require.NoError(t, err)
		assert.True(t, essay.IsPublished)
		assert.Equal(t, "Essay", essay.Title)
	})

	first, err := svc.Submit(ctx, essay, alice, assignment.NewSubmission{Body: "First draft"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Attempt)
	assert.False(t, first.IsLate)

	t.Run("grade", func(t *testing.T) {
		_, err := svc.Grade(ctx, essay, first.ID, prof, assignment.GradeSubmission{Score: score(11)})
		require.Error(t, err)
		_, ok := err.(*core.ValidationError)
		assert.True(t, ok)

		_, err = svc.Grade(ctx, assignment.Assignment{ID: core.NewID(), Points: 10}, first.ID, prof, assignment.GradeSubmission{Score: score(5)})
		assert.Equal(t, assignment.ErrSubmissionNotFound, errors.Cause(err))

		graded, err := svc.Grade(ctx, essay, first.ID, prof, assignment.GradeSubmission{Score: score(7), Feedback: "Good start."})
		require.NoError(t, err)
		assert.True(t, graded.IsGraded())
		assert.Equal(t, 7.0, graded.Score.Float64)
		assert.Equal(t, prof.ID, graded.GraderID.String)
		assert.Equal(t, *clock, graded.GradedAt.Time)
	})

	t.Run("late resubmission replaces the graded one", func(t *testing.T) {
		_, err := svc.Submit(ctx, essay, alice, assignment.NewSubmission{Body: "Late"})
		require.NoError(t, err)

		*clock = start.Add(30 * time.Hour)
		_, err = svc.Submit(ctx, essay, bob, assignment.NewSubmission{Body: "Late"})
		assert.Equal(t, assignment.ErrClosed, err)

		allowLate := true
		essay, err = svc.Update(ctx, essay.ID, assignment.UpdateAssignment{AllowLate: &allowLate})
		require.NoError(t, err)
		second, err := svc.Submit(ctx, essay, alice, assignment.NewSubmission{URL: "https://example.com/essay.pdf"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 3, second.Attempt)
		assert.True(t, second.IsLate)
		assert.False(t, second.IsGraded())
		assert.Empty(t, second.Body)

		subs, err := svc.Submissions(ctx, essay.ID, alice.ID)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, second, subs[0])
	})

	t.Run("locked", func(t *testing.T) {
		*clock = start.Add(48 * time.Hour)
		_, err := svc.Submit(ctx, essay, bob, assignment.NewSubmission{Body: "Too late"})
		assert.Equal(t, assignment.ErrClosed, err)
	})

	list, err := svc.List(ctx, courseID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, essay.ID))
	_, err = svc.GetByID(ctx, essay.ID)
	assert.Equal(t, assignment.ErrNotFound, errors.Cause(err))
}
