package course_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/user"
	inmemdb "github.com/trezcool/masomo-lms/storage/database/inmem"
)

var ctx = context.Background()

func newService(t *testing.T) course.Service {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	return course.NewService(inmemdb.NewCourseRepository(db))
}

func requireFieldError(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	verr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "want a *core.ValidationError, got %T", err)
	require.NotEmpty(t, verr.Fields)
	assert.Equal(t, field, verr.Fields[0].Field)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Getting Started":      "getting-started",
		"  C++ & Go: Part 2! ": "c-go-part-2",
		"already-a-slug":       "already-a-slug",
		"???":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, course.Slugify(in), in)
	}
}

func TestService_courses(t *testing.T) {
	svc := newService(t)
	prof := core.NewID()

	maths, err := svc.Create(ctx, course.NewCourse{Code: "MATH101", Title: "Maths", InstructorID: prof})
	require.NoError(t, err)

	_, err = svc.Create(ctx, course.NewCourse{Code: "MATH101", Title: "Maths again"})
	requireFieldError(t, err, "code")

	physics, err := svc.Create(ctx, course.NewCourse{Code: "PHY101", Title: "Physics"})
	require.NoError(t, err)

	t.Run("update", func(t *testing.T) {
		_, err := svc.Update(ctx, physics.ID, course.UpdateCourse{Code: "MATH101"})
		requireFieldError(t, err, "code")

		published := true
		updated, err := svc.Update(ctx, physics.ID, course.UpdateCourse{Code: "PHY102", IsPublished: &published})
		require.NoError(t, err)
		assert.Equal(t, "PHY102", updated.Code)
		assert.Equal(t, "Physics", updated.Title)
		assert.True(t, updated.IsPublished)

		// keeping its own code is fine
		_, err = svc.Update(ctx, physics.ID, course.UpdateCourse{Code: "PHY102", Title: "Physics I"})
		assert.NoError(t, err)

		_, err = svc.Update(ctx, core.NewID(), course.UpdateCourse{Title: "Lol"})
		assert.Equal(t, course.ErrNotFound, errors.Cause(err))
	})

	t.Run("membership", func(t *testing.T) {
		student := user.User{ID: core.NewID()}
		assistant := user.User{ID: core.NewID()}
		outsider := user.User{ID: core.NewID()}

		_, err := svc.Enroll(ctx, maths.ID, course.NewEnrollment{UserID: student.ID, Role: course.RoleStudent})
		require.NoError(t, err)
		_, err = svc.Enroll(ctx, maths.ID, course.NewEnrollment{UserID: assistant.ID, Role: course.RoleInstructor})
		require.NoError(t, err)
		_, err = svc.Enroll(ctx, maths.ID, course.NewEnrollment{UserID: student.ID, Role: course.RoleStudent})
		requireFieldError(t, err, "user_id")

		m, err := svc.Membership(ctx, maths, user.User{ID: prof})
		require.NoError(t, err)
		assert.True(t, m.IsOwner)
		assert.True(t, m.IsInstructor())
		assert.False(t, m.IsStudent())

		m, err = svc.Membership(ctx, maths, student)
		require.NoError(t, err)
		assert.True(t, m.IsStudent())
		assert.False(t, m.IsInstructor())

		m, err = svc.Membership(ctx, maths, assistant)
		require.NoError(t, err)
		assert.True(t, m.IsInstructor())
		assert.False(t, m.IsOwner)

		m, err = svc.Membership(ctx, maths, outsider)
		require.NoError(t, err)
		assert.False(t, m.IsMember())

		ids, err := svc.StudentIDs(ctx, maths.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{student.ID}, ids)

		courses, err := svc.Query(ctx, &course.QueryFilter{MemberID: student.ID}, nil)
		require.NoError(t, err)
		require.Len(t, courses, 1)
		assert.Equal(t, maths.ID, courses[0].ID)

		require.NoError(t, svc.Unenroll(ctx, maths.ID, student.ID))
		assert.Equal(t, course.ErrEnrollmentNotFound, errors.Cause(svc.Unenroll(ctx, maths.ID, student.ID)))
		ids, err = svc.StudentIDs(ctx, maths.ID)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("search", func(t *testing.T) {
		courses, err := svc.Query(ctx, &course.QueryFilter{Search: "phy"}, nil)
		require.NoError(t, err)
		require.Len(t, courses, 1)
		assert.Equal(t, physics.ID, courses[0].ID)
	})

	require.NoError(t, svc.Delete(ctx, physics.ID))
	_, err = svc.GetByID(ctx, physics.ID)
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))
}

func TestService_modules(t *testing.T) {
	svc := newService(t)
	c, err := svc.Create(ctx, course.NewCourse{Code: "MATH101", Title: "Maths"})
	require.NoError(t, err)

	week1, err := svc.CreateModule(ctx, c.ID, course.NewModule{Title: "Week 1"})
	require.NoError(t, err)
	week2, err := svc.CreateModule(ctx, c.ID, course.NewModule{Title: "Week 2"})
	require.NoError(t, err)
	assert.Equal(t, 0, week1.Position)
	assert.Equal(t, 1, week2.Position)

	pageID, quizID := core.NewID(), core.NewID()
	page, err := svc.AddItem(ctx, week1.ID, course.NewModuleItem{ItemType: course.ItemPage, ItemID: pageID})
	require.NoError(t, err)
	qz, err := svc.AddItem(ctx, week1.ID, course.NewModuleItem{ItemType: course.ItemQuiz, ItemID: quizID})
	require.NoError(t, err)
	assert.Equal(t, 1, qz.Position)

	_, err = svc.AddItem(ctx, week1.ID, course.NewModuleItem{ItemType: course.ItemPage, ItemID: pageID})
	requireFieldError(t, err, "item_id")

	t.Run("reorder", func(t *testing.T) {
		_, err := svc.ReorderItems(ctx, week1.ID, course.ReorderItems{ItemIDs: []string{qz.ID}})
		requireFieldError(t, err, "item_ids")
		_, err = svc.ReorderItems(ctx, week1.ID, course.ReorderItems{ItemIDs: []string{qz.ID, qz.ID}})
		requireFieldError(t, err, "item_ids")

		items, err := svc.ReorderItems(ctx, week1.ID, course.ReorderItems{ItemIDs: []string{qz.ID, page.ID}})
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, qz.ID, items[0].ID)
		assert.Equal(t, 0, items[0].Position)
		assert.Equal(t, page.ID, items[1].ID)
	})

	assert.Equal(t, course.ErrItemNotFound, errors.Cause(svc.RemoveItem(ctx, week2.ID, page.ID)))
	require.NoError(t, svc.RemoveItem(ctx, week1.ID, page.ID))
	items, err := svc.Items(ctx, week1.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, qz.ID, items[0].ID)
}

func TestService_pages(t *testing.T) {
	svc := newService(t)
	maths, err := svc.Create(ctx, course.NewCourse{Code: "MATH101", Title: "Maths"})
	require.NoError(t, err)
	physics, err := svc.Create(ctx, course.NewCourse{Code: "PHY101", Title: "Physics"})
	require.NoError(t, err)

	intro, err := svc.CreatePage(ctx, maths.ID, course.NewPage{Title: "Intro", Slug: "intro"})
	require.NoError(t, err)
	syllabus, err := svc.CreatePage(ctx, maths.ID, course.NewPage{Title: "Syllabus", Slug: "syllabus"})
	require.NoError(t, err)

	_, err = svc.CreatePage(ctx, maths.ID, course.NewPage{Title: "Intro again", Slug: "intro"})
	requireFieldError(t, err, "slug")
	_, err = svc.CreatePage(ctx, physics.ID, course.NewPage{Title: "Intro", Slug: "intro"})
	assert.NoError(t, err, "slugs are unique per course")

	_, err = svc.UpdatePage(ctx, syllabus.ID, course.UpdatePage{Slug: "intro"})
	requireFieldError(t, err, "slug")

	body := "Welcome!"
	updated, err := svc.UpdatePage(ctx, intro.ID, course.UpdatePage{Slug: "welcome", Body: &body})
	require.NoError(t, err)
	assert.Equal(t, "welcome", updated.Slug)
	assert.Equal(t, "Intro", updated.Title)
	assert.Equal(t, body, updated.Body)

	pages, err := svc.Pages(ctx, maths.ID)
	require.NoError(t, err)
	assert.Len(t, pages, 2)

	require.NoError(t, svc.DeletePage(ctx, intro.ID))
	_, err = svc.GetPage(ctx, intro.ID)
	assert.Equal(t, course.ErrPageNotFound, errors.Cause(err))
}
