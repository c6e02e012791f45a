package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/acl"
	"github.com/trezcool/masomo-lms/core/announcement"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/user"
	"github.com/trezcool/masomo-lms/storage/database/sqlx"
	"github.com/trezcool/masomo-lms/testutil"
)

func newCourse(t *testing.T, repo course.Repository, code string, instructor user.User) course.Course {
	t.Helper()
	now := core.Now()
	c, err := repo.CreateCourse(context.Background(), course.Course{
		ID:           core.NewID(),
		Code:         code,
		Title:        "Course " + code,
		InstructorID: instructor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	return c
}

func TestCourseRepository(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	repo := sqlxrepos.NewCourseRepository(db)

	prof := testutil.CreateUser(t, usrRepo, "Prof", "prof", "prof@example.com", "", []string{user.RoleInstructor}, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "student", "student@example.com", "", []string{user.RoleStudent}, true)

	math := newCourse(t, repo, "MATH101", prof)
	bio := newCourse(t, repo, "BIO101", prof)

	t.Run("courses", func(t *testing.T) {
		_, err := repo.CreateCourse(ctx, course.Course{ID: core.NewID(), Code: "MATH101", Title: "dup", InstructorID: prof.ID})
		assert.Equal(t, course.ErrCodeExists, err)

		got, err := repo.GetCourseByCode(ctx, "MATH101")
		require.NoError(t, err)
		assert.Equal(t, math.ID, got.ID)

		_, err = repo.GetCourse(ctx, core.NewID())
		assert.Equal(t, course.ErrNotFound, err)

		math.IsPublished = true
		math.StartsAt = null.TimeFrom(time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC))
		_, err = repo.UpdateCourse(ctx, math)
		require.NoError(t, err)
		got, err = repo.GetCourse(ctx, math.ID)
		require.NoError(t, err)
		assert.True(t, got.IsPublished)
		assert.True(t, got.StartsAt.Time.Equal(math.StartsAt.Time))
		assert.False(t, got.EndsAt.Valid)
	})

	t.Run("enrollments and membership query", func(t *testing.T) {
		e := course.Enrollment{ID: core.NewID(), CourseID: bio.ID, UserID: student.ID, Role: course.RoleStudent, CreatedAt: core.Now()}
		_, err := repo.CreateEnrollment(ctx, e)
		require.NoError(t, err)
		_, err = repo.CreateEnrollment(ctx, course.Enrollment{ID: core.NewID(), CourseID: bio.ID, UserID: student.ID, Role: course.RoleStudent})
		assert.Equal(t, course.ErrAlreadyEnrolled, err)

		got, err := repo.GetEnrollment(ctx, bio.ID, student.ID)
		require.NoError(t, err)
		assert.Equal(t, e.ID, got.ID)

		enrollments, err := repo.QueryEnrollments(ctx, bio.ID, course.RoleInstructor)
		require.NoError(t, err)
		assert.Empty(t, enrollments)

		courses, err := repo.QueryCourses(ctx, &course.QueryFilter{MemberID: student.ID}, nil)
		require.NoError(t, err)
		require.Len(t, courses, 1)
		assert.Equal(t, bio.ID, courses[0].ID)

		courses, err = repo.QueryCourses(ctx, &course.QueryFilter{MemberID: prof.ID}, nil)
		require.NoError(t, err)
		require.Len(t, courses, 2)
		assert.Equal(t, "BIO101", courses[0].Code)

		published := true
		courses, err = repo.QueryCourses(ctx, &course.QueryFilter{Search: "math", IsPublished: &published}, nil)
		require.NoError(t, err)
		require.Len(t, courses, 1)
		assert.Equal(t, math.ID, courses[0].ID)

		n, err := repo.DeleteEnrollment(ctx, bio.ID, student.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = repo.GetEnrollment(ctx, bio.ID, student.ID)
		assert.Equal(t, course.ErrEnrollmentNotFound, err)
	})

	t.Run("modules and items", func(t *testing.T) {
		now := core.Now()
		m, err := repo.CreateModule(ctx, course.Module{ID: core.NewID(), CourseID: math.ID, Title: "Week 1", CreatedAt: now, UpdatedAt: now})
		require.NoError(t, err)

		var ids []string
		for i := 0; i < 3; i++ {
			it, err := repo.CreateModuleItem(ctx, course.ModuleItem{
				ID: core.NewID(), ModuleID: m.ID, ItemType: course.ItemPage, ItemID: core.NewID(), Position: i,
			})
			require.NoError(t, err)
			ids = append(ids, it.ID)
		}

		reversed := []string{ids[2], ids[1], ids[0]}
		require.NoError(t, repo.SetModuleItemPositions(ctx, m.ID, reversed))
		items, err := repo.QueryModuleItems(ctx, m.ID)
		require.NoError(t, err)
		got := make([]string, 0, len(items))
		for _, it := range items {
			got = append(got, it.ID)
		}
		assert.Equal(t, reversed, got)

		err = repo.SetModuleItemPositions(ctx, m.ID, []string{ids[0], core.NewID()})
		assert.Equal(t, course.ErrItemNotFound, errors.Cause(err))
		items, err = repo.QueryModuleItems(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, ids[2], items[0].ID, "failed reorder must roll back")

		require.NoError(t, repo.DeleteModule(ctx, m.ID))
		_, err = repo.GetModuleItem(ctx, ids[0])
		assert.Equal(t, course.ErrItemNotFound, err)
	})

	t.Run("pages", func(t *testing.T) {
		now := core.Now()
		p := course.Page{ID: core.NewID(), CourseID: math.ID, Title: "Syllabus", Slug: "syllabus", CreatedAt: now, UpdatedAt: now}
		_, err := repo.CreatePage(ctx, p)
		require.NoError(t, err)
		_, err = repo.CreatePage(ctx, course.Page{ID: core.NewID(), CourseID: math.ID, Title: "Again", Slug: "syllabus", CreatedAt: now, UpdatedAt: now})
		assert.Equal(t, course.ErrSlugExists, err)
		_, err = repo.CreatePage(ctx, course.Page{ID: core.NewID(), CourseID: bio.ID, Title: "Syllabus", Slug: "syllabus", CreatedAt: now, UpdatedAt: now})
		assert.NoError(t, err, "slugs are unique per course")

		got, err := repo.GetPageBySlug(ctx, math.ID, "syllabus")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
	})

	t.Run("delete cascades", func(t *testing.T) {
		require.NoError(t, repo.DeleteCourse(ctx, math.ID))
		_, err := repo.GetCourse(ctx, math.ID)
		assert.Equal(t, course.ErrNotFound, err)
		pages, err := repo.QueryPages(ctx, math.ID)
		require.NoError(t, err)
		assert.Empty(t, pages)
	})
}

func TestACLAndAnnouncementRepositories(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	prof := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "Prof", "prof", "t@example.com", "", nil, true)
	c := newCourse(t, sqlxrepos.NewCourseRepository(db), "ART1", prof)

	t.Run("acl", func(t *testing.T) {
		repo := sqlxrepos.NewACLRepository(db)
		resID := core.NewID()
		base := core.Now()
		for i, perm := range []string{acl.PermView, acl.PermManage} {
			_, err := repo.CreateEntry(ctx, acl.Entry{
				ID: core.NewID(), CourseID: c.ID, ResourceType: acl.TypePage, ResourceID: resID,
				GranteeType: acl.GranteeRole, Grantee: course.RoleStudent, Permission: perm,
				CreatedAt: base.Add(time.Duration(i) * time.Second),
			})
			require.NoError(t, err)
		}

		entries, err := repo.QueryEntries(ctx, acl.EntryFilter{ResourceType: acl.TypePage, ResourceID: resID})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, acl.PermView, entries[0].Permission)

		require.NoError(t, repo.DeleteResourceEntries(ctx, acl.TypePage, resID))
		entries, err = repo.QueryEntries(ctx, acl.EntryFilter{CourseID: c.ID})
		require.NoError(t, err)
		assert.Empty(t, entries)

		_, err = repo.GetEntry(ctx, core.NewID())
		assert.Equal(t, acl.ErrEntryNotFound, err)
	})

	t.Run("announcements", func(t *testing.T) {
		repo := sqlxrepos.NewAnnouncementRepository(db)
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		mk := func(title string, publishAt time.Time) announcement.Announcement {
			a, err := repo.CreateAnnouncement(ctx, announcement.Announcement{
				ID: core.NewID(), CourseID: c.ID, AuthorID: prof.ID, Title: title, Body: "...",
				PublishAt: publishAt, CreatedAt: now, UpdatedAt: now,
			})
			require.NoError(t, err)
			return a
		}
		old := mk("old", now.Add(-48*time.Hour))
		recent := mk("recent", now.Add(-time.Hour))
		future := mk("future", now.Add(time.Hour))

		all, err := repo.QueryAnnouncements(ctx, c.ID, time.Time{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{future.ID, recent.ID, old.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

		published, err := repo.QueryAnnouncements(ctx, c.ID, now)
		require.NoError(t, err)
		require.Len(t, published, 2)
		assert.Equal(t, recent.ID, published[0].ID)
	})
}
