package announcement_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/announcement"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/user"
	appfs "github.com/trezcool/masomo-lms/fs"
	emailsvc "github.com/trezcool/masomo-lms/services/email"
	inmemdb "github.com/trezcool/masomo-lms/storage/database/inmem"
	"github.com/trezcool/masomo-lms/testutil"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	clock := testutil.FreezeTime(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	conf := testutil.Config()
	core.ParseEmailTemplates(appfs.FS, "assets/templates/email", conf, testutil.NopLogger{})

	db, err := inmemdb.Open()
	require.NoError(t, err)
	userRepo := inmemdb.NewUserRepository(db)
	mailer := emailsvc.NewConsoleServiceMock(conf, testutil.NopLogger{})
	courseSvc := course.NewService(inmemdb.NewCourseRepository(db))
	svc := announcement.NewService(
		inmemdb.NewAnnouncementRepository(db),
		courseSvc,
		user.NewService(userRepo, mailer, conf, testutil.NopLogger{}),
		mailer,
		testutil.NopLogger{},
	)

	prof := testutil.CreateUser(t, userRepo, "Prof", "prof", "prof@test.cd", "", []string{user.RoleInstructor}, true)
	alice := testutil.CreateUser(t, userRepo, "Alice", "alice", "alice@test.cd", "", nil, true)
	bob := testutil.CreateUser(t, userRepo, "Bob", "bob", "bob@test.cd", "", nil, false)
	maths, err := courseSvc.Create(ctx, course.NewCourse{Code: "MATH101", Title: "Maths", InstructorID: prof.ID})
	require.NoError(t, err)
	for _, s := range []user.User{alice, bob} {
		_, err = courseSvc.Enroll(ctx, maths.ID, course.NewEnrollment{UserID: s.ID, Role: course.RoleStudent})
		require.NoError(t, err)
	}

	welcome, err := svc.Create(ctx, maths, prof, announcement.NewAnnouncement{
		Title:  "Welcome",
		Body:   "See you on Monday.",
		Notify: true,
	})
	require.NoError(t, err)
	assert.Equal(t, *clock, welcome.PublishAt)
	assert.Equal(t, prof.ID, welcome.AuthorID)

	t.Run("only active students are notified", func(t *testing.T) {
		sent := mailer.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "alice@test.cd", sent[0].To[0].Address)
		assert.Equal(t, "MATH101: Welcome", sent[0].Subject)
		assert.Contains(t, sent[0].TextContent, "See you on Monday.")
		assert.Contains(t, sent[0].TextContent, "/courses/"+maths.ID+"/announcements/"+welcome.ID)
	})

	mailer.Reset()
	exam, err := svc.Create(ctx, maths, prof, announcement.NewAnnouncement{
		Title:     "Exam",
		Body:      "Chapters 1 to 3.",
		PublishAt: null.TimeFrom(clock.Add(24 * time.Hour)),
	})
	require.NoError(t, err)
	assert.Empty(t, mailer.SentMessages())

	t.Run("scheduled announcements are hidden until published", func(t *testing.T) {
		published, err := svc.List(ctx, maths.ID, false)
		require.NoError(t, err)
		require.Len(t, published, 1)
		assert.Equal(t, welcome.ID, published[0].ID)

		all, err := svc.List(ctx, maths.ID, true)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, exam.ID, all[0].ID, "newest first")

		*clock = clock.Add(25 * time.Hour)
		published, err = svc.List(ctx, maths.ID, false)
		require.NoError(t, err)
		assert.Len(t, published, 2)
	})

	t.Run("update", func(t *testing.T) {
		updated, err := svc.Update(ctx, exam.ID, announcement.UpdateAnnouncement{Body: "Chapters 1 to 4."})
		require.NoError(t, err)
		assert.Equal(t, "Exam", updated.Title)
		assert.Equal(t, "Chapters 1 to 4.", updated.Body)
		assert.Equal(t, *clock, updated.UpdatedAt)

		_, err = svc.Update(ctx, core.NewID(), announcement.UpdateAnnouncement{Title: "Lol"})
		assert.Equal(t, announcement.ErrNotFound, errors.Cause(err))
	})

	require.NoError(t, svc.Delete(ctx, welcome.ID))
	_, err = svc.GetByID(ctx, welcome.ID)
	assert.Equal(t, announcement.ErrNotFound, errors.Cause(err))
}
