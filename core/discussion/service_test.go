package discussion_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/discussion"
	"github.com/trezcool/masomo-lms/core/user"
	inmemdb "github.com/trezcool/masomo-lms/storage/database/inmem"
	"github.com/trezcool/masomo-lms/testutil"
)

func receive(t *testing.T, events <-chan discussion.Event) discussion.Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return discussion.Event{}
}

func TestService(t *testing.T) {
	ctx := context.Background()
	clock := testutil.FreezeTime(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	tick := func() { *clock = clock.Add(time.Minute) }

	db, err := inmemdb.Open()
	require.NoError(t, err)
	svc := discussion.NewService(inmemdb.NewDiscussionRepository(db), discussion.NewLocalFeed(), testutil.NopLogger{})

	courseID := core.NewID()
	alice := user.User{ID: core.NewID()}
	bob := user.User{ID: core.NewID()}

	intro, err := svc.Create(ctx, courseID, alice, discussion.NewDiscussion{Title: "Introductions", Body: "Say hi!"})
	require.NoError(t, err)
	assert.True(t, intro.IsPublished)
	tick()
	draft := false
	help, err := svc.Create(ctx, courseID, bob, discussion.NewDiscussion{Title: "Help", Body: "Stuck on ex. 2", IsPublished: &draft})
	require.NoError(t, err)
	assert.False(t, help.IsPublished)

	t.Run("pinned first then newest", func(t *testing.T) {
		list, err := svc.List(ctx, courseID, nil)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, help.ID, list[0].ID)

		_, err = svc.Pin(ctx, intro.ID, true)
		require.NoError(t, err)
		list, err = svc.List(ctx, courseID, nil)
		require.NoError(t, err)
		assert.Equal(t, intro.ID, list[0].ID)

		list, err = svc.List(ctx, courseID, []core.DBOrdering{{Field: "title", Ascending: false}})
		require.NoError(t, err)
		assert.Equal(t, intro.ID, list[0].ID, "pinned stays first")
		assert.Equal(t, help.ID, list[1].ID)
	})

	t.Run("ordering", func(t *testing.T) {
		_, err := svc.Pin(ctx, intro.ID, false)
		require.NoError(t, err)
		list, err := svc.List(ctx, courseID, []core.DBOrdering{{Field: "title", Ascending: false}})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, intro.ID, list[0].ID, "Introductions after Help, descending")

		list, err = svc.List(ctx, courseID, []core.DBOrdering{{Field: "body", Ascending: true}})
		require.NoError(t, err)
		assert.Equal(t, help.ID, list[0].ID, "unknown fields keep newest first")

		_, err = svc.Pin(ctx, intro.ID, true)
		require.NoError(t, err)
	})

	events, cancel, err := svc.Subscribe(ctx, intro.ID)
	require.NoError(t, err)
	defer cancel()

	tick()
	hi, err := svc.Reply(ctx, intro, bob, discussion.NewReply{Body: "Hi, I'm Bob."})
	require.NoError(t, err)
	e := receive(t, events)
	assert.Equal(t, discussion.EventReplyCreated, e.Type)
	assert.Equal(t, hi, e.Reply)

	tick()
	welcome, err := svc.Reply(ctx, intro, alice, discussion.NewReply{Body: "Welcome!", ParentID: hi.ID})
	require.NoError(t, err)
	assert.Equal(t, hi.ID, welcome.ParentID.String)
	receive(t, events)

	t.Run("parent from another discussion", func(t *testing.T) {
		_, err := svc.Reply(ctx, help, alice, discussion.NewReply{Body: "Lol", ParentID: hi.ID})
		require.Error(t, err)
		verr, ok := err.(*core.ValidationError)
		require.True(t, ok, "want a *core.ValidationError, got %T", err)
		assert.Equal(t, "parent_id", verr.Fields[0].Field)

		_, err = svc.Reply(ctx, help, alice, discussion.NewReply{Body: "Lol", ParentID: core.NewID()})
		assert.Error(t, err)
	})

	t.Run("get reply", func(t *testing.T) {
		got, err := svc.GetReply(ctx, intro.ID, hi.ID)
		require.NoError(t, err)
		assert.Equal(t, hi, got)

		_, err = svc.GetReply(ctx, help.ID, hi.ID)
		assert.Equal(t, discussion.ErrReplyNotFound, errors.Cause(err))
	})

	t.Run("edit", func(t *testing.T) {
		tick()
		edited, err := svc.EditReply(ctx, hi, discussion.UpdateReply{Body: "Hi all, I'm Bob."})
		require.NoError(t, err)
		assert.Equal(t, *clock, edited.UpdatedAt)
		e := receive(t, events)
		assert.Equal(t, discussion.EventReplyUpdated, e.Type)
		assert.Equal(t, "Hi all, I'm Bob.", e.Reply.Body)
	})

	t.Run("locked", func(t *testing.T) {
		locked, err := svc.Lock(ctx, intro.ID, true)
		require.NoError(t, err)
		_, err = svc.Reply(ctx, locked, bob, discussion.NewReply{Body: "Too late"})
		assert.Equal(t, discussion.ErrLocked, err)

		unlocked, err := svc.Lock(ctx, intro.ID, false)
		require.NoError(t, err)
		assert.False(t, unlocked.IsLocked)
		assert.True(t, unlocked.IsPinned)
	})

	t.Run("deleting a reply drops its children", func(t *testing.T) {
		require.NoError(t, svc.DeleteReply(ctx, hi))
		e := receive(t, events)
		assert.Equal(t, discussion.EventReplyDeleted, e.Type)
		assert.Equal(t, hi.ID, e.Reply.ID)

		replies, err := svc.Replies(ctx, intro.ID)
		require.NoError(t, err)
		assert.Empty(t, replies)
	})

	require.NoError(t, svc.Delete(ctx, help.ID))
	_, err = svc.GetByID(ctx, help.ID)
	assert.Equal(t, discussion.ErrNotFound, errors.Cause(err))
}
