package redissvc

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/discussion"
	"github.com/trezcool/masomo-lms/core/quiz"
	"github.com/trezcool/masomo-lms/testutil"
)

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() failed: %v", err)
	}
	t.Cleanup(mr.Close)

	conf := testutil.Config()
	conf.Redis = core.RedisConfig{Addr: mr.Addr()}
	client, err := NewClient(context.Background(), conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewClient_Unreachable(t *testing.T) {
	conf := testutil.Config()
	conf.Redis = core.RedisConfig{Addr: "127.0.0.1:1"}
	_, err := NewClient(context.Background(), conf)
	assert.Error(t, err)
}

func TestDraftStore(t *testing.T) {
	ctx := context.Background()
	mr, client := setup(t)
	now := testutil.FreezeTime(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	conf := testutil.Config()
	conf.Quiz.SubmitGrace = 30 * time.Second
	store := NewDraftStore(client, conf)

	a := quiz.Attempt{ID: core.NewID(), ExpiresAt: null.TimeFrom(now.Add(10 * time.Minute))}

	got, err := store.Load(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Save(ctx, a, quiz.Answers{"q1": {OptionIDs: []string{"a"}}, "q2": {Text: "draft"}}))
	require.NoError(t, store.Save(ctx, a, quiz.Answers{"q1": {OptionIDs: []string{"b"}}}))
	require.NoError(t, store.Save(ctx, a, nil))

	got, err = store.Load(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, quiz.Answers{"q1": {OptionIDs: []string{"b"}}, "q2": {Text: "draft"}}, got)

	ttl := mr.TTL(draftKey(a.ID))
	assert.Equal(t, 10*time.Minute+30*time.Second+time.Hour, ttl)

	require.NoError(t, store.Clear(ctx, a))
	assert.False(t, mr.Exists(draftKey(a.ID)))
}

func TestDraftStore_TTL(t *testing.T) {
	now := testutil.FreezeTime(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	store := &DraftStore{grace: time.Minute}

	assert.Equal(t, draftTTL, store.ttl(quiz.Attempt{}))
	past := quiz.Attempt{ExpiresAt: null.TimeFrom(now.Add(-48 * time.Hour))}
	assert.Equal(t, time.Minute, store.ttl(past))
}

func TestFeed(t *testing.T) {
	ctx := context.Background()
	_, client := setup(t)
	feed := NewFeed(client, testutil.NopLogger{})

	events, cancel, err := feed.Subscribe(ctx, "d1")
	require.NoError(t, err)
	other, cancelOther, err := feed.Subscribe(ctx, "d2")
	require.NoError(t, err)
	defer cancelOther()

	e := discussion.Event{
		Type:         discussion.EventReplyCreated,
		DiscussionID: "d1",
		Reply:        discussion.Reply{ID: "r1", DiscussionID: "d1", Body: "hi"},
	}
	require.NoError(t, feed.Publish(ctx, e))

	select {
	case got := <-events:
		assert.Equal(t, e.Type, got.Type)
		assert.Equal(t, e.Reply.ID, got.Reply.ID)
		assert.Equal(t, e.Reply.Body, got.Reply.Body)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	select {
	case got := <-other:
		t.Fatalf("event leaked to another discussion: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open, "channel closed on cancel")
}
