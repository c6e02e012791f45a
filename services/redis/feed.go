package redissvc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/discussion"
)

const subscriberBuffer = 16

// Feed relays discussion events through Redis pub/sub so every API instance sees them.
type Feed struct {
	client *redis.Client
	logger core.Logger
}

var _ discussion.Feed = (*Feed)(nil)

func NewFeed(client *redis.Client, logger core.Logger) *Feed {
	return &Feed{client: client, logger: logger}
}

func feedChannel(discussionID string) string {
	return "discussion:feed:" + discussionID
}

func (f *Feed) Publish(ctx context.Context, e discussion.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}
	return errors.Wrap(f.client.Publish(ctx, feedChannel(e.DiscussionID), data).Err(), "publishing event")
}

func (f *Feed) Subscribe(ctx context.Context, discussionID string) (<-chan discussion.Event, func(), error) {
	ps := f.client.Subscribe(ctx, feedChannel(discussionID))
	// wait for the subscription to be confirmed, events published before are not received
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, errors.Wrap(err, "subscribing to discussion feed")
	}

	out := make(chan discussion.Event, subscriberBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ps.Channel() {
			var e discussion.Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				f.logger.Warn("decoding discussion event", errors.Wrap(err, msg.Channel))
				continue
			}
			discussion.Deliver(out, e)
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = ps.Close()
			<-done
			close(out)
		})
	}
	return out, cancel, nil
}
