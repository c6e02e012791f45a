package discussion

import (
	"context"
	"sync"
)

// Feed event types
const (
	EventReplyCreated = "reply.created"
	EventReplyUpdated = "reply.updated"
	EventReplyDeleted = "reply.deleted"
)

type Event struct {
	Type         string `json:"type"`
	DiscussionID string `json:"discussion_id"`
	Reply        Reply  `json:"reply"`
}

// Feed fans out reply events to the subscribers of a discussion.
type Feed interface {
	Publish(ctx context.Context, e Event) error
	// Subscribe returns a channel receiving the discussion events.
	// The caller must invoke the returned cancel function to avoid leaks.
	Subscribe(ctx context.Context, discussionID string) (<-chan Event, func(), error)
}

const subscriberBuffer = 16

// LocalFeed is an in-process Feed; slow subscribers lose their oldest pending events.
type LocalFeed struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

var _ Feed = (*LocalFeed)(nil)

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[string]map[chan Event]struct{})}
}

func (f *LocalFeed) Publish(_ context.Context, e Event) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subs[e.DiscussionID] {
		Deliver(ch, e)
	}
	return nil
}

func (f *LocalFeed) Subscribe(_ context.Context, discussionID string) (<-chan Event, func(), error) {
	ch := make(chan Event, subscriberBuffer)

	f.mu.Lock()
	if f.subs[discussionID] == nil {
		f.subs[discussionID] = make(map[chan Event]struct{})
	}
	f.subs[discussionID][ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs[discussionID], ch)
			if len(f.subs[discussionID]) == 0 {
				delete(f.subs, discussionID)
			}
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

// Deliver sends e on ch without blocking, dropping the oldest pending event when ch is full.
func Deliver(ch chan Event, e Event) {
	for {
		select {
		case ch <- e:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
