package redissvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/quiz"
)

// drafts of attempts without deadline expire after this long without a save
const draftTTL = 24 * time.Hour

// DraftStore keeps each attempt draft in a hash: one field per question, JSON answers as values.
type DraftStore struct {
	client *redis.Client
	grace  time.Duration
}

var _ quiz.DraftStore = (*DraftStore)(nil)

func NewDraftStore(client *redis.Client, conf *core.Config) *DraftStore {
	return &DraftStore{client: client, grace: conf.Quiz.SubmitGrace}
}

func draftKey(attemptID string) string {
	return "quiz:draft:" + attemptID
}

// ttl keeps the draft until the sweeper had a chance to submit the attempt.
func (s *DraftStore) ttl(a quiz.Attempt) time.Duration {
	if !a.ExpiresAt.Valid {
		return draftTTL
	}
	ttl := a.ExpiresAt.Time.Add(s.grace).Sub(core.Now()) + time.Hour
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}

func (s *DraftStore) Save(ctx context.Context, a quiz.Attempt, answers quiz.Answers) error {
	if len(answers) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(answers))
	for qid, ans := range answers {
		data, err := json.Marshal(ans)
		if err != nil {
			return errors.Wrap(err, "encoding answer")
		}
		values[qid] = string(data)
	}

	key := draftKey(a.ID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		pipe.Expire(ctx, key, s.ttl(a))
		return nil
	})
	return errors.Wrap(err, "saving draft")
}

func (s *DraftStore) Load(ctx context.Context, a quiz.Attempt) (quiz.Answers, error) {
	fields, err := s.client.HGetAll(ctx, draftKey(a.ID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "loading draft")
	}
	answers := make(quiz.Answers, len(fields))
	for qid, data := range fields {
		var ans quiz.Answer
		if err = json.Unmarshal([]byte(data), &ans); err != nil {
			return nil, errors.Wrapf(err, "decoding answer to %s", qid)
		}
		answers[qid] = ans
	}
	return answers, nil
}

func (s *DraftStore) Clear(ctx context.Context, a quiz.Attempt) error {
	return errors.Wrap(s.client.Del(ctx, draftKey(a.ID)).Err(), "clearing draft")
}
