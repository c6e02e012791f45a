package quiz

import (
	"context"

	"github.com/pkg/errors"
)

// DraftStore keeps the answers of in-progress attempts until they are submitted.
type DraftStore interface {
	// Save merges answers into the attempt draft.
	Save(ctx context.Context, a Attempt, answers Answers) error
	Load(ctx context.Context, a Attempt) (Answers, error)
	Clear(ctx context.Context, a Attempt) error
}

// dbDraftStore keeps drafts in the attempt answers column.
type dbDraftStore struct {
	repo Repository
}

var _ DraftStore = (*dbDraftStore)(nil)

func NewDBDraftStore(repo Repository) DraftStore {
	return &dbDraftStore{repo: repo}
}

func (s *dbDraftStore) Save(ctx context.Context, a Attempt, answers Answers) error {
	return s.repo.MergeDraft(ctx, a.ID, answers)
}

func (s *dbDraftStore) Load(ctx context.Context, a Attempt) (Answers, error) {
	current, err := s.repo.GetAttempt(ctx, a.ID)
	if err != nil {
		return nil, errors.Wrap(err, "finding attempt")
	}
	if current.Answers == nil {
		return Answers{}, nil
	}
	return current.Answers, nil
}

// Clear is a no-op: the column then holds the graded answers.
func (s *dbDraftStore) Clear(context.Context, Attempt) error { return nil }
