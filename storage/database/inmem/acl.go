package inmemdb

import (
	"context"

	"github.com/trezcool/masomo-lms/core/acl"
)

type aclRepository struct {
	db *table[acl.Entry]
}

var _ acl.Repository = (*aclRepository)(nil) // interface compliance check

func NewACLRepository(db *DB) acl.Repository {
	return &aclRepository{db: db.acl}
}

func (repo *aclRepository) CreateEntry(_ context.Context, e acl.Entry) (acl.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.rows[e.ID] = e
	return e, nil
}

func (repo *aclRepository) GetEntry(_ context.Context, id string) (acl.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.db.rows[id]; ok {
		return e, nil
	}
	return acl.Entry{}, acl.ErrEntryNotFound
}

func (repo *aclRepository) DeleteEntry(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.rows, id)
	return nil
}

func (repo *aclRepository) QueryEntries(_ context.Context, filter acl.EntryFilter) ([]acl.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return repo.db.filter(
		func(e acl.Entry) bool {
			return (filter.CourseID == "" || e.CourseID == filter.CourseID) &&
				(filter.ResourceType == "" || e.ResourceType == filter.ResourceType) &&
				(filter.ResourceID == "" || e.ResourceID == filter.ResourceID)
		},
		func(a, b acl.Entry) bool { return a.CreatedAt.Before(b.CreatedAt) },
	), nil
}

func (repo *aclRepository) DeleteResourceEntries(_ context.Context, resourceType, resourceID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.deleteWhere(func(e acl.Entry) bool {
		return e.ResourceType == resourceType && e.ResourceID == resourceID
	})
	return nil
}
