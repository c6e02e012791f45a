package acl

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
)

var (
	// errors
	ErrForbidden     = errors.New("permission denied")
	ErrEntryNotFound = errors.New("acl entry not found")
)

type (
	EntryFilter struct {
		CourseID     string
		ResourceType string
		ResourceID   string
	}

	Repository interface {
		CreateEntry(ctx context.Context, e Entry) (Entry, error)
		GetEntry(ctx context.Context, id string) (Entry, error)
		DeleteEntry(ctx context.Context, id string) error
		// QueryEntries applies AND operation on the non-empty EntryFilter fields, oldest first.
		QueryEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
		// DeleteResourceEntries drops the entries of a deleted resource.
		DeleteResourceEntries(ctx context.Context, resourceType, resourceID string) error
	}

	Service interface {
		Grant(ctx context.Context, courseID string, ne NewEntry) (Entry, error)
		Revoke(ctx context.Context, courseID, entryID string) error
		List(ctx context.Context, courseID string) ([]Entry, error)
		ForResource(ctx context.Context, resourceType, resourceID string) ([]Entry, error)
		Forget(ctx context.Context, resourceType, resourceID string) error
		// GrantsUser reports whether a course entry names userID directly.
		GrantsUser(ctx context.Context, courseID, userID string) (bool, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Grant is idempotent: granting an existing (resource, grantee, permission) returns the existing entry.
func (svc *service) Grant(ctx context.Context, courseID string, ne NewEntry) (Entry, error) {
	existing, err := svc.repo.QueryEntries(ctx, EntryFilter{ResourceType: ne.ResourceType, ResourceID: ne.ResourceID})
	if err != nil {
		return Entry{}, errors.Wrap(err, "querying acl entries")
	}
	for _, e := range existing {
		if e.GranteeType == ne.GranteeType && e.Grantee == ne.Grantee && e.Permission == ne.Permission {
			return e, nil
		}
	}
	return svc.repo.CreateEntry(ctx, Entry{
		ID:           core.NewID(),
		CourseID:     courseID,
		ResourceType: ne.ResourceType,
		ResourceID:   ne.ResourceID,
		GranteeType:  ne.GranteeType,
		Grantee:      ne.Grantee,
		Permission:   ne.Permission,
		CreatedAt:    core.Now(),
	})
}

func (svc *service) Revoke(ctx context.Context, courseID, entryID string) error {
	e, err := svc.repo.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if e.CourseID != courseID {
		return ErrEntryNotFound
	}
	return svc.repo.DeleteEntry(ctx, entryID)
}

func (svc *service) List(ctx context.Context, courseID string) ([]Entry, error) {
	return svc.repo.QueryEntries(ctx, EntryFilter{CourseID: courseID})
}

func (svc *service) ForResource(ctx context.Context, resourceType, resourceID string) ([]Entry, error) {
	return svc.repo.QueryEntries(ctx, EntryFilter{ResourceType: resourceType, ResourceID: resourceID})
}

func (svc *service) Forget(ctx context.Context, resourceType, resourceID string) error {
	return svc.repo.DeleteResourceEntries(ctx, resourceType, resourceID)
}

func (svc *service) GrantsUser(ctx context.Context, courseID, userID string) (bool, error) {
	entries, err := svc.repo.QueryEntries(ctx, EntryFilter{CourseID: courseID})
	if err != nil {
		return false, errors.Wrap(err, "querying acl entries")
	}
	for _, e := range entries {
		if e.GranteeType == GranteeUser && e.Grantee == userID {
			return true, nil
		}
	}
	return false, nil
}
