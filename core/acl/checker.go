package acl

import (
	"context"

	"github.com/pkg/errors"
)

// Checker evaluates access to course resources:
//  1. global admins are allowed everything;
//  2. course instructors (owner or instructor enrollment) are allowed everything;
//  3. the resource owner may view, manage and delete it;
//  4. when entries exist for the resource, access requires a matching entry granting perm;
//  5. otherwise members may view published resources.
type Checker interface {
	Can(ctx context.Context, sub Subject, res Resource, perm string) (bool, error)
	// Require returns ErrForbidden when sub cannot perm res.
	Require(ctx context.Context, sub Subject, res Resource, perm string) error
}

type checker struct {
	repo Repository
}

var _ Checker = (*checker)(nil)

func NewChecker(repo Repository) Checker {
	return &checker{repo: repo}
}

func (c *checker) Can(ctx context.Context, sub Subject, res Resource, perm string) (bool, error) {
	if _, known := implied[perm]; !known {
		return false, errors.Errorf("unknown permission %q", perm)
	}
	if sub.User.IsAdmin() {
		return true, nil
	}
	if sub.Membership.CourseID == res.CourseID && sub.Membership.IsInstructor() {
		return true, nil
	}
	if res.OwnerID != "" && res.OwnerID == sub.User.ID {
		return true, nil
	}

	entries, err := c.repo.QueryEntries(ctx, EntryFilter{ResourceType: res.Type, ResourceID: res.ID})
	if err != nil {
		return false, errors.Wrap(err, "querying acl entries")
	}
	if len(entries) > 0 {
		for _, e := range entries {
			if e.Matches(sub) && e.Grants(perm) {
				return true, nil
			}
		}
		return false, nil
	}

	isMember := sub.Membership.CourseID == res.CourseID && sub.Membership.IsMember()
	return perm == PermView && isMember && res.Published, nil
}

func (c *checker) Require(ctx context.Context, sub Subject, res Resource, perm string) error {
	ok, err := c.Can(ctx, sub, res, perm)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
