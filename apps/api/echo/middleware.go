package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/acl"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/user"
)

const (
	contextCourseKey     = "course"
	contextMembershipKey = "membership"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// staffMiddleware lets admins and instructors through.
func staffMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if claims.IsAdmin || claims.IsInstructor {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// courseMiddleware loads the :courseID course and the caller's membership.
// Unpublished courses are hidden from students. Published ones are hidden from non-members
// unless a user acl entry of the course names them; such guests carry an empty membership
// and only reach what their entries grant.
func courseMiddleware(auth authenticator, svc course.Service, aclSvc acl.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := auth.contextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			c, err := svc.GetByID(ctx.Request().Context(), ctx.Param("courseID"))
			if err != nil {
				if errors.Cause(err) == course.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding course by ID")
			}
			m, err := svc.Membership(ctx.Request().Context(), c, usr)
			if err != nil {
				return errors.Wrap(err, "getting membership")
			}
			if !usr.IsAdmin() {
				switch {
				case !c.IsPublished && !m.IsInstructor():
					return errHttpNotFound
				case !m.IsMember():
					granted, err := aclSvc.GrantsUser(ctx.Request().Context(), c.ID, usr.ID)
					if err != nil {
						return errors.Wrap(err, "checking acl grants")
					}
					if !granted {
						return errHttpNotFound
					}
				}
			}

			ctx.Set(contextCourseKey, c)
			ctx.Set(contextMembershipKey, m)
			return next(ctx)
		}
	}
}

func getContextCourse(ctx echo.Context) course.Course {
	c, _ := ctx.Get(contextCourseKey).(course.Course)
	return c
}

func getContextSubject(ctx echo.Context) acl.Subject {
	usr, _ := ctx.Get(contextUserKey).(user.User)
	m, _ := ctx.Get(contextMembershipKey).(course.Membership)
	return acl.Subject{User: usr, Membership: m}
}

// accessChecker asks the acl.Checker on behalf of the request subject.
type accessChecker struct {
	checker acl.Checker
}

func (a accessChecker) require(ctx echo.Context, res acl.Resource, perm string) error {
	return a.checker.Require(ctx.Request().Context(), getContextSubject(ctx), res, perm)
}

func (a accessChecker) can(ctx echo.Context, res acl.Resource, perm string) (bool, error) {
	return a.checker.Can(ctx.Request().Context(), getContextSubject(ctx), res, perm)
}

// requireVisible hides res (404) from subjects that cannot view it.
func (a accessChecker) requireVisible(ctx echo.Context, res acl.Resource) error {
	err := a.require(ctx, res, acl.PermView)
	if errors.Cause(err) == acl.ErrForbidden {
		return errHttpNotFound
	}
	return err
}

// requireMember allows admins and the course members. Guests are read-only.
func (a accessChecker) requireMember(ctx echo.Context) error {
	sub := getContextSubject(ctx)
	if sub.User.IsAdmin() || sub.Membership.IsMember() {
		return nil
	}
	return acl.ErrForbidden
}

// requireInstructor allows admins and the course instructors.
func (a accessChecker) requireInstructor(ctx echo.Context) error {
	if isManager(ctx) {
		return nil
	}
	return acl.ErrForbidden
}

func isManager(ctx echo.Context) bool {
	sub := getContextSubject(ctx)
	return sub.User.IsAdmin() || sub.Membership.IsInstructor()
}

// visible keeps the items the request subject can view.
func visible[T any](ctx echo.Context, a accessChecker, items []T, resource func(T) acl.Resource) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, it := range items {
		ok, err := a.can(ctx, resource(it), acl.PermView)
		if err != nil {
			return nil, errors.Wrap(err, "checking access")
		}
		if ok {
			out = append(out, it)
		}
	}
	return out, nil
}
