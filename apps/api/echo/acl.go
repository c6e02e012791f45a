package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/acl"
	"github.com/trezcool/masomo-lms/core/announcement"
	"github.com/trezcool/masomo-lms/core/assignment"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/discussion"
	"github.com/trezcool/masomo-lms/core/quiz"
)

// resourceResolver finds the course a resource belongs to.
type resourceResolver struct {
	courseSvc       course.Service
	announcementSvc announcement.Service
	discussionSvc   discussion.Service
	assignmentSvc   assignment.Service
	quizSvc         quiz.Service
}

func (r resourceResolver) courseID(ctx context.Context, resourceType, id string) (string, error) {
	switch resourceType {
	case acl.TypeAnnouncement:
		a, err := r.announcementSvc.GetByID(ctx, id)
		return a.CourseID, err
	case acl.TypePage:
		p, err := r.courseSvc.GetPage(ctx, id)
		return p.CourseID, err
	case acl.TypeModule:
		m, err := r.courseSvc.GetModule(ctx, id)
		return m.CourseID, err
	case acl.TypeQuiz:
		q, err := r.quizSvc.GetByID(ctx, id)
		return q.CourseID, err
	case acl.TypeAssignment:
		a, err := r.assignmentSvc.GetByID(ctx, id)
		return a.CourseID, err
	case acl.TypeDiscussion:
		d, err := r.discussionSvc.GetByID(ctx, id)
		return d.CourseID, err
	}
	return "", errors.Errorf("unknown resource type %q", resourceType)
}

type aclApi struct {
	access   accessChecker
	svc      acl.Service
	resolver resourceResolver
	validate *validator.Validate
}

func registerACLAPI(
	courses *echo.Group,
	access accessChecker,
	svc acl.Service,
	resolver resourceResolver,
	validate *validator.Validate,
) {
	api := aclApi{
		access:   access,
		svc:      svc,
		resolver: resolver,
		validate: validate,
	}

	g := courses.Group("/acl", api.instructorMiddleware)
	g.GET("", api.list)
	g.POST("", api.grant)
	g.DELETE("/:entryID", api.revoke)
}

func (api *aclApi) instructorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := api.access.requireInstructor(ctx); err != nil {
			return err
		}
		return next(ctx)
	}
}

func (api *aclApi) list(ctx echo.Context) error {
	c := getContextCourse(ctx)

	var (
		entries []acl.Entry
		err     error
	)
	if rtype, rid := ctx.QueryParam("resource_type"), ctx.QueryParam("resource_id"); rtype != "" && rid != "" {
		entries, err = api.svc.ForResource(ctx.Request().Context(), rtype, rid)
	} else {
		entries, err = api.svc.List(ctx.Request().Context(), c.ID)
	}
	if err != nil {
		return errors.Wrap(err, "listing acl entries")
	}

	res := make([]acl.Entry, 0, len(entries))
	for _, e := range entries {
		if e.CourseID == c.ID {
			res = append(res, e)
		}
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *aclApi) grant(ctx echo.Context) error {
	var data acl.NewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEntry")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c := getContextCourse(ctx)
	courseID, err := api.resolver.courseID(ctx.Request().Context(), data.ResourceType, data.ResourceID)
	if err != nil {
		return errors.Wrap(err, "resolving resource")
	}
	if courseID != c.ID {
		return errHttpNotFound
	}

	e, err := api.svc.Grant(ctx.Request().Context(), c.ID, data)
	if err != nil {
		return errors.Wrap(err, "granting access")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *aclApi) revoke(ctx echo.Context) error {
	if err := api.svc.Revoke(ctx.Request().Context(), getContextCourse(ctx).ID, ctx.Param("entryID")); err != nil {
		return errors.Wrap(err, "revoking access")
	}
	return ctx.NoContent(http.StatusNoContent)
}
