package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/acl"
	"github.com/trezcool/masomo-lms/core/assignment"
	"github.com/trezcool/masomo-lms/core/user"
)

type assignmentApi struct {
	access   accessChecker
	svc      assignment.Service
	aclSvc   acl.Service
	validate *validator.Validate
}

func registerAssignmentAPI(
	courses *echo.Group,
	access accessChecker,
	svc assignment.Service,
	aclSvc acl.Service,
	validate *validator.Validate,
) {
	api := assignmentApi{
		access:   access,
		svc:      svc,
		aclSvc:   aclSvc,
		validate: validate,
	}

	g := courses.Group("/assignments")
	g.GET("", api.list)
	g.POST("", api.create)

	dg := g.Group("/:assignmentID", api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.GET("/submissions", api.submissions)
	dg.POST("/submissions", api.submit)
	dg.PUT("/submissions/:submissionID/grade", api.grade)
}

func assignmentResource(a assignment.Assignment) acl.Resource {
	return acl.Resource{Type: acl.TypeAssignment, ID: a.ID, CourseID: a.CourseID, Published: a.IsPublished}
}

func (api *assignmentApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		a, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("assignmentID"))
		if err != nil {
			return errors.Wrap(err, "finding assignment by ID")
		}
		if a.CourseID != getContextCourse(ctx).ID {
			return errHttpNotFound
		}
		if err = api.access.requireVisible(ctx, assignmentResource(a)); err != nil {
			return err
		}
		ctx.Set("object", a)
		return next(ctx)
	}
}

func getContextAssignment(ctx echo.Context) assignment.Assignment {
	a, _ := ctx.Get("object").(assignment.Assignment)
	return a
}

func (api *assignmentApi) list(ctx echo.Context) error {
	assignments, err := api.svc.List(ctx.Request().Context(), getContextCourse(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	assignments, err = visible(ctx, api.access, assignments, assignmentResource)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *assignmentApi) create(ctx echo.Context) error {
	if err := api.access.requireInstructor(ctx); err != nil {
		return err
	}

	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Create(ctx.Request().Context(), getContextCourse(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getContextAssignment(ctx))
}

func (api *assignmentApi) update(ctx echo.Context) error {
	a := getContextAssignment(ctx)
	if err := api.access.require(ctx, assignmentResource(a), acl.PermManage); err != nil {
		return err
	}

	var data assignment.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Update(ctx.Request().Context(), a.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	a := getContextAssignment(ctx)
	if err := api.access.require(ctx, assignmentResource(a), acl.PermDelete); err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	if err := api.aclSvc.Forget(ctx.Request().Context(), acl.TypeAssignment, a.ID); err != nil {
		return errors.Wrap(err, "dropping assignment acl entries")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Submissions

func (api *assignmentApi) submissions(ctx echo.Context) error {
	var studentID string
	if isManager(ctx) {
		studentID = ctx.QueryParam("student_id")
	} else {
		studentID = getContextSubject(ctx).User.ID
	}

	subs, err := api.svc.Submissions(ctx.Request().Context(), getContextAssignment(ctx).ID, studentID)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	if subs == nil {
		subs = []assignment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) submit(ctx echo.Context) error {
	if !getContextSubject(ctx).Membership.IsStudent() {
		return errHttpForbidden
	}

	var data assignment.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	student, _ := ctx.Get(contextUserKey).(user.User)
	sub, err := api.svc.Submit(ctx.Request().Context(), getContextAssignment(ctx), student, data)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *assignmentApi) grade(ctx echo.Context) error {
	a := getContextAssignment(ctx)
	if err := api.access.require(ctx, assignmentResource(a), acl.PermManage); err != nil {
		return err
	}

	var data assignment.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grader, _ := ctx.Get(contextUserKey).(user.User)
	sub, err := api.svc.Grade(ctx.Request().Context(), a, ctx.Param("submissionID"), grader, data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}
