package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/gradebook"
)

type gradebookApi struct {
	access accessChecker
	svc    gradebook.Service
}

func registerGradebookAPI(courses *echo.Group, access accessChecker, svc gradebook.Service) {
	api := gradebookApi{access: access, svc: svc}
	courses.GET("/gradebook", api.retrieve)
}

// retrieve returns the full gradebook to instructors and their own row to students.
func (api *gradebookApi) retrieve(ctx echo.Context) error {
	var studentID string
	switch sub := getContextSubject(ctx); {
	case isManager(ctx):
		studentID = ctx.QueryParam("student_id")
	case sub.Membership.IsStudent():
		studentID = sub.User.ID
	default:
		return errHttpForbidden
	}

	gb, err := api.svc.Build(ctx.Request().Context(), getContextCourse(ctx), studentID)
	if err != nil {
		return errors.Wrap(err, "building gradebook")
	}
	return ctx.JSON(http.StatusOK, gb)
}
