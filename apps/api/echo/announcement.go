package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/acl"
	"github.com/trezcool/masomo-lms/core/announcement"
	"github.com/trezcool/masomo-lms/core/user"
)

type announcementApi struct {
	access   accessChecker
	svc      announcement.Service
	aclSvc   acl.Service
	validate *validator.Validate
}

func registerAnnouncementAPI(
	courses *echo.Group,
	access accessChecker,
	svc announcement.Service,
	aclSvc acl.Service,
	validate *validator.Validate,
) {
	api := announcementApi{
		access:   access,
		svc:      svc,
		aclSvc:   aclSvc,
		validate: validate,
	}

	g := courses.Group("/announcements")
	g.GET("", api.list)
	g.POST("", api.create)

	dg := g.Group("/:announcementID", api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

func announcementResource(a announcement.Announcement) acl.Resource {
	return acl.Resource{
		Type:      acl.TypeAnnouncement,
		ID:        a.ID,
		CourseID:  a.CourseID,
		Published: a.IsPublished(core.Now()),
		OwnerID:   a.AuthorID,
	}
}

func (api *announcementApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		a, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("announcementID"))
		if err != nil {
			return errors.Wrap(err, "finding announcement by ID")
		}
		if a.CourseID != getContextCourse(ctx).ID {
			return errHttpNotFound
		}
		if err = api.access.requireVisible(ctx, announcementResource(a)); err != nil {
			return err
		}
		ctx.Set("object", a)
		return next(ctx)
	}
}

func getContextAnnouncement(ctx echo.Context) announcement.Announcement {
	a, _ := ctx.Get("object").(announcement.Announcement)
	return a
}

func (api *announcementApi) list(ctx echo.Context) error {
	announcements, err := api.svc.List(ctx.Request().Context(), getContextCourse(ctx).ID, isManager(ctx))
	if err != nil {
		return errors.Wrap(err, "listing announcements")
	}
	announcements, err = visible(ctx, api.access, announcements, announcementResource)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, announcements)
}

func (api *announcementApi) create(ctx echo.Context) error {
	if err := api.access.requireInstructor(ctx); err != nil {
		return err
	}

	var data announcement.NewAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	author, _ := ctx.Get(contextUserKey).(user.User)
	a, err := api.svc.Create(ctx.Request().Context(), getContextCourse(ctx), author, data)
	if err != nil {
		return errors.Wrap(err, "creating announcement")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *announcementApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getContextAnnouncement(ctx))
}

func (api *announcementApi) update(ctx echo.Context) error {
	a := getContextAnnouncement(ctx)
	if err := api.access.require(ctx, announcementResource(a), acl.PermManage); err != nil {
		return err
	}

	var data announcement.UpdateAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAnnouncement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Update(ctx.Request().Context(), a.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating announcement")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *announcementApi) destroy(ctx echo.Context) error {
	a := getContextAnnouncement(ctx)
	if err := api.access.require(ctx, announcementResource(a), acl.PermDelete); err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	if err := api.aclSvc.Forget(ctx.Request().Context(), acl.TypeAnnouncement, a.ID); err != nil {
		return errors.Wrap(err, "dropping announcement acl entries")
	}
	return ctx.NoContent(http.StatusNoContent)
}
