package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/acl"
	"github.com/trezcool/masomo-lms/core/course"
)

type courseApi struct {
	auth     authenticator
	access   accessChecker
	svc      course.Service
	aclSvc   acl.Service
	validate *validator.Validate
}

// registerCourseAPI mounts the course endpoints and returns the /courses/:courseID group
// the other course resources hang off.
func registerCourseAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth authenticator,
	access accessChecker,
	svc course.Service,
	aclSvc acl.Service,
	validate *validator.Validate,
) *echo.Group {
	api := courseApi{
		auth:     auth,
		access:   access,
		svc:      svc,
		aclSvc:   aclSvc,
		validate: validate,
	}

	cg := g.Group("/courses", jwt)
	cg.POST("", api.create, staffMiddleware)
	cg.GET("", api.query)

	dg := cg.Group("/:courseID", courseMiddleware(auth, svc, aclSvc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)

	dg.GET("/enrollments", api.enrollments)
	dg.POST("/enrollments", api.enroll)
	dg.DELETE("/enrollments/:userID", api.unenroll)

	dg.GET("/modules", api.modules)
	dg.POST("/modules", api.createModule)
	mg := dg.Group("/modules/:moduleID", api.moduleMiddleware)
	mg.GET("", api.retrieveModule)
	mg.PUT("", api.updateModule)
	mg.DELETE("", api.destroyModule)
	mg.GET("/items", api.items)
	mg.POST("/items", api.addItem)
	mg.PUT("/items/order", api.reorderItems)
	mg.DELETE("/items/:itemID", api.removeItem)

	dg.GET("/pages", api.pages)
	dg.POST("/pages", api.createPage)
	pg := dg.Group("/pages/:pageID", api.pageMiddleware)
	pg.GET("", api.retrievePage)
	pg.PUT("", api.updatePage)
	pg.DELETE("", api.destroyPage)

	return dg
}

func moduleResource(m course.Module) acl.Resource {
	return acl.Resource{
		Type:      acl.TypeModule,
		ID:        m.ID,
		CourseID:  m.CourseID,
		Published: m.IsPublished && m.IsUnlocked(core.Now()),
	}
}

func pageResource(p course.Page) acl.Resource {
	return acl.Resource{Type: acl.TypePage, ID: p.ID, CourseID: p.CourseID, Published: p.IsPublished}
}

// Courses

func (api *courseApi) create(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data course.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err = data.Validate(api.validate, usr); err != nil {
		return err
	}
	// only admins can create courses on behalf of another instructor
	if data.InstructorID != usr.ID && !usr.IsAdmin() {
		return errHttpForbidden
	}

	c, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) query(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := new(course.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()
	filter.MemberID = ""
	if !usr.IsAdmin() {
		filter.MemberID = usr.ID
	}

	courses, err := api.svc.Query(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}

	res := make([]course.Course, 0, len(courses))
	for _, c := range courses {
		if !c.IsPublished && !usr.IsAdmin() {
			m, err := api.svc.Membership(ctx.Request().Context(), c, usr)
			if err != nil {
				return errors.Wrap(err, "getting membership")
			}
			if !m.IsInstructor() {
				continue
			}
		}
		res = append(res, c)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getContextCourse(ctx))
}

func (api *courseApi) update(ctx echo.Context) error {
	if err := api.access.requireInstructor(ctx); err != nil {
		return err
	}

	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	sub := getContextSubject(ctx)
	// ownership moves are admin-only
	if data.InstructorID != "" && !sub.User.IsAdmin() {
		return errHttpForbidden
	}

	c, err := api.svc.Update(ctx.Request().Context(), getContextCourse(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	sub := getContextSubject(ctx)
	if !(sub.User.IsAdmin() || sub.Membership.IsOwner) {
		return errHttpForbidden
	}
	if err := api.svc.Delete(ctx.Request().Context(), getContextCourse(ctx).ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Enrollments

func (api *courseApi) enrollments(ctx echo.Context) error {
	if err := api.access.requireInstructor(ctx); err != nil {
		return err
	}
	enrollments, err := api.svc.Enrollments(ctx.Request().Context(), getContextCourse(ctx).ID, ctx.QueryParam("role"))
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	if enrollments == nil {
		enrollments = []course.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	if err := api.access.requireInstructor(ctx); err != nil {
		return err
	}

	var data course.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	// the user must exist
	if _, err := api.auth.svc.GetByID(ctx.Request().Context(), data.UserID); err != nil {
		return errors.Wrap(err, "finding user by ID")
	}

	e, err := api.svc.Enroll(ctx.Request().Context(), getContextCourse(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "enrolling user")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *courseApi) unenroll(ctx echo.Context) error {
	if err := api.access.requireInstructor(ctx); err != nil {
		return err
	}
	if err := api.svc.Unenroll(ctx.Request().Context(), getContextCourse(ctx).ID, ctx.Param("userID")); err != nil {
		return errors.Wrap(err, "unenrolling user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Modules

func (api *courseApi) moduleMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		m, err := api.svc.GetModule(ctx.Request().Context(), ctx.Param("moduleID"))
		if err != nil {
			return errors.Wrap(err, "finding module by ID")
		}
		if m.CourseID != getContextCourse(ctx).ID {
			return errHttpNotFound
		}
		if err = api.access.requireVisible(ctx, moduleResource(m)); err != nil {
			return err
		}
		ctx.Set("module", m)
		return next(ctx)
	}
}

func getContextModule(ctx echo.Context) course.Module {
	m, _ := ctx.Get("module").(course.Module)
	return m
}

func (api *courseApi) modules(ctx echo.Context) error {
	modules, err := api.svc.Modules(ctx.Request().Context(), getContextCourse(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing modules")
	}
	modules, err = visible(ctx, api.access, modules, moduleResource)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, modules)
}

func (api *courseApi) createModule(ctx echo.Context) error {
	if err := api.access.requireInstructor(ctx); err != nil {
		return err
	}

	var data course.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.CreateModule(ctx.Request().Context(), getContextCourse(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *courseApi) retrieveModule(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getContextModule(ctx))
}

func (api *courseApi) updateModule(ctx echo.Context) error {
	m := getContextModule(ctx)
	if err := api.access.require(ctx, moduleResource(m), acl.PermManage); err != nil {
		return err
	}

	var data course.UpdateModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.UpdateModule(ctx.Request().Context(), m.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating module")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *courseApi) destroyModule(ctx echo.Context) error {
	m := getContextModule(ctx)
	if err := api.access.require(ctx, moduleResource(m), acl.PermDelete); err != nil {
		return err
	}
	if err := api.svc.DeleteModule(ctx.Request().Context(), m.ID); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	if err := api.aclSvc.Forget(ctx.Request().Context(), acl.TypeModule, m.ID); err != nil {
		return errors.Wrap(err, "dropping module acl entries")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) items(ctx echo.Context) error {
	items, err := api.svc.Items(ctx.Request().Context(), getContextModule(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing module items")
	}
	if items == nil {
		items = []course.ModuleItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *courseApi) addItem(ctx echo.Context) error {
	m := getContextModule(ctx)
	if err := api.access.require(ctx, moduleResource(m), acl.PermManage); err != nil {
		return err
	}

	var data course.NewModuleItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModuleItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	it, err := api.svc.AddItem(ctx.Request().Context(), m.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding module item")
	}
	return ctx.JSON(http.StatusCreated, it)
}

func (api *courseApi) reorderItems(ctx echo.Context) error {
	m := getContextModule(ctx)
	if err := api.access.require(ctx, moduleResource(m), acl.PermManage); err != nil {
		return err
	}

	var data course.ReorderItems
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReorderItems")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	items, err := api.svc.ReorderItems(ctx.Request().Context(), m.ID, data)
	if err != nil {
		return errors.Wrap(err, "reordering module items")
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *courseApi) removeItem(ctx echo.Context) error {
	m := getContextModule(ctx)
	if err := api.access.require(ctx, moduleResource(m), acl.PermManage); err != nil {
		return err
	}
	if err := api.svc.RemoveItem(ctx.Request().Context(), m.ID, ctx.Param("itemID")); err != nil {
		return errors.Wrap(err, "removing module item")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Pages

func (api *courseApi) pageMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		p, err := api.svc.GetPage(ctx.Request().Context(), ctx.Param("pageID"))
		if err != nil {
			return errors.Wrap(err, "finding page by ID")
		}
		if p.CourseID != getContextCourse(ctx).ID {
			return errHttpNotFound
		}
		if err = api.access.requireVisible(ctx, pageResource(p)); err != nil {
			return err
		}
		ctx.Set("page", p)
		return next(ctx)
	}
}

func getContextPage(ctx echo.Context) course.Page {
	p, _ := ctx.Get("page").(course.Page)
	return p
}

func (api *courseApi) pages(ctx echo.Context) error {
	pages, err := api.svc.Pages(ctx.Request().Context(), getContextCourse(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing pages")
	}
	pages, err = visible(ctx, api.access, pages, pageResource)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pages)
}

func (api *courseApi) createPage(ctx echo.Context) error {
	if err := api.access.requireInstructor(ctx); err != nil {
		return err
	}

	var data course.NewPage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.CreatePage(ctx.Request().Context(), getContextCourse(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "creating page")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *courseApi) retrievePage(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getContextPage(ctx))
}

func (api *courseApi) updatePage(ctx echo.Context) error {
	p := getContextPage(ctx)
	if err := api.access.require(ctx, pageResource(p), acl.PermManage); err != nil {
		return err
	}

	var data course.UpdatePage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.UpdatePage(ctx.Request().Context(), p.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating page")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *courseApi) destroyPage(ctx echo.Context) error {
	p := getContextPage(ctx)
	if err := api.access.require(ctx, pageResource(p), acl.PermDelete); err != nil {
		return err
	}
	if err := api.svc.DeletePage(ctx.Request().Context(), p.ID); err != nil {
		return errors.Wrap(err, "deleting page")
	}
	if err := api.aclSvc.Forget(ctx.Request().Context(), acl.TypePage, p.ID); err != nil {
		return errors.Wrap(err, "dropping page acl entries")
	}
	return ctx.NoContent(http.StatusNoContent)
}
