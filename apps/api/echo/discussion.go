package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/acl"
	"github.com/trezcool/masomo-lms/core/discussion"
	"github.com/trezcool/masomo-lms/core/user"
)

const (
	liveWriteWait  = 10 * time.Second
	livePingPeriod = 30 * time.Second

	// eventSubscribed is sent once the live feed is ready.
	eventSubscribed = "subscribed"
)

type discussionApi struct {
	access   accessChecker
	svc      discussion.Service
	aclSvc   acl.Service
	validate *validator.Validate
	logger   core.Logger
	upgrader websocket.Upgrader
}

func registerDiscussionAPI(
	courses *echo.Group,
	access accessChecker,
	svc discussion.Service,
	aclSvc acl.Service,
	validate *validator.Validate,
	logger core.Logger,
) {
	api := discussionApi{
		access:   access,
		svc:      svc,
		aclSvc:   aclSvc,
		validate: validate,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	g := courses.Group("/discussions")
	g.GET("", api.list)
	g.POST("", api.create)

	dg := g.Group("/:discussionID", api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/pin", api.pin(true))
	dg.DELETE("/pin", api.pin(false))
	dg.POST("/lock", api.lock(true))
	dg.DELETE("/lock", api.lock(false))
	dg.GET("/live", api.live)

	dg.GET("/replies", api.replies)
	dg.POST("/replies", api.reply)
	rg := dg.Group("/replies/:replyID", api.replyMiddleware)
	rg.PUT("", api.editReply)
	rg.DELETE("", api.deleteReply)
}

func discussionResource(d discussion.Discussion) acl.Resource {
	return acl.Resource{
		Type:      acl.TypeDiscussion,
		ID:        d.ID,
		CourseID:  d.CourseID,
		Published: d.IsPublished,
		OwnerID:   d.AuthorID,
	}
}

// replyResource checks replies against their discussion, owned by the reply author.
func replyResource(d discussion.Discussion, r discussion.Reply) acl.Resource {
	res := discussionResource(d)
	res.OwnerID = r.AuthorID
	return res
}

func (api *discussionApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		d, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("discussionID"))
		if err != nil {
			return errors.Wrap(err, "finding discussion by ID")
		}
		if d.CourseID != getContextCourse(ctx).ID {
			return errHttpNotFound
		}
		if err = api.access.requireVisible(ctx, discussionResource(d)); err != nil {
			return err
		}
		ctx.Set("object", d)
		return next(ctx)
	}
}

func getContextDiscussion(ctx echo.Context) discussion.Discussion {
	d, _ := ctx.Get("object").(discussion.Discussion)
	return d
}

func (api *discussionApi) replyMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		r, err := api.svc.GetReply(ctx.Request().Context(), getContextDiscussion(ctx).ID, ctx.Param("replyID"))
		if err != nil {
			return errors.Wrap(err, "finding reply by ID")
		}
		ctx.Set("reply", r)
		return next(ctx)
	}
}

func (api *discussionApi) list(ctx echo.Context) error {
	discussions, err := api.svc.List(ctx.Request().Context(), getContextCourse(ctx).ID, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "listing discussions")
	}
	discussions, err = visible(ctx, api.access, discussions, discussionResource)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, discussions)
}

func (api *discussionApi) create(ctx echo.Context) error {
	if err := api.access.requireMember(ctx); err != nil {
		return err
	}

	var data discussion.NewDiscussion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDiscussion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	author, _ := ctx.Get(contextUserKey).(user.User)
	d, err := api.svc.Create(ctx.Request().Context(), getContextCourse(ctx).ID, author, data)
	if err != nil {
		return errors.Wrap(err, "creating discussion")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *discussionApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getContextDiscussion(ctx))
}

func (api *discussionApi) update(ctx echo.Context) error {
	d := getContextDiscussion(ctx)
	if err := api.access.require(ctx, discussionResource(d), acl.PermManage); err != nil {
		return err
	}

	var data discussion.UpdateDiscussion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateDiscussion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if data.IsModeration() {
		if err := api.access.requireInstructor(ctx); err != nil {
			return err
		}
	}

	d, err := api.svc.Update(ctx.Request().Context(), d.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating discussion")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *discussionApi) destroy(ctx echo.Context) error {
	d := getContextDiscussion(ctx)
	if err := api.access.require(ctx, discussionResource(d), acl.PermDelete); err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), d.ID); err != nil {
		return errors.Wrap(err, "deleting discussion")
	}
	if err := api.aclSvc.Forget(ctx.Request().Context(), acl.TypeDiscussion, d.ID); err != nil {
		return errors.Wrap(err, "dropping discussion acl entries")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *discussionApi) pin(pinned bool) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := api.access.requireInstructor(ctx); err != nil {
			return err
		}
		d, err := api.svc.Pin(ctx.Request().Context(), getContextDiscussion(ctx).ID, pinned)
		if err != nil {
			return errors.Wrap(err, "pinning discussion")
		}
		return ctx.JSON(http.StatusOK, d)
	}
}

func (api *discussionApi) lock(locked bool) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := api.access.requireInstructor(ctx); err != nil {
			return err
		}
		d, err := api.svc.Lock(ctx.Request().Context(), getContextDiscussion(ctx).ID, locked)
		if err != nil {
			return errors.Wrap(err, "locking discussion")
		}
		return ctx.JSON(http.StatusOK, d)
	}
}

// Replies

func (api *discussionApi) replies(ctx echo.Context) error {
	replies, err := api.svc.Replies(ctx.Request().Context(), getContextDiscussion(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing replies")
	}
	if replies == nil {
		replies = []discussion.Reply{}
	}
	return ctx.JSON(http.StatusOK, replies)
}

func (api *discussionApi) reply(ctx echo.Context) error {
	if err := api.access.requireMember(ctx); err != nil {
		if err = api.access.require(ctx, discussionResource(getContextDiscussion(ctx)), acl.PermManage); err != nil {
			return err
		}
	}

	var data discussion.NewReply
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReply")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	author, _ := ctx.Get(contextUserKey).(user.User)
	r, err := api.svc.Reply(ctx.Request().Context(), getContextDiscussion(ctx), author, data)
	if err != nil {
		return errors.Wrap(err, "replying to discussion")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *discussionApi) editReply(ctx echo.Context) error {
	r, _ := ctx.Get("reply").(discussion.Reply)
	if err := api.access.require(ctx, replyResource(getContextDiscussion(ctx), r), acl.PermManage); err != nil {
		return err
	}

	var data discussion.UpdateReply
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateReply")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.EditReply(ctx.Request().Context(), r, data)
	if err != nil {
		return errors.Wrap(err, "editing reply")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *discussionApi) deleteReply(ctx echo.Context) error {
	r, _ := ctx.Get("reply").(discussion.Reply)
	if err := api.access.require(ctx, replyResource(getContextDiscussion(ctx), r), acl.PermDelete); err != nil {
		return err
	}
	if err := api.svc.DeleteReply(ctx.Request().Context(), r); err != nil {
		return errors.Wrap(err, "deleting reply")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// live streams the discussion reply events over a websocket until the client goes away.
func (api *discussionApi) live(ctx echo.Context) error {
	d := getContextDiscussion(ctx)

	events, cancel, err := api.svc.Subscribe(ctx.Request().Context(), d.ID)
	if err != nil {
		return errors.Wrap(err, "subscribing to discussion")
	}
	defer cancel()

	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader already replied to the client
		api.logger.Info("live feed upgrade failed: " + err.Error())
		return nil
	}
	defer conn.Close()

	// the reader only detects the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v interface{}) error {
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		return conn.WriteJSON(v)
	}
	if err = write(discussion.Event{Type: eventSubscribed, DiscussionID: d.ID}); err != nil {
		return nil
	}

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()
	for {
		select {
		case e, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(liveWriteWait))
				return nil
			}
			if err = write(e); err != nil {
				return nil
			}
		case <-ticker.C:
			if err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return nil
			}
		case <-closed:
			return nil
		case <-ctx.Request().Context().Done():
			return nil
		}
	}
}
