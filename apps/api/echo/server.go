package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/acl"
	"github.com/trezcool/masomo-lms/core/announcement"
	"github.com/trezcool/masomo-lms/core/assignment"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/discussion"
	"github.com/trezcool/masomo-lms/core/gradebook"
	"github.com/trezcool/masomo-lms/core/quiz"
	"github.com/trezcool/masomo-lms/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc         user.Service
		CourseSvc       course.Service
		ACLSvc          acl.Service
		ACLChecker      acl.Checker
		AnnouncementSvc announcement.Service
		DiscussionSvc   discussion.Service
		AssignmentSvc   assignment.Service
		QuizSvc         quiz.Service
		GradebookSvc    gradebook.Service
	}

	Server interface {
		http.Handler
		// Start blocks until the server stops; http.ErrServerClosed is not reported.
		Start() error
		Shutdown(context.Context) error
		Close() error
		// ShutdownSignal receives SIGINT, SIGTERM and shutdown requests from the handlers.
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil) // interface compliance check

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))
	auth := newAuthenticator(conf, s.deps.UserSvc)

	registerUserAPI(v1, jwt, auth, s.deps.Validate)

	access := accessChecker{checker: s.deps.ACLChecker}
	courses := registerCourseAPI(v1, jwt, auth, access, s.deps.CourseSvc, s.deps.ACLSvc, s.deps.Validate)
	registerACLAPI(courses, access, s.deps.ACLSvc, s.resolver(), s.deps.Validate)
	registerAnnouncementAPI(courses, access, s.deps.AnnouncementSvc, s.deps.ACLSvc, s.deps.Validate)
	registerDiscussionAPI(courses, access, s.deps.DiscussionSvc, s.deps.ACLSvc, s.deps.Validate, s.deps.Logger)
	registerAssignmentAPI(courses, access, s.deps.AssignmentSvc, s.deps.ACLSvc, s.deps.Validate)
	registerQuizAPI(courses, access, s.deps.QuizSvc, s.deps.ACLSvc, s.deps.Validate)
	registerGradebookAPI(courses, access, s.deps.GradebookSvc)
}

func (s *server) resolver() resourceResolver {
	return resourceResolver{
		courseSvc:       s.deps.CourseSvc,
		announcementSvc: s.deps.AnnouncementSvc,
		discussionSvc:   s.deps.DiscussionSvc,
		assignmentSvc:   s.deps.AssignmentSvc,
		quizSvc:         s.deps.QuizSvc,
	}
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *server) Start() error {
	err := s.app.Start(s.deps.Conf.Server.Address)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Masomo API!")
}
