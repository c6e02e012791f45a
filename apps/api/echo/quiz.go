package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/acl"
	"github.com/trezcool/masomo-lms/core/quiz"
	"github.com/trezcool/masomo-lms/core/user"
)

type quizApi struct {
	access   accessChecker
	svc      quiz.Service
	aclSvc   acl.Service
	validate *validator.Validate
}

func registerQuizAPI(
	courses *echo.Group,
	access accessChecker,
	svc quiz.Service,
	aclSvc acl.Service,
	validate *validator.Validate,
) {
	api := quizApi{
		access:   access,
		svc:      svc,
		aclSvc:   aclSvc,
		validate: validate,
	}

	g := courses.Group("/quizzes")
	g.GET("", api.list)
	g.POST("", api.create)
	g.POST("/import", api.importFile)

	dg := g.Group("/:quizID", api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)

	dg.GET("/questions", api.questions)
	dg.POST("/questions", api.createQuestion)
	dg.PUT("/questions/:questionID", api.updateQuestion)
	dg.DELETE("/questions/:questionID", api.destroyQuestion)

	dg.GET("/attempts", api.attempts)
	dg.POST("/attempts", api.startAttempt)
	ag := dg.Group("/attempts/:attemptID", api.attemptMiddleware)
	ag.GET("", api.retrieveAttempt)
	ag.PUT("/answers", api.saveAnswers)
	ag.POST("/submit", api.submitAttempt)
	ag.PUT("/answers/:questionID/grade", api.gradeAnswer)
}

func quizResource(q quiz.Quiz) acl.Resource {
	return acl.Resource{Type: acl.TypeQuiz, ID: q.ID, CourseID: q.CourseID, Published: q.IsPublished}
}

func (api *quizApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		q, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("quizID"))
		if err != nil {
			return errors.Wrap(err, "finding quiz by ID")
		}
		if q.CourseID != getContextCourse(ctx).ID {
			return errHttpNotFound
		}
		if err = api.access.requireVisible(ctx, quizResource(q)); err != nil {
			return err
		}
		ctx.Set("object", q)
		return next(ctx)
	}
}

func getContextQuiz(ctx echo.Context) quiz.Quiz {
	q, _ := ctx.Get("object").(quiz.Quiz)
	return q
}

// attemptMiddleware loads an attempt of the context quiz; students only reach their own.
func (api *quizApi) attemptMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		a, err := api.svc.Attempt(ctx.Request().Context(), ctx.Param("attemptID"))
		if err != nil {
			return errors.Wrap(err, "finding attempt by ID")
		}
		if a.QuizID != getContextQuiz(ctx).ID {
			return errHttpNotFound
		}
		if !isManager(ctx) && a.StudentID != getContextSubject(ctx).User.ID {
			return errHttpNotFound
		}
		ctx.Set("attempt", a)
		return next(ctx)
	}
}

func getContextAttempt(ctx echo.Context) quiz.Attempt {
	a, _ := ctx.Get("attempt").(quiz.Attempt)
	return a
}

// Quizzes

func (api *quizApi) list(ctx echo.Context) error {
	quizzes, err := api.svc.List(ctx.Request().Context(), getContextCourse(ctx).ID, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "listing quizzes")
	}
	quizzes, err = visible(ctx, api.access, quizzes, quizResource)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *quizApi) create(ctx echo.Context) error {
	if err := api.access.requireInstructor(ctx); err != nil {
		return err
	}

	var data quiz.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.Create(ctx.Request().Context(), getContextCourse(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, q)
}

// importFile creates a quiz from the YAML request body.
func (api *quizApi) importFile(ctx echo.Context) error {
	if err := api.access.requireInstructor(ctx); err != nil {
		return err
	}

	qf, err := quiz.ParseQuizFile(ctx.Request().Body)
	if err != nil {
		return core.NewValidationError(err)
	}
	if err = qf.Validate(api.validate); err != nil {
		if _, ok := errors.Cause(err).(validator.ValidationErrors); ok {
			return err
		}
		return core.NewValidationError(err)
	}

	q, questions, err := api.svc.Import(ctx.Request().Context(), getContextCourse(ctx).ID, qf)
	if err != nil {
		return errors.Wrap(err, "importing quiz")
	}
	return ctx.JSON(http.StatusCreated, quizWithQuestions{Quiz: q, Questions: questions})
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getContextQuiz(ctx))
}

func (api *quizApi) update(ctx echo.Context) error {
	q := getContextQuiz(ctx)
	if err := api.access.require(ctx, quizResource(q), acl.PermManage); err != nil {
		return err
	}

	var data quiz.UpdateQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.Update(ctx.Request().Context(), q.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating quiz")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) destroy(ctx echo.Context) error {
	q := getContextQuiz(ctx)
	if err := api.access.require(ctx, quizResource(q), acl.PermDelete); err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), q.ID); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	if err := api.aclSvc.Forget(ctx.Request().Context(), acl.TypeQuiz, q.ID); err != nil {
		return errors.Wrap(err, "dropping quiz acl entries")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Questions

func (api *quizApi) questions(ctx echo.Context) error {
	questions, err := api.svc.Questions(ctx.Request().Context(), getContextQuiz(ctx).ID, !isManager(ctx))
	if err != nil {
		return errors.Wrap(err, "listing questions")
	}
	if questions == nil {
		questions = []quiz.Question{}
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *quizApi) createQuestion(ctx echo.Context) error {
	q := getContextQuiz(ctx)
	if err := api.access.require(ctx, quizResource(q), acl.PermManage); err != nil {
		return err
	}

	var data quiz.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	question, err := api.svc.CreateQuestion(ctx.Request().Context(), q, data)
	if err != nil {
		return errors.Wrap(err, "creating question")
	}
	return ctx.JSON(http.StatusCreated, question)
}

func (api *quizApi) updateQuestion(ctx echo.Context) error {
	q := getContextQuiz(ctx)
	if err := api.access.require(ctx, quizResource(q), acl.PermManage); err != nil {
		return err
	}

	var data quiz.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	question, err := api.svc.UpdateQuestion(ctx.Request().Context(), q, ctx.Param("questionID"), data)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, question)
}

func (api *quizApi) destroyQuestion(ctx echo.Context) error {
	q := getContextQuiz(ctx)
	if err := api.access.require(ctx, quizResource(q), acl.PermManage); err != nil {
		return err
	}
	if err := api.svc.DeleteQuestion(ctx.Request().Context(), q, ctx.Param("questionID")); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Attempts

func (api *quizApi) attempts(ctx echo.Context) error {
	q := getContextQuiz(ctx)
	manager := isManager(ctx)

	var studentID string
	if manager {
		studentID = ctx.QueryParam("student_id")
	} else {
		studentID = getContextSubject(ctx).User.ID
	}

	attempts, err := api.svc.Attempts(ctx.Request().Context(), q.ID, studentID)
	if err != nil {
		return errors.Wrap(err, "listing attempts")
	}
	res := make([]quiz.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if !manager {
			a = a.ForStudent()
		}
		res = append(res, a)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *quizApi) startAttempt(ctx echo.Context) error {
	if !getContextSubject(ctx).Membership.IsStudent() {
		return errHttpForbidden
	}

	student, _ := ctx.Get(contextUserKey).(user.User)
	a, err := api.svc.StartAttempt(ctx.Request().Context(), getContextQuiz(ctx), student)
	if err != nil {
		return errors.Wrap(err, "starting attempt")
	}
	questions, err := api.svc.Questions(ctx.Request().Context(), a.QuizID, true /* forStudent */)
	if err != nil {
		return errors.Wrap(err, "listing questions")
	}
	return ctx.JSON(http.StatusCreated, attemptWithQuestions{Attempt: a.ForStudent(), Questions: questions})
}

func (api *quizApi) retrieveAttempt(ctx echo.Context) error {
	q := getContextQuiz(ctx)
	a := getContextAttempt(ctx)

	manager := isManager(ctx)
	full := manager || (q.ShowCorrectAnswers && a.IsFinished())
	questions, err := api.svc.Questions(ctx.Request().Context(), q.ID, !full)
	if err != nil {
		return errors.Wrap(err, "listing questions")
	}
	if !manager {
		a = a.ForStudent()
	}
	return ctx.JSON(http.StatusOK, attemptWithQuestions{Attempt: a, Questions: questions})
}

func (api *quizApi) saveAnswers(ctx echo.Context) error {
	var data quiz.SaveAnswers
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveAnswers")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	student, _ := ctx.Get(contextUserKey).(user.User)
	a, err := api.svc.SaveAnswers(ctx.Request().Context(), getContextAttempt(ctx).ID, student, data)
	if err != nil {
		return errors.Wrap(err, "saving answers")
	}
	return ctx.JSON(http.StatusOK, a.ForStudent())
}

func (api *quizApi) submitAttempt(ctx echo.Context) error {
	student, _ := ctx.Get(contextUserKey).(user.User)
	a, err := api.svc.SubmitAttempt(ctx.Request().Context(), getContextAttempt(ctx).ID, student)
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}
	return ctx.JSON(http.StatusOK, a.ForStudent())
}

func (api *quizApi) gradeAnswer(ctx echo.Context) error {
	if err := api.access.require(ctx, quizResource(getContextQuiz(ctx)), acl.PermManage); err != nil {
		return err
	}

	var data quiz.GradeAnswer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeAnswer")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.GradeAnswer(ctx.Request().Context(), getContextAttempt(ctx).ID, ctx.Param("questionID"), data)
	if err != nil {
		return errors.Wrap(err, "grading answer")
	}
	return ctx.JSON(http.StatusOK, a)
}

type (
	quizWithQuestions struct {
		Quiz      quiz.Quiz       `json:"quiz"`
		Questions []quiz.Question `json:"questions"`
	}

	attemptWithQuestions struct {
		Attempt   quiz.Attempt    `json:"attempt"`
		Questions []quiz.Question `json:"questions"`
	}
)
