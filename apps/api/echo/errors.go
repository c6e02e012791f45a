package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/acl"
	"github.com/trezcool/masomo-lms/core/announcement"
	"github.com/trezcool/masomo-lms/core/assignment"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/discussion"
	"github.com/trezcool/masomo-lms/core/quiz"
	"github.com/trezcool/masomo-lms/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// errorStatuses maps domain errors to their HTTP status; the error text is sent as is.
var errorStatuses = []struct {
	err  error
	code int
}{
	{user.ErrNotFound, http.StatusNotFound},
	{course.ErrNotFound, http.StatusNotFound},
	{course.ErrEnrollmentNotFound, http.StatusNotFound},
	{course.ErrModuleNotFound, http.StatusNotFound},
	{course.ErrItemNotFound, http.StatusNotFound},
	{course.ErrPageNotFound, http.StatusNotFound},
	{acl.ErrEntryNotFound, http.StatusNotFound},
	{announcement.ErrNotFound, http.StatusNotFound},
	{discussion.ErrNotFound, http.StatusNotFound},
	{discussion.ErrReplyNotFound, http.StatusNotFound},
	{assignment.ErrNotFound, http.StatusNotFound},
	{assignment.ErrSubmissionNotFound, http.StatusNotFound},
	{quiz.ErrNotFound, http.StatusNotFound},
	{quiz.ErrQuestionNotFound, http.StatusNotFound},
	{quiz.ErrAttemptNotFound, http.StatusNotFound},

	{acl.ErrForbidden, http.StatusForbidden},
	{quiz.ErrNotOwner, http.StatusForbidden},

	{user.ErrUserExists, http.StatusConflict},
	{course.ErrCodeExists, http.StatusConflict},
	{course.ErrAlreadyEnrolled, http.StatusConflict},
	{course.ErrSlugExists, http.StatusConflict},
	{discussion.ErrLocked, http.StatusConflict},
	{assignment.ErrClosed, http.StatusConflict},
	{quiz.ErrMaxAttemptsReached, http.StatusConflict},
	{quiz.ErrAttemptExpired, http.StatusConflict},
	{quiz.ErrAttemptClosed, http.StatusConflict},
	{quiz.ErrAttemptInProgress, http.StatusConflict},
	{quiz.ErrHasAttempts, http.StatusConflict},

	{quiz.ErrUnavailable, http.StatusBadRequest},
	{assignment.ErrUnpublished, http.StatusBadRequest},
}

func errorStatus(err error) (int, bool) {
	for _, es := range errorStatuses {
		if err == es.err {
			return es.code, true
		}
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if status, ok := errorStatus(origErr); ok {
				code = status
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
