package echoapi

import (
	stderrors "errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mkabeya/darasa/core"
	"github.com/mkabeya/darasa/core/grading"
)

var (
	errHttpNotFound     = echo.NewHTTPError(http.StatusNotFound, "not found")
	errSessionNotFound  = echo.NewHTTPError(http.StatusNotFound, "grading session not found")
	errGatewayLoad      = echo.NewHTTPError(http.StatusBadGateway, "loading grading data failed")
	errGatewaySave      = echo.NewHTTPError(http.StatusBadGateway, "saving grades failed")
	errConflictInFlight = echo.NewHTTPError(http.StatusConflict, "a save is already in progress")
	errConflictNoEdit   = echo.NewHTTPError(http.StatusConflict, "record is not the active edit")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
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
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
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
		case *grading.LoadError:
			// unrecoverable for the grading view: the client must navigate away
			if stderrors.Is(origErr, grading.ErrTaskNotFound) {
				code = http.StatusNotFound
				message = grading.ErrTaskNotFound.Error()
			} else {
				code = errGatewayLoad.Code
				message = errGatewayLoad.Message
			}
		case *grading.SaveError:
			// recoverable: local edits are preserved, the client may retry
			code = errGatewaySave.Code
			message = errGatewaySave.Message
		default:
			switch origErr {
			case grading.ErrTaskNotFound, grading.ErrRecordNotFound, grading.ErrSubmissionNotFound:
				code = http.StatusNotFound
				message = origErr.Error()
			case grading.ErrSaveInFlight:
				code = errConflictInFlight.Code
				message = errConflictInFlight.Message
			case grading.ErrRecordNotActive:
				code = errConflictNoEdit.Code
				message = errConflictNoEdit.Message
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				logger.Error(msg, errors.Wrap(err, msg))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
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
