package echoapi

import (
	"net/http"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

// Domain status codes layered over HTTP. Clients branch on these to show
// distinct messaging for removed vs blocked vs merely expired sessions.
const (
	statusAccountRemoved = 402
	statusSessionExpired = 440
	statusAccountBlocked = 450
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusUnauthorized, "incorrect credentials")
	errSessionExpired       = echo.NewHTTPError(statusSessionExpired, "session expired, please log in again")
	errAccountRemoved       = echo.NewHTTPError(statusAccountRemoved, "account removed by admin")
	errAccountBlocked       = echo.NewHTTPError(statusAccountBlocked, "account has been blocked by admin")
	errApprovalRequired     = echo.NewHTTPError(http.StatusForbidden, "account is awaiting admin approval")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "account not found")
)

type (
	successResponse struct {
		Data    interface{} `json:"data,omitempty"`
		Message string      `json:"message,omitempty"`
	}

	errorResponse struct {
		ResponseCode    int         `json:"responseCode"`
		ResponseMessage interface{} `json:"responseMessage"`
	}
)

func respond(ctx echo.Context, code int, data interface{}, message string) error {
	return ctx.JSON(code, successResponse{Data: data, Message: message})
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = errUnauthorized.Message
				break
			}
			// an expired token gets its own code so clients re-login
			// instead of re-prompting for credentials
			if vErr, ok := origErr.Internal.(*jwt.ValidationError); ok {
				if vErr.Errors&jwt.ValidationErrorExpired != 0 {
					code = errSessionExpired.Code
					message = errSessionExpired.Message
					break
				}
				code = http.StatusUnauthorized
				message = "invalid token"
				break
			}
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
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
			if fldErrs := origErr.FieldMap(); fldErrs != nil {
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			switch origErr {
			case account.ErrNotFound:
				code = http.StatusNotFound
				message = origErr.Error()
			case account.ErrEmailExists, account.ErrPhoneExists:
				code = http.StatusConflict
				message = origErr.Error()
			case account.ErrOTPExpired, account.ErrIncorrectOTP,
				account.ErrRoleMismatch, account.ErrNotEligible:
				code = http.StatusBadRequest
				message = origErr.Error()
			case account.ErrNoPendingApproval:
				code = http.StatusNotFound
				message = origErr.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var acct account.Account
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					acct.ID = claims.Subject
					acct.Username = claims.Username
					acct.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), acct)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, errorResponse{ResponseCode: code, ResponseMessage: message})
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
