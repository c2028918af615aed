package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

type adminApi struct {
	svc        account.ServiceInterface
	conf       *core.Config
	validate   *validator.Validate
	translator ut.Translator
}

func registerAdminAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc account.ServiceInterface,
	conf *core.Config,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := adminApi{
		svc:        svc,
		conf:       conf,
		validate:   validate,
		translator: translator,
	}

	ag := g.Group("/admin")
	ag.POST("/login", api.login)

	// authed endpoints; the stored ADMIN role is checked on every request
	mg := ag.Group("", jwt, accountGuardMiddleware(api.svc), adminMiddleware())
	mg.GET("/users", api.query)
	mg.GET("/users/:id", api.retrieve)
	mg.PUT("/users/:id/approve", api.approve)
	mg.POST("/users/:id/block", api.block)
	mg.POST("/users/:id/unblock", api.unblock)
	mg.DELETE("/users/:id", api.destroy)
	mg.POST("/assignments", api.assign)
	mg.DELETE("/assignments", api.unassign)
}

// Handlers

func (api *adminApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	acct, token, err := authenticate(ctx.Request().Context(), data.Identifier, data.Password, api.svc, api.conf)
	if err != nil {
		return err
	}
	if !acct.IsAdmin() {
		return errHttpForbidden
	}
	return respond(ctx, http.StatusOK, LoginResponse{Token: token, Account: acct}, "login successful")
}

func (api *adminApi) query(ctx echo.Context) error {
	filter := new(account.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.New("invalid query parameters"))
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	filter.Ordering = ordering.Orderings

	page, err := api.svc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying accounts")
	}
	if page.Docs == nil {
		page.Docs = []account.Account{}
	}
	return respond(ctx, http.StatusOK, page, "")
}

func (api *adminApi) retrieve(ctx echo.Context) error {
	acct, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding account by ID")
	}
	return respond(ctx, http.StatusOK, acct, "")
}

func (api *adminApi) approve(ctx echo.Context) error {
	acct, err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving account")
	}
	return respond(ctx, http.StatusOK, acct, "account approved")
}

func (api *adminApi) block(ctx echo.Context) error {
	return api.setBlocked(ctx, true)
}

func (api *adminApi) unblock(ctx echo.Context) error {
	return api.setBlocked(ctx, false)
}

func (api *adminApi) setBlocked(ctx echo.Context, blocked bool) error {
	acct, changed, err := api.svc.SetBlocked(ctx.Request().Context(), ctx.Param("id"), blocked)
	if err != nil {
		return errors.Wrap(err, "setting account blocked status")
	}

	var msg string
	switch {
	case blocked && changed:
		msg = "account blocked"
	case blocked:
		msg = "account is already blocked"
	case changed:
		msg = "account unblocked"
	default:
		msg = "account is already unblocked"
	}
	return respond(ctx, http.StatusOK, acct, msg)
}

func (api *adminApi) destroy(ctx echo.Context) error {
	// Say No to Suicide! admin cannot delete themselves
	ctxAcct, err := getContextAccount(ctx, api.svc)
	if err != nil {
		return errors.Wrap(errAcctNotFoundInCtx, "retrieving account from context")
	}
	if ctx.Param("id") == ctxAcct.ID {
		return errHttpForbidden
	}

	if err = api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting account")
	}
	return respond(ctx, http.StatusOK, nil, "account deleted")
}

func (api *adminApi) assign(ctx echo.Context) error {
	var data AssignmentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignmentRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.Assign(ctx.Request().Context(), data.TeacherID, data.StudentID); err != nil {
		return errors.Wrap(err, "assigning teacher to student")
	}
	return respond(ctx, http.StatusOK, nil, "teacher assigned to student")
}

func (api *adminApi) unassign(ctx echo.Context) error {
	var data AssignmentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignmentRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.Unassign(ctx.Request().Context(), data.TeacherID, data.StudentID); err != nil {
		return errors.Wrap(err, "unassigning teacher from student")
	}
	return respond(ctx, http.StatusOK, nil, "assignment removed")
}

type AssignmentRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
}

func (ar *AssignmentRequest) Validate(validate *validator.Validate) error {
	ar.TeacherID = core.CleanString(ar.TeacherID)
	ar.StudentID = core.CleanString(ar.StudentID)
	return validate.Struct(ar)
}
