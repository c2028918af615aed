package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

const (
	contextTokenKey   = "accountToken"
	contextAccountKey = "account"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	IsAdmin  bool   `json:"is_admin,omitempty"` // -> ADMIN CONSOLE
}

// newJWTConfig returns the JWT auth middleware config. Verification failures
// keep the underlying jwt error as HTTPError.Internal so the error handler
// can tell an expired token from a forged one.
func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func GetAccountClaims(acct account.Account, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   acct.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: acct.Username,
		Email:    acct.Email,
		Role:     acct.Role,
		IsAdmin:  acct.IsAdmin(),
	}
}

// GenerateToken generates a signed JWT token string representing the account Claims.
func GenerateToken(claims *Claims, conf *core.Config) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

// authenticate checks the credentials and the account's standing in the
// login gate order: existence, approval, blocked, password.
func authenticate(ctx context.Context, identifier, pwd string, svc account.ServiceInterface, conf *core.Config) (account.Account, string, error) {
	acct, err := svc.Authenticate(ctx, identifier, pwd)
	if err != nil {
		switch errors.Cause(err) {
		case account.ErrNotFound:
			return account.Account{}, "", errHttpNotFound
		case account.ErrApprovalRequired:
			return account.Account{}, "", errApprovalRequired
		case account.ErrAccountBlocked:
			return account.Account{}, "", errAccountBlocked
		case account.ErrInvalidCredentials:
			return account.Account{}, "", errAuthenticationFailed
		}
		return account.Account{}, "", errors.Wrap(err, "authenticating")
	}

	token, err := GenerateToken(GetAccountClaims(acct, conf), conf)
	if err != nil {
		return account.Account{}, "", errors.Wrap(err, "generating token")
	}
	return acct, token, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextAccount(ctx echo.Context, svc account.ServiceInterface) (account.Account, error) {
	if acct, ok := ctx.Get(contextAccountKey).(account.Account); ok {
		return acct, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "getting context claims")
	}

	acct, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "finding account by ID")
	}
	ctx.Set(contextAccountKey, acct)
	return acct, nil
}

// accountGuardMiddleware re-fetches the token's account on every request so
// a block or delete takes effect immediately, token lifetime notwithstanding.
func accountGuardMiddleware(svc account.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			acct, err := getContextAccount(ctx, svc)
			if err != nil {
				if errors.Cause(err) == account.ErrNotFound {
					return errHttpNotFound
				}
				return err
			}
			if acct.IsDeleted() {
				return errAccountRemoved
			}
			if acct.IsBlocked() {
				return errAccountBlocked
			}
			return next(ctx)
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if !claims.IsAdmin {
				return errHttpForbidden
			}
			// the stored role decides, not the (possibly stale) token
			if acct, ok := ctx.Get(contextAccountKey).(account.Account); ok && !acct.IsAdmin() {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
