package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/mesa/pkg/errorbank"
)

// Roles recognised by the service.
const (
	RoleClient = "CLIENT"
	RoleAdmin  = "ADMIN"
)

// Principal is the authenticated identity attached to a request. The
// identity provider issues the token; this service only verifies it.
type Principal struct {
	UserID int64
	Role   string
}

const principalKey = "auth.principal"

// Middleware verifies the bearer token and stores the Principal on the
// request context. Requests without a valid token are rejected with 401.
func Middleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, err := principalFromHeader(c.Request().Header.Get(echo.HeaderAuthorization), secret)
			if err != nil {
				return err
			}
			c.Set(principalKey, principal)
			return next(c)
		}
	}
}

// RequireRole rejects requests whose principal lacks one of the roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, err := FromContext(c)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if principal.Role == role {
					return next(c)
				}
			}
			return errorbank.Forbidden("insufficient role")
		}
	}
}

// FromContext returns the request principal set by Middleware.
func FromContext(c echo.Context) (Principal, error) {
	principal, ok := c.Get(principalKey).(Principal)
	if !ok {
		return Principal{}, errorbank.Unauthenticated("authentication required")
	}
	return principal, nil
}

func principalFromHeader(header, secret string) (Principal, error) {
	if header == "" {
		return Principal{}, errorbank.Unauthenticated("missing authorization header")
	}
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return Principal{}, errorbank.Unauthenticated("malformed authorization header")
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Principal{}, errorbank.Unauthenticated("invalid token", errorbank.WithCause(err))
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, errorbank.Unauthenticated("invalid token claims")
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return Principal{}, errorbank.Unauthenticated("missing subject claim")
	}
	role, _ := claims["role"].(string)
	if role == "" {
		return Principal{}, errorbank.Unauthenticated("missing role claim")
	}

	return Principal{UserID: int64(sub), Role: role}, nil
}
