package middleware

import (
	"strings"

	"taskplane/pkg/config"
	"taskplane/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// CallerIDKey is the gin context key holding the authenticated member id.
const CallerIDKey = "caller_id"

type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Auth validates the bearer token and stores the caller's member id in the
// request context so handlers can resolve "me" style lookups.
func Auth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(
				errutil.StatusUnauthorized.HTTPStatus(),
				errutil.Unauthorized("missing bearer token", nil).(errutil.BaseError).JSON(),
			)
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.Auth.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(
				errutil.StatusUnauthorized.HTTPStatus(),
				errutil.Unauthorized("invalid or expired token", err).(errutil.BaseError).JSON(),
			)
			return
		}

		if claims.Subject == "" {
			c.AbortWithStatusJSON(
				errutil.StatusUnauthorized.HTTPStatus(),
				errutil.Unauthorized("token missing subject", nil).(errutil.BaseError).JSON(),
			)
			return
		}

		c.Set(CallerIDKey, claims.Subject)
		c.Next()
	}
}

// CallerID returns the authenticated member id, if any.
func CallerID(c *gin.Context) string {
	id, _ := c.Get(CallerIDKey)
	s, _ := id.(string)
	return s
}
