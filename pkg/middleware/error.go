package middleware

import (
	"net/http"

	"taskplane/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// Error renders the last handler error as the JSON envelope. Handlers attach
// domain errors with c.Error and abort; anything that is not a BaseError is
// reported as an internal failure without leaking its message shape.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		err := c.Errors.Last()
		if err == nil {
			return
		}

		if v, ok := err.Err.(errutil.BaseError); ok {
			c.JSON(v.Code.HTTPStatus(), v.JSON())
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": err.Error(),
		})
	}
}
