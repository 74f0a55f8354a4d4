package middleware

import (
	"net/http"

	"workforce-chat/internal/services"
	"workforce-chat/internal/transport/httpdto"
	"workforce-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders errors that handlers attached with c.Error and did
// not answer themselves.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := services.HTTPStatus(err)
		if l != nil {
			l.ErrorCtx(c.Request.Context(), "request error", zap.Int("status", status), zap.Error(err))
		}
		message := err.Error()
		if status == http.StatusInternalServerError {
			message = "internal error"
		}
		c.JSON(status, httpdto.NewErrorResponse(message, httpdto.ErrorCode(status)))
	}
}
