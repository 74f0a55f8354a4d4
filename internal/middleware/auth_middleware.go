package middleware

import (
	"context"
	"net/http"
	"strings"

	"workforce-chat/internal/services"
	"workforce-chat/internal/transport/httpdto"
	"workforce-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware resolves the bearer token into a caller on the request
// context. Requests without a valid token never reach the handler.
func AuthMiddleware(service *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := service.ParseAccessToken(extractBearer(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		ctx := services.WithCaller(c.Request.Context(), caller)
		ctx = context.WithValue(ctx, logger.UserIdKey, caller.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// InternalTokenMiddleware guards service-to-service endpoints with a shared
// token. An empty token disables the endpoints entirely.
func InternalTokenMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" || c.GetHeader("X-Internal-Token") != token {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
