package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"workforce-chat/internal/events"
	"workforce-chat/internal/services"
	"workforce-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// Dispatcher pushes realtime deliveries produced by an HTTP action.
type Dispatcher interface {
	Dispatch(ctx context.Context, deliveries []events.Delivery)
}

type ChatHandler struct {
	groups     *services.GroupService
	queries    *services.QueryService
	dispatcher Dispatcher
}

func NewChatHandler(groups *services.GroupService, queries *services.QueryService, dispatcher Dispatcher) *ChatHandler {
	return &ChatHandler{groups: groups, queries: queries, dispatcher: dispatcher}
}

func (h *ChatHandler) CreateGroup(c *gin.Context) {
	caller, ok := services.CallerFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req services.CreateGroupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	conv, err := h.groups.CreateGroup(c.Request.Context(), caller.UserID, req)
	if err != nil {
		if conflict, ok := httpdto.FromConflict(err); ok {
			c.JSON(http.StatusConflict, conflict)
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(conv))
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	caller, ok := services.CallerFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	items, err := h.queries.ListForUser(c.Request.Context(), caller.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(items))
}

func (h *ChatHandler) History(c *gin.Context) {
	caller, ok := services.CallerFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid limit", "INVALID_REQUEST"))
			return
		}
		limit = n
	}

	msgs, err := h.queries.History(c.Request.Context(), caller.UserID, c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msgs))
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	caller, ok := services.CallerFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	res, err := h.queries.MarkRead(c.Request.Context(), caller.UserID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if h.dispatcher != nil {
		h.dispatcher.Dispatch(c.Request.Context(), res.Deliveries(caller.UserID))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkReadResponse{
		ConversationID: res.ConversationID,
		MarkedCount:    res.MarkedCount,
		ReadAt:         res.ReadAt.Format(time.RFC3339Nano),
	}))
}

func (h *ChatHandler) Unread(c *gin.Context) {
	caller, ok := services.CallerFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	summary, err := h.queries.UnreadSummary(c.Request.Context(), caller.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(summary))
}

func writeError(c *gin.Context, err error) {
	status := services.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		message = "internal error"
	}
	c.JSON(status, httpdto.NewErrorResponse(message, httpdto.ErrorCode(status)))
}

// RegisterRoutes mounts the chat endpoints on an authenticated group.
func (h *ChatHandler) RegisterRoutes(g gin.IRouter) {
	g.POST("/groups", h.CreateGroup)
	g.GET("/conversations", h.ListConversations)
	g.GET("/conversations/:id/messages", h.History)
	g.POST("/conversations/:id/read", h.MarkRead)
	g.GET("/unread", h.Unread)
}
