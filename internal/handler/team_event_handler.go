package handler

import (
	"net/http"

	"workforce-chat/internal/events"
	"workforce-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// TeamEventHandler accepts team lifecycle events over HTTP for deployments
// that do not run NATS.
type TeamEventHandler struct {
	consumer *events.TeamEventConsumer
}

func NewTeamEventHandler(consumer *events.TeamEventConsumer) *TeamEventHandler {
	return &TeamEventHandler{consumer: consumer}
}

func (h *TeamEventHandler) Handle(c *gin.Context) {
	var ev events.TeamEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if err := h.consumer.Apply(c.Request.Context(), ev); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse(httpdto.TeamEventAccepted{Type: ev.Type, TeamID: ev.Team.ID}))
}
