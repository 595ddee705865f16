package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lamim/chorus/internal/conversation"
	"github.com/lamim/chorus/pkg/models"
)

var (
	errConversationIDRequired = errors.New("conversationId is required")
	errConversationNotFound   = errors.New("Conversation not found")
)

func handleConversationPost(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req conversation.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			// a body without a usable messages array is the common case
			fail(c, http.StatusBadRequest, conversation.ErrMessagesRequired)
			return
		}

		reply, err := deps.Conversations.Chat(c.Request.Context(), req)
		if err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		c.JSON(http.StatusOK, models.NewEnvelope(reply))
	}
}

func handleConversationGet(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Query("conversationId")
		if id == "" {
			fail(c, http.StatusBadRequest, errConversationIDRequired)
			return
		}
		rec, ok := deps.Conversations.Store().Get(id)
		if !ok {
			fail(c, http.StatusNotFound, errConversationNotFound)
			return
		}
		c.JSON(http.StatusOK, models.NewEnvelope(rec))
	}
}

func handleConversationDelete(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Query("conversationId")
		if id == "" {
			fail(c, http.StatusBadRequest, errConversationIDRequired)
			return
		}
		deleted := deps.Conversations.Delete(id)
		c.JSON(http.StatusOK, models.NewEnvelope(gin.H{
			"deleted":        deleted,
			"conversationId": id,
		}))
	}
}
