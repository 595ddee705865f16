package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lamim/chorus/internal/history"
	"github.com/lamim/chorus/pkg/models"
)

// registerRoutes sets up every route on the gin router
func registerRoutes(router *gin.Engine, deps Deps) {
	router.GET("/healthz", handleHealth())
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	chat := router.Group("/api/chat")
	chat.GET("", handleCatalog(deps.Catalog))
	chat.POST("/advanced", handleConversationPost(deps))
	chat.GET("/advanced", handleConversationGet(deps))
	chat.DELETE("/advanced", handleConversationDelete(deps))

	router.GET("/api/history", handleHistory(deps.History))

	pg := router.Group("/api/playground/sessions")
	pg.POST("", handleCreateSession(deps))
	pg.GET("/:id", withSession(deps, handleGetSession))
	pg.DELETE("/:id", handleCloseSession(deps))
	pg.PUT("/:id/selections", withSession(deps, handleSetSelections(deps)))
	pg.POST("/:id/selections/restore", withSession(deps, handleRestoreSelection))
	pg.POST("/:id/submit", withSession(deps, handleSubmit(deps)))
	pg.POST("/:id/direct-submit", withSession(deps, handleDirectSubmit))
	pg.POST("/:id/confirm-model", withSession(deps, handleConfirmModel(deps)))
	pg.POST("/:id/slots/:key/cancel", withSession(deps, handleCancelSlot))
	pg.POST("/:id/remix", withSession(deps, handleRemix(deps)))
	pg.POST("/:id/remix/hide", withSession(deps, handleHideRemix))
	pg.POST("/:id/social-posts", withSession(deps, handleSocialPost(deps)))
	pg.DELETE("/:id/social-posts/:postId", withSession(deps, handleCloseSocialPost))
	pg.GET("/:id/social-posts/:postId/items", withSession(deps, handleSocialPostItems))
	pg.GET("/:id/events", withSession(deps, handleEvents(deps)))
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleCatalog(catalog []models.ModelInfo) gin.HandlerFunc {
	if catalog == nil {
		catalog = []models.ModelInfo{}
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.NewEnvelope(gin.H{"models": catalog}))
	}
}

func handleHistory(lister HistoryLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		if lister == nil {
			fail(c, http.StatusServiceUnavailable, errors.New("history is disabled"))
			return
		}
		opts := history.ListOptions{
			SessionID: c.Query("sessionId"),
			Kind:      c.Query("kind"),
		}
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				fail(c, http.StatusBadRequest, errors.New("limit must be an integer"))
				return
			}
			opts.Limit = n
		}

		entries, err := lister.List(c.Request.Context(), opts)
		if err != nil {
			fail(c, http.StatusInternalServerError, err)
			return
		}
		if entries == nil {
			entries = []history.Generation{}
		}
		c.JSON(http.StatusOK, models.NewEnvelope(gin.H{"entries": entries}))
	}
}

// fail writes an error envelope
func fail(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, models.NewErrorEnvelope(err.Error()))
}
