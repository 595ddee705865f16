package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lamim/chorus/internal/api"
	"github.com/lamim/chorus/internal/attachment"
	"github.com/lamim/chorus/internal/playground"
	"github.com/lamim/chorus/pkg/models"
)

const sessionKey = "session"

type selectionsBody struct {
	Selections []models.ModelSelection `json:"selections"`
}

type submitBody struct {
	Prompt     string                  `json:"prompt"`
	Selections []models.ModelSelection `json:"selections"`
}

type directSubmitBody struct {
	Prompt  string `json:"prompt"`
	ModelID string `json:"modelId"`
}

type modelBody struct {
	ModelID string `json:"modelId"`
}

// statusFor maps playground errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, playground.ErrSessionNotFound),
		errors.Is(err, playground.ErrSocialPostNotFound):
		return http.StatusNotFound
	case errors.Is(err, playground.ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, playground.ErrAlreadySubmitted),
		errors.Is(err, playground.ErrSelectionRequired),
		errors.Is(err, playground.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, playground.ErrEmptyPrompt),
		errors.Is(err, playground.ErrInvalidCount),
		errors.Is(err, playground.ErrEmptyModelID),
		errors.Is(err, playground.ErrTooManySlots),
		errors.Is(err, playground.ErrNothingToRemix),
		errors.Is(err, playground.ErrNoPrompt),
		errors.Is(err, playground.ErrNoModel),
		errors.Is(err, playground.ErrUnknownPlatform),
		errors.Is(err, playground.ErrUnknownPostType),
		errors.Is(err, api.ErrUnknownModel):
		return http.StatusBadRequest
	}
	var rejected *attachment.RejectedError
	if errors.As(err, &rejected) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// withSession resolves :id and stores the session on the context
func withSession(deps Deps, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := deps.Playground.Get(c.Param("id"))
		if err != nil {
			fail(c, statusFor(err), err)
			return
		}
		c.Set(sessionKey, s)
		h(c)
	}
}

func session(c *gin.Context) *playground.Session {
	return c.MustGet(sessionKey).(*playground.Session)
}

// checkModels rejects model ids missing from the catalog
func checkModels(deps Deps, ids ...string) error {
	if len(deps.Catalog) == 0 {
		return nil
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		known := false
		for _, m := range deps.Catalog {
			if m.ID == id {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: %s", api.ErrUnknownModel, id)
		}
	}
	return nil
}

func selectionIDs(selections []models.ModelSelection) []string {
	ids := make([]string, 0, len(selections))
	for _, s := range selections {
		ids = append(ids, s.ModelID)
	}
	return ids
}

func handleCreateSession(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := deps.Playground.Create()
		if err != nil {
			fail(c, statusFor(err), err)
			return
		}
		c.JSON(http.StatusCreated, models.NewEnvelope(s.Snapshot()))
	}
}

func handleGetSession(c *gin.Context) {
	c.JSON(http.StatusOK, models.NewEnvelope(session(c).Snapshot()))
}

func handleCloseSession(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := deps.Playground.Close(id); err != nil {
			fail(c, statusFor(err), err)
			return
		}
		c.JSON(http.StatusOK, models.NewEnvelope(gin.H{"closed": true, "sessionId": id}))
	}
}

func handleSetSelections(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body selectionsBody
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if err := checkModels(deps, selectionIDs(body.Selections)...); err != nil {
			fail(c, statusFor(err), err)
			return
		}
		s := session(c)
		if err := s.SetSelections(body.Selections); err != nil {
			fail(c, statusFor(err), err)
			return
		}
		c.JSON(http.StatusOK, models.NewEnvelope(s.Snapshot()))
	}
}

func handleRestoreSelection(c *gin.Context) {
	s := session(c)
	s.RestoreSelection()
	c.JSON(http.StatusOK, models.NewEnvelope(s.Snapshot()))
}

// readSubmit accepts JSON, or multipart with prompt, selections (JSON) and files
func readSubmit(c *gin.Context, policy attachment.Policy) (submitBody, []api.Attachment, error) {
	var body submitBody
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(&body); err != nil {
			return body, nil, fmt.Errorf("invalid request body: %w", err)
		}
		return body, nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return body, nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	body.Prompt = c.PostForm("prompt")
	if raw := c.PostForm("selections"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &body.Selections); err != nil {
			return body, nil, fmt.Errorf("invalid selections: %w", err)
		}
	}

	files, err := policy.FromMultipart(form.File["files"])
	if err != nil {
		return body, nil, err
	}
	accepted, err := policy.Validate(files)
	if err != nil {
		return body, nil, err
	}
	return body, attachment.ToAPI(accepted), nil
}

func handleSubmit(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, attachments, err := readSubmit(c, deps.Attachments)
		if err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		s := session(c)
		selections := body.Selections
		if selections == nil {
			selections = s.Snapshot().Selections
		}
		if err := checkModels(deps, selectionIDs(selections)...); err != nil {
			fail(c, statusFor(err), err)
			return
		}
		if _, err := s.Submit(body.Prompt, attachments, selections); err != nil {
			fail(c, statusFor(err), err)
			return
		}
		c.JSON(http.StatusAccepted, models.NewEnvelope(s.Snapshot()))
	}
}

func handleDirectSubmit(c *gin.Context) {
	var body directSubmitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	s := session(c)
	_, err := s.DirectSubmit(body.Prompt, body.ModelID)
	// a deferred submit is accepted; the snapshot asks for a model
	if err != nil && !errors.Is(err, playground.ErrSelectionRequired) {
		fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusAccepted, models.NewEnvelope(s.Snapshot()))
}

func handleConfirmModel(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body modelBody
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if err := checkModels(deps, body.ModelID); err != nil {
			fail(c, statusFor(err), err)
			return
		}
		s := session(c)
		if err := s.ConfirmDefaultModel(body.ModelID); err != nil {
			fail(c, statusFor(err), err)
			return
		}
		c.JSON(http.StatusOK, models.NewEnvelope(s.Snapshot()))
	}
}

func handleCancelSlot(c *gin.Context) {
	key, err := playground.ParseSlotKey(c.Param("key"))
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	cancelled := session(c).CancelSlot(key)
	c.JSON(http.StatusOK, models.NewEnvelope(gin.H{"cancelled": cancelled, "slot": key.String()}))
}

func handleRemix(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body modelBody
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
				return
			}
		}
		if err := checkModels(deps, body.ModelID); err != nil {
			fail(c, statusFor(err), err)
			return
		}
		s := session(c)
		if _, err := s.Remix(body.ModelID); err != nil {
			fail(c, statusFor(err), err)
			return
		}
		c.JSON(http.StatusAccepted, models.NewEnvelope(s.Snapshot()))
	}
}

func handleHideRemix(c *gin.Context) {
	s := session(c)
	s.HideRemix()
	c.JSON(http.StatusOK, models.NewEnvelope(s.Snapshot()))
}

func handleSocialPost(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cfg models.SocialPostConfig
		if err := c.ShouldBindJSON(&cfg); err != nil {
			fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if err := checkModels(deps, cfg.ModelID); err != nil {
			fail(c, statusFor(err), err)
			return
		}
		id, _, err := session(c).GenerateSocialPost(cfg)
		if err != nil {
			fail(c, statusFor(err), err)
			return
		}
		c.JSON(http.StatusAccepted, models.NewEnvelope(gin.H{"socialPostId": id}))
	}
}

func handleCloseSocialPost(c *gin.Context) {
	id := playground.SocialPostID(c.Param("postId"))
	if err := session(c).CloseSocialPost(id); err != nil {
		fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, models.NewEnvelope(gin.H{"closed": true, "socialPostId": id}))
}

func handleSocialPostItems(c *gin.Context) {
	id := playground.SocialPostID(c.Param("postId"))
	items, err := session(c).SocialPostItems(id)
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	if items == nil {
		items = []string{}
	}
	c.JSON(http.StatusOK, models.NewEnvelope(gin.H{"socialPostId": id, "posts": items}))
}
