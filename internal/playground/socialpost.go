package playground

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lamim/chorus/internal/api"
	"github.com/lamim/chorus/internal/history"
	"github.com/lamim/chorus/internal/metrics"
	"github.com/lamim/chorus/internal/stream"
	"github.com/lamim/chorus/internal/util"
	"github.com/lamim/chorus/pkg/models"
)

// SocialPostID identifies one social post generation. It is a ULID, so ids
// sort by creation time and never collide with slot keys.
type SocialPostID string

// NewSocialPostID returns a fresh id
func NewSocialPostID() SocialPostID {
	return SocialPostID(ulid.Make().String())
}

var (
	// ErrUnknownPlatform is returned for a platform without a tone
	ErrUnknownPlatform = errors.New("unknown platform")
	// ErrUnknownPostType is returned for a post type without an instruction
	ErrUnknownPostType = errors.New("unknown post type")
	// ErrSocialPostNotFound is returned for an id that is not open
	ErrSocialPostNotFound = errors.New("social post not found")
)

// Defaults applied to a zero SocialPostConfig
const (
	DefaultNumberOfPosts  = 3
	DefaultCharacterLimit = 280
)

var platformTones = map[models.Platform]string{
	models.PlatformTwitter:   "You are a social media expert writing for Twitter/X. Be punchy, conversational and concise; hashtags are welcome but sparing.",
	models.PlatformLinkedIn:  "You are a professional content strategist writing for LinkedIn. Be insightful and credible, with a clear takeaway for a professional audience.",
	models.PlatformInstagram: "You are a creative content creator writing for Instagram. Be visual, warm and engaging, and end with relevant hashtags.",
	models.PlatformFacebook:  "You are a community manager writing for Facebook. Be friendly and approachable, and invite discussion.",
	models.PlatformTikTok:    "You are a short-form video creator writing for TikTok. Be energetic and trend-aware, with a strong hook in the first line.",
}

// postInstruction describes the requested output shape; every variant asks
// for numbered labels so ParseSocialPosts can split the result
func postInstruction(cfg models.SocialPostConfig) (string, error) {
	n, limit := cfg.NumberOfPosts, cfg.CharacterLimit
	switch cfg.PostType {
	case models.PostTypeTweet:
		return fmt.Sprintf("Write %d separate tweets, each at most %d characters. Label them \"Tweet 1:\", \"Tweet 2:\" and so on.", n, limit), nil
	case models.PostTypeThread:
		return fmt.Sprintf("Write a thread of %d connected tweets, each at most %d characters, that read in order. Label them \"Tweet 1:\", \"Tweet 2:\" and so on.", n, limit), nil
	case models.PostTypeArticle:
		return fmt.Sprintf("Write %d short article-style posts of at most %d characters each, with a headline line. Label them \"Post 1:\", \"Post 2:\" and so on.", n, limit), nil
	case models.PostTypePost:
		return fmt.Sprintf("Write %d distinct posts, each at most %d characters. Label them \"Post 1:\", \"Post 2:\" and so on.", n, limit), nil
	case models.PostTypeCaption:
		return fmt.Sprintf("Write %d captions, each at most %d characters. Label them \"Caption 1:\", \"Caption 2:\" and so on.", n, limit), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPostType, cfg.PostType)
}

// buildSocialInstruction combines the platform tone with the post-type instruction
func buildSocialInstruction(cfg models.SocialPostConfig) (string, error) {
	tone, ok := platformTones[cfg.Platform]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, cfg.Platform)
	}
	shape, err := postInstruction(cfg)
	if err != nil {
		return "", err
	}
	if cfg.IsThreaded && cfg.PostType != models.PostTypeThread {
		shape += " The posts form a sequence and should read naturally in order."
	}
	return tone + "\n\n" + shape, nil
}

// referenceContent joins the outputs of the selected slots, or of every
// finished slot when no column is selected
func referenceContent(snap *Snapshot, selected []string) string {
	inputs := finishedOutputs(snap)
	if len(selected) > 0 {
		inputs = slices.DeleteFunc(inputs, func(in remixInput) bool {
			return !slices.Contains(selected, in.Key)
		})
	}

	var b strings.Builder
	for i, in := range inputs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Response %s ---\n%s", in.Key, in.Text)
	}
	return b.String()
}

func withSocialDefaults(cfg models.SocialPostConfig) models.SocialPostConfig {
	if cfg.NumberOfPosts < 1 {
		cfg.NumberOfPosts = DefaultNumberOfPosts
	}
	if cfg.CharacterLimit < 1 {
		cfg.CharacterLimit = DefaultCharacterLimit
	}
	if cfg.PostType == models.PostTypeThread {
		cfg.IsThreaded = true
	}
	return cfg
}

// GenerateSocialPost streams platform-tailored posts into a new entry of
// SocialPostState. The base prompt is cfg.CustomPrompt, else the session
// prompt; without a custom prompt the slot outputs are attached as reference.
func (s *Session) GenerateSocialPost(cfg models.SocialPostConfig) (SocialPostID, *Run, error) {
	cfg = withSocialDefaults(cfg)
	instruction, err := buildSocialInstruction(cfg)
	if err != nil {
		return "", nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", nil, ErrSessionClosed
	}
	snap := s.snap

	base := strings.TrimSpace(cfg.CustomPrompt)
	var reference string
	if base == "" {
		base = strings.TrimSpace(snap.Prompt)
		reference = referenceContent(snap, cfg.SelectedColumns)
	}
	if base == "" {
		s.mu.Unlock()
		return "", nil, ErrNoPrompt
	}

	modelID := cfg.ModelID
	if modelID == "" {
		modelID = s.opts.DefaultModel
		cfg.ModelID = modelID
	}
	if modelID == "" {
		s.mu.Unlock()
		return "", nil, ErrNoModel
	}

	prompt, err := util.RenderTemplate(s.opts.SocialPostTemplate, map[string]any{
		"Instruction": instruction,
		"Prompt":      base,
		"Reference":   reference,
	})
	if err != nil {
		s.mu.Unlock()
		return "", nil, fmt.Errorf("failed to render social post template: %w", err)
	}

	id := NewSocialPostID()
	next := *snap
	next.SocialPosts = cloneSocialPosts(snap.SocialPosts)
	next.SocialPosts.Responses[id] = ""
	next.SocialPosts.Generating[id] = true
	next.SocialPosts.Visible[id] = true
	next.SocialPosts.Config[id] = cfg
	ctx, cancel := context.WithCancel(s.ctx)
	s.postRuns[id] = cancel
	s.commitLocked(next)
	s.wg.Add(1)
	s.mu.Unlock()

	logger := s.logger.With("social_post_id", string(id), "platform", string(cfg.Platform), "model", modelID)
	logger.Info("Generating social posts", "post_type", string(cfg.PostType), "count", cfg.NumberOfPosts)

	req := api.NewPromptRequest(prompt, modelID, nil)
	req.SystemPrompt = s.opts.SocialPostSystem

	run := newRun()
	go func() {
		defer s.wg.Done()
		defer run.finish()
		defer cancel()

		start := time.Now()
		s.opts.Metrics.GenerationStarted(metrics.KindSocialPost)
		text, err := s.generate(ctx, req, func(u stream.Update) {
			s.setSocialResponse(id, u.Accumulated, false)
		})
		elapsed := time.Since(start)
		s.opts.Metrics.GenerationFinished(metrics.KindSocialPost, elapsed, err == nil)

		if err != nil {
			logger.Warn("Social post generation failed", "error", err)
			s.setSocialResponse(id, api.UserMessage(err), true)
		} else {
			s.setSocialResponse(id, text, true)
		}
		s.journal(history.KindSocialPost, string(id), modelID, base, text, err, elapsed)
	}()
	return id, run, nil
}

// setSocialResponse updates an open entry; closed entries are ignored
func (s *Session) setSocialResponse(id SocialPostID, text string, final bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snap.SocialPosts.Config[id]; !ok {
		return
	}
	next := *s.snap
	next.SocialPosts = cloneSocialPosts(s.snap.SocialPosts)
	next.SocialPosts.Responses[id] = text
	if final {
		next.SocialPosts.Generating[id] = false
		delete(s.postRuns, id)
	}
	s.commitLocked(next)
}

// CloseSocialPost removes every trace of id and cancels it if still running
func (s *Session) CloseSocialPost(id SocialPostID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snap.SocialPosts.Config[id]; !ok {
		return ErrSocialPostNotFound
	}
	if cancel, ok := s.postRuns[id]; ok {
		cancel()
		delete(s.postRuns, id)
	}
	next := *s.snap
	next.SocialPosts = cloneSocialPosts(s.snap.SocialPosts)
	delete(next.SocialPosts.Responses, id)
	delete(next.SocialPosts.Generating, id)
	delete(next.SocialPosts.Visible, id)
	delete(next.SocialPosts.Config, id)
	s.commitLocked(next)
	return nil
}

// SocialPostItems returns the parsed posts of id
func (s *Session) SocialPostItems(id SocialPostID) ([]string, error) {
	snap := s.Snapshot()
	text, ok := snap.SocialPosts.Responses[id]
	if !ok {
		return nil, ErrSocialPostNotFound
	}
	return ParseSocialPosts(text), nil
}

func cloneSocialPosts(p SocialPostState) SocialPostState {
	return SocialPostState{
		Responses:  maps.Clone(p.Responses),
		Generating: maps.Clone(p.Generating),
		Visible:    maps.Clone(p.Visible),
		Config:     maps.Clone(p.Config),
	}
}
