// Package server exposes the playground and conversation APIs over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lamim/chorus/internal/attachment"
	"github.com/lamim/chorus/internal/conversation"
	"github.com/lamim/chorus/internal/history"
	"github.com/lamim/chorus/internal/playground"
	"github.com/lamim/chorus/pkg/models"
)

// HistoryLister reads the generation journal
type HistoryLister interface {
	List(ctx context.Context, opts history.ListOptions) ([]history.Generation, error)
}

// Deps holds everything the handlers need
type Deps struct {
	Catalog       []models.ModelInfo
	Conversations *conversation.Service
	Playground    *playground.Manager
	Attachments   attachment.Policy
	History       HistoryLister // nil when the journal is disabled
	Metrics       http.Handler  // nil when metrics are disabled
	Heartbeat     time.Duration
	Logger        *slog.Logger
}

// StartOpts holds configuration for the HTTP server
type StartOpts struct {
	Addr            string
	ShutdownTimeout time.Duration
	Out             io.Writer
	Deps            Deps
}

// NewRouter builds the gin engine with every route registered
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Heartbeat <= 0 {
		deps.Heartbeat = 15 * time.Second
	}

	router := gin.New()
	router.Use(requestLogger(deps.Logger))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		deps.Logger.Error("Handler panicked", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.NewErrorEnvelope("Internal server error"))
	}))

	registerRoutes(router, deps)
	return router
}

func (o StartOpts) withDefaults() StartOpts {
	if o.Addr == "" {
		o.Addr = ":8080"
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 10 * time.Second
	}
	if o.Deps.Logger == nil {
		o.Deps.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Start runs the HTTP server until ctx is cancelled, then shuts down gracefully
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Deps.Conversations == nil || opts.Deps.Playground == nil {
		return fmt.Errorf("server: conversations and playground are required")
	}
	opts = opts.withDefaults()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           NewRouter(opts.Deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		// SSE streams end once their sessions close
		opts.Deps.Playground.CloseAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			opts.Deps.Logger.Warn("Server shutdown incomplete", "error", err)
		}
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Chorus listening on %s\n", opts.Addr)
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	<-shutdownDone
	return nil
}
