package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lamim/chorus/internal/api"
	"github.com/lamim/chorus/internal/attachment"
	"github.com/lamim/chorus/internal/config"
	"github.com/lamim/chorus/internal/conversation"
	"github.com/lamim/chorus/internal/history"
	"github.com/lamim/chorus/internal/logging"
	"github.com/lamim/chorus/internal/metrics"
	"github.com/lamim/chorus/internal/playground"
	"github.com/lamim/chorus/internal/server"
	"github.com/lamim/chorus/internal/util"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	envFile    string
	logPath    string
	logLevel   string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chorus",
		Short: "Chorus - multi-model chat playground",
		Long: `Chorus sends one prompt to several language models at once, streams
every answer side by side, and can remix the answers into one response or
turn them into social media posts.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to configuration file (.toml or .yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-file", "", "Also write JSON logs to this file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (same as --log-level debug)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the playground and conversation APIs:
  GET  /api/chat                              model catalog
  POST /api/chat/advanced                     single-turn chat with stored context
  POST /api/playground/sessions               open a playground session
  GET  /api/playground/sessions/:id/events    server-sent snapshots`,
		RunE: runServe,
	}
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List the configured model catalog",
		RunE:  listModels,
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent generations from the journal",
		RunE:  listHistory,
	}
	historyCmd.Flags().String("session", "", "Only show generations from this session")
	historyCmd.Flags().String("kind", "", "Only show this kind (slot, remix, social_post, conversation)")
	historyCmd.Flags().Int("limit", 20, "Maximum number of entries")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newAskCommand())
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(historyCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the wired set of services shared by the commands
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	logFile   *os.File
	router    *api.Router
	collector *metrics.Collector
	journal   *history.Store
}

// setup loads env, config and logging, then wires the backend router and journal
func setup() (*app, error) {
	if envFile != "" {
		if err := loadEnvFile(envFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load env file: %v\n", err)
		}
	}

	cfg, secrets, err := config.Load(configPath, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := resolveLevel(logLevel, verbose)
	logger, logFile, err := logging.Setup(level, logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	if level <= slog.LevelDebug {
		for provider, key := range secrets.APIKeys {
			if key != "" {
				logger.Debug("Loaded API key", "provider", provider, "length", len(key))
			}
		}
	}

	rt := &app{cfg: cfg, logger: logger, logFile: logFile}
	if cfg.Metrics.Enabled {
		rt.collector = metrics.NewCollector()
	}
	rt.router = api.NewRouter(cfg, secrets, rt.collector, logger)

	if cfg.History.Enabled {
		rt.journal, err = history.Open(cfg.History.Path)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
	}
	return rt, nil
}

func resolveLevel(name string, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return logging.ParseLevel(name)
}

func (rt *app) close() {
	rt.router.Close()
	if rt.journal != nil {
		if err := rt.journal.Close(); err != nil {
			rt.logger.Error("failed to close history", "error", err)
		}
	}
	if rt.logFile != nil {
		_ = rt.logFile.Sync()
		_ = rt.logFile.Close()
	}
}

func (rt *app) recorder() history.Recorder {
	if rt.journal == nil {
		return history.Nop{}
	}
	return rt.journal
}

func (rt *app) playgroundOptions() playground.Options {
	return playground.Options{
		MaxSlots:           rt.cfg.Playground.MaxSlots,
		Concurrency:        rt.cfg.Playground.Concurrency,
		DefaultModel:       rt.cfg.Playground.DefaultModel,
		RemixTemplate:      rt.cfg.PromptTemplates.Remix,
		RemixSystem:        rt.cfg.PromptTemplates.RemixSystem,
		SocialPostTemplate: rt.cfg.PromptTemplates.SocialPost,
		SocialPostSystem:   rt.cfg.PromptTemplates.SocialPostSystem,
		Metrics:            rt.collector,
		History:            rt.recorder(),
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()
	cfg := rt.cfg

	addr := cfg.Server.Addr
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		addr = v
	}

	rt.logger.Info("Chorus starting",
		"version", Version,
		"config", configPath,
		"addr", addr,
		"models", len(cfg.Models),
		"history", cfg.History.Enabled,
		"metrics", cfg.Metrics.Enabled)

	conversations := conversation.NewService(rt.router,
		conversation.NewMemoryStore(cfg.Conversation.StoreCapacity),
		conversation.Options{
			DefaultModel:       cfg.Conversation.DefaultModel,
			DefaultTemperature: cfg.Conversation.DefaultTemperature,
			Metrics:            rt.collector,
			History:            rt.recorder(),
		}, rt.logger.With("component", "conversation"))

	mgr := playground.NewManager(rt.router, rt.playgroundOptions(), cfg.Playground.MaxSessions, rt.logger)

	deps := server.Deps{
		Catalog:       cfg.Catalog(),
		Conversations: conversations,
		Playground:    mgr,
		Attachments:   attachment.NewPolicy(cfg.Attachments),
		Heartbeat:     time.Duration(cfg.Server.SSEHeartbeatSeconds) * time.Second,
		Logger:        rt.logger.With("component", "http"),
	}
	if rt.journal != nil {
		deps.History = rt.journal
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.Handler()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = server.Start(ctx, server.StartOpts{
		Addr:            addr,
		ShutdownTimeout: time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second,
		Out:             cmd.OutOrStdout(),
		Deps:            deps,
	})
	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	rt.logger.Info("Chorus stopped")
	return nil
}

func listModels(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		_ = loadEnvFile(envFile)
	}
	cfg, _, err := config.Load(configPath, true)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPROVIDER\tMAX OUTPUT\tIMAGES")
	for _, m := range cfg.Catalog() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", m.ID, m.Name, cfg.Models[m.ID].Provider, m.MaxOutputTokens, m.SupportsImages)
	}
	return w.Flush()
}

func listHistory(cmd *cobra.Command, args []string) error {
	cfg, _, err := config.Load(configPath, true)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled (set history.enabled in %s)", configPath)
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	session, _ := cmd.Flags().GetString("session")
	kind, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")

	entries, err := store.List(cmd.Context(), history.ListOptions{SessionID: session, Kind: kind, Limit: limit})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No generations recorded")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tKEY\tMODEL\tSTATUS\tDURATION\tRESPONSE")
	for _, g := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			g.CreatedAt.Local().Format(time.DateTime),
			g.Kind, g.Key, g.ModelID, g.Status,
			time.Duration(g.DurationMs)*time.Millisecond,
			oneLine(g.Response, 60))
	}
	return w.Flush()
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= max {
		return s
	}
	return util.TruncateString(s, max-3)
}

// loadEnvFile sets KEY=VALUE pairs from path. Existing variables win.
func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = trimQuotes(strings.TrimSpace(value))
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return sc.Err()
}

func trimQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
