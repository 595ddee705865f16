package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lamim/chorus/internal/playground"
	"github.com/lamim/chorus/internal/util"
	"github.com/lamim/chorus/pkg/models"
)

func newAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send one prompt to several models and print every answer",
		Long: `Send a prompt to each selected model and print the answers in slot order.

Select models with --model id[:count]; repeat the flag for more models.
Use --remix <model> to synthesize the finished answers into one response.`,
		Example: `  chorus ask "Explain CRDTs" --model gpt-4o-mini:2 --model gemini-2.0-flash
  chorus ask "Name a color" -m gpt-4o-mini -m gemini-2.0-flash --remix gpt-4o-mini`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}
	cmd.Flags().StringArrayP("model", "m", nil, "Model to query as id[:count] (repeatable)")
	cmd.Flags().String("remix", "", "Remix the finished answers with this model")
	cmd.Flags().Bool("show-thinking", false, "Print model reasoning before each answer")
	return cmd
}

// parseSelection reads "id" or "id:count"
func parseSelection(s string) (models.ModelSelection, error) {
	id, count, found := strings.Cut(strings.TrimSpace(s), ":")
	sel := models.ModelSelection{ModelID: id, Count: 1}
	if found {
		n, err := strconv.Atoi(count)
		if err != nil || n < 1 {
			return sel, fmt.Errorf("invalid count in %q: must be a positive integer", s)
		}
		sel.Count = n
	}
	if sel.ModelID == "" {
		return sel, fmt.Errorf("invalid model %q", s)
	}
	return sel, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	flags, _ := cmd.Flags().GetStringArray("model")
	remixModel, _ := cmd.Flags().GetString("remix")
	showThinking, _ := cmd.Flags().GetBool("show-thinking")

	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()

	var selections []models.ModelSelection
	for _, f := range flags {
		sel, err := parseSelection(f)
		if err != nil {
			return err
		}
		selections = append(selections, sel)
	}
	if len(selections) == 0 {
		if rt.cfg.Playground.DefaultModel == "" {
			return fmt.Errorf("no --model given and playground.default_model is not set")
		}
		selections = []models.ModelSelection{{ModelID: rt.cfg.Playground.DefaultModel, Count: 1}}
	}
	for _, sel := range selections {
		if _, ok := rt.cfg.Models[sel.ModelID]; !ok {
			return fmt.Errorf("unknown model %q (see `chorus models`)", sel.ModelID)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := playground.NewManager(rt.router, rt.playgroundOptions(), 1, rt.logger)
	defer mgr.CloseAll()
	session, err := mgr.Create()
	if err != nil {
		return err
	}

	updates, unsubscribe := session.Subscribe()
	defer unsubscribe()

	run, err := session.Submit(strings.Join(args, " "), nil, selections)
	if err != nil {
		return err
	}

	snap := session.Snapshot()
	bar := progressbar.Default(int64(len(snap.Slots)), "Generating")
	if err := track(ctx, run, updates, session, bar); err != nil {
		return err
	}
	_ = bar.Finish()

	out := cmd.OutOrStdout()
	snap = session.Snapshot()
	for _, slot := range snap.Slots {
		st := snap.States[slot.Key]
		printAnswer(out, fmt.Sprintf("[%s] %s (%s)", slot.Key, slot.ModelID, st.Phase), st.Accumulated, showThinking)
	}

	if remixModel == "" {
		return nil
	}
	if _, ok := rt.cfg.Models[remixModel]; !ok {
		return fmt.Errorf("unknown remix model %q", remixModel)
	}
	remixRun, err := session.Remix(remixModel)
	if err != nil {
		return fmt.Errorf("remix failed: %w", err)
	}
	if err := remixRun.Wait(ctx); err != nil {
		return err
	}
	snap = session.Snapshot()
	if n := len(snap.Remix.Responses); n > 0 {
		printAnswer(out, "[remix] "+snap.Remix.Models[n-1], snap.Remix.Responses[n-1], showThinking)
	}
	return nil
}

// track advances bar as slots settle until run is done
func track(ctx context.Context, run *playground.Run, updates <-chan struct{}, s *playground.Session, bar *progressbar.ProgressBar) error {
	settled := func() int {
		n := 0
		for _, st := range s.Snapshot().States {
			if st.Phase == playground.PhaseDone || st.Phase == playground.PhaseErrored {
				n++
			}
		}
		return n
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-run.Done():
			_ = bar.Set(settled())
			return nil
		case <-updates:
			_ = bar.Set(settled())
		}
	}
}

// printAnswer writes one answer; with showThinking the reasoning is printed in its own section
func printAnswer(w io.Writer, header, text string, showThinking bool) {
	if showThinking && util.ContainsThinkTags(text) {
		thinking, answer := util.SplitThinkAndAnswer(text)
		fmt.Fprintf(w, "\n=== %s ===\n--- thinking ---\n%s\n--- answer ---\n%s\n", header, thinking, answer)
		return
	}
	fmt.Fprintf(w, "\n=== %s ===\n%s\n", header, util.StripThinkTags(text))
}
