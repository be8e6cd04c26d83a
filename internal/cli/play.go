package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/tatianab/spyfall-agents/internal/controller"
	"github.com/tatianab/spyfall-agents/internal/engine"
	"github.com/tatianab/spyfall-agents/internal/events"
	"github.com/tatianab/spyfall-agents/internal/models"
	"github.com/tatianab/spyfall-agents/internal/tui"
)

type playFlags struct {
	rounds      int
	players     int
	human       bool
	earlyVoting bool
	location    string
	reactions   string
	seed        uint64
	provider    string
	mode        string
	humanName   string
	plain       bool
}

func (a *app) playCmd() *cobra.Command {
	f := &playFlags{}
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play one game in the terminal",
		Long: `Plays one game. With a human seat the game runs in a full-screen console UI
unless --plain is given, in which case prompts are read line by line from stdin.
Games without a human print the narration as they go.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.play(cmd, f)
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func (f *playFlags) register(fl *pflag.FlagSet) {
	fl.IntVarP(&f.rounds, "rounds", "r", 0, "Number of question turns")
	fl.IntVarP(&f.players, "players", "n", 0, "Number of players, including the human")
	fl.BoolVar(&f.human, "human", false, "Take a seat yourself")
	fl.BoolVar(&f.earlyVoting, "early-voting", false, "Allow accusations once half the turns are played")
	fl.StringVar(&f.location, "location", "", "Fix the location instead of drawing one")
	fl.StringVar(&f.reactions, "reactions", "", "Reaction frequency: always, frequent, sometimes, rare, never")
	fl.Uint64Var(&f.seed, "seed", 0, "Random seed for a reproducible setup")
	fl.StringVar(&f.provider, "provider", "", "Provider for every AI seat: openai, anthropic, gemini, groq")
	fl.StringVar(&f.mode, "mode", "", "Agent memory mode: memory or stateful")
	fl.StringVar(&f.humanName, "name", "", "Your name at the table")
	fl.BoolVar(&f.plain, "plain", false, "Line-based input and output instead of the console UI")
}

func usesPlainOutput(cmd *cobra.Command) bool {
	plain, _ := cmd.Flags().GetBool("plain")
	return plain
}

// applyFlags overrides game settings with the flags that were set. Seat flags switch
// the game to the numeric seating form.
func applyFlags(cmd *cobra.Command, f *playFlags, game models.GameConfig) models.GameConfig {
	fl := cmd.Flags()
	if fl.Changed("rounds") {
		game.Rounds = f.rounds
	}
	if fl.Changed("early-voting") {
		game.EarlyVoting = f.earlyVoting
	}
	if fl.Changed("location") {
		game.Location = f.location
	}
	if fl.Changed("reactions") {
		game.Reactions = models.ReactionFrequency(f.reactions)
	}
	if fl.Changed("seed") {
		game.Seed = f.seed
	}
	if fl.Changed("name") {
		game.HumanName = f.humanName
	}
	if fl.Changed("players") || fl.Changed("human") || fl.Changed("provider") || fl.Changed("mode") {
		if len(game.Slots) > 0 {
			game.Players = len(game.ResolveSlots())
			game.IncludeHuman = hasHuman(game)
			game.Slots = nil
		}
		if fl.Changed("players") {
			game.Players = f.players
		}
		if fl.Changed("human") {
			game.IncludeHuman = f.human
		}
		if fl.Changed("provider") {
			game.DefaultProvider = f.provider
		}
		if fl.Changed("mode") {
			game.DefaultMode = models.Mode(f.mode)
		}
	}
	return game.WithDefaults()
}

func hasHuman(game models.GameConfig) bool {
	for _, s := range game.ResolveSlots() {
		if s.Human {
			return true
		}
	}
	return false
}

func (a *app) play(cmd *cobra.Command, f *playFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	game := applyFlags(cmd, f, a.cfg.Game)
	if err := game.Validate(); err != nil {
		return err
	}
	if err := a.cfg.CheckKeys(game); err != nil {
		return err
	}

	catalog, err := a.catalog()
	if err != nil {
		return err
	}
	recorder, closeRecorder, err := a.recorder(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeRecorder(); err != nil {
			a.logger.Warn("closing analytics", zap.Error(err))
		}
	}()

	run := func(ctx context.Context, sink events.Sink, human controller.InputChannel) (*models.GameResult, error) {
		eng := engine.New(engine.Options{
			Config:      game,
			Catalog:     catalog,
			Controllers: engine.NewControllerFactory(a.cfg.LLM, human, a.logger),
			Sink:        sink,
			Recorder:    recorder,
			Logger:      a.logger,
		})
		return eng.Run(ctx)
	}

	var result *models.GameResult
	if hasHuman(game) && !f.plain {
		result, err = tui.Run(ctx, run, events.NewLogSink(a.logger))
	} else {
		sink := events.Multi{printSink{out: out}, events.NewLogSink(a.logger)}
		result, err = run(ctx, sink, controller.NewConsoleInput(cmd.InOrStdin(), out))
	}
	if err != nil {
		return err
	}
	printResult(out, result)
	return nil
}

// printSink writes narration to the terminal.
type printSink struct {
	events.Nop
	out io.Writer
}

func (p printSink) Log(line string) { fmt.Fprintln(p.out, line) }
func (p printSink) Warn(msg string) { fmt.Fprintln(p.out, "warning: "+msg) }

func printResult(out io.Writer, r *models.GameResult) {
	if r == nil {
		return
	}
	fmt.Fprintf(out, "\nWinner: %s\n%s\nLocation: %s, spy: %s\n", r.Winner, r.Reason, r.Location, r.SpyName)
}
