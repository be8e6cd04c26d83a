// simulate_game plays one all-AI game with every provider that has an API key and
// prints the narration, then the transcript and a prompt count per player.
package main

import (
	"context"
	"fmt"
	"log"

	"go.uber.org/zap"

	"github.com/tatianab/spyfall-agents/internal/config"
	"github.com/tatianab/spyfall-agents/internal/engine"
	"github.com/tatianab/spyfall-agents/internal/events"
	"github.com/tatianab/spyfall-agents/internal/llm"
	"github.com/tatianab/spyfall-agents/internal/models"
)

const (
	seats  = 4
	rounds = 6
)

type narrator struct{ events.Nop }

func (narrator) Log(line string) { fmt.Println(line) }
func (narrator) Warn(msg string) { fmt.Println("WARNING:", msg) }

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var providers []llm.Provider
	for _, p := range llm.Providers {
		if cfg.LLM(p).APIKey != "" {
			providers = append(providers, p)
		}
	}
	if len(providers) == 0 {
		log.Fatal("No API keys found; set at least one of OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY, GROQ_API_KEY")
	}

	game := models.GameConfig{Rounds: rounds, EarlyVoting: true, Reactions: models.ReactSometimes}
	for i := 0; i < seats; i++ {
		game.Slots = append(game.Slots, models.AISlot(string(providers[i%len(providers)]), models.ModeMemory))
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	rec := &events.Recorder{}
	eng := engine.New(engine.Options{
		Config:      game,
		Controllers: engine.NewControllerFactory(cfg.LLM, nil, logger),
		Sink:        events.Multi{narrator{}, rec},
		Logger:      logger,
	})

	fmt.Println("--- Playing ---")
	result, err := eng.Run(ctx)
	if err != nil {
		log.Fatalf("Game failed: %v", err)
	}

	fmt.Println("\n--- Transcript ---")
	for i, e := range rec.EventsOf(events.KindTurn) {
		t := e.Data.(models.Turn)
		fmt.Printf("%d. %s -> %s: %s\n   %s\n", i+1, t.AskerName, t.TargetName, t.Question, t.Answer)
	}

	fmt.Println("\n--- Prompts ---")
	sent := map[string]int{}
	for _, p := range rec.Prompts {
		if p.Direction == events.Sent {
			sent[p.Player]++
		}
	}
	for _, info := range rec.Agents {
		fmt.Printf("%s (%s, %s): %d prompts\n", info.Name, info.Provider, info.Mode, sent[info.Name])
	}

	fmt.Printf("\nWinner: %s (%s)\n", result.Winner, result.Reason)
}
