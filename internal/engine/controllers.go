package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tatianab/spyfall-agents/internal/agent"
	"github.com/tatianab/spyfall-agents/internal/controller"
	"github.com/tatianab/spyfall-agents/internal/llm"
	"github.com/tatianab/spyfall-agents/internal/models"
)

var ErrNoHumanInput = errors.New("game has a human seat but no input channel")

// ProviderSettings returns client settings for a provider.
type ProviderSettings func(llm.Provider) llm.Config

// NewControllerFactory builds humans on the given input channel and AI players on
// fresh provider clients, one client per seat.
func NewControllerFactory(settings ProviderSettings, human controller.InputChannel, logger *zap.Logger) ControllerFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, p *models.Player, slot models.Slot, t Table) (controller.Controller, error) {
		if p.IsHuman {
			if human == nil {
				return nil, ErrNoHumanInput
			}
			return controller.NewHuman(p, human), nil
		}

		provider := llm.Provider(slot.Provider)
		cfg := settings(provider)
		cfg.Provider = provider
		client, err := llm.New(ctx, cfg)
		if err != nil {
			return nil, err
		}

		system, err := controller.SystemPrompt(p, t.Players, t.Locations)
		if err != nil {
			client.Close()
			return nil, err
		}
		a := agent.New(agent.Options{
			Name:         p.Name,
			Provider:     provider,
			Mode:         slot.Mode,
			SystemPrompt: system,
			Client:       client,
			Sink:         t.Sink,
			Logger:       logger,
		})
		return controller.NewAI(p, a, logger), nil
	}
}
