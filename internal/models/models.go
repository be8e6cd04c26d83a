package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Team identifies one side of the game.
type Team string

const (
	TeamSpy       Team = "spy"
	TeamCivilians Team = "civilians"
)

// Secret is the private knowledge a player holds. Spies carry no location or role.
type Secret struct {
	Spy      bool   `yaml:"spy" json:"spy"`
	Location string `yaml:"location,omitempty" json:"location,omitempty"`
	Role     string `yaml:"role,omitempty" json:"role,omitempty"`
}

// SpySecret returns the secret handed to the spy.
func SpySecret() Secret {
	return Secret{Spy: true}
}

// CivilianSecret returns the secret handed to a civilian.
func CivilianSecret(location, role string) Secret {
	return Secret{Location: location, Role: role}
}

// Player is a participant of one game. Players never change after setup.
type Player struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	IsHuman bool   `yaml:"is_human" json:"is_human"`
	Secret  Secret `yaml:"secret" json:"secret"`
}

// IsSpy reports whether the player holds the spy secret.
func (p *Player) IsSpy() bool {
	return p.Secret.Spy
}

// LocationPack is a catalog entry: a location and the roles civilians can hold there.
type LocationPack struct {
	Location string   `yaml:"location" json:"location"`
	Roles    []string `yaml:"roles" json:"roles"`
}

// Turn is one recorded question/answer exchange.
type Turn struct {
	AskerID    string `yaml:"asker_id" json:"asker_id"`
	AskerName  string `yaml:"asker_name" json:"asker_name"`
	TargetID   string `yaml:"target_id" json:"target_id"`
	TargetName string `yaml:"target_name" json:"target_name"`
	Question   string `yaml:"question" json:"question"`
	Answer     string `yaml:"answer" json:"answer"`
}

// EarlyEndResult signals whether the question rounds were cut short.
type EarlyEndResult struct {
	Ended  bool   `json:"ended"`
	Winner Team   `json:"winner,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// NotEnded is the EarlyEndResult for "keep playing".
var NotEnded = EarlyEndResult{}

// EndedWith builds an EarlyEndResult that stops the round loop.
func EndedWith(winner Team, reason string) EarlyEndResult {
	return EarlyEndResult{Ended: true, Winner: winner, Reason: reason}
}

// Action is what an asker may choose to do once mid-game actions are unlocked.
type Action string

const (
	ActionQuestion Action = "question"
	ActionGuess    Action = "guess"
	ActionAccuse   Action = "vote"
)

// ParseAction maps free text to an Action. Anything unrecognised is a question.
func ParseAction(s string) Action {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "guess"):
		return ActionGuess
	case strings.HasPrefix(s, "vote"), strings.HasPrefix(s, "accuse"):
		return ActionAccuse
	default:
		return ActionQuestion
	}
}

// Vote is a final-phase vote for who the spy is.
type Vote struct {
	VoterID    string `yaml:"voter_id" json:"voter_id"`
	VoterName  string `yaml:"voter_name" json:"voter_name"`
	TargetID   string `yaml:"target_id" json:"target_id"`
	TargetName string `yaml:"target_name" json:"target_name"`
	Reason     string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// Accusation records one early accusation and how it went.
type Accusation struct {
	AccuserID   string `yaml:"accuser_id" json:"accuser_id"`
	AccuserName string `yaml:"accuser_name" json:"accuser_name"`
	AccusedID   string `yaml:"accused_id" json:"accused_id"`
	AccusedName string `yaml:"accused_name" json:"accused_name"`
	Reason      string `yaml:"reason,omitempty" json:"reason,omitempty"`
	Defense     string `yaml:"defense,omitempty" json:"defense,omitempty"`
	YesVotes    int    `yaml:"yes_votes" json:"yes_votes"`
	NoVotes     int    `yaml:"no_votes" json:"no_votes"`
	Threshold   int    `yaml:"threshold" json:"threshold"`
	Convicted   bool   `yaml:"convicted" json:"convicted"`
}

// GameResult is the final outcome of a game.
type GameResult struct {
	Winner          Team   `yaml:"winner" json:"winner"`
	Reason          string `yaml:"reason" json:"reason"`
	SpyID           string `yaml:"spy_id" json:"spy_id"`
	SpyName         string `yaml:"spy_name" json:"spy_name"`
	Location        string `yaml:"location" json:"location"`
	AccusedID       string `yaml:"accused_id,omitempty" json:"accused_id,omitempty"`
	SpyGuess        string `yaml:"spy_guess,omitempty" json:"spy_guess,omitempty"`
	SpyGuessCorrect *bool  `yaml:"spy_guess_correct,omitempty" json:"spy_guess_correct,omitempty"`
	Turns           int    `yaml:"turns" json:"turns"`
}

// Mode is how an AI agent keeps its conversation history.
type Mode string

const (
	ModeMemory   Mode = "memory"
	ModeStateful Mode = "stateful"
)

// ReactionFrequency controls how often bystanders react to questions and answers.
type ReactionFrequency string

const (
	ReactAlways    ReactionFrequency = "always"
	ReactFrequent  ReactionFrequency = "frequent"
	ReactSometimes ReactionFrequency = "sometimes"
	ReactRare      ReactionFrequency = "rare"
	ReactNever     ReactionFrequency = "never"
)

// Probability returns the chance a single bystander reacts to one event.
func (f ReactionFrequency) Probability() float64 {
	switch f {
	case ReactAlways:
		return 1
	case ReactFrequent:
		return 0.75
	case ReactSometimes:
		return 0.5
	case ReactRare:
		return 0.25
	default:
		return 0
	}
}

// Valid reports whether f is one of the known frequencies.
func (f ReactionFrequency) Valid() bool {
	switch f {
	case ReactAlways, ReactFrequent, ReactSometimes, ReactRare, ReactNever:
		return true
	}
	return false
}

// Slot describes one seat: either the human or an AI backed by a provider.
// In YAML and JSON a slot is the scalar "human" or a {provider, mode} mapping.
type Slot struct {
	Human    bool   `yaml:"-" json:"-"`
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`
	Mode     Mode   `yaml:"mode,omitempty" json:"mode,omitempty"`
}

// HumanSlot is the seat taken by the human player.
var HumanSlot = Slot{Human: true}

// AISlot builds an AI seat.
func AISlot(provider string, mode Mode) Slot {
	return Slot{Provider: provider, Mode: mode}
}

func (s Slot) String() string {
	if s.Human {
		return "human"
	}
	return fmt.Sprintf("%s/%s", s.Provider, s.Mode)
}

type slotFields struct {
	Provider string `yaml:"provider" json:"provider"`
	Mode     Mode   `yaml:"mode" json:"mode"`
}

func (s *Slot) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return s.fromScalar(node.Value)
	}
	var f slotFields
	if err := node.Decode(&f); err != nil {
		return err
	}
	*s = Slot{Provider: f.Provider, Mode: f.Mode}
	return nil
}

func (s Slot) MarshalYAML() (any, error) {
	if s.Human {
		return "human", nil
	}
	return slotFields{Provider: s.Provider, Mode: s.Mode}, nil
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	var scalar string
	if err := json.Unmarshal(data, &scalar); err == nil {
		return s.fromScalar(scalar)
	}
	var f slotFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = Slot{Provider: f.Provider, Mode: f.Mode}
	return nil
}

func (s Slot) MarshalJSON() ([]byte, error) {
	if s.Human {
		return json.Marshal("human")
	}
	return json.Marshal(slotFields{Provider: s.Provider, Mode: s.Mode})
}

// fromScalar accepts "human" or "provider" / "provider/mode".
func (s *Slot) fromScalar(v string) error {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return fmt.Errorf("empty slot")
	}
	if v == "human" {
		*s = HumanSlot
		return nil
	}
	provider, mode, _ := strings.Cut(v, "/")
	*s = Slot{Provider: provider, Mode: Mode(mode)}
	return nil
}

// GameConfig is resolved once at setup and stays fixed for the game.
type GameConfig struct {
	Slots       []Slot            `yaml:"slots,omitempty" json:"slots,omitempty"`
	Rounds      int               `yaml:"rounds" json:"rounds"`
	EarlyVoting bool              `yaml:"early_voting" json:"early_voting"`
	Location    string            `yaml:"location,omitempty" json:"location,omitempty"`
	Reactions   ReactionFrequency `yaml:"reactions,omitempty" json:"reactions,omitempty"`
	HumanName   string            `yaml:"human_name,omitempty" json:"human_name,omitempty"`
	Seed        uint64            `yaml:"seed,omitempty" json:"seed,omitempty"`

	// Legacy numeric form, used only when Slots is empty.
	Players         int    `yaml:"players,omitempty" json:"players,omitempty"`
	IncludeHuman    bool   `yaml:"include_human,omitempty" json:"include_human,omitempty"`
	DefaultProvider string `yaml:"default_provider,omitempty" json:"default_provider,omitempty"`
	DefaultMode     Mode   `yaml:"default_mode,omitempty" json:"default_mode,omitempty"`
}

const (
	DefaultRounds    = 6
	DefaultPlayers   = 4
	DefaultProvider  = "openai"
	DefaultHumanName = "You"
	MinPlayers       = 2
)

// WithDefaults fills unset fields.
func (c GameConfig) WithDefaults() GameConfig {
	if c.Rounds <= 0 {
		c.Rounds = DefaultRounds
	}
	if c.Reactions == "" {
		c.Reactions = ReactSometimes
	}
	if c.HumanName == "" {
		c.HumanName = DefaultHumanName
	}
	if c.DefaultProvider == "" {
		c.DefaultProvider = DefaultProvider
	}
	if c.DefaultMode == "" {
		c.DefaultMode = ModeMemory
	}
	if c.Players <= 0 {
		c.Players = DefaultPlayers
	}
	return c
}

// ResolveSlots returns the explicit slot list, or derives one from the legacy numeric fields.
// AI slots without a provider or mode inherit the defaults. At most one slot is human.
func (c GameConfig) ResolveSlots() []Slot {
	c = c.WithDefaults()
	var slots []Slot
	if len(c.Slots) > 0 {
		slots = make([]Slot, 0, len(c.Slots))
		humanSeen := false
		for _, s := range c.Slots {
			if s.Human {
				if humanSeen {
					continue
				}
				humanSeen = true
				slots = append(slots, s)
				continue
			}
			if s.Provider == "" {
				s.Provider = c.DefaultProvider
			}
			if s.Mode == "" {
				s.Mode = c.DefaultMode
			}
			slots = append(slots, s)
		}
		return slots
	}

	slots = make([]Slot, 0, c.Players)
	if c.IncludeHuman {
		slots = append(slots, HumanSlot)
	}
	for len(slots) < c.Players {
		slots = append(slots, AISlot(c.DefaultProvider, c.DefaultMode))
	}
	return slots
}

// Validate checks the parts of the config that do not need the location catalog.
func (c GameConfig) Validate() error {
	if n := len(c.ResolveSlots()); n < MinPlayers {
		return fmt.Errorf("need at least %d players, got %d", MinPlayers, n)
	}
	if c.Reactions != "" && !c.Reactions.Valid() {
		return fmt.Errorf("unknown reaction frequency %q", c.Reactions)
	}
	for _, s := range c.Slots {
		if !s.Human && s.Mode != "" && s.Mode != ModeMemory && s.Mode != ModeStateful {
			return fmt.Errorf("unknown agent mode %q", s.Mode)
		}
	}
	return nil
}

// VoteCount is one line of a final vote tally.
type VoteCount struct {
	PlayerID string `yaml:"player_id" json:"player_id"`
	Name     string `yaml:"name" json:"name"`
	Count    int    `yaml:"count" json:"count"`
}

// Tally is the result of the final vote. AccusedID is empty on a tie.
type Tally struct {
	Counts      []VoteCount `yaml:"counts" json:"counts"`
	AccusedID   string      `yaml:"accused_id,omitempty" json:"accused_id,omitempty"`
	AccusedName string      `yaml:"accused_name,omitempty" json:"accused_name,omitempty"`
	IsTie       bool        `yaml:"is_tie" json:"is_tie"`
}
