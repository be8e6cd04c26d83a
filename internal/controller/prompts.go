package controller

import (
	"bytes"
	"embed"
	"strings"
	"text/template"

	"github.com/tatianab/spyfall-agents/internal/models"
)

//go:embed prompts/*.txt
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.txt"))

type promptData struct {
	Name       string
	Players    string
	Spy        bool
	Location   string
	Role       string
	Locations  string
	Transcript []models.Turn

	Targets  string
	Asker    string
	Question string
	Event    string
	Accuser  string
	Accused  string
	Reason   string
	Defense  string

	Final     bool
	CanGuess  bool
	CanAccuse bool
}

func render(name string, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// SystemPrompt is the standing instruction for an AI player: rules, roster and its secret.
func SystemPrompt(self *models.Player, players []*models.Player, locations []string) (string, error) {
	return render("system.txt", promptData{
		Name:      self.Name,
		Players:   names(players),
		Spy:       self.IsSpy(),
		Location:  self.Secret.Location,
		Role:      self.Secret.Role,
		Locations: strings.Join(locations, ", "),
	})
}
