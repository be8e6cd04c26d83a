// Package parse turns free-form model output into game values.
//
// Nothing here returns an error: absence is the empty string or a fallback
// choice, and callers decide what a missing value means.
package parse

import (
	"strings"

	"github.com/tatianab/spyfall-agents/internal/models"
	"github.com/tatianab/spyfall-agents/internal/rng"
)

// Normalize trims and lowercases s.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseField returns the trimmed value after the first line that starts with "<key>:",
// compared case-insensitively. Only the first colon delimits, so values may contain colons.
func ParseField(key, text string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= len(key) || line[len(key)] != ':' {
			continue
		}
		if strings.EqualFold(line[:len(key)], key) {
			return strings.TrimSpace(line[len(key)+1:])
		}
	}
	return ""
}

// MatchExact returns the player whose normalized name equals the normalized query,
// skipping excludeID. It returns nil when nothing matches.
func MatchExact(players []*models.Player, raw, excludeID string) *models.Player {
	q := Normalize(raw)
	if q == "" {
		return nil
	}
	for _, p := range players {
		if p.ID == excludeID {
			continue
		}
		if Normalize(p.Name) == q {
			return p
		}
	}
	return nil
}

// ResolveTargetPlayer maps a free-text name to a legal target.
// Legal targets exclude selfID and, when non-empty, lastAskerID. Resolution tries an
// exact normalized match, then a substring match in either direction (longest name wins),
// then a random legal player. If no legal player exists it picks anyone but self.
// It never returns nil for a list of two or more players.
func ResolveTargetPlayer(players []*models.Player, raw, selfID, lastAskerID string, src *rng.Source) *models.Player {
	legal := make([]*models.Player, 0, len(players))
	for _, p := range players {
		if p.ID == selfID || (lastAskerID != "" && p.ID == lastAskerID) {
			continue
		}
		legal = append(legal, p)
	}

	q := Normalize(raw)
	if q != "" {
		for _, p := range legal {
			if Normalize(p.Name) == q {
				return p
			}
		}

		var best *models.Player
		for _, p := range legal {
			name := Normalize(p.Name)
			if name == "" || !(strings.Contains(q, name) || strings.Contains(name, q)) {
				continue
			}
			if best == nil || len(name) > len(Normalize(best.Name)) {
				best = p
			}
		}
		if best != nil {
			return best
		}
	}

	if len(legal) > 0 {
		return rng.Pick(src, legal)
	}

	others := make([]*models.Player, 0, len(players))
	for _, p := range players {
		if p.ID != selfID {
			others = append(others, p)
		}
	}
	if len(others) == 0 {
		return nil
	}
	return rng.Pick(src, others)
}

// ParseYesNo reads a yes/no decision. Anything that does not start with "yes" or "y" is no.
func ParseYesNo(s string) bool {
	s = Normalize(strings.Trim(strings.TrimSpace(s), "*.!\"'"))
	return s == "y" || strings.HasPrefix(s, "yes")
}

// NormalizeLocation normalizes a location name for the spy's guess comparison.
// Beyond Normalize it drops surrounding quotes or emphasis, trailing punctuation and a
// leading article, so "the CASINO." and "Casino" compare equal.
func NormalizeLocation(s string) string {
	s = Normalize(strings.Trim(strings.TrimSpace(s), "*_\"'`.!?"))
	for _, article := range []string{"the ", "a ", "an "} {
		if rest, ok := strings.CutPrefix(s, article); ok {
			s = strings.TrimSpace(rest)
			break
		}
	}
	return s
}
