package title

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Title is an in-game role that can be granted to a player by the kingdom's king.
type Title string

const (
	Justice   Title = "Justice"
	Duke      Title = "Duke"
	Architect Title = "Architect"
	Scientist Title = "Scientist"
)

var ErrUnknownTitle = errors.New("unknown title")

// All returns every assignable title, in the order they appear in the title dialog.
func All() []Title {
	return []Title{Justice, Duke, Architect, Scientist}
}

// Parse matches a title name case-insensitively.
func Parse(s string) (Title, error) {
	s = strings.TrimSpace(s)
	for _, t := range All() {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownTitle, s)
}

// DefaultDuration is how long a holder keeps the title when neither the kingdom
// nor the config overrides it.
func (t Title) DefaultDuration() time.Duration {
	switch t {
	case Duke, Scientist:
		return 200 * time.Second
	case Justice, Architect:
		return 300 * time.Second
	}

	return 300 * time.Second
}

// Buff is the short description shown by the titles command.
func (t Title) Buff() string {
	switch t {
	case Justice:
		return "+5% troop attack, +5% troop defense"
	case Duke:
		return "+10% troop defense, +20% troop capacity"
	case Architect:
		return "+10% building speed, +10% tech research speed"
	case Scientist:
		return "+10% research speed, -10% research cost"
	}

	return ""
}

func (t Title) Valid() bool {
	_, err := Parse(string(t))
	return err == nil
}
