package snapshot

import (
	"strings"

	"github.com/park285/cheese-session/internal/domain"
)

// Prefs are the player's defaults for a new game.
type Prefs struct {
	PlayerName  string       `json:"playerName"`
	PlayerColor domain.Color `json:"playerColor"`
	TimerMode   string       `json:"timerMode"`
	Mode        domain.Mode  `json:"mode"`
	EnableUndo  bool         `json:"enableUndo"`
}

func DefaultPrefs() Prefs {
	s := domain.DefaultSettings()
	return Prefs{
		PlayerName:  "Player",
		PlayerColor: s.PlayerColor,
		TimerMode:   s.TimerMode,
		Mode:        s.Mode,
		EnableUndo:  s.EnableUndo,
	}
}

// Settings projects prefs onto the per-game settings record.
func (p Prefs) Settings() domain.Settings {
	return domain.Settings{
		EnableUndo:  p.EnableUndo,
		Mode:        p.Mode,
		PlayerColor: p.PlayerColor,
		TimerMode:   p.TimerMode,
	}
}

func normalizePrefs(p Prefs) Prefs {
	def := DefaultPrefs()
	p.PlayerName = strings.TrimSpace(p.PlayerName)
	if p.PlayerName == "" {
		p.PlayerName = def.PlayerName
	}
	if c := domain.ParseColor(string(p.PlayerColor)); c != "" {
		p.PlayerColor = c
	} else {
		p.PlayerColor = def.PlayerColor
	}
	if m := domain.ParseMode(string(p.Mode)); m != "" {
		p.Mode = m
	} else {
		p.Mode = def.Mode
	}
	if strings.TrimSpace(p.TimerMode) == "" {
		p.TimerMode = def.TimerMode
	}
	return p
}
