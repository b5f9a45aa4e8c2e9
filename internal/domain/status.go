package domain

import "strings"

// Status is the canonical game status used everywhere inside the core.
// Authority spellings are translated by NormalizeStatus at the boundary.
type Status string

const (
	StatusActive    Status = "active"
	StatusWhiteWon  Status = "white_won"
	StatusBlackWon  Status = "black_won"
	StatusDraw      Status = "draw"
	StatusStalemate Status = "stalemate"
	StatusUnknown   Status = "unknown"
)

var statusAliases = map[string]Status{
	"active":          StatusActive,
	"in_progress":     StatusActive,
	"inprogress":      StatusActive,
	"ongoing":         StatusActive,
	"playing":         StatusActive,
	"check":           StatusActive,
	"white_won":       StatusWhiteWon,
	"white_wins":      StatusWhiteWon,
	"white":           StatusWhiteWon,
	"checkmate_white": StatusWhiteWon,
	"1-0":             StatusWhiteWon,
	"black_won":       StatusBlackWon,
	"black_wins":      StatusBlackWon,
	"black":           StatusBlackWon,
	"checkmate_black": StatusBlackWon,
	"0-1":             StatusBlackWon,
	"draw":            StatusDraw,
	"drawn":           StatusDraw,
	"1/2-1/2":         StatusDraw,
	"stalemate":       StatusStalemate,
}

func NormalizeStatus(raw string) Status {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, " ", "_")
	if st, ok := statusAliases[key]; ok {
		return st
	}
	return StatusUnknown
}

// Terminal reports whether no further moves are expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusWhiteWon, StatusBlackWon, StatusDraw, StatusStalemate:
		return true
	default:
		return false
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusWhiteWon, StatusBlackWon, StatusDraw, StatusStalemate, StatusUnknown:
		return true
	default:
		return false
	}
}
