package domain

import (
	"strings"
)

// Square is a file+rank pair such as "e4".
type Square string

func IsValidSquare(s string) bool {
	if len(s) != 2 {
		return false
	}
	return s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

// Rank returns the rank digit (1-8), or 0 for a malformed square.
func (s Square) Rank() int {
	if !IsValidSquare(string(s)) {
		return 0
	}
	return int(s[1] - '0')
}

type MoveKind string

const (
	KindNormal    MoveKind = "normal"
	KindCapture   MoveKind = "capture"
	KindCastling  MoveKind = "castling"
	KindPromotion MoveKind = "promotion"
	KindEnPassant MoveKind = "en_passant"
)

// Move is one ply as recorded at original-move time. Notation is the
// authority's rendering (usually SAN) and is required for castling replays.
type Move struct {
	From      Square   `json:"from"`
	To        Square   `json:"to"`
	Promotion string   `json:"promotion,omitempty"`
	Notation  string   `json:"notation,omitempty"`
	Type      MoveKind `json:"type,omitempty"`
}

// Coordinate renders the move as <from><to>[promo].
func (m Move) Coordinate() string {
	return strings.ToLower(string(m.From) + string(m.To) + m.Promotion)
}

func (m Move) IsCastling() bool {
	return m.Type == KindCastling
}

// Key identifies the move by its coordinates; notation and kind are ignored.
func (m Move) Key() string {
	return m.Coordinate()
}

// CoordinatesOf projects a history onto from/to/promotion only.
func CoordinatesOf(history []Move) []Move {
	out := make([]Move, len(history))
	for i, mv := range history {
		out[i] = Move{From: mv.From, To: mv.To, Promotion: strings.ToLower(mv.Promotion)}
	}
	return out
}

// CloneMoves returns a copy safe to hand across component boundaries.
func CloneMoves(history []Move) []Move {
	if history == nil {
		return []Move{}
	}
	return append([]Move(nil), history...)
}

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opponent() Color {
	if c == Black {
		return White
	}
	return Black
}

func (c Color) Valid() bool { return c == White || c == Black }

// ParseColor accepts "white"/"w"/"black"/"b"; anything else yields "".
func ParseColor(raw string) Color {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "white", "w":
		return White
	case "black", "b":
		return Black
	default:
		return ""
	}
}

// ColorOfPly returns the side that played ply i (0-based).
func ColorOfPly(i int) Color {
	if i%2 == 0 {
		return White
	}
	return Black
}

// ActiveColorAfter returns the side to move once n plies have been played.
func ActiveColorAfter(n int) Color {
	return ColorOfPly(n)
}

type Mode string

const (
	HumanVsHuman Mode = "human_vs_human"
	HumanVsAI    Mode = "human_vs_ai"
)

func ParseMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "human_vs_human", "hvh", "pvp", "local":
		return HumanVsHuman
	case "human_vs_ai", "hva", "ai", "pve", "":
		return HumanVsAI
	default:
		return ""
	}
}
