package domain

import "time"

// Settings travel inside a snapshot so a restored session keeps its rules.
type Settings struct {
	EnableUndo  bool   `json:"enableUndo"`
	Mode        Mode   `json:"mode"`
	PlayerColor Color  `json:"playerColor"`
	TimerMode   string `json:"timerMode"`
}

func DefaultSettings() Settings {
	return Settings{
		EnableUndo:  true,
		Mode:        HumanVsAI,
		PlayerColor: White,
		TimerMode:   "none",
	}
}

// Snapshot is a self-sufficient record of a session. MoveHistory is the only
// field trusted for reconstruction; GameID and FEN are cache hints.
type Snapshot struct {
	GameID           string    `json:"gameId"`
	MoveHistory      []Move    `json:"moveHistory"`
	Status           Status    `json:"status"`
	ActiveColor      Color     `json:"activeColor"`
	WhiteTimeSeconds int       `json:"whiteTimeSeconds"`
	BlackTimeSeconds int       `json:"blackTimeSeconds"`
	Orientation      Color     `json:"orientation"`
	FEN              string    `json:"fen,omitempty"`
	SavedAt          time.Time `json:"savedAt"`
	Settings         Settings  `json:"settings"`
}

// DefaultSnapshot is the record every stored blob is merged over.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		MoveHistory: []Move{},
		Status:      StatusActive,
		ActiveColor: White,
		Orientation: White,
		Settings:    DefaultSettings(),
	}
}

func (s Snapshot) Empty() bool {
	return len(s.MoveHistory) == 0
}

func (s Snapshot) Clone() Snapshot {
	out := s
	out.MoveHistory = CloneMoves(s.MoveHistory)
	return out
}

// GameState is the authority's view of a remote game after boundary
// normalization.
type GameState struct {
	ID          string `json:"id"`
	FEN         string `json:"fen"`
	MoveHistory []Move `json:"move_history"`
	ActiveColor Color  `json:"active_color"`
	Status      Status `json:"status"`
}
