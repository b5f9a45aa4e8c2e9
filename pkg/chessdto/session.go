package chessdto

import "time"

// MoveView is one ply as shown by move lists.
type MoveView struct {
	Ply        int    `json:"ply"`
	Color      string `json:"color"`
	From       string `json:"from"`
	To         string `json:"to"`
	Promotion  string `json:"promotion,omitempty"`
	Notation   string `json:"notation,omitempty"`
	Coordinate string `json:"coordinate"`
	Castling   bool   `json:"castling,omitempty"`
}

// Projection is the read-only session view handed to UI layers after
// every successful operation.
type Projection struct {
	SessionID        string     `json:"sessionId"`
	GameID           string     `json:"gameId"`
	FEN              string     `json:"fen,omitempty"`
	Moves            []MoveView `json:"moves"`
	MoveCount        int        `json:"moveCount"`
	Status           string     `json:"status"`
	ActiveColor      string     `json:"activeColor"`
	Orientation      string     `json:"orientation"`
	Mode             string     `json:"mode"`
	WhiteTimeSeconds int        `json:"whiteTimeSeconds"`
	BlackTimeSeconds int        `json:"blackTimeSeconds"`
	Transcript       string     `json:"transcript"`
	AIThinking       bool       `json:"aiThinking"`
	// Rebuilds counts how often the remote game was lost and replayed.
	Rebuilds   int       `json:"rebuilds"`
	EnableUndo bool      `json:"enableUndo"`
	White      string    `json:"white"`
	Black      string    `json:"black"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// SlotView summarizes a save slot for pickers.
type SlotView struct {
	Slot      int       `json:"slot"`
	Autosave  bool      `json:"autosave,omitempty"`
	Empty     bool      `json:"empty"`
	MoveCount int       `json:"moveCount"`
	Status    string    `json:"status,omitempty"`
	SavedAt   time.Time `json:"savedAt,omitempty"`
}
