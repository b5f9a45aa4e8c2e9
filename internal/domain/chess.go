package domain

import "time"

// ArchivedGame is a finished session as written to the archive.
type ArchivedGame struct {
	ID          int64
	SessionID   string
	GameID      string
	Mode        Mode
	White       string
	Black       string
	Result      string
	Status      Status
	MovesCoord  []string
	MovesSAN    []string
	Transcript  string
	StartedAt   time.Time
	EndedAt     time.Time
	Duration    time.Duration
	ReplayCount int
}
