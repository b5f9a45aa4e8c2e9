// Package archive stores finished games together with their transcript.
package archive

import (
	"context"
	"errors"
	"time"

	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/internal/transcript"
)

var (
	ErrDuplicateGame = errors.New("archived game already exists")
	ErrGameNotFound  = errors.New("archived game not found")
)

type Repository interface {
	Insert(ctx context.Context, game *domain.ArchivedGame) (int64, error)
	Recent(ctx context.Context, limit int) ([]*domain.ArchivedGame, error)
	Get(ctx context.Context, id int64) (*domain.ArchivedGame, error)
	Close() error
}

const defaultRecentLimit = 10

// Record builds the archive row for a finished history.
func Record(sessionID, gameID string, mode domain.Mode, white, black string, status domain.Status,
	history []domain.Move, text string, startedAt, endedAt time.Time, replays int) *domain.ArchivedGame {
	coords := make([]string, 0, len(history))
	sans := make([]string, 0, len(history))
	for _, mv := range history {
		coords = append(coords, mv.Coordinate())
		if mv.Notation != "" {
			sans = append(sans, mv.Notation)
		} else {
			sans = append(sans, mv.Coordinate())
		}
	}
	duration := endedAt.Sub(startedAt)
	if duration < 0 {
		duration = 0
	}
	return &domain.ArchivedGame{
		SessionID:   sessionID,
		GameID:      gameID,
		Mode:        mode,
		White:       white,
		Black:       black,
		Result:      transcript.ResultToken(status),
		Status:      status,
		MovesCoord:  coords,
		MovesSAN:    sans,
		Transcript:  text,
		StartedAt:   startedAt,
		EndedAt:     endedAt,
		Duration:    duration,
		ReplayCount: replays,
	}
}
