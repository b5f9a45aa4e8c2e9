// Package authority is the boundary to the external move authority: the
// service that owns legality, game state and AI replies. Everything that
// crosses this boundary is normalized into domain types here.
package authority

import (
	"context"

	"github.com/park285/cheese-session/internal/domain"
)

// MoveRequest is the submit-move body. Either Notation or From/To is set.
type MoveRequest struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
	Notation  string `json:"notation,omitempty"`
}

func (r MoveRequest) String() string {
	if r.Notation != "" {
		return r.Notation
	}
	return r.From + r.To + r.Promotion
}

// Authority is the capability the rest of the module depends on.
// Errors are *chessdto.DomainError with codes authority_rejected,
// authority_unreachable or not_found.
type Authority interface {
	CreateGame(ctx context.Context) (domain.GameState, error)
	SubmitMove(ctx context.Context, gameID string, req MoveRequest) (domain.GameState, error)
	GetGame(ctx context.Context, gameID string) (domain.GameState, error)
	LegalMoves(ctx context.Context, gameID string) ([]domain.Move, error)
	AIMove(ctx context.Context, gameID string) (domain.GameState, error)
}
