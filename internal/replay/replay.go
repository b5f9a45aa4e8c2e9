// Package replay rebuilds a session on a fresh remote game by resubmitting
// its recorded history one ply at a time.
package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/park285/cheese-session/internal/authority"
	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/internal/metrics"
	"github.com/park285/cheese-session/pkg/chessdto"
	"go.uber.org/zap"
)

// Step is reported after each accepted ply.
type Step struct {
	Index int
	Move  domain.Move
	State domain.GameState
}

type Observer func(Step)

// Result describes how far a replay got. FailedAt is -1 when every move was
// accepted.
type Result struct {
	GameID         string
	State          domain.GameState
	History        []domain.Move
	CompletedCount int
	FailedAt       int
	Err            error
}

func (r Result) Complete() bool { return r.Err == nil && r.FailedAt < 0 }

type Engine struct {
	authority authority.Authority
	logger    *zap.Logger
}

func New(a authority.Authority, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{authority: a, logger: logger}
}

// Replay creates a new remote game and submits moves strictly in order.
// It stops at the first failure; nothing is retried. An empty move list
// still yields a fresh game.
func (e *Engine) Replay(ctx context.Context, moves []domain.Move, observer Observer) (Result, error) {
	started := time.Now()
	res := Result{FailedAt: -1, History: []domain.Move{}}

	state, err := e.authority.CreateGame(ctx)
	if err != nil {
		res.Err = err
		metrics.ObserveReplay(outcomeOf(err), 0, time.Since(started))
		e.logger.Warn("replay_create_failed", zap.Error(err))
		return res, err
	}
	res.GameID = state.ID
	res.State = state

	for i, mv := range moves {
		req, err := SubmissionFor(mv)
		if err == nil {
			state, err = e.authority.SubmitMove(ctx, res.GameID, req)
		}
		if err != nil {
			res.FailedAt = i
			res.Err = annotate(err, i)
			metrics.ObserveReplay(outcomeOf(err), res.CompletedCount, time.Since(started))
			e.logger.Warn("replay_stopped",
				zap.String("game_id", res.GameID),
				zap.Int("completed", res.CompletedCount),
				zap.Int("failed_at", i),
				zap.String("move", req.String()),
				zap.Error(err),
			)
			return res, res.Err
		}
		res.State = state
		res.CompletedCount = i + 1
		res.History = mergeHistory(moves[:i+1], state.MoveHistory)
		if observer != nil {
			observer(Step{Index: i, Move: res.History[i], State: state})
		}
	}

	metrics.ObserveReplay("ok", res.CompletedCount, time.Since(started))
	e.logger.Debug("replay_done",
		zap.String("game_id", res.GameID),
		zap.Int("completed", res.CompletedCount),
	)
	return res, nil
}

// SubmissionFor picks how a recorded move is sent to the authority.
// Castling goes by notation; everything else by coordinates with exactly
// the recorded promotion piece.
func SubmissionFor(mv domain.Move) (authority.MoveRequest, error) {
	if mv.IsCastling() {
		notation := mv.Notation
		if notation == "" {
			notation = castlingNotation(mv)
		}
		if notation == "" {
			return authority.MoveRequest{}, chessdto.NewError(chessdto.CodeValidation, "castling move without notation", nil)
		}
		return authority.MoveRequest{Notation: notation}, nil
	}
	if !domain.IsValidSquare(string(mv.From)) || !domain.IsValidSquare(string(mv.To)) {
		return authority.MoveRequest{}, chessdto.NewError(chessdto.CodeValidation, fmt.Sprintf("malformed move %q", mv.Coordinate()), nil)
	}
	if mv.Type == domain.KindPromotion && mv.Promotion == "" {
		return authority.MoveRequest{}, chessdto.NewError(chessdto.CodeValidation, fmt.Sprintf("promotion piece missing for %s", mv.Coordinate()), nil)
	}
	return authority.MoveRequest{From: string(mv.From), To: string(mv.To), Promotion: mv.Promotion}, nil
}

func castlingNotation(mv domain.Move) string {
	if !domain.IsValidSquare(string(mv.To)) {
		return ""
	}
	switch mv.To[0] {
	case 'g':
		return "O-O"
	case 'c':
		return "O-O-O"
	}
	return ""
}

// mergeHistory prefers the authority's record when it covers the same plies,
// so imported coordinate moves pick up kind and notation.
func mergeHistory(submitted, remote []domain.Move) []domain.Move {
	if len(remote) != len(submitted) {
		return domain.CloneMoves(submitted)
	}
	out := make([]domain.Move, len(remote))
	for i, r := range remote {
		if r.Key() != submitted[i].Key() && !submitted[i].IsCastling() {
			return domain.CloneMoves(submitted)
		}
		out[i] = r
		if out[i].Notation == "" {
			out[i].Notation = submitted[i].Notation
		}
	}
	return out
}

func annotate(err error, ply int) error {
	var de *chessdto.DomainError
	if errors.As(err, &de) {
		return de.AtPly(ply)
	}
	return chessdto.NewError(chessdto.CodeAuthorityUnreachable, "replay failed", err).AtPly(ply)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, chessdto.ErrAuthorityRejected):
		return "rejected"
	case errors.Is(err, chessdto.ErrAuthorityUnreachable):
		return "unreachable"
	case errors.Is(err, chessdto.ErrValidation):
		return "validation"
	case errors.Is(err, chessdto.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
