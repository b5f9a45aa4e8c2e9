// Package undo decides how many plies an undo removes and rebuilds the
// remaining prefix on a fresh game.
package undo

import (
	"context"
	"sync"

	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/internal/metrics"
	"github.com/park285/cheese-session/internal/replay"
	"github.com/park285/cheese-session/pkg/chessdto"
	"go.uber.org/zap"
)

type Replayer interface {
	Replay(ctx context.Context, moves []domain.Move, observer replay.Observer) (replay.Result, error)
}

// Input is the session state an undo decision depends on.
type Input struct {
	Mode        domain.Mode
	ActiveColor domain.Color
	HumanColor  domain.Color
	EnableUndo  bool
}

type Plan struct {
	PopCount  int
	Keep      []domain.Move
	FreshGame bool
}

// PopCount is 1 between two humans. Against the AI it removes the AI reply
// together with the human move, unless the AI has not replied yet.
func PopCount(mode domain.Mode, active, human domain.Color) int {
	if mode == domain.HumanVsHuman {
		return 1
	}
	if !human.Valid() {
		human = domain.White
	}
	if active == human {
		return 2
	}
	return 1
}

func MakePlan(history []domain.Move, in Input) Plan {
	n := PopCount(in.Mode, in.ActiveColor, in.HumanColor)
	if len(history) < n {
		return Plan{PopCount: n, Keep: []domain.Move{}, FreshGame: true}
	}
	return Plan{PopCount: n, Keep: domain.CloneMoves(history[:len(history)-n])}
}

type Controller struct {
	replayer Replayer
	logger   *zap.Logger

	mu       sync.Mutex
	thinking bool
}

func NewController(r Replayer, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{replayer: r, logger: logger}
}

// BeginAIMove takes the AI-thinking lock. It fails with Busy when the lock
// is already held.
func (c *Controller) BeginAIMove() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.thinking {
		return chessdto.NewError(chessdto.CodeBusy, "ai move already in progress", nil)
	}
	c.thinking = true
	return nil
}

func (c *Controller) EndAIMove() {
	c.mu.Lock()
	c.thinking = false
	c.mu.Unlock()
}

func (c *Controller) AIThinking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thinking
}

// Undo replays the kept prefix. The caller's state is only replaced on
// success; a failed replay leaves it untouched.
func (c *Controller) Undo(ctx context.Context, history []domain.Move, in Input) (Plan, replay.Result, error) {
	if !in.EnableUndo {
		metrics.ObserveUndo("disabled")
		return Plan{}, replay.Result{FailedAt: -1}, chessdto.NewError(chessdto.CodeValidation, "undo disabled", nil)
	}
	if c.AIThinking() {
		metrics.ObserveUndo("busy")
		return Plan{}, replay.Result{FailedAt: -1}, chessdto.NewError(chessdto.CodeBusy, "ai is thinking", nil)
	}

	plan := MakePlan(history, in)
	res, err := c.replayer.Replay(ctx, plan.Keep, nil)
	if err != nil {
		metrics.ObserveUndo("error")
		c.logger.Warn("undo_replay_failed",
			zap.Int("pop", plan.PopCount),
			zap.Int("keep", len(plan.Keep)),
			zap.Int("failed_at", res.FailedAt),
			zap.Error(err),
		)
		return plan, res, err
	}
	if plan.FreshGame {
		metrics.ObserveUndo("fresh")
	} else {
		metrics.ObserveUndo("ok")
	}
	c.logger.Debug("undo_done",
		zap.String("game_id", res.GameID),
		zap.Int("pop", plan.PopCount),
		zap.Int("keep", len(plan.Keep)),
	)
	return plan, res, nil
}
