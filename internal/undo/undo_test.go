package undo

import (
	"context"
	"errors"
	"testing"

	"github.com/park285/cheese-session/internal/authority/local"
	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/internal/replay"
	"github.com/park285/cheese-session/pkg/chessdto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moves(list ...string) []domain.Move {
	out := make([]domain.Move, 0, len(list))
	for _, c := range list {
		out = append(out, domain.Move{From: domain.Square(c[0:2]), To: domain.Square(c[2:4])})
	}
	return out
}

func TestPopCount(t *testing.T) {
	cases := []struct {
		name   string
		mode   domain.Mode
		active domain.Color
		human  domain.Color
		want   int
	}{
		{"hvh white", domain.HumanVsHuman, domain.White, domain.White, 1},
		{"hvh black", domain.HumanVsHuman, domain.Black, domain.White, 1},
		{"hva human turn", domain.HumanVsAI, domain.White, domain.White, 2},
		{"hva ai turn", domain.HumanVsAI, domain.Black, domain.White, 1},
		{"hva human black", domain.HumanVsAI, domain.Black, domain.Black, 2},
		{"hva default human", domain.HumanVsAI, domain.White, "", 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PopCount(tc.mode, tc.active, tc.human))
		})
	}
}

func TestMakePlanShortHistory(t *testing.T) {
	plan := MakePlan(moves("e2e4"), Input{Mode: domain.HumanVsAI, ActiveColor: domain.White, HumanColor: domain.White})
	assert.Equal(t, 2, plan.PopCount)
	assert.True(t, plan.FreshGame)
	assert.Empty(t, plan.Keep)
}

func TestUndoHumanVsAI(t *testing.T) {
	auth := local.New(nil)
	c := NewController(replay.New(auth, nil), nil)
	history := moves("e2e4", "e7e5", "g1f3", "b8c6")

	plan, res, err := c.Undo(context.Background(), history, Input{
		Mode: domain.HumanVsAI, ActiveColor: domain.White, HumanColor: domain.White, EnableUndo: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, plan.PopCount)
	assert.Equal(t, 2, res.CompletedCount)
	assert.Equal(t, domain.White, res.State.ActiveColor)
	assert.Len(t, history, 4, "input history must not be mutated")
}

func TestUndoHumanVsHuman(t *testing.T) {
	auth := local.New(nil)
	c := NewController(replay.New(auth, nil), nil)

	_, res, err := c.Undo(context.Background(), moves("e2e4", "e7e5", "g1f3"), Input{
		Mode: domain.HumanVsHuman, ActiveColor: domain.Black, EnableUndo: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.CompletedCount)
}

func TestUndoBusyWhileAIThinking(t *testing.T) {
	auth := local.New(nil)
	c := NewController(replay.New(auth, nil), nil)
	require.NoError(t, c.BeginAIMove())

	err := c.BeginAIMove()
	assert.ErrorIs(t, err, chessdto.ErrBusy)

	_, _, err = c.Undo(context.Background(), moves("e2e4"), Input{Mode: domain.HumanVsAI, EnableUndo: true})
	assert.ErrorIs(t, err, chessdto.ErrBusy)
	assert.Equal(t, 0, auth.GameCount())

	c.EndAIMove()
	assert.False(t, c.AIThinking())
	_, _, err = c.Undo(context.Background(), moves("e2e4"), Input{Mode: domain.HumanVsAI, ActiveColor: domain.Black, EnableUndo: true})
	assert.NoError(t, err)
}

func TestUndoDisabled(t *testing.T) {
	c := NewController(replay.New(local.New(nil), nil), nil)
	_, _, err := c.Undo(context.Background(), moves("e2e4"), Input{Mode: domain.HumanVsHuman})
	assert.ErrorIs(t, err, chessdto.ErrValidation)
}

type failingReplayer struct{ err error }

func (f failingReplayer) Replay(ctx context.Context, m []domain.Move, o replay.Observer) (replay.Result, error) {
	return replay.Result{FailedAt: 0, Err: f.err}, f.err
}

func TestUndoPropagatesReplayFailure(t *testing.T) {
	boom := chessdto.NewError(chessdto.CodeAuthorityUnreachable, "down", errors.New("dial"))
	c := NewController(failingReplayer{err: boom}, nil)
	_, res, err := c.Undo(context.Background(), moves("e2e4", "e7e5"), Input{Mode: domain.HumanVsHuman, EnableUndo: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, chessdto.ErrAuthorityUnreachable)
	assert.Equal(t, 0, res.FailedAt)
}
