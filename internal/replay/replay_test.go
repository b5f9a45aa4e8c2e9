package replay

import (
	"context"
	"testing"

	"github.com/park285/cheese-session/internal/authority"
	"github.com/park285/cheese-session/internal/authority/local"
	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/pkg/chessdto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coords(list ...string) []domain.Move {
	out := make([]domain.Move, 0, len(list))
	for _, c := range list {
		mv := domain.Move{From: domain.Square(c[0:2]), To: domain.Square(c[2:4])}
		if len(c) > 4 {
			mv.Promotion = c[4:]
		}
		out = append(out, mv)
	}
	return out
}

func TestReplayEmptyCreatesFreshGame(t *testing.T) {
	auth := local.New(nil)
	res, err := New(auth, nil).Replay(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.GameID)
	assert.Equal(t, 0, res.CompletedCount)
	assert.Equal(t, -1, res.FailedAt)
	assert.True(t, res.Complete())
	assert.Empty(t, res.History)
	assert.Equal(t, 1, auth.GameCount())
}

func TestReplayIdempotentAcrossFreshGames(t *testing.T) {
	auth := local.New(nil)
	eng := New(auth, nil)
	moves := coords("e2e4", "e7e5", "g1f3", "b8c6", "f1b5", "a7a6")

	first, err := eng.Replay(context.Background(), moves, nil)
	require.NoError(t, err)
	second, err := eng.Replay(context.Background(), moves, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.GameID, second.GameID)
	assert.Equal(t, len(first.State.MoveHistory), len(second.State.MoveHistory))
	assert.Equal(t, first.State.Status, second.State.Status)
	assert.Equal(t, first.State.FEN, second.State.FEN)
	assert.Equal(t, 6, second.CompletedCount)
}

func TestReplayStopsAtRejectedMove(t *testing.T) {
	auth := local.New(nil)
	moves := coords("e2e4", "e7e5", "e2e4", "g1f3")

	var seen []int
	res, err := New(auth, nil).Replay(context.Background(), moves, func(s Step) {
		seen = append(seen, s.Index)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, chessdto.ErrAuthorityRejected)
	assert.Equal(t, 2, res.CompletedCount)
	assert.Equal(t, 2, res.FailedAt)
	assert.False(t, res.Complete())
	assert.Equal(t, []int{0, 1}, seen)

	var de *chessdto.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 2, de.FailedAt)

	remote, err := auth.GetGame(context.Background(), res.GameID)
	require.NoError(t, err)
	assert.Len(t, remote.MoveHistory, 2)
}

func TestReplayCastlingUsesNotation(t *testing.T) {
	auth := local.New(nil)
	moves := coords("e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "f8c5")
	moves = append(moves, domain.Move{From: "e1", To: "g1", Notation: "O-O", Type: domain.KindCastling})

	res, err := New(auth, nil).Replay(context.Background(), moves, nil)
	require.NoError(t, err)
	require.Len(t, res.History, 7)
	assert.Equal(t, domain.KindCastling, res.History[6].Type)
	assert.Equal(t, domain.White, domain.ColorOfPly(6))
	assert.Equal(t, domain.Black, res.State.ActiveColor)
}

func TestReplayPicksUpAuthorityNotation(t *testing.T) {
	auth := local.New(nil)
	res, err := New(auth, nil).Replay(context.Background(), coords("e2e4", "e7e5", "g1f3"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Nf3", res.History[2].Notation)
}

func TestReplayMissingPromotionIsValidation(t *testing.T) {
	auth := local.New(nil)
	moves := coords("e2e4")
	moves = append(moves, domain.Move{From: "a7", To: "a8", Type: domain.KindPromotion})

	res, err := New(auth, nil).Replay(context.Background(), moves, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, chessdto.ErrValidation)
	assert.Equal(t, 1, res.CompletedCount)
	assert.Equal(t, 1, res.FailedAt)
}

func TestSubmissionFor(t *testing.T) {
	req, err := SubmissionFor(domain.Move{From: "e1", To: "c1", Type: domain.KindCastling})
	require.NoError(t, err)
	assert.Equal(t, authority.MoveRequest{Notation: "O-O-O"}, req)

	req, err = SubmissionFor(domain.Move{From: "b7", To: "b8", Promotion: "n", Type: domain.KindPromotion})
	require.NoError(t, err)
	assert.Equal(t, authority.MoveRequest{From: "b7", To: "b8", Promotion: "n"}, req)

	// no auto-queen on a bare back-rank pawn move
	req, err = SubmissionFor(domain.Move{From: "b7", To: "b8"})
	require.NoError(t, err)
	assert.Empty(t, req.Promotion)

	_, err = SubmissionFor(domain.Move{From: "z9", To: "e4"})
	assert.ErrorIs(t, err, chessdto.ErrValidation)
}

func TestReplayAfterAuthorityRestart(t *testing.T) {
	auth := local.New(nil)
	eng := New(auth, nil)
	moves := coords("d2d4", "d7d5")

	before, err := eng.Replay(context.Background(), moves, nil)
	require.NoError(t, err)
	auth.Restart()

	_, err = auth.GetGame(context.Background(), before.GameID)
	require.ErrorIs(t, err, chessdto.ErrNotFound)

	after, err := eng.Replay(context.Background(), moves, nil)
	require.NoError(t, err)
	assert.Equal(t, before.State.FEN, after.State.FEN)
}
