package authority_test

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/park285/cheese-session/internal/authority"
	"github.com/park285/cheese-session/internal/authority/local"
	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/pkg/chessdto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newTestClient(t *testing.T) (*authority.Client, *local.Authority) {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	backend := local.New(nil)
	srv := &fasthttp.Server{Handler: authority.NewHandler(backend, nil)}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		_ = srv.Shutdown()
		_ = ln.Close()
	})
	c := authority.NewClient("http://authority.test",
		authority.WithDialer(func(string) (net.Conn, error) { return ln.Dial() }),
		authority.WithRetry(1),
	)
	return c, backend
}

func TestClientCreateSubmitGet(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	st, err := c.CreateGame(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, st.ID)
	assert.Equal(t, domain.StatusActive, st.Status)
	assert.Equal(t, domain.White, st.ActiveColor)
	assert.Empty(t, st.MoveHistory)

	st, err = c.SubmitMove(ctx, st.ID, authority.MoveRequest{From: "e2", To: "e4"})
	require.NoError(t, err)
	require.Len(t, st.MoveHistory, 1)
	assert.Equal(t, domain.Square("e2"), st.MoveHistory[0].From)
	assert.Equal(t, "e4", st.MoveHistory[0].Notation)
	assert.Equal(t, domain.Black, st.ActiveColor)

	got, err := c.GetGame(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, st.FEN, got.FEN)
	assert.Len(t, got.MoveHistory, 1)
}

func TestClientRejectedMove(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	st, err := c.CreateGame(ctx)
	require.NoError(t, err)

	_, err = c.SubmitMove(ctx, st.ID, authority.MoveRequest{From: "e2", To: "e5"})
	require.Error(t, err)
	assert.True(t, authority.IsRejected(err))
	var de *chessdto.DomainError
	require.True(t, errors.As(err, &de))
	assert.False(t, de.Retryable)
}

func TestClientUnknownGameIsNotFound(t *testing.T) {
	c, backend := newTestClient(t)
	ctx := context.Background()

	st, err := c.CreateGame(ctx)
	require.NoError(t, err)
	backend.Restart()

	_, err = c.GetGame(ctx, st.ID)
	assert.ErrorIs(t, err, chessdto.ErrNotFound)
	_, err = c.SubmitMove(ctx, st.ID, authority.MoveRequest{From: "e2", To: "e4"})
	assert.ErrorIs(t, err, chessdto.ErrNotFound)
}

func TestClientLegalMovesAndAIMove(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	st, err := c.CreateGame(ctx)
	require.NoError(t, err)
	legal, err := c.LegalMoves(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, legal, 20)

	st, err = c.SubmitMove(ctx, st.ID, authority.MoveRequest{From: "e2", To: "e4"})
	require.NoError(t, err)
	st, err = c.AIMove(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, st.MoveHistory, 2)
	assert.Equal(t, domain.White, st.ActiveColor)
}

func TestClientUnreachable(t *testing.T) {
	c := authority.NewClient("http://authority.test",
		authority.WithDialer(func(string) (net.Conn, error) { return nil, errors.New("connection refused") }),
		authority.WithRetry(1),
	)
	_, err := c.CreateGame(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, chessdto.ErrAuthorityUnreachable)
}

func TestClientCancelledContext(t *testing.T) {
	c, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.CreateGame(ctx)
	assert.ErrorIs(t, err, chessdto.ErrAuthorityUnreachable)
}
