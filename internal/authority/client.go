package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/pkg/chessdto"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

// Client talks to the move authority over its REST contract.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

var _ Authority = (*Client)(nil)

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

// WithRetry bounds attempts for idempotent reads. Moves are never retried.
func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDialer replaces the transport dialer; tests use an in-memory listener.
func WithDialer(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		logger:         zap.NewNop(),
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateGame(ctx context.Context) (domain.GameState, error) {
	var out wireGameState
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games", struct{}{}, &out, false); err != nil {
		return domain.GameState{}, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return domain.GameState{}, chessdto.NewError(chessdto.CodeAuthorityUnreachable, "authority created a game without id", nil)
	}
	return out.toDomain(), nil
}

func (c *Client) SubmitMove(ctx context.Context, gameID string, req MoveRequest) (domain.GameState, error) {
	var out wireGameState
	if err := c.doJSON(ctx, fasthttp.MethodPost, gamePath(gameID, "moves"), req, &out, false); err != nil {
		return domain.GameState{}, err
	}
	return out.toDomain(), nil
}

func (c *Client) GetGame(ctx context.Context, gameID string) (domain.GameState, error) {
	var out wireGameState
	if err := c.doJSON(ctx, fasthttp.MethodGet, gamePath(gameID, ""), nil, &out, true); err != nil {
		return domain.GameState{}, err
	}
	return out.toDomain(), nil
}

func (c *Client) LegalMoves(ctx context.Context, gameID string) ([]domain.Move, error) {
	var out []wireMove
	if err := c.doJSON(ctx, fasthttp.MethodGet, gamePath(gameID, "legal-moves"), nil, &out, true); err != nil {
		return nil, err
	}
	moves := make([]domain.Move, 0, len(out))
	for _, mv := range out {
		moves = append(moves, mv.toDomain())
	}
	return moves, nil
}

func (c *Client) AIMove(ctx context.Context, gameID string) (domain.GameState, error) {
	var out wireGameState
	if err := c.doJSON(ctx, fasthttp.MethodPost, gamePath(gameID, "ai-move"), struct{}{}, &out, false); err != nil {
		return domain.GameState{}, err
	}
	return out.toDomain(), nil
}

func gamePath(gameID, suffix string) string {
	p := "/games/" + url.PathEscape(strings.TrimSpace(gameID))
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	if err := ctx.Err(); err != nil {
		return chessdto.NewError(chessdto.CodeAuthorityUnreachable, "request cancelled", err)
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return chessdto.NewError(chessdto.CodeValidation, "encode authority request", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		if err := c.http.DoDeadline(req, resp, deadline); err != nil {
			lastErr = chessdto.NewError(chessdto.CodeAuthorityUnreachable, "authority request failed", err)
			if attempt == attempts {
				break
			}
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				break
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			lastErr = classifyStatus(status, resp.Body())
			if attempt == attempts || !shouldRetryStatus(status) {
				break
			}
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				break
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return chessdto.NewError(chessdto.CodeNotFound, "malformed authority response", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = chessdto.NewError(chessdto.CodeAuthorityUnreachable, "unknown authority error", nil)
	}
	c.logger.Debug("authority request failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Error(lastErr),
	)
	return lastErr
}

func classifyStatus(status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	var we wireError
	if json.Unmarshal(body, &we) == nil {
		if we.Error != "" {
			detail = we.Error
		} else if we.Message != "" {
			detail = we.Message
		}
	}
	cause := fmt.Errorf("status=%d body=%s", status, truncate(detail, 512))
	switch status {
	case fasthttp.StatusBadRequest, fasthttp.StatusConflict, fasthttp.StatusUnprocessableEntity:
		return chessdto.NewError(chessdto.CodeAuthorityRejected, "move rejected by authority", cause)
	case fasthttp.StatusNotFound, fasthttp.StatusGone:
		return chessdto.NewError(chessdto.CodeNotFound, "remote game not found", cause)
	default:
		return chessdto.NewError(chessdto.CodeAuthorityUnreachable, "unexpected authority status", cause)
	}
}

// IsRejected reports whether err is an authority rejection of a move.
func IsRejected(err error) bool {
	return errors.Is(err, chessdto.ErrAuthorityRejected)
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
