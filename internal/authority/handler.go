package authority

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/park285/cheese-session/pkg/chessdto"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// NewHandler exposes any Authority over the REST contract the Client speaks.
// It backs the offline dev server and the client tests.
func NewHandler(a Authority, logger *zap.Logger) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{authority: a, logger: logger, timeout: 30 * time.Second}
	return h.serve
}

type handler struct {
	authority Authority
	logger    *zap.Logger
	timeout   time.Duration
}

func (h *handler) serve(rc *fasthttp.RequestCtx) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	path := strings.Trim(string(rc.Path()), "/")
	parts := strings.Split(path, "/")
	method := string(rc.Method())

	if len(parts) == 0 || parts[0] != "games" {
		writeError(rc, fasthttp.StatusNotFound, "unknown route")
		return
	}

	switch {
	case len(parts) == 1 && method == fasthttp.MethodPost:
		st, err := h.authority.CreateGame(ctx)
		h.respond(rc, fromDomainState(st), err)
	case len(parts) == 2 && method == fasthttp.MethodGet:
		st, err := h.authority.GetGame(ctx, unescape(parts[1]))
		h.respond(rc, fromDomainState(st), err)
	case len(parts) == 3 && parts[2] == "moves" && method == fasthttp.MethodPost:
		var req MoveRequest
		if err := json.Unmarshal(rc.PostBody(), &req); err != nil {
			writeError(rc, fasthttp.StatusBadRequest, "malformed move body")
			return
		}
		st, err := h.authority.SubmitMove(ctx, unescape(parts[1]), req)
		h.respond(rc, fromDomainState(st), err)
	case len(parts) == 3 && parts[2] == "legal-moves" && method == fasthttp.MethodGet:
		moves, err := h.authority.LegalMoves(ctx, unescape(parts[1]))
		out := make([]wireMove, 0, len(moves))
		for _, mv := range moves {
			out = append(out, fromDomainMove(mv))
		}
		h.respond(rc, out, err)
	case len(parts) == 3 && parts[2] == "ai-move" && method == fasthttp.MethodPost:
		st, err := h.authority.AIMove(ctx, unescape(parts[1]))
		h.respond(rc, fromDomainState(st), err)
	default:
		writeError(rc, fasthttp.StatusNotFound, "unknown route")
	}
}

func (h *handler) respond(rc *fasthttp.RequestCtx, body any, err error) {
	if err != nil {
		status := statusFor(err)
		if status >= 500 {
			h.logger.Warn("authority handler error", zap.ByteString("path", rc.Path()), zap.Error(err))
		}
		writeError(rc, status, err.Error())
		return
	}
	raw, mErr := json.Marshal(body)
	if mErr != nil {
		writeError(rc, fasthttp.StatusInternalServerError, "encode response")
		return
	}
	rc.SetContentType("application/json")
	rc.SetStatusCode(fasthttp.StatusOK)
	rc.SetBody(raw)
}

func statusFor(err error) int {
	var de *chessdto.DomainError
	if !errors.As(err, &de) {
		return fasthttp.StatusInternalServerError
	}
	switch de.Code {
	case chessdto.CodeAuthorityRejected:
		return fasthttp.StatusUnprocessableEntity
	case chessdto.CodeValidation:
		return fasthttp.StatusBadRequest
	case chessdto.CodeNotFound:
		return fasthttp.StatusNotFound
	case chessdto.CodeBusy:
		return fasthttp.StatusServiceUnavailable
	default:
		return fasthttp.StatusBadGateway
	}
}

func writeError(rc *fasthttp.RequestCtx, status int, msg string) {
	raw, _ := json.Marshal(wireError{Error: msg})
	rc.SetContentType("application/json")
	rc.SetStatusCode(status)
	rc.SetBody(raw)
}

func unescape(s string) string {
	if v, err := url.PathUnescape(s); err == nil {
		return v
	}
	return s
}
