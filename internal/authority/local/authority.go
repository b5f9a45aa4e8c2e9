// Package local is an in-process move authority backed by a real rules
// engine. It is the deterministic oracle used by tests and by the offline
// CLI mode; production sessions talk to the remote service instead.
package local

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"github.com/park285/cheese-session/internal/authority"
	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/pkg/chessdto"
	"go.uber.org/zap"
)

type game struct {
	id        string
	g         *nchess.Game
	history   []domain.Move
	updatedAt time.Time
}

// Authority keeps games in memory. Restart drops every game, which is how
// tests model a remote authority that forgot its ids.
type Authority struct {
	mu     sync.Mutex
	games  map[string]*game
	logger *zap.Logger
}

var _ authority.Authority = (*Authority)(nil)

func New(logger *zap.Logger) *Authority {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authority{games: make(map[string]*game), logger: logger}
}

func (a *Authority) CreateGame(ctx context.Context) (domain.GameState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g := &game{
		id:        "g-" + uuid.NewString(),
		g:         nchess.NewGame(),
		history:   []domain.Move{},
		updatedAt: time.Now(),
	}
	a.games[g.id] = g
	a.logger.Debug("local game created", zap.String("game_id", g.id))
	return g.state(), nil
}

func (a *Authority) GetGame(ctx context.Context, gameID string) (domain.GameState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, err := a.lookup(gameID)
	if err != nil {
		return domain.GameState{}, err
	}
	return g.state(), nil
}

func (a *Authority) SubmitMove(ctx context.Context, gameID string, req authority.MoveRequest) (domain.GameState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, err := a.lookup(gameID)
	if err != nil {
		return domain.GameState{}, err
	}
	if g.g.Outcome() != nchess.NoOutcome {
		return domain.GameState{}, rejected("game already finished")
	}

	pos := g.g.Position()
	var mv *nchess.Move
	if n := strings.TrimSpace(req.Notation); n != "" {
		mv, err = nchess.AlgebraicNotation{}.Decode(pos, n)
	} else {
		mv, err = nchess.UCINotation{}.Decode(pos, strings.ToLower(req.From+req.To+req.Promotion))
	}
	if err != nil || mv == nil {
		return domain.GameState{}, rejected("illegal or malformed move " + req.String())
	}
	if err := g.apply(mv); err != nil {
		return domain.GameState{}, rejected("illegal move " + req.String())
	}
	return g.state(), nil
}

func (a *Authority) LegalMoves(ctx context.Context, gameID string) ([]domain.Move, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, err := a.lookup(gameID)
	if err != nil {
		return nil, err
	}
	return g.legalMoves(), nil
}

// AIMove plays the first legal move in coordinate order, so replies are
// reproducible across fresh games.
func (a *Authority) AIMove(ctx context.Context, gameID string) (domain.GameState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, err := a.lookup(gameID)
	if err != nil {
		return domain.GameState{}, err
	}
	if g.g.Outcome() != nchess.NoOutcome {
		return domain.GameState{}, rejected("game already finished")
	}
	legal := g.legalMoves()
	if len(legal) == 0 {
		return domain.GameState{}, rejected("no legal moves")
	}
	pick := legal[0]
	mv, err := nchess.UCINotation{}.Decode(g.g.Position(), pick.Coordinate())
	if err != nil {
		return domain.GameState{}, rejected("ai move decode failed")
	}
	if err := g.apply(mv); err != nil {
		return domain.GameState{}, rejected("ai move rejected")
	}
	return g.state(), nil
}

// Restart forgets every game.
func (a *Authority) Restart() {
	a.mu.Lock()
	a.games = make(map[string]*game)
	a.mu.Unlock()
	a.logger.Info("local authority restarted")
}

// GameCount reports how many games are live.
func (a *Authority) GameCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.games)
}

func (a *Authority) lookup(gameID string) (*game, error) {
	g, ok := a.games[strings.TrimSpace(gameID)]
	if !ok || g == nil {
		return nil, chessdto.NewError(chessdto.CodeNotFound, "remote game not found", nil)
	}
	return g, nil
}

func (g *game) apply(mv *nchess.Move) error {
	before := g.g.Position()
	if err := g.g.Move(mv, nil); err != nil {
		return err
	}
	played := lastMove(g.g)
	if played == nil {
		played = mv
	}
	coord := strings.ToLower(played.String())
	rec := domain.Move{
		From:     domain.Square(coord[0:2]),
		To:       domain.Square(coord[2:4]),
		Notation: nchess.AlgebraicNotation{}.Encode(before, played),
		Type:     kindOf(played),
	}
	if len(coord) > 4 {
		rec.Promotion = coord[4:]
	}
	g.history = append(g.history, rec)
	g.updatedAt = time.Now()
	return nil
}

func (g *game) state() domain.GameState {
	active := domain.Black
	if g.g.Position().Turn() == nchess.White {
		active = domain.White
	}
	return domain.GameState{
		ID:          g.id,
		FEN:         g.g.FEN(),
		MoveHistory: domain.CloneMoves(g.history),
		ActiveColor: active,
		Status:      statusOf(g.g),
	}
}

func (g *game) legalMoves() []domain.Move {
	var out []domain.Move
	for _, mv := range g.g.ValidMoves() {
		coord := strings.ToLower(mv.String())
		if len(coord) < 4 {
			continue
		}
		rec := domain.Move{From: domain.Square(coord[0:2]), To: domain.Square(coord[2:4]), Type: domain.KindNormal}
		if len(coord) > 4 {
			rec.Promotion = coord[4:]
			rec.Type = domain.KindPromotion
		}
		switch {
		case mv.HasTag(nchess.KingSideCastle):
			rec.Type, rec.Notation = domain.KindCastling, "O-O"
		case mv.HasTag(nchess.QueenSideCastle):
			rec.Type, rec.Notation = domain.KindCastling, "O-O-O"
		case mv.HasTag(nchess.EnPassant):
			rec.Type = domain.KindEnPassant
		case rec.Type == domain.KindNormal && mv.HasTag(nchess.Capture):
			rec.Type = domain.KindCapture
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Coordinate() < out[j].Coordinate() })
	return out
}

func kindOf(mv *nchess.Move) domain.MoveKind {
	switch {
	case mv.HasTag(nchess.KingSideCastle), mv.HasTag(nchess.QueenSideCastle):
		return domain.KindCastling
	case mv.Promo() != nchess.NoPieceType:
		return domain.KindPromotion
	case mv.HasTag(nchess.EnPassant):
		return domain.KindEnPassant
	case mv.HasTag(nchess.Capture):
		return domain.KindCapture
	default:
		return domain.KindNormal
	}
}

func statusOf(g *nchess.Game) domain.Status {
	switch g.Outcome() {
	case nchess.WhiteWon:
		return domain.StatusWhiteWon
	case nchess.BlackWon:
		return domain.StatusBlackWon
	case nchess.Draw:
		if g.Method() == nchess.Stalemate {
			return domain.StatusStalemate
		}
		return domain.StatusDraw
	default:
		return domain.StatusActive
	}
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func rejected(msg string) error {
	return chessdto.NewError(chessdto.CodeAuthorityRejected, msg, nil)
}
