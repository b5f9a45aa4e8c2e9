// Package session is the single entry point UI layers talk to. A Session
// owns the working copy of one game, rebuilds it on the authority when
// needed and persists it through the snapshot store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-session/internal/archive"
	"github.com/park285/cheese-session/internal/authority"
	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/internal/msgcat"
	"github.com/park285/cheese-session/internal/replay"
	"github.com/park285/cheese-session/internal/snapshot"
	"github.com/park285/cheese-session/internal/undo"
	"github.com/park285/cheese-session/pkg/chessdto"
	"go.uber.org/zap"
)

var ErrDisposed = errors.New("session disposed")

// Deps are the collaborators of a session. Archive and Catalog are optional.
type Deps struct {
	Authority authority.Authority
	Store     *snapshot.Store
	Archive   archive.Repository
	Catalog   *msgcat.Catalog
	Logger    *zap.Logger
	Clock     func() time.Time
}

type Options struct {
	ID       string
	Settings *domain.Settings
	// White and Black override the player labels derived from the mode.
	White string
	Black string
}

type state struct {
	gameID      string
	fen         string
	history     []domain.Move
	status      domain.Status
	active      domain.Color
	settings    domain.Settings
	orientation domain.Color
	whiteTime   int
	blackTime   int
	white       string
	black       string
	startedAt   time.Time
	updatedAt   time.Time
	replays     int
	rebuilds    int
	// seq numbers the games of this session; it keys the archive row.
	seq        int64
	archived   bool
	aiThinking bool
}

func (st state) clone() state {
	st.history = domain.CloneMoves(st.history)
	return st
}

type Session struct {
	id       string
	auth     authority.Authority
	replayer *replay.Engine
	undo     *undo.Controller
	store    *snapshot.Store
	archive  archive.Repository
	catalog  *msgcat.Catalog
	logger   *zap.Logger
	now      func() time.Time
	names    [2]string
	games    atomic.Int64

	mu        sync.Mutex
	busy      bool
	disposed  bool
	cur       state
	observers map[int]func(chessdto.Projection)
	nextObs   int
}

func New(deps Deps, opts Options) (*Session, error) {
	switch {
	case deps.Authority == nil:
		return nil, fmt.Errorf("session: authority not configured")
	case deps.Store == nil:
		return nil, fmt.Errorf("session: snapshot store not configured")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	catalog := deps.Catalog
	if catalog == nil {
		catalog = msgcat.MustDefault()
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	settings := domain.DefaultSettings()
	if opts.Settings != nil {
		settings = normalizeSettings(*opts.Settings)
	}

	rp := replay.New(deps.Authority, logger)
	s := &Session{
		id:        id,
		auth:      deps.Authority,
		replayer:  rp,
		undo:      undo.NewController(rp, logger),
		store:     deps.Store,
		archive:   deps.Archive,
		catalog:   catalog,
		logger:    logger.With(zap.String("session_id", id)),
		now:       now,
		names:     [2]string{opts.White, opts.Black},
		observers: make(map[int]func(chessdto.Projection)),
	}
	s.cur = s.blankState(settings)
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) blankState(settings domain.Settings) state {
	white, black := s.playerNames(settings)
	ts := s.now()
	return state{
		history:     []domain.Move{},
		status:      domain.StatusActive,
		active:      domain.White,
		settings:    settings,
		orientation: settings.PlayerColor,
		white:       white,
		black:       black,
		startedAt:   ts,
		updatedAt:   ts,
		seq:         s.games.Add(1),
	}
}

func (s *Session) playerNames(settings domain.Settings) (string, string) {
	white, black := "White", "Black"
	if settings.Mode == domain.HumanVsAI {
		white, black = "Player", "AI"
		if settings.PlayerColor == domain.Black {
			white, black = "AI", "Player"
		}
	}
	if s.names[0] != "" {
		white = s.names[0]
	}
	if s.names[1] != "" {
		black = s.names[1]
	}
	return white, black
}

func normalizeSettings(in domain.Settings) domain.Settings {
	def := domain.DefaultSettings()
	if m := domain.ParseMode(string(in.Mode)); m != "" {
		in.Mode = m
	} else {
		in.Mode = def.Mode
	}
	if c := domain.ParseColor(string(in.PlayerColor)); c != "" {
		in.PlayerColor = c
	} else {
		in.PlayerColor = def.PlayerColor
	}
	if in.TimerMode == "" {
		in.TimerMode = def.TimerMode
	}
	return in
}

// begin claims the busy flag for a multi-step operation.
func (s *Session) begin() (state, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return state{}, ErrDisposed
	}
	if s.busy {
		return state{}, chessdto.NewError(chessdto.CodeBusy, "another operation is in progress", nil)
	}
	s.busy = true
	return s.cur.clone(), nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// commit installs next as the working copy and notifies observers.
func (s *Session) commit(next state) chessdto.Projection {
	next.updatedAt = s.now()
	s.mu.Lock()
	s.cur = next.clone()
	proj := s.projectLocked()
	obs := make([]func(chessdto.Projection), 0, len(s.observers))
	for _, fn := range s.observers {
		obs = append(obs, fn)
	}
	s.mu.Unlock()

	for _, fn := range obs {
		fn(proj)
	}
	return proj
}

// Projection returns the current view without touching the authority.
func (s *Session) Projection() chessdto.Projection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectLocked()
}

// Subscribe registers fn for every committed projection. The returned
// func removes it.
func (s *Session) Subscribe(fn func(chessdto.Projection)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || fn == nil {
		return func() {}
	}
	s.nextObs++
	id := s.nextObs
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Dispose drops observers; later operations return ErrDisposed.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.observers = make(map[int]func(chessdto.Projection))
}

func (s *Session) snapshotOf(st state) domain.Snapshot {
	return domain.Snapshot{
		GameID:           st.gameID,
		MoveHistory:      domain.CloneMoves(st.history),
		Status:           st.status,
		ActiveColor:      st.active,
		WhiteTimeSeconds: st.whiteTime,
		BlackTimeSeconds: st.blackTime,
		Orientation:      st.orientation,
		FEN:              st.fen,
		Settings:         st.settings,
	}
}

// autosave never fails the operation that triggered it.
func (s *Session) autosave(ctx context.Context, st state) {
	if _, err := s.store.Autosave(ctx, s.snapshotOf(st)); err != nil {
		s.logger.Warn("autosave_failed", zap.Int("plies", len(st.history)), zap.Error(err))
	}
}

// archiveIfFinished writes a terminal game once. Failures are only logged.
func (s *Session) archiveIfFinished(ctx context.Context, st *state) {
	if s.archive == nil || st.archived || !st.status.Terminal() {
		return
	}
	rec := archive.Record(fmt.Sprintf("%s/%d", s.id, st.seq), st.gameID, st.settings.Mode, st.white, st.black, st.status,
		st.history, s.exportText(*st), st.startedAt, s.now(), st.replays)
	if _, err := s.archive.Insert(ctx, rec); err != nil && !errors.Is(err, archive.ErrDuplicateGame) {
		s.logger.Warn("archive_failed", zap.String("game_id", st.gameID), zap.Error(err))
		return
	}
	st.archived = true
	s.logger.Info("game_archived", zap.String("game_id", st.gameID), zap.String("result", rec.Result))
}

// adopt folds a replay result into st.
func adopt(st state, res replay.Result) state {
	st.gameID = res.GameID
	st.fen = res.State.FEN
	st.history = domain.CloneMoves(res.History)
	st.status = res.State.Status
	st.active = res.State.ActiveColor
	if !st.active.Valid() {
		st.active = domain.ActiveColorAfter(len(st.history))
	}
	st.replays++
	st.archived = false
	return st
}

// applyRemote folds an accepted move into st.
func applyRemote(st state, mv domain.Move, gs domain.GameState) state {
	if len(gs.MoveHistory) == len(st.history)+1 {
		st.history = domain.CloneMoves(gs.MoveHistory)
		if st.history[len(st.history)-1].Notation == "" {
			st.history[len(st.history)-1].Notation = mv.Notation
		}
	} else {
		st.history = append(st.history, mv)
	}
	st.gameID = gs.ID
	st.fen = gs.FEN
	st.status = gs.Status
	st.active = gs.ActiveColor
	if !st.active.Valid() {
		st.active = domain.ActiveColorAfter(len(st.history))
	}
	return st
}
