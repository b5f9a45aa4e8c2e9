package session

import (
	"context"
	"errors"

	"github.com/park285/cheese-session/internal/authority"
	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/internal/replay"
	"github.com/park285/cheese-session/internal/transcript"
	"github.com/park285/cheese-session/internal/undo"
	"github.com/park285/cheese-session/pkg/chessdto"
	"go.uber.org/zap"
)

func validation(msg string, cause error) error {
	return chessdto.NewError(chessdto.CodeValidation, msg, cause)
}

// NewGame starts a fresh remote game. A nil settings keeps the current
// ones. When the AI plays white it moves immediately.
func (s *Session) NewGame(ctx context.Context, settings *domain.Settings) (chessdto.Projection, error) {
	st, err := s.begin()
	if err != nil {
		return s.Projection(), err
	}
	defer s.end()

	next := st.settings
	if settings != nil {
		next = normalizeSettings(*settings)
	}
	res, err := s.replayer.Replay(ctx, nil, nil)
	if err != nil {
		return s.Projection(), err
	}
	fresh := adopt(s.blankState(next), res)
	fresh.replays = 0
	if err := s.store.ClearAutosave(ctx); err != nil {
		s.logger.Warn("autosave_clear_failed", zap.Error(err))
	}
	proj := s.commit(fresh)
	s.logger.Info("new_game", zap.String("game_id", fresh.gameID), zap.String("mode", string(next.Mode)))

	if s.aiToMove(fresh) {
		return s.aiReply(ctx, fresh)
	}
	return proj, nil
}

// ApplyMove submits a human move. In HumanVsAI mode the AI reply follows
// under the AI-thinking lock. When the reply fails the accepted human move
// is kept and the error is returned alongside the new view.
func (s *Session) ApplyMove(ctx context.Context, mv domain.Move) (chessdto.Projection, error) {
	st, err := s.begin()
	if err != nil {
		return s.Projection(), err
	}
	defer s.end()

	if st.status.Terminal() {
		return s.Projection(), validation("game is over", nil)
	}
	if s.aiToMove(st) {
		return s.Projection(), validation("waiting for the AI move", nil)
	}
	req, err := liveSubmission(mv)
	if err != nil {
		return s.Projection(), err
	}

	var gs domain.GameState
	st, err = s.withGame(ctx, st, func(gameID string) error {
		var e error
		gs, e = s.auth.SubmitMove(ctx, gameID, req)
		return e
	})
	if err != nil {
		s.logger.Info("move_rejected", zap.String("move", req.String()), zap.Error(err))
		if st.gameID != s.Projection().GameID {
			// the remote game was rebuilt even though the move failed
			s.commit(st)
		}
		return s.Projection(), err
	}

	st = applyRemote(st, mv, gs)
	s.archiveIfFinished(ctx, &st)
	s.autosave(ctx, st)
	proj := s.commit(st)
	s.logger.Debug("move_applied", zap.String("game_id", st.gameID), zap.Int("ply", len(st.history)-1))

	if s.aiToMove(st) {
		return s.aiReply(ctx, st)
	}
	return proj, nil
}

// RequestAIMove asks for the AI reply again, e.g. after a failed attempt.
func (s *Session) RequestAIMove(ctx context.Context) (chessdto.Projection, error) {
	st, err := s.begin()
	if err != nil {
		return s.Projection(), err
	}
	defer s.end()
	if !s.aiToMove(st) {
		return s.Projection(), validation("it is not the AI's turn", nil)
	}
	return s.aiReply(ctx, st)
}

func (s *Session) aiToMove(st state) bool {
	return st.settings.Mode == domain.HumanVsAI &&
		!st.status.Terminal() &&
		st.active != st.settings.PlayerColor
}

func (s *Session) aiReply(ctx context.Context, st state) (chessdto.Projection, error) {
	if err := s.undo.BeginAIMove(); err != nil {
		return s.Projection(), err
	}
	defer s.undo.EndAIMove()

	st.aiThinking = true
	s.commit(st)

	var gs domain.GameState
	st, err := s.withGame(ctx, st, func(gameID string) error {
		var e error
		gs, e = s.auth.AIMove(ctx, gameID)
		return e
	})
	st.aiThinking = false
	if err == nil && len(gs.MoveHistory) != len(st.history)+1 {
		err = chessdto.NewError(chessdto.CodeAuthorityUnreachable, "unexpected ai move response", nil)
	}
	if err != nil {
		s.logger.Warn("ai_move_failed", zap.String("game_id", st.gameID), zap.Error(err))
		s.commit(st)
		return s.Projection(), err
	}

	st = applyRemote(st, gs.MoveHistory[len(gs.MoveHistory)-1], gs)
	s.archiveIfFinished(ctx, &st)
	s.autosave(ctx, st)
	return s.commit(st), nil
}

// withGame runs call against the current remote game. A game the authority
// no longer knows is rebuilt from history and call is tried once more.
func (s *Session) withGame(ctx context.Context, st state, call func(gameID string) error) (state, error) {
	if st.gameID == "" {
		rebuilt, err := s.rebuild(ctx, st)
		if err != nil {
			return st, err
		}
		st = rebuilt
	}
	err := call(st.gameID)
	if !errors.Is(err, chessdto.ErrNotFound) {
		return st, err
	}
	s.logger.Warn("remote_game_lost", zap.String("game_id", st.gameID), zap.Int("plies", len(st.history)))
	rebuilt, rerr := s.rebuild(ctx, st)
	if rerr != nil {
		return st, rerr
	}
	rebuilt.rebuilds++
	s.logger.Warn("remote_game_rebuilt",
		zap.String("lost_game_id", st.gameID),
		zap.String("game_id", rebuilt.gameID),
		zap.Int("rebuilds", rebuilt.rebuilds),
	)
	return rebuilt, call(rebuilt.gameID)
}

func (s *Session) rebuild(ctx context.Context, st state) (state, error) {
	res, err := s.replayer.Replay(ctx, st.history, nil)
	if err != nil {
		return st, err
	}
	next := adopt(st, res)
	next.archived = st.archived
	return next, nil
}

func liveSubmission(mv domain.Move) (authority.MoveRequest, error) {
	if mv.From == "" && mv.To == "" && mv.Notation != "" {
		return authority.MoveRequest{Notation: mv.Notation}, nil
	}
	return replay.SubmissionFor(mv)
}

// Undo takes back one ply between humans, or the last human move together
// with the AI reply. The working copy changes only if the replay succeeds.
func (s *Session) Undo(ctx context.Context) (chessdto.Projection, error) {
	st, err := s.begin()
	if err != nil {
		return s.Projection(), err
	}
	defer s.end()

	plan, res, err := s.undo.Undo(ctx, st.history, undo.Input{
		Mode:        st.settings.Mode,
		ActiveColor: st.active,
		HumanColor:  st.settings.PlayerColor,
		EnableUndo:  st.settings.EnableUndo,
	})
	if err != nil {
		return s.Projection(), err
	}
	next := adopt(st, res)
	s.autosave(ctx, next)
	proj := s.commit(next)
	s.logger.Info("undo", zap.Int("pop", plan.PopCount), zap.Bool("fresh", plan.FreshGame), zap.Int("plies", len(next.history)))

	if s.aiToMove(next) {
		return s.aiReply(ctx, next)
	}
	return proj, nil
}

func (s *Session) Save(ctx context.Context, slot int) (chessdto.Projection, error) {
	st, err := s.begin()
	if err != nil {
		return s.Projection(), err
	}
	defer s.end()
	if _, err := s.store.Save(ctx, slot, s.snapshotOf(st)); err != nil {
		return s.Projection(), err
	}
	return s.Projection(), nil
}

// Load replays a slot onto a fresh game. A failed replay keeps the
// current view and reports the failing ply.
func (s *Session) Load(ctx context.Context, slot int) (chessdto.Projection, error) {
	if _, err := s.begin(); err != nil {
		return s.Projection(), err
	}
	defer s.end()

	snap, err := s.store.Load(ctx, slot)
	if err != nil {
		return s.Projection(), err
	}
	return s.restoreSnapshot(ctx, snap)
}

func (s *Session) DeleteSlot(ctx context.Context, slot int) (chessdto.Projection, error) {
	if _, err := s.begin(); err != nil {
		return s.Projection(), err
	}
	defer s.end()
	if err := s.store.Delete(ctx, slot); err != nil {
		return s.Projection(), err
	}
	return s.Projection(), nil
}

// Restore resumes the autosave. ok is false when there was nothing to
// resume; a corrupt autosave counts as nothing.
func (s *Session) Restore(ctx context.Context) (proj chessdto.Projection, ok bool, err error) {
	if _, err := s.begin(); err != nil {
		return s.Projection(), false, err
	}
	defer s.end()

	snap, found := s.store.TryRestoreAutosave(ctx)
	if !found {
		return s.Projection(), false, nil
	}
	proj, err = s.restoreSnapshot(ctx, *snap)
	return proj, err == nil, err
}

func (s *Session) restoreSnapshot(ctx context.Context, snap domain.Snapshot) (chessdto.Projection, error) {
	res, err := s.replayer.Replay(ctx, snap.MoveHistory, nil)
	if err != nil {
		return s.Projection(), err
	}
	settings := normalizeSettings(snap.Settings)
	next := s.blankState(settings)
	next.whiteTime = snap.WhiteTimeSeconds
	next.blackTime = snap.BlackTimeSeconds
	if snap.Orientation.Valid() {
		next.orientation = snap.Orientation
	}
	next = adopt(next, res)
	// a finished game from storage was archived when it ended
	next.archived = next.status.Terminal()
	s.autosave(ctx, next)
	s.logger.Info("snapshot_restored", zap.String("game_id", next.gameID), zap.Int("plies", len(next.history)))
	return s.commit(next), nil
}

// ImportTranscript replays the coordinate moves of a PGN-like text.
func (s *Session) ImportTranscript(ctx context.Context, text string) (chessdto.Projection, error) {
	st, err := s.begin()
	if err != nil {
		return s.Projection(), err
	}
	defer s.end()

	moves := transcript.ParseCoordinateMoves(text)
	if len(moves) == 0 {
		_, perr := transcript.ParseCoordinateMovesStrict(text)
		return s.Projection(), validation("transcript contains no importable moves", perr)
	}
	res, err := s.replayer.Replay(ctx, moves, nil)
	if err != nil {
		return s.Projection(), err
	}

	next := s.blankState(st.settings)
	headers := transcript.ParseHeaders(text)
	if w := headers["White"]; w != "" {
		next.white = w
	}
	if b := headers["Black"]; b != "" {
		next.black = b
	}
	next = adopt(next, res)
	s.archiveIfFinished(ctx, &next)
	s.autosave(ctx, next)
	s.logger.Info("transcript_imported", zap.String("game_id", next.gameID), zap.Int("plies", len(next.history)))
	return s.commit(next), nil
}

// Export renders the current history for display, using the authority's
// notation. An empty history exports as "".
func (s *Session) Export() string {
	s.mu.Lock()
	st := s.cur.clone()
	s.mu.Unlock()
	return s.exportText(st)
}

// ExportCoordinates renders every ply as <from><to>[promo], the form
// ImportTranscript reads back.
func (s *Session) ExportCoordinates() string {
	s.mu.Lock()
	st := s.cur.clone()
	s.mu.Unlock()
	return s.buildTranscript(st, true)
}

func (s *Session) exportText(st state) string {
	return s.buildTranscript(st, false)
}

func (s *Session) buildTranscript(st state, coordinateOnly bool) string {
	return transcript.Build(st.history, transcript.Meta{
		Date:           st.startedAt,
		White:          st.white,
		Black:          st.black,
		Status:         st.status,
		CoordinateOnly: coordinateOnly,
	})
}

func (s *Session) Slots(ctx context.Context) ([]chessdto.SlotView, error) {
	s.mu.Lock()
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		return nil, ErrDisposed
	}
	infos, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]chessdto.SlotView, 0, len(infos))
	for _, in := range infos {
		out = append(out, chessdto.SlotView{
			Slot:      in.Slot,
			Autosave:  in.Autosave,
			Empty:     in.Empty,
			MoveCount: in.MoveCount,
			Status:    string(in.Status),
			SavedAt:   in.SavedAt,
		})
	}
	return out, nil
}

// LegalMoves lists the moves the authority accepts in the current position.
func (s *Session) LegalMoves(ctx context.Context) ([]domain.Move, error) {
	st, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer s.end()

	var moves []domain.Move
	next, err := s.withGame(ctx, st, func(gameID string) error {
		var e error
		moves, e = s.auth.LegalMoves(ctx, gameID)
		return e
	})
	if next.gameID != st.gameID {
		s.commit(next)
	}
	if err != nil {
		return nil, err
	}
	return moves, nil
}
