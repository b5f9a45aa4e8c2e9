package session

import (
	"errors"

	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/pkg/chessdto"
)

func (s *Session) projectLocked() chessdto.Projection {
	st := s.cur
	moves := make([]chessdto.MoveView, len(st.history))
	for i, mv := range st.history {
		moves[i] = chessdto.MoveView{
			Ply:        i,
			Color:      string(domain.ColorOfPly(i)),
			From:       string(mv.From),
			To:         string(mv.To),
			Promotion:  mv.Promotion,
			Notation:   mv.Notation,
			Coordinate: mv.Coordinate(),
			Castling:   mv.IsCastling(),
		}
	}
	return chessdto.Projection{
		SessionID:        s.id,
		GameID:           st.gameID,
		FEN:              st.fen,
		Moves:            moves,
		MoveCount:        len(st.history),
		Status:           string(st.status),
		ActiveColor:      string(st.active),
		Orientation:      string(st.orientation),
		Mode:             string(st.settings.Mode),
		WhiteTimeSeconds: st.whiteTime,
		BlackTimeSeconds: st.blackTime,
		Transcript:       s.exportText(st),
		AIThinking:       st.aiThinking,
		Rebuilds:         st.rebuilds,
		EnableUndo:       st.settings.EnableUndo,
		White:            st.white,
		Black:            st.black,
		UpdatedAt:        st.updatedAt,
	}
}

// Describe renders err as user-facing text from the message catalog.
func (s *Session) Describe(err error) string {
	if err == nil {
		return ""
	}
	fallback := s.catalog.RenderOr("errors.generic", nil, "Something went wrong.")
	if errors.Is(err, ErrDisposed) {
		return s.catalog.RenderOr("errors.disposed", nil, fallback)
	}
	var de *chessdto.DomainError
	if !errors.As(err, &de) {
		return fallback
	}
	detail := de.Message
	if detail == "" {
		detail = de.Code
	}
	if de.FailedAt >= 0 {
		return s.catalog.RenderOr("errors.replay_stopped", map[string]any{
			"Move":   de.FailedAt + 1,
			"Detail": detail,
		}, fallback)
	}
	return s.catalog.RenderOr("errors."+de.Code, map[string]any{"Detail": detail}, fallback)
}

// Message renders a non-error catalog entry, e.g. "session.saved".
func (s *Session) Message(key string, data map[string]any) string {
	return s.catalog.RenderOr(key, data, "")
}
