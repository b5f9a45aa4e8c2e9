package authority

import (
	"strings"

	"github.com/park285/cheese-session/internal/domain"
)

type wireMove struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	Notation  string `json:"notation,omitempty"`
	Type      string `json:"type,omitempty"`
}

type wireGameState struct {
	ID          string     `json:"id"`
	FEN         string     `json:"fen"`
	MoveHistory []wireMove `json:"move_history"`
	ActiveColor string     `json:"active_color"`
	Status      string     `json:"status"`
}

type wireError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (w wireGameState) toDomain() domain.GameState {
	history := make([]domain.Move, 0, len(w.MoveHistory))
	for _, mv := range w.MoveHistory {
		history = append(history, mv.toDomain())
	}
	active := domain.ParseColor(w.ActiveColor)
	if active == "" {
		active = domain.ActiveColorAfter(len(history))
	}
	return domain.GameState{
		ID:          strings.TrimSpace(w.ID),
		FEN:         w.FEN,
		MoveHistory: history,
		ActiveColor: active,
		Status:      domain.NormalizeStatus(w.Status),
	}
}

func (w wireMove) toDomain() domain.Move {
	return domain.Move{
		From:      domain.Square(strings.ToLower(strings.TrimSpace(w.From))),
		To:        domain.Square(strings.ToLower(strings.TrimSpace(w.To))),
		Promotion: strings.ToLower(strings.TrimSpace(w.Promotion)),
		Notation:  strings.TrimSpace(w.Notation),
		Type:      normalizeKind(w.Type, w.Notation),
	}
}

func fromDomainMove(mv domain.Move) wireMove {
	return wireMove{
		From:      string(mv.From),
		To:        string(mv.To),
		Promotion: mv.Promotion,
		Notation:  mv.Notation,
		Type:      string(mv.Type),
	}
}

func fromDomainState(st domain.GameState) wireGameState {
	moves := make([]wireMove, 0, len(st.MoveHistory))
	for _, mv := range st.MoveHistory {
		moves = append(moves, fromDomainMove(mv))
	}
	return wireGameState{
		ID:          st.ID,
		FEN:         st.FEN,
		MoveHistory: moves,
		ActiveColor: string(st.ActiveColor),
		Status:      string(st.Status),
	}
}

func normalizeKind(raw, notation string) domain.MoveKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "castling", "castle", "kingside_castle", "queenside_castle":
		return domain.KindCastling
	case "promotion", "promote":
		return domain.KindPromotion
	case "en_passant", "enpassant", "ep":
		return domain.KindEnPassant
	case "capture":
		return domain.KindCapture
	case "normal", "":
	default:
		return domain.KindNormal
	}
	n := strings.TrimRight(strings.TrimSpace(notation), "+#")
	if n == "O-O" || n == "O-O-O" || n == "0-0" || n == "0-0-0" {
		return domain.KindCastling
	}
	return domain.KindNormal
}
