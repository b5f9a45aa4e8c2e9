// Package transcript converts move histories to and from a PGN-like text.
//
// The importer understands coordinate moves only (e2e4, e7e8q). SAN tokens
// such as Nf3 or exd5+ are skipped rather than guessed at; resolving them
// needs a position, which this package deliberately does not have.
package transcript

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/pkg/chessdto"
)

const (
	defaultEvent = "Casual Game"
	defaultSite  = "cheese-session"
	defaultRound = "-"
	defaultWhite = "Player"
	defaultBlack = "AI"
)

// Meta carries header values. Zero fields fall back to defaults.
type Meta struct {
	Event  string
	Site   string
	Date   time.Time
	Round  string
	White  string
	Black  string
	Status domain.Status
	// CoordinateOnly renders every ply as <from><to>[promo] even when a
	// notation was recorded.
	CoordinateOnly bool
}

var (
	moveNumberRe = regexp.MustCompile(`^\d+\.+`)
	coordMoveRe  = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbnQRBN]?$`)
	headerRe     = regexp.MustCompile(`^\[(\w+)\s+"(.*)"\]$`)
)

// ResultToken maps a status onto the PGN result token.
func ResultToken(status domain.Status) string {
	switch status {
	case domain.StatusWhiteWon:
		return "1-0"
	case domain.StatusBlackWon:
		return "0-1"
	case domain.StatusDraw, domain.StatusStalemate:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func isResultToken(tok string) bool {
	switch tok {
	case "1-0", "0-1", "1/2-1/2", "*":
		return true
	}
	return false
}

// Build renders history with headers. An empty history yields "" and
// callers treat that as nothing to export.
func Build(history []domain.Move, meta Meta) string {
	if len(history) == 0 {
		return ""
	}
	result := ResultToken(meta.Status)
	date := meta.Date
	if date.IsZero() {
		date = time.Now()
	}

	var b strings.Builder
	writeTag(&b, "Event", orDefault(meta.Event, defaultEvent))
	writeTag(&b, "Site", orDefault(meta.Site, defaultSite))
	writeTag(&b, "Date", fmt.Sprintf("%04d.%02d.%02d", date.Year(), int(date.Month()), date.Day()))
	writeTag(&b, "Round", orDefault(meta.Round, defaultRound))
	writeTag(&b, "White", orDefault(meta.White, defaultWhite))
	writeTag(&b, "Black", orDefault(meta.Black, defaultBlack))
	writeTag(&b, "Result", result)
	b.WriteString("\n")

	for i := 0; i < len(history); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, render(history[i], meta.CoordinateOnly)))
		if i+1 < len(history) {
			b.WriteString(" ")
			b.WriteString(render(history[i+1], meta.CoordinateOnly))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func render(mv domain.Move, coordinateOnly bool) string {
	if !coordinateOnly {
		if n := strings.TrimSpace(mv.Notation); n != "" {
			return n
		}
	}
	return mv.Coordinate()
}

func writeTag(b *strings.Builder, name, value string) {
	b.WriteString(fmt.Sprintf("[%s \"%s\"]\n", name, sanitize(value)))
}

func sanitize(s string) string {
	s = strings.NewReplacer("\"", "'", "\\", "", "\r", " ", "\n", " ").Replace(s)
	return strings.TrimSpace(s)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// ParseCoordinateMoves returns the coordinate moves found in text, in order.
// Headers, move numbers, result tokens and anything outside the coordinate
// grammar are skipped silently.
func ParseCoordinateMoves(text string) []domain.Move {
	moves, _ := parse(text, false)
	return moves
}

// ParseCoordinateMovesStrict is ParseCoordinateMoves but fails on the first
// token that is neither a move number, a result nor a coordinate move.
func ParseCoordinateMovesStrict(text string) ([]domain.Move, error) {
	return parse(text, true)
}

func parse(text string, strict bool) ([]domain.Move, error) {
	moves := make([]domain.Move, 0)
	for _, tok := range strings.Fields(body(text)) {
		if isResultToken(tok) {
			continue
		}
		if rest := moveNumberRe.ReplaceAllString(tok, ""); rest != tok {
			if rest == "" {
				continue
			}
			// "1.e2e4" style: number glued to the move
			tok = rest
		}
		if !coordMoveRe.MatchString(tok) {
			if strict {
				return nil, chessdto.NewError(chessdto.CodeValidation, fmt.Sprintf("unsupported transcript token %q", tok), nil)
			}
			continue
		}
		mv := domain.Move{
			From: domain.Square(tok[0:2]),
			To:   domain.Square(tok[2:4]),
		}
		if len(tok) == 5 {
			mv.Promotion = strings.ToLower(tok[4:])
		}
		moves = append(moves, mv)
	}
	return moves, nil
}

// body drops header lines so tag values never leak into the move list.
func body(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// ParseHeaders returns the tag pairs of a transcript.
func ParseHeaders(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		m := headerRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		out[m[1]] = m[2]
	}
	return out
}
