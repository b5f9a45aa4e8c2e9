package main

import (
	"fmt"
	"strings"

	"github.com/park285/cheese-session/pkg/chessdto"
)

func renderProjection(p chessdto.Projection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s vs %s [%s]\n", p.White, p.Black, p.Mode)
	fmt.Fprintf(&b, "status: %s, to move: %s, plies: %d\n", p.Status, p.ActiveColor, p.MoveCount)
	if p.FEN != "" {
		fmt.Fprintf(&b, "fen: %s\n", p.FEN)
	}
	if len(p.Moves) > 0 {
		b.WriteString("moves:")
		for _, mv := range p.Moves {
			if mv.Ply%2 == 0 {
				fmt.Fprintf(&b, " %d.", mv.Ply/2+1)
			}
			label := mv.Notation
			if label == "" {
				label = mv.Coordinate
			}
			b.WriteString(" " + label)
		}
		b.WriteString("\n")
	}
	return b.String()
}
