package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/internal/sessionbuilder"
	"github.com/park285/cheese-session/internal/snapshot"
	"github.com/park285/cheese-session/pkg/chessdto"
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "chess-session",
		Short:         "Play, save and resume chess sessions against a move authority",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)
	root.AddCommand(
		newStatusCmd(a),
		newGameCmd(a),
		newMoveCmd(a),
		newAICmd(a),
		newUndoCmd(a),
		newLegalCmd(a),
		newSaveCmd(a),
		newLoadCmd(a),
		newDeleteCmd(a),
		newSlotsCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newPrefsCmd(a),
		newServeCmd(a),
		newServeAuthorityCmd(a),
		newWatchCmd(a),
	)
	return root
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current game",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(_ context.Context, d *sessionbuilder.Deps) error {
				a.printf("%s", renderProjection(d.Session.Projection()))
				return nil
			})
		},
	}
}

func newGameCmd(a *app) *cobra.Command {
	var mode, color string
	var noUndo bool
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new game",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, d *sessionbuilder.Deps) error {
				cur := d.Session.Projection()
				settings := domain.Settings{
					Mode:        domain.ParseMode(cur.Mode),
					PlayerColor: domain.ParseColor(cur.Orientation),
					EnableUndo:  cur.EnableUndo,
				}
				if cmd.Flags().Changed("mode") {
					if settings.Mode = domain.ParseMode(mode); settings.Mode == "" {
						return fmt.Errorf("unknown mode %q", mode)
					}
				}
				if cmd.Flags().Changed("color") {
					if settings.PlayerColor = domain.ParseColor(color); settings.PlayerColor == "" {
						return fmt.Errorf("unknown color %q", color)
					}
				}
				if cmd.Flags().Changed("no-undo") {
					settings.EnableUndo = !noUndo
				}
				p, err := d.Session.NewGame(ctx, &settings)
				if err != nil {
					return err
				}
				if cmd.Flags().NFlag() > 0 {
					if err := rememberSettings(ctx, d, settings); err != nil {
						return err
					}
				}
				a.println(d.Session.Message("session.new_game", map[string]any{"Mode": p.Mode, "Color": p.Orientation}))
				a.printf("%s", renderProjection(p))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "human_vs_ai or human_vs_human")
	cmd.Flags().StringVar(&color, "color", "", "side played by the human (white or black)")
	cmd.Flags().BoolVar(&noUndo, "no-undo", false, "disable take-backs for this game")
	return cmd
}

// rememberSettings keeps the choices of "new" as the defaults for later
// invocations, which start before any autosave exists.
func rememberSettings(ctx context.Context, d *sessionbuilder.Deps, s domain.Settings) error {
	prefs, err := d.Store.LoadPrefs(ctx)
	if err != nil {
		return err
	}
	prefs.Mode = s.Mode
	prefs.PlayerColor = s.PlayerColor
	prefs.EnableUndo = s.EnableUndo
	_, err = d.Store.SavePrefs(ctx, prefs)
	return err
}

// parseMoveArg accepts e2e4, e7e8q, "e2 e4" or a notation such as Nf3 / O-O.
func parseMoveArg(args []string) domain.Move {
	raw := strings.TrimSpace(strings.Join(args, ""))
	lower := strings.ToLower(raw)
	if len(lower) == 4 || len(lower) == 5 {
		from, to := lower[:2], lower[2:4]
		if domain.IsValidSquare(from) && domain.IsValidSquare(to) {
			mv := domain.Move{From: domain.Square(from), To: domain.Square(to)}
			if len(lower) == 5 {
				mv.Promotion = lower[4:]
				mv.Type = domain.KindPromotion
			}
			return mv
		}
	}
	return domain.Move{Notation: raw}
}

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <move>",
		Short: "Play a move (coordinates like e2e4 or notation like Nf3)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, d *sessionbuilder.Deps) error {
				p, err := d.Session.ApplyMove(ctx, parseMoveArg(args))
				a.printf("%s", renderProjection(p))
				return err
			})
		},
	}
}

func newAICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ai",
		Short: "Ask the authority to move for the side to play",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, d *sessionbuilder.Deps) error {
				p, err := d.Session.RequestAIMove(ctx)
				if err != nil {
					return err
				}
				a.printf("%s", renderProjection(p))
				return nil
			})
		},
	}
}

func newUndoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Take back the last move (or move pair against the AI)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, d *sessionbuilder.Deps) error {
				before := d.Session.Projection().MoveCount
				p, err := d.Session.Undo(ctx)
				if err != nil {
					return err
				}
				a.println(d.Session.Message("session.undone", map[string]any{"Count": before - p.MoveCount}))
				a.printf("%s", renderProjection(p))
				return nil
			})
		},
	}
}

func newLegalCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "legal",
		Short: "List legal moves in the current position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, d *sessionbuilder.Deps) error {
				moves, err := d.Session.LegalMoves(ctx)
				if err != nil {
					return err
				}
				out := make([]string, 0, len(moves))
				for _, mv := range moves {
					out = append(out, mv.Coordinate())
				}
				a.println(strings.Join(out, " "))
				return nil
			})
		},
	}
}

func slotArg(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < snapshot.MinSlot || n > snapshot.MaxSlot {
		return 0, fmt.Errorf("slot must be %d-%d", snapshot.MinSlot, snapshot.MaxSlot)
	}
	return n, nil
}

func newSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save <slot>",
		Short: "Save the current game to a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := slotArg(args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(ctx context.Context, d *sessionbuilder.Deps) error {
				p, err := d.Session.Save(ctx, slot)
				if err != nil {
					return err
				}
				a.println(d.Session.Message("session.saved", map[string]any{"Plies": p.MoveCount, "Slot": slot}))
				return nil
			})
		},
	}
}

func newLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load <slot>",
		Short: "Load a saved game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := slotArg(args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(ctx context.Context, d *sessionbuilder.Deps) error {
				p, err := d.Session.Load(ctx, slot)
				if err != nil {
					return err
				}
				a.println(d.Session.Message("session.loaded", map[string]any{"Plies": p.MoveCount, "Slot": slot}))
				a.printf("%s", renderProjection(p))
				return nil
			})
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <slot>",
		Short: "Clear a save slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := slotArg(args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(ctx context.Context, d *sessionbuilder.Deps) error {
				if _, err := d.Session.DeleteSlot(ctx, slot); err != nil {
					return err
				}
				a.println(d.Session.Message("session.deleted", map[string]any{"Slot": slot}))
				return nil
			})
		},
	}
}

func newSlotsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "List save slots and the autosave",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, d *sessionbuilder.Deps) error {
				views, err := d.Session.Slots(ctx)
				if err != nil {
					return err
				}
				for _, v := range views {
					a.println(slotLine(d, v))
				}
				return nil
			})
		},
	}
}

func slotLine(d *sessionbuilder.Deps, v chessdto.SlotView) string {
	data := map[string]any{
		"Slot":    v.Slot,
		"Plies":   v.MoveCount,
		"Status":  v.Status,
		"SavedAt": v.SavedAt.Format("2006-01-02 15:04"),
	}
	switch {
	case v.Autosave && v.Empty:
		return ""
	case v.Autosave:
		return d.Session.Message("session.autosave_line", data)
	case v.Empty:
		return d.Session.Message("session.slot_empty", data)
	default:
		return d.Session.Message("session.slot_line", data)
	}
}

func newExportCmd(a *app) *cobra.Command {
	var coordinates bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the game transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(_ context.Context, d *sessionbuilder.Deps) error {
				if coordinates {
					a.println(d.Session.ExportCoordinates())
				} else {
					a.println(d.Session.Export())
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&coordinates, "coordinates", false, "write moves as e2e4 so the text can be imported again")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Rebuild a game from a coordinate transcript (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src io.Reader = a.in
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}
			text, err := io.ReadAll(src)
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(ctx context.Context, d *sessionbuilder.Deps) error {
				p, err := d.Session.ImportTranscript(ctx, string(text))
				if err != nil {
					return err
				}
				a.println(d.Session.Message("session.imported", map[string]any{"Plies": p.MoveCount}))
				a.printf("%s", renderProjection(p))
				return nil
			})
		},
	}
}

func newPrefsCmd(a *app) *cobra.Command {
	var name, color, mode string
	var undo bool
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or update the defaults used for new games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, d *sessionbuilder.Deps) error {
				prefs, err := d.Store.LoadPrefs(ctx)
				if err != nil {
					return err
				}
				flags := cmd.Flags()
				if flags.Changed("name") {
					prefs.PlayerName = name
				}
				if flags.Changed("color") {
					prefs.PlayerColor = domain.Color(color)
				}
				if flags.Changed("mode") {
					prefs.Mode = domain.Mode(mode)
				}
				if flags.Changed("undo") {
					prefs.EnableUndo = undo
				}
				if flags.NFlag() > 0 {
					if prefs, err = d.Store.SavePrefs(ctx, prefs); err != nil {
						return err
					}
				}
				a.printf("name: %s\ncolor: %s\nmode: %s\nundo: %t\n", prefs.PlayerName, prefs.PlayerColor, prefs.Mode, prefs.EnableUndo)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "player name")
	cmd.Flags().StringVar(&color, "color", "", "preferred side")
	cmd.Flags().StringVar(&mode, "mode", "", "human_vs_ai or human_vs_human")
	cmd.Flags().BoolVar(&undo, "undo", true, "allow take-backs")
	return cmd
}
