package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/park285/cheese-session/internal/config"
	"github.com/park285/cheese-session/internal/obslog"
	"github.com/park285/cheese-session/internal/sessionbuilder"
	"go.uber.org/zap"
)

// app carries what every command needs; tests swap the pieces.
type app struct {
	out        io.Writer
	in         io.Reader
	loadConfig func() (*config.AppConfig, error)
	logger     func() *zap.Logger
}

func defaultApp() *app {
	return &app{
		out:        os.Stdout,
		in:         os.Stdin,
		loadConfig: config.Load,
		logger:     obslog.L,
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) println(s string) {
	if s == "" {
		return
	}
	fmt.Fprintln(a.out, s)
}

// withSession builds the dependencies, resumes the autosaved game, runs fn
// and tears everything down again.
func (a *app) withSession(ctx context.Context, fn func(ctx context.Context, d *sessionbuilder.Deps) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	d, err := sessionbuilder.New(ctx, cfg, a.logger())
	if err != nil {
		return fmt.Errorf("session init error: %w", err)
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			a.logger().Warn("close failed", zap.Error(cerr))
		}
	}()

	if _, _, err := d.Session.Restore(ctx); err != nil {
		a.println(d.Session.Describe(err))
	}
	if err := fn(ctx, d); err != nil {
		a.println(d.Session.Describe(err))
		return err
	}
	return nil
}
