// Package sessionbuilder wires configuration into a ready session and its
// backends.
package sessionbuilder

import (
	"context"
	"errors"
	"fmt"

	"github.com/park285/cheese-session/internal/archive"
	"github.com/park285/cheese-session/internal/authority"
	"github.com/park285/cheese-session/internal/authority/local"
	"github.com/park285/cheese-session/internal/config"
	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/internal/feed"
	"github.com/park285/cheese-session/internal/kv"
	"github.com/park285/cheese-session/internal/msgcat"
	"github.com/park285/cheese-session/internal/session"
	"github.com/park285/cheese-session/internal/snapshot"
	"go.uber.org/zap"
)

type Deps struct {
	Session   *session.Session
	Store     *snapshot.Store
	Authority authority.Authority
	// Local is set when the in-process authority is used.
	Local   *local.Authority
	Backend kv.Backend
	Archive archive.Repository
	Catalog *msgcat.Catalog
	Feed    *feed.Hub

	closers []func() error
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{}
	ok := false
	defer func() {
		if !ok {
			_ = d.Close()
		}
	}()

	switch cfg.AuthorityMode {
	case config.AuthorityLocal:
		d.Local = local.New(logger.Named("authority"))
		d.Authority = d.Local
	default:
		d.Authority = NewRemoteAuthority(cfg, logger)
	}

	backend, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	d.Backend = backend
	d.closers = append(d.closers, backend.Close)
	d.Store = snapshot.NewStore(backend,
		snapshot.WithPrefix(snapshot.Prefix(cfg.SessionProfile)),
		snapshot.WithLogger(logger.Named("snapshot")),
	)

	if cfg.DatabaseURL != "" {
		pg, err := archive.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init archive: %w", err)
		}
		d.closers = append(d.closers, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		d.Archive = pg
	} else {
		d.Archive = archive.NewMemory()
	}

	d.Catalog, err = msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	settings, err := initialSettings(ctx, cfg, d.Store)
	if err != nil {
		return nil, err
	}
	prefs, _ := d.Store.LoadPrefs(ctx)
	d.Session, err = session.New(session.Deps{
		Authority: d.Authority,
		Store:     d.Store,
		Archive:   d.Archive,
		Catalog:   d.Catalog,
		Logger:    logger.Named("session"),
	}, session.Options{Settings: &settings, White: humanLabel(prefs, settings, domain.White), Black: humanLabel(prefs, settings, domain.Black)})
	if err != nil {
		return nil, err
	}

	d.Feed = feed.NewHub(logger.Named("feed"))
	d.Session.Subscribe(d.Feed.Publish)
	d.closers = append(d.closers, func() error { d.Feed.Close(); return nil })

	ok = true
	return d, nil
}

// NewRemoteAuthority builds the REST client for the configured authority.
func NewRemoteAuthority(cfg *config.AppConfig, logger *zap.Logger) *authority.Client {
	headers := func() map[string]string {
		h := map[string]string{}
		if cfg.AuthorityToken != "" {
			h["Authorization"] = "Bearer " + cfg.AuthorityToken
		}
		if cfg.SessionProfile != "" {
			h["X-Session-Profile"] = cfg.SessionProfile
		}
		return h
	}
	return authority.NewClient(cfg.AuthorityBaseURL,
		authority.WithTimeout(cfg.AuthorityTimeout),
		authority.WithRetry(cfg.AuthorityRetry),
		authority.WithHeaderProvider(headers),
		authority.WithLogger(logger.Named("authority")),
	)
}

func OpenBackend(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (kv.Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		r, err := kv.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init redis store: %w", err)
		}
		return r, nil
	case config.BackendBadger:
		b, err := kv.OpenBadger(kv.BadgerConfig{Path: cfg.BadgerPath, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("init badger store: %w", err)
		}
		return b, nil
	case config.BackendMemory, "":
		return kv.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

// initialSettings starts from the environment and lets stored prefs win.
func initialSettings(ctx context.Context, cfg *config.AppConfig, store *snapshot.Store) (domain.Settings, error) {
	settings := domain.Settings{
		EnableUndo:  cfg.EnableUndo,
		Mode:        domain.ParseMode(cfg.PlayMode),
		PlayerColor: domain.ParseColor(cfg.HumanColor),
		TimerMode:   "none",
	}
	prefs, stored, err := store.StoredPrefs(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	if stored {
		settings = prefs.Settings()
	}
	return settings, nil
}

// humanLabel returns the player's name for the human's side only; the
// session fills in the rest.
func humanLabel(p snapshot.Prefs, s domain.Settings, side domain.Color) string {
	if p.PlayerName == "" || p.PlayerName == snapshot.DefaultPrefs().PlayerName {
		return ""
	}
	if s.Mode == domain.HumanVsAI && s.PlayerColor != side {
		return ""
	}
	if s.Mode == domain.HumanVsHuman && side != domain.White {
		return ""
	}
	return p.PlayerName
}

func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	if d.Session != nil {
		d.Session.Dispose()
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
