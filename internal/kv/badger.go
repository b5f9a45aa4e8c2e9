package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

type BadgerConfig struct {
	// Path is ignored when InMemory is set.
	Path     string
	InMemory bool
	Logger   *zap.Logger
}

type Badger struct {
	db *badger.DB
}

// badgerLogger routes badger's own logging through zap.
type badgerLogger struct{ l *zap.SugaredLogger }

func (b badgerLogger) Errorf(format string, args ...interface{})   { b.l.Errorf(format, args...) }
func (b badgerLogger) Warningf(format string, args ...interface{}) { b.l.Warnf(format, args...) }
func (b badgerLogger) Infof(format string, args ...interface{})    { b.l.Debugf(format, args...) }
func (b badgerLogger) Debugf(format string, args ...interface{})   { b.l.Debugf(format, args...) }

func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("badger path required when not in memory")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.WithLogger(badgerLogger{l: logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return out, err
}

func (b *Badger) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *Badger) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (b *Badger) Close() error { return b.db.Close() }
