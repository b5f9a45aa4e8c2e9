// Package snapshot persists session snapshots in three manual slots, one
// autosave slot and a preferences record.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/internal/kv"
	"github.com/park285/cheese-session/internal/metrics"
	"github.com/park285/cheese-session/pkg/chessdto"
	"go.uber.org/zap"
)

const (
	MinSlot = 1
	MaxSlot = 3

	DefaultPrefix = "chess:session:default:"
)

// Prefix scopes keys to a profile.
func Prefix(profile string) string {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return DefaultPrefix
	}
	return "chess:session:" + profile + ":"
}

// SlotInfo summarizes a slot for pickers. Autosave is reported with Slot 0.
type SlotInfo struct {
	Slot      int
	Autosave  bool
	Empty     bool
	MoveCount int
	Status    domain.Status
	SavedAt   time.Time
}

type Option func(*Store)

func WithPrefix(prefix string) Option { return func(s *Store) { s.prefix = prefix } }

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// Store is the only writer of snapshot keys.
type Store struct {
	backend kv.Backend
	prefix  string
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.Mutex
	lastSaved time.Time
}

func NewStore(backend kv.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		prefix:  DefaultPrefix,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) slotKey(slot int) string { return fmt.Sprintf("%sslot-%d", s.prefix, slot) }
func (s *Store) autosaveKey() string     { return s.prefix + "autosave" }
func (s *Store) prefsKey() string        { return s.prefix + "prefs" }

func validSlot(slot int) error {
	if slot < MinSlot || slot > MaxSlot {
		return chessdto.NewError(chessdto.CodeValidation, fmt.Sprintf("slot must be %d-%d, got %d", MinSlot, MaxSlot, slot), nil)
	}
	return nil
}

// stamp returns a save time that never goes backwards.
func (s *Store) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now().UTC()
	if t.Before(s.lastSaved) {
		t = s.lastSaved
	}
	s.lastSaved = t
	return t
}

// Save overwrites slot unconditionally and returns the stored record.
func (s *Store) Save(ctx context.Context, slot int, snap domain.Snapshot) (domain.Snapshot, error) {
	if err := validSlot(slot); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Empty() {
		return domain.Snapshot{}, chessdto.NewError(chessdto.CodeValidation, "nothing to save", nil)
	}
	stored, err := s.write(ctx, s.slotKey(slot), snap)
	if err != nil {
		metrics.ObserveSnapshot("save", "error")
		return domain.Snapshot{}, fmt.Errorf("save slot %d: %w", slot, err)
	}
	metrics.ObserveSnapshot("save", "ok")
	s.logger.Info("snapshot_saved", zap.Int("slot", slot), zap.Int("plies", len(stored.MoveHistory)))
	return stored, nil
}

// Load returns NotFound for an empty slot. A corrupt slot is logged and
// reported the same way.
func (s *Store) Load(ctx context.Context, slot int) (domain.Snapshot, error) {
	if err := validSlot(slot); err != nil {
		return domain.Snapshot{}, err
	}
	snap, found, err := s.read(ctx, "load", s.slotKey(slot))
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load slot %d: %w", slot, err)
	}
	if !found || snap.Empty() {
		return domain.Snapshot{}, chessdto.NewError(chessdto.CodeNotFound, fmt.Sprintf("slot %d is empty", slot), nil)
	}
	return snap, nil
}

func (s *Store) Delete(ctx context.Context, slot int) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, s.slotKey(slot)); err != nil {
		metrics.ObserveSnapshot("delete", "error")
		return fmt.Errorf("delete slot %d: %w", slot, err)
	}
	metrics.ObserveSnapshot("delete", "ok")
	s.logger.Info("snapshot_deleted", zap.Int("slot", slot))
	return nil
}

// List reports the autosave slot followed by slots 1..3.
func (s *Store) List(ctx context.Context) ([]SlotInfo, error) {
	out := make([]SlotInfo, 0, MaxSlot+1)
	keys := []string{s.autosaveKey()}
	for slot := MinSlot; slot <= MaxSlot; slot++ {
		keys = append(keys, s.slotKey(slot))
	}
	for i, key := range keys {
		snap, found, err := s.read(ctx, "list", key)
		if err != nil {
			return nil, err
		}
		info := SlotInfo{Slot: i, Autosave: i == 0, Empty: !found || snap.Empty()}
		if !info.Empty {
			info.MoveCount = len(snap.MoveHistory)
			info.Status = snap.Status
			info.SavedAt = snap.SavedAt
		}
		out = append(out, info)
	}
	return out, nil
}

func (s *Store) Autosave(ctx context.Context, snap domain.Snapshot) (domain.Snapshot, error) {
	stored, err := s.write(ctx, s.autosaveKey(), snap)
	if err != nil {
		metrics.ObserveSnapshot("autosave", "error")
		return domain.Snapshot{}, fmt.Errorf("autosave: %w", err)
	}
	metrics.ObserveSnapshot("autosave", "ok")
	return stored, nil
}

// TryRestoreAutosave returns the autosave when it holds a non-empty
// history. Corrupt or missing autosaves yield false without an error.
func (s *Store) TryRestoreAutosave(ctx context.Context) (*domain.Snapshot, bool) {
	snap, found, err := s.read(ctx, "restore", s.autosaveKey())
	if err != nil {
		s.logger.Warn("autosave_restore_failed", zap.Error(err))
		return nil, false
	}
	if !found || snap.Empty() {
		return nil, false
	}
	return &snap, true
}

func (s *Store) ClearAutosave(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.autosaveKey()); err != nil {
		return fmt.Errorf("clear autosave: %w", err)
	}
	return nil
}

func (s *Store) SavePrefs(ctx context.Context, p Prefs) (Prefs, error) {
	p = normalizePrefs(p)
	raw, err := encodePrefs(p)
	if err != nil {
		return Prefs{}, err
	}
	if err := s.backend.Set(ctx, s.prefsKey(), raw); err != nil {
		metrics.ObserveSnapshot("prefs", "error")
		return Prefs{}, fmt.Errorf("save prefs: %w", err)
	}
	metrics.ObserveSnapshot("prefs", "ok")
	return p, nil
}

// LoadPrefs falls back to defaults for a missing or corrupt record.
func (s *Store) LoadPrefs(ctx context.Context) (Prefs, error) {
	p, _, err := s.StoredPrefs(ctx)
	return p, err
}

// StoredPrefs is LoadPrefs that also reports whether a usable record exists.
func (s *Store) StoredPrefs(ctx context.Context) (Prefs, bool, error) {
	raw, err := s.backend.Get(ctx, s.prefsKey())
	if errors.Is(err, kv.ErrNotFound) {
		return DefaultPrefs(), false, nil
	}
	if err != nil {
		return DefaultPrefs(), false, fmt.Errorf("load prefs: %w", err)
	}
	p, err := decodePrefs(raw)
	if err != nil {
		metrics.ObserveSnapshot("prefs", "corrupt")
		s.logger.Warn("prefs_corrupt", zap.String("key", s.prefsKey()), zap.Error(err))
		return DefaultPrefs(), false, nil
	}
	return p, true, nil
}

func (s *Store) write(ctx context.Context, key string, snap domain.Snapshot) (domain.Snapshot, error) {
	snap = snap.Clone()
	snap.SavedAt = s.stamp()
	raw, err := encodeSnapshot(snap)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := s.backend.Set(ctx, key, raw); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// read returns found=false for a missing or corrupt key. Only backend
// failures are errors.
func (s *Store) read(ctx context.Context, op, key string) (domain.Snapshot, bool, error) {
	raw, err := s.backend.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		metrics.ObserveSnapshot(op, "miss")
		return domain.DefaultSnapshot(), false, nil
	}
	if err != nil {
		metrics.ObserveSnapshot(op, "error")
		return domain.DefaultSnapshot(), false, err
	}
	snap, err := decodeSnapshot(raw)
	if err != nil {
		metrics.ObserveSnapshot(op, "corrupt")
		s.logger.Warn("snapshot_corrupt", zap.String("key", key), zap.Error(err))
		return domain.DefaultSnapshot(), false, nil
	}
	metrics.ObserveSnapshot(op, "ok")
	return snap, true, nil
}
