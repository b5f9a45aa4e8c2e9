package snapshot

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/internal/kv"
	"github.com/park285/cheese-session/pkg/chessdto"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() domain.Snapshot {
	s := domain.DefaultSnapshot()
	s.GameID = "g-1"
	s.MoveHistory = []domain.Move{
		{From: "e2", To: "e4", Notation: "e4", Type: domain.KindNormal},
		{From: "e7", To: "e5", Notation: "e5", Type: domain.KindNormal},
		{From: "g1", To: "f3", Notation: "Nf3", Type: domain.KindNormal},
	}
	s.ActiveColor = domain.Black
	s.WhiteTimeSeconds = 290
	s.BlackTimeSeconds = 300
	return s
}

func TestSaveLoadSlotTwo(t *testing.T) {
	ctx := context.Background()
	st := NewStore(kv.NewMemory())

	saved, err := st.Save(ctx, 2, sampleSnapshot())
	require.NoError(t, err)
	assert.False(t, saved.SavedAt.IsZero())

	got, err := st.Load(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot().MoveHistory, got.MoveHistory)
	assert.Equal(t, domain.Black, got.ActiveColor)
	assert.Equal(t, 290, got.WhiteTimeSeconds)
	assert.True(t, saved.SavedAt.Equal(got.SavedAt))

	_, err = st.Load(ctx, 1)
	assert.ErrorIs(t, err, chessdto.ErrNotFound)
}

func TestSlotRange(t *testing.T) {
	ctx := context.Background()
	st := NewStore(kv.NewMemory())
	for _, slot := range []int{0, 4, -1} {
		_, err := st.Save(ctx, slot, sampleSnapshot())
		assert.ErrorIs(t, err, chessdto.ErrValidation)
		_, err = st.Load(ctx, slot)
		assert.ErrorIs(t, err, chessdto.ErrValidation)
		assert.ErrorIs(t, st.Delete(ctx, slot), chessdto.ErrValidation)
	}
}

func TestSaveEmptyRejected(t *testing.T) {
	_, err := NewStore(kv.NewMemory()).Save(context.Background(), 1, domain.DefaultSnapshot())
	assert.ErrorIs(t, err, chessdto.ErrValidation)
}

func TestDeleteSlot(t *testing.T) {
	ctx := context.Background()
	st := NewStore(kv.NewMemory())
	_, err := st.Save(ctx, 3, sampleSnapshot())
	require.NoError(t, err)
	require.NoError(t, st.Delete(ctx, 3))
	_, err = st.Load(ctx, 3)
	assert.ErrorIs(t, err, chessdto.ErrNotFound)
}

func TestWrongTypedEnableUndoDiscarded(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	st := NewStore(backend)
	blob := `{"version":2,"snapshot":{"moveHistory":[{"from":"e2","to":"e4"}],"settings":{"enableUndo":"yes"}}}`
	require.NoError(t, backend.Set(ctx, DefaultPrefix+"autosave", []byte(blob)))

	snap, ok := st.TryRestoreAutosave(ctx)
	assert.False(t, ok)
	assert.Nil(t, snap)
}

func TestCorruptSlotReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	st := NewStore(backend)
	cases := map[string]string{
		"not json":      `{{{`,
		"old version":   `{"version":1,"snapshot":{"moveHistory":[{"from":"e2","to":"e4"}]}}`,
		"bad square":    `{"version":2,"snapshot":{"moveHistory":[{"from":"z9","to":"e4"}]}}`,
		"bare snapshot": `{"moveHistory":[{"from":"e2","to":"e4"}]}`,
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, backend.Set(ctx, DefaultPrefix+"slot-1", []byte(blob)))
			_, err := st.Load(ctx, 1)
			assert.ErrorIs(t, err, chessdto.ErrNotFound)
		})
	}
}

func TestMergeOverDefaults(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	st := NewStore(backend)
	blob := `{"version":2,"snapshot":{"moveHistory":[{"from":"e2","to":"e4"}],"status":"in_progress","settings":{"mode":"hvh"}}}`
	require.NoError(t, backend.Set(ctx, DefaultPrefix+"slot-1", []byte(blob)))

	got, err := st.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.Equal(t, domain.Black, got.ActiveColor)
	assert.Equal(t, domain.White, got.Orientation)
	assert.Equal(t, domain.HumanVsHuman, got.Settings.Mode)
	assert.True(t, got.Settings.EnableUndo)
	assert.Equal(t, "none", got.Settings.TimerMode)
	assert.Equal(t, domain.KindNormal, got.MoveHistory[0].Type)
}

func TestAutosaveRestore(t *testing.T) {
	ctx := context.Background()
	st := NewStore(kv.NewMemory())

	_, ok := st.TryRestoreAutosave(ctx)
	assert.False(t, ok)

	_, err := st.Autosave(ctx, domain.DefaultSnapshot())
	require.NoError(t, err)
	_, ok = st.TryRestoreAutosave(ctx)
	assert.False(t, ok, "empty history restores nothing")

	_, err = st.Autosave(ctx, sampleSnapshot())
	require.NoError(t, err)
	snap, ok := st.TryRestoreAutosave(ctx)
	require.True(t, ok)
	assert.Len(t, snap.MoveHistory, 3)

	require.NoError(t, st.ClearAutosave(ctx))
	_, ok = st.TryRestoreAutosave(ctx)
	assert.False(t, ok)
}

func TestSavedAtMonotonic(t *testing.T) {
	ctx := context.Background()
	clock := []time.Time{
		time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC),
	}
	i := 0
	st := NewStore(kv.NewMemory(), WithClock(func() time.Time {
		t := clock[i]
		i++
		return t
	}))

	a, err := st.Save(ctx, 1, sampleSnapshot())
	require.NoError(t, err)
	b, err := st.Save(ctx, 2, sampleSnapshot())
	require.NoError(t, err)
	c, err := st.Autosave(ctx, sampleSnapshot())
	require.NoError(t, err)

	assert.True(t, b.SavedAt.Equal(a.SavedAt))
	assert.True(t, c.SavedAt.After(b.SavedAt))
}

func TestListSlots(t *testing.T) {
	ctx := context.Background()
	st := NewStore(kv.NewMemory())
	_, err := st.Save(ctx, 2, sampleSnapshot())
	require.NoError(t, err)

	infos, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 4)
	assert.True(t, infos[0].Autosave)
	assert.True(t, infos[0].Empty)
	assert.True(t, infos[1].Empty)
	assert.False(t, infos[2].Empty)
	assert.Equal(t, 2, infos[2].Slot)
	assert.Equal(t, 3, infos[2].MoveCount)
	assert.True(t, infos[3].Empty)
}

func TestPrefs(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	st := NewStore(backend, WithPrefix(Prefix("kim")))

	p, err := st.LoadPrefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultPrefs(), p)

	_, err = st.SavePrefs(ctx, Prefs{PlayerName: " Kim ", PlayerColor: "b", Mode: "hvh"})
	require.NoError(t, err)
	p, err = st.LoadPrefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Kim", p.PlayerName)
	assert.Equal(t, domain.Black, p.PlayerColor)
	assert.Equal(t, domain.HumanVsHuman, p.Mode)
	assert.False(t, p.EnableUndo)

	require.NoError(t, backend.Set(ctx, "chess:session:kim:prefs", []byte(`{"version":2,"prefs":{"enableUndo":1}}`)))
	p, err = st.LoadPrefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultPrefs(), p)
}

func TestRedisBackedStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := NewStore(kv.NewRedis(rdb), WithPrefix(Prefix("p1")))

	_, err := st.Save(context.Background(), 1, sampleSnapshot())
	require.NoError(t, err)
	assert.True(t, mr.Exists("chess:session:p1:slot-1"))

	got, err := st.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, got.MoveHistory, 3)
}
