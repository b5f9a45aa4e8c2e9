package sessionbuilder

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/cheese-session/internal/config"
	"github.com/park285/cheese-session/internal/domain"
	"github.com/park285/cheese-session/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localConfig() *config.AppConfig {
	return &config.AppConfig{
		AuthorityMode:    config.AuthorityLocal,
		AuthorityTimeout: time.Second,
		StoreBackend:     config.BackendMemory,
		SessionProfile:   "test",
		PlayMode:         "human_vs_human",
		HumanColor:       "white",
		EnableUndo:       true,
	}
}

func TestBuildLocalMemory(t *testing.T) {
	ctx := context.Background()
	d, err := New(ctx, localConfig(), nil)
	require.NoError(t, err)
	defer d.Close()

	require.NotNil(t, d.Local)
	p, err := d.Session.ApplyMove(ctx, domain.Move{From: "e2", To: "e4"})
	require.NoError(t, err)
	assert.Equal(t, "human_vs_human", p.Mode)
	assert.Equal(t, 1, p.MoveCount)
}

func TestBuildBadgerSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig()
	cfg.StoreBackend = config.BackendBadger
	cfg.BadgerPath = t.TempDir()

	d, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	_, err = d.Session.ApplyMove(ctx, domain.Move{From: "e2", To: "e4"})
	require.NoError(t, err)
	_, err = d.Session.ApplyMove(ctx, domain.Move{From: "e7", To: "e5"})
	require.NoError(t, err)
	require.NoError(t, d.Close())

	again, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer again.Close()
	p, ok, err := again.Session.Restore(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, p.MoveCount)
}

func TestBuildRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := localConfig()
	cfg.StoreBackend = config.BackendRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"

	d, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer d.Close()
	_, err = d.Session.ApplyMove(context.Background(), domain.Move{From: "d2", To: "d4"})
	require.NoError(t, err)
	assert.True(t, mr.Exists("chess:session:test:autosave"))
}

func TestStoredPrefsWin(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := localConfig()
	cfg.StoreBackend = config.BackendRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"

	d, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	_, err = d.Store.SavePrefs(ctx, snapshot.Prefs{PlayerName: "Kim", PlayerColor: domain.Black, Mode: domain.HumanVsAI, EnableUndo: true})
	require.NoError(t, err)
	require.NoError(t, d.Close())

	d, err = New(ctx, cfg, nil)
	require.NoError(t, err)
	defer d.Close()
	p := d.Session.Projection()
	assert.Equal(t, "human_vs_ai", p.Mode)
	assert.Equal(t, "Kim", p.Black)
	assert.Equal(t, "AI", p.White)
}

func TestBuildRejectsUnknownBackend(t *testing.T) {
	cfg := localConfig()
	cfg.StoreBackend = "floppy"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}
