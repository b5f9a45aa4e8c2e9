package msgcat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedDefaults(t *testing.T) {
	c := MustDefault()
	out, err := c.Render("errors.replay_stopped", map[string]any{"Move": 3, "Detail": "illegal move"})
	require.NoError(t, err)
	assert.Equal(t, "Reconstruction stopped at move 3: illegal move", out)

	out, err = c.Render("session.undone", map[string]any{"Count": 1})
	require.NoError(t, err)
	assert.Equal(t, "Took back 1 ply.", out)
}

func TestMissingKeyAndField(t *testing.T) {
	c := MustDefault()
	_, err := c.Render("errors.nope", nil)
	assert.Error(t, err)

	_, err = c.Render("errors.validation", map[string]any{})
	assert.Error(t, err)
	assert.Equal(t, "fallback", c.RenderOr("errors.validation", map[string]any{}, "fallback"))
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("errors:\n  busy: \"wait\"\n  generic: \"oops\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte("errors:\n  busy: \"hold on\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored: [1"), 0o644))

	c, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, "hold on", c.RenderOr("errors.busy", nil, ""))
	assert.Equal(t, "oops", c.RenderOr("errors.generic", nil, ""))
	assert.True(t, c.Has("session.saved"))
	assert.False(t, c.Has("errors.nope"))
}

func TestOverrideDirMissing(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestBadOverridesRejectedAtLoad(t *testing.T) {
	cases := map[string]string{
		"non-string leaf": "errors:\n  busy: 3\n",
		"list value":      "errors:\n  busy: [a, b]\n",
		"broken template": "errors:\n  busy: \"{{.Detail\"\n",
		"bare scalar":     "just text\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "m.yaml"), []byte(body), 0o644))
			_, err := New(dir)
			assert.Error(t, err)
		})
	}
}
