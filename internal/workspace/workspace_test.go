package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	root := t.TempDir()
	ws, err := New(
		filepath.Join(root, "inputs"),
		filepath.Join(root, "outputs"),
		filepath.Join(root, "ComfyUI", "temp"),
	)
	require.NoError(t, err)
	return ws
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "expected %s to be empty", dir)
}

func TestNew(t *testing.T) {
	t.Run("rejects empty roots", func(t *testing.T) {
		_, err := New("", "/out", "/scratch")
		require.Error(t, err)
	})

	t.Run("rejects shared roots", func(t *testing.T) {
		_, err := New("/tmp/a", "/tmp/a", "/tmp/b")
		require.Error(t, err)
	})
}

func TestCleanup_CreatesMissingRoots(t *testing.T) {
	ws := newTestWorkspace(t)

	require.NoError(t, ws.Cleanup(context.Background()))

	for _, dir := range ws.Dirs() {
		assertEmptyDir(t, dir)
	}
}

func TestCleanup_RemovesLeftovers(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, ws.Cleanup(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(ws.InputDir, "image.png"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(ws.ScratchDir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws.ScratchDir, "nested", "frame.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ws.OutputDir, "out.webp"), []byte("x"), 0o644))

	require.NoError(t, ws.Cleanup(context.Background()))

	for _, dir := range ws.Dirs() {
		assertEmptyDir(t, dir)
	}
}

func TestCleanup_Idempotent(t *testing.T) {
	ws := newTestWorkspace(t)

	for i := 0; i < 2; i++ {
		require.NoError(t, ws.Cleanup(context.Background()))
		for _, dir := range ws.Dirs() {
			assertEmptyDir(t, dir)
		}
	}
}

func TestCleanup_PermissionFailure(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	parent := t.TempDir()
	locked := filepath.Join(parent, "locked")
	require.NoError(t, os.Mkdir(locked, 0o500))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	ws, err := New(
		filepath.Join(locked, "inputs"),
		filepath.Join(parent, "outputs"),
		filepath.Join(parent, "scratch"),
	)
	require.NoError(t, err)

	err = ws.Cleanup(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrPermission)
}
