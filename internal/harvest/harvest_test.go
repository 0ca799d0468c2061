package harvest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/facerig/internal/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dirLister struct{}

func (dirLister) ListScratchFiles(_ context.Context, root string) ([]string, error) {
	return fsutil.ListFiles(root)
}

type failingLister struct{ err error }

func (l failingLister) ListScratchFiles(context.Context, string) ([]string, error) {
	return nil, l.err
}

func TestCollect_OneFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "ComfyUI_temp_00001_.png"), []byte("png"), 0o644))

	artifacts, err := New(dirLister{}, root).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, ".png", filepath.Ext(artifacts[0].SourcePath))
	assert.Empty(t, artifacts[0].FinalPath)
}

func TestCollect_NoFilesIsNotAnError(t *testing.T) {
	artifacts, err := New(dirLister{}, t.TempDir()).Collect(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, artifacts)
	assert.Empty(t, artifacts)
}

func TestCollect_SetOfExtensions(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "c.webp"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(name), 0o644))
	}

	artifacts, err := New(dirLister{}, root).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	var exts []string
	for _, a := range artifacts {
		exts = append(exts, filepath.Ext(a.SourcePath))
	}
	assert.ElementsMatch(t, []string{".png", ".png", ".webp"}, exts)
}

func TestCollect_ListerError(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(failingLister{err: boom}, "/scratch").Collect(context.Background())
	assert.ErrorIs(t, err, boom)
}
