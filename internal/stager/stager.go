// Package stager copies an incoming source asset into the workspace input
// root under the canonical name the workflow template refers to.
package stager

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/specialistvlad/facerig/internal/ctxlog"
)

// DefaultPrefix is the base name every staged image receives.
const DefaultPrefix = "image"

// Asset describes a file staged for the engine.
type Asset struct {
	OriginalName      string
	StagedPath        string
	CanonicalFilename string
}

// Stager stages source files into a single input directory.
type Stager struct {
	inputDir string
	prefix   string
}

// New returns a Stager writing into inputDir with the default prefix.
func New(inputDir string) *Stager {
	return &Stager{inputDir: inputDir, prefix: DefaultPrefix}
}

// CanonicalFilename keeps the extension of src and replaces its base name
// with prefix.
func CanonicalFilename(src, prefix string) string {
	return prefix + filepath.Ext(src)
}

// Stage copies src into the input directory. An empty src stages nothing and
// returns a nil Asset. The copy is written to a temporary sibling and renamed
// into place, so a failed copy never leaves a file under the canonical name.
func (s *Stager) Stage(ctx context.Context, src string) (*Asset, error) {
	logger := ctxlog.FromContext(ctx)
	if src == "" {
		logger.Debug("No source asset provided, staging skipped.")
		return nil, nil
	}

	name := CanonicalFilename(src, s.prefix)
	dst := filepath.Join(s.inputDir, name)

	if err := copyAtomic(src, dst); err != nil {
		return nil, fmt.Errorf("failed to stage %s: %w", src, err)
	}

	logger.Debug("Source asset staged.", "source", src, "staged", dst)
	return &Asset{
		OriginalName:      filepath.Base(src),
		StagedPath:        dst,
		CanonicalFilename: name,
	}, nil
}

func copyAtomic(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".staging-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
