// Package media re-encodes harvested engine outputs into the delivery format
// requested by the caller.
package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/webp"
	"github.com/specialistvlad/facerig/internal/ctxlog"
	"github.com/specialistvlad/facerig/internal/harvest"

	_ "golang.org/x/image/webp"
)

// Format is a delivery encoding.
type Format string

const (
	FormatWebP Format = "webp"
	FormatJPG  Format = "jpg"
	FormatPNG  Format = "png"
)

// Defaults applied when a request does not choose.
const (
	DefaultFormat  = FormatWebP
	DefaultQuality = 95
)

var (
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrInvalidQuality    = errors.New("output quality must be within [0, 100]")
)

// ParseFormat accepts webp, jpg (or jpeg) and png, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "webp":
		return FormatWebP, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// CheckQuality validates an output quality level.
func CheckQuality(q int) error {
	if q < 0 || q > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuality, q)
	}
	return nil
}

// Normalizer converts artifacts for delivery.
type Normalizer interface {
	Convert(ctx context.Context, format Format, quality int, artifacts []harvest.Artifact) ([]harvest.Artifact, error)
}

// Encoder writes converted artifacts into OutputDir.
type Encoder struct {
	OutputDir string
}

// NewEncoder returns an Encoder writing into outputDir.
func NewEncoder(outputDir string) *Encoder {
	return &Encoder{OutputDir: outputDir}
}

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true}

// Convert re-encodes every image artifact to format and copies any other file
// through unchanged. It returns the same number of artifacts, each with its
// FinalPath set. Quality applies to jpg and webp; png is lossless by
// definition and ignores it.
func (e *Encoder) Convert(ctx context.Context, format Format, quality int, artifacts []harvest.Artifact) ([]harvest.Artifact, error) {
	logger := ctxlog.FromContext(ctx)

	format, err := ParseFormat(string(format))
	if err != nil {
		return nil, err
	}
	if err := CheckQuality(quality); err != nil {
		return nil, err
	}

	out := make([]harvest.Artifact, 0, len(artifacts))
	taken := make(map[string]bool, len(artifacts))

	for _, a := range artifacts {
		ext := strings.ToLower(filepath.Ext(a.SourcePath))
		stem := strings.TrimSuffix(filepath.Base(a.SourcePath), filepath.Ext(a.SourcePath))

		var err error
		if imageExts[ext] {
			a.FinalPath = e.uniquePath(stem, "."+string(format), taken)
			err = encodeFile(a.SourcePath, a.FinalPath, format, quality)
		} else {
			a.FinalPath = e.uniquePath(stem, filepath.Ext(a.SourcePath), taken)
			err = copyFile(a.SourcePath, a.FinalPath)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s: %w", a.SourcePath, err)
		}

		logger.Debug("Artifact normalized.", "source", a.SourcePath, "final", a.FinalPath, "format", format)
		out = append(out, a)
	}

	return out, nil
}

func (e *Encoder) uniquePath(stem, ext string, taken map[string]bool) string {
	path := filepath.Join(e.OutputDir, stem+ext)
	for i := 1; taken[path]; i++ {
		path = filepath.Join(e.OutputDir, fmt.Sprintf("%s-%d%s", stem, i, ext))
	}
	taken[path] = true
	return path
}

func encodeFile(src, dst string, format Format, quality int) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	img, _, err := image.Decode(in)
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if err := encode(out, img, format, quality); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func encode(w io.Writer, img image.Image, format Format, quality int) error {
	switch format {
	case FormatJPG:
		return jpeg.Encode(w, flatten(img), &jpeg.Options{Quality: max(quality, 1)})
	case FormatPNG:
		return png.Encode(w, img)
	case FormatWebP:
		return webp.Encode(w, img, webp.Options{Quality: quality})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// flatten composites img over an opaque white background, since jpeg has no
// alpha channel.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(rgba, b, img, b.Min, draw.Over)
	return rgba
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
