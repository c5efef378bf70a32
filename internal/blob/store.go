// Package blob stores avatar images on the local filesystem and serves them
// back under a public base URL.
package blob

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register gif
	"image/jpeg"
	_ "image/png" // register png
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/vedran77/dermacheck/internal/repository"
)

const (
	DefaultMaxSide = 400
	DefaultQuality = 80
)

var errBadKey = errors.New("invalid blob key")

// FileStore keeps every blob as a JPEG file at dir/key. Images larger than
// maxSide on either side are scaled down to fit before they are encoded.
type FileStore struct {
	dir     string
	baseURL string
	maxSide int
	quality int
	logger  *zap.Logger
}

func NewFileStore(dir, baseURL string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating blob dir: %w", err)
	}
	return &FileStore{
		dir:     dir,
		baseURL: baseURL,
		maxSide: DefaultMaxSide,
		quality: DefaultQuality,
		logger:  logger,
	}, nil
}

// Dir is the directory blobs are written to.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Put(ctx context.Context, key string, r io.Reader) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	src, format, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("decoding image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := fit(src, s.maxSide)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating blob dir: %w", err)
	}
	if err := writeJPEG(path, dst, s.quality); err != nil {
		return err
	}

	s.logger.Debug("blob stored",
		zap.String("key", key),
		zap.String("source_format", format),
		zap.Int("width", dst.Bounds().Dx()),
		zap.Int("height", dst.Bounds().Dy()))
	return nil
}

func (s *FileStore) URL(_ context.Context, key string) (string, error) {
	path, err := s.path(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("object %q does not exist", key)
	}
	return s.baseURL + "/" + key, nil
}

func (s *FileStore) path(key string) (string, error) {
	if key == "" || !filepath.IsLocal(key) {
		return "", fmt.Errorf("%w: %q", errBadKey, key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)), nil
}

// fit scales img down so neither side exceeds maxSide, keeping its aspect
// ratio. Smaller images are copied unscaled.
func fit(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxSide || h > maxSide {
		if w >= h {
			h = max(1, h*maxSide/w)
			w = maxSide
		} else {
			w = max(1, w*maxSide/h)
			h = maxSide
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// writeJPEG encodes into a temp file next to path and renames it in place so
// readers never see a partial image.
func writeJPEG(path string, img image.Image, quality int) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".blob-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: quality}); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saving image: %w", err)
	}
	return nil
}

var _ repository.BlobStore = (*FileStore)(nil)
