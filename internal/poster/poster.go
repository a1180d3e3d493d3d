// Package poster normalises uploaded movie posters and stores them on disk.
package poster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

const (
	Width   = 229
	Height  = 336
	Quality = 90

	// MaxUploadBytes caps the size of an uploaded poster before decoding.
	MaxUploadBytes = 5 << 20
)

var ErrUnsupportedImage = errors.New("unsupported image format")

// Process decodes a JPEG, PNG or GIF image, scales it to cover Width x Height
// (cropping the overflow around the centre) and re-encodes it as JPEG.
func Process(r io.Reader) ([]byte, error) {
	src, _, err := image.Decode(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedImage
		}
		return nil, fmt.Errorf("decode poster: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, coverRect(src.Bounds()), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("encode poster: %w", err)
	}

	return buf.Bytes(), nil
}

// coverRect returns the centred region of b with the poster's aspect ratio.
func coverRect(b image.Rectangle) image.Rectangle {
	w, h := b.Dx(), b.Dy()

	// Compare w/h with Width/Height without floating point.
	if w*Height > h*Width {
		cropW := h * Width / Height
		x0 := b.Min.X + (w-cropW)/2
		return image.Rect(x0, b.Min.Y, x0+cropW, b.Max.Y)
	}

	cropH := w * Height / Width
	y0 := b.Min.Y + (h-cropH)/2
	return image.Rect(b.Min.X, y0, b.Max.X, y0+cropH)
}

// DiskStore writes processed posters to Dir and exposes them under URLPrefix.
type DiskStore struct {
	Dir       string
	URLPrefix string
}

// Save writes data under a unique key derived from the uploaded file name
// and returns the public URL of the file.
func (s DiskStore) Save(originalName string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}

	key := Key(originalName)
	if err := os.WriteFile(filepath.Join(s.Dir, key), data, 0o644); err != nil {
		return "", err
	}

	return path.Join(s.URLPrefix, key), nil
}

// Key builds "<uuid>-<base name>.jpeg" from an uploaded file name. Only
// letters, digits, '-' and '_' survive from the base name.
func Key(originalName string) string {
	base := filepath.Base(originalName)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, base)

	if clean == "" {
		return uuid.NewString() + ".jpeg"
	}
	return uuid.NewString() + "-" + clean + ".jpeg"
}
