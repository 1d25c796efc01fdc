package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	ErrEmptyImage = errors.New("image has no pixels")
	ErrTooLarge   = errors.New("image too large")
)

// Source is a decoded original, reusable for every width
type Source struct {
	img    image.Image
	format string
}

// Decode reads the header first and refuses images declaring more than
// maxPixels pixels, so the full decode never allocates past that bound.
func Decode(data []byte, maxPixels int64) (*Source, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return nil, ErrEmptyImage
	}
	return &Source{img: img, format: format}, nil
}

// Resize scales the source to width, keeping the aspect ratio. JPEGs stay
// JPEGs, everything else is written as PNG. The output only depends on the
// input bytes and width.
func (s *Source) Resize(width int) ([]byte, error) {
	if width < 1 {
		return nil, fmt.Errorf("invalid width %d", width)
	}
	b := s.img.Bounds()
	height := int(math.Round(float64(b.Dy()) * float64(width) / float64(b.Dx())))
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), s.img, b, draw.Src, nil)

	var buf bytes.Buffer
	var err error
	if s.format == "jpeg" {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	} else {
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
