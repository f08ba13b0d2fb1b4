package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Codec sniffs upload content and converts uncommon raster formats to PNG.
type Codec struct {
	maxPixels int
}

func NewCodec(maxPixels int) *Codec {
	if maxPixels <= 0 {
		maxPixels = 40_000_000
	}
	return &Codec{maxPixels: maxPixels}
}

// Sniff reports the content type of data, ignoring whatever the client claimed.
func (c *Codec) Sniff(data []byte) string {
	if len(data) >= 4 {
		head := string(data[:4])
		if head == "II*\x00" || head == "MM\x00*" {
			return "image/tiff"
		}
	}
	mime, _, _ := strings.Cut(http.DetectContentType(data), ";")
	return strings.TrimSpace(mime)
}

// Rasterize decodes any registered image format and re-encodes it as PNG.
func (c *Codec) Rasterize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}
	if cfg.Width*cfg.Height > c.maxPixels {
		return nil, fmt.Errorf("%s image %dx%d exceeds pixel limit", format, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", format, err)
	}
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}
