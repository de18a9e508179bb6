package imaging

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/bep/imagemeta"
	_ "golang.org/x/image/webp"
)

var errEmptyImage = errors.New("imaging: image payload is empty")

// DecodeDimensions reads the pixel dimensions from raw image bytes without
// decoding the full raster.
func DecodeDimensions(data []byte) (int, int, error) {
	if len(data) == 0 {
		return 0, 0, errEmptyImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// ExtractArtist pulls an artist attribution out of embedded EXIF/XMP metadata.
// Returns "" when no usable field is present; never returns an error because
// metadata is strictly optional enrichment.
func ExtractArtist(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	var artist string
	err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Tag == "Artist" || ti.Tag == "creator"
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if artist != "" {
				return nil
			}
			if value, ok := ti.Value.(string); ok {
				artist = strings.TrimSpace(value)
			}
			return nil
		},
	})
	if err != nil {
		return ""
	}
	return artist
}
