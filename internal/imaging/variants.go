package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const (
	// PreviewMaxEdge bounds the longest edge of the preview rendition.
	PreviewMaxEdge = 1600
	// ThumbnailMaxEdge bounds the longest edge of the thumbnail rendition.
	ThumbnailMaxEdge = 400

	sourceJPEGQuality  = 95
	derivedJPEGQuality = 85
)

// VariantSet holds the three JPEG renditions produced for one work.
type VariantSet struct {
	Source    []byte
	Preview   []byte
	Thumbnail []byte
	Width     int
	Height    int
}

// BuildVariants decodes the raw image and produces the normalized source copy
// plus preview and thumbnail renditions. Renditions are never upscaled: an
// image smaller than a rendition's max edge is re-encoded at its native size.
func BuildVariants(data []byte) (VariantSet, error) {
	if len(data) == 0 {
		return VariantSet{}, errEmptyImage
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return VariantSet{}, fmt.Errorf("imaging: decode: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return VariantSet{}, fmt.Errorf("imaging: degenerate image %dx%d", width, height)
	}

	source, err := encodeJPEG(img, sourceJPEGQuality)
	if err != nil {
		return VariantSet{}, err
	}
	preview, err := encodeJPEG(scaleDown(img, PreviewMaxEdge), derivedJPEGQuality)
	if err != nil {
		return VariantSet{}, err
	}
	thumbnail, err := encodeJPEG(scaleDown(img, ThumbnailMaxEdge), derivedJPEGQuality)
	if err != nil {
		return VariantSet{}, err
	}

	return VariantSet{
		Source:    source,
		Preview:   preview,
		Thumbnail: thumbnail,
		Width:     width,
		Height:    height,
	}, nil
}

// scaleDown resizes the image so its longest edge is at most maxEdge,
// preserving aspect ratio. Images already within the bound are returned
// unchanged.
func scaleDown(img image.Image, maxEdge int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	longest := width
	if height > longest {
		longest = height
	}
	if longest <= maxEdge {
		return img
	}

	scale := float64(maxEdge) / float64(longest)
	newWidth := int(float64(width)*scale + 0.5)
	newHeight := int(float64(height)*scale + 0.5)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("imaging: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
