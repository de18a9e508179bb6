package imaging

import (
	"bytes"
	"image"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
)

const (
	swatchSampleEdge = 64
	// swatchMinDistance is the minimum CIE76 distance between reported
	// swatches so near-identical shades collapse into one.
	swatchMinDistance = 0.12
)

// DominantColors extracts up to limit dominant color swatches as lowercase
// hex strings, most frequent first. Returns nil when the image cannot be
// decoded; swatches are best-effort decoration, not pipeline state.
func DominantColors(data []byte, limit int) []string {
	if len(data) == 0 || limit <= 0 {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	sample := image.NewRGBA(image.Rect(0, 0, swatchSampleEdge, swatchSampleEdge))
	draw.ApproxBiLinear.Scale(sample, sample.Bounds(), img, img.Bounds(), draw.Src, nil)

	// Quantise to 4 bits per channel to pool nearby shades.
	counts := make(map[uint32]int)
	for y := 0; y < swatchSampleEdge; y++ {
		for x := 0; x < swatchSampleEdge; x++ {
			r, g, b, a := sample.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			key := (r >> 12 << 8) | (g >> 12 << 4) | (b >> 12)
			counts[key]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	type bucket struct {
		key   uint32
		count int
	}
	buckets := make([]bucket, 0, len(counts))
	for key, count := range counts {
		buckets = append(buckets, bucket{key: key, count: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].count != buckets[j].count {
			return buckets[i].count > buckets[j].count
		}
		return buckets[i].key < buckets[j].key
	})

	var (
		swatches []string
		picked   []colorful.Color
	)
	for _, b := range buckets {
		c := colorful.Color{
			R: float64(b.key>>8&0xF) / 15.0,
			G: float64(b.key>>4&0xF) / 15.0,
			B: float64(b.key&0xF) / 15.0,
		}
		distinct := true
		for _, prev := range picked {
			if c.DistanceLab(prev) < swatchMinDistance {
				distinct = false
				break
			}
		}
		if !distinct {
			continue
		}
		picked = append(picked, c)
		swatches = append(swatches, c.Hex())
		if len(swatches) >= limit {
			break
		}
	}
	return swatches
}
