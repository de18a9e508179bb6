package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	// PrintDPI is the output resolution the printability threshold is computed at.
	PrintDPI = 300
	// MinPrintablePixels is the smallest longest-edge pixel count that supports
	// a 12-inch print at PrintDPI. 3600px is eligible; 3599px is not.
	MinPrintablePixels = 12 * PrintDPI
)

// PrintEligible reports whether an image with the given pixel dimensions
// qualifies for print-quality import. Unknown dimensions are never eligible.
func PrintEligible(pixelWidth, pixelHeight int) bool {
	longest := pixelWidth
	if pixelHeight > longest {
		longest = pixelHeight
	}
	return longest >= MinPrintablePixels
}

// MaxPrintSize converts verified pixel dimensions to the maximum printable
// output per axis at PrintDPI, rounded to one decimal.
func MaxPrintSize(pixelWidth, pixelHeight int) PrintSize {
	return PrintSize{
		Width:  roundTenth(float64(pixelWidth) / PrintDPI),
		Height: roundTenth(float64(pixelHeight) / PrintDPI),
	}
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// DeriveOrientation classifies a work by its physical dimensions. Widths and
// heights within an inch of each other count as square.
func DeriveOrientation(widthInches, heightInches float64) Orientation {
	switch {
	case math.Abs(widthInches-heightInches) < 1:
		return OrientationSquare
	case widthInches > heightInches:
		return OrientationLandscape
	default:
		return OrientationPortrait
	}
}

var dimensionsPattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*x\s*([0-9]+(?:\.[0-9]+)?)(?:\s*x\s*([0-9]+(?:\.[0-9]+)?))?\s*$`)

// ParseDimensions parses a "WxH" or "WxHxD" inches string into a structured
// dimension record. Malformed input yields nil rather than an error; rows
// without usable dimensions still import.
func ParseDimensions(raw string) *Dimensions {
	cleaned := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, `"`, ""), "”", ""))
	if cleaned == "" {
		return nil
	}

	match := dimensionsPattern.FindStringSubmatch(cleaned)
	if match == nil {
		return nil
	}

	width, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil
	}
	height, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		return nil
	}

	dims := &Dimensions{Width: width, Height: height}
	if match[3] != "" {
		depth, err := strconv.ParseFloat(match[3], 64)
		if err == nil {
			dims.Depth = &depth
		}
	}
	return dims
}
