package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// Variant identifies one of the rendered image sizes stored per work.
type Variant string

const (
	VariantSource    Variant = "source"
	VariantPreview   Variant = "preview"
	VariantThumbnail Variant = "thumbnail"
)

// Variants lists every rendition uploaded for a work, in upload order.
var Variants = []Variant{VariantSource, VariantPreview, VariantThumbnail}

const placeholderBaseURL = "https://placehold.co/600x600/jpg"

// Valid reports whether the variant is one of the known renditions.
func (v Variant) Valid() bool {
	switch v {
	case VariantSource, VariantPreview, VariantThumbnail:
		return true
	default:
		return false
	}
}

// WorkObjectPath composes the bucket object key for a work's image variant.
func WorkObjectPath(workID string, variant Variant) (string, error) {
	id, err := validateSegment("workID", workID)
	if err != nil {
		return "", err
	}
	if !variant.Valid() {
		return "", fmt.Errorf("storage: unsupported variant %q", variant)
	}
	return fmt.Sprintf("works/%s/%s.jpg", id, variant), nil
}

// PlaceholderURL builds a deterministic stand-in URL used when no bucket is
// configured. The title rides along as a query parameter so the frontend can
// render something recognisable.
func PlaceholderURL(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return placeholderBaseURL
	}
	return placeholderBaseURL + "?text=" + url.QueryEscape(title)
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}
