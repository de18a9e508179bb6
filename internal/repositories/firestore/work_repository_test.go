package firestore

import (
	"testing"
	"time"

	domain "github.com/galleryprints/catalog-api/internal/domain"
)

func TestEncodeWorkDocumentCarriesDimensions(t *testing.T) {
	depth := 1.5
	work := domain.Work{
		GPSku:      "GP2026-0001",
		Title:      "Coastal Dawn",
		ArtistName: "Jane Doe",
		WorkType:   domain.WorkTypePainting,
		SourceType: domain.SourceMet,
		SourceID:   "436121",
		Dimensions: &domain.Dimensions{Width: 24, Height: 36, Depth: &depth},
		Status:     domain.WorkStatusActive,
		CreatedAt:  time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC),
	}

	doc := encodeWorkDocument(work)

	if doc.WidthInches == nil || *doc.WidthInches != 24 {
		t.Fatalf("expected width 24, got %v", doc.WidthInches)
	}
	if doc.HeightInches == nil || *doc.HeightInches != 36 {
		t.Fatalf("expected height 36, got %v", doc.HeightInches)
	}
	if doc.DepthInches == nil || *doc.DepthInches != depth {
		t.Fatalf("expected depth %v, got %v", depth, doc.DepthInches)
	}
}

func TestEncodeWorkDocumentOmitsAbsentDimensions(t *testing.T) {
	doc := encodeWorkDocument(domain.Work{GPSku: "GP2026-0002", Title: "Sunset"})

	if doc.WidthInches != nil || doc.HeightInches != nil || doc.DepthInches != nil {
		t.Fatalf("expected nil dimension fields, got %v %v %v", doc.WidthInches, doc.HeightInches, doc.DepthInches)
	}
}

func TestDecodeWorkDocumentRoundTripsDimensions(t *testing.T) {
	depth := 2.0
	original := domain.Work{
		GPSku:      "GP2026-0003",
		Title:      "Winter Field",
		ArtistName: "A. Painter",
		WorkType:   domain.WorkTypePainting,
		SourceType: domain.SourceRijksmuseum,
		SourceID:   "SK-C-5",
		Dimensions: &domain.Dimensions{Width: 18.25, Height: 30.5, Depth: &depth},
		Status:     domain.WorkStatusActive,
	}

	decoded := decodeWorkDocument("work-1", encodeWorkDocument(original))

	if decoded.Dimensions == nil {
		t.Fatal("expected dimensions to survive the round trip")
	}
	if decoded.Dimensions.Width != original.Dimensions.Width {
		t.Fatalf("expected width %v, got %v", original.Dimensions.Width, decoded.Dimensions.Width)
	}
	if decoded.Dimensions.Height != original.Dimensions.Height {
		t.Fatalf("expected height %v, got %v", original.Dimensions.Height, decoded.Dimensions.Height)
	}
	if decoded.Dimensions.Depth == nil || *decoded.Dimensions.Depth != depth {
		t.Fatalf("expected depth %v, got %v", depth, decoded.Dimensions.Depth)
	}
	if decoded.ID != "work-1" {
		t.Fatalf("expected id work-1, got %s", decoded.ID)
	}
}

func TestDecodeWorkDocumentWithoutDimensions(t *testing.T) {
	decoded := decodeWorkDocument("work-2", workDocument{GPSku: "GP2026-0004", Title: "Sketch"})

	if decoded.Dimensions != nil {
		t.Fatalf("expected nil dimensions, got %+v", decoded.Dimensions)
	}
}

func TestSourceKeyIsDeterministicAndSlashSafe(t *testing.T) {
	a := sourceKey(domain.SourceGetty, "http://www.getty.edu/art/collection/object/103ABC")
	b := sourceKey(domain.SourceGetty, " http://www.getty.edu/art/collection/object/103ABC ")
	if a != b {
		t.Fatalf("expected trimmed source ids to hash alike, got %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected a hex digest id, got %q", a)
	}
	if c := sourceKey(domain.SourceMet, "103ABC"); c == a {
		t.Fatal("expected different sources to produce different keys")
	}
}
