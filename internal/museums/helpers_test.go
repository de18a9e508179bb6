package museums

import (
	"testing"

	domain "github.com/galleryprints/catalog-api/internal/domain"
)

func TestCleanArtistName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Claude Monet (French, 1840-1926)", "Claude Monet"},
		{"Artist: Johannes Vermeer", "Johannes Vermeer"},
		{"attributed to: Rembrandt van Rijn (Dutch) (workshop)", "Rembrandt van Rijn"},
		{"  Vincent van Gogh  ", "Vincent van Gogh"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := CleanArtistName(tc.in); got != tc.want {
			t.Fatalf("CleanArtistName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFilterPrintable(t *testing.T) {
	candidates := []domain.Candidate{
		{SourceID: "big", PixelWidth: 4000, PixelHeight: 3000},
		{SourceID: "small", PixelWidth: 1200, PixelHeight: 900},
		{SourceID: "unverified"},
	}

	filtered := FilterPrintable(candidates)
	if len(filtered) != 1 {
		t.Fatalf("expected 1 printable candidate, got %d", len(filtered))
	}
	if filtered[0].SourceID != "big" {
		t.Fatalf("unexpected survivor %q", filtered[0].SourceID)
	}
	if filtered[0].MaxPrintInches == nil {
		t.Fatal("expected survivor to carry max print size")
	}
	if filtered[0].MaxPrintInches.Width != 13.3 {
		t.Fatalf("unexpected max print width %v", filtered[0].MaxPrintInches.Width)
	}
}

func TestParseJPEGSOF(t *testing.T) {
	head := []byte{
		0xFF, 0xD8, // SOI
		0xFF, 0xE0, 0x00, 0x04, 0x00, 0x00, // APP0, skipped
		0xFF, 0xC0, 0x00, 0x11, 0x08, 0x0B, 0xB8, 0x0F, 0xA0, 0x03, // SOF0 3000x4000
	}
	width, height, err := parseJPEGSOF(head)
	if err != nil {
		t.Fatalf("parseJPEGSOF: %v", err)
	}
	if width != 4000 || height != 3000 {
		t.Fatalf("got %dx%d, want 4000x3000", width, height)
	}

	if _, _, err := parseJPEGSOF([]byte{0x00, 0x01, 0x02, 0x03}); err == nil {
		t.Fatal("expected error for non-jpeg data")
	}
	if _, _, err := parseJPEGSOF([]byte{0xFF, 0xD8, 0xFF, 0xD9}); err == nil {
		t.Fatal("expected error when no frame header is present")
	}
}

func TestRegistryLookup(t *testing.T) {
	client := NewClient("test", 0)
	cleveland, err := NewClevelandSource(client, "")
	if err != nil {
		t.Fatalf("NewClevelandSource: %v", err)
	}
	registry, err := NewRegistry(cleveland)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if _, err := registry.Lookup(domain.SourceCleveland); err != nil {
		t.Fatalf("Lookup(cleveland): %v", err)
	}
	if _, err := registry.Lookup(domain.SourceMet); err == nil {
		t.Fatal("expected unknown source error")
	}
}
