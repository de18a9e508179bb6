package museums

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/galleryprints/catalog-api/internal/domain"
)

// jpegHead4000x3000 is a minimal JPEG prefix with an SOF0 reporting 4000x3000.
var jpegHead4000x3000 = []byte{
	0xFF, 0xD8,
	0xFF, 0xC0, 0x00, 0x11, 0x08, 0x0B, 0xB8, 0x0F, 0xA0, 0x03,
}

func newMetTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("hasImages") != "true" {
			t.Errorf("missing hasImages filter: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"total": 3, "objectIDs": [11, 22, 33]}`))
	})
	mux.HandleFunc("/objects/11", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"objectID": 11, "accessionNumber": "29.100.113", "isPublicDomain": true,
			"title": "Bridge over a Pond", "artistDisplayName": "Claude Monet",
			"primaryImage": "%s/img/11.jpg", "primaryImageSmall": "%s/img/11-small.jpg"}`,
			server.URL, server.URL)
	})
	mux.HandleFunc("/objects/22", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"objectID": 22, "accessionNumber": "12.34.5", "isPublicDomain": false,
			"title": "Restricted", "primaryImage": "https://img.example/22.jpg"}`))
	})
	mux.HandleFunc("/objects/33", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"objectID": 33, "accessionNumber": "56.78.9", "isPublicDomain": true,
			"title": "No Image", "primaryImage": ""}`))
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		w.Write(jpegHead4000x3000)
	})

	server = httptest.NewServer(mux)
	return server
}

func TestMetSearch(t *testing.T) {
	server := newMetTestServer(t)
	defer server.Close()

	source, err := NewMetSource(NewClient("test", 0), server.URL)
	if err != nil {
		t.Fatalf("NewMetSource: %v", err)
	}

	result, err := source.Search(context.Background(), "monet", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Total != 3 {
		t.Fatalf("total = %d, want 3", result.Total)
	}
	// Object 22 is not public domain, object 33 has no image.
	if len(result.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(result.Items))
	}

	got := result.Items[0]
	if got.SourceID != "29.100.113" {
		t.Fatalf("source id = %q, want accession number", got.SourceID)
	}
	if got.ImageRef != "11" {
		t.Fatalf("image ref = %q, want raw object id", got.ImageRef)
	}
	if got.PixelWidth != 4000 || got.PixelHeight != 3000 {
		t.Fatalf("dimensions = %dx%d", got.PixelWidth, got.PixelHeight)
	}
}

func TestMetSearchPageBeyondResults(t *testing.T) {
	server := newMetTestServer(t)
	defer server.Close()

	source, _ := NewMetSource(NewClient("test", 0), server.URL)
	result, err := source.Search(context.Background(), "monet", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Total != 3 || len(result.Items) != 0 {
		t.Fatalf("expected empty page with total 3, got total=%d items=%d", result.Total, len(result.Items))
	}
}

func TestMetResolveDetail(t *testing.T) {
	server := newMetTestServer(t)
	defer server.Close()

	source, _ := NewMetSource(NewClient("test", 0), server.URL)
	detail, ok, err := source.ResolveDetail(context.Background(), "11")
	if err != nil {
		t.Fatalf("ResolveDetail: %v", err)
	}
	if !ok {
		t.Fatal("expected detail to resolve")
	}
	if detail.SourceType != domain.SourceMet || detail.SourceID != "29.100.113" {
		t.Fatalf("unexpected identity %s/%s", detail.SourceType, detail.SourceID)
	}
	if detail.PixelWidth != 4000 {
		t.Fatalf("width = %d", detail.PixelWidth)
	}

	if _, _, err := source.ResolveDetail(context.Background(), "not-a-number"); err == nil {
		t.Fatal("expected error for non-numeric object id")
	}
}
