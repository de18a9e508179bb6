package museums

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newYaleTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/api/search/item", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Query().Get("q"), `"text":"turner"`) {
			t.Errorf("q = %q", r.URL.Query().Get("q"))
		}
		fmt.Fprintf(w, `{"partOf": {"totalItems": 3},
			"orderedItems": [{"id": "%s/data/object/abc"}, {"id": "%s/data/object/noimage"}]}`,
			server.URL, server.URL)
	})
	mux.HandleFunc("/data/object/abc", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"id": "%s/data/object/abc",
			"_label": "object abc",
			"identified_by": [{"type": "Name", "content": "Dort or Dordrecht"}],
			"produced_by": {"part": [{"carried_out_by": [{"_label": "Joseph Mallord William Turner (1775-1851)"}]}]},
			"representation": [{"digitally_shown_by": [{"access_point": [{"id": "%s/iiif/2/abc/full/full/0/default.jpg"}]}]}]
		}`, server.URL, server.URL)
	})
	mux.HandleFunc("/data/object/noimage", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id": "%s/data/object/noimage", "_label": "no image", "representation": []}`, server.URL)
	})
	mux.HandleFunc("/iiif/2/abc/info.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"width": 6000, "height": 4400}`))
	})

	server = httptest.NewServer(mux)
	return server
}

func TestYaleSearch(t *testing.T) {
	server := newYaleTestServer(t)
	defer server.Close()

	source, err := NewYaleSource(NewClient("test", 0), server.URL+"/api/search/item")
	if err != nil {
		t.Fatalf("NewYaleSource: %v", err)
	}

	result, err := source.Search(context.Background(), "turner", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Total != 3 {
		t.Fatalf("total = %d, want 3", result.Total)
	}
	// The object without a representation resolves as ineligible.
	if len(result.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(result.Items))
	}

	got := result.Items[0]
	if got.Title != "Dort or Dordrecht" {
		t.Fatalf("title = %q", got.Title)
	}
	if got.Artist != "Joseph Mallord William Turner" {
		t.Fatalf("artist = %q", got.Artist)
	}
	if got.PixelWidth != 6000 || got.PixelHeight != 4400 {
		t.Fatalf("dimensions = %dx%d", got.PixelWidth, got.PixelHeight)
	}
}

func TestYaleResolveDetail(t *testing.T) {
	server := newYaleTestServer(t)
	defer server.Close()

	source, _ := NewYaleSource(NewClient("test", 0), server.URL+"/api/search/item")
	detail, ok, err := source.ResolveDetail(context.Background(), server.URL+"/data/object/abc")
	if err != nil {
		t.Fatalf("ResolveDetail: %v", err)
	}
	if !ok {
		t.Fatal("expected detail to resolve")
	}
	if !strings.HasSuffix(detail.FullImageURL, "/iiif/2/abc/full/full/0/default.jpg") {
		t.Fatalf("full image = %q", detail.FullImageURL)
	}

	_, ok, err = source.ResolveDetail(context.Background(), server.URL+"/data/object/noimage")
	if err != nil {
		t.Fatalf("ResolveDetail: %v", err)
	}
	if ok {
		t.Fatal("expected image-less object to report ok=false")
	}
}
