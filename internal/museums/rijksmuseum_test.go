package museums

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newRijksTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/search/collection", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageToken") == "abc" {
			fmt.Fprintf(w, `{"partOf": {"totalItems": 2}, "orderedItems": [{"id": "%s/collection/SK-A-1115"}]}`, server.URL)
			return
		}
		if r.URL.Query().Get("text") != "nightwatch" {
			t.Errorf("text = %q", r.URL.Query().Get("text"))
		}
		fmt.Fprintf(w, `{"partOf": {"totalItems": 2},
			"orderedItems": [{"id": "%s/collection/SK-C-5"}],
			"next": {"id": "%s/search/collection?pageToken=abc"}}`, server.URL, server.URL)
	})
	mux.HandleFunc("/api/oai/test-key", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("verb") != "GetRecord" {
			t.Errorf("verb = %q", r.URL.Query().Get("verb"))
		}
		identifier := r.URL.Query().Get("identifier")
		if identifier == "oai:rijksmuseum.nl:MISSING" {
			w.Write([]byte(`<?xml version="1.0"?><OAI-PMH><error code="idDoesNotExist">not found</error></OAI-PMH>`))
			return
		}
		fmt.Fprintf(w, `<?xml version="1.0"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
  <GetRecord>
    <record>
      <metadata>
        <oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/" xmlns:dc="http://purl.org/dc/elements/1.1/">
          <dc:title>The Night Watch</dc:title>
          <dc:creator>Rembrandt van Rijn (1606-1669)</dc:creator>
          <dc:identifier>https://www.rijksmuseum.nl/collection/SK-C-5</dc:identifier>
          <dc:identifier>%s/media/SK-C-5.jpg</dc:identifier>
        </oai_dc:dc>
      </metadata>
    </record>
  </GetRecord>
</OAI-PMH>`, server.URL)
	})
	mux.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		w.Write(jpegHead4000x3000)
	})

	server = httptest.NewServer(mux)
	return server
}

func newRijksTestSource(t *testing.T, server *httptest.Server) *RijksmuseumSource {
	t.Helper()
	source, err := NewRijksmuseumSource(NewClient("test", 0), "test-key",
		server.URL+"/search/collection", server.URL+"/api/oai")
	if err != nil {
		t.Fatalf("NewRijksmuseumSource: %v", err)
	}
	return source
}

func TestRijksmuseumSearch(t *testing.T) {
	server := newRijksTestServer(t)
	defer server.Close()
	source := newRijksTestSource(t, server)

	result, err := source.Search(context.Background(), "nightwatch", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("total = %d, want 2", result.Total)
	}
	if len(result.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(result.Items))
	}

	got := result.Items[0]
	if got.SourceID != "SK-C-5" {
		t.Fatalf("source id = %q, want object number", got.SourceID)
	}
	if got.Title != "The Night Watch" {
		t.Fatalf("title = %q", got.Title)
	}
	if got.Artist != "Rembrandt van Rijn" {
		t.Fatalf("artist = %q", got.Artist)
	}
	if got.PixelWidth != 4000 || got.PixelHeight != 3000 {
		t.Fatalf("dimensions = %dx%d", got.PixelWidth, got.PixelHeight)
	}
}

func TestRijksmuseumSearchFollowsPageTokens(t *testing.T) {
	server := newRijksTestServer(t)
	defer server.Close()
	source := newRijksTestSource(t, server)

	result, err := source.Search(context.Background(), "nightwatch", 2)
	if err != nil {
		t.Fatalf("Search page 2: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].SourceID != "SK-A-1115" {
		t.Fatalf("unexpected page 2 items: %+v", result.Items)
	}

	source.mu.Lock()
	cached := source.tokens["nightwatch"][2]
	source.mu.Unlock()
	if cached == "" {
		t.Fatal("expected page 2 token to be cached")
	}
}

func TestRijksmuseumResolveDetailMissing(t *testing.T) {
	server := newRijksTestServer(t)
	defer server.Close()
	source := newRijksTestSource(t, server)

	_, ok, err := source.ResolveDetail(context.Background(), "MISSING")
	if err != nil {
		t.Fatalf("ResolveDetail: %v", err)
	}
	if ok {
		t.Fatal("expected missing identifier to report ok=false")
	}
}
