package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	domain "github.com/galleryprints/catalog-api/internal/domain"
	"github.com/galleryprints/catalog-api/internal/museums"
	"github.com/galleryprints/catalog-api/internal/tagging"
)

func newImportFixture(t *testing.T, source *stubSource, works *stubWorkRepository, deps func(*ImportServiceDeps)) ImportService {
	t.Helper()
	registry, err := museums.NewRegistry(source)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	var serial int32
	d := ImportServiceDeps{
		Sources:  registry,
		Works:    works,
		Counters: &stubCounterRepository{},
		Clock:    fixedClock,
		IDGen: func() string {
			return fmt.Sprintf("work-%04d", atomic.AddInt32(&serial, 1))
		},
	}
	if deps != nil {
		deps(&d)
	}
	service, err := NewImportService(d)
	if err != nil {
		t.Fatalf("NewImportService: %v", err)
	}
	return service
}

func TestImportFromSourceSkipsAlreadyImported(t *testing.T) {
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(testJPEG(t, 80, 60))
	}))
	defer imageServer.Close()

	source := &stubSource{
		name: domain.SourceMet,
		results: map[string]domain.Detail{
			"A": {SourceType: domain.SourceMet, SourceID: "A", Title: "First", Artist: "Jane Doe", FullImageURL: imageServer.URL + "/a.jpg"},
			"C": {SourceType: domain.SourceMet, SourceID: "C", Title: "Third", Artist: "John Roe", FullImageURL: imageServer.URL + "/c.jpg"},
		},
	}
	works := newStubWorkRepository()
	works.existing["B"] = true

	service := newImportFixture(t, source, works, nil)
	batch, err := service.ImportFromSource(context.Background(), domain.SourceMet, []string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("ImportFromSource: %v", err)
	}

	if batch.Total != 3 || batch.SuccessCount != 2 || batch.SkippedCount != 1 || batch.ErrorCount != 0 {
		t.Fatalf("counts = %+v", batch)
	}
	if batch.Results[1].Error != AlreadyImportedMessage || !batch.Results[1].Success {
		t.Fatalf("already-imported row = %+v", batch.Results[1])
	}
	if len(works.created) != 2 {
		t.Fatalf("created = %d, want 2", len(works.created))
	}

	for _, result := range []domain.ImportResult{batch.Results[0], batch.Results[2]} {
		if !result.Success || result.GPSku == "" {
			t.Fatalf("unexpected result %+v", result)
		}
		if !strings.HasPrefix(result.GPSku, "GP2026") {
			t.Fatalf("sku = %q, want GP2026 prefix", result.GPSku)
		}
	}
	if batch.Results[0].GPSku == batch.Results[2].GPSku {
		t.Fatal("sequential imports must receive distinct skus")
	}
}

func TestImportFromSourceRowFailuresDoNotAbortBatch(t *testing.T) {
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "broken") {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Write(testJPEG(t, 80, 60))
	}))
	defer imageServer.Close()

	source := &stubSource{
		name: domain.SourceMet,
		results: map[string]domain.Detail{
			"ok":     {SourceType: domain.SourceMet, SourceID: "ok", Title: "Fine", FullImageURL: imageServer.URL + "/ok.jpg"},
			"broken": {SourceType: domain.SourceMet, SourceID: "broken", Title: "Broken", FullImageURL: imageServer.URL + "/broken.jpg"},
		},
	}
	works := newStubWorkRepository()

	service := newImportFixture(t, source, works, nil)
	batch, err := service.ImportFromSource(context.Background(), domain.SourceMet, []string{"ok", "broken", "missing"})
	if err != nil {
		t.Fatalf("ImportFromSource: %v", err)
	}

	if batch.SuccessCount != 1 || batch.ErrorCount != 2 {
		t.Fatalf("counts = %+v", batch)
	}
	if !strings.Contains(batch.Results[1].Error, "image fetch failed") {
		t.Fatalf("broken row error = %q", batch.Results[1].Error)
	}
	if !strings.Contains(batch.Results[2].Error, "no importable detail") {
		t.Fatalf("missing row error = %q", batch.Results[2].Error)
	}
}

func TestImportFromSourceValidatesInput(t *testing.T) {
	service := newImportFixture(t, &stubSource{name: domain.SourceMet}, newStubWorkRepository(), nil)

	if _, err := service.ImportFromSource(context.Background(), domain.SourceMet, nil); !errors.Is(err, ErrImportInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := service.ImportFromSource(context.Background(), domain.SourceYale, []string{"x"}); !errors.Is(err, ErrImportInvalidInput) {
		t.Fatalf("expected unknown source to be invalid input, got %v", err)
	}
}

func TestImportRowsPipeline(t *testing.T) {
	works := newStubWorkRepository()
	works.existing["dup-id"] = true
	uploader := &stubUploader{}

	service := newImportFixture(t, &stubSource{name: domain.SourceMet}, works, func(d *ImportServiceDeps) {
		d.Uploader = uploader
	})

	rows := []RowInput{
		{Row: domain.NormalizedRow{Title: "Good", ArtistName: "Jane Doe", WorkType: domain.WorkTypePainting, SourceType: domain.SourceCSV, SourceID: "good-id", DimensionsInches: "24x36"}, Image: testJPEG(t, 80, 60)},
		{Row: domain.NormalizedRow{Title: "Broken", WorkType: domain.WorkTypePainting}, RowError: `file matching: no image named "broken.jpg" in upload`},
		{Row: domain.NormalizedRow{Title: "Copy", WorkType: domain.WorkTypeOther}, DuplicateOf: "good.jpg"},
		{Row: domain.NormalizedRow{Title: "Seen", WorkType: domain.WorkTypePainting, SourceType: domain.SourceCSV, SourceID: "dup-id"}, Image: testJPEG(t, 40, 40)},
	}

	batch, err := service.ImportRows(context.Background(), rows, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	if batch.Total != 4 || batch.SuccessCount != 1 || batch.SkippedCount != 2 || batch.ErrorCount != 1 {
		t.Fatalf("counts = %+v", batch)
	}
	if batch.Results[3].Error != AlreadyImportedMessage {
		t.Fatalf("dedup row = %+v", batch.Results[3])
	}

	if len(works.created) != 1 {
		t.Fatalf("created = %d, want 1", len(works.created))
	}
	work := works.created[0]
	if work.Orientation != domain.OrientationPortrait {
		t.Fatalf("orientation = %q, want portrait from 24x36", work.Orientation)
	}
	if work.Dimensions == nil || work.Dimensions.Width != 24 {
		t.Fatalf("dimensions = %+v", work.Dimensions)
	}
	if work.PixelWidth != 80 || work.PixelHeight != 60 {
		t.Fatalf("pixel dims = %dx%d", work.PixelWidth, work.PixelHeight)
	}
	if work.Status != domain.WorkStatusActive {
		t.Fatalf("status = %q", work.Status)
	}
	if !strings.Contains(work.SourceImageURL, "/works/"+work.ID+"/source.jpg") {
		t.Fatalf("source url = %q", work.SourceImageURL)
	}
	if len(uploader.objects) != 3 {
		t.Fatalf("uploaded objects = %d, want 3", len(uploader.objects))
	}
}

func TestImportRowsPlaceholderWhenStorageUnconfigured(t *testing.T) {
	works := newStubWorkRepository()
	service := newImportFixture(t, &stubSource{name: domain.SourceMet}, works, nil)

	rows := []RowInput{{
		Row:   domain.NormalizedRow{Title: "Coastal Dawn", WorkType: domain.WorkTypePainting, SourceType: domain.SourceCSV, SourceID: "cd-1"},
		Image: testJPEG(t, 80, 60),
	}}
	batch, err := service.ImportRows(context.Background(), rows, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	if batch.SuccessCount != 1 {
		t.Fatalf("counts = %+v", batch)
	}

	work := works.created[0]
	if !strings.Contains(work.PreviewImageURL, "placehold") {
		t.Fatalf("preview url = %q, want placeholder", work.PreviewImageURL)
	}
	if !strings.Contains(work.PreviewImageURL, "Coastal+Dawn") {
		t.Fatalf("placeholder must carry the title, got %q", work.PreviewImageURL)
	}
}

func TestImportRowsTaggingIsBestEffort(t *testing.T) {
	works := newStubWorkRepository()
	service := newImportFixture(t, &stubSource{name: domain.SourceMet}, works, func(d *ImportServiceDeps) {
		d.Tagger = &stubTagger{tagErr: errors.New("model unavailable")}
	})

	rows := []RowInput{{
		Row:   domain.NormalizedRow{Title: "Untagged", WorkType: domain.WorkTypePainting, SourceType: domain.SourceCSV, SourceID: "u-1"},
		Image: testJPEG(t, 80, 60),
	}}
	batch, err := service.ImportRows(context.Background(), rows, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	if batch.SuccessCount != 1 {
		t.Fatalf("tagging failure must not fail the row: %+v", batch)
	}
	if len(works.created[0].AiTagsHero) != 0 {
		t.Fatalf("hero tags = %v, want empty", works.created[0].AiTagsHero)
	}
	if len(works.embeddings) != 0 {
		t.Fatal("no embedding expected after tagging failure")
	}
}

func TestImportRowsEmbeddingSelectsVectorPath(t *testing.T) {
	works := newStubWorkRepository()
	service := newImportFixture(t, &stubSource{name: domain.SourceMet}, works, func(d *ImportServiceDeps) {
		d.Tagger = &stubTagger{
			result: tagging.TagResult{Hero: []string{"garden"}, Hidden: []string{"pond"}, Medium: "oil on canvas"},
			vector: []float32{0.1, 0.2},
		}
	})

	rows := []RowInput{{
		Row:   domain.NormalizedRow{Title: "Tagged", WorkType: domain.WorkTypePainting, SourceType: domain.SourceCSV, SourceID: "t-1"},
		Image: testJPEG(t, 80, 60),
	}}
	if _, err := service.ImportRows(context.Background(), rows, ImportOptions{}); err != nil {
		t.Fatalf("ImportRows: %v", err)
	}

	work := works.created[0]
	if work.Medium != "oil on canvas" || len(work.AiTagsHero) != 1 {
		t.Fatalf("work tags = %+v", work)
	}
	if len(works.embeddings[work.ID]) != 2 {
		t.Fatalf("embedding missing for %s", work.ID)
	}
	if len(work.Colors) == 0 {
		t.Fatal("expected at least one color swatch")
	}
}

func TestImportRowsSkipAITagging(t *testing.T) {
	works := newStubWorkRepository()
	called := false
	service := newImportFixture(t, &stubSource{name: domain.SourceMet}, works, func(d *ImportServiceDeps) {
		d.Tagger = &taggerSpy{called: &called}
	})

	rows := []RowInput{{
		Row:   domain.NormalizedRow{Title: "Plain", WorkType: domain.WorkTypePainting, SourceType: domain.SourceCSV, SourceID: "p-1"},
		Image: testJPEG(t, 80, 60),
	}}
	if _, err := service.ImportRows(context.Background(), rows, ImportOptions{SkipAITagging: true}); err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	if called {
		t.Fatal("tagger must not be called when tagging is skipped")
	}
}

func TestImportRowsConflictReportsAlreadyImported(t *testing.T) {
	works := newStubWorkRepository()
	works.conflictOnAll = true
	service := newImportFixture(t, &stubSource{name: domain.SourceMet}, works, nil)

	rows := []RowInput{{
		Row:   domain.NormalizedRow{Title: "Raced", WorkType: domain.WorkTypePainting, SourceType: domain.SourceCSV, SourceID: "r-1"},
		Image: testJPEG(t, 80, 60),
	}}
	batch, err := service.ImportRows(context.Background(), rows, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	if batch.SkippedCount != 1 || batch.Results[0].Error != AlreadyImportedMessage {
		t.Fatalf("conflict row = %+v", batch.Results[0])
	}
}

type taggerSpy struct {
	called *bool
}

func (s *taggerSpy) TagImage(ctx context.Context, jpeg []byte, title, artist string) (tagging.TagResult, error) {
	*s.called = true
	return tagging.TagResult{}, nil
}

func (s *taggerSpy) EmbedText(ctx context.Context, text string) ([]float32, error) {
	*s.called = true
	return nil, nil
}
