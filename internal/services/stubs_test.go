package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	domain "github.com/galleryprints/catalog-api/internal/domain"
	"github.com/galleryprints/catalog-api/internal/museums"
	"github.com/galleryprints/catalog-api/internal/repositories"
	"github.com/galleryprints/catalog-api/internal/tagging"
)

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 180, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func fixedClock() time.Time {
	return time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
}

type stubConflictError struct{}

func (stubConflictError) Error() string       { return "already exists" }
func (stubConflictError) IsNotFound() bool    { return false }
func (stubConflictError) IsConflict() bool    { return true }
func (stubConflictError) IsUnavailable() bool { return false }

type stubWorkRepository struct {
	mu        sync.Mutex
	existing  map[string]bool
	activeIDs []string
	listErr   error

	created       []domain.Work
	embeddings    map[string][]float32
	conflictOnAll bool
}

func newStubWorkRepository() *stubWorkRepository {
	return &stubWorkRepository{
		existing:   map[string]bool{},
		embeddings: map[string][]float32{},
	}
}

func (s *stubWorkRepository) Create(ctx context.Context, work domain.Work) error {
	return s.createWith(work, nil)
}

func (s *stubWorkRepository) CreateWithEmbedding(ctx context.Context, work domain.Work, embedding []float32) error {
	return s.createWith(work, embedding)
}

func (s *stubWorkRepository) createWith(work domain.Work, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflictOnAll || s.existing[work.SourceID] {
		return stubConflictError{}
	}
	s.created = append(s.created, work)
	if embedding != nil {
		s.embeddings[work.ID] = embedding
	}
	return nil
}

func (s *stubWorkRepository) FindByID(ctx context.Context, workID string) (domain.Work, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, work := range s.created {
		if work.ID == workID {
			return work, nil
		}
	}
	return domain.Work{}, errors.New("not found")
}

func (s *stubWorkRepository) FindExistingSourceIDs(ctx context.Context, source domain.SourceType, sourceIDs []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := make(map[string]bool)
	for _, id := range sourceIDs {
		if s.existing[id] {
			found[id] = true
		}
	}
	return found, nil
}

func (s *stubWorkRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.activeIDs, nil
}

func (s *stubWorkRepository) UpdateTags(ctx context.Context, workID string, hero, hidden []string, medium string, embedding []float32) error {
	return nil
}

var _ repositories.WorkRepository = (*stubWorkRepository)(nil)

type stubCounterRepository struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seqs == nil {
		s.seqs = map[string]int64{}
	}
	s.seqs[counterID] += step
	return s.seqs[counterID], nil
}

func (s *stubCounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	return nil
}

var _ repositories.CounterRepository = (*stubCounterRepository)(nil)

type stubSource struct {
	name    domain.SourceType
	results map[string]domain.Detail
	pages   map[int][]domain.Candidate
	total   int
}

func (s *stubSource) Name() domain.SourceType { return s.name }

func (s *stubSource) Search(ctx context.Context, query string, page int) (museums.SearchResult, error) {
	return museums.SearchResult{Total: s.total, Items: s.pages[page]}, nil
}

func (s *stubSource) ResolveDetail(ctx context.Context, id string) (domain.Detail, bool, error) {
	detail, ok := s.results[id]
	return detail, ok, nil
}

type stubTagger struct {
	result   tagging.TagResult
	tagErr   error
	vector   []float32
	embedErr error
}

func (s *stubTagger) TagImage(ctx context.Context, jpeg []byte, title, artist string) (tagging.TagResult, error) {
	if s.tagErr != nil {
		return tagging.TagResult{}, s.tagErr
	}
	return s.result, nil
}

func (s *stubTagger) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	return s.vector, nil
}

type stubUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (s *stubUploader) Configured() bool { return true }

func (s *stubUploader) Upload(ctx context.Context, object string, payload []byte, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[object] = payload
	return "https://cdn.example/" + object, nil
}

type stubPublisher struct {
	mu       sync.Mutex
	messages []RetagJobMessage
	err      error
}

func (s *stubPublisher) PublishRetagJob(ctx context.Context, message RetagJobMessage) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return fmt.Sprintf("msg-%d", len(s.messages)), nil
}
