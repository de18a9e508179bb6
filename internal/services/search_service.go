package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/galleryprints/catalog-api/internal/domain"
	"github.com/galleryprints/catalog-api/internal/museums"
	"github.com/galleryprints/catalog-api/internal/repositories"
)

var (
	// ErrSearchInvalidInput indicates a missing query or unknown source.
	ErrSearchInvalidInput = errors.New("search: invalid input")
)

// SearchOutput is one annotated result page.
type SearchOutput struct {
	Total int                `json:"total"`
	Items []domain.Candidate `json:"items"`
}

// SearchService runs museum searches and annotates each candidate with
// whether it has already been imported.
type SearchService interface {
	Search(ctx context.Context, source domain.SourceType, query string, page int) (SearchOutput, error)
}

// SearchServiceDeps enumerates collaborators required to construct the service.
type SearchServiceDeps struct {
	Sources *museums.Registry
	Works   repositories.WorkRepository
}

type searchService struct {
	sources *museums.Registry
	works   repositories.WorkRepository
}

// NewSearchService wires dependencies into a SearchService implementation.
func NewSearchService(deps SearchServiceDeps) (SearchService, error) {
	if deps.Sources == nil {
		return nil, errors.New("search service: source registry is required")
	}
	if deps.Works == nil {
		return nil, errors.New("search service: work repository is required")
	}
	return &searchService{sources: deps.Sources, works: deps.Works}, nil
}

func (s *searchService) Search(ctx context.Context, source domain.SourceType, query string, page int) (SearchOutput, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchOutput{}, fmt.Errorf("%w: query is required", ErrSearchInvalidInput)
	}
	if page < 1 {
		page = 1
	}

	adapter, err := s.sources.Lookup(source)
	if err != nil {
		if errors.Is(err, museums.ErrUnknownSource) {
			return SearchOutput{}, fmt.Errorf("%w: unknown source %q", ErrSearchInvalidInput, source)
		}
		return SearchOutput{}, err
	}

	result, err := adapter.Search(ctx, query, page)
	if err != nil {
		return SearchOutput{}, fmt.Errorf("search %s: %w", source, err)
	}

	if err := s.annotateImported(ctx, source, result.Items); err != nil {
		return SearchOutput{}, err
	}
	return SearchOutput{Total: result.Total, Items: result.Items}, nil
}

// annotateImported marks already-imported candidates with one batched lookup
// instead of a query per candidate.
func (s *searchService) annotateImported(ctx context.Context, source domain.SourceType, items []domain.Candidate) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.SourceID)
	}
	existing, err := s.works.FindExistingSourceIDs(ctx, source, ids)
	if err != nil {
		return fmt.Errorf("search %s: existence check: %w", source, err)
	}
	for i := range items {
		items[i].AlreadyImported = existing[items[i].SourceID]
	}
	return nil
}
