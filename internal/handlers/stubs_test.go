package handlers

import (
	"context"
	"time"

	domain "github.com/galleryprints/catalog-api/internal/domain"
	"github.com/galleryprints/catalog-api/internal/services"
)

type stubSearchService struct {
	output services.SearchOutput
	err    error

	calls      int
	lastSource domain.SourceType
	lastQuery  string
	lastPage   int
}

func (s *stubSearchService) Search(ctx context.Context, source domain.SourceType, query string, page int) (services.SearchOutput, error) {
	s.calls++
	s.lastSource = source
	s.lastQuery = query
	s.lastPage = page
	if s.err != nil {
		return services.SearchOutput{}, s.err
	}
	return s.output, nil
}

type stubImportService struct {
	batch services.BatchResult
	err   error

	sourceCalls int
	lastSource  domain.SourceType
	lastIDs     []string

	rowCalls int
	lastRows []services.RowInput
	lastOpts services.ImportOptions
}

func (s *stubImportService) ImportFromSource(ctx context.Context, source domain.SourceType, ids []string) (services.BatchResult, error) {
	s.sourceCalls++
	s.lastSource = source
	s.lastIDs = append([]string(nil), ids...)
	if s.err != nil {
		return services.BatchResult{}, s.err
	}
	return s.batch, nil
}

func (s *stubImportService) ImportRows(ctx context.Context, rows []services.RowInput, opts services.ImportOptions) (services.BatchResult, error) {
	s.rowCalls++
	s.lastRows = append([]services.RowInput(nil), rows...)
	s.lastOpts = opts
	if s.err != nil {
		return services.BatchResult{}, s.err
	}
	return s.batch, nil
}

type stubRetagService struct {
	batches int
	err     error

	calls   int
	lastIDs []string
	lastKey string
}

func (s *stubRetagService) Dispatch(ctx context.Context, workIDs []string, idempotencyKey string) (int, error) {
	s.calls++
	s.lastIDs = append([]string(nil), workIDs...)
	s.lastKey = idempotencyKey
	if s.err != nil {
		return 0, s.err
	}
	return s.batches, nil
}

type stubHealthRepo struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthRepo) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.err != nil {
		return domain.SystemHealthReport{}, s.err
	}
	return s.report, nil
}

func fixedHandlerClock() func() time.Time {
	at := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}
