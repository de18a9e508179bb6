package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	domain "github.com/galleryprints/catalog-api/internal/domain"
	"github.com/galleryprints/catalog-api/internal/imaging"
	"github.com/galleryprints/catalog-api/internal/museums"
	"github.com/galleryprints/catalog-api/internal/repositories"
	"github.com/galleryprints/catalog-api/internal/tagging"
	pstorage "github.com/galleryprints/catalog-api/internal/platform/storage"
)

const (
	// AlreadyImportedMessage is the sentinel error string reported for rows
	// whose external identifier is already in the catalog. Callers depend on
	// this exact text to count skips.
	AlreadyImportedMessage = "Already imported"

	maxImageFetchBytes = 256 << 20
	swatchLimit        = 5
)

// ErrImportInvalidInput indicates required fields were missing from the request.
var ErrImportInvalidInput = errors.New("import: invalid input")

// ImportOptions tunes per-batch pipeline behaviour.
type ImportOptions struct {
	SkipAITagging bool
}

// RowInput is one prepared batch row handed to the pipeline. RowError and
// DuplicateOf carry front-end verdicts that short-circuit the pipeline for
// that row.
type RowInput struct {
	Row         domain.NormalizedRow
	Image       []byte
	RowError    string
	DuplicateOf string
}

// BatchResult aggregates per-row outcomes for the batch envelope.
type BatchResult struct {
	Total        int
	SuccessCount int
	SkippedCount int
	ErrorCount   int
	Results      []domain.ImportResult
}

// ImportService turns museum candidates and upload rows into persisted works.
type ImportService interface {
	// ImportFromSource resolves and imports the given external ids. The
	// existence snapshot for the whole batch is taken before any network
	// fetch begins.
	ImportFromSource(ctx context.Context, source domain.SourceType, ids []string) (BatchResult, error)
	// ImportRows runs the pipeline over prepared upload rows.
	ImportRows(ctx context.Context, rows []RowInput, opts ImportOptions) (BatchResult, error)
}

// BlobUploader is the optional blob storage collaborator. A nil or
// unconfigured uploader degrades the pipeline to placeholder URLs.
type BlobUploader interface {
	Configured() bool
	Upload(ctx context.Context, object string, payload []byte, contentType string) (string, error)
}

// ImageTagger is the optional AI tagging collaborator.
type ImageTagger interface {
	TagImage(ctx context.Context, jpeg []byte, title, artist string) (tagging.TagResult, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ImportServiceDeps enumerates collaborators required to construct the service.
// Uploader and Tagger are optional; everything else is required.
type ImportServiceDeps struct {
	Sources    *museums.Registry
	Works      repositories.WorkRepository
	Counters   repositories.CounterRepository
	Uploader   BlobUploader
	Tagger     ImageTagger
	HTTPClient *http.Client
	Clock      func() time.Time
	IDGen      func() string
	Logger     *zap.Logger
}

type importService struct {
	sources    *museums.Registry
	works      repositories.WorkRepository
	counters   repositories.CounterRepository
	uploader   BlobUploader
	tagger     ImageTagger
	httpClient *http.Client
	clock      func() time.Time
	newID      func() string
	logger     *zap.Logger
}

// NewImportService wires dependencies into an ImportService implementation.
func NewImportService(deps ImportServiceDeps) (ImportService, error) {
	if deps.Sources == nil {
		return nil, errors.New("import service: source registry is required")
	}
	if deps.Works == nil {
		return nil, errors.New("import service: work repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("import service: counter repository is required")
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &importService{
		sources:    deps.Sources,
		works:      deps.Works,
		counters:   deps.Counters,
		uploader:   deps.Uploader,
		tagger:     deps.Tagger,
		httpClient: httpClient,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
		logger:     logger,
	}, nil
}

func (s *importService) ImportFromSource(ctx context.Context, source domain.SourceType, ids []string) (BatchResult, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	if len(cleaned) == 0 {
		return BatchResult{}, fmt.Errorf("%w: items are required", ErrImportInvalidInput)
	}

	adapter, err := s.sources.Lookup(source)
	if err != nil {
		if errors.Is(err, museums.ErrUnknownSource) {
			return BatchResult{}, fmt.Errorf("%w: unknown source %q", ErrImportInvalidInput, source)
		}
		return BatchResult{}, err
	}

	// The dedup snapshot must complete before any per-row fetch begins so a
	// batch cannot race itself into duplicate imports.
	existing, err := s.works.FindExistingSourceIDs(ctx, source, cleaned)
	if err != nil {
		return BatchResult{}, fmt.Errorf("import %s: existence check: %w", source, err)
	}

	results := make([]domain.ImportResult, len(cleaned))
	var group errgroup.Group
	for i, id := range cleaned {
		i, id := i, id
		if existing[id] {
			results[i] = domain.ImportResult{Success: true, Title: id, Error: AlreadyImportedMessage}
			continue
		}
		group.Go(func() error {
			results[i] = s.importFromDetail(ctx, adapter, source, id)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return BatchResult{}, err
	}
	return tally(results), nil
}

func (s *importService) importFromDetail(ctx context.Context, adapter museums.Source, source domain.SourceType, id string) domain.ImportResult {
	detail, ok, err := adapter.ResolveDetail(ctx, id)
	if err != nil {
		return failRow(id, "", fmt.Sprintf("detail resolution failed: %v", err))
	}
	if !ok {
		return failRow(id, "", "no importable detail for this object")
	}

	image, err := s.fetchImage(ctx, detail.FullImageURL)
	if err != nil {
		return failRow(detail.Title, detail.Artist, fmt.Sprintf("image fetch failed: %v", err))
	}

	row := domain.NormalizedRow{
		Title:       detail.Title,
		ArtistName:  detail.Artist,
		WorkType:    domain.WorkTypePainting,
		SourceType:  detail.SourceType,
		SourceID:    detail.SourceID,
		SourceLabel: string(detail.SourceType),
		FetchURL:    detail.FullImageURL,
	}
	return s.importOne(ctx, row, image, ImportOptions{})
}

func (s *importService) ImportRows(ctx context.Context, rows []RowInput, opts ImportOptions) (BatchResult, error) {
	if len(rows) == 0 {
		return BatchResult{}, fmt.Errorf("%w: rows are required", ErrImportInvalidInput)
	}

	sourceIDs := make(map[domain.SourceType][]string)
	for _, input := range rows {
		if input.Row.SourceID != "" {
			sourceIDs[input.Row.SourceType] = append(sourceIDs[input.Row.SourceType], input.Row.SourceID)
		}
	}
	existing := make(map[domain.SourceType]map[string]bool, len(sourceIDs))
	for source, ids := range sourceIDs {
		found, err := s.works.FindExistingSourceIDs(ctx, source, ids)
		if err != nil {
			return BatchResult{}, fmt.Errorf("import rows: existence check: %w", err)
		}
		existing[source] = found
	}

	results := make([]domain.ImportResult, len(rows))
	for i, input := range rows {
		row := input.Row
		switch {
		case input.RowError != "":
			results[i] = failRow(row.Title, row.ArtistName, input.RowError)
		case input.DuplicateOf != "":
			results[i] = domain.ImportResult{
				Success:    true,
				Title:      row.Title,
				ArtistName: row.ArtistName,
				Error:      fmt.Sprintf("Duplicate of %s", input.DuplicateOf),
			}
		case row.SourceID != "" && existing[row.SourceType][row.SourceID]:
			results[i] = domain.ImportResult{
				Success:    true,
				Title:      row.Title,
				ArtistName: row.ArtistName,
				Error:      AlreadyImportedMessage,
			}
		default:
			results[i] = s.importRow(ctx, input, opts)
		}
	}
	return tally(results), nil
}

func (s *importService) importRow(ctx context.Context, input RowInput, opts ImportOptions) domain.ImportResult {
	row := input.Row
	image := input.Image
	if len(image) == 0 {
		if row.FetchURL == "" {
			return failRow(row.Title, row.ArtistName, "no image data for row")
		}
		fetched, err := s.fetchImage(ctx, row.FetchURL)
		if err != nil {
			return failRow(row.Title, row.ArtistName, fmt.Sprintf("image fetch failed: %v", err))
		}
		image = fetched
	}
	return s.importOne(ctx, row, image, opts)
}

// importOne runs the full per-row pipeline. Every failure is fatal to the row
// only; tagging and color extraction are best effort and never fail the row.
func (s *importService) importOne(ctx context.Context, row domain.NormalizedRow, image []byte, opts ImportOptions) domain.ImportResult {
	variants, err := imaging.BuildVariants(image)
	if err != nil {
		return failRow(row.Title, row.ArtistName, fmt.Sprintf("image decode failed: %v", err))
	}

	dims := domain.ParseDimensions(row.DimensionsInches)
	orientation := deriveOrientation(dims, variants.Width, variants.Height)

	sku := strings.TrimSpace(row.GPSku)
	if sku == "" {
		sku, err = s.nextSKU(ctx)
		if err != nil {
			return failRow(row.Title, row.ArtistName, fmt.Sprintf("sku assignment failed: %v", err))
		}
	}

	workID := s.newID()
	urls, err := s.storeVariants(ctx, workID, row.Title, variants)
	if err != nil {
		return failRow(row.Title, row.ArtistName, fmt.Sprintf("image upload failed: %v", err))
	}

	hero, hidden, medium, embedding := s.tagBestEffort(ctx, variants.Preview, row, opts)
	colors := imaging.DominantColors(variants.Preview, swatchLimit)

	now := s.clock()
	work := domain.Work{
		ID:                workID,
		GPSku:             sku,
		Title:             row.Title,
		ArtistName:        row.ArtistName,
		WorkType:          row.WorkType,
		SourceType:        row.SourceType,
		SourceID:          row.SourceID,
		SourceLabel:       row.SourceLabel,
		RetailerExclusive: row.RetailerExclusive,
		SourceImageURL:    urls[pstorage.VariantSource],
		PreviewImageURL:   urls[pstorage.VariantPreview],
		ThumbnailImageURL: urls[pstorage.VariantThumbnail],
		AiTagsHero:        hero,
		AiTagsHidden:      hidden,
		Medium:            medium,
		Colors:            colors,
		Dimensions:        dims,
		Orientation:       orientation,
		PixelWidth:        variants.Width,
		PixelHeight:       variants.Height,
		Status:            domain.WorkStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if len(embedding) > 0 {
		err = s.works.CreateWithEmbedding(ctx, work, embedding)
	} else {
		err = s.works.Create(ctx, work)
	}
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			// Lost a cross-batch race; the storage constraint is the backstop.
			return domain.ImportResult{Success: true, Title: row.Title, ArtistName: row.ArtistName, Error: AlreadyImportedMessage}
		}
		return failRow(row.Title, row.ArtistName, fmt.Sprintf("persistence failed: %v", err))
	}

	return domain.ImportResult{Success: true, GPSku: sku, Title: row.Title, ArtistName: row.ArtistName}
}

// storeVariants uploads the three renditions concurrently, or falls back to
// placeholder URLs when blob storage is not configured.
func (s *importService) storeVariants(ctx context.Context, workID, title string, variants imaging.VariantSet) (map[pstorage.Variant]string, error) {
	urls := make(map[pstorage.Variant]string, 3)
	if s.uploader == nil || !s.uploader.Configured() {
		placeholder := pstorage.PlaceholderURL(title)
		for _, variant := range pstorage.Variants {
			urls[variant] = placeholder
		}
		return urls, nil
	}

	payloads := map[pstorage.Variant][]byte{
		pstorage.VariantSource:    variants.Source,
		pstorage.VariantPreview:   variants.Preview,
		pstorage.VariantThumbnail: variants.Thumbnail,
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	for variant, payload := range payloads {
		variant, payload := variant, payload
		group.Go(func() error {
			object, err := pstorage.WorkObjectPath(workID, variant)
			if err != nil {
				return err
			}
			url, err := s.uploader.Upload(groupCtx, object, payload, "image/jpeg")
			if err != nil {
				return err
			}
			mu.Lock()
			urls[variant] = url
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

// tagBestEffort asks the tagging collaborator for tag sets and an embedding.
// Any failure logs and returns empty results; tagging never fails an import.
func (s *importService) tagBestEffort(ctx context.Context, preview []byte, row domain.NormalizedRow, opts ImportOptions) (hero, hidden []string, medium string, embedding []float32) {
	if s.tagger == nil || opts.SkipAITagging {
		return nil, nil, "", nil
	}

	tags, err := s.tagger.TagImage(ctx, preview, row.Title, row.ArtistName)
	if err != nil {
		s.logger.Warn("ai tagging failed, importing untagged",
			zap.String("title", row.Title), zap.Error(err))
		return nil, nil, "", nil
	}

	text := strings.Join(append(append([]string{}, tags.Hero...), tags.Hidden...), " ")
	if strings.TrimSpace(text) != "" {
		embedding, err = s.tagger.EmbedText(ctx, text)
		if err != nil {
			s.logger.Warn("embedding failed, importing without vector",
				zap.String("title", row.Title), zap.Error(err))
			embedding = nil
		}
	}
	return tags.Hero, tags.Hidden, tags.Medium, embedding
}

func (s *importService) nextSKU(ctx context.Context) (string, error) {
	year := s.clock().Year()
	seq, err := s.counters.Next(ctx, fmt.Sprintf("works:GP%d", year), 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("GP%d%04d", year, seq), nil
}

func (s *importService) fetchImage(ctx context.Context, url string) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("no image url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageFetchBytes))
}

func deriveOrientation(dims *domain.Dimensions, pixelWidth, pixelHeight int) domain.Orientation {
	if dims != nil {
		return domain.DeriveOrientation(dims.Width, dims.Height)
	}
	return domain.DeriveOrientation(float64(pixelWidth), float64(pixelHeight))
}

func failRow(title, artist, message string) domain.ImportResult {
	return domain.ImportResult{Success: false, Title: title, ArtistName: artist, Error: message}
}

func tally(results []domain.ImportResult) BatchResult {
	batch := BatchResult{Total: len(results), Results: results}
	for _, result := range results {
		switch {
		case result.Success && result.Error == "":
			batch.SuccessCount++
		case result.Success:
			batch.SkippedCount++
		default:
			batch.ErrorCount++
		}
	}
	return batch
}
