package museums

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	domain "github.com/galleryprints/catalog-api/internal/domain"
)

const (
	ngaDefaultObjectsURL = "https://raw.githubusercontent.com/NationalGalleryOfArt/opendata/main/data/objects.csv"
	ngaDefaultImagesURL  = "https://raw.githubusercontent.com/NationalGalleryOfArt/opendata/main/data/published_images.csv"
)

// NGASource serves the National Gallery of Art, which publishes no search
// API. The adapter downloads the open data CSV snapshots on first use, joins
// objects to their primary published image, and keeps the joined index in
// memory for the life of the process. Concurrent first requests share a
// single build through singleflight.
type NGASource struct {
	client     *Client
	objectsURL string
	imagesURL  string

	group singleflight.Group
	mu    sync.RWMutex
	index []ngaRecord
}

type ngaRecord struct {
	ObjectID     string
	Accession    string
	Title        string
	Attribution  string
	IIIFBase     string
	ThumbnailURL string
	Width        int
	Height       int
}

// NewNGASource constructs the NGA adapter.
func NewNGASource(client *Client, objectsURL, imagesURL string) (*NGASource, error) {
	if client == nil {
		return nil, fmt.Errorf("nga source: client is required")
	}
	if strings.TrimSpace(objectsURL) == "" {
		objectsURL = ngaDefaultObjectsURL
	}
	if strings.TrimSpace(imagesURL) == "" {
		imagesURL = ngaDefaultImagesURL
	}
	return &NGASource{client: client, objectsURL: objectsURL, imagesURL: imagesURL}, nil
}

// Name implements Source.
func (s *NGASource) Name() domain.SourceType { return domain.SourceNGA }

// Search implements Source with a naive AND term match over title and
// attribution.
func (s *NGASource) Search(ctx context.Context, query string, page int) (SearchResult, error) {
	if page < 1 {
		page = 1
	}
	index, err := s.loadIndex(ctx)
	if err != nil {
		return SearchResult{}, err
	}

	terms := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	matches := make([]ngaRecord, 0, defaultPageSize)
	for _, record := range index {
		if matchesAllTerms(record, terms) {
			matches = append(matches, record)
		}
	}

	total := len(matches)
	start := (page - 1) * defaultPageSize
	if start >= total {
		return SearchResult{Total: total}, nil
	}
	end := start + defaultPageSize
	if end > total {
		end = total
	}

	items := make([]domain.Candidate, 0, end-start)
	for _, record := range matches[start:end] {
		items = append(items, domain.Candidate{
			SourceType:   domain.SourceNGA,
			SourceID:     record.Accession,
			Title:        record.Title,
			Artist:       CleanArtistName(record.Attribution),
			ImageRef:     record.Accession,
			ThumbnailURL: record.ThumbnailURL,
			PixelWidth:   record.Width,
			PixelHeight:  record.Height,
		})
	}
	return SearchResult{Total: total, Items: FilterPrintable(items)}, nil
}

// ResolveDetail implements Source. The id is the accession number. Pixel
// dimensions are verified against the image server when it answers in time,
// falling back to the snapshot values otherwise.
func (s *NGASource) ResolveDetail(ctx context.Context, id string) (domain.Detail, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Detail{}, false, fmt.Errorf("nga source: accession number is required")
	}
	index, err := s.loadIndex(ctx)
	if err != nil {
		return domain.Detail{}, false, err
	}

	for _, record := range index {
		if !strings.EqualFold(record.Accession, id) {
			continue
		}
		width, height := record.Width, record.Height
		if w, h, ok := s.client.InfoJSONDimensions(ctx, record.IIIFBase); ok {
			width, height = w, h
		}
		return domain.Detail{
			SourceType:   domain.SourceNGA,
			SourceID:     record.Accession,
			Title:        record.Title,
			Artist:       CleanArtistName(record.Attribution),
			FullImageURL: IIIFFullURL(record.IIIFBase),
			ThumbnailURL: record.ThumbnailURL,
			PixelWidth:   width,
			PixelHeight:  height,
		}, true, nil
	}
	return domain.Detail{}, false, nil
}

func matchesAllTerms(record ngaRecord, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	haystack := strings.ToLower(record.Title + " " + record.Attribution)
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

func (s *NGASource) loadIndex(ctx context.Context) ([]ngaRecord, error) {
	s.mu.RLock()
	index := s.index
	s.mu.RUnlock()
	if index != nil {
		return index, nil
	}

	result, err, _ := s.group.Do("index", func() (any, error) {
		built, err := s.buildIndex(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.index = built
		s.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]ngaRecord), nil
}

func (s *NGASource) buildIndex(ctx context.Context) ([]ngaRecord, error) {
	imagesBody, err := s.client.get(ctx, s.imagesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("nga source: fetch published images: %w", err)
	}
	images, err := parseNGAImages(imagesBody)
	if err != nil {
		return nil, err
	}

	objectsBody, err := s.client.get(ctx, s.objectsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("nga source: fetch objects: %w", err)
	}
	return parseNGAObjects(objectsBody, images)
}

type ngaImage struct {
	IIIFBase     string
	ThumbnailURL string
	Width        int
	Height       int
}

// parseNGAImages keeps the first primary image per object.
func parseNGAImages(body []byte) (map[string]ngaImage, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("nga source: published images header: %w", err)
	}
	col := columnIndex(header)
	images := make(map[string]ngaImage)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("nga source: published images row: %w", err)
		}
		if !strings.EqualFold(field(row, col, "viewtype"), "primary") {
			continue
		}
		objectID := field(row, col, "depictstmsobjectid")
		iiifBase := field(row, col, "iiifurl")
		if objectID == "" || iiifBase == "" {
			continue
		}
		if _, seen := images[objectID]; seen {
			continue
		}
		images[objectID] = ngaImage{
			IIIFBase:     iiifBase,
			ThumbnailURL: field(row, col, "iiifthumburl"),
			Width:        atoiOrZero(field(row, col, "width")),
			Height:       atoiOrZero(field(row, col, "height")),
		}
	}
	return images, nil
}

func parseNGAObjects(body []byte, images map[string]ngaImage) ([]ngaRecord, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("nga source: objects header: %w", err)
	}
	col := columnIndex(header)
	records := make([]ngaRecord, 0, len(images))
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("nga source: objects row: %w", err)
		}
		objectID := field(row, col, "objectid")
		image, ok := images[objectID]
		if !ok {
			continue
		}
		accession := field(row, col, "accessionnum")
		if accession == "" {
			continue
		}
		records = append(records, ngaRecord{
			ObjectID:     objectID,
			Accession:    accession,
			Title:        field(row, col, "title"),
			Attribution:  field(row, col, "attribution"),
			IIIFBase:     image.IIIFBase,
			ThumbnailURL: image.ThumbnailURL,
			Width:        image.Width,
			Height:       image.Height,
		})
	}
	return records, nil
}

func columnIndex(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return col
}

func field(row []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func atoiOrZero(value string) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}
