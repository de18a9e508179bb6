package museums

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	domain "github.com/galleryprints/catalog-api/internal/domain"
)

const (
	metDefaultBaseURL     = "https://collectionapi.metmuseum.org/public/collection/v1"
	metResolveConcurrency = 8
)

// MetSource queries the Metropolitan Museum of Art collection API. The search
// endpoint returns the complete list of matching object IDs with no paging, so
// the adapter slices the ID list itself and resolves one page of objects per
// request. Accession numbers, not raw object IDs, identify works downstream.
type MetSource struct {
	client  *Client
	baseURL string
}

// NewMetSource constructs the Met adapter.
func NewMetSource(client *Client, baseURL string) (*MetSource, error) {
	if client == nil {
		return nil, fmt.Errorf("met source: client is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = metDefaultBaseURL
	}
	return &MetSource{client: client, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Name implements Source.
func (s *MetSource) Name() domain.SourceType { return domain.SourceMet }

type metSearchResponse struct {
	Total     int   `json:"total"`
	ObjectIDs []int `json:"objectIDs"`
}

type metObject struct {
	ObjectID          int    `json:"objectID"`
	AccessionNumber   string `json:"accessionNumber"`
	IsPublicDomain    bool   `json:"isPublicDomain"`
	Title             string `json:"title"`
	ArtistDisplayName string `json:"artistDisplayName"`
	PrimaryImage      string `json:"primaryImage"`
	PrimaryImageSmall string `json:"primaryImageSmall"`
}

// Search implements Source.
func (s *MetSource) Search(ctx context.Context, query string, page int) (SearchResult, error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("hasImages", "true")
	params.Set("isPublicDomain", "true")

	var response metSearchResponse
	if err := s.client.getJSON(ctx, s.baseURL+"/search?"+params.Encode(), &response, nil); err != nil {
		return SearchResult{}, err
	}

	start := (page - 1) * defaultPageSize
	if start >= len(response.ObjectIDs) {
		return SearchResult{Total: response.Total}, nil
	}
	end := start + defaultPageSize
	if end > len(response.ObjectIDs) {
		end = len(response.ObjectIDs)
	}
	pageIDs := response.ObjectIDs[start:end]

	candidates := make([]domain.Candidate, len(pageIDs))
	resolved := make([]bool, len(pageIDs))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(metResolveConcurrency)
	for i, objectID := range pageIDs {
		i, objectID := i, objectID
		group.Go(func() error {
			candidate, ok, err := s.resolveCandidate(groupCtx, objectID)
			if err != nil {
				// A single unreachable object must not sink the page.
				s.client.debug("met object resolve failed")
				return nil
			}
			if !ok {
				return nil
			}
			mu.Lock()
			candidates[i] = candidate
			resolved[i] = true
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return SearchResult{}, err
	}

	items := make([]domain.Candidate, 0, len(pageIDs))
	for i := range candidates {
		if resolved[i] {
			items = append(items, candidates[i])
		}
	}
	return SearchResult{Total: response.Total, Items: FilterPrintable(items)}, nil
}

// ResolveDetail implements Source. The id is the numeric object ID carried in
// the candidate image reference; the returned detail is keyed by accession
// number.
func (s *MetSource) ResolveDetail(ctx context.Context, id string) (domain.Detail, bool, error) {
	objectID, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		return domain.Detail{}, false, fmt.Errorf("met source: invalid object id %q", id)
	}
	object, ok, err := s.fetchObject(ctx, objectID)
	if err != nil || !ok {
		return domain.Detail{}, false, err
	}
	width, height, dimErr := s.client.JPEGDimensions(ctx, object.PrimaryImage)
	if dimErr != nil {
		width, height = 0, 0
	}

	return domain.Detail{
		SourceType:   domain.SourceMet,
		SourceID:     object.AccessionNumber,
		Title:        strings.TrimSpace(object.Title),
		Artist:       CleanArtistName(object.ArtistDisplayName),
		FullImageURL: object.PrimaryImage,
		ThumbnailURL: object.PrimaryImageSmall,
		PixelWidth:   width,
		PixelHeight:  height,
	}, true, nil
}

func (s *MetSource) resolveCandidate(ctx context.Context, objectID int) (domain.Candidate, bool, error) {
	object, ok, err := s.fetchObject(ctx, objectID)
	if err != nil || !ok {
		return domain.Candidate{}, false, err
	}
	width, height, dimErr := s.client.JPEGDimensions(ctx, object.PrimaryImage)
	if dimErr != nil {
		width, height = 0, 0
	}

	return domain.Candidate{
		SourceType:   domain.SourceMet,
		SourceID:     object.AccessionNumber,
		Title:        strings.TrimSpace(object.Title),
		Artist:       CleanArtistName(object.ArtistDisplayName),
		ImageRef:     strconv.Itoa(object.ObjectID),
		ThumbnailURL: object.PrimaryImageSmall,
		PixelWidth:   width,
		PixelHeight:  height,
	}, true, nil
}

func (s *MetSource) fetchObject(ctx context.Context, objectID int) (metObject, bool, error) {
	var object metObject
	if err := s.client.getJSON(ctx, fmt.Sprintf("%s/objects/%d", s.baseURL, objectID), &object, nil); err != nil {
		return metObject{}, false, err
	}
	if !object.IsPublicDomain || object.PrimaryImage == "" || strings.TrimSpace(object.AccessionNumber) == "" {
		return metObject{}, false, nil
	}
	return object, true, nil
}
