package museums

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	domain "github.com/galleryprints/catalog-api/internal/domain"
)

const (
	yaleDefaultSearchURL = "https://lux.collections.yale.edu/api/search/item"
	yaleConcurrency      = 8
)

// YaleSource searches the Yale LUX cross-collection API and resolves detail
// from the Linked Art document behind each result URI. Image access points
// are found by walking representation, digitally shown by, and access point
// nodes; dimensions come from the IIIF info.json.
type YaleSource struct {
	client    *Client
	searchURL string
}

// NewYaleSource constructs the Yale adapter.
func NewYaleSource(client *Client, searchURL string) (*YaleSource, error) {
	if client == nil {
		return nil, fmt.Errorf("yale source: client is required")
	}
	if strings.TrimSpace(searchURL) == "" {
		searchURL = yaleDefaultSearchURL
	}
	return &YaleSource{client: client, searchURL: searchURL}, nil
}

// Name implements Source.
func (s *YaleSource) Name() domain.SourceType { return domain.SourceYale }

type yaleSearchResponse struct {
	PartOf struct {
		TotalItems int `json:"totalItems"`
	} `json:"partOf"`
	OrderedItems []struct {
		ID string `json:"id"`
	} `json:"orderedItems"`
}

// Search implements Source.
func (s *YaleSource) Search(ctx context.Context, query string, page int) (SearchResult, error) {
	if page < 1 {
		page = 1
	}
	criteria, err := json.Marshal(map[string]any{"text": strings.TrimSpace(query)})
	if err != nil {
		return SearchResult{}, fmt.Errorf("yale source: encode query: %w", err)
	}
	params := url.Values{}
	params.Set("q", string(criteria))
	params.Set("page", fmt.Sprintf("%d", page))
	params.Set("pageLength", fmt.Sprintf("%d", defaultPageSize))

	var response yaleSearchResponse
	if err := s.client.getJSON(ctx, s.searchURL+"?"+params.Encode(), &response, nil); err != nil {
		return SearchResult{}, err
	}

	candidates := make([]domain.Candidate, len(response.OrderedItems))
	resolved := make([]bool, len(response.OrderedItems))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(yaleConcurrency)
	for i, item := range response.OrderedItems {
		i, item := i, item
		group.Go(func() error {
			detail, ok, err := s.ResolveDetail(groupCtx, item.ID)
			if err != nil {
				s.client.debug("yale object resolve failed")
				return nil
			}
			if !ok {
				return nil
			}
			mu.Lock()
			candidates[i] = domain.Candidate{
				SourceType:   domain.SourceYale,
				SourceID:     detail.SourceID,
				Title:        detail.Title,
				Artist:       detail.Artist,
				ImageRef:     detail.SourceID,
				ThumbnailURL: detail.ThumbnailURL,
				PixelWidth:   detail.PixelWidth,
				PixelHeight:  detail.PixelHeight,
			}
			resolved[i] = true
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return SearchResult{}, err
	}

	items := make([]domain.Candidate, 0, len(response.OrderedItems))
	for i := range candidates {
		if resolved[i] {
			items = append(items, candidates[i])
		}
	}
	return SearchResult{Total: response.PartOf.TotalItems, Items: FilterPrintable(items)}, nil
}

type yaleLinkedArtObject struct {
	ID           string `json:"id"`
	Label        string `json:"_label"`
	IdentifiedBy []struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	} `json:"identified_by"`
	ProducedBy *struct {
		CarriedOutBy []struct {
			Label string `json:"_label"`
		} `json:"carried_out_by"`
		Part []struct {
			CarriedOutBy []struct {
				Label string `json:"_label"`
			} `json:"carried_out_by"`
		} `json:"part"`
	} `json:"produced_by"`
	Representation []struct {
		DigitallyShownBy []struct {
			AccessPoint []struct {
				ID string `json:"id"`
			} `json:"access_point"`
		} `json:"digitally_shown_by"`
	} `json:"representation"`
}

// ResolveDetail implements Source. The id is the full LUX object URI.
func (s *YaleSource) ResolveDetail(ctx context.Context, id string) (domain.Detail, bool, error) {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, "http") {
		return domain.Detail{}, false, fmt.Errorf("yale source: id must be an object URI, got %q", id)
	}

	var object yaleLinkedArtObject
	if err := s.client.getJSON(ctx, id, &object, map[string]string{"Accept": "application/json"}); err != nil {
		return domain.Detail{}, false, err
	}

	iiifBase := yaleIIIFBase(object)
	if iiifBase == "" {
		return domain.Detail{}, false, nil
	}

	title := strings.TrimSpace(object.Label)
	for _, identifier := range object.IdentifiedBy {
		if identifier.Type == "Name" && strings.TrimSpace(identifier.Content) != "" {
			title = strings.TrimSpace(identifier.Content)
			break
		}
	}

	width, height, _ := s.client.InfoJSONDimensions(ctx, iiifBase)

	return domain.Detail{
		SourceType:   domain.SourceYale,
		SourceID:     object.ID,
		Title:        title,
		Artist:       yaleArtist(object),
		FullImageURL: IIIFFullURL(iiifBase),
		ThumbnailURL: IIIFThumbnailURL(iiifBase),
		PixelWidth:   width,
		PixelHeight:  height,
	}, true, nil
}

func yaleIIIFBase(object yaleLinkedArtObject) string {
	for _, representation := range object.Representation {
		for _, shown := range representation.DigitallyShownBy {
			for _, access := range shown.AccessPoint {
				if strings.Contains(access.ID, "/iiif/") {
					return strings.TrimSuffix(access.ID, "/full/full/0/default.jpg")
				}
			}
		}
	}
	return ""
}

func yaleArtist(object yaleLinkedArtObject) string {
	if object.ProducedBy == nil {
		return ""
	}
	if len(object.ProducedBy.CarriedOutBy) > 0 {
		return CleanArtistName(object.ProducedBy.CarriedOutBy[0].Label)
	}
	for _, part := range object.ProducedBy.Part {
		if len(part.CarriedOutBy) > 0 {
			return CleanArtistName(part.CarriedOutBy[0].Label)
		}
	}
	return ""
}
