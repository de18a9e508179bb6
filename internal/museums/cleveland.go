package museums

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	domain "github.com/galleryprints/catalog-api/internal/domain"
)

const clevelandDefaultBaseURL = "https://openaccess-api.clevelandart.org/api"

// ClevelandSource queries the Cleveland Museum of Art open access REST API.
// The API supports native limit/skip paging, a CC0 filter, and a has-image
// filter, so this is the most direct of the adapters.
type ClevelandSource struct {
	client  *Client
	baseURL string
}

// NewClevelandSource constructs the Cleveland adapter.
func NewClevelandSource(client *Client, baseURL string) (*ClevelandSource, error) {
	if client == nil {
		return nil, fmt.Errorf("cleveland source: client is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = clevelandDefaultBaseURL
	}
	return &ClevelandSource{client: client, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Name implements Source.
func (s *ClevelandSource) Name() domain.SourceType { return domain.SourceCleveland }

type clevelandListResponse struct {
	Info struct {
		Total int `json:"total"`
	} `json:"info"`
	Data []clevelandArtwork `json:"data"`
}

type clevelandDetailResponse struct {
	Data clevelandArtwork `json:"data"`
}

type clevelandArtwork struct {
	ID              int    `json:"id"`
	AccessionNumber string `json:"accession_number"`
	Title           string `json:"title"`
	ShareLicense    string `json:"share_license_status"`
	Creators        []struct {
		Description string `json:"description"`
	} `json:"creators"`
	Images struct {
		Web   *clevelandImage `json:"web"`
		Print *clevelandImage `json:"print"`
	} `json:"images"`
}

type clevelandImage struct {
	URL    string `json:"url"`
	Width  string `json:"width"`
	Height string `json:"height"`
}

// Search implements Source using keyword search constrained to CC0 works with
// images.
func (s *ClevelandSource) Search(ctx context.Context, query string, page int) (SearchResult, error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("cc0", "1")
	params.Set("has_image", "1")
	params.Set("limit", fmt.Sprintf("%d", defaultPageSize))
	params.Set("skip", fmt.Sprintf("%d", (page-1)*defaultPageSize))

	var response clevelandListResponse
	if err := s.client.getJSON(ctx, s.baseURL+"/artworks/?"+params.Encode(), &response, nil); err != nil {
		return SearchResult{}, err
	}

	items := make([]domain.Candidate, 0, len(response.Data))
	for _, artwork := range response.Data {
		candidate, ok := s.toCandidate(artwork)
		if !ok {
			continue
		}
		items = append(items, candidate)
	}
	return SearchResult{Total: response.Info.Total, Items: FilterPrintable(items)}, nil
}

// ResolveDetail implements Source. The id is the accession number.
func (s *ClevelandSource) ResolveDetail(ctx context.Context, id string) (domain.Detail, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Detail{}, false, fmt.Errorf("cleveland source: id is required")
	}

	var response clevelandDetailResponse
	if err := s.client.getJSON(ctx, s.baseURL+"/artworks/"+url.PathEscape(id), &response, nil); err != nil {
		return domain.Detail{}, false, err
	}
	artwork := response.Data

	if !strings.EqualFold(artwork.ShareLicense, "cc0") {
		return domain.Detail{}, false, nil
	}
	best := artwork.Images.Print
	if best == nil || best.URL == "" {
		best = artwork.Images.Web
	}
	if best == nil || best.URL == "" {
		return domain.Detail{}, false, nil
	}

	width := parseIntString(best.Width)
	height := parseIntString(best.Height)

	detail := domain.Detail{
		SourceType:   domain.SourceCleveland,
		SourceID:     artwork.AccessionNumber,
		Title:        strings.TrimSpace(artwork.Title),
		Artist:       clevelandArtist(artwork),
		FullImageURL: best.URL,
		PixelWidth:   width,
		PixelHeight:  height,
	}
	if artwork.Images.Web != nil {
		detail.ThumbnailURL = artwork.Images.Web.URL
	}
	return detail, true, nil
}

func (s *ClevelandSource) toCandidate(artwork clevelandArtwork) (domain.Candidate, bool) {
	if strings.TrimSpace(artwork.AccessionNumber) == "" {
		return domain.Candidate{}, false
	}
	best := artwork.Images.Print
	if best == nil || best.URL == "" {
		best = artwork.Images.Web
	}
	if best == nil || best.URL == "" {
		return domain.Candidate{}, false
	}

	candidate := domain.Candidate{
		SourceType:  domain.SourceCleveland,
		SourceID:    artwork.AccessionNumber,
		Title:       strings.TrimSpace(artwork.Title),
		Artist:      clevelandArtist(artwork),
		ImageRef:    best.URL,
		PixelWidth:  parseIntString(best.Width),
		PixelHeight: parseIntString(best.Height),
	}
	if artwork.Images.Web != nil {
		candidate.ThumbnailURL = artwork.Images.Web.URL
	}
	return candidate, true
}

func clevelandArtist(artwork clevelandArtwork) string {
	if len(artwork.Creators) == 0 {
		return ""
	}
	return CleanArtistName(artwork.Creators[0].Description)
}

func parseIntString(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	var parsed int
	if _, err := fmt.Sscanf(value, "%d", &parsed); err != nil {
		return 0
	}
	return parsed
}
