package museums

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	domain "github.com/galleryprints/catalog-api/internal/domain"
)

const (
	rijksDefaultSearchURL = "https://data.rijksmuseum.nl/search/collection"
	rijksDefaultOAIURL    = "https://www.rijksmuseum.nl/api/oai"
	rijksConcurrency      = 8
)

// RijksmuseumSource searches the Rijksmuseum collection API and resolves
// object detail over OAI-PMH. Search pages are addressed by an opaque token
// rather than an offset, so the adapter keeps a per-query token cache and
// walks forward from the nearest cached page when a later page is requested.
type RijksmuseumSource struct {
	client    *Client
	searchURL string
	oaiURL    string
	apiKey    string

	mu     sync.Mutex
	tokens map[string]map[int]string
}

// NewRijksmuseumSource constructs the Rijksmuseum adapter. The API key is
// required for the OAI-PMH endpoint.
func NewRijksmuseumSource(client *Client, apiKey, searchURL, oaiURL string) (*RijksmuseumSource, error) {
	if client == nil {
		return nil, fmt.Errorf("rijksmuseum source: client is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("rijksmuseum source: api key is required")
	}
	if strings.TrimSpace(searchURL) == "" {
		searchURL = rijksDefaultSearchURL
	}
	if strings.TrimSpace(oaiURL) == "" {
		oaiURL = rijksDefaultOAIURL
	}
	return &RijksmuseumSource{
		client:    client,
		searchURL: searchURL,
		oaiURL:    strings.TrimRight(oaiURL, "/"),
		apiKey:    apiKey,
		tokens:    make(map[string]map[int]string),
	}, nil
}

// Name implements Source.
func (s *RijksmuseumSource) Name() domain.SourceType { return domain.SourceRijksmuseum }

type rijksSearchResponse struct {
	PartOf struct {
		TotalItems int `json:"totalItems"`
	} `json:"partOf"`
	OrderedItems []struct {
		ID string `json:"id"`
	} `json:"orderedItems"`
	Next *struct {
		ID string `json:"id"`
	} `json:"next"`
}

// Search implements Source.
func (s *RijksmuseumSource) Search(ctx context.Context, query string, page int) (SearchResult, error) {
	if page < 1 {
		page = 1
	}
	response, err := s.fetchPage(ctx, query, page)
	if err != nil {
		return SearchResult{}, err
	}

	candidates := make([]domain.Candidate, len(response.OrderedItems))
	resolved := make([]bool, len(response.OrderedItems))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(rijksConcurrency)
	for i, item := range response.OrderedItems {
		i, item := i, item
		group.Go(func() error {
			objectNumber := objectNumberFromURI(item.ID)
			if objectNumber == "" {
				return nil
			}
			detail, ok, err := s.ResolveDetail(groupCtx, objectNumber)
			if err != nil {
				s.client.debug("rijksmuseum record resolve failed")
				return nil
			}
			if !ok {
				return nil
			}
			mu.Lock()
			candidates[i] = domain.Candidate{
				SourceType:   domain.SourceRijksmuseum,
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

// fetchPage returns the search page for a 1-indexed page number, walking the
// token chain forward from the nearest cached page when needed.
func (s *RijksmuseumSource) fetchPage(ctx context.Context, query string, page int) (rijksSearchResponse, error) {
	query = strings.TrimSpace(query)

	start := 1
	startURL := s.firstPageURL(query)
	s.mu.Lock()
	if cached, ok := s.tokens[query]; ok {
		for p := page; p >= 1; p-- {
			if u, ok := cached[p]; ok {
				start, startURL = p, u
				break
			}
		}
	}
	s.mu.Unlock()

	var response rijksSearchResponse
	for current := start; current <= page; current++ {
		if err := s.client.getJSON(ctx, startURL, &response, nil); err != nil {
			return rijksSearchResponse{}, err
		}
		if response.Next != nil && response.Next.ID != "" {
			s.mu.Lock()
			if s.tokens[query] == nil {
				s.tokens[query] = make(map[int]string)
			}
			s.tokens[query][current+1] = response.Next.ID
			s.mu.Unlock()
			startURL = response.Next.ID
		} else if current < page {
			// Ran past the last page.
			return rijksSearchResponse{PartOf: response.PartOf}, nil
		}
	}
	return response, nil
}

func (s *RijksmuseumSource) firstPageURL(query string) string {
	params := url.Values{}
	params.Set("text", query)
	params.Set("imageAvailable", "true")
	return s.searchURL + "?" + params.Encode()
}

// objectNumberFromURI extracts the object number from a collection URI such
// as https://id.rijksmuseum.nl/collection/SK-C-5.
func objectNumberFromURI(uri string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(uri), "/")
	if trimmed == "" {
		return ""
	}
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}

type oaiGetRecordResponse struct {
	XMLName   xml.Name `xml:"OAI-PMH"`
	Error     *oaiError
	GetRecord struct {
		Record struct {
			Metadata struct {
				DC oaiDublinCore `xml:"dc"`
			} `xml:"metadata"`
		} `xml:"record"`
	} `xml:"GetRecord"`
}

type oaiError struct {
	XMLName xml.Name `xml:"error"`
	Code    string   `xml:"code,attr"`
	Message string   `xml:",chardata"`
}

type oaiDublinCore struct {
	Titles      []string `xml:"title"`
	Creators    []string `xml:"creator"`
	Identifiers []string `xml:"identifier"`
}

// ResolveDetail implements Source. The id is the museum object number, for
// example SK-C-5.
func (s *RijksmuseumSource) ResolveDetail(ctx context.Context, id string) (domain.Detail, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Detail{}, false, fmt.Errorf("rijksmuseum source: object number is required")
	}

	params := url.Values{}
	params.Set("verb", "GetRecord")
	params.Set("metadataPrefix", "oai_dc")
	params.Set("identifier", "oai:rijksmuseum.nl:"+id)

	body, err := s.client.get(ctx, s.oaiURL+"/"+s.apiKey+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Detail{}, false, err
	}

	var record oaiGetRecordResponse
	if err := xml.Unmarshal(body, &record); err != nil {
		return domain.Detail{}, false, fmt.Errorf("rijksmuseum source: malformed OAI response: %w", err)
	}
	if record.Error != nil {
		if record.Error.Code == "idDoesNotExist" {
			return domain.Detail{}, false, nil
		}
		return domain.Detail{}, false, fmt.Errorf("rijksmuseum source: OAI error %s: %s", record.Error.Code, strings.TrimSpace(record.Error.Message))
	}

	dc := record.GetRecord.Record.Metadata.DC
	imageURL := ""
	for _, identifier := range dc.Identifiers {
		if strings.Contains(identifier, "/media/") || strings.HasSuffix(identifier, ".jpg") {
			imageURL = identifier
			break
		}
	}
	if imageURL == "" {
		return domain.Detail{}, false, nil
	}

	width, height, dimErr := s.client.JPEGDimensions(ctx, imageURL)
	if dimErr != nil {
		width, height = 0, 0
	}

	detail := domain.Detail{
		SourceType:   domain.SourceRijksmuseum,
		SourceID:     id,
		FullImageURL: imageURL,
		ThumbnailURL: imageURL,
		PixelWidth:   width,
		PixelHeight:  height,
	}
	if len(dc.Titles) > 0 {
		detail.Title = strings.TrimSpace(dc.Titles[0])
	}
	if len(dc.Creators) > 0 {
		detail.Artist = CleanArtistName(dc.Creators[0])
	}
	return detail, true, nil
}
