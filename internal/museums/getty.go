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
	gettyDefaultSPARQLURL = "https://data.getty.edu/museum/collection/sparql"
	gettyConcurrency      = 8
)

// GettySource queries the Getty Museum collection through its public SPARQL
// endpoint. Keyword search runs a CONTAINS(LCASE(...)) filter over object
// labels plus a paired COUNT query for the total; object detail comes from the
// Linked Art JSON document behind each object URI, with pixel dimensions read
// from the IIIF info.json of the first representation.
type GettySource struct {
	client    *Client
	sparqlURL string
}

// NewGettySource constructs the Getty adapter.
func NewGettySource(client *Client, sparqlURL string) (*GettySource, error) {
	if client == nil {
		return nil, fmt.Errorf("getty source: client is required")
	}
	if strings.TrimSpace(sparqlURL) == "" {
		sparqlURL = gettyDefaultSPARQLURL
	}
	return &GettySource{client: client, sparqlURL: sparqlURL}, nil
}

// Name implements Source.
func (s *GettySource) Name() domain.SourceType { return domain.SourceGetty }

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]sparqlValue `json:"bindings"`
	} `json:"results"`
}

type sparqlValue struct {
	Value string `json:"value"`
}

const gettySearchQuery = `PREFIX crm: <http://www.cidoc-crm.org/cidoc-crm/>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
SELECT DISTINCT ?obj ?label ?artist WHERE {
  ?obj a crm:E22_Human-Made_Object ;
       rdfs:label ?label .
  OPTIONAL { ?obj crm:P108i_was_produced_by/crm:P14_carried_out_by/rdfs:label ?artist }
  FILTER(CONTAINS(LCASE(STR(?label)), "%s"))
}
ORDER BY ?obj
LIMIT %d OFFSET %d`

const gettyCountQuery = `PREFIX crm: <http://www.cidoc-crm.org/cidoc-crm/>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
SELECT (COUNT(DISTINCT ?obj) AS ?total) WHERE {
  ?obj a crm:E22_Human-Made_Object ;
       rdfs:label ?label .
  FILTER(CONTAINS(LCASE(STR(?label)), "%s"))
}`

// escapeSPARQLLiteral escapes backslashes and quotes so user input cannot
// break out of the string literal inside the FILTER expression.
func escapeSPARQLLiteral(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `"`, `\"`)
	value = strings.ReplaceAll(value, "\n", " ")
	return value
}

// Search implements Source.
func (s *GettySource) Search(ctx context.Context, query string, page int) (SearchResult, error) {
	if page < 1 {
		page = 1
	}
	needle := escapeSPARQLLiteral(strings.ToLower(strings.TrimSpace(query)))

	total, err := s.runCount(ctx, fmt.Sprintf(gettyCountQuery, needle))
	if err != nil {
		return SearchResult{}, err
	}

	offset := (page - 1) * defaultPageSize
	var response sparqlResponse
	if err := s.runQuery(ctx, fmt.Sprintf(gettySearchQuery, needle, defaultPageSize, offset), &response); err != nil {
		return SearchResult{}, err
	}

	bindings := response.Results.Bindings
	candidates := make([]domain.Candidate, len(bindings))
	resolved := make([]bool, len(bindings))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(gettyConcurrency)
	for i, binding := range bindings {
		i, binding := i, binding
		group.Go(func() error {
			objectURI := binding["obj"].Value
			if objectURI == "" {
				return nil
			}
			detail, ok, err := s.ResolveDetail(groupCtx, objectURI)
			if err != nil {
				s.client.debug("getty object resolve failed")
				return nil
			}
			if !ok {
				return nil
			}
			candidate := domain.Candidate{
				SourceType:   domain.SourceGetty,
				SourceID:     detail.SourceID,
				Title:        detail.Title,
				Artist:       detail.Artist,
				ImageRef:     objectURI,
				ThumbnailURL: detail.ThumbnailURL,
				PixelWidth:   detail.PixelWidth,
				PixelHeight:  detail.PixelHeight,
			}
			if candidate.Title == "" {
				candidate.Title = strings.TrimSpace(binding["label"].Value)
			}
			if candidate.Artist == "" {
				candidate.Artist = CleanArtistName(binding["artist"].Value)
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

	items := make([]domain.Candidate, 0, len(bindings))
	for i := range candidates {
		if resolved[i] {
			items = append(items, candidates[i])
		}
	}
	return SearchResult{Total: total, Items: FilterPrintable(items)}, nil
}

type gettyLinkedArtObject struct {
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
	} `json:"produced_by"`
	Representation []struct {
		ID string `json:"id"`
	} `json:"representation"`
}

// ResolveDetail implements Source. The id is the full Getty object URI.
func (s *GettySource) ResolveDetail(ctx context.Context, id string) (domain.Detail, bool, error) {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, "http") {
		return domain.Detail{}, false, fmt.Errorf("getty source: id must be an object URI, got %q", id)
	}

	var object gettyLinkedArtObject
	if err := s.client.getJSON(ctx, id, &object, map[string]string{"Accept": "application/json"}); err != nil {
		return domain.Detail{}, false, err
	}

	iiifBase := ""
	for _, representation := range object.Representation {
		if strings.Contains(representation.ID, "/iiif/") {
			iiifBase = strings.TrimSuffix(representation.ID, "/full/full/0/default.jpg")
			break
		}
	}
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

	artist := ""
	if object.ProducedBy != nil && len(object.ProducedBy.CarriedOutBy) > 0 {
		artist = CleanArtistName(object.ProducedBy.CarriedOutBy[0].Label)
	}

	width, height, _ := s.client.InfoJSONDimensions(ctx, iiifBase)

	return domain.Detail{
		SourceType:   domain.SourceGetty,
		SourceID:     object.ID,
		Title:        title,
		Artist:       artist,
		FullImageURL: IIIFFullURL(iiifBase),
		ThumbnailURL: IIIFThumbnailURL(iiifBase),
		PixelWidth:   width,
		PixelHeight:  height,
	}, true, nil
}

func (s *GettySource) runQuery(ctx context.Context, query string, target *sparqlResponse) error {
	params := url.Values{}
	params.Set("query", query)
	return s.client.getJSON(ctx, s.sparqlURL+"?"+params.Encode(), target, map[string]string{
		"Accept": "application/sparql-results+json",
	})
}

func (s *GettySource) runCount(ctx context.Context, query string) (int, error) {
	var response sparqlResponse
	if err := s.runQuery(ctx, query, &response); err != nil {
		return 0, err
	}
	if len(response.Results.Bindings) == 0 {
		return 0, nil
	}
	total, err := strconv.Atoi(response.Results.Bindings[0]["total"].Value)
	if err != nil {
		return 0, fmt.Errorf("getty source: malformed count result: %w", err)
	}
	return total, nil
}
