package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	// MaxHeroTags caps the customer-visible tag list.
	MaxHeroTags = 10
	// MaxHiddenTags caps the search-only tag list.
	MaxHiddenTags = 50

	defaultTimeout = 30 * time.Second
)

const tagPrompt = `You are cataloging a fine art print. Given the artwork image, its title %q and artist %q, respond with JSON only, in this shape:
{"heroTags": [...], "hiddenTags": [...], "medium": "..."}
heroTags: up to 10 short customer-facing keywords describing subject, style and palette.
hiddenTags: up to 50 additional search keywords, including synonyms and related terms.
medium: the most likely physical medium, for example "oil on canvas", or "" if unclear.`

// TagResult is the AI cataloging output for a single artwork image.
type TagResult struct {
	Hero   []string
	Hidden []string
	Medium string
}

// Tagger generates catalog tags and search embeddings with Gemini. All
// methods are best effort from the caller's point of view; the import
// pipeline treats a failed call as an empty result, never a failed import.
type Tagger struct {
	client         *genai.Client
	taggingModel   string
	embeddingModel string
	timeout        time.Duration
	logger         *zap.Logger
}

// Options configures a Tagger.
type Options struct {
	TaggingModel   string
	EmbeddingModel string
	Timeout        time.Duration
	Logger         *zap.Logger
}

// New dials the Gemini API. A nil return with a nil error never happens; an
// empty API key is an error so callers can decide to run untagged instead.
func New(ctx context.Context, apiKey string, opts Options) (*Tagger, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("tagging: api key is required")
	}
	if opts.TaggingModel == "" || opts.EmbeddingModel == "" {
		return nil, fmt.Errorf("tagging: model names are required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("tagging: create gemini client: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tagger{
		client:         client,
		taggingModel:   opts.TaggingModel,
		embeddingModel: opts.EmbeddingModel,
		timeout:        timeout,
		logger:         logger,
	}, nil
}

// Close releases the underlying API client.
func (t *Tagger) Close() error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Close()
}

// TagImage asks the model for hero tags, hidden tags and a medium guess for
// a JPEG image.
func (t *Tagger) TagImage(ctx context.Context, jpeg []byte, title, artist string) (TagResult, error) {
	if t == nil || t.client == nil {
		return TagResult{}, fmt.Errorf("tagging: tagger not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	model := t.client.GenerativeModel(t.taggingModel)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx,
		genai.ImageData("jpeg", jpeg),
		genai.Text(fmt.Sprintf(tagPrompt, title, artist)),
	)
	if err != nil {
		return TagResult{}, fmt.Errorf("tagging: generate tags: %w", err)
	}
	text, err := firstTextPart(resp)
	if err != nil {
		return TagResult{}, err
	}
	result, err := parseTagPayload(text)
	if err != nil {
		return TagResult{}, err
	}
	return result, nil
}

// EmbedText returns a semantic vector for the given catalog text.
func (t *Tagger) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if t == nil || t.client == nil {
		return nil, fmt.Errorf("tagging: tagger not configured")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("tagging: embed text is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	model := t.client.EmbeddingModel(t.embeddingModel)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("tagging: embed content: %w", err)
	}
	if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("tagging: empty embedding response")
	}
	return resp.Embedding.Values, nil
}

func firstTextPart(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("tagging: no candidates returned")
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", fmt.Errorf("tagging: empty content returned")
	}
	if text, ok := content.Parts[0].(genai.Text); ok {
		return string(text), nil
	}
	return "", fmt.Errorf("tagging: unexpected response part type")
}

type tagPayload struct {
	HeroTags   []string `json:"heroTags"`
	HiddenTags []string `json:"hiddenTags"`
	Medium     string   `json:"medium"`
}

// parseTagPayload decodes the model's JSON answer, tolerating a fenced code
// block wrapper, and normalizes the tag lists to their caps.
func parseTagPayload(text string) (TagResult, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var payload tagPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return TagResult{}, fmt.Errorf("tagging: malformed tag payload: %w", err)
	}
	return TagResult{
		Hero:   normalizeTags(payload.HeroTags, MaxHeroTags),
		Hidden: normalizeTags(payload.HiddenTags, MaxHiddenTags),
		Medium: strings.TrimSpace(payload.Medium),
	}, nil
}

// normalizeTags lowercases, trims, dedupes and caps a tag list while keeping
// the model's ordering.
func normalizeTags(tags []string, limit int) []string {
	out := make([]string, 0, limit)
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
