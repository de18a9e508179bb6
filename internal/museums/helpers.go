package museums

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	domain "github.com/galleryprints/catalog-api/internal/domain"
)

const maxResponseBytes = 32 << 20

// trailing parenthetical biographical annotation, e.g. "(French, 1840-1926)".
var trailingParenthetical = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// leading role label, e.g. "Artist: " or "painter:".
var leadingRoleLabel = regexp.MustCompile(`(?i)^\s*(artist|painter|maker|creator|author|attributed to)\s*:\s*`)

// CleanArtistName strips role-label prefixes and trailing biographical
// parentheticals from an agent name.
func CleanArtistName(name string) string {
	name = strings.TrimSpace(name)
	name = leadingRoleLabel.ReplaceAllString(name, "")
	for {
		stripped := trailingParenthetical.ReplaceAllString(name, "")
		if stripped == name {
			break
		}
		name = stripped
	}
	return strings.TrimSpace(name)
}

// Annotate fills the derived printability fields on a candidate. Candidates
// without verified dimensions are left unannotated and report as not printable.
func Annotate(candidate *domain.Candidate) {
	if candidate == nil {
		return
	}
	if candidate.PixelWidth <= 0 || candidate.PixelHeight <= 0 {
		candidate.MaxPrintInches = nil
		return
	}
	size := domain.MaxPrintSize(candidate.PixelWidth, candidate.PixelHeight)
	candidate.MaxPrintInches = &size
}

// Printable reports whether the candidate's verified dimensions support
// printing. Unverified dimensions exclude rather than assume.
func Printable(candidate domain.Candidate) bool {
	return domain.PrintEligible(candidate.PixelWidth, candidate.PixelHeight)
}

// FilterPrintable drops candidates below the print threshold, annotating the
// survivors with their maximum print size.
func FilterPrintable(candidates []domain.Candidate) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if !Printable(candidate) {
			continue
		}
		Annotate(&candidate)
		out = append(out, candidate)
	}
	return out
}

// getJSON fetches a URL and decodes the JSON body into target.
func (c *Client) getJSON(ctx context.Context, url string, target any, headers map[string]string) error {
	body, err := c.get(ctx, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("museums: decode %s: %w", url, err)
	}
	return nil
}

// get fetches a URL and returns the raw body. Non-2xx statuses are errors.
func (c *Client) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("museums: build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("museums: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("museums: fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("museums: read %s: %w", url, err)
	}
	return body, nil
}

func (c *Client) debug(msg string, fields ...zap.Field) {
	if c != nil && c.logger != nil {
		c.logger.Debug(msg, fields...)
	}
}
