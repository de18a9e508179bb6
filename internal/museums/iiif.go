package museums

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	infoJSONTimeout = 4 * time.Second
	sofFetchBytes   = 64 << 10
)

// IIIFFullURL derives the canonical full-size image URL from a IIIF image
// service base.
func IIIFFullURL(base string) string {
	return strings.TrimRight(base, "/") + "/full/full/0/default.jpg"
}

// IIIFThumbnailURL derives a bounded thumbnail URL from a IIIF image service
// base.
func IIIFThumbnailURL(base string) string {
	return strings.TrimRight(base, "/") + "/full/!400,400/0/default.jpg"
}

type iiifInfo struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// InfoJSONDimensions asks a IIIF image service for the served pixel size. The
// call carries its own bounded timeout; failures report ok=false so callers
// can fall back to their best-known values instead of blocking an import.
func (c *Client) InfoJSONDimensions(ctx context.Context, base string) (int, int, bool) {
	infoCtx, cancel := context.WithTimeout(ctx, infoJSONTimeout)
	defer cancel()

	url := strings.TrimRight(base, "/") + "/info.json"
	var info iiifInfo
	if err := c.getJSON(infoCtx, url, &info, nil); err != nil {
		c.debug("iiif info.json unavailable", zap.String("url", url), zap.Error(err))
		return 0, 0, false
	}
	if info.Width <= 0 || info.Height <= 0 {
		return 0, 0, false
	}
	return info.Width, info.Height, true
}

// JPEGDimensions fetches the leading bytes of a JPEG over HTTP and parses the
// SOF marker for the pixel size. Used for image hosts that expose no metadata
// endpoint at all.
func (c *Client) JPEGDimensions(ctx context.Context, url string) (int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("museums: build range request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", sofFetchBytes-1))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("museums: range fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, 0, fmt.Errorf("museums: range fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	head, err := io.ReadAll(io.LimitReader(resp.Body, sofFetchBytes))
	if err != nil {
		return 0, 0, fmt.Errorf("museums: read head of %s: %w", url, err)
	}
	return parseJPEGSOF(head)
}

// parseJPEGSOF scans JPEG markers for a start-of-frame segment and returns
// (width, height).
func parseJPEGSOF(data []byte) (int, int, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return 0, 0, fmt.Errorf("museums: not a jpeg stream")
	}
	offset := 2
	for offset+3 < len(data) {
		if data[offset] != 0xFF {
			offset++
			continue
		}
		marker := data[offset+1]
		// Standalone markers carry no length.
		if marker == 0xD8 || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			offset += 2
			continue
		}
		if offset+4 > len(data) {
			break
		}
		length := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		if isSOFMarker(marker) {
			if offset+9 > len(data) {
				break
			}
			height := int(binary.BigEndian.Uint16(data[offset+5 : offset+7]))
			width := int(binary.BigEndian.Uint16(data[offset+7 : offset+9]))
			if width <= 0 || height <= 0 {
				return 0, 0, fmt.Errorf("museums: jpeg sof reports degenerate size %dx%d", width, height)
			}
			return width, height, nil
		}
		offset += 2 + length
	}
	return 0, 0, fmt.Errorf("museums: jpeg sof marker not found in first %d bytes", len(data))
}

func isSOFMarker(marker byte) bool {
	if marker < 0xC0 || marker > 0xCF {
		return false
	}
	switch marker {
	case 0xC4, 0xC8, 0xCC:
		// DHT, JPG extension, and DAC are not frame headers.
		return false
	}
	return true
}
