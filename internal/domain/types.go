package domain

import (
	"strings"
	"time"
)

// SourceType identifies the external museum collection a record originates from.
type SourceType string

const (
	// SourceRijksmuseum is the Rijksmuseum collection (OAI-PMH / IIIF).
	SourceRijksmuseum SourceType = "rijksmuseum"
	// SourceGetty is the Getty Museum linked-data collection (SPARQL).
	SourceGetty SourceType = "getty"
	// SourceMet is the Metropolitan Museum of Art open access API.
	SourceMet SourceType = "met"
	// SourceNGA is the National Gallery of Art open data snapshots.
	SourceNGA SourceType = "nga"
	// SourceYale is the Yale Center for British Art (Linked Art / IIIF).
	SourceYale SourceType = "yale"
	// SourceCleveland is the Cleveland Museum of Art open access API.
	SourceCleveland SourceType = "cleveland"
	// SourceCSV marks works ingested through manual CSV/ZIP batches.
	SourceCSV SourceType = "csv"
)

var sourceTypes = map[SourceType]struct{}{
	SourceRijksmuseum: {},
	SourceGetty:       {},
	SourceMet:         {},
	SourceNGA:         {},
	SourceYale:        {},
	SourceCleveland:   {},
	SourceCSV:         {},
}

// ParseSourceType validates a raw source type string against the closed enumeration.
func ParseSourceType(raw string) (SourceType, bool) {
	st := SourceType(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := sourceTypes[st]
	return st, ok
}

// WorkType enumerates the closed set of catalog work categories.
type WorkType string

const (
	WorkTypePainting   WorkType = "painting"
	WorkTypeDrawing    WorkType = "drawing"
	WorkTypePrint      WorkType = "print"
	WorkTypePhotograph WorkType = "photograph"
	WorkTypePoster     WorkType = "poster"
	WorkTypeOther      WorkType = "other"
)

var workTypes = map[WorkType]struct{}{
	WorkTypePainting:   {},
	WorkTypeDrawing:    {},
	WorkTypePrint:      {},
	WorkTypePhotograph: {},
	WorkTypePoster:     {},
	WorkTypeOther:      {},
}

// ParseWorkType validates a raw work type string against the closed enumeration.
func ParseWorkType(raw string) (WorkType, bool) {
	wt := WorkType(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := workTypes[wt]
	return wt, ok
}

// Orientation describes the derived aspect class of a work.
type Orientation string

const (
	OrientationSquare    Orientation = "square"
	OrientationLandscape Orientation = "landscape"
	OrientationPortrait  Orientation = "portrait"
)

// WorkStatus tracks the lifecycle of a persisted work.
type WorkStatus string

const (
	// WorkStatusActive is the status assigned by the import pipeline on creation.
	WorkStatusActive WorkStatus = "active"
	// WorkStatusArchived marks a soft-deleted work. The import pipeline never
	// sets this; it exists for the surrounding admin surfaces.
	WorkStatusArchived WorkStatus = "archived"
)

// PrintSize reports the maximum printable output per axis, in inches at 300 DPI.
type PrintSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Dimensions holds physical work dimensions in inches. Depth is optional.
type Dimensions struct {
	Width  float64  `json:"width"`
	Height float64  `json:"height"`
	Depth  *float64 `json:"depth,omitempty"`
}

// Candidate is a museum search result that has not yet been resolved to full
// detail or verified dimensions. ImageRef is source-specific and opaque until
// the owning adapter derives concrete URLs from it.
type Candidate struct {
	SourceType      SourceType `json:"sourceType"`
	SourceID        string     `json:"sourceId"`
	Title           string     `json:"title"`
	Artist          string     `json:"artist"`
	ImageRef        string     `json:"-"`
	ThumbnailURL    string     `json:"thumbnailUrl,omitempty"`
	PixelWidth      int        `json:"pixelWidth,omitempty"`
	PixelHeight     int        `json:"pixelHeight,omitempty"`
	AlreadyImported bool       `json:"alreadyImported"`
	MaxPrintInches  *PrintSize `json:"maxPrintInches,omitempty"`
}

// Detail is a resolved candidate with a full-resolution image URL and
// dimensions verified against the live image server.
type Detail struct {
	SourceType   SourceType
	SourceID     string
	Title        string
	Artist       string
	FullImageURL string
	ThumbnailURL string
	PixelWidth   int
	PixelHeight  int
}

// NormalizedRow is the source-agnostic input consumed by the import pipeline.
type NormalizedRow struct {
	Filename          string
	Title             string
	ArtistName        string
	WorkType          WorkType
	DimensionsInches  string
	RetailerExclusive string
	SourceType        SourceType
	SourceID          string
	SourceLabel       string
	GPSku             string
	FetchURL          string
}

// Work is the persisted catalog entity produced exactly once per
// (SourceType, SourceID) by the import pipeline.
type Work struct {
	ID                string
	GPSku             string
	Title             string
	ArtistName        string
	WorkType          WorkType
	SourceType        SourceType
	SourceID          string
	SourceLabel       string
	RetailerExclusive string
	SourceImageURL    string
	PreviewImageURL   string
	ThumbnailImageURL string
	AiTagsHero        []string
	AiTagsHidden      []string
	Medium            string
	Colors            []string
	Dimensions        *Dimensions
	Orientation       Orientation
	PixelWidth        int
	PixelHeight       int
	Status            WorkStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ImportResult is the per-row outcome reported back through the batch envelope.
// The field shapes are a stable contract with the admin UI and CLI tooling.
type ImportResult struct {
	Success    bool   `json:"success"`
	GPSku      string `json:"gpSku"`
	Title      string `json:"title"`
	ArtistName string `json:"artistName"`
	Error      string `json:"error,omitempty"`
}
