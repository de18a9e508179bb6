package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/corona10/goimagehash"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	domain "github.com/galleryprints/catalog-api/internal/domain"
	"github.com/galleryprints/catalog-api/internal/imaging"
)

// ErrNoInput reports an upload with neither a CSV nor a ZIP. Batch-fatal.
var ErrNoInput = errors.New("ingest: upload carries neither csv nor images")

// Item is one prepared batch entry. Exactly one of the failure markers is set
// for rows that cannot proceed: RowError for operator-fixable defects,
// DuplicateOf for perceptual duplicates in an images-only upload.
type Item struct {
	Row         domain.NormalizedRow
	Image       []byte
	RowError    string
	DuplicateOf string
}

// Builder turns raw upload payloads into import-ready batch items.
type Builder struct {
	// DuplicateDistance is the maximum dHash distance at which two images in
	// an images-only upload count as the same picture. Zero disables the
	// check.
	DuplicateDistance int
	Logger            *zap.Logger
}

// Build validates and assembles a batch. CSV-driven uploads are all-or-nothing
// at validation time; after validation, per-row problems (a filename with no
// matching archive entry) mark the row failed without aborting the batch.
func (b *Builder) Build(csvData, zipData []byte) ([]Item, error) {
	hasCSV := len(bytes.TrimSpace(csvData)) > 0
	hasZip := len(zipData) > 0
	if !hasCSV && !hasZip {
		return nil, ErrNoInput
	}

	var images map[string]ZipImage
	if hasZip {
		extracted, err := ExtractImages(zipData)
		if err != nil {
			return nil, err
		}
		images = extracted
	}

	if !hasCSV {
		return b.buildImagesOnly(images)
	}

	rows, err := ParseCSV(csvData)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		item := Item{Row: row}
		switch {
		case row.Filename == "":
			// Pipeline fetches the image from row.FetchURL.
		default:
			match, ok := images[strings.ToLower(row.Filename)]
			if !ok && row.FetchURL == "" {
				item.RowError = fmt.Sprintf("file matching: no image named %q in upload", row.Filename)
			} else if ok {
				item.Image = match.Data
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// buildImagesOnly synthesizes one row per archive image and flags perceptual
// duplicates.
func (b *Builder) buildImagesOnly(images map[string]ZipImage) ([]Item, error) {
	if len(images) == 0 {
		return nil, ErrNoInput
	}

	keys := make([]string, 0, len(images))
	for key := range images {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	type hashed struct {
		name string
		hash *goimagehash.ImageHash
	}
	var kept []hashed

	items := make([]Item, 0, len(images))
	for _, key := range keys {
		img := images[key]
		item := Item{
			Row: domain.NormalizedRow{
				Filename:   img.Name,
				Title:      TitleFromFilename(img.Name),
				ArtistName: imaging.ExtractArtist(img.Data),
				WorkType:   domain.WorkTypeOther,
				SourceType: domain.SourceCSV,
				SourceID:   key,
			},
			Image: img.Data,
		}

		if hash := b.hashImage(img); hash != nil {
			for _, prior := range kept {
				distance, err := hash.Distance(prior.hash)
				if err != nil {
					continue
				}
				if distance <= b.DuplicateDistance {
					item.DuplicateOf = prior.name
					break
				}
			}
			if item.DuplicateOf == "" {
				kept = append(kept, hashed{name: img.Name, hash: hash})
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// hashImage computes a dHash, or nil when the image cannot be decoded or the
// check is disabled. Dedup is best effort; an undecodable image still imports.
func (b *Builder) hashImage(img ZipImage) *goimagehash.ImageHash {
	if b.DuplicateDistance <= 0 {
		return nil
	}
	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		b.debug("dedup decode failed", zap.String("name", img.Name), zap.Error(err))
		return nil
	}
	hash, err := goimagehash.DifferenceHash(decoded)
	if err != nil {
		b.debug("dedup hash failed", zap.String("name", img.Name), zap.Error(err))
		return nil
	}
	return hash
}

func (b *Builder) debug(msg string, fields ...zap.Field) {
	if b != nil && b.Logger != nil {
		b.Logger.Debug(msg, fields...)
	}
}

var filenameSeparators = regexp.MustCompile(`[-_.\s]+`)

var titleCaser = cases.Title(language.AmericanEnglish)

// TitleFromFilename derives a display title from an image file name:
// "sunset-over-hills.jpg" becomes "Sunset Over Hills".
func TitleFromFilename(name string) string {
	base := path.Base(name)
	base = strings.TrimSuffix(base, path.Ext(base))
	base = filenameSeparators.ReplaceAllString(base, " ")
	return titleCaser.String(strings.TrimSpace(base))
}
