package ingest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// imageExtensions lists the file types the pipeline can decode.
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// ZipImage is one usable image entry from an uploaded archive.
type ZipImage struct {
	// Name is the original base name inside the archive.
	Name string
	Data []byte
}

// ExtractImages reads every image entry from a ZIP payload, keyed by
// lowercased base name for case-insensitive matching against CSV rows. Junk
// entries (directories, resource forks, hidden files, non-images) are skipped
// silently; a corrupt archive is batch-fatal.
func ExtractImages(data []byte) (map[string]ZipImage, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("ingest: open zip: %w", err)
	}

	images := make(map[string]ZipImage)
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		name := path.Base(file.Name)
		if strings.HasPrefix(file.Name, "__MACOSX/") || strings.HasPrefix(name, ".") {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(path.Ext(name))]; !ok {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("ingest: open zip entry %q: %w", file.Name, err)
		}
		payload, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("ingest: read zip entry %q: %w", file.Name, err)
		}

		key := strings.ToLower(name)
		if _, dup := images[key]; dup {
			// First entry wins when an archive carries case-variant duplicates.
			continue
		}
		images[key] = ZipImage{Name: name, Data: payload}
	}
	return images, nil
}
