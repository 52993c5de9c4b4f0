package objects

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/aeriallabs/registry/pkg/index"
)

// spooled holds an incoming object staged on local disk so it can be
// inspected (hash, size, type) before touching the blob store, then
// streamed to the backend without holding the bytes in memory.
type spooled struct {
	file *os.File
	size int64
	hash string
}

// spool copies data to a temp file, hashing it along the way.
func spool(data io.Reader) (*spooled, error) {
	file, err := os.CreateTemp("", "registry-upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(file, hasher), data)
	if err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, fmt.Errorf("failed to spool upload: %w", err)
	}

	return &spooled{
		file: file,
		size: size,
		hash: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Reader rewinds the spool and returns it for streaming to the blob store.
func (s *spooled) Reader() (io.Reader, error) {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind spool file: %w", err)
	}
	return s.file, nil
}

// Close removes the spool file.
func (s *spooled) Close() error {
	name := s.file.Name()
	err := s.file.Close()
	os.Remove(name)
	return err
}

// extensionTypes maps well-known extensions straight to an entry type,
// skipping content sniffing for the common cases.
var extensionTypes = map[string]index.EntryType{
	".tif":  index.TypeGeoRaster,
	".tiff": index.TypeGeoRaster,
	".las":  index.TypePointCloud,
	".laz":  index.TypePointCloud,
	".ply":  index.TypePointCloud,
	".zip":  index.TypeContainer,
	".tar":  index.TypeContainer,
	".gz":   index.TypeContainer,
	".7z":   index.TypeContainer,
	".jpg":  index.TypeImage,
	".jpeg": index.TypeImage,
	".png":  index.TypeImage,
	".gif":  index.TypeImage,
	".webp": index.TypeImage,
	".bmp":  index.TypeImage,
}

// detectType classifies an object by its name, falling back to sniffing the
// spooled content when the extension is unknown.
func detectType(objectPath string, s *spooled) index.EntryType {
	ext := strings.ToLower(path.Ext(objectPath))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}

	mime, err := mimetype.DetectFile(s.file.Name())
	if err != nil {
		return index.TypeGeneric
	}
	switch {
	case strings.HasPrefix(mime.String(), "image/"):
		return index.TypeImage
	case mime.Is("application/zip"), mime.Is("application/x-tar"),
		mime.Is("application/gzip"), mime.Is("application/x-7z-compressed"):
		return index.TypeContainer
	default:
		return index.TypeGeneric
	}
}

// contentTypeFor returns the MIME type to serve an entry with, derived from
// the name alone since the bytes are not in hand at response time.
func contentTypeFor(objectPath string) string {
	switch strings.ToLower(path.Ext(objectPath)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".zip":
		return "application/zip"
	case ".json", ".geojson":
		return "application/json"
	case ".txt":
		return "text/plain"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
