package coverart

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.senan.xyz/taglib"
)

const (
	SourceKindFile     = "file"
	SourceKindEmbedded = "embedded"
	SourceKindSidecar  = "sidecar"
)

var ErrNoArtwork = errors.New("no artwork found")

var audioExtensions = map[string]struct{}{
	".aac":  {},
	".aif":  {},
	".aiff": {},
	".alac": {},
	".flac": {},
	".m4a":  {},
	".mp3":  {},
	".ogg":  {},
	".opus": {},
	".wav":  {},
	".wma":  {},
}

var sidecarNames = []string{"cover", "folder", "front", "album"}

var sidecarExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

type Artwork struct {
	SourceKind string `json:"sourceKind"`
	SourcePath string `json:"sourcePath"`
	MIMEType   string `json:"mimeType"`
	Hash       string `json:"hash"`
	Data       []byte `json:"-"`
}

func IsAudio(path string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Load returns the image bytes behind path. Audio files yield their embedded
// picture, falling back to a cover/folder image next to them.
func Load(path string) (Artwork, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return Artwork{}, errors.New("artwork path is required")
	}

	if !IsAudio(trimmed) {
		data, err := os.ReadFile(trimmed)
		if err != nil {
			return Artwork{}, fmt.Errorf("read image: %w", err)
		}
		return newArtwork(SourceKindFile, trimmed, data), nil
	}

	data, readErr := taglib.ReadImage(trimmed)
	if readErr == nil && len(data) > 0 {
		return newArtwork(SourceKindEmbedded, trimmed, data), nil
	}

	if sidecarPath, ok := findSidecar(filepath.Dir(trimmed)); ok {
		data, err := os.ReadFile(sidecarPath)
		if err != nil {
			return Artwork{}, fmt.Errorf("read sidecar cover: %w", err)
		}
		return newArtwork(SourceKindSidecar, sidecarPath, data), nil
	}

	if readErr != nil {
		return Artwork{}, fmt.Errorf("read embedded artwork: %w", readErr)
	}
	return Artwork{}, fmt.Errorf("%w in %s", ErrNoArtwork, trimmed)
}

func newArtwork(kind string, path string, data []byte) Artwork {
	return Artwork{
		SourceKind: kind,
		SourcePath: path,
		MIMEType:   http.DetectContentType(data),
		Hash:       ContentHash(data),
		Data:       data,
	}
}

func findSidecar(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	byName := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		byName[strings.ToLower(entry.Name())] = entry.Name()
	}

	for _, name := range sidecarNames {
		for _, ext := range sidecarExtensions {
			if actual, ok := byName[name+ext]; ok {
				return filepath.Join(dir, actual), true
			}
		}
	}

	return "", false
}

func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func IsValidHash(value string) bool {
	if len(value) != 64 {
		return false
	}

	for _, char := range value {
		if (char < '0' || char > '9') && (char < 'a' || char > 'f') && (char < 'A' || char > 'F') {
			return false
		}
	}

	return true
}
