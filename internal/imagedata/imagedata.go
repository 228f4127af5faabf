package imagedata

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxBytes caps uploaded photos at 10MB.
const MaxBytes = 10 * 1024 * 1024

var (
	ErrEmpty    = errors.New("image is empty")
	ErrTooLarge = errors.New("image too large (max 10MB)")
	ErrNotImage = errors.New("file is not an image")
)

// Image is an encoded photo ready to travel inside a JSON payload.
type Image struct {
	MimeType string
	Base64   string
}

// DataURL renders the image as a data: URL.
func (i Image) DataURL() string {
	if i.Base64 == "" {
		return ""
	}
	return "data:" + i.MimeType + ";base64," + i.Base64
}

// Encode detects the image type of data and base64-encodes it.
func Encode(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrEmpty
	}
	if len(data) > MaxBytes {
		return Image{}, ErrTooLarge
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return Image{}, fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}
	return Image{
		MimeType: mt.String(),
		Base64:   base64.StdEncoding.EncodeToString(data),
	}, nil
}

// EncodeFile reads and encodes the photo at path.
func EncodeFile(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	return Encode(data)
}

// NameFromFilename derives a dog name from an uploaded file name.
func NameFromFilename(name string) string {
	base := filepath.Base(name)
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}

// Decode returns the raw bytes of a base64 payload, accepting a data URL too.
func Decode(payload string) ([]byte, error) {
	if i := strings.Index(payload, ";base64,"); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return data, nil
}

// FromDataURL splits a data URL produced by DataURL back into its parts.
func FromDataURL(s string) (Image, bool) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return Image{}, false
	}
	mime, payload, ok := strings.Cut(rest, ";base64,")
	if !ok || payload == "" {
		return Image{}, false
	}
	return Image{MimeType: mime, Base64: payload}, true
}
