package imagedata

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEncode(t *testing.T) {
	img, err := Encode(pngBytes(t))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if img.MimeType != "image/png" {
		t.Errorf("Expected image/png, got %s", img.MimeType)
	}
	if !strings.HasPrefix(img.DataURL(), "data:image/png;base64,") {
		t.Errorf("unexpected data URL prefix: %.40s", img.DataURL())
	}
}

func TestEncodeRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: ErrEmpty},
		{name: "text", data: []byte("hello, not a dog"), want: ErrNotImage},
		{name: "too large", data: make([]byte, MaxBytes+1), want: ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encode(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEncodeFileAndDecodeRoundTrip(t *testing.T) {
	raw := pngBytes(t)
	path := filepath.Join(t.TempDir(), "max.png")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := EncodeFile(path)
	if err != nil {
		t.Fatalf("EncodeFile: %v", err)
	}
	decoded, err := Decode(img.DataURL())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(raw, decoded) {
		t.Error("decoded bytes differ from the original file")
	}
}

func TestNameFromFilename(t *testing.T) {
	tests := map[string]string{
		"Buddy.jpg":             "Buddy",
		"/tmp/photos/Luna.jpeg": "Luna",
		"Sir Barks.a.lot.png":   "Sir Barks.a.lot",
		"noext":                 "noext",
	}
	for in, want := range tests {
		if got := NameFromFilename(in); got != want {
			t.Errorf("NameFromFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFromDataURL(t *testing.T) {
	img, ok := FromDataURL("data:image/jpeg;base64,AAAA")
	if !ok || img.MimeType != "image/jpeg" || img.Base64 != "AAAA" {
		t.Errorf("unexpected parse: %+v (%v)", img, ok)
	}
	for _, bad := range []string{"", "https://example.com/a.png", "data:image/png,raw", "data:image/png;base64,"} {
		if _, ok := FromDataURL(bad); ok {
			t.Errorf("Expected %q to be rejected", bad)
		}
	}
}
