package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/arden/fieldsync/internal/models"
)

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantMime string
		wantKind models.EvidenceType
	}{
		{"png photo", makePNG(t, 8, 8), "image/png", models.EvidencePhoto},
		{"pdf document", []byte("%PDF-1.4\n%fake"), "application/pdf", models.EvidenceDocument},
		{"plain text", []byte("meeting notes"), "text/plain; charset=utf-8", models.EvidenceDocument},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mime, kind := Detect(tc.data)
			if mime != tc.wantMime {
				t.Errorf("mime = %q, want %q", mime, tc.wantMime)
			}
			if kind != tc.wantKind {
				t.Errorf("kind = %s, want %s", kind, tc.wantKind)
			}
		})
	}
}

func TestThumbnailFitsBoundingBox(t *testing.T) {
	data := makePNG(t, 1200, 800)

	thumb, err := Thumbnail(data)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	if len(thumb) == 0 {
		t.Fatal("Empty thumbnail")
	}

	img, err := imaging.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	b := img.Bounds()
	if b.Dx() > ThumbnailSize || b.Dy() > ThumbnailSize {
		t.Errorf("Thumbnail %dx%d exceeds %d bounding box", b.Dx(), b.Dy(), ThumbnailSize)
	}
	// Aspect ratio preserved: 1200x800 fits as 320x213
	if b.Dx() != ThumbnailSize {
		t.Errorf("Width = %d, want %d", b.Dx(), ThumbnailSize)
	}
}

func TestThumbnailRejectsNonImage(t *testing.T) {
	if _, err := Thumbnail([]byte("not an image")); err == nil {
		t.Error("Expected decode error for non-image data")
	}
}
