package media

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	"github.com/arden/fieldsync/internal/models"
)

// ThumbnailSize is the bounding box thumbnails are fitted into.
const ThumbnailSize = 320

// Detect sniffs the MIME type of a captured blob and classifies it into an
// evidence kind. The blob's content wins over any file extension.
func Detect(data []byte) (mimeType string, kind models.EvidenceType) {
	mt := mimetype.Detect(data)
	mimeType = mt.String()
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		kind = models.EvidencePhoto
	case strings.HasPrefix(mimeType, "audio/"):
		kind = models.EvidenceVoice
	default:
		kind = models.EvidenceDocument
	}
	return mimeType, kind
}

// Thumbnail renders a JPEG thumbnail fitted into the standard bounding box.
// Only image blobs have thumbnails; other kinds get none.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	thumb := imaging.Fit(img, ThumbnailSize, ThumbnailSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
