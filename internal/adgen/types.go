// Package adgen renders static ad images for one angle and variation.
package adgen

import (
	"context"

	"adstudio/internal/domain"
)

// Brief is everything a generator needs for one image.
type Brief struct {
	JobID             string
	OriginID          string
	Avatar            string
	Angle             string
	AngleIndex        int
	Variation         int
	Language          string
	ReferenceImageIDs []string
	Product           *domain.ProductAsset
	Flags             map[string]bool
}

// Image is an encoded generator output.
type Image struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Generator is implemented by image providers.
type Generator interface {
	Generate(ctx context.Context, brief Brief) (Image, error)
}

// Ext returns the file extension for the image's MIME type.
func (i Image) Ext() string {
	switch i.MIME {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
