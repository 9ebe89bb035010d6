package domain

import "time"

// GeneratedResult is a single static ad image produced by a job. ImageURL is
// the identity used for de-duplication; IDs are not stable across polls.
type GeneratedResult struct {
	ID              string    `json:"id"`
	JobID           string    `json:"job_id,omitempty"`
	OriginID        string    `json:"origin_id,omitempty"`
	ImageURL        string    `json:"image_url"`
	AngleIndex      int       `json:"angle_index"`
	VariationNumber int       `json:"variation_number"`
	CreatedAt       time.Time `json:"created_at"`
}

// ReferenceImage is an entry in the reusable image library.
type ReferenceImage struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ProductAsset carries an optional uploaded product image. Upload handling
// belongs to the caller; the bytes are forwarded untouched.
type ProductAsset struct {
	Filename string
	MIME     string
	Data     []byte
}
