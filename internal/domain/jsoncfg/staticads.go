package jsoncfg

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"adstudio/internal/domain"
)

const (
	// DefaultRequestVersion is the schema version persisted with each job.
	DefaultRequestVersion = "2025-01"
	// DefaultLanguage is applied when neither the request nor the caller's locale names one.
	DefaultLanguage = "en"
	// MaxAngles caps how many marketing angles one job may target.
	MaxAngles = 10
	// MaxReferenceImages caps how many library images may be attached.
	MaxReferenceImages = 5
	// MaxProductImageBytes caps the decoded size of an uploaded product image.
	MaxProductImageBytes = 10 << 20
)

// ProductImage is the wire form of an uploaded product asset.
type ProductImage struct {
	Filename   string `json:"filename"`
	MIME       string `json:"mime"`
	DataBase64 string `json:"data_base64"`
}

// StaticAdRequest is the body of POST /v1/static-ads/jobs.
type StaticAdRequest struct {
	Version           string          `json:"version"`
	OriginID          string          `json:"origin_id"`
	Avatar            string          `json:"avatar"`
	Angles            []string        `json:"angles"`
	ReferenceImageIDs []string        `json:"reference_image_ids,omitempty"`
	Product           *ProductImage   `json:"product_image,omitempty"`
	Language          string          `json:"language"`
	Flags             map[string]bool `json:"flags,omitempty"`
}

// Normalize trims inputs, canonicalizes and de-duplicates angles, and applies
// defaults. Angle order is preserved because result angle indexes refer to it.
func (r *StaticAdRequest) Normalize(preferredLanguage string) {
	if r == nil {
		return
	}
	if r.Version == "" {
		r.Version = DefaultRequestVersion
	}
	r.OriginID = strings.TrimSpace(r.OriginID)
	r.Avatar = strings.TrimSpace(r.Avatar)

	seen := make(map[string]struct{}, len(r.Angles))
	angles := make([]string, 0, len(r.Angles))
	for _, a := range r.Angles {
		a = domain.CanonicalAngle(a)
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		angles = append(angles, a)
	}
	r.Angles = angles

	refs := r.ReferenceImageIDs[:0]
	for _, id := range r.ReferenceImageIDs {
		if id = strings.TrimSpace(id); id != "" {
			refs = append(refs, id)
		}
	}
	r.ReferenceImageIDs = refs

	if r.Language == "" {
		if preferredLanguage != "" {
			r.Language = preferredLanguage
		} else {
			r.Language = DefaultLanguage
		}
	}
	if r.Product != nil && strings.TrimSpace(r.Product.DataBase64) == "" {
		r.Product = nil
	}
}

// Validate ensures the request satisfies the contract before it is queued.
func (r StaticAdRequest) Validate() error {
	if r.OriginID == "" {
		return &domain.ValidationError{Field: "origin_id", Message: "is required"}
	}
	if r.Avatar == "" {
		return &domain.ValidationError{Field: "avatar", Message: "is required"}
	}
	if len(r.Angles) == 0 {
		return &domain.ValidationError{Field: "angles", Message: "select at least one angle"}
	}
	if len(r.Angles) > MaxAngles {
		return &domain.ValidationError{Field: "angles", Message: fmt.Sprintf("at most %d angles per job", MaxAngles)}
	}
	if len(r.ReferenceImageIDs) > MaxReferenceImages {
		return &domain.ValidationError{Field: "reference_image_ids", Message: fmt.Sprintf("at most %d reference images", MaxReferenceImages)}
	}
	if r.Product != nil {
		if !strings.HasPrefix(strings.ToLower(r.Product.MIME), "image/") {
			return &domain.ValidationError{Field: "product_image.mime", Message: "must be an image type"}
		}
		data, err := r.Product.Decode()
		if err != nil {
			return &domain.ValidationError{Field: "product_image.data_base64", Message: "is not valid base64"}
		}
		if len(data) > MaxProductImageBytes {
			return &domain.ValidationError{Field: "product_image", Message: "exceeds maximum size"}
		}
	}
	return nil
}

// Decode returns the raw product image bytes.
func (p *ProductImage) Decode() ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(p.DataBase64))
}

// EncodeProduct converts a domain asset to its wire form.
func EncodeProduct(asset *domain.ProductAsset) *ProductImage {
	if asset == nil || len(asset.Data) == 0 {
		return nil
	}
	return &ProductImage{
		Filename:   asset.Filename,
		MIME:       asset.MIME,
		DataBase64: base64.StdEncoding.EncodeToString(asset.Data),
	}
}

// JobCreatedPayload is the 202 response for a queued job.
type JobCreatedPayload struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// ResultPayload is the wire form of a generated result.
type ResultPayload struct {
	ID              string    `json:"id"`
	JobID           string    `json:"job_id,omitempty"`
	OriginID        string    `json:"origin_id,omitempty"`
	ImageURL        string    `json:"image_url"`
	AngleIndex      int       `json:"angle_index"`
	VariationNumber int       `json:"variation_number"`
	CreatedAt       time.Time `json:"created_at"`
}

// JobStatusPayload is the body of GET /v1/static-ads/jobs/{job_id}. Status
// carries the raw server vocabulary.
type JobStatusPayload struct {
	JobID          string          `json:"job_id"`
	OriginID       string          `json:"origin_id,omitempty"`
	Status         string          `json:"status"`
	Progress       int             `json:"progress"`
	CurrentStep    string          `json:"current_step,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	SelectedAngles []string        `json:"selected_angles,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Results        []ResultPayload `json:"results"`
}

// HistoryPayload is the body of GET /v1/static-ads/origins/{origin_id}.
type HistoryPayload struct {
	Jobs    []JobStatusPayload `json:"jobs"`
	Results []ResultPayload    `json:"results"`
}

// UsagePayload is the body of GET /v1/usage/{category}. A nil Limit means unbounded.
type UsagePayload struct {
	Category     string `json:"category"`
	CurrentUsage int    `json:"current_usage"`
	Limit        *int   `json:"limit"`
	Allowed      bool   `json:"allowed"`
}

// CodeUsageLimitReached is the error code of a usage-limit 429. Other 429s,
// such as request rate limiting, carry a different code.
const CodeUsageLimitReached = "usage_limit_reached"

// UsageLimitPayload accompanies a 429 rejection.
type UsageLimitPayload struct {
	Error        ErrorBody `json:"error"`
	CurrentUsage int       `json:"current_usage"`
	Limit        int       `json:"limit"`
}

// ErrorBody is the shared error envelope content.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImageLibraryPayload is the body of GET /v1/images.
type ImageLibraryPayload struct {
	Items []domain.ReferenceImage `json:"items"`
}

// FromResult converts a domain result to the wire form.
func FromResult(r domain.GeneratedResult) ResultPayload {
	return ResultPayload{
		ID:              r.ID,
		JobID:           r.JobID,
		OriginID:        r.OriginID,
		ImageURL:        r.ImageURL,
		AngleIndex:      r.AngleIndex,
		VariationNumber: r.VariationNumber,
		CreatedAt:       r.CreatedAt,
	}
}

// ToResult converts a wire result to the domain form.
func (p ResultPayload) ToResult() domain.GeneratedResult {
	return domain.GeneratedResult{
		ID:              p.ID,
		JobID:           p.JobID,
		OriginID:        p.OriginID,
		ImageURL:        strings.TrimSpace(p.ImageURL),
		AngleIndex:      p.AngleIndex,
		VariationNumber: p.VariationNumber,
		CreatedAt:       p.CreatedAt,
	}
}

// FromUsage converts a domain credit to the wire form.
func FromUsage(u domain.UsageCredit) UsagePayload {
	out := UsagePayload{Category: u.Category, CurrentUsage: u.CurrentUsage, Allowed: u.Allowed}
	if !u.Unlimited() {
		limit := u.Limit
		out.Limit = &limit
	}
	return out
}

// ToUsage converts the wire form to a domain credit.
func (p UsagePayload) ToUsage() domain.UsageCredit {
	out := domain.UsageCredit{Category: p.Category, CurrentUsage: p.CurrentUsage, Limit: domain.UnlimitedUsage, Allowed: p.Allowed}
	if p.Limit != nil {
		out.Limit = *p.Limit
	}
	return out
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}
