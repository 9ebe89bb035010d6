package adgen

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"strconv"
	"time"

	"adstudio/internal/infra"
)

// SyntheticOptions configures the offline generator.
type SyntheticOptions struct {
	Size   int
	Delay  time.Duration
	Logger *infra.Logger
}

// SyntheticGenerator renders deterministic placeholder artwork so the whole
// pipeline runs without an external image model. The uploaded product photo,
// when decodable, is pasted in the centre.
type SyntheticGenerator struct {
	size   int
	delay  time.Duration
	logger *infra.Logger
}

func NewSyntheticGenerator(opts SyntheticOptions) *SyntheticGenerator {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &SyntheticGenerator{size: opts.Size, delay: opts.Delay, logger: logger}
}

func (g *SyntheticGenerator) Generate(ctx context.Context, b Brief) (Image, error) {
	if g.delay > 0 {
		t := time.NewTimer(g.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Image{}, ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Image{}, err
	}

	prompt := BuildPrompt(b)
	seed := deterministicSeed(b.JobID, b.AngleIndex, b.Variation, prompt)
	width, height := Dimensions(b.Flags, g.size)
	var product []byte
	if b.Product != nil {
		product = b.Product.Data
	}
	data, err := render(width, height, seed, product)
	if err != nil {
		return Image{}, fmt.Errorf("adgen: render: %w", err)
	}
	g.logger.Debug().
		Str("job_id", b.JobID).
		Int("angle_index", b.AngleIndex).
		Int("variation", b.Variation).
		Int("bytes", len(data)).
		Msg("adgen: rendered synthetic ad")
	return Image{Data: data, MIME: "image/png", Width: width, Height: height}, nil
}

func render(width, height int, seed string, product []byte) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{colorFromSeed(seed, 0)}, image.Point{}, draw.Src)

	band := max(32, height/10)
	for y := 0; y < height; y += band * 3 {
		stripe := image.Rect(0, y, width, min(height, y+band))
		draw.Draw(img, stripe, &image.Uniform{colorFromSeed(seed, 1)}, image.Point{}, draw.Over)
	}
	// call-to-action bar
	cta := image.Rect(width/4, height*5/6, width*3/4, height*5/6+max(24, height/16))
	draw.Draw(img, cta.Intersect(img.Bounds()), &image.Uniform{colorFromSeed(seed, 2)}, image.Point{}, draw.Src)

	if len(product) > 0 {
		if src, _, err := image.Decode(bytes.NewReader(product)); err == nil {
			b := src.Bounds()
			at := image.Pt((width-b.Dx())/2, (height-b.Dy())/2)
			draw.Draw(img, image.Rectangle{Min: at, Max: at.Add(b.Size())}.Intersect(img.Bounds()), src, b.Min, draw.Over)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func colorFromSeed(seed string, shift int) color.RGBA {
	start := (shift * 6) % (len(seed) - 5)
	channel := func(s string) uint8 {
		v, err := strconv.ParseUint(s, 16, 8)
		if err != nil {
			return 0
		}
		return uint8(v)
	}
	seg := seed[start : start+6]
	return color.RGBA{R: channel(seg[0:2]), G: channel(seg[2:4]), B: channel(seg[4:6]), A: 255}
}

func deterministicSeed(parts ...any) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%v|", p)
	}
	return hex.EncodeToString(h.Sum(nil))[:24]
}

var _ Generator = (*SyntheticGenerator)(nil)
