package adgen

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"adstudio/internal/domain"
)

func TestBuildPrompt(t *testing.T) {
	b := Brief{
		Avatar:     "busy parents",
		Angle:      "save time: dinner in ten minutes",
		AngleIndex: 1,
		Variation:  2,
		Language:   "id",
		Flags:      map[string]bool{FlagStory: true, FlagBoldCTA: true},
	}
	got := BuildPrompt(b)
	for _, want := range []string{
		`"Save Time"`,
		"Angle detail: dinner in ten minutes.",
		"Target customer: busy parents.",
		"vertical 9:16",
		"in Indonesian",
		"call to action",
		"lifestyle scene",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}

	b.Flags = map[string]bool{FlagNoText: true}
	b.Language = ""
	got = BuildPrompt(b)
	if strings.Contains(got, "Write all on-image copy") || !strings.Contains(got, "square 1:1") {
		t.Fatalf("unexpected prompt:\n%s", got)
	}
}

func TestDimensions(t *testing.T) {
	tests := []struct {
		flags map[string]bool
		w, h  int
	}{
		{nil, 900, 900},
		{map[string]bool{FlagStory: true}, 900, 1600},
		{map[string]bool{FlagLandscape: true}, 1600, 900},
	}
	for _, tc := range tests {
		w, h := Dimensions(tc.flags, 900)
		if w != tc.w || h != tc.h {
			t.Fatalf("Dimensions(%v) = %dx%d, want %dx%d", tc.flags, w, h, tc.w, tc.h)
		}
	}
}

func TestSyntheticGeneratorDeterministic(t *testing.T) {
	g := NewSyntheticGenerator(SyntheticOptions{Size: 64})
	b := Brief{JobID: "job-1", Angle: "A", AngleIndex: 1, Variation: 1}

	first, err := g.Generate(context.Background(), b)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, _ := g.Generate(context.Background(), b)
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatalf("same brief rendered different images")
	}
	b.Variation = 2
	third, _ := g.Generate(context.Background(), b)
	if bytes.Equal(first.Data, third.Data) {
		t.Fatalf("variations rendered identical images")
	}

	img, err := png.Decode(bytes.NewReader(first.Data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 64 || first.MIME != "image/png" || first.Ext() != ".png" {
		t.Fatalf("image = %v %s", img.Bounds(), first.MIME)
	}
}

func TestSyntheticGeneratorPastesProduct(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src.Set(x, y, color.RGBA{R: 1, G: 2, B: 3, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode: %v", err)
	}

	g := NewSyntheticGenerator(SyntheticOptions{Size: 64})
	out, err := g.Generate(context.Background(), Brief{
		JobID:   "job-1",
		Angle:   "A",
		Product: &domain.ProductAsset{MIME: "image/png", Data: buf.Bytes()},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	img, _ := png.Decode(bytes.NewReader(out.Data))
	r, g2, b, _ := img.At(32, 32).RGBA()
	if r>>8 != 1 || g2>>8 != 2 || b>>8 != 3 {
		t.Fatalf("centre pixel = %d,%d,%d", r>>8, g2>>8, b>>8)
	}
}

func TestSyntheticGeneratorHonorsContext(t *testing.T) {
	g := NewSyntheticGenerator(SyntheticOptions{Size: 16, Delay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Generate(ctx, Brief{JobID: "j"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
