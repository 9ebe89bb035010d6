package adgen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestRemoteGeneratorBase64(t *testing.T) {
	img := tinyPNG(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %s", got)
		}
		var payload remoteRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Model != "ad-model" || payload.Size != "900x1600" || payload.N != 1 {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		if !strings.Contains(payload.Prompt, "busy parents") {
			t.Fatalf("prompt missing avatar: %s", payload.Prompt)
		}
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"` + base64.StdEncoding.EncodeToString(img) + `"}]}`))
	}))
	defer ts.Close()

	gen, err := NewRemoteGenerator(RemoteOptions{BaseURL: ts.URL + "/", APIKey: "test-key", Model: "ad-model", Size: 900})
	if err != nil {
		t.Fatalf("NewRemoteGenerator: %v", err)
	}
	out, err := gen.Generate(context.Background(), Brief{JobID: "j", Avatar: "busy parents", Angle: "A", Flags: map[string]bool{FlagStory: true}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.MIME != "image/png" || !bytes.Equal(out.Data, img) || out.Width != 900 || out.Height != 1600 {
		t.Fatalf("unexpected image: mime=%s %dx%d", out.MIME, out.Width, out.Height)
	}
}

func TestRemoteGeneratorDownloadsURL(t *testing.T) {
	img := tinyPNG(t)
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/images/generations", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"url":"` + srv.URL + `/files/out.png"}]}`))
	})
	mux.HandleFunc("/files/out.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(img)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	gen, err := NewRemoteGenerator(RemoteOptions{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewRemoteGenerator: %v", err)
	}
	out, err := gen.Generate(context.Background(), Brief{JobID: "j", Angle: "A"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !bytes.Equal(out.Data, img) {
		t.Fatalf("downloaded bytes mismatch")
	}
}

func TestRemoteGeneratorErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error envelope", http.StatusBadRequest, `{"error":{"message":"prompt rejected","code":"content_policy"}}`, "prompt rejected"},
		{"bare status", http.StatusBadGateway, `oops`, "http 502"},
		{"no images", http.StatusOK, `{"data":[]}`, "no images"},
		{"not an image", http.StatusOK, `{"data":[{"b64_json":"aGVsbG8="}]}`, "text/plain"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()
			gen, err := NewRemoteGenerator(RemoteOptions{BaseURL: ts.URL})
			if err != nil {
				t.Fatalf("NewRemoteGenerator: %v", err)
			}
			_, err = gen.Generate(context.Background(), Brief{JobID: "j", Angle: "A"})
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestNewRemoteGeneratorRequiresURL(t *testing.T) {
	if _, err := NewRemoteGenerator(RemoteOptions{}); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}

func TestRemoteGeneratorOpensCircuit(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	gen, err := NewRemoteGenerator(RemoteOptions{BaseURL: ts.URL, BreakerThreshold: 2, BreakerCooldown: time.Minute})
	if err != nil {
		t.Fatalf("NewRemoteGenerator: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := gen.Generate(context.Background(), Brief{JobID: "j", Angle: "A"}); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if _, err := gen.Generate(context.Background(), Brief{JobID: "j", Angle: "A"}); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("server hits = %d, want 2", got)
	}
}
