package adgen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"adstudio/internal/infra"

	"github.com/sony/gobreaker"
)

const (
	maxRemoteImageBytes     = 20 << 20
	defaultBreakerThreshold = 5
)

type RemoteOptions struct {
	BaseURL    string
	APIKey     string
	Model      string
	Size       int
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *infra.Logger
	// BreakerThreshold is the number of consecutive failures that opens the
	// circuit. While open, Generate fails fast for BreakerCooldown.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// RemoteGenerator calls an image generation endpoint that speaks the common
// /images/generations request shape.
type RemoteGenerator struct {
	httpClient *http.Client
	baseURL    string
	token      string
	model      string
	size       int
	logger     *infra.Logger
	breaker    *gobreaker.CircuitBreaker
}

func NewRemoteGenerator(opts RemoteOptions) (*RemoteGenerator, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("adgen: remote base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 90 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	threshold := opts.BreakerThreshold
	if threshold <= 0 {
		threshold = defaultBreakerThreshold
	}
	cooldown := opts.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "adgen-remote",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("adgen: circuit state changed")
		},
	})
	return &RemoteGenerator{
		httpClient: client,
		baseURL:    base,
		token:      strings.TrimSpace(opts.APIKey),
		model:      strings.TrimSpace(opts.Model),
		size:       opts.Size,
		logger:     logger,
		breaker:    breaker,
	}, nil
}

type remoteRequest struct {
	Model          string `json:"model,omitempty"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
	User           string `json:"user,omitempty"`
}

type remoteResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (g *RemoteGenerator) Generate(ctx context.Context, b Brief) (Image, error) {
	width, height := Dimensions(b.Flags, g.size)
	start := time.Now()
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.call(ctx, b, width, height)
	})
	if err != nil {
		return Image{}, err
	}
	data := out.([]byte)
	g.logger.Debug().
		Str("job_id", b.JobID).
		Int("angle_index", b.AngleIndex).
		Int("variation", b.Variation).
		Dur("elapsed", time.Since(start)).
		Msg("adgen: remote image generated")
	return Image{Data: data, MIME: http.DetectContentType(data), Width: width, Height: height}, nil
}

func (g *RemoteGenerator) call(ctx context.Context, b Brief, width, height int) ([]byte, error) {
	payload := remoteRequest{
		Model:          g.model,
		Prompt:         BuildPrompt(b),
		Size:           fmt.Sprintf("%dx%d", width, height),
		N:              1,
		ResponseFormat: "b64_json",
		User:           b.OriginID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("adgen: remote request: %w", err)
	}
	defer resp.Body.Close()

	var out remoteResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRemoteImageBytes*2)).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("adgen: remote http %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("adgen: decode remote response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || out.Error != nil {
		if out.Error != nil && out.Error.Message != "" {
			return nil, fmt.Errorf("adgen: remote error: %s (%s)", out.Error.Message, out.Error.Code)
		}
		return nil, fmt.Errorf("adgen: remote http %d", resp.StatusCode)
	}
	if len(out.Data) == 0 {
		return nil, errors.New("adgen: remote returned no images")
	}

	var data []byte
	switch first := out.Data[0]; {
	case first.B64JSON != "":
		data, err = base64.StdEncoding.DecodeString(first.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("adgen: decode remote image: %w", err)
		}
	case first.URL != "":
		data, err = g.download(ctx, first.URL)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("adgen: remote image missing data")
	}

	if mime := http.DetectContentType(data); !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("adgen: remote returned %s", mime)
	}
	return data, nil
}

func (g *RemoteGenerator) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("adgen: download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("adgen: download image: http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxRemoteImageBytes {
		return nil, errors.New("adgen: image exceeds size limit")
	}
	return data, nil
}
