package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuemby/pixelforge/pkg/apierr"
	"github.com/cuemby/pixelforge/pkg/types"
)

// openAIAdapter calls an OpenAI-compatible image generation endpoint
// (the /images/generations shape shared by OpenAI and a number of
// self-hosted proxies in front of other models).
type openAIAdapter struct {
	cfg    types.ProviderConfig
	client *http.Client
}

// NewOpenAIAdapter builds the openai Factory entry.
func NewOpenAIAdapter(cfg types.ProviderConfig) (Adapter, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &openAIAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (a *openAIAdapter) Name() string { return "openai" }

func (a *openAIAdapter) Validate(params types.GenerateParams) error {
	return validateCommon(params)
}

type openAIRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type openAIImage struct {
	B64JSON string `json:"b64_json"`
}

type openAIResponse struct {
	Data  []openAIImage `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (a *openAIAdapter) Generate(ctx context.Context, params types.GenerateParams) (*Result, error) {
	if err := a.Validate(params); err != nil {
		return nil, err
	}

	width, height := Dimensions(params.AspectRatio, params.ImageSize)

	reqBody := openAIRequest{
		Model:  params.ModelID,
		Prompt: params.Prompt,
		N:      params.Count,
		Size:   fmt.Sprintf("%dx%d", width, height),
	}

	result := &Result{}
	err := WithRetry(ctx, a.cfg.MaxRetries, func() error {
		payload, err := json.Marshal(reqBody)
		if err != nil {
			return apierr.Wrap(apierr.KindInvalidParams, "failed to marshal openai request", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/images/generations", bytes.NewReader(payload))
		if err != nil {
			return apierr.Wrap(apierr.KindIOError, "failed to build openai request", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

		resp, err := a.client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return apierr.Wrap(apierr.KindCanceled, "openai request canceled", ctx.Err())
			}
			return apierr.Wrap(apierr.KindUpstreamTransient, "openai request failed", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return apierr.Wrap(apierr.KindUpstreamTransient, "failed to read openai response", err)
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return apierr.New(apierr.KindUpstreamTransient, fmt.Sprintf("openai transient status %d", resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			return apierr.New(apierr.KindUpstreamRefused, fmt.Sprintf("openai refused request: status %d", resp.StatusCode))
		}

		var parsed openAIResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return apierr.Wrap(apierr.KindUpstreamRefused, "failed to parse openai response", err)
		}
		if parsed.Error != nil {
			return apierr.New(apierr.KindUpstreamRefused, parsed.Error.Message)
		}

		for _, img := range parsed.Data {
			data, err := base64.StdEncoding.DecodeString(img.B64JSON)
			if err != nil {
				result.Images = append(result.Images, ImageResult{Err: apierr.Wrap(apierr.KindUpstreamRefused, "invalid base64 image data", err)})
				continue
			}
			result.Images = append(result.Images, ImageResult{
				Bytes:  data,
				Width:  width,
				Height: height,
				MIME:   "image/png",
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
