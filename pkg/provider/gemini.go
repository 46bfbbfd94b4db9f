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

// geminiAdapter calls a Gemini-family image generation endpoint. The
// wire format below models Gemini's generateContent response shape:
// a list of candidates, each with inline-data parts.
type geminiAdapter struct {
	cfg    types.ProviderConfig
	client *http.Client
}

// NewGeminiAdapter builds the gemini Factory entry.
func NewGeminiAdapter(cfg types.ProviderConfig) (Adapter, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &geminiAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (a *geminiAdapter) Name() string { return "gemini" }

func (a *geminiAdapter) Validate(params types.GenerateParams) error {
	return validateCommon(params)
}

type geminiInlinePart struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlinePart `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (a *geminiAdapter) Generate(ctx context.Context, params types.GenerateParams) (*Result, error) {
	if err := a.Validate(params); err != nil {
		return nil, err
	}

	width, height := Dimensions(params.AspectRatio, params.ImageSize)

	result := &Result{}
	for i := 0; i < params.Count; i++ {
		err := WithRetry(ctx, a.cfg.MaxRetries, func() error {
			img, genErr := a.generateOne(ctx, params, width, height)
			if genErr != nil {
				if apierr.KindOf(genErr).Retryable() {
					return genErr
				}
				result.Images = append(result.Images, ImageResult{Err: genErr})
				return nil
			}
			result.Images = append(result.Images, *img)
			return nil
		})
		if err != nil && apierr.KindOf(err).Retryable() {
			result.Images = append(result.Images, ImageResult{Err: err})
		}
	}

	return result, nil
}

func (a *geminiAdapter) generateOne(ctx context.Context, params types.GenerateParams, width, height int) (*ImageResult, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: params.Prompt}}}},
	}
	for _, ref := range params.RefImages {
		if len(ref.Bytes) == 0 {
			continue
		}
		reqBody.Contents[0].Parts = append(reqBody.Contents[0].Parts, geminiPart{
			InlineData: &geminiInlinePart{
				MIMEType: ref.MIME,
				Data:     base64.StdEncoding.EncodeToString(ref.Bytes),
			},
		})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInvalidParams, "failed to marshal gemini request", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", a.cfg.BaseURL, params.ModelID, a.cfg.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, apierr.Wrap(apierr.KindIOError, "failed to build gemini request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apierr.Wrap(apierr.KindCanceled, "gemini request canceled", ctx.Err())
		}
		return nil, apierr.Wrap(apierr.KindUpstreamTransient, "gemini request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindUpstreamTransient, "failed to read gemini response", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, apierr.New(apierr.KindUpstreamTransient, fmt.Sprintf("gemini transient status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, apierr.New(apierr.KindUpstreamRefused, fmt.Sprintf("gemini refused request: status %d", resp.StatusCode))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apierr.Wrap(apierr.KindUpstreamRefused, "failed to parse gemini response", err)
	}
	if parsed.Error != nil {
		return nil, apierr.New(apierr.KindUpstreamRefused, parsed.Error.Message)
	}

	for _, cand := range parsed.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				continue
			}
			return &ImageResult{
				Bytes:  data,
				Width:  width,
				Height: height,
				MIME:   part.InlineData.MIMEType,
			}, nil
		}
	}

	return nil, apierr.New(apierr.KindUpstreamRefused, "gemini response contained no image data")
}
