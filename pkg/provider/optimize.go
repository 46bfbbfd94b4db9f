package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cuemby/pixelforge/pkg/apierr"
)

// Optimizer is an optional capability an Adapter may implement: turning
// a short user prompt into a longer, more descriptive one using the
// same upstream's text model. Not every provider supports this, so
// callers type-assert rather than requiring it on Adapter itself.
type Optimizer interface {
	OptimizePrompt(ctx context.Context, modelID, prompt string) (string, error)
}

func (a *geminiAdapter) OptimizePrompt(ctx context.Context, modelID, prompt string) (string, error) {
	if modelID == "" {
		modelID = "gemini-2.0-flash"
	}
	instruction := "Rewrite the following image generation prompt to be more descriptive and specific, " +
		"preserving the original intent. Reply with only the rewritten prompt:\n\n" + prompt

	reqBody := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: instruction}}}}}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", apierr.Wrap(apierr.KindInvalidParams, "failed to marshal optimize request", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", a.cfg.BaseURL, modelID, a.cfg.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", apierr.Wrap(apierr.KindIOError, "failed to build optimize request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", apierr.Wrap(apierr.KindUpstreamTransient, "optimize request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apierr.Wrap(apierr.KindUpstreamTransient, "failed to read optimize response", err)
	}
	if resp.StatusCode >= 400 {
		return "", apierr.New(apierr.KindUpstreamRefused, fmt.Sprintf("optimize request refused: status %d", resp.StatusCode))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", apierr.Wrap(apierr.KindUpstreamRefused, "failed to parse optimize response", err)
	}
	for _, cand := range parsed.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				return part.Text, nil
			}
		}
	}
	return "", apierr.New(apierr.KindUpstreamRefused, "optimize response contained no text")
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model    string               `json:"model"`
	Messages []openAIChatMessage `json:"messages"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *openAIAdapter) OptimizePrompt(ctx context.Context, modelID, prompt string) (string, error) {
	if modelID == "" {
		modelID = "gpt-4o-mini"
	}
	reqBody := openAIChatRequest{
		Model: modelID,
		Messages: []openAIChatMessage{
			{Role: "system", Content: "You rewrite image generation prompts to be more descriptive and specific, preserving the original intent. Reply with only the rewritten prompt."},
			{Role: "user", Content: prompt},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", apierr.Wrap(apierr.KindInvalidParams, "failed to marshal optimize request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", apierr.Wrap(apierr.KindIOError, "failed to build optimize request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", apierr.Wrap(apierr.KindUpstreamTransient, "optimize request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apierr.Wrap(apierr.KindUpstreamTransient, "failed to read optimize response", err)
	}
	if resp.StatusCode >= 400 {
		return "", apierr.New(apierr.KindUpstreamRefused, fmt.Sprintf("optimize request refused: status %d", resp.StatusCode))
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", apierr.Wrap(apierr.KindUpstreamRefused, "failed to parse optimize response", err)
	}
	if parsed.Error != nil {
		return "", apierr.New(apierr.KindUpstreamRefused, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", apierr.New(apierr.KindUpstreamRefused, "optimize response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
