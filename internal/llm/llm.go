// Package llm talks to an OpenAI-compatible API for exam generation,
// answer evaluation, syllabus topic extraction and image transcription.
package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api         *openai.Client
	model       string
	visionModel string
}

// New creates a new LLM client. visionModel is used for image
// transcription and defaults to modelName.
func New(baseURL, apiKey, modelName, visionModel string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if visionModel == "" {
		visionModel = modelName
	}
	return &Client{
		api:         openai.NewClientWithConfig(config),
		model:       modelName,
		visionModel: visionModel,
	}
}

type request struct {
	model       string
	system      string
	messages    []openai.ChatCompletionMessage
	temperature float32
	jsonOutput  bool
}

func (c *Client) complete(ctx context.Context, req request) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.messages)+1)
	if req.system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.system})
	}
	msgs = append(msgs, req.messages...)

	ccr := openai.ChatCompletionRequest{
		Model:       req.model,
		Messages:    msgs,
		Temperature: req.temperature,
	}
	if req.jsonOutput {
		ccr.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}
	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "model", req.model, "length", len(raw))
	return raw, nil
}

func userText(content string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: content}}
}

// Generate returns free-form exam text for a generation prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := c.complete(ctx, request{
		model:       c.model,
		messages:    userText(prompt),
		temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("generate exam: %w", err)
	}
	return out, nil
}

// Evaluate returns the evaluator's response to a grading prompt. The text
// is expected to hold one JSON object but is not parsed here.
func (c *Client) Evaluate(ctx context.Context, prompt string) (string, error) {
	out, err := c.complete(ctx, request{
		model:       c.model,
		system:      "You grade exams and reply with JSON only.",
		messages:    userText(prompt),
		temperature: 0.1,
		jsonOutput:  true,
	})
	if err != nil {
		return "", fmt.Errorf("evaluate answers: %w", err)
	}
	return out, nil
}

// ExtractTopics returns the raw topic listing for a topics prompt.
func (c *Client) ExtractTopics(ctx context.Context, prompt string) (string, error) {
	out, err := c.complete(ctx, request{
		model:       c.model,
		messages:    userText(prompt),
		temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("extract topics: %w", err)
	}
	return out, nil
}

// ExtractText transcribes the text in a base64-encoded image.
func (c *Client) ExtractText(ctx context.Context, instruction, imageBase64 string) (string, error) {
	url, err := dataURL(imageBase64)
	if err != nil {
		return "", err
	}
	out, err := c.complete(ctx, request{
		model: c.visionModel,
		messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: instruction},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: url, Detail: openai.ImageURLDetailAuto}},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// dataURL validates base64 image data and wraps it in a data URL with the
// sniffed content type. A data URL prefix on the input is accepted.
func dataURL(imageBase64 string) (string, error) {
	s := strings.TrimSpace(imageBase64)
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("decode image: empty image")
	}
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("decode image: unsupported content type %s", ct)
	}
	return "data:" + ct + ";base64," + s, nil
}

// Ping checks that the API is reachable and the model is listed.
func (c *Client) Ping(ctx context.Context) error {
	models, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	for _, m := range models.Models {
		if m.ID == c.model {
			return nil
		}
	}
	slog.Warn("configured model not listed by LLM endpoint", "model", c.model, "available", len(models.Models))
	return nil
}
