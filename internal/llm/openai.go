package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIProvider implements text, vision, and DALL-E image generation
// against the OpenAI API.
type OpenAIProvider struct {
	baseProvider
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg *ProviderConfig) *OpenAIProvider {
	return &OpenAIProvider{
		baseProvider: newBaseProvider(cfg, "openai"),
	}
}

// Chat sends a chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.config.APIKey == "" {
		return nil, ErrNoCredential
	}

	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	openaiReq := openAIChatRequest{
		Model:       model,
		MaxTokens:   orInt(req.MaxTokens, p.config.MaxTokens),
		Temperature: orFloat(req.Temperature, p.config.Temperature),
	}
	if req.SystemPrompt != "" {
		openaiReq.Messages = append(openaiReq.Messages, openAIMessage{
			Role:    "system",
			Content: req.SystemPrompt,
		})
	}
	openaiReq.Messages = append(openaiReq.Messages, openAIMessage{
		Role:    "user",
		Content: req.Message,
	})

	openaiResp, err := p.chatCompletions(ctx, &openaiReq)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(openaiResp.Choices[0].Message.Content)
	if content == "" {
		return nil, ErrEmptyResponse
	}

	return &ChatResponse{
		Content:  content,
		Model:    openaiResp.Model,
		Duration: time.Since(start),
	}, nil
}

// VisionChat sends the image as a base64 data URL in the user content parts.
func (p *OpenAIProvider) VisionChat(ctx context.Context, req *VisionRequest) (*ChatResponse, error) {
	if p.config.APIKey == "" {
		return nil, ErrNoCredential
	}

	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.config.VisionModel
	}

	caption := req.Caption
	if caption == "" {
		caption = "請描述圖片並回覆。"
	}

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(req.ImageJPEG)

	openaiReq := openAIChatRequest{
		Model:       model,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	}
	if req.SystemPrompt != "" {
		openaiReq.Messages = append(openaiReq.Messages, openAIMessage{
			Role:    "system",
			Content: req.SystemPrompt,
		})
	}
	openaiReq.Messages = append(openaiReq.Messages, openAIMessage{
		Role: "user",
		Content: []openAIContentPart{
			{Type: "text", Text: caption},
			{Type: "image_url", ImageURL: &openAIImageURL{URL: dataURL}},
		},
	})

	openaiResp, err := p.chatCompletions(ctx, &openaiReq)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(openaiResp.Choices[0].Message.Content)
	if content == "" {
		return nil, ErrEmptyResponse
	}

	return &ChatResponse{
		Content:  content,
		Model:    openaiResp.Model,
		Duration: time.Since(start),
	}, nil
}

// GenerateImage calls the DALL-E images endpoint. DALL-E answers with a
// remote URL; the image is fetched and re-encoded to JPEG so every provider
// hands back the same shape.
func (p *OpenAIProvider) GenerateImage(ctx context.Context, req *ImageRequest) ([]byte, error) {
	if p.config.APIKey == "" {
		return nil, ErrNoCredential
	}

	model := req.Model
	if model == "" {
		model = p.config.ImageModel
	}

	imgReq := openAIImageRequest{
		Model:   model,
		Prompt:  req.Prompt,
		Size:    "1024x1024",
		Quality: "standard",
		N:       1,
	}
	body, err := json.Marshal(imgReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.Endpoint+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, fmt.Errorf("openai image error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var imgResp openAIImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&imgResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(imgResp.Data) == 0 {
		return nil, ErrEmptyResponse
	}

	var raw []byte
	switch {
	case imgResp.Data[0].B64JSON != "":
		raw, err = base64.StdEncoding.DecodeString(imgResp.Data[0].B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode image payload: %w", err)
		}
	case imgResp.Data[0].URL != "":
		raw, err = p.fetchImage(ctx, imgResp.Data[0].URL)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrEmptyResponse
	}

	jpeg, err := NormalizeJPEG(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize dall-e image: %w", err)
	}
	return jpeg, nil
}

// fetchImage downloads the generated image from the URL DALL-E returned.
func (p *OpenAIProvider) fetchImage(ctx context.Context, url string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create image fetch: %w", err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// chatCompletions posts to /chat/completions and validates the response.
func (p *OpenAIProvider) chatCompletions(ctx context.Context, openaiReq *openAIChatRequest) (*openAIChatResponse, error) {
	body, err := json.Marshal(openaiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var openaiResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(openaiResp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return &openaiResp, nil
}

// OpenAI API types

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

// openAIMessage content is either a plain string or a list of content parts
// (vision requests). any keeps both shapes marshalable.
type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type openAIImageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
	N       int    `json:"n,omitempty"`
}

type openAIImageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}
