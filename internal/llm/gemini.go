package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// GeminiProvider implements text, vision, and image generation against the
// Google Generative Language API.
type GeminiProvider struct {
	baseProvider
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(cfg *ProviderConfig) *GeminiProvider {
	return &GeminiProvider{
		baseProvider: newBaseProvider(cfg, "gemini"),
	}
}

// Chat sends a chat request to Gemini.
func (p *GeminiProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.config.APIKey == "" {
		return nil, ErrNoCredential
	}

	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	geminiReq := geminiGenerateRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: req.Message}},
		}},
	}
	if req.SystemPrompt != "" {
		geminiReq.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemPrompt}},
		}
	}
	geminiReq.GenerationConfig = &geminiGenerationConfig{
		MaxOutputTokens: orInt(req.MaxTokens, p.config.MaxTokens),
		Temperature:     orFloat(req.Temperature, p.config.Temperature),
	}

	resp, err := p.generateContent(ctx, model, &geminiReq)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(resp.text())
	if content == "" {
		return nil, ErrEmptyResponse
	}

	return &ChatResponse{
		Content:  content,
		Model:    model,
		Duration: time.Since(start),
	}, nil
}

// VisionChat sends an image plus optional caption to Gemini.
func (p *GeminiProvider) VisionChat(ctx context.Context, req *VisionRequest) (*ChatResponse, error) {
	if p.config.APIKey == "" {
		return nil, ErrNoCredential
	}

	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.config.VisionModel
	}

	prompt := "請描述圖片並回覆。"
	if req.Caption != "" {
		prompt = "請描述圖片並結合以下文字回覆：" + req.Caption
	}

	geminiReq := geminiGenerateRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{
					MimeType: "image/jpeg",
					Data:     base64.StdEncoding.EncodeToString(req.ImageJPEG),
				}},
				{Text: prompt},
			},
		}},
	}
	if req.SystemPrompt != "" {
		geminiReq.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemPrompt}},
		}
	}

	resp, err := p.generateContent(ctx, model, &geminiReq)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(resp.text())
	if content == "" {
		return nil, ErrEmptyResponse
	}

	return &ChatResponse{
		Content:  content,
		Model:    model,
		Duration: time.Since(start),
	}, nil
}

// GenerateImage asks Gemini for an image. The API requires both TEXT and
// IMAGE response modalities; only the image part is kept, re-encoded to JPEG.
func (p *GeminiProvider) GenerateImage(ctx context.Context, req *ImageRequest) ([]byte, error) {
	if p.config.APIKey == "" {
		return nil, ErrNoCredential
	}

	model := req.Model
	if model == "" {
		model = p.config.ImageModel
	}

	geminiReq := geminiGenerateRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: req.Prompt}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	resp, err := p.generateContent(ctx, model, &geminiReq)
	if err != nil {
		return nil, err
	}

	raw := resp.inlineImage()
	if len(raw) == 0 {
		return nil, ErrEmptyResponse
	}

	jpeg, err := NormalizeJPEG(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize gemini image: %w", err)
	}
	return jpeg, nil
}

// generateContent posts to the models/<model>:generateContent endpoint.
// The key travels in the x-goog-api-key header so it never lands in logs.
func (p *GeminiProvider) generateContent(ctx context.Context, model string, geminiReq *geminiGenerateRequest) (*geminiGenerateResponse, error) {
	body, err := json.Marshal(geminiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.config.Endpoint, model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, fmt.Errorf("gemini error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var geminiResp geminiGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(geminiResp.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}
	return &geminiResp, nil
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}

// Gemini API types

type geminiGenerateRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type geminiGenerationConfig struct {
	MaxOutputTokens    int      `json:"maxOutputTokens,omitempty"`
	Temperature        float64  `json:"temperature,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// text concatenates the text parts of the first candidate.
func (r *geminiGenerateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// inlineImage returns the decoded bytes of the first inline-data part.
func (r *geminiGenerateResponse) inlineImage() []byte {
	if len(r.Candidates) == 0 {
		return nil
	}
	for _, part := range r.Candidates[0].Content.Parts {
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			continue
		}
		return raw
	}
	return nil
}
