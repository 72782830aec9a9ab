// Package diagnose calls the external AI completion endpoint that powers the
// diagnostic chat.
package diagnose

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/veydev/autocare/internal/models"
)

// ErrQuotaExceeded marks an upstream quota or rate-limit rejection; callers
// surface it with a distinct user-facing message.
var ErrQuotaExceeded = errors.New("ai quota exceeded")

const systemPrompt = `You are an experienced car mechanic. Given a symptom description ` +
	`and optional vehicle details, respond with JSON only: ` +
	`{"message":"...","results":[{"diagnosis":"...","description":"...","confidence":0.0,` +
	`"risk":"low|medium|high","urgency":"...","estimatedCost":"..."}]}. ` +
	`List the most likely diagnoses first.`

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewClient builds a client from AI_API_URL, AI_API_KEY and AI_MODEL.
func NewClient() *Client {
	baseURL := os.Getenv("AI_API_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1/chat/completions"
	}
	model := os.Getenv("AI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  os.Getenv("AI_API_KEY"),
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Diagnose forwards one diagnostic question and returns the parsed answer.
func (c *Client) Diagnose(ctx context.Context, req models.DiagnoseRequest) (*models.DiagnoseResponse, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent(req)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach AI endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read AI response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("invalid AI response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || parsed.Error != nil {
		detail := ""
		if parsed.Error != nil {
			detail = parsed.Error.Message
		}
		if isQuotaSignal(resp.StatusCode, parsed) {
			return nil, fmt.Errorf("%w: %s", ErrQuotaExceeded, detail)
		}
		return nil, fmt.Errorf("AI endpoint status %d: %s", resp.StatusCode, detail)
	}

	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("AI endpoint returned no choices")
	}
	return parseAnswer(parsed.Choices[0].Message.Content), nil
}

// userContent builds the user message; an attached photo becomes an image part.
func userContent(req models.DiagnoseRequest) interface{} {
	var b strings.Builder
	b.WriteString(req.Text)
	if info := req.CarInfo; info != nil {
		fmt.Fprintf(&b, "\n\nVehicle: %s %s %d", info.Make, info.Model, info.Year)
		if info.Engine != "" {
			fmt.Fprintf(&b, ", engine %s", info.Engine)
		}
		if info.Mileage > 0 {
			fmt.Fprintf(&b, ", %d km", info.Mileage)
		}
		if info.VIN != "" {
			fmt.Fprintf(&b, ", VIN %s", info.VIN)
		}
	}

	if req.Image == "" {
		return b.String()
	}
	return []map[string]interface{}{
		{"type": "text", "text": b.String()},
		{"type": "image_url", "image_url": map[string]string{
			"url": "data:image/jpeg;base64," + req.Image,
		}},
	}
}

// parseAnswer decodes the model's JSON answer; free-text answers degrade to a
// message with no structured results rather than an error.
func parseAnswer(content string) *models.DiagnoseResponse {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var out models.DiagnoseResponse
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return &models.DiagnoseResponse{Message: content, Results: []models.DiagnosisResult{}}
	}
	if out.Results == nil {
		out.Results = []models.DiagnosisResult{}
	}
	return &out
}

func isQuotaSignal(status int, resp chatResponse) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if resp.Error == nil {
		return false
	}
	for _, marker := range []string{resp.Error.Type, resp.Error.Code} {
		if strings.Contains(marker, "quota") || strings.Contains(marker, "rate_limit") {
			return true
		}
	}
	return false
}
