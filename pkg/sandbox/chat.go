package sandbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ChatConfig describes the remote chat endpoint. A nil *ChatConfig (or one
// with any field empty) means the chat primitive is not configured.
type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

const chatTimeout = 30 * time.Second

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// chatClient performs the actual HTTP call, grounded on the same plain
// net/http request/response JSON pattern used elsewhere for single-endpoint
// chat backends, rather than pulling in a vendor-specific SDK.
type chatClient struct {
	cfg    *ChatConfig
	client *http.Client
}

func newChatClient(cfg *ChatConfig) *chatClient {
	return &chatClient{cfg: cfg, client: &http.Client{Timeout: chatTimeout}}
}

func (c *chatClient) send(text string) (string, error) {
	if c.cfg == nil || c.cfg.BaseURL == "" || c.cfg.APIKey == "" || c.cfg.Model == "" {
		return "", &RuntimeError{Reason: "chat endpoint is not configured"}
	}

	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: text}},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", &RuntimeError{Reason: "failed to encode chat request", Err: err}
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.cfg.BaseURL, bytes.NewReader(data))
	if err != nil {
		return "", &RuntimeError{Reason: "failed to build chat request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.APIKey))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &RuntimeError{Reason: "chat request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RuntimeError{Reason: "failed to read chat response", Err: err}
	}

	if resp.StatusCode >= 300 {
		return "", &RuntimeError{Reason: fmt.Sprintf("chat endpoint returned status %d: %s", resp.StatusCode, string(body))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &RuntimeError{Reason: "failed to decode chat response", Err: err}
	}
	return parsed.Message.Content, nil
}

// Chat submits text to the configured endpoint as a single user message and
// returns the assistant message text. If no endpoint is configured, it fails
// with a RuntimeError whose message includes "not configured".
func (s *Surface) Chat(text string) (string, error) {
	return s.chat.send(text)
}

// ChatClassified is the Classified overload of Chat: it unwraps, submits,
// and rewraps the response.
func (s *Surface) ChatClassified(text Classified[string]) (Classified[string], error) {
	reply, err := s.chat.send(text.value)
	if err != nil {
		return Classified[string]{}, err
	}
	return NewClassified(reply), nil
}
