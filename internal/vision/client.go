package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config for the vision model client.
type Config struct {
	APIKey          string // if empty, falls back to env OPENAI_API_KEY
	BaseURL         string // default https://api.openai.com/v1
	Model           string
	ReasoningEffort string
	MaxOutputTokens int
	Timeout         time.Duration // http client timeout
}

// Client calls a multimodal responses API to turn image URLs into
// structured business-card or liquor-license data.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-5-mini"
	}
	if cfg.ReasoningEffort == "" {
		cfg.ReasoningEffort = "low"
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 900
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

// complete sends one prompt plus one image and returns the joined output
// text segments from the response.
func (c *Client) complete(ctx context.Context, prompt, imageURL string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("vision.complete.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"effort", c.cfg.ReasoningEffort,
	)

	body := map[string]any{
		"model":             c.cfg.Model,
		"reasoning":         map[string]any{"effort": c.cfg.ReasoningEffort},
		"max_output_tokens": c.cfg.MaxOutputTokens,
		"input": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "input_text", "text": prompt},
					{"type": "input_image", "image_url": imageURL},
				},
			},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/responses"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("vision.complete.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var rr struct {
		OutputText []string `json:"output_text"`
	}
	if err := json.Unmarshal(raw, &rr); err != nil {
		c.log.Error("vision.complete.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("decode vision response: %w", err)
	}
	text := strings.Join(rr.OutputText, "")
	if strings.TrimSpace(text) == "" {
		c.log.Error("vision.complete.empty_response",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("empty response from vision model")
	}

	c.log.Info("vision.complete.ok",
		"req_id", rid,
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("vision response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vision api status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}
