package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vbonduro/parkadmin/internal/vision"
)

// Local vision models take tens of seconds on CPU for a single photo.
const requestTimeout = 2 * time.Minute

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 512

var (
	ErrEmptyImage    = errors.New("ollama: empty image")
	ErrModelNotFound = errors.New("ollama: model not found")
	ErrUnavailable   = errors.New("ollama: server unavailable")
	ErrEmptyResponse = errors.New("ollama: empty response")
	ErrInvalidAnswer = errors.New("ollama: invalid response")
)

// OllamaAnalyzer reads sign photos through a local Ollama server's
// /api/generate endpoint.
type OllamaAnalyzer struct {
	host   string
	model  string
	client *http.Client
	log    *slog.Logger
}

func NewOllamaAnalyzer(host, model string, logger *slog.Logger) *OllamaAnalyzer {
	return &OllamaAnalyzer{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: &http.Client{Timeout: requestTimeout},
		log:    logger.With("adapter", "ollama", "model", model),
	}
}

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Analyze sends the photo with the shared prompt and parses the model's
// "field | value" lines into suggestions.
func (a *OllamaAnalyzer) Analyze(ctx context.Context, r io.Reader, _ string) (*vision.AnalysisResult, error) {
	imageData, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(imageData) == 0 {
		return nil, ErrEmptyImage
	}

	payload, err := json.Marshal(generateRequest{
		Model:  a.model,
		Prompt: vision.AnalysisPrompt,
		Images: []string{base64.StdEncoding.EncodeToString(imageData)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		a.log.ErrorContext(ctx, "ollama request failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			a.log.Warn("failed to close ollama response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, a.statusError(ctx, resp)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAnswer, out.Error)
	}
	if strings.TrimSpace(out.Response) == "" {
		return nil, ErrEmptyResponse
	}

	a.log.DebugContext(ctx, "ollama analysis complete",
		slog.Duration("elapsed", time.Since(start)),
		slog.Bool("done", out.Done))
	return &vision.AnalysisResult{
		Suggestions: vision.ParseResponse(out.Response),
		RawResponse: out.Response,
	}, nil
}

// statusError maps a non-200 reply to a sentinel, keeping Ollama's own
// message when it sent one.
func (a *OllamaAnalyzer) statusError(ctx context.Context, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	var errResp generateResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		msg = errResp.Error
	}
	a.log.ErrorContext(ctx, "ollama returned an error",
		slog.Int("status", resp.StatusCode),
		slog.String("error", msg))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrModelNotFound, msg)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrInvalidAnswer, resp.StatusCode, msg)
	}
}
