package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ArgumentMiner/internal/config"
	"ArgumentMiner/internal/domain"
	"ArgumentMiner/internal/ports"
)

const (
	chatCompletionsEndpoint = "/v1/chat/completions"
	completionWindow        = "24h"
	maxResultLine           = 16 << 20
)

// Client implements ports.CompletionService against the OpenAI REST API:
// chat completions for single calls, files and batches for bulk jobs.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

var _ ports.CompletionService = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.OpenAIConfig, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is required", domain.ErrConfiguration)
	}
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, fmt.Errorf("%w: openai client misconfigured", domain.ErrConfiguration)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage chatUsage `json:"usage"`
}

func (r chatResponse) text() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Choices[0].Message.Content)
}

func (u chatUsage) usage() domain.Usage {
	return domain.Usage{Requests: 1, PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens}
}

// Call performs one chat completion with the configured model.
func (c *Client) Call(ctx context.Context, prompt string, temperature float64) (domain.Completion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Completion{}, fmt.Errorf("%w: rate limiter: %w", domain.ErrTransport, err)
	}

	body, err := json.Marshal(c.chatRequest(prompt, temperature))
	if err != nil {
		return domain.Completion{}, fmt.Errorf("marshal chat request: %w", err)
	}

	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, "/chat/completions", "application/json", bytes.NewReader(body), &resp); err != nil {
		return domain.Completion{}, fmt.Errorf("chat completion: %w", err)
	}
	return domain.Completion{Text: resp.text(), Usage: resp.Usage.usage()}, nil
}

func (c *Client) chatRequest(prompt string, temperature float64) chatRequest {
	return chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
	}
}

type batchLine struct {
	CustomID string      `json:"custom_id"`
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Body     chatRequest `json:"body"`
}

type batchObject struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	InputFileID  string `json:"input_file_id"`
	OutputFileID string `json:"output_file_id"`
	ErrorFileID  string `json:"error_file_id"`
}

func (b batchObject) status() domain.JobStatus {
	return domain.JobStatus{
		JobID:        b.ID,
		Status:       domain.JobState(b.Status),
		InputFileID:  b.InputFileID,
		OutputFileID: b.OutputFileID,
		ErrorFileID:  b.ErrorFileID,
	}
}

// SubmitJob writes requests as JSONL to path, uploads the file and creates
// a batch job over it.
func (c *Client) SubmitJob(ctx context.Context, path string, requests []domain.JobRequest) (domain.JobHandle, error) {
	if err := writeJSONL(path, c.batchLines(requests)); err != nil {
		return domain.JobHandle{}, err
	}

	fileID, err := c.uploadBatchFile(ctx, path)
	if err != nil {
		return domain.JobHandle{}, err
	}

	payload, err := json.Marshal(map[string]string{
		"input_file_id":     fileID,
		"endpoint":          chatCompletionsEndpoint,
		"completion_window": completionWindow,
	})
	if err != nil {
		return domain.JobHandle{}, fmt.Errorf("marshal batch request: %w", err)
	}

	var created batchObject
	if err := c.do(ctx, http.MethodPost, "/batches", "application/json", bytes.NewReader(payload), &created); err != nil {
		return domain.JobHandle{}, fmt.Errorf("create batch: %w", err)
	}
	c.logger.Debug("batch created", "job_id", created.ID, "input_file_id", fileID, "requests", len(requests))

	return domain.JobHandle{JobID: created.ID, Status: domain.JobState(created.Status), InputFileID: fileID}, nil
}

func (c *Client) batchLines(requests []domain.JobRequest) []batchLine {
	lines := make([]batchLine, len(requests))
	for i, req := range requests {
		model := req.Model
		if model == "" {
			model = c.model
		}
		body := c.chatRequest(req.Prompt, req.Temperature)
		body.Model = model
		lines[i] = batchLine{CustomID: req.CustomID, Method: http.MethodPost, URL: chatCompletionsEndpoint, Body: body}
	}
	return lines
}

func writeJSONL(path string, lines []batchLine) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create batch dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create batch file: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, line := range lines {
		if err := enc.Encode(line); err != nil {
			_ = f.Close()
			return fmt.Errorf("encode batch line %s: %w", line.CustomID, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write batch file: %w", err)
	}
	return f.Close()
}

func (c *Client) uploadBatchFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("purpose", "batch"); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	part, err := form.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy batch file: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/files", form.FormDataContentType(), &buf, &uploaded); err != nil {
		return "", fmt.Errorf("upload batch file: %w", err)
	}
	return uploaded.ID, nil
}

// CheckJob fetches the current state of a batch job.
func (c *Client) CheckJob(ctx context.Context, jobID string) (domain.JobStatus, error) {
	var obj batchObject
	if err := c.do(ctx, http.MethodGet, "/batches/"+url.PathEscape(jobID), "", nil, &obj); err != nil {
		return domain.JobStatus{}, fmt.Errorf("check batch %s: %w", jobID, err)
	}
	return obj.status(), nil
}

type resultLine struct {
	CustomID string `json:"custom_id"`
	Response *struct {
		StatusCode int          `json:"status_code"`
		Body       chatResponse `json:"body"`
	} `json:"response"`
}

// GetResults downloads the output file of a job. A job without an output
// file yields no results and no error.
func (c *Client) GetResults(ctx context.Context, jobID string) ([]domain.JobResult, error) {
	status, err := c.CheckJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if status.OutputFileID == "" {
		return []domain.JobResult{}, nil
	}

	var raw bytes.Buffer
	if err := c.do(ctx, http.MethodGet, "/files/"+url.PathEscape(status.OutputFileID)+"/content", "", nil, &raw); err != nil {
		return nil, fmt.Errorf("download results of batch %s: %w", jobID, err)
	}

	results := []domain.JobResult{}
	scanner := bufio.NewScanner(&raw)
	scanner.Buffer(make([]byte, 0, 64*1024), maxResultLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec resultLine
		if err := json.Unmarshal(line, &rec); err != nil {
			c.logger.Warn("skipping malformed result line", "job_id", jobID, "error", err)
			continue
		}
		res := domain.JobResult{CustomID: rec.CustomID}
		if rec.Response != nil {
			res.Content = rec.Response.Body.text()
			res.Usage = rec.Response.Body.Usage.usage()
		}
		results = append(results, res)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read results of batch %s: %w", domain.ErrTransport, jobID, err)
	}
	return results, nil
}

// do sends one API request. out is either a JSON target or a *bytes.Buffer
// receiving the raw body.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", domain.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: openai error %s: %s", domain.ErrTransport, resp.Status, strings.TrimSpace(string(payload)))
	}

	if buf, ok := out.(*bytes.Buffer); ok {
		if _, err := buf.ReadFrom(resp.Body); err != nil {
			return fmt.Errorf("%w: read response: %w", domain.ErrTransport, err)
		}
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrTransport, err)
	}
	return nil
}
