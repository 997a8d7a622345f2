package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/orchestrator"
)

// --- Request types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// CreateRunRequest — запрос на выполнение.
type CreateRunRequest struct {
	ID          string         `json:"id,omitempty"`
	Description string         `json:"description"`
	Tasks       []string       `json:"tasks"`
	Shared      map[string]any `json:"shared,omitempty"`
	Options     runOptions     `json:"options"`
}

type runOptions struct {
	MaxConcurrency int  `json:"max_concurrency,omitempty"`
	AllowParallel  bool `json:"allow_parallel"`
	AllowFallback  bool `json:"allow_fallback"`
}

// newCreateRunRequest конвертирует domain.RunRequest в тело запроса.
func newCreateRunRequest(req *domain.RunRequest) CreateRunRequest {
	return CreateRunRequest{
		ID:          req.ID.String(),
		Description: req.Description,
		Tasks:       req.Tasks,
		Shared:      req.Shared,
		Options: runOptions{
			MaxConcurrency: req.Options.MaxConcurrency,
			AllowParallel:  req.Options.AllowParallel,
			AllowFallback:  req.Options.AllowFallback,
		},
	}
}

// acceptedResponse — ответ на асинхронный запуск.
type acceptedResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ошибка, которую вернул сервер.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для Conductor API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Run выполняет запрос на сервере. async — только постановка в очередь.
func (c *Client) Run(ctx context.Context, req *domain.RunRequest, async bool) (*RunView, error) {
	path := "/api/v1/runs"
	if async {
		path += "?async=true"

		var accepted acceptedResponse
		if err := c.post(ctx, path, newCreateRunRequest(req), &accepted); err != nil {
			return nil, err
		}
		return &RunView{RequestID: accepted.RequestID, Status: accepted.Status}, nil
	}

	var run RunView
	err := c.post(ctx, path, newCreateRunRequest(req), &run)
	return &run, err
}

// Plan возвращает план выполнения.
func (c *Client) Plan(ctx context.Context, req *domain.RunRequest) (*orchestrator.Plan, error) {
	var plan orchestrator.Plan
	err := c.post(ctx, "/api/v1/plan", newCreateRunRequest(req), &plan)
	return &plan, err
}

// Tasks возвращает зарегистрированные задачи.
func (c *Client) Tasks(ctx context.Context) ([]TaskView, error) {
	var tasks []TaskView
	err := c.list(ctx, "/api/v1/tasks", nil, &tasks)
	return tasks, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(ctx context.Context, id string) (*RunView, error) {
	var run RunView
	err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(id), &run)
	return &run, err
}

// ListRuns возвращает последние runs с фильтрацией.
func (c *Client) ListRuns(ctx context.Context, opts ListRunsOpts) ([]RunView, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Strategy != "" {
		params.Set("strategy", opts.Strategy)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var runs []RunView
	err := c.list(ctx, "/api/v1/runs", params, &runs)
	return runs, err
}

// --- HTTP helpers ---

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.doData(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	return c.doData(ctx, http.MethodPost, path, body, result)
}

func (c *Client) list(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return &APIError{StatusCode: resp.StatusCode}
	}

	return &APIError{StatusCode: resp.StatusCode, Code: er.Error.Code, Message: er.Error.Message}
}
