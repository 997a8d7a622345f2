package steps

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	// StepTypeHTTP — тип HTTP шага.
	StepTypeHTTP = "http"

	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// Ключи конфигурации HTTP шага.
const (
	configMethod          = "method"
	configURL             = "url"
	configHeaders         = "headers"
	configBody            = "body"
	configFollowRedirects = "follow_redirects"
	configValidateSSL     = "validate_ssl"
	configTimeoutSec      = "timeout_sec"
	configExtract         = "extract"
	configSet             = "set"
)

// HTTPStep — шаг HTTP запроса.
//
// Конфигурация (строки рендерятся шаблонами):
//
//	{
//	    "method": "POST",
//	    "url": "https://ci.example.com/builds",
//	    "headers": {"Authorization": "Bearer {{ env \"CI_TOKEN\" }}"},
//	    "body": {"plan": "{{ .Deps.planner.plan }}"},
//	    "follow_redirects": true,
//	    "validate_ssl": true,
//	    "timeout_sec": 30,
//	    "set": {"meta.ref": "{{ .Shared.ref }}", "labels.-1": "nightly"},
//	    "extract": {"build_id": "build.id", "first": "items.0.name"}
//	}
//
// set — SJSON-пути, которые дописываются в JSON body перед отправкой
// (без body — в пустой объект).
//
// Outputs:
//
//	{"status_code": 200, "headers": {...}, "body": {...}}  // body — JSON или строка
//
// extract — GJSON-пути по телу ответа; каждое значение попадает
// в outputs под своим ключом (отсутствующий путь — nil).
//
// Ответ с кодом >= 400 — ошибка *HTTPError, задача падает и может
// быть повторена по RetryPolicy.
type HTTPStep struct {
	client *http.Client
}

// NewHTTPStep создаёт новый HTTPStep.
func NewHTTPStep() *HTTPStep {
	return &HTTPStep{
		client: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Type возвращает тип шага.
func (s *HTTPStep) Type() string {
	return StepTypeHTTP
}

// Execute выполняет HTTP запрос.
func (s *HTTPStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	cfg, err := parseHTTPConfig(req.Config)
	if err != nil {
		return nil, err
	}

	httpReq, err := buildRequest(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.clientFor(cfg, req.Timeout).Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncate(string(body), 200),
		}
	}

	outputs := buildOutputs(resp, body)
	for key, path := range cfg.Extract {
		outputs[key] = gjson.GetBytes(body, path).Value()
	}

	return NewResponse(outputs), nil
}

// httpConfig — распарсенная конфигурация HTTP шага.
type httpConfig struct {
	Method          string
	URL             string
	Headers         map[string]string
	Body            any
	Set             map[string]any
	FollowRedirects bool
	ValidateSSL     bool
	TimeoutSec      int
	Extract         map[string]string
}

// parseHTTPConfig парсит конфигурацию HTTP шага.
func parseHTTPConfig(config map[string]any) (*httpConfig, error) {
	cfg := &httpConfig{
		Method:          strings.ToUpper(GetConfigString(config, configMethod)),
		URL:             GetConfigString(config, configURL),
		Headers:         GetConfigMapString(config, configHeaders),
		Body:            config[configBody],
		Set:             GetConfigMap(config, configSet),
		FollowRedirects: GetConfigBool(config, configFollowRedirects, true),
		ValidateSSL:     GetConfigBool(config, configValidateSSL, true),
		TimeoutSec:      GetConfigInt(config, configTimeoutSec),
		Extract:         GetConfigMapString(config, configExtract),
	}

	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: %s: url is required", ErrInvalidConfig, StepTypeHTTP)
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	for key, path := range cfg.Extract {
		if key == "status_code" || key == "headers" || key == "body" {
			return nil, fmt.Errorf("%w: %s: extract key %q is reserved", ErrInvalidConfig, StepTypeHTTP, key)
		}
		if path == "" {
			return nil, fmt.Errorf("%w: %s: extract path for %q is empty", ErrInvalidConfig, StepTypeHTTP, key)
		}
	}
	for path := range cfg.Set {
		if path == "" {
			return nil, fmt.Errorf("%w: %s: set path is empty", ErrInvalidConfig, StepTypeHTTP)
		}
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}

	return cfg, nil
}

// clientFor возвращает клиент под настройки шага.
// Без особых настроек используется общий клиент.
func (s *HTTPStep) clientFor(cfg *httpConfig, reqTimeout time.Duration) *http.Client {
	if cfg.FollowRedirects && cfg.ValidateSSL && cfg.TimeoutSec == 0 && reqTimeout == 0 {
		return s.client
	}

	timeout := defaultHTTPTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}
	if reqTimeout > 0 && reqTimeout < timeout {
		timeout = reqTimeout
	}

	var checkRedirect func(*http.Request, []*http.Request) error
	if !cfg.FollowRedirects {
		checkRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &http.Client{
		Timeout:       timeout,
		CheckRedirect: checkRedirect,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.ValidateSSL},
		},
	}
}

// buildRequest создаёт HTTP запрос.
func buildRequest(ctx context.Context, cfg *httpConfig) (*http.Request, error) {
	var bodyReader io.Reader
	if cfg.Body != nil || len(cfg.Set) > 0 {
		bodyBytes, err := serializeBody(cfg.Body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		if bodyBytes, err = applySet(bodyBytes, cfg.Set); err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, bodyReader)
	if err != nil {
		return nil, err
	}

	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// serializeBody сериализует body в bytes.
func serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// applySet дописывает значения в JSON body по SJSON-путям.
// Пути применяются в отсортированном порядке.
func applySet(body []byte, set map[string]any) ([]byte, error) {
	if len(set) == 0 {
		return body, nil
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s: set requires a JSON body", ErrInvalidConfig, StepTypeHTTP)
	}

	paths := make([]string, 0, len(set))
	for path := range set {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var err error
	for _, path := range paths {
		if body, err = sjson.SetBytes(body, path, set[path]); err != nil {
			return nil, fmt.Errorf("%w: %s: set %q: %v", ErrInvalidConfig, StepTypeHTTP, path, err)
		}
	}
	return body, nil
}

// buildOutputs формирует outputs из HTTP-ответа.
func buildOutputs(resp *http.Response, body []byte) map[string]any {
	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	// JSON, иначе строка
	var parsedBody any
	if err := json.Unmarshal(body, &parsedBody); err != nil {
		parsedBody = string(body)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        parsedBody,
	}
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// HTTPError — ответ с кодом ошибки.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// IsHTTPError проверяет, является ли ошибка HTTP ошибкой.
func IsHTTPError(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr)
}
