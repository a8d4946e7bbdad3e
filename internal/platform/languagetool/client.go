package languagetool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phrazzld/evaluator/internal/config"
	"github.com/phrazzld/evaluator/internal/domain"
	"github.com/phrazzld/evaluator/internal/platform/logger"
	"golang.org/x/time/rate"
)

// ServiceName identifies the collaborator in dependency errors and logs.
const ServiceName = "grammar checker"

// maxErrorBody caps how much of a failed response body is kept in errors.
const maxErrorBody = 512

// ErrUnexpectedStatus is wrapped when the API answers with a non-2xx code.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Checker checks text for grammar issues.
type Checker interface {
	Check(ctx context.Context, text, language string) ([]domain.GrammarMatch, error)
}

// checkResponse is the subset of the API response the service consumes.
type checkResponse struct {
	Matches []domain.GrammarMatch `json:"matches"`
}

// Client implements Checker over HTTP.
type Client struct {
	httpClient      *http.Client
	apiURL          string
	apiKey          string
	defaultLanguage string
	limiter         *rate.Limiter
	logger          *slog.Logger
}

var _ Checker = (*Client)(nil)

// NewClient creates a Client from configuration. A nil httpClient gets one
// with the configured timeout.
func NewClient(cfg config.GrammarConfig, httpClient *http.Client, log *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("grammar API URL cannot be empty")
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid grammar API URL: %w", err)
	}
	if log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}

	lang := cfg.DefaultLanguage
	if lang == "" {
		lang = domain.DefaultLanguage
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		httpClient:      httpClient,
		apiURL:          cfg.URL,
		apiKey:          cfg.APIKey,
		defaultLanguage: lang,
		limiter:         rate.NewLimiter(limit, 1),
		logger:          log.With("component", "languagetool_client"),
	}, nil
}

// Check submits text for checking. An empty language uses the configured
// default.
func (c *Client) Check(ctx context.Context, text, language string) ([]domain.GrammarMatch, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	if language == "" {
		language = c.defaultLanguage
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.NewDependencyError(ServiceName, fmt.Errorf("rate limiter: %w", err))
	}

	form := url.Values{}
	form.Set("text", text)
	form.Set("language", language)
	if c.apiKey != "" {
		form.Set("apiKey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, domain.NewDependencyError(ServiceName, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("grammar check request failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return nil, domain.NewDependencyError(ServiceName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Warn("grammar check returned non-success status",
			"status_code", resp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds())
		return nil, domain.NewDependencyError(ServiceName,
			fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var parsed checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, domain.NewDependencyError(ServiceName, fmt.Errorf("failed to decode response: %w", err))
	}

	log.Debug("grammar check completed",
		"language", language,
		"match_count", len(parsed.Matches),
		"duration_ms", time.Since(start).Milliseconds())

	if parsed.Matches == nil {
		parsed.Matches = []domain.GrammarMatch{}
	}
	return parsed.Matches, nil
}
