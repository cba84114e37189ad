package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hangarlabs/hangar/models"
	"github.com/hangarlabs/hangar/session"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultRateLimit = 20.0
	defaultRateBurst = 40
)

// Navigator receives the forced navigations the gateway performs. In a
// browser shell this drives the location; the CLI prints the target URL.
type Navigator interface {
	ToLogin(reason string)
}

type Config struct {
	BaseURL   string
	Store     session.Store
	Navigator Navigator
	Logger    *slog.Logger
	Timeout   time.Duration

	// Client-side throttle. The platform penalizes bursty clients, so the
	// gateway paces all traffic through one limiter.
	RateLimit float64
	RateBurst int

	// CharacterParamPaths lists endpoints the backend cannot scope from the
	// credential alone; requests to them carry character_id explicitly.
	CharacterParamPaths []string
}

// Gateway is the single choke point for REST traffic. Every resource wrapper
// goes through Do; nothing else attaches credentials or interprets a 401.
type Gateway struct {
	baseURL        *url.URL
	httpClient     *http.Client
	store          session.Store
	nav            Navigator
	logger         *slog.Logger
	limiter        *rate.Limiter
	characterParam map[string]struct{}
}

func New(cfg *Config) (*Gateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("baseURL cannot be empty")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store cannot be nil")
	}
	if cfg.Navigator == nil {
		return nil, fmt.Errorf("navigator cannot be nil")
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL '%s': %w", cfg.BaseURL, err)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}

	characterParam := make(map[string]struct{}, len(cfg.CharacterParamPaths))
	for _, p := range cfg.CharacterParamPaths {
		characterParam[strings.TrimPrefix(p, "/")] = struct{}{}
	}

	logger := cfg.Logger.WithGroup("gateway")
	logger.Info("Gateway initialized", "base_url", baseURL.String(), "rate_limit", cfg.RateLimit, "rate_burst", cfg.RateBurst)

	return &Gateway{
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		store:          cfg.Store,
		nav:            cfg.Navigator,
		logger:         logger,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		characterParam: characterParam,
	}, nil
}

// Do dispatches one REST call and decodes the response into target when
// target is non-nil. Failures are one of *NetworkError, *HTTPError,
// *DecodeError, or ErrUnauthorized; there is no automatic retry, since
// idempotency varies per endpoint and is the caller's business.
func (g *Gateway) Do(ctx context.Context, method, path string, queryParams map[string]string, body, target any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("request cancelled while rate limited: %w", err)
	}

	trimmedPath := strings.TrimPrefix(path, "/")
	reqURL := g.baseURL.ResolveReference(&url.URL{Path: trimmedPath})

	q := reqURL.Query()
	for k, v := range queryParams {
		q.Set(k, v)
	}

	current, haveSession := g.store.Get()
	if haveSession && current.CharacterID != 0 {
		if _, needed := g.characterParam[trimmedPath]; needed {
			q.Set("character_id", strconv.FormatInt(current.CharacterID, 10))
		}
	}
	reqURL.RawQuery = q.Encode()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body for %s %s: %w", method, path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request %s %s: %w", method, reqURL.String(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	if haveSession && current.Token != "" && !current.ServerManaged() {
		req.Header.Set("Authorization", "Bearer "+current.Token)
	}

	g.logger.Debug("Sending request", "method", method, "url", reqURL.String())

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Error("HTTP request failed", "method", method, "url", reqURL.String(), "error", err)
		return &NetworkError{Method: method, URL: reqURL.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Hard invalidation: a stale or revoked credential cannot be repaired
		// client-side, so the session is evicted and the user sent to login.
		g.logger.Warn("Unauthorized response, evicting session", "method", method, "path", path)
		if err := g.store.Clear(); err != nil {
			g.logger.Error("Failed to clear session after unauthorized response", "error", err)
		}
		g.nav.ToLogin("session expired")
		return ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{Status: resp.StatusCode, Method: method, Path: path}
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr == nil {
			var errorResp models.ErrorResponse
			if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
				httpErr.ErrorType = errorResp.ErrorType
				httpErr.Message = errorResp.Message
			}
		}
		g.logger.Warn("Received non-2xx status code", "method", method, "path", path, "status_code", resp.StatusCode)
		return httpErr
	}

	if target != nil {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return &NetworkError{Method: method, URL: reqURL.String(), Err: err}
		}
		if err := json.Unmarshal(bodyBytes, target); err != nil {
			g.logger.Error("Failed to decode response body", "method", method, "path", path, "error", err, "body", string(bodyBytes))
			return &DecodeError{Path: path, Raw: bodyBytes, Err: err}
		}
	}

	g.logger.Debug("Request successful", "method", method, "path", path, "status_code", resp.StatusCode)
	return nil
}
