package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const defaultAPITimeout = 10 * time.Second

type apiConfig struct {
	URL     string            `mapstructure:"url"`
	Method  string            `mapstructure:"method"`
	Headers map[string]string `mapstructure:"headers"`
	Body    any               `mapstructure:"body"`
	Timeout time.Duration     `mapstructure:"timeout"`
	Retries int               `mapstructure:"retries"`
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

func (h *handlers) callAPI(ctx context.Context, wctx map[string]any, config map[string]any) (any, error) {
	var cfg apiConfig
	if err := decode(config, &cfg); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		// Placeholder call kept for workflows that only model the step.
		return map[string]any{"status": "success", "data": map[string]any{}}, nil
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultAPITimeout
	}

	var body []byte
	switch b := cfg.Body.(type) {
	case nil:
	case string:
		body = []byte(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", CallAPI, err)
		}
		body = data
		if _, ok := cfg.Headers["Content-Type"]; !ok {
			if cfg.Headers == nil {
				cfg.Headers = map[string]string{}
			}
			cfg.Headers["Content-Type"] = "application/json"
		}
	}

	var result map[string]any
	attempt := 0
	op := func() error {
		attempt++
		res, err := h.doRequest(ctx, cfg, body)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			h.deps.Logger.Debug("call_api attempt failed", zap.String("url", cfg.URL), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		result = res
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(max(cfg.Retries, 0))), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("%s %s: %w", CallAPI, cfg.URL, err)
	}
	return result, nil
}

func (h *handlers) doRequest(ctx context.Context, cfg apiConfig, body []byte) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(cfg.Method), cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.deps.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var data any = string(raw)
	var decoded any
	if len(raw) > 0 && json.Unmarshal(raw, &decoded) == nil {
		data = decoded
	}
	return map[string]any{
		"status":      "success",
		"status_code": resp.StatusCode,
		"data":        data,
	}, nil
}
