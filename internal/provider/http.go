package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"virtualassoc/internal/setutil"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultKeysParam   = "ids"
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBody       = 512
)

// HTTPSource loads objects from a JSON endpoint. A fetch is a single GET
// with the keys joined by commas in KeysParam; the response body must be a
// JSON array of objects.
type HTTPSource struct {
	URL       string
	KeysParam string
	Client    *http.Client
}

// NewHTTPSource creates a source whose client is traced with otelhttp.
func NewHTTPSource(endpoint, keysParam string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPSource{
		URL:       endpoint,
		KeysParam: keysParam,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Fetch requests keys from the endpoint. Numbers in the response decode as
// json.Number.
func (s *HTTPSource) Fetch(ctx context.Context, keys []any) ([]any, error) {
	distinct := setutil.DistinctKeys(keys)
	if len(distinct) == 0 {
		return nil, nil
	}

	endpoint, err := s.requestURL(distinct)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", s.URL, err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("request %s: unexpected status %d: %s", s.URL, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", s.URL, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var payload []map[string]any
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", s.URL, err)
	}

	out := make([]any, 0, len(payload))
	for _, obj := range payload {
		out = append(out, obj)
	}
	return out, nil
}

func (s *HTTPSource) requestURL(keys []any) (string, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return "", fmt.Errorf("invalid source url %q: %w", s.URL, err)
	}
	param := s.KeysParam
	if param == "" {
		param = defaultKeysParam
	}
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = setutil.CanonicalKey(key)
	}
	q := u.Query()
	q.Set(param, strings.Join(parts, ","))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
