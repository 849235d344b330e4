// Package music implements a client for the Link Music text analysis API,
// which recommends tracks for a piece of conversation text.
package music

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbourn/go-counsel-backend/internal/config"
)

// DefaultURL is the production analyze endpoint.
const DefaultURL = "https://api-prod.linkmusic.io/v2/analyze/text"

// ErrUpstream wraps every failure talking to the API.
var ErrUpstream = errors.New("music api error")

// Track is one recommended track, passed through as the API returns it.
type Track map[string]any

// Response is the decoded analyze response.
type Response struct {
	Musics []Track `json:"musics"`
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("music api returned status %d: %s", e.Code, e.Body)
}

// Unwrap lets errors.Is(err, ErrUpstream) match.
func (e *StatusError) Unwrap() error { return ErrUpstream }

// Client calls the analyze endpoint.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a Client from cfg. Outbound requests are traced.
func NewClient(cfg config.MusicConfig) *Client {
	u := strings.TrimSpace(cfg.URL)
	if u == "" {
		u = DefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:    u,
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Recommend posts message and asks for take tracks.
func (c *Client) Recommend(ctx context.Context, message string, take int) (*Response, error) {
	form := url.Values{}
	form.Set("message", message)
	form.Set("take", strconv.Itoa(take))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "*/*")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUpstream, err)
	}
	if out.Musics == nil {
		out.Musics = []Track{}
	}
	return &out, nil
}
