package blizzard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type Client struct {
	oauthHost  string
	apiHost    string
	region     string
	locale     string
	httpClient *http.Client

	clientID     string
	clientSecret string

	mu          sync.Mutex
	cachedToken string
	tokenExpiry time.Time
}

// APIError is a non-2xx response from a data endpoint. The upstream body is
// preserved for diagnostics.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("blizzard API error (%d): %s", e.Status, e.Body)
}

// AuthError is a failed client-credentials exchange.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("blizzard token exchange failed (%d): %s", e.Status, e.Body)
}

type Options struct {
	OAuthHost    string
	APIHost      string
	Region       string
	Locale       string
	ClientID     string
	ClientSecret string
}

func NewClient(httpClient *http.Client, opts Options) *Client {
	if opts.OAuthHost == "" {
		opts.OAuthHost = "https://oauth.battle.net"
	}
	if opts.APIHost == "" {
		opts.APIHost = "https://us.api.blizzard.com"
	}
	if opts.Region == "" {
		opts.Region = "us"
	}
	if opts.Locale == "" {
		opts.Locale = "en_US"
	}
	return &Client{
		oauthHost:    strings.TrimRight(opts.OAuthHost, "/"),
		apiHost:      strings.TrimRight(opts.APIHost, "/"),
		region:       opts.Region,
		locale:       opts.Locale,
		httpClient:   httpClient,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values, token string) ([]byte, http.Header, error) {
	fullURL := c.apiHost + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, resp.Header, nil
}
