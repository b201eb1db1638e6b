package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	githubAPIVersion = "2022-11-28"
	defaultBaseURL   = "https://api.github.com"
	maxResponseBytes = 32 << 20
)

// Config configures a Client. Set either Token or the App triple
// (AppID, PrivateKey, InstallationID), never both.
type Config struct {
	// BaseURL defaults to https://api.github.com. Must be HTTPS unless the
	// host is a loopback address.
	BaseURL string

	AppID          int64
	PrivateKey     []byte
	InstallationID int64

	Token string

	HTTPClient *http.Client
	UserAgent  string

	// Now defaults to time.Now.
	Now func() time.Time
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	auth       authenticator
}

func NewClient(config Config) (*Client, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if err := checkScheme(baseURL); err != nil {
		return nil, err
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Minute}
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	hasApp := config.AppID != 0 || len(config.PrivateKey) > 0 || config.InstallationID != 0
	hasToken := config.Token != ""

	if hasApp && hasToken {
		return nil, fmt.Errorf("github: cannot configure both App auth and token auth")
	}
	if !hasApp && !hasToken {
		return nil, fmt.Errorf("github: no authentication configured (set AppID+PrivateKey+InstallationID or Token)")
	}

	var auth authenticator
	if hasApp {
		if config.AppID == 0 {
			return nil, fmt.Errorf("github: AppID is required for App auth")
		}
		if len(config.PrivateKey) == 0 {
			return nil, fmt.Errorf("github: PrivateKey is required for App auth")
		}
		if config.InstallationID == 0 {
			return nil, fmt.Errorf("github: InstallationID is required for App auth")
		}

		appAuth, err := newAppAuth(config.AppID, config.InstallationID, config.PrivateKey, now)
		if err != nil {
			return nil, err
		}
		appAuth.httpClient = httpClient
		appAuth.baseURL = baseURL
		appAuth.userAgent = config.UserAgent
		auth = appAuth
	} else {
		auth = newTokenAuth(config.Token)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		userAgent:  config.UserAgent,
		auth:       auth,
	}, nil
}

// checkScheme requires HTTPS, except for plain HTTP to a loopback host.
func checkScheme(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("github: invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if isLoopback(u.Hostname()) {
			return nil
		}
	}
	return fmt.Errorf("github: API client requires HTTPS (got %q)", baseURL)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// do sends an authenticated request and returns the body of a 2xx
// response. Other statuses become *APIError.
func (client *Client) do(ctx context.Context, method, path string, requestBody any) ([]byte, error) {
	response, err := client.doRaw(ctx, method, client.baseURL+path, requestBody)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("github: reading response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, parseAPIErrorFromBody(response.StatusCode, body)
	}
	return body, nil
}

func (client *Client) doRaw(ctx context.Context, method, url string, requestBody any) (*http.Response, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("github: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("github: creating request: %w", err)
	}

	authHeader, err := client.auth.AuthorizationHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("github: authentication: %w", err)
	}
	request.Header.Set("Authorization", authHeader)
	request.Header.Set("Accept", "application/vnd.github+json")
	request.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	if client.userAgent != "" {
		request.Header.Set("User-Agent", client.userAgent)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("github: %s %s: %w", method, url, err)
	}
	return response, nil
}

func (client *Client) put(ctx context.Context, path string, requestBody any, result any) error {
	body, err := client.do(ctx, http.MethodPut, path, requestBody)
	if err != nil {
		return err
	}
	if result != nil {
		return json.Unmarshal(body, result)
	}
	return nil
}

func parseAPIErrorFromBody(statusCode int, body []byte) *APIError {
	apiError := &APIError{StatusCode: statusCode}

	var wireError struct {
		Message          string            `json:"message"`
		DocumentationURL string            `json:"documentation_url"`
		Errors           []ValidationError `json:"errors"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Message != "" {
		apiError.Message = wireError.Message
		apiError.DocumentationURL = wireError.DocumentationURL
		apiError.Errors = wireError.Errors
	} else {
		apiError.Message = strings.TrimSpace(string(body))
	}

	return apiError
}
