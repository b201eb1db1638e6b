package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Content is a file entry from the contents API. SHA is the blob SHA that a
// later update must quote.
type Content struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	HTMLURL  string `json:"html_url"`
}

// Decoded returns the file body when the API inlined it as base64.
func (c *Content) Decoded() ([]byte, error) {
	if c.Encoding != "base64" {
		return nil, fmt.Errorf("github: unsupported content encoding %q", c.Encoding)
	}
	// The API wraps base64 at 60 columns.
	return base64.StdEncoding.DecodeString(strings.ReplaceAll(c.Content, "\n", ""))
}

// PutContentRequest creates a file when SHA is empty and updates it
// otherwise.
type PutContentRequest struct {
	Message string
	Content []byte
	SHA     string
	Branch  string
}

type putContentBody struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type Commit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Message string `json:"message"`
}

type PutContentResponse struct {
	Content Content `json:"content"`
	Commit  Commit  `json:"commit"`
}

// GetContent fetches the metadata of a single file. ref selects a branch,
// tag or commit; empty means the default branch.
func (client *Client) GetContent(ctx context.Context, owner, repo, path, ref string) (*Content, error) {
	endpoint := contentsPath(owner, repo, path)
	if ref != "" {
		endpoint += "?ref=" + url.QueryEscape(ref)
	}

	body, err := client.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	// Directories come back as a JSON array.
	if trimmed := strings.TrimSpace(string(body)); strings.HasPrefix(trimmed, "[") {
		return nil, fmt.Errorf("github: %s is a directory", path)
	}

	var content Content
	if err := json.Unmarshal(body, &content); err != nil {
		return nil, fmt.Errorf("github: decoding content: %w", err)
	}
	if content.Type != "" && content.Type != "file" {
		return nil, fmt.Errorf("github: %s is a %s, not a file", path, content.Type)
	}
	if content.SHA == "" {
		return nil, fmt.Errorf("github: %s: response has no blob sha", path)
	}
	return &content, nil
}

// PutContent creates or updates one file in a single commit.
func (client *Client) PutContent(ctx context.Context, owner, repo, path string, request PutContentRequest) (*PutContentResponse, error) {
	if request.Message == "" {
		return nil, errors.New("github: commit message is required")
	}

	body := putContentBody{
		Message: request.Message,
		Content: base64.StdEncoding.EncodeToString(request.Content),
		SHA:     request.SHA,
		Branch:  request.Branch,
	}

	var result PutContentResponse
	if err := client.put(ctx, contentsPath(owner, repo, path), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func contentsPath(owner, repo, path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo) + "/contents/" + strings.Join(segments, "/")
}

// Repository is an owner/name coordinate.
type Repository struct {
	Owner string
	Name  string
}

func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepository splits "owner/repo".
func ParseRepository(s string) (Repository, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repository{}, fmt.Errorf("github: repository %q must have the form owner/repo", s)
	}
	return Repository{Owner: owner, Name: name}, nil
}
