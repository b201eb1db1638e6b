package publisher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipsift/internal/domain"
	"ipsift/internal/github"
)

type fakeStore struct {
	token     string
	lookupErr error
	putErr    error

	lookups int
	puts    []PutRequest
}

func (f *fakeStore) GetRevision(_ context.Context, _ Target) (string, error) {
	f.lookups++
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	return f.token, nil
}

func (f *fakeStore) PutContent(_ context.Context, _ Target, req PutRequest) (PutResult, error) {
	f.puts = append(f.puts, req)
	if f.putErr != nil {
		return PutResult{}, f.putErr
	}
	return PutResult{ContentSHA: "blob-new", CommitSHA: "commit-new"}, nil
}

var (
	target = Target{Owner: "octo", Repo: "lists", Path: "ips.txt"}
	now    = time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	seq    = []domain.Address{"8.8.8.8", "1.2.3.4"}
)

func TestPublishUpdateCarriesToken(t *testing.T) {
	store := &fakeStore{token: "T1"}
	p := &Publisher{Store: store, Target: target}

	res, err := p.Publish(context.Background(), seq, now)
	require.NoError(t, err)

	require.Len(t, store.puts, 1)
	assert.Equal(t, "T1", store.puts[0].Token)
	assert.Equal(t, "8.8.8.8\n1.2.3.4\n", string(store.puts[0].Content))
	assert.Equal(t, "Update ips.txt: 2 addresses at 2026-05-04 03:02:01 UTC", store.puts[0].Message)

	assert.False(t, res.Created)
	assert.Equal(t, "T1", res.PreviousToken)
	assert.Equal(t, "blob-new", res.ContentSHA)
	assert.Equal(t, "commit-new", res.CommitSHA)
	assert.Equal(t, 2, res.Count)
}

func TestPublishNotFoundCreates(t *testing.T) {
	store := &fakeStore{lookupErr: &github.APIError{StatusCode: 404, Message: "Not Found"}}
	p := &Publisher{Store: store, Target: target}

	res, err := p.Publish(context.Background(), seq, now)
	require.NoError(t, err)

	require.Len(t, store.puts, 1)
	assert.Empty(t, store.puts[0].Token)
	assert.True(t, res.Created)
}

func TestPublishLookupFailureIsOptimisticCreate(t *testing.T) {
	store := &fakeStore{lookupErr: errors.New("connection reset")}
	p := &Publisher{Store: store, Target: target}

	res, err := p.Publish(context.Background(), seq, now)
	require.NoError(t, err)
	require.Len(t, store.puts, 1)
	assert.Empty(t, store.puts[0].Token)
	assert.True(t, res.Created)
}

func TestPublishWriteErrorIsReturned(t *testing.T) {
	apiErr := &github.APIError{StatusCode: 409, Message: "ips.txt does not match abc"}
	store := &fakeStore{token: "stale", putErr: apiErr}
	p := &Publisher{Store: store, Target: target}

	_, err := p.Publish(context.Background(), seq, now)
	require.Error(t, err)
	assert.True(t, github.IsConflict(err))
	assert.Contains(t, err.Error(), "does not match")
	assert.Equal(t, 1, store.lookups)
	assert.Len(t, store.puts, 1, "no retry on write failure")
}

func TestCommitMessageTimezone(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	artifact := domain.NewArtifact(seq, now)
	assert.Equal(t, "Update out/ips.txt: 2 addresses at 2026-05-04 05:02:01 CEST", CommitMessage("out/ips.txt", artifact, berlin))
	assert.Equal(t, "Update ips.txt: 0 addresses at 2026-05-04 03:02:01 UTC", CommitMessage("ips.txt", domain.NewArtifact(nil, now), nil))
}

func TestWriteLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output", "nested", "ips.txt")

	require.NoError(t, WriteLocal(path, domain.NewArtifact(seq, now)))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "8.8.8.8\n1.2.3.4\n", string(data))

	// A second write replaces the file.
	require.NoError(t, WriteLocal(path, domain.NewArtifact([]domain.Address{"9.9.9.9"}, now)))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "9.9.9.9\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestWriteLocalFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := WriteLocal(filepath.Join(blocker, "ips.txt"), domain.NewArtifact(seq, now))
	assert.Error(t, err)
}

func TestGitHubStore(t *testing.T) {
	var putBody string
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "ref=main", r.URL.RawQuery)
			_, _ = w.Write([]byte(`{"type":"file","sha":"current-blob"}`))
		case http.MethodPut:
			raw, _ := io.ReadAll(r.Body)
			putBody = string(raw)
			_, _ = w.Write([]byte(`{"content":{"sha":"next-blob"},"commit":{"sha":"c1"}}`))
		}
	}))
	defer server.Close()

	client, err := github.NewClient(github.Config{BaseURL: server.URL, Token: "t", HTTPClient: server.Client()})
	require.NoError(t, err)

	p := &Publisher{
		Store:  GitHubStore{Client: client},
		Target: Target{Owner: "octo", Repo: "lists", Path: "ips.txt", Branch: "main"},
	}
	res, err := p.Publish(context.Background(), seq, now)
	require.NoError(t, err)

	assert.Equal(t, "current-blob", res.PreviousToken)
	assert.Equal(t, "next-blob", res.ContentSHA)
	assert.Equal(t, "c1", res.CommitSHA)
	assert.Contains(t, putBody, `"sha":"current-blob"`)
	assert.Contains(t, putBody, `"branch":"main"`)
}

func TestGitHubStoreMissingSHAIsOptimisticCreate(t *testing.T) {
	var putBody string
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{}`))
		case http.MethodPut:
			raw, _ := io.ReadAll(r.Body)
			putBody = string(raw)
			_, _ = w.Write([]byte(`{"content":{"sha":"next-blob"},"commit":{"sha":"c1"}}`))
		}
	}))
	defer server.Close()

	client, err := github.NewClient(github.Config{BaseURL: server.URL, Token: "t", HTTPClient: server.Client()})
	require.NoError(t, err)

	_, err = GitHubStore{Client: client}.GetRevision(context.Background(), target)
	require.Error(t, err)
	assert.False(t, github.IsNotFound(err))

	p := &Publisher{Store: GitHubStore{Client: client}, Target: target}
	res, err := p.Publish(context.Background(), seq, now)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.NotContains(t, putBody, `"sha"`)
}
