package publisher

import (
	"context"

	"ipsift/internal/github"
)

// GitHubStore adapts the contents API client to ContentStore. The revision
// token is the file's blob SHA.
type GitHubStore struct {
	Client *github.Client
}

func (s GitHubStore) GetRevision(ctx context.Context, target Target) (string, error) {
	content, err := s.Client.GetContent(ctx, target.Owner, target.Repo, target.Path, target.Branch)
	if err != nil {
		return "", err
	}
	return content.SHA, nil
}

func (s GitHubStore) PutContent(ctx context.Context, target Target, req PutRequest) (PutResult, error) {
	resp, err := s.Client.PutContent(ctx, target.Owner, target.Repo, target.Path, github.PutContentRequest{
		Message: req.Message,
		Content: req.Content,
		SHA:     req.Token,
		Branch:  target.Branch,
	})
	if err != nil {
		return PutResult{}, err
	}
	return PutResult{ContentSHA: resp.Content.SHA, CommitSHA: resp.Commit.SHA}, nil
}
