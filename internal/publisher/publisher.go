// Package publisher writes the filtered address list locally and then
// creates or updates it in the remote store.
package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"ipsift/internal/domain"
	"ipsift/internal/github"
)

// CommitTimeLayout formats the timestamp in commit messages.
const CommitTimeLayout = "2006-01-02 15:04:05 MST"

// Target names one file in one repository.
type Target struct {
	Owner  string
	Repo   string
	Path   string
	Branch string
}

func (t Target) String() string {
	s := t.Owner + "/" + t.Repo + ":" + t.Path
	if t.Branch != "" {
		s += "@" + t.Branch
	}
	return s
}

// PutRequest is one remote write. An empty Token creates the file; a
// non-empty Token updates the revision it names.
type PutRequest struct {
	Message string
	Content []byte
	Token   string
}

type PutResult struct {
	ContentSHA string
	CommitSHA  string
}

// ContentStore is the remote file store. GetRevision returns an error
// satisfying github.IsNotFound when the file does not exist.
type ContentStore interface {
	GetRevision(ctx context.Context, target Target) (string, error)
	PutContent(ctx context.Context, target Target, req PutRequest) (PutResult, error)
}

// Result describes a completed publish.
type Result struct {
	Created       bool
	PreviousToken string
	ContentSHA    string
	CommitSHA     string
	Message       string
	Count         int
}

type Publisher struct {
	Store    ContentStore
	Target   Target
	Location *time.Location
}

// Publish writes seq to the target. If the file exists its current revision
// token is always sent with the write; otherwise the write is a create.
func (p *Publisher) Publish(ctx context.Context, seq []domain.Address, now time.Time) (Result, error) {
	artifact := domain.NewArtifact(seq, now)

	token, err := p.Store.GetRevision(ctx, p.Target)
	switch {
	case err == nil:
		log.Debug("Remote file exists", "target", p.Target, "sha", token)
	case github.IsNotFound(err):
		token = ""
		log.Info("Remote file not found, creating", "target", p.Target)
	default:
		token = ""
		log.Warn("Remote lookup failed, attempting create", "target", p.Target, "error", err)
	}

	message := CommitMessage(p.Target.Path, artifact, p.Location)
	put, err := p.Store.PutContent(ctx, p.Target, PutRequest{
		Message: message,
		Content: artifact.Content,
		Token:   token,
	})
	if err != nil {
		return Result{}, fmt.Errorf("write %s: %w", p.Target, err)
	}

	res := Result{
		Created:       token == "",
		PreviousToken: token,
		ContentSHA:    put.ContentSHA,
		CommitSHA:     put.CommitSHA,
		Message:       message,
		Count:         artifact.Count,
	}
	log.Info("Published address list", "target", p.Target, "count", res.Count, "created", res.Created, "commit", res.CommitSHA)
	return res, nil
}

// CommitMessage renders "Update <path>: <n> addresses at <time>" with the
// time in loc (UTC when nil).
func CommitMessage(path string, artifact domain.Artifact, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("Update %s: %d addresses at %s", path, artifact.Count, artifact.GeneratedAt.In(loc).Format(CommitTimeLayout))
}
