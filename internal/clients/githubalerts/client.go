// Package githubalerts raises operator alerts as GitHub issues. Alerts
// cover conditions that need a human decision, such as a non-quarterly
// filing whose reporting person does not match the tracked fund.
package githubalerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Client creates issues in a repository. A nil Client is a valid no-op
// sink, so callers never need to guard for missing configuration.
type Client struct {
	issues  issueCreator
	owner   string
	repo    string
	timeout time.Duration
	log     zerolog.Logger
}

type issueCreator interface {
	Create(ctx context.Context, owner, repo string, issue *github.IssueRequest) (*github.Issue, *github.Response, error)
}

// NewClient returns a client for the "owner/repo" repository, or nil when
// token or repository are not configured.
func NewClient(token, repository string, log zerolog.Logger) *Client {
	owner, repo, ok := strings.Cut(repository, "/")
	if token == "" || !ok || owner == "" || repo == "" {
		return nil
	}

	tc := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	))
	return &Client{
		issues:  github.NewClient(tc).Issues,
		owner:   owner,
		repo:    repo,
		timeout: 30 * time.Second,
		log:     log.With().Str("component", "github_alerts").Logger(),
	}
}

// RaiseAlert opens an issue asynchronously. Alerting must never block or
// fail the pipeline that noticed the condition; errors are only logged.
func (c *Client) RaiseAlert(subject, detail string) {
	if c == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		body := fmt.Sprintf("%s\n\nRaised automatically on %s.", detail, time.Now().UTC().Format(time.RFC3339))
		_, _, err := c.issues.Create(ctx, c.owner, c.repo, &github.IssueRequest{
			Title:  github.String(subject),
			Body:   github.String(body),
			Labels: &[]string{"alert"},
		})
		if err != nil {
			c.log.Error().Str("subject", subject).Err(err).Msg("Failed to raise alert issue")
			return
		}
		c.log.Info().Str("subject", subject).Msg("Raised alert issue")
	}()
}
