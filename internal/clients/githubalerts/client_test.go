package githubalerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIssues struct {
	mu      sync.Mutex
	created []github.IssueRequest
	done    chan struct{}
}

func (f *fakeIssues) Create(_ context.Context, _, _ string, issue *github.IssueRequest) (*github.Issue, *github.Response, error) {
	f.mu.Lock()
	f.created = append(f.created, *issue)
	f.mu.Unlock()
	close(f.done)
	return &github.Issue{}, nil, nil
}

func TestNewClientRequiresTokenAndRepository(t *testing.T) {
	assert.Nil(t, NewClient("", "owner/repo", zerolog.Nop()))
	assert.Nil(t, NewClient("token", "", zerolog.Nop()))
	assert.Nil(t, NewClient("token", "norepo", zerolog.Nop()))
	assert.NotNil(t, NewClient("token", "owner/repo", zerolog.Nop()))
}

func TestRaiseAlertCreatesIssue(t *testing.T) {
	issues := &fakeIssues{done: make(chan struct{})}
	client := &Client{
		issues:  issues,
		owner:   "owner",
		repo:    "repo",
		timeout: time.Second,
		log:     zerolog.Nop(),
	}

	client.RaiseAlert("Unattributed filing", "Owner SOMEONE ELSE does not match fund")

	select {
	case <-issues.done:
	case <-time.After(2 * time.Second):
		t.Fatal("issue was never created")
	}

	issues.mu.Lock()
	defer issues.mu.Unlock()
	require.Len(t, issues.created, 1)
	assert.Equal(t, "Unattributed filing", issues.created[0].GetTitle())
	assert.Contains(t, issues.created[0].GetBody(), "SOMEONE ELSE")
}

func TestRaiseAlertOnNilClientIsNoOp(t *testing.T) {
	var client *Client
	client.RaiseAlert("subject", "detail")
}
