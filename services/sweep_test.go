package services

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pr-needs-review/models"
)

func TestRunner_Sweep(t *testing.T) {
	repo := newFakeRepository()
	repo.addPR(models.PullRequest{Number: 1})
	repo.addPR(models.PullRequest{Number: 2, Labels: []string{readyLabel}})
	repo.addPR(models.PullRequest{Number: 3, Draft: true, Labels: []string{readyLabel}})
	repo.addPR(models.PullRequest{Number: 4, State: "closed"})
	repo.addReview(2, "alice", models.ReviewStateChangesRequested, baseTime)
	runner, _ := newTestRunner(nil, repo)

	results, err := runner.Sweep(context.Background(), "owner/repo", 2)
	require.NoError(t, err)

	got := map[int]Outcome{}
	for _, r := range results {
		require.NoError(t, r.Err)
		got[r.Number] = r.Result.Outcome
	}
	want := map[int]Outcome{
		1: OutcomeReady,
		2: OutcomeNeedsChanges,
		3: OutcomeDraft,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Sweep() outcomes mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []string{readyLabel}, repo.labels(1))
	assert.Equal(t, []string{needsLabel}, repo.labels(2))
	assert.Empty(t, repo.labels(3))
	assert.Equal(t, 1, repo.commentCount(2, DefaultNeedsChangesComment))
}

func TestRunner_SweepCollectsFailures(t *testing.T) {
	repo := newFakeRepository()
	repo.addPR(models.PullRequest{Number: 1})
	repo.addPR(models.PullRequest{Number: 2})
	repo.failOn("AddLabel", &TransportError{Op: "add label", Status: 500, Err: errors.New("boom")})
	runner, _ := newTestRunner(nil, repo)

	results, err := runner.Sweep(context.Background(), "owner/repo", 1)
	require.Error(t, err)
	require.Len(t, results, 2)

	var failed []int
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Number)
		}
	}
	sort.Ints(failed)
	assert.Equal(t, []int{1, 2}, failed)

	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestRunner_SweepListFailure(t *testing.T) {
	repo := newFakeRepository()
	repo.failOn("ListOpenPullRequests", &TransportError{Op: "list pull requests", Status: 502, Err: errors.New("bad gateway")})
	runner, _ := newTestRunner(nil, repo)

	results, err := runner.Sweep(context.Background(), "owner/repo", 4)
	require.Error(t, err)
	assert.Nil(t, results)
}

func TestRunner_SweepInactiveRepository(t *testing.T) {
	db := setupTestDB(t)
	cfg := models.RepositoryConfig{ID: "cfg-1", RepoFullName: "owner/repo", IsActive: true}
	db.Create(&cfg)
	db.Model(&cfg).Update("is_active", false)

	repo := newFakeRepository()
	repo.addPR(models.PullRequest{Number: 1})
	runner, _ := newTestRunner(db, repo)

	results, err := runner.Sweep(context.Background(), "owner/repo", 4)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, repo.calls)
}
