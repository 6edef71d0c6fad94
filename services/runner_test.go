package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-github/v71/github"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"pr-needs-review/models"
)

type recordingNotifier struct {
	mu      sync.Mutex
	results []*Result
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, _ Settings, res *Result) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, res)
	return n.err
}

func newTestRunner(db *gorm.DB, repo *fakeRepository) (*Runner, *recordingNotifier) {
	notifier := &recordingNotifier{}
	return &Runner{
		DB:       db,
		Defaults: DefaultSettings(),
		NewRepository: func(owner, name string) Repository {
			return repo
		},
		Notifier: notifier,
	}, notifier
}

func openedEvent(number int) *models.Event {
	return &models.Event{
		Action:      github.Ptr("opened"),
		PullRequest: &github.PullRequest{Number: github.Ptr(number)},
		Repo: &github.Repository{
			Name:  github.Ptr("repo"),
			Owner: &github.User{Login: github.Ptr("owner")},
		},
	}
}

func TestRunner_HandleEvent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := newFakeRepository()
	repo.addPR(models.PullRequest{Number: 1})
	runner, notifier := newTestRunner(db, repo)

	before := testutil.ToFloat64(reconcileCounter.WithLabelValues("opened", "ready"))

	report, err := runner.HandleEvent(ctx, openedEvent(1), "")
	require.NoError(t, err)
	assert.Equal(t, "owner/repo", report.Repo)
	assert.Equal(t, TriggerOpened, report.Classification.Trigger)
	require.NotNil(t, report.Result)
	assert.Equal(t, OutcomeReady, report.Result.Outcome)
	assert.Equal(t, []string{readyLabel}, repo.labels(1))

	assert.Equal(t, before+1, testutil.ToFloat64(reconcileCounter.WithLabelValues("opened", "ready")))

	records, err := ListRecords(db, "owner/repo", 1, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ready", records[0].Outcome)
	assert.Equal(t, readyLabel, records[0].LabelsAdded)

	// 通知するかどうかは Notifier 側で決める
	require.Len(t, notifier.results, 1)
	assert.False(t, notifier.results[0].EpisodeStarted)
}

func TestRunner_HandleEventSkips(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	runner, _ := newTestRunner(nil, repo)

	before := testutil.ToFloat64(skippedEventCounter.WithLabelValues("unrelated comment"))

	event := &models.Event{
		Action: github.Ptr("created"),
		Issue: &github.Issue{
			Number:           github.Ptr(3),
			PullRequestLinks: &github.PullRequestLinks{},
		},
		Comment: &github.IssueComment{Body: github.Ptr("nice")},
	}
	report, err := runner.HandleEvent(ctx, event, "owner/repo")
	require.NoError(t, err)
	assert.True(t, report.Classification.Skip)
	assert.Nil(t, report.Result)
	assert.Empty(t, repo.calls)

	assert.Equal(t, before+1, testutil.ToFloat64(skippedEventCounter.WithLabelValues("unrelated comment")))
}

func TestRunner_HandleEventUnknownRepository(t *testing.T) {
	runner, _ := newTestRunner(nil, newFakeRepository())
	event := openedEvent(1)
	event.Repo = nil

	_, err := runner.HandleEvent(context.Background(), event, "")
	assert.Error(t, err)
}

func TestRunner_InactiveRepository(t *testing.T) {
	db := setupTestDB(t)
	cfg := models.RepositoryConfig{ID: "cfg-1", RepoFullName: "owner/repo", IsActive: true}
	db.Create(&cfg)
	db.Model(&cfg).Update("is_active", false)

	repo := newFakeRepository()
	repo.addPR(models.PullRequest{Number: 1})
	runner, _ := newTestRunner(db, repo)

	report, err := runner.HandleEvent(context.Background(), openedEvent(1), "")
	require.NoError(t, err)
	assert.True(t, report.Classification.Skip)
	assert.Equal(t, "repository inactive", report.Classification.Reason)
	assert.Empty(t, repo.calls)
}

func TestRunner_RepositoryOverrides(t *testing.T) {
	db := setupTestDB(t)
	_, err := SaveRepositoryConfig(db, models.RepositoryConfig{
		RepoFullName:        "owner/repo",
		ReadyForReviewLabel: "ready",
		IsActive:            true,
	}, DefaultSettings())
	require.NoError(t, err)

	repo := newFakeRepository()
	repo.addPR(models.PullRequest{Number: 1})
	runner, _ := newTestRunner(db, repo)

	_, err = runner.ReconcileNumber(context.Background(), "owner/repo", 1, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, []string{"ready"}, repo.labels(1))
}

func TestRunner_FailureIsRecorded(t *testing.T) {
	db := setupTestDB(t)
	repo := newFakeRepository()
	repo.addPR(models.PullRequest{Number: 1})
	repo.failOn("AddLabel", &TransportError{Op: "add label", Status: 500, Err: errors.New("boom")})
	runner, notifier := newTestRunner(db, repo)

	_, err := runner.ReconcileNumber(context.Background(), "owner/repo", 1, TriggerManual)
	require.Error(t, err)

	records, err := ListRecords(db, "owner/repo", 1, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "failed", records[0].Outcome)
	assert.Contains(t, records[0].Error, "status 500")
	assert.Empty(t, notifier.results)
}

func TestRunner_NotifyErrorDoesNotFail(t *testing.T) {
	repo := newFakeRepository()
	repo.addPR(models.PullRequest{Number: 1, Labels: []string{readyLabel}})
	repo.addReview(1, "alice", models.ReviewStateChangesRequested, baseTime)
	runner, notifier := newTestRunner(nil, repo)
	notifier.err = errors.New("slack is down")

	res, err := runner.ReconcileNumber(context.Background(), "owner/repo", 1, TriggerReviewSubmitted)
	require.NoError(t, err)
	assert.True(t, res.EpisodeStarted)
	require.Len(t, notifier.results, 1)
}
